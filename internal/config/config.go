package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"net/netip"
	"strings"

	"github.com/joho/godotenv"
	"github.com/npezzotti/go-notepad/internal/storage"
	"github.com/spf13/viper"
)

const EnvPrefix = "NOTEPAD"

// Keys shared by flags, environment variables and viper lookups. The
// environment form is NOTEPAD_ plus the key upper-cased with dashes turned
// into underscores.
const (
	KeyAddr           = "addr"
	KeyStore          = "store"
	KeyDSN            = "dsn"
	KeyMongoDatabase  = "mongo-database"
	KeySigningKey     = "signing-key"
	KeyAllowedOrigins = "allowed-origins"
	KeyLogLevel       = "log-level"
	KeyRedisAddr      = "redis-addr"
	KeyLoginRate      = "login-rate"
	KeyLoginBurst     = "login-burst"
	KeyMinioEndpoint  = "minio-endpoint"
	KeyMinioAccessKey = "minio-access-key"
	KeyMinioSecretKey = "minio-secret-key"
	KeyMinioBucket    = "minio-bucket"
	KeyMinioSSL       = "minio-ssl"
	KeyMaxUploadBytes = "max-upload-bytes"
	KeyTrustedProxies = "trusted-proxies"
)

const (
	StorePostgres = "postgres"
	StoreMongo    = "mongo"
	StoreMemory   = "memory"
)

type Config struct {
	ServerAddr     string
	Store          string
	DatabaseDSN    string
	MongoDatabase  string
	SigningKey     []byte
	AllowedOrigins []string
	LogLevel       string
	RedisAddr      string
	LoginRate      float64
	LoginBurst     int
	MaxUploadBytes int64
	// TrustedProxies are the peers whose X-Forwarded-For and X-Real-IP
	// headers are believed. Empty means none.
	TrustedProxies []netip.Prefix
	// MinIO is nil when attachments are disabled.
	MinIO *storage.MinIOConfig
}

func decodeSigningSecret(base64Secret string) ([]byte, error) {
	if base64Secret == "" {
		return nil, errors.New("empty secret")
	}
	return base64.StdEncoding.DecodeString(base64Secret)
}

func NewConfig(serverAddr, databaseDSN, base64Secret string, allowedOrigins []string) (*Config, error) {
	return build(Config{
		ServerAddr:     serverAddr,
		Store:          StorePostgres,
		DatabaseDSN:    databaseDSN,
		AllowedOrigins: allowedOrigins,
		LogLevel:       "info",
		LoginRate:      1,
		LoginBurst:     5,
		MaxUploadBytes: 10 << 20,
	}, base64Secret)
}

// NewViper returns a viper instance with defaults set that reads NOTEPAD_*
// environment variables.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault(KeyAddr, ":8000")
	v.SetDefault(KeyStore, StorePostgres)
	v.SetDefault(KeyMongoDatabase, "notepad")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLoginRate, 1.0)
	v.SetDefault(KeyLoginBurst, 5)
	v.SetDefault(KeyMinioBucket, "notepad")
	v.SetDefault(KeyMaxUploadBytes, 10<<20)

	return v
}

// LoadDotEnv loads variables from path into the environment. A missing file is
// not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Load reads every key from v and validates the result.
func Load(v *viper.Viper) (*Config, error) {
	cfg := Config{
		ServerAddr:     v.GetString(KeyAddr),
		Store:          strings.ToLower(v.GetString(KeyStore)),
		DatabaseDSN:    v.GetString(KeyDSN),
		MongoDatabase:  v.GetString(KeyMongoDatabase),
		AllowedOrigins: splitList(v.GetString(KeyAllowedOrigins)),
		LogLevel:       v.GetString(KeyLogLevel),
		RedisAddr:      v.GetString(KeyRedisAddr),
		LoginRate:      v.GetFloat64(KeyLoginRate),
		LoginBurst:     v.GetInt(KeyLoginBurst),
		MaxUploadBytes: v.GetInt64(KeyMaxUploadBytes),
	}

	proxies, err := ParseTrustedProxies(splitList(v.GetString(KeyTrustedProxies)))
	if err != nil {
		return nil, err
	}
	cfg.TrustedProxies = proxies

	if endpoint := v.GetString(KeyMinioEndpoint); endpoint != "" {
		cfg.MinIO = &storage.MinIOConfig{
			Endpoint:  endpoint,
			AccessKey: v.GetString(KeyMinioAccessKey),
			SecretKey: v.GetString(KeyMinioSecretKey),
			Bucket:    v.GetString(KeyMinioBucket),
			UseSSL:    v.GetBool(KeyMinioSSL),
		}
	}

	return build(cfg, v.GetString(KeySigningKey))
}

func build(cfg Config, base64Secret string) (*Config, error) {
	if cfg.ServerAddr == "" {
		return nil, fmt.Errorf("server address cannot be empty")
	}

	switch cfg.Store {
	case StorePostgres, StoreMongo:
		if cfg.DatabaseDSN == "" {
			return nil, fmt.Errorf("database DSN cannot be empty")
		}
	case StoreMemory:
	default:
		return nil, fmt.Errorf("unknown store %q", cfg.Store)
	}

	if base64Secret == "" {
		return nil, fmt.Errorf("signing secret cannot be empty")
	}
	if cfg.LoginRate <= 0 || cfg.LoginBurst < 0 {
		return nil, fmt.Errorf("invalid login rate limit %v/%d", cfg.LoginRate, cfg.LoginBurst)
	}
	if cfg.MaxUploadBytes <= 0 {
		return nil, fmt.Errorf("max upload bytes must be positive")
	}
	if cfg.MinIO != nil && cfg.MinIO.Bucket == "" {
		return nil, fmt.Errorf("minio bucket cannot be empty")
	}

	// Decode the base64 encoded signing secret
	signingKey, err := decodeSigningSecret(base64Secret)
	if err != nil {
		return nil, fmt.Errorf("decode signing secret: %w", err)
	}
	cfg.SigningKey = signingKey

	return &cfg, nil
}

// ParseTrustedProxies accepts CIDR prefixes and bare addresses.
func ParseTrustedProxies(entries []string) ([]netip.Prefix, error) {
	var out []netip.Prefix
	for _, e := range entries {
		if p, err := netip.ParsePrefix(e); err == nil {
			out = append(out, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(e)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q", e)
		}
		addr = addr.Unmap()
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
