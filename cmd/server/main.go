package main

import (
	"fmt"
	"os"

	"github.com/npezzotti/go-notepad/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// dev-only key; override with --signing-key or NOTEPAD_SIGNING_KEY
const defaultSigningKey = "wT0phFUusHZIrDhL9bUKPUhwaxKhpi/SaI6PtgB+MgU="

var envFile string

func newRootCmd() *cobra.Command {
	v := config.NewViper()

	cmd := &cobra.Command{
		Use:           "notepad-server",
		Short:         "Shared notepad server with real-time editing",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.LoadDotEnv(envFile); err != nil {
				return err
			}
			return v.BindPFlags(cmd.Flags())
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			return run(cmd.Context(), cfg)
		},
	}

	cmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "file of KEY=value pairs loaded into the environment")
	addFlags(cmd)
	cmd.AddCommand(newMigrateCmd(v))

	return cmd
}

func addFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String(config.KeyAddr, ":8000", "server address")
	f.String(config.KeyStore, config.StorePostgres, "document store: postgres, mongo or memory")
	f.String(config.KeyDSN, "", "database connection string")
	f.String(config.KeyMongoDatabase, "notepad", "MongoDB database name")
	f.String(config.KeySigningKey, defaultSigningKey, "base64 encoded signing key")
	f.String(config.KeyAllowedOrigins, "", "comma-separated list of allowed origins for CORS")
	f.String(config.KeyLogLevel, "info", "log level: debug, info, warn, error")
	f.String(config.KeyRedisAddr, "", "Redis address for shared login rate limits; in-process limits when empty")
	f.Float64(config.KeyLoginRate, 1, "login attempts per second per client")
	f.Int(config.KeyLoginBurst, 5, "login attempt burst per client")
	f.String(config.KeyMinioEndpoint, "", "MinIO endpoint for attachments; attachments disabled when empty")
	f.String(config.KeyMinioAccessKey, "", "MinIO access key")
	f.String(config.KeyMinioSecretKey, "", "MinIO secret key")
	f.String(config.KeyMinioBucket, "notepad", "MinIO bucket")
	f.Bool(config.KeyMinioSSL, false, "use TLS for MinIO")
	f.Int64(config.KeyMaxUploadBytes, 10<<20, "maximum attachment size in bytes")
	f.String(config.KeyTrustedProxies, "", "comma-separated proxy addresses or CIDRs whose forwarded client address is trusted")
}

func newMigrateCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply PostgreSQL schema migrations and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			dsn := v.GetString(config.KeyDSN)
			if dsn == "" {
				return fmt.Errorf("--%s is required", config.KeyDSN)
			}
			return migrate(dsn)
		},
	}
	cmd.Flags().String(config.KeyDSN, "", "database connection string")

	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
