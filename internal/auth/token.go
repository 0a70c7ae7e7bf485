package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/npezzotti/go-notepad/internal/types"
)

var ErrInvalidToken = errors.New("invalid token")

const (
	notepadIdClaim = "notepad-id"
	usernameClaim  = "username"
	alternateClaim = "alt"
	expClaim       = "exp"
)

// Tokens signs and verifies HS256 session tokens.
type Tokens struct {
	key []byte
	ttl time.Duration
}

func NewTokens(key []byte, ttl time.Duration) *Tokens {
	return &Tokens{key: key, ttl: ttl}
}

func (t *Tokens) TTL() time.Duration {
	return t.ttl
}

func (t *Tokens) Issue(id types.Identity) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		notepadIdClaim: id.NotepadId,
		usernameClaim:  id.Username,
		alternateClaim: id.IsAlternate,
		expClaim:       time.Now().Add(t.ttl).Unix(),
	})

	return token.SignedString(t.key)
}

// Parse verifies tokenString and returns the identity it carries. Every
// failure wraps ErrInvalidToken.
func (t *Tokens) Parse(tokenString string) (types.Identity, error) {
	token, err := jwt.Parse(tokenString, func(tok *jwt.Token) (interface{}, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", tok.Header["alg"])
		}
		return t.key, nil
	})
	if err != nil {
		return types.Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if !token.Valid {
		return types.Identity{}, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return types.Identity{}, fmt.Errorf("%w: invalid claims", ErrInvalidToken)
	}

	notepadId, _ := claims[notepadIdClaim].(string)
	username, _ := claims[usernameClaim].(string)
	alt, _ := claims[alternateClaim].(bool)
	if notepadId == "" || username == "" {
		return types.Identity{}, fmt.Errorf("%w: missing identity claims", ErrInvalidToken)
	}

	return types.Identity{NotepadId: notepadId, Username: username, IsAlternate: alt}, nil
}
