// Package auth checks notepad credentials and issues the session tokens that
// bind a browser to one notepad.
package auth

import (
	"context"
	"fmt"

	"github.com/npezzotti/go-notepad/internal/database"
	"github.com/npezzotti/go-notepad/internal/types"
	"golang.org/x/crypto/bcrypt"
)

type CredentialStore interface {
	GetNotepad(ctx context.Context, id string) (database.Notepad, error)
}

// Result of a credential check. Invalid credentials are not an error.
type Result struct {
	Valid       bool           `json:"valid"`
	IsAlternate bool           `json:"is_alternate"`
	Identity    types.Identity `json:"identity"`
}

type Verifier struct {
	store CredentialStore
}

func NewVerifier(store CredentialStore) *Verifier {
	return &Verifier{store: store}
}

// Verify checks password against the notepad's primary credential and then
// against its alternate one, if set. A missing notepad is returned as a
// wrapped database.ErrNotFound.
func (v *Verifier) Verify(ctx context.Context, notepadId, username, password string) (Result, error) {
	n, err := v.store.GetNotepad(ctx, notepadId)
	if err != nil {
		return Result{}, fmt.Errorf("get notepad: %w", err)
	}

	identity := types.Identity{NotepadId: n.Id, Username: username}

	if VerifyPassword(n.PasswordHash, password) {
		return Result{Valid: true, Identity: identity}, nil
	}

	if n.AlternatePasswordHash != "" && VerifyPassword(n.AlternatePasswordHash, password) {
		identity.IsAlternate = true
		return Result{Valid: true, IsAlternate: true, Identity: identity}, nil
	}

	return Result{}, nil
}

func HashPassword(passwd string) (string, error) {
	passwdHash, err := bcrypt.GenerateFromPassword([]byte(passwd), bcrypt.DefaultCost)
	return string(passwdHash), err
}

func VerifyPassword(passwdHash, passwd string) bool {
	if passwdHash == "" {
		return false
	}
	err := bcrypt.CompareHashAndPassword([]byte(passwdHash), []byte(passwd))
	return err == nil
}

type contextKey string

const identityKey contextKey = "identity"

func WithIdentity(ctx context.Context, id types.Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

func IdentityFrom(ctx context.Context) (types.Identity, bool) {
	id, ok := ctx.Value(identityKey).(types.Identity)
	return id, ok
}
