package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/npezzotti/go-notepad/internal/database"
	"github.com/npezzotti/go-notepad/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestVerifier_Verify(t *testing.T) {
	primary, err := HashPassword("hunter2")
	require.NoError(t, err)
	alternate, err := HashPassword("readonly")
	require.NoError(t, err)

	db := &database.MockNotepadRepository{}
	db.On("GetNotepad", mock.Anything, "abc").Return(database.Notepad{
		Id:                    "abc",
		PasswordHash:          primary,
		AlternatePasswordHash: alternate,
	}, nil)
	db.On("GetNotepad", mock.Anything, "missing").Return(database.Notepad{}, database.ErrNotFound)

	v := NewVerifier(db)

	tcases := []struct {
		name      string
		notepadId string
		password  string
		expected  Result
		err       error
	}{
		{
			name:      "primary password",
			notepadId: "abc",
			password:  "hunter2",
			expected: Result{
				Valid:    true,
				Identity: types.Identity{NotepadId: "abc", Username: "alice"},
			},
		},
		{
			name:      "alternate password",
			notepadId: "abc",
			password:  "readonly",
			expected: Result{
				Valid:       true,
				IsAlternate: true,
				Identity:    types.Identity{NotepadId: "abc", Username: "alice", IsAlternate: true},
			},
		},
		{
			name:      "wrong password",
			notepadId: "abc",
			password:  "nope",
			expected:  Result{},
		},
		{
			name:      "unknown notepad",
			notepadId: "missing",
			password:  "hunter2",
			err:       database.ErrNotFound,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := v.Verify(context.Background(), tc.notepadId, "alice", tc.password)
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tc.expected, res)
		})
	}
}

func TestVerifyPassword_EmptyHash(t *testing.T) {
	assert.False(t, VerifyPassword("", ""), "expected an unset credential never to match")
}

func TestTokens_RoundTrip(t *testing.T) {
	tokens := NewTokens([]byte("secret"), time.Hour)
	id := types.Identity{NotepadId: "abc", Username: "alice", IsAlternate: true}

	s, err := tokens.Issue(id)
	require.NoError(t, err)

	got, err := tokens.Parse(s)
	require.NoError(t, err)
	assert.Equal(t, id, got)
}

func TestTokens_Rejects(t *testing.T) {
	tokens := NewTokens([]byte("secret"), time.Hour)
	other := NewTokens([]byte("other"), time.Hour)
	expired := NewTokens([]byte("secret"), -time.Minute)

	wrongKey, err := other.Issue(types.Identity{NotepadId: "abc", Username: "alice"})
	require.NoError(t, err)
	stale, err := expired.Issue(types.Identity{NotepadId: "abc", Username: "alice"})
	require.NoError(t, err)
	noUser, err := tokens.Issue(types.Identity{NotepadId: "abc"})
	require.NoError(t, err)

	for name, s := range map[string]string{
		"garbage":       "not-a-token",
		"wrong key":     wrongKey,
		"expired":       stale,
		"missing claim": noUser,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := tokens.Parse(s)
			assert.True(t, errors.Is(err, ErrInvalidToken), "expected ErrInvalidToken, got %v", err)
		})
	}
}

func TestIdentityContext(t *testing.T) {
	_, ok := IdentityFrom(context.Background())
	assert.False(t, ok)

	id := types.Identity{NotepadId: "abc", Username: "alice"}
	got, ok := IdentityFrom(WithIdentity(context.Background(), id))
	assert.True(t, ok)
	assert.Equal(t, id, got)
}
