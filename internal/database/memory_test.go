package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMemRepo(t *testing.T) *MemNotepadRepository {
	repo, err := NewMemNotepadRepository()
	require.NoError(t, err, "expected memdb repository to be created")
	return repo
}

func TestMemNotepadRepository_CreateGetNotepad(t *testing.T) {
	repo := newTestMemRepo(t)
	ctx := context.Background()

	n, err := repo.CreateNotepad(ctx, CreateNotepadParams{Id: "abc123", PasswordHash: "hash"})
	require.NoError(t, err)
	assert.Equal(t, "abc123", n.Id)
	assert.Empty(t, n.Content, "expected new notepad to be empty")

	got, err := repo.GetNotepad(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, "hash", got.PasswordHash)

	_, err = repo.CreateNotepad(ctx, CreateNotepadParams{Id: "abc123"})
	assert.Error(t, err, "expected duplicate id to be rejected")

	_, err = repo.GetNotepad(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemNotepadRepository_UpdateNotepadContent(t *testing.T) {
	repo := newTestMemRepo(t)
	ctx := context.Background()

	_, err := repo.CreateNotepad(ctx, CreateNotepadParams{Id: "doc1"})
	require.NoError(t, err)

	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, repo.UpdateNotepadContent(ctx, UpdateContentParams{
		NotepadId: "doc1",
		Content:   "first",
		Editor:    "alice",
		Timestamp: ts,
	}))
	require.NoError(t, repo.UpdateNotepadContent(ctx, UpdateContentParams{
		NotepadId: "doc1",
		Content:   "second",
		Editor:    "bob",
		Timestamp: ts.Add(time.Millisecond),
	}))

	got, err := repo.GetNotepad(ctx, "doc1")
	require.NoError(t, err)
	assert.Equal(t, "second", got.Content, "expected later write to overwrite")
	assert.Equal(t, "bob", got.LastEditor)
	assert.Equal(t, ts.Add(time.Millisecond), got.LastModified)

	err = repo.UpdateNotepadContent(ctx, UpdateContentParams{NotepadId: "missing", Content: "x"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemNotepadRepository_Feedback(t *testing.T) {
	repo := newTestMemRepo(t)
	ctx := context.Background()

	_, err := repo.CreateNotepad(ctx, CreateNotepadParams{Id: "doc1"})
	require.NoError(t, err)

	f1, err := repo.CreateFeedback(ctx, CreateFeedbackParams{NotepadId: "doc1", Line: 7, Text: "typo", Author: "alice"})
	require.NoError(t, err)
	f2, err := repo.CreateFeedback(ctx, CreateFeedbackParams{NotepadId: "doc1", Line: 2, Text: "nice", Author: "bob"})
	require.NoError(t, err)
	assert.Greater(t, f2.Id, f1.Id, "expected feedback ids to increase")

	list, err := repo.ListFeedback(ctx, "doc1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, 2, list[0].Line, "expected feedback ordered by line")
	assert.Equal(t, 7, list[1].Line)

	_, err = repo.CreateFeedback(ctx, CreateFeedbackParams{NotepadId: "missing", Line: 1})
	assert.ErrorIs(t, err, ErrNotFound)

	empty, err := repo.ListFeedback(ctx, "other")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestMemNotepadRepository_Files(t *testing.T) {
	repo := newTestMemRepo(t)
	ctx := context.Background()

	_, err := repo.CreateNotepad(ctx, CreateNotepadParams{Id: "doc1"})
	require.NoError(t, err)

	f, err := repo.CreateFile(ctx, CreateFileParams{
		Id:          "file-1",
		NotepadId:   "doc1",
		Name:        "notes.txt",
		ContentType: "text/plain",
		Size:        12,
		ObjectKey:   "doc1/file-1",
		UploadedBy:  "alice",
	})
	require.NoError(t, err)
	assert.Equal(t, "notes.txt", f.Name)

	files, err := repo.ListFiles(ctx, "doc1")
	require.NoError(t, err)
	assert.Len(t, files, 1)

	got, err := repo.GetFile(ctx, "doc1", "file-1")
	require.NoError(t, err)
	assert.Equal(t, "doc1/file-1", got.ObjectKey)

	_, err = repo.GetFile(ctx, "doc2", "file-1")
	assert.ErrorIs(t, err, ErrNotFound, "expected file lookup to be scoped to its notepad")
}
