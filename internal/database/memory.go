package database

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/hashicorp/go-memdb"
)

const (
	tblNotepads = "notepads"
	tblFeedback = "feedback"
	tblFiles    = "files"
)

var memSchema = &memdb.DBSchema{
	Tables: map[string]*memdb.TableSchema{
		tblNotepads: {
			Name: tblNotepads,
			Indexes: map[string]*memdb.IndexSchema{
				"id": {
					Name:    "id",
					Unique:  true,
					Indexer: &memdb.StringFieldIndex{Field: "Id"},
				},
			},
		},
		tblFeedback: {
			Name: tblFeedback,
			Indexes: map[string]*memdb.IndexSchema{
				"id": {
					Name:    "id",
					Unique:  true,
					Indexer: &memdb.IntFieldIndex{Field: "Id"},
				},
				"notepad_id": {
					Name:    "notepad_id",
					Indexer: &memdb.StringFieldIndex{Field: "NotepadId"},
				},
			},
		},
		tblFiles: {
			Name: tblFiles,
			Indexes: map[string]*memdb.IndexSchema{
				"id": {
					Name:    "id",
					Unique:  true,
					Indexer: &memdb.StringFieldIndex{Field: "Id"},
				},
				"notepad_id": {
					Name:    "notepad_id",
					Indexer: &memdb.StringFieldIndex{Field: "NotepadId"},
				},
			},
		},
	},
}

// MemNotepadRepository keeps everything in process memory. It backs the
// "memory" store and the tests that need a real repository.
type MemNotepadRepository struct {
	db             *memdb.MemDB
	lastFeedbackId int
}

func NewMemNotepadRepository() (*MemNotepadRepository, error) {
	db, err := memdb.NewMemDB(memSchema)
	if err != nil {
		return nil, fmt.Errorf("new memdb: %w", err)
	}

	return &MemNotepadRepository{db: db}, nil
}

func (m *MemNotepadRepository) Ping(_ context.Context) error {
	return nil
}

func (m *MemNotepadRepository) Close() error {
	return nil
}

func (m *MemNotepadRepository) CreateNotepad(_ context.Context, params CreateNotepadParams) (Notepad, error) {
	txn := m.db.Txn(true)
	defer txn.Abort()

	raw, err := txn.First(tblNotepads, "id", params.Id)
	if err != nil {
		return Notepad{}, fmt.Errorf("find notepad: %w", err)
	}
	if raw != nil {
		return Notepad{}, fmt.Errorf("notepad %q already exists", params.Id)
	}

	now := time.Now().UTC()
	n := &Notepad{
		Id:                    params.Id,
		PasswordHash:          params.PasswordHash,
		AlternatePasswordHash: params.AlternatePasswordHash,
		LastModified:          now,
		CreatedAt:             now,
	}
	if err := txn.Insert(tblNotepads, n); err != nil {
		return Notepad{}, fmt.Errorf("insert notepad: %w", err)
	}
	txn.Commit()

	return *n, nil
}

func (m *MemNotepadRepository) GetNotepad(_ context.Context, id string) (Notepad, error) {
	txn := m.db.Txn(false)
	defer txn.Abort()

	raw, err := txn.First(tblNotepads, "id", id)
	if err != nil {
		return Notepad{}, fmt.Errorf("find notepad: %w", err)
	}
	if raw == nil {
		return Notepad{}, fmt.Errorf("notepad %q: %w", id, ErrNotFound)
	}

	return *raw.(*Notepad), nil
}

func (m *MemNotepadRepository) UpdateNotepadContent(_ context.Context, params UpdateContentParams) error {
	txn := m.db.Txn(true)
	defer txn.Abort()

	raw, err := txn.First(tblNotepads, "id", params.NotepadId)
	if err != nil {
		return fmt.Errorf("find notepad: %w", err)
	}
	if raw == nil {
		return fmt.Errorf("notepad %q: %w", params.NotepadId, ErrNotFound)
	}

	// stored objects are immutable, write a modified copy
	n := *raw.(*Notepad)
	n.Content = params.Content
	n.LastEditor = params.Editor
	n.LastModified = params.Timestamp
	if err := txn.Insert(tblNotepads, &n); err != nil {
		return fmt.Errorf("update notepad: %w", err)
	}
	txn.Commit()

	return nil
}

func (m *MemNotepadRepository) CreateFeedback(_ context.Context, params CreateFeedbackParams) (Feedback, error) {
	txn := m.db.Txn(true)
	defer txn.Abort()

	if err := m.requireNotepad(txn, params.NotepadId); err != nil {
		return Feedback{}, err
	}

	// write transactions are exclusive, so the counter is safe here
	m.lastFeedbackId++
	f := &Feedback{
		Id:        m.lastFeedbackId,
		NotepadId: params.NotepadId,
		Line:      params.Line,
		Text:      params.Text,
		Author:    params.Author,
		CreatedAt: time.Now().UTC(),
	}
	if err := txn.Insert(tblFeedback, f); err != nil {
		return Feedback{}, fmt.Errorf("insert feedback: %w", err)
	}
	txn.Commit()

	return *f, nil
}

func (m *MemNotepadRepository) ListFeedback(_ context.Context, notepadId string) ([]Feedback, error) {
	txn := m.db.Txn(false)
	defer txn.Abort()

	it, err := txn.Get(tblFeedback, "notepad_id", notepadId)
	if err != nil {
		return nil, fmt.Errorf("list feedback: %w", err)
	}

	feedback := make([]Feedback, 0)
	for raw := it.Next(); raw != nil; raw = it.Next() {
		feedback = append(feedback, *raw.(*Feedback))
	}

	sort.SliceStable(feedback, func(i, j int) bool {
		if feedback[i].Line != feedback[j].Line {
			return feedback[i].Line < feedback[j].Line
		}
		return feedback[i].Id < feedback[j].Id
	})

	return feedback, nil
}

func (m *MemNotepadRepository) CreateFile(_ context.Context, params CreateFileParams) (File, error) {
	txn := m.db.Txn(true)
	defer txn.Abort()

	if err := m.requireNotepad(txn, params.NotepadId); err != nil {
		return File{}, err
	}

	f := &File{
		Id:          params.Id,
		NotepadId:   params.NotepadId,
		Name:        params.Name,
		ContentType: params.ContentType,
		Size:        params.Size,
		ObjectKey:   params.ObjectKey,
		UploadedBy:  params.UploadedBy,
		CreatedAt:   time.Now().UTC(),
	}
	if err := txn.Insert(tblFiles, f); err != nil {
		return File{}, fmt.Errorf("insert file: %w", err)
	}
	txn.Commit()

	return *f, nil
}

func (m *MemNotepadRepository) ListFiles(_ context.Context, notepadId string) ([]File, error) {
	txn := m.db.Txn(false)
	defer txn.Abort()

	it, err := txn.Get(tblFiles, "notepad_id", notepadId)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}

	files := make([]File, 0)
	for raw := it.Next(); raw != nil; raw = it.Next() {
		files = append(files, *raw.(*File))
	}

	sort.SliceStable(files, func(i, j int) bool {
		return files[i].CreatedAt.Before(files[j].CreatedAt)
	})

	return files, nil
}

func (m *MemNotepadRepository) GetFile(_ context.Context, notepadId, fileId string) (File, error) {
	txn := m.db.Txn(false)
	defer txn.Abort()

	raw, err := txn.First(tblFiles, "id", fileId)
	if err != nil {
		return File{}, fmt.Errorf("find file: %w", err)
	}
	if raw == nil || raw.(*File).NotepadId != notepadId {
		return File{}, fmt.Errorf("file %q: %w", fileId, ErrNotFound)
	}

	return *raw.(*File), nil
}

func (m *MemNotepadRepository) requireNotepad(txn *memdb.Txn, id string) error {
	raw, err := txn.First(tblNotepads, "id", id)
	if err != nil {
		return fmt.Errorf("find notepad: %w", err)
	}
	if raw == nil {
		return fmt.Errorf("notepad %q: %w", id, ErrNotFound)
	}

	return nil
}
