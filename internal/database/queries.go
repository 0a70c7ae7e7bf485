package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const notepadColumns = "id, content, password_hash, alternate_password_hash, last_editor, last_modified, created_at"

func (db *PgNotepadRepository) CreateNotepad(ctx context.Context, params CreateNotepadParams) (Notepad, error) {
	now := time.Now().UTC()
	res := db.conn.QueryRowContext(ctx,
		"INSERT INTO notepads (id, content, password_hash, alternate_password_hash, last_editor, last_modified, created_at) "+
			"VALUES ($1, '', $2, $3, '', $4, $4) RETURNING "+notepadColumns,
		params.Id,
		params.PasswordHash,
		params.AlternatePasswordHash,
		now,
	)

	return scanNotepad(res)
}

func (db *PgNotepadRepository) GetNotepad(ctx context.Context, id string) (Notepad, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT "+notepadColumns+" FROM notepads WHERE id = $1 LIMIT 1",
		id,
	)

	n, err := scanNotepad(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Notepad{}, fmt.Errorf("notepad %q: %w", id, ErrNotFound)
	}

	return n, err
}

// UpdateNotepadContent overwrites the stored snapshot unconditionally.
func (db *PgNotepadRepository) UpdateNotepadContent(ctx context.Context, params UpdateContentParams) error {
	res, err := db.conn.ExecContext(ctx,
		"UPDATE notepads SET content = $2, last_editor = $3, last_modified = $4 WHERE id = $1",
		params.NotepadId,
		params.Content,
		params.Editor,
		params.Timestamp,
	)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}

	if n == 0 {
		return fmt.Errorf("notepad %q: %w", params.NotepadId, ErrNotFound)
	}

	return nil
}

func (db *PgNotepadRepository) CreateFeedback(ctx context.Context, params CreateFeedbackParams) (Feedback, error) {
	res := db.conn.QueryRowContext(ctx,
		"INSERT INTO feedback (notepad_id, line, text, author, created_at) "+
			"VALUES ($1, $2, $3, $4, $5) RETURNING id, notepad_id, line, text, author, created_at",
		params.NotepadId,
		params.Line,
		params.Text,
		params.Author,
		time.Now().UTC(),
	)

	var f Feedback
	err := res.Scan(
		&f.Id,
		&f.NotepadId,
		&f.Line,
		&f.Text,
		&f.Author,
		&f.CreatedAt,
	)

	return f, err
}

func (db *PgNotepadRepository) ListFeedback(ctx context.Context, notepadId string) ([]Feedback, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT id, notepad_id, line, text, author, created_at FROM feedback "+
			"WHERE notepad_id = $1 ORDER BY line ASC, id ASC",
		notepadId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	feedback := make([]Feedback, 0)
	for rows.Next() {
		var f Feedback
		if err := rows.Scan(&f.Id, &f.NotepadId, &f.Line, &f.Text, &f.Author, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		feedback = append(feedback, f)
	}

	return feedback, rows.Err()
}

func (db *PgNotepadRepository) CreateFile(ctx context.Context, params CreateFileParams) (File, error) {
	res := db.conn.QueryRowContext(ctx,
		"INSERT INTO files (id, notepad_id, name, content_type, size, object_key, uploaded_by, created_at) "+
			"VALUES ($1, $2, $3, $4, $5, $6, $7, $8) "+
			"RETURNING id, notepad_id, name, content_type, size, object_key, uploaded_by, created_at",
		params.Id,
		params.NotepadId,
		params.Name,
		params.ContentType,
		params.Size,
		params.ObjectKey,
		params.UploadedBy,
		time.Now().UTC(),
	)

	return scanFile(res)
}

func (db *PgNotepadRepository) ListFiles(ctx context.Context, notepadId string) ([]File, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT id, notepad_id, name, content_type, size, object_key, uploaded_by, created_at FROM files "+
			"WHERE notepad_id = $1 ORDER BY created_at ASC",
		notepadId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	files := make([]File, 0)
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		files = append(files, f)
	}

	return files, rows.Err()
}

func (db *PgNotepadRepository) GetFile(ctx context.Context, notepadId, fileId string) (File, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT id, notepad_id, name, content_type, size, object_key, uploaded_by, created_at FROM files "+
			"WHERE notepad_id = $1 AND id = $2 LIMIT 1",
		notepadId,
		fileId,
	)

	f, err := scanFile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return File{}, fmt.Errorf("file %q: %w", fileId, ErrNotFound)
	}

	return f, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanNotepad(row scanner) (Notepad, error) {
	var n Notepad
	err := row.Scan(
		&n.Id,
		&n.Content,
		&n.PasswordHash,
		&n.AlternatePasswordHash,
		&n.LastEditor,
		&n.LastModified,
		&n.CreatedAt,
	)

	return n, err
}

func scanFile(row scanner) (File, error) {
	var f File
	err := row.Scan(
		&f.Id,
		&f.NotepadId,
		&f.Name,
		&f.ContentType,
		&f.Size,
		&f.ObjectKey,
		&f.UploadedBy,
		&f.CreatedAt,
	)

	return f, err
}
