package database

import "context"

type NotepadRepository interface {
	Ping(ctx context.Context) error
	Close() error
	CreateNotepad(ctx context.Context, params CreateNotepadParams) (Notepad, error)
	GetNotepad(ctx context.Context, id string) (Notepad, error)
	UpdateNotepadContent(ctx context.Context, params UpdateContentParams) error
	CreateFeedback(ctx context.Context, params CreateFeedbackParams) (Feedback, error)
	ListFeedback(ctx context.Context, notepadId string) ([]Feedback, error)
	CreateFile(ctx context.Context, params CreateFileParams) (File, error)
	ListFiles(ctx context.Context, notepadId string) ([]File, error)
	GetFile(ctx context.Context, notepadId, fileId string) (File, error)
}
