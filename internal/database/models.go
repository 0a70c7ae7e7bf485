package database

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("not found")

type Notepad struct {
	Id                    string    `bson:"_id"`
	Content               string    `bson:"content"`
	PasswordHash          string    `bson:"password_hash"`
	AlternatePasswordHash string    `bson:"alternate_password_hash"`
	LastEditor            string    `bson:"last_editor"`
	LastModified          time.Time `bson:"last_modified"`
	CreatedAt             time.Time `bson:"created_at"`
}

type Feedback struct {
	Id        int       `bson:"id"`
	NotepadId string    `bson:"notepad_id"`
	Line      int       `bson:"line"`
	Text      string    `bson:"text"`
	Author    string    `bson:"author"`
	CreatedAt time.Time `bson:"created_at"`
}

type File struct {
	Id          string    `bson:"_id"`
	NotepadId   string    `bson:"notepad_id"`
	Name        string    `bson:"name"`
	ContentType string    `bson:"content_type"`
	Size        int64     `bson:"size"`
	ObjectKey   string    `bson:"object_key"`
	UploadedBy  string    `bson:"uploaded_by"`
	CreatedAt   time.Time `bson:"created_at"`
}

type CreateNotepadParams struct {
	Id                    string
	PasswordHash          string
	AlternatePasswordHash string
}

type UpdateContentParams struct {
	NotepadId string
	Content   string
	Editor    string
	Timestamp time.Time
}

type CreateFeedbackParams struct {
	NotepadId string
	Line      int
	Text      string
	Author    string
}

type CreateFileParams struct {
	Id          string
	NotepadId   string
	Name        string
	ContentType string
	Size        int64
	ObjectKey   string
	UploadedBy  string
}
