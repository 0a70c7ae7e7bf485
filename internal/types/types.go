package types

import (
	"time"
)

type Notepad struct {
	Id           string    `json:"id"`
	Content      string    `json:"content"`
	LastModified time.Time `json:"last_modified"`
	LastEditor   string    `json:"last_editor"`
	CreatedAt    time.Time `json:"created_at,omitempty"`
}

type Identity struct {
	NotepadId   string `json:"notepad_id"`
	Username    string `json:"username"`
	IsAlternate bool   `json:"is_alternate"`
}

type Feedback struct {
	Id        int       `json:"id"`
	NotepadId string    `json:"notepad_id"`
	Line      int       `json:"line"`
	Text      string    `json:"text"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"created_at"`
}

type File struct {
	Id          string    `json:"id"`
	NotepadId   string    `json:"notepad_id"`
	Name        string    `json:"name"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	UploadedBy  string    `json:"uploaded_by"`
	CreatedAt   time.Time `json:"created_at"`
}

// ActiveUsers is the payload of an active-users broadcast.
type ActiveUsers struct {
	NotepadId string `json:"notepad_id"`
	Count     int    `json:"count"`
}

// ContentUpdate is the payload of a content-update broadcast.
type ContentUpdate struct {
	NotepadId string    `json:"notepad_id"`
	Content   string    `json:"content"`
	Editor    string    `json:"editor"`
	Timestamp time.Time `json:"timestamp"`
}
