package server

import (
	"net/http"
	"time"
)

type BaseMessage struct {
	Id        int       `json:"id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ClientMessage carries exactly one request.
type ClientMessage struct {
	BaseMessage
	Join          *Join          `json:"join-notepad,omitempty"`
	Leave         *Leave         `json:"leave-notepad,omitempty"`
	ContentChange *ContentChange `json:"content-change,omitempty"`
}

type Join struct {
	NotepadId string `json:"notepad_id"`
}

type Leave struct {
	NotepadId string `json:"notepad_id"`
}

// ContentChange is a full snapshot of the editor. Username is informational;
// the editor recorded is the identity of the session.
type ContentChange struct {
	NotepadId string `json:"notepad_id"`
	Content   string `json:"content"`
	Username  string `json:"username,omitempty"`
}

// ServerMessage is either a broadcast event or a response to the client
// message with the same id.
type ServerMessage struct {
	BaseMessage
	Event    string    `json:"event,omitempty"`
	Data     any       `json:"data,omitempty"`
	Response *Response `json:"response,omitempty"`
}

type Response struct {
	ResponseCode int    `json:"response_code"`
	Error        string `json:"error,omitempty"`
	Data         any    `json:"data,omitempty"`
}

func response(id, code int, errMsg string, data any) *ServerMessage {
	msg := &ServerMessage{
		BaseMessage: BaseMessage{
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: code,
			Error:        errMsg,
			Data:         data,
		},
	}

	if id > 0 {
		msg.Id = id
	}
	return msg
}

func NoErrOK(id int, data any) *ServerMessage {
	return response(id, http.StatusOK, "", data)
}

func ErrNotFound(id int, what string) *ServerMessage {
	return response(id, http.StatusNotFound, what+" not found", nil)
}

func ErrForbidden(id int) *ServerMessage {
	return response(id, http.StatusForbidden, "forbidden", nil)
}

func ErrInternalError(id int, data any) *ServerMessage {
	return response(id, http.StatusInternalServerError, "internal server error", data)
}

func ErrServiceUnavailable(id int) *ServerMessage {
	return response(id, http.StatusServiceUnavailable, "service unavailable", nil)
}

func ErrInvalidMessage(id int) *ServerMessage {
	return response(id, http.StatusBadRequest, "invalid message format", nil)
}

func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}
