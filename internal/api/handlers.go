package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"time"

	"github.com/gorilla/websocket"
	"github.com/npezzotti/go-notepad/internal/auth"
	"github.com/npezzotti/go-notepad/internal/collab"
	"github.com/npezzotti/go-notepad/internal/database"
	"github.com/npezzotti/go-notepad/internal/server"
	"github.com/npezzotti/go-notepad/internal/storage"
	"github.com/npezzotti/go-notepad/internal/types"
)

const presignExpiry = 15 * time.Minute

type CreateNotepadRequest struct {
	Password          string `json:"password" validate:"required,min=4,max=72"`
	AlternatePassword string `json:"alternate_password,omitempty" validate:"omitempty,min=4,max=72,nefield=Password"`
}

type UpdateContentRequest struct {
	Content string `json:"content"`
}

type CreateFeedbackRequest struct {
	Line int    `json:"line" validate:"gte=0"`
	Text string `json:"text" validate:"required,max=2000"`
}

func (s *NotepadApp) writeJson(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Errorf("json encode: %v", err)
	}
}

// decode reads a JSON body into v and validates it.
func (s *NotepadApp) decode(r *http.Request, v any) *ApiError {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return NewBadRequestError()
	}
	if err := s.validate.Struct(v); err != nil {
		return NewValidationError(err)
	}
	return nil
}

func (s *NotepadApp) lookupError(err error) *ApiError {
	if errors.Is(err, database.ErrNotFound) {
		return NewNotFoundError()
	}
	return NewInternalServerError(err)
}

func (s *NotepadApp) createNotepad(w http.ResponseWriter, r *http.Request) {
	var req CreateNotepadRequest
	if errResp := s.decode(r, &req); errResp != nil {
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	pwdHash, err := auth.HashPassword(req.Password)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var altHash string
	if req.AlternatePassword != "" {
		if altHash, err = auth.HashPassword(req.AlternatePassword); err != nil {
			errResp := NewInternalServerError(err)
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}
	}

	sid, err := s.generateShortId()
	if err != nil {
		s.log.Errorf("generateShortId: %v", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	n, err := s.db.CreateNotepad(r.Context(), database.CreateNotepadParams{
		Id:                    sid,
		PasswordHash:          pwdHash,
		AlternatePasswordHash: altHash,
	})
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusCreated, map[string]string{"id": n.Id})
}

func (s *NotepadApp) getNotepad(w http.ResponseWriter, r *http.Request) {
	n, err := s.db.GetNotepad(r.Context(), r.PathValue("id"))
	if err != nil {
		errResp := s.lookupError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, types.Notepad{
		Id:           n.Id,
		Content:      n.Content,
		LastModified: n.LastModified,
		LastEditor:   n.LastEditor,
		CreatedAt:    n.CreatedAt,
	})
}

// updateContent submits an edit outside any websocket room, so every
// connection in the room receives the update.
func (s *NotepadApp) updateContent(w http.ResponseWriter, r *http.Request) {
	var req UpdateContentRequest
	if errResp := s.decode(r, &req); errResp != nil {
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	identity, _ := auth.IdentityFrom(r.Context())
	ack := s.core.SubmitEdit(r.Context(), collab.Edit{
		NotepadId: r.PathValue("id"),
		Content:   req.Content,
		Editor:    identity.Username,
	})
	if !ack.Success {
		errResp := s.lookupError(ack.Err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, ack)
}

func (s *NotepadApp) listFeedback(w http.ResponseWriter, r *http.Request) {
	dbFeedback, err := s.db.ListFeedback(r.Context(), r.PathValue("id"))
	if err != nil {
		errResp := s.lookupError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	feedback := make([]types.Feedback, 0, len(dbFeedback))
	for _, fb := range dbFeedback {
		feedback = append(feedback, toFeedback(fb))
	}

	s.writeJson(w, http.StatusOK, feedback)
}

func (s *NotepadApp) createFeedback(w http.ResponseWriter, r *http.Request) {
	var req CreateFeedbackRequest
	if errResp := s.decode(r, &req); errResp != nil {
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	identity, _ := auth.IdentityFrom(r.Context())
	notepadId := r.PathValue("id")

	dbFeedback, err := s.db.CreateFeedback(r.Context(), database.CreateFeedbackParams{
		NotepadId: notepadId,
		Line:      req.Line,
		Text:      req.Text,
		Author:    identity.Username,
	})
	if err != nil {
		errResp := s.lookupError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	fb := toFeedback(dbFeedback)
	s.core.ForwardFeedback(notepadId, fb)

	s.writeJson(w, http.StatusCreated, fb)
}

func (s *NotepadApp) listFiles(w http.ResponseWriter, r *http.Request) {
	dbFiles, err := s.db.ListFiles(r.Context(), r.PathValue("id"))
	if err != nil {
		errResp := s.lookupError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	files := make([]types.File, 0, len(dbFiles))
	for _, f := range dbFiles {
		files = append(files, toFile(f))
	}

	s.writeJson(w, http.StatusOK, files)
}

// uploadFile stores the multipart field "file" in object storage and records
// its metadata.
func (s *NotepadApp) uploadFile(w http.ResponseWriter, r *http.Request) {
	if s.files == nil {
		errResp := NewServiceUnavailableError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		var errResp *ApiError
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			errResp = NewRequestTooLargeError()
		} else {
			errResp = NewBadRequestError()
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	identity, _ := auth.IdentityFrom(r.Context())
	notepadId := r.PathValue("id")
	fileId := s.newFileId()
	key := storage.ObjectKey(notepadId, fileId)

	if err := s.files.Upload(r.Context(), key, file, header.Size, contentType); err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	dbFile, err := s.db.CreateFile(r.Context(), database.CreateFileParams{
		Id:          fileId,
		NotepadId:   notepadId,
		Name:        header.Filename,
		ContentType: contentType,
		Size:        header.Size,
		ObjectKey:   key,
		UploadedBy:  identity.Username,
	})
	if err != nil {
		errResp := s.lookupError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	f := toFile(dbFile)
	s.core.ForwardFile(notepadId, f)

	s.writeJson(w, http.StatusCreated, f)
}

func (s *NotepadApp) downloadFile(w http.ResponseWriter, r *http.Request) {
	if s.files == nil {
		errResp := NewServiceUnavailableError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	f, err := s.db.GetFile(r.Context(), r.PathValue("id"), r.PathValue("fileId"))
	if err != nil {
		errResp := s.lookupError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	u, err := s.files.PresignedURL(r.Context(), f.ObjectKey, f.Name, presignExpiry)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	http.Redirect(w, r, u, http.StatusFound)
}

func (s *NotepadApp) serveWs(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFrom(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			// only allow connections from allowed origins
			origin := r.Header.Get("Origin")
			if origin == "" {
				// if no origin header, allow the request
				return true
			}

			return slices.Contains(s.allowedOrigins, origin)
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warnf("error upgrading connection: %v", err)
		return
	}

	client := server.NewClient(identity, conn, s.ns, s.log)
	if err := s.ns.RegisterClient(client); err != nil {
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, err.Error()))
		conn.Close()
		return
	}

	go client.Write()
	go client.Read()
}

func toFeedback(fb database.Feedback) types.Feedback {
	return types.Feedback{
		Id:        fb.Id,
		NotepadId: fb.NotepadId,
		Line:      fb.Line,
		Text:      fb.Text,
		Author:    fb.Author,
		CreatedAt: fb.CreatedAt,
	}
}

func toFile(f database.File) types.File {
	return types.File{
		Id:          f.Id,
		NotepadId:   f.NotepadId,
		Name:        f.Name,
		ContentType: f.ContentType,
		Size:        f.Size,
		UploadedBy:  f.UploadedBy,
		CreatedAt:   f.CreatedAt,
	}
}
