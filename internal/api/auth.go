package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/npezzotti/go-notepad/internal/auth"
	"github.com/npezzotti/go-notepad/internal/database"
)

const tokenCookieKey = "token"

type LoginRequest struct {
	Username string `json:"username" validate:"required,max=64"`
	Password string `json:"password" validate:"required,max=72"`
}

// login answers 200 for both valid and invalid credentials; only a valid
// result sets the session cookie.
func (s *NotepadApp) login(w http.ResponseWriter, r *http.Request) {
	var lr LoginRequest
	if errResp := s.decode(r, &lr); errResp != nil {
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	res, err := s.verifier.Verify(r.Context(), r.PathValue("id"), lr.Username, lr.Password)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, database.ErrNotFound) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if !res.Valid {
		s.writeJson(w, http.StatusOK, auth.Result{})
		return
	}

	token, err := s.tokens.Issue(res.Identity)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	http.SetCookie(w, createJwtCookie(token, s.tokens.TTL()))
	s.writeJson(w, http.StatusOK, res)
}

func (s *NotepadApp) logout(w http.ResponseWriter, _ *http.Request) {
	// instruct browser to delete cookie by overwriting it with an expired token
	c := createJwtCookie("", 0)
	c.MaxAge = -1
	http.SetCookie(w, c)
	w.WriteHeader(http.StatusNoContent)
}

func createJwtCookie(tokenString string, exp time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     tokenCookieKey,
		Value:    tokenString,
		Path:     "/",
		Expires:  time.Now().Add(exp),
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	}
}
