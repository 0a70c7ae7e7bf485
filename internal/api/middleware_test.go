package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"strconv"
	"strings"
	"testing"

	"github.com/npezzotti/go-notepad/internal/auth"
	"github.com/npezzotti/go-notepad/internal/database"
	"github.com/npezzotti/go-notepad/internal/ratelimit"
	"github.com/npezzotti/go-notepad/internal/stats"
	"github.com/npezzotti/go-notepad/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestErrorHandler_PanicRecovery(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	app := &NotepadApp{
		log: zap.New(core).Sugar(),
	}

	// handler that panics
	panicHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(errors.New("test panic"))
	})

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	handler := app.errorHandler(panicHandler)
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "close", rr.Header().Get("Connection"))
	assert.Equal(t, 1, logs.FilterMessage("panic: test panic").Len(), "expected the panic to be logged")
}

func Test_errorHandler_NoPanic(t *testing.T) {
	app := &NotepadApp{}

	// simple handler that does not panic
	called := false
	okHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	handler := app.errorHandler(okHandler)
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", rr.Body.String())
	assert.True(t, called, "expected handler to be called")
}

func Test_authMiddleware(t *testing.T) {
	app := newTestApp(t, &database.MockNotepadRepository{}, nil, nil)
	other := auth.NewTokens([]byte("other-key"), defaultJwtExpiration)
	forged, err := other.Issue(types.Identity{NotepadId: "doc1", Username: "mallory"})
	assert.NoError(t, err)

	tcases := []struct {
		name   string
		cookie *http.Cookie
		code   int
	}{
		{name: "no cookie", code: http.StatusUnauthorized},
		{name: "garbage token", cookie: createJwtCookie("garbage", defaultJwtExpiration), code: http.StatusUnauthorized},
		{name: "token signed with another key", cookie: createJwtCookie(forged, defaultJwtExpiration), code: http.StatusUnauthorized},
		{name: "valid token", cookie: sessionCookie(t, app, "doc1", "alice"), code: http.StatusOK},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			var got types.Identity
			h := app.authMiddleware(func(w http.ResponseWriter, r *http.Request) {
				got, _ = auth.IdentityFrom(r.Context())
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.cookie != nil {
				req.AddCookie(tc.cookie)
			}
			rr := httptest.NewRecorder()
			h(rr, req)

			assert.Equal(t, tc.code, rr.Code)
			if tc.code == http.StatusOK {
				assert.Equal(t, types.Identity{NotepadId: "doc1", Username: "alice"}, got)
				assert.Contains(t, rr.Header().Get("Cache-Control"), "no-store")
			}
		})
	}
}

func Test_notepadAccess(t *testing.T) {
	app, _ := newMemApp(t, nil)
	cookie := sessionCookie(t, app, "doc1", "alice")

	req := httptest.NewRequest(http.MethodGet, "/api/notepads/doc2", nil)
	req.AddCookie(cookie)
	rr := serve(app, req)
	assert.Equal(t, http.StatusForbidden, rr.Code, "expected a session for doc1 to be refused doc2")

	req = httptest.NewRequest(http.MethodGet, "/api/notepads/doc1", nil)
	req.AddCookie(cookie)
	rr = serve(app, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func Test_rateLimit(t *testing.T) {
	db := &database.MockNotepadRepository{}
	defer db.AssertExpectations(t)
	db.On("GetNotepad", mock.Anything, "missing").Return(database.Notepad{}, database.ErrNotFound).Times(3)

	su := &stats.MockStatsUpdater{}
	defer su.AssertExpectations(t)
	su.On("Incr", stats.LoginAllowed).Times(3)
	su.On("Incr", stats.LoginRejected).Once()

	app := newTestApp(t, db, nil, ratelimit.NewMemory(0.0001, 2))
	app.stats = su
	app.trustedProxies = []netip.Prefix{netip.MustParsePrefix("10.0.0.0/8")}

	assert.Equal(t, http.StatusNotFound, login(app, "192.0.2.1:1234", "").Code)
	assert.Equal(t, http.StatusNotFound, login(app, "192.0.2.1:5678", "").Code)

	rr := login(app, "192.0.2.1:1234", "")
	assert.Equal(t, http.StatusTooManyRequests, rr.Code, "expected third attempt from the same address to be throttled")
	assert.Equal(t, "1", rr.Header().Get("Retry-After"))

	rr = login(app, "10.0.0.5:443", "203.0.113.9")
	assert.Equal(t, http.StatusNotFound, rr.Code, "expected a client behind a trusted proxy to have its own bucket")
}

func Test_rateLimit_IgnoresForwardedHeadersFromUntrustedPeers(t *testing.T) {
	db := &database.MockNotepadRepository{}
	defer db.AssertExpectations(t)
	db.On("GetNotepad", mock.Anything, "missing").Return(database.Notepad{}, database.ErrNotFound).Once()

	app := newTestApp(t, db, nil, ratelimit.NewMemory(0.0001, 1))

	var codes []int
	for i := 0; i < 5; i++ {
		codes = append(codes, login(app, "203.0.113.9:4000", "10.0.0."+strconv.Itoa(i)).Code)
	}
	assert.Equal(t, []int{
		http.StatusNotFound,
		http.StatusTooManyRequests,
		http.StatusTooManyRequests,
		http.StatusTooManyRequests,
		http.StatusTooManyRequests,
	}, codes, "expected rotating X-Forwarded-For values to share the peer's bucket")

	req := httptest.NewRequest(http.MethodPost, "/api/notepads/missing/login", strings.NewReader(`{}`))
	req.RemoteAddr = "203.0.113.9:4000"
	req.Header.Set("X-Real-IP", "198.51.100.1")
	assert.Equal(t, http.StatusTooManyRequests, serve(app, req).Code)
}

func Test_fromTrustedProxy(t *testing.T) {
	app := &NotepadApp{trustedProxies: []netip.Prefix{
		netip.MustParsePrefix("10.0.0.0/8"),
		netip.MustParsePrefix("::1/128"),
	}}

	tcases := map[string]bool{
		"10.1.2.3:80":           true,
		"[::1]:80":              true,
		"[::ffff:10.0.0.1]:443": true,
		"192.0.2.1:80":          false,
		"":                      false,
	}

	for addr, expected := range tcases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = addr
		assert.Equal(t, expected, app.fromTrustedProxy(req), "remote addr %q", addr)
	}
}

func login(app *NotepadApp, remoteAddr, forwardedFor string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/notepads/missing/login",
		strings.NewReader(`{"username":"alice","password":"pw"}`))
	req.RemoteAddr = remoteAddr
	if forwardedFor != "" {
		req.Header.Set("X-Forwarded-For", forwardedFor)
	}
	return serve(app, req)
}

type failingLimiter struct{}

func (failingLimiter) Allow(_ context.Context, _ string) (bool, error) {
	return false, errors.New("redis down")
}

func Test_rateLimit_LimiterError(t *testing.T) {
	app := newTestApp(t, &database.MockNotepadRepository{}, nil, failingLimiter{})

	req := httptest.NewRequest(http.MethodPost, "/api/notepads/abc/login", strings.NewReader(`{}`))
	rr := serve(app, req)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func Test_clientIP(t *testing.T) {
	tcases := map[string]string{
		"192.0.2.1:1234": "192.0.2.1",
		"[::1]:80":       "::1",
		"192.0.2.1":      "192.0.2.1",
		"":               "unknown",
	}

	for addr, expected := range tcases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = addr
		assert.Equal(t, expected, clientIP(req), "remote addr %q", addr)
	}
}
