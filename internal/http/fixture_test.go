package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"chattersphere/internal/broadcast"
	"chattersphere/internal/repository"
	"chattersphere/internal/service"
)

type apiFixture struct {
	router   *gin.Engine
	users    *repository.MemoryUserRepository
	messages *repository.MemoryMessageRepository
	bus      *broadcast.Memory
	sender   *recordingSender
	userSvc  *service.UserService
	jwtSvc   *service.JWTService
}

type recordingSender struct {
	sent []string
	err  error
}

func (r *recordingSender) SendPasswordReset(_ context.Context, toEmail, _ string) error {
	r.sent = append(r.sent, toEmail)
	return r.err
}

func newAPIFixture(t *testing.T, jwtSecret string, limiter service.RateLimiter) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()

	f := &apiFixture{
		users:    repository.NewMemoryUserRepository(),
		messages: repository.NewMemoryMessageRepository(),
		bus:      broadcast.NewMemory(),
		sender:   &recordingSender{},
	}
	if limiter == nil {
		limiter = service.NewRateLimiter(time.Minute, 100)
	}
	f.userSvc = service.NewUserService(logger, f.users, service.PlainSecrets{}, f.sender, limiter)
	msgSvc := service.NewMessageService(logger, f.messages, f.users, f.bus, broadcast.DefaultTopic)
	f.jwtSvc = service.NewJWTServiceWithStore(jwtSecret, 15*time.Minute, time.Hour, service.NewMemoryRefreshTokenStore())

	f.router = NewRouter(
		logger,
		NewUserHandler(logger, f.userSvc, f.jwtSvc),
		NewChatHandler(logger, msgSvc),
		NewStreamHandler(logger, f.bus, broadcast.DefaultTopic),
		NewHealthHandler(nil),
		f.jwtSvc,
	)
	return f
}

func (f *apiFixture) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

type userEnvelope struct {
	Success bool `json:"success"`
	User    struct {
		ID       string    `json:"id"`
		Name     string    `json:"name"`
		Email    string    `json:"email"`
		IsOnline bool      `json:"isOnline"`
		LastSeen time.Time `json:"lastSeen"`
	} `json:"user"`
	Tokens *service.TokenPair `json:"tokens"`
	Error  string             `json:"error"`
}

func (f *apiFixture) register(t *testing.T, name, email, password string) userEnvelope {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/users", map[string]string{"name": name, "email": email, "password": password})
	if rec.Code != http.StatusOK {
		t.Fatalf("register %s: expected 200, got %d (%s)", email, rec.Code, rec.Body.String())
	}
	var env userEnvelope
	decodeJSON(t, rec, &env)
	return env
}
