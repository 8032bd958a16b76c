package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"chattersphere/internal/broadcast"
	"chattersphere/internal/domain"
	apihttp "chattersphere/internal/http"
	"chattersphere/internal/repository"
	"chattersphere/internal/service"
)

type testServer struct {
	*httptest.Server
	bus *broadcast.Memory
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()

	users := repository.NewMemoryUserRepository()
	bus := broadcast.NewMemory()
	userSvc := service.NewUserService(logger, users, service.PlainSecrets{}, nil, service.NewRateLimiter(time.Minute, 1))
	msgSvc := service.NewMessageService(logger, repository.NewMemoryMessageRepository(), users, bus, broadcast.DefaultTopic)

	router := apihttp.NewRouter(
		logger,
		apihttp.NewUserHandler(logger, userSvc, nil),
		apihttp.NewChatHandler(logger, msgSvc),
		apihttp.NewStreamHandler(logger, bus, broadcast.DefaultTopic),
		apihttp.NewHealthHandler(nil),
		nil,
	)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, bus: bus}
}

func TestClient_RegisterLoginAndList(t *testing.T) {
	srv := newTestServer(t)
	c := New(srv.URL+"/", nil)
	ctx := context.Background()

	ana, err := c.Register(ctx, "Ana", "ana@x.com", "secret1")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if ana.ID == "" || ana.Name != "Ana" || !ana.IsOnline {
		t.Fatalf("unexpected user: %+v", ana)
	}

	_, err = c.Register(ctx, "Ana", "ana@x.com", "secret1")
	if StatusOf(err) != http.StatusBadRequest {
		t.Fatalf("expected 400 on duplicate, got %v", err)
	}

	logged, err := c.Login(ctx, "ana@x.com", "secret1")
	if err != nil || logged.ID != ana.ID {
		t.Fatalf("login: %+v %v", logged, err)
	}
	if _, err := c.Login(ctx, "ana@x.com", "wrong"); StatusOf(err) != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", err)
	}

	users, err := c.ListPublicUsers(ctx)
	if err != nil || len(users) != 1 || users[0].Email != "ana@x.com" {
		t.Fatalf("list users: %+v %v", users, err)
	}
}

func TestClient_ResetPassword(t *testing.T) {
	srv := newTestServer(t)
	c := New(srv.URL, nil)
	ctx := context.Background()
	if _, err := c.Register(ctx, "Ana", "ana@x.com", "secret1"); err != nil {
		t.Fatalf("register: %v", err)
	}

	msg, err := c.ResetPassword(ctx, "ana@x.com")
	if err != nil || msg == "" {
		t.Fatalf("reset: %q %v", msg, err)
	}
	if _, err := c.ResetPassword(ctx, "ana@x.com"); StatusOf(err) != http.StatusTooManyRequests {
		t.Fatalf("expected 429 on second reset, got %v", err)
	}
	if _, err := c.ResetPassword(ctx, "ghost@x.com"); StatusOf(err) != http.StatusNotFound {
		t.Fatalf("expected 404, got %v", err)
	}
}

func TestClient_AppendAndListBetween(t *testing.T) {
	srv := newTestServer(t)
	c := New(srv.URL, nil)
	ctx := context.Background()

	first, err := c.Append(ctx, "u1", "u2", " hola ")
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if first.ID == 0 || first.Body != "hola" || first.CreatedAt.IsZero() {
		t.Fatalf("unexpected message: %+v", first)
	}
	if _, err := c.Append(ctx, "u2", "u1", "que tal"); err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := c.Append(ctx, "u1", "u2", "   "); StatusOf(err) != http.StatusBadRequest {
		t.Fatalf("expected 400 for blank body, got %v", err)
	}

	msgs, err := c.ListBetween(ctx, "u2", "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(msgs) != 2 || msgs[0].ID != first.ID || msgs[1].Body != "que tal" {
		t.Fatalf("unexpected history: %+v", msgs)
	}
}

func TestClient_APIErrorWithoutBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := New(srv.URL, nil).ListPublicUsers(context.Background())
	if StatusOf(err) != http.StatusBadGateway {
		t.Fatalf("expected 502, got %v", err)
	}
	if StatusOf(context.Canceled) != 0 {
		t.Fatalf("expected 0 for non api errors")
	}
}

func TestEventFeed_ReceivesServerPublications(t *testing.T) {
	srv := newTestServer(t)
	c := New(srv.URL, nil)
	ctx := context.Background()

	feed, err := c.EventFeed("u1")
	if err != nil {
		t.Fatalf("event feed: %v", err)
	}
	got := make(chan domain.DeliveryEvent, 4)
	unsubscribe, err := feed.Subscribe(ctx, broadcast.DefaultTopic, func(payload []byte) {
		if ev, err := broadcast.DecodeEvent(payload); err == nil {
			got <- ev
		}
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for srv.bus.Subscribers(broadcast.DefaultTopic) != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("server never registered the subscription")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := feed.Publish(ctx, broadcast.DefaultTopic, []byte("ignored")); err != nil {
		t.Fatalf("publish should be a no-op: %v", err)
	}
	if _, err := c.Append(ctx, "u2", "u1", "hola"); err != nil {
		t.Fatalf("append: %v", err)
	}

	select {
	case ev := <-got:
		if ev.ConversationKey != "u1-u2" || ev.SenderID != "u2" {
			t.Fatalf("unexpected event: %+v", ev)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("no event received")
	}

	unsubscribe()
	unsubscribe()
	deadline = time.Now().Add(2 * time.Second)
	for srv.bus.Subscribers(broadcast.DefaultTopic) != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("server kept the subscription after unsubscribe")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestEventFeed_URL(t *testing.T) {
	feed, err := New("https://chat.example.com/api/", nil).EventFeed("u 1")
	if err != nil {
		t.Fatalf("event feed: %v", err)
	}
	if feed.url != "wss://chat.example.com/api/events/ws?userId=u+1" {
		t.Fatalf("unexpected url %q", feed.url)
	}
}
