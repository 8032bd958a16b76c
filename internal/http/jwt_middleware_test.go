package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"chattersphere/internal/domain"
	"chattersphere/internal/service"
)

func protectedRouter(jwtSvc *service.JWTService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/protected", JWTAuthMiddleware(jwtSvc), func(c *gin.Context) {
		claims, ok := GetAuthClaims(c)
		if !ok || claims.UserID != "u1" {
			c.Status(http.StatusUnauthorized)
			return
		}
		c.Status(http.StatusOK)
	})
	return r
}

func TestJWTAuthMiddleware_AllowsValidAccessToken(t *testing.T) {
	jwtSvc := service.NewJWTServiceWithStore("secret", 15*time.Minute, 30*time.Minute, service.NewMemoryRefreshTokenStore())
	pair, err := jwtSvc.GeneratePair(context.Background(), domain.User{ID: "u1", Email: "user@example.com", Name: "U"})
	if err != nil {
		t.Fatalf("generate pair: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	rec := httptest.NewRecorder()
	protectedRouter(jwtSvc).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestJWTAuthMiddleware_RejectsMissingToken(t *testing.T) {
	jwtSvc := service.NewJWTServiceWithStore("secret", 15*time.Minute, 30*time.Minute, service.NewMemoryRefreshTokenStore())

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	rec := httptest.NewRecorder()
	protectedRouter(jwtSvc).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestJWTAuthMiddleware_RejectsRefreshTokenAsAccess(t *testing.T) {
	jwtSvc := service.NewJWTServiceWithStore("secret", 15*time.Minute, 30*time.Minute, service.NewMemoryRefreshTokenStore())
	pair, err := jwtSvc.GeneratePair(context.Background(), domain.User{ID: "u1", Email: "user@example.com"})
	if err != nil {
		t.Fatalf("generate pair: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+pair.RefreshToken)
	rec := httptest.NewRecorder()
	protectedRouter(jwtSvc).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestJWTAuthMiddleware_DisabledService(t *testing.T) {
	jwtSvc := service.NewJWTService("", 0, 0)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer whatever")
	rec := httptest.NewRecorder()
	protectedRouter(jwtSvc).ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}

func TestOptionalJWTMiddleware(t *testing.T) {
	jwtSvc := service.NewJWTServiceWithStore("secret", 15*time.Minute, 30*time.Minute, service.NewMemoryRefreshTokenStore())
	pair, err := jwtSvc.GeneratePair(context.Background(), domain.User{ID: "u1", Email: "user@example.com"})
	if err != nil {
		t.Fatalf("generate pair: %v", err)
	}

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/open", OptionalJWTMiddleware(jwtSvc), func(c *gin.Context) {
		claims, ok := GetAuthClaims(c)
		if ok {
			c.String(http.StatusOK, claims.UserID)
			return
		}
		c.String(http.StatusOK, "anonymous")
	})

	cases := []struct {
		name     string
		path     string
		header   string
		wantCode int
		wantBody string
	}{
		{"no token", "/open", "", http.StatusOK, "anonymous"},
		{"bearer header", "/open", "Bearer " + pair.AccessToken, http.StatusOK, "u1"},
		{"lowercase scheme", "/open", "bearer " + pair.AccessToken, http.StatusOK, "u1"},
		{"query token", "/open?access_token=" + pair.AccessToken, "", http.StatusOK, "u1"},
		{"garbage token", "/open", "Bearer nope", http.StatusUnauthorized, ""},
		{"refresh as access", "/open?access_token=" + pair.RefreshToken, "", http.StatusUnauthorized, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			if rec.Code != tc.wantCode {
				t.Fatalf("expected %d, got %d (%s)", tc.wantCode, rec.Code, rec.Body.String())
			}
			if tc.wantBody != "" && rec.Body.String() != tc.wantBody {
				t.Fatalf("expected body %q, got %q", tc.wantBody, rec.Body.String())
			}
		})
	}
}

func TestOptionalJWTMiddleware_DisabledServicePassesThrough(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/open", OptionalJWTMiddleware(nil), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	req := httptest.NewRequest(http.MethodGet, "/open", nil)
	req.Header.Set("Authorization", "Bearer whatever")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
}

func TestMessagesRejectTokenOfAnotherUser(t *testing.T) {
	f := newAPIFixture(t, "secret", nil)
	alice := f.register(t, "Alice", "alice@example.com", "secret1")
	bob := f.register(t, "Bob", "bob@example.com", "secret1")
	carol := f.register(t, "Carol", "carol@example.com", "secret1")
	if alice.Tokens == nil || carol.Tokens == nil {
		t.Fatalf("expected tokens on register")
	}
	asAlice := []string{"Authorization", "Bearer " + alice.Tokens.AccessToken}
	asCarol := []string{"Authorization", "Bearer " + carol.Tokens.AccessToken}

	body := map[string]string{"senderId": bob.User.ID, "receiverId": alice.User.ID, "message": "spoofed"}
	if rec := f.do(t, http.MethodPost, "/messages", body, asAlice...); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for foreign sender, got %d", rec.Code)
	}
	stored, err := f.messages.ListBetween(context.Background(), alice.User.ID, bob.User.ID)
	if err != nil || len(stored) != 0 {
		t.Fatalf("expected nothing stored, got %d (%v)", len(stored), err)
	}

	body["senderId"] = alice.User.ID
	body["receiverId"] = bob.User.ID
	body["message"] = "hola"
	if rec := f.do(t, http.MethodPost, "/messages", body, asAlice...); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for own sender, got %d (%s)", rec.Code, rec.Body.String())
	}
	if rec := f.do(t, http.MethodPost, "/messages", map[string]string{"senderId": bob.User.ID, "receiverId": alice.User.ID, "message": "anon"}); rec.Code != http.StatusOK {
		t.Fatalf("expected anonymous post allowed, got %d", rec.Code)
	}

	pair := "/messages?senderId=" + alice.User.ID + "&receiverId=" + bob.User.ID
	if rec := f.do(t, http.MethodGet, pair, nil, asCarol...); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 listing a foreign conversation, got %d", rec.Code)
	}
	if rec := f.do(t, http.MethodGet, pair, nil, asAlice...); rec.Code != http.StatusOK {
		t.Fatalf("expected participant listing allowed, got %d", rec.Code)
	}
	if rec := f.do(t, http.MethodGet, "/events/ws?userId="+bob.User.ID+"&access_token="+alice.Tokens.AccessToken, nil); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 subscribing as another user, got %d", rec.Code)
	}
}
