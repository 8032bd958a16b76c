// Package client consume la API HTTP de chattersphere desde procesos cliente.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"chattersphere/internal/domain"
)

// APIError es una respuesta no exitosa de la API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error: status=%d", e.Status)
	}
	return fmt.Sprintf("api error: status=%d: %s", e.Status, e.Message)
}

// StatusOf devuelve el status HTTP si err es un *APIError, o 0.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// Client implementa chat.MessageStore y chat.UserLister sobre la API.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

func New(baseURL string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
		logger:  logger,
	}
}

type userResponse struct {
	Success bool              `json:"success"`
	User    domain.PublicUser `json:"user"`
}

// Register crea la cuenta via POST /users.
func (c *Client) Register(ctx context.Context, name, email, password string) (domain.PublicUser, error) {
	var out userResponse
	err := c.do(ctx, http.MethodPost, "/users", nil, map[string]string{
		"name":     name,
		"email":    email,
		"password": password,
	}, &out)
	return out.User, err
}

// Login autentica via POST /auth con action=login.
func (c *Client) Login(ctx context.Context, email, password string) (domain.PublicUser, error) {
	var out userResponse
	err := c.do(ctx, http.MethodPost, "/auth", nil, map[string]string{
		"email":    email,
		"password": password,
		"action":   "login",
	}, &out)
	return out.User, err
}

// ResetPassword pide el envio de instrucciones y devuelve el mensaje del servidor.
func (c *Client) ResetPassword(ctx context.Context, email string) (string, error) {
	var out struct {
		Message string `json:"message"`
	}
	err := c.do(ctx, http.MethodPost, "/auth/reset-password", nil, map[string]string{"email": email}, &out)
	return out.Message, err
}

func (c *Client) ListPublicUsers(ctx context.Context) ([]domain.PublicUser, error) {
	var out []domain.PublicUser
	if err := c.do(ctx, http.MethodGet, "/users", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Append(ctx context.Context, senderID, receiverID, body string) (domain.Message, error) {
	var out struct {
		Success bool                 `json:"success"`
		Message domain.PublicMessage `json:"message"`
	}
	err := c.do(ctx, http.MethodPost, "/messages", nil, map[string]string{
		"senderId":   senderID,
		"receiverId": receiverID,
		"message":    body,
	}, &out)
	if err != nil {
		return domain.Message{}, err
	}
	return out.Message.ToMessage(), nil
}

func (c *Client) ListBetween(ctx context.Context, userA, userB string) ([]domain.Message, error) {
	var out []domain.PublicMessage
	query := url.Values{"senderId": {userA}, "receiverId": {userB}}
	if err := c.do(ctx, http.MethodGet, "/messages", query, nil, &out); err != nil {
		return nil, err
	}
	msgs := make([]domain.Message, 0, len(out))
	for _, m := range out {
		msgs = append(msgs, m.ToMessage())
	}
	return msgs, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(respBody, &apiErr)
		c.logger.Debug("api error status",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
		)
		return &APIError{Status: resp.StatusCode, Message: apiErr.Error}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}
