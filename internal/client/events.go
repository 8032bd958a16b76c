package client

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"chattersphere/internal/broadcast"
)

// EventFeed implementa broadcast.Broadcaster leyendo GET /events/ws.
// El servidor ya publica al persistir cada mensaje, por eso Publish no hace nada.
type EventFeed struct {
	url    string
	dialer *websocket.Dialer
	logger *zap.Logger
}

var _ broadcast.Broadcaster = (*EventFeed)(nil)

// EventFeed devuelve el feed de eventos de las conversaciones de userID.
func (c *Client) EventFeed(userID string) (*EventFeed, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/events/ws"
	u.RawQuery = url.Values{"userId": {userID}}.Encode()

	return &EventFeed{
		url:    u.String(),
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		logger: c.logger,
	}, nil
}

func (f *EventFeed) Publish(context.Context, string, []byte) error {
	return nil
}

// Subscribe abre una conexion por suscripcion; el topico lo fija el servidor.
func (f *EventFeed) Subscribe(ctx context.Context, _ string, handler broadcast.Handler) (func(), error) {
	conn, _, err := f.dialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial events: %w", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, payload, err := conn.ReadMessage()
			if err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
					f.logger.Debug("event feed closed", zap.Error(err))
				}
				return
			}
			handler(payload)
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			_ = conn.Close()
			<-done
		})
	}, nil
}
