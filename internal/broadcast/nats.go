package broadcast

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// NATS publica los eventos como mensajes core (sin persistencia).
type NATS struct {
	nc *nats.Conn
}

func NewNATS(url, name string) (*NATS, error) {
	if strings.TrimSpace(url) == "" {
		return nil, errors.New("nats url missing")
	}
	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(500*time.Millisecond),
		nats.ReconnectJitter(100*time.Millisecond, 500*time.Millisecond),
		nats.Timeout(3*time.Second),
	)
	if err != nil {
		return nil, err
	}
	return &NATS{nc: nc}, nil
}

func (n *NATS) Publish(_ context.Context, topic string, payload []byte) error {
	return n.nc.Publish(topic, payload)
}

func (n *NATS) Subscribe(_ context.Context, topic string, handler Handler) (func(), error) {
	sub, err := n.nc.Subscribe(topic, func(m *nats.Msg) {
		handler(append([]byte(nil), m.Data...))
	})
	if err != nil {
		return nil, err
	}
	var once sync.Once
	return func() {
		once.Do(func() { _ = sub.Unsubscribe() })
	}, nil
}

// Close drena las suscripciones pendientes y cierra la conexion.
func (n *NATS) Close() error {
	if n == nil || n.nc == nil {
		return nil
	}
	return n.nc.Drain()
}

// Ping hace un round trip al servidor.
func (n *NATS) Ping(ctx context.Context) error {
	return n.nc.FlushWithContext(ctx)
}
