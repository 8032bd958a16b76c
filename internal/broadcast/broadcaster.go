// Package broadcast notifica a las sesiones abiertas que una conversacion cambio.
package broadcast

import (
	"context"
	"encoding/json"
	"errors"

	"chattersphere/internal/domain"
)

// DefaultTopic es el topico fijo donde se publican los eventos de entrega.
const DefaultTopic = "chattersphere.chats"

var ErrClosed = errors.New("broadcaster closed")

// Handler recibe el payload crudo de cada publicacion.
type Handler func(payload []byte)

// Broadcaster es el canal de publicacion/suscripcion compartido por las sesiones.
type Broadcaster interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Subscribe(ctx context.Context, topic string, handler Handler) (unsubscribe func(), err error)
}

// PublishEvent serializa el evento y lo publica en topic.
func PublishEvent(ctx context.Context, b Broadcaster, topic string, ev domain.DeliveryEvent) error {
	if b == nil {
		return nil
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return b.Publish(ctx, topic, payload)
}

func DecodeEvent(payload []byte) (domain.DeliveryEvent, error) {
	var ev domain.DeliveryEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return domain.DeliveryEvent{}, err
	}
	return ev, nil
}
