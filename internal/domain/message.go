package domain

import (
	"errors"
	"strings"
	"time"
)

var ErrEmptyBody = errors.New("message body is empty")

type Message struct {
	ID         int64     `json:"id"`
	SenderID   string    `json:"sender_id"`
	ReceiverID string    `json:"receiver_id"`
	Body       string    `json:"body"`
	CreatedAt  time.Time `json:"created_at"`
}

// PublicMessage es el formato de mensaje que consume el frontend.
type PublicMessage struct {
	ID         int64     `json:"id,string"`
	SenderID   string    `json:"senderId"`
	ReceiverID string    `json:"receiverId"`
	Message    string    `json:"message"`
	Timestamp  time.Time `json:"timestamp"`
}

func (m Message) Public() PublicMessage {
	return PublicMessage{
		ID:         m.ID,
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		Message:    m.Body,
		Timestamp:  m.CreatedAt,
	}
}

func (p PublicMessage) ToMessage() Message {
	return Message{
		ID:         p.ID,
		SenderID:   p.SenderID,
		ReceiverID: p.ReceiverID,
		Body:       p.Message,
		CreatedAt:  p.Timestamp,
	}
}

// NormalizeBody recorta espacios y rechaza cuerpos vacios.
func NormalizeBody(body string) (string, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return "", ErrEmptyBody
	}
	return body, nil
}

// Less ordena por fecha de creacion y desempata por id.
func (m Message) Less(other Message) bool {
	if m.CreatedAt.Equal(other.CreatedAt) {
		return m.ID < other.ID
	}
	return m.CreatedAt.Before(other.CreatedAt)
}
