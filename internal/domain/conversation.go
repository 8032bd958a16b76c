package domain

import (
	"sort"
	"strings"
)

// ConversationKey deriva la clave simetrica de un par de usuarios. Con ids que
// contienen "-" dos pares distintos pueden compartir clave ("a","b-c" y "a-b","c");
// los eventos llevan ademas los dos extremos para desambiguar.
func ConversationKey(a, b string) string {
	ids := []string{a, b}
	sort.Strings(ids)
	return strings.Join(ids, "-")
}

// DeliveryEvent se publica cada vez que se persiste un mensaje de una conversacion.
type DeliveryEvent struct {
	ConversationKey string `json:"conversationKey"`
	MessageID       int64  `json:"messageId"`
	SenderID        string `json:"senderId"`
	ReceiverID      string `json:"receiverId,omitempty"`
}

func NewDeliveryEvent(msg Message) DeliveryEvent {
	return DeliveryEvent{
		ConversationKey: ConversationKey(msg.SenderID, msg.ReceiverID),
		MessageID:       msg.ID,
		SenderID:        msg.SenderID,
		ReceiverID:      msg.ReceiverID,
	}
}

// Matches indica si el evento pertenece a la conversacion {a,b}. Los eventos sin
// receptor solo se comparan por clave.
func (e DeliveryEvent) Matches(a, b string) bool {
	if e.ConversationKey != ConversationKey(a, b) {
		return false
	}
	if e.ReceiverID == "" {
		return true
	}
	return (e.SenderID == a && e.ReceiverID == b) || (e.SenderID == b && e.ReceiverID == a)
}

// Includes indica si userID es uno de los extremos de la conversacion del evento.
func (e DeliveryEvent) Includes(userID string) bool {
	if e.ReceiverID != "" {
		return e.SenderID == userID || e.ReceiverID == userID
	}
	return strings.HasPrefix(e.ConversationKey, userID+"-") || strings.HasSuffix(e.ConversationKey, "-"+userID)
}

// Involves indica si el mensaje pertenece al par {a,b} en cualquier direccion.
func (m Message) Involves(a, b string) bool {
	return (m.SenderID == a && m.ReceiverID == b) || (m.SenderID == b && m.ReceiverID == a)
}
