// Package chat implementa la vista cliente de una conversacion y del directorio de usuarios.
package chat

import (
	"context"

	"chattersphere/internal/domain"
)

// MessageStore es el almacen de mensajes que usa una sesion.
// service.MessageService y client.Client lo implementan.
type MessageStore interface {
	Append(ctx context.Context, senderID, receiverID, body string) (domain.Message, error)
	ListBetween(ctx context.Context, userA, userB string) ([]domain.Message, error)
}

// UserLister devuelve el listado publico de usuarios.
type UserLister interface {
	ListPublicUsers(ctx context.Context) ([]domain.PublicUser, error)
}

// UserListerFunc adapta una funcion a UserLister.
type UserListerFunc func(ctx context.Context) ([]domain.PublicUser, error)

func (f UserListerFunc) ListPublicUsers(ctx context.Context) ([]domain.PublicUser, error) {
	return f(ctx)
}
