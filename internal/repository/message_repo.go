package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"chattersphere/internal/domain"
)

type MessageRepository interface {
	Create(ctx context.Context, message domain.Message) (domain.Message, error)
	ListBetween(ctx context.Context, userA, userB string) ([]domain.Message, error)
}

type PgMessageRepository struct {
	pool *pgxpool.Pool
}

func NewPgMessageRepository(pool *pgxpool.Pool) *PgMessageRepository {
	return &PgMessageRepository{pool: pool}
}

// Create inserta el mensaje; el id lo asigna la base.
func (r *PgMessageRepository) Create(ctx context.Context, message domain.Message) (domain.Message, error) {
	const query = `
		INSERT INTO messages (sender_id, receiver_id, content, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		RETURNING id, created_at
	`
	err := r.pool.QueryRow(ctx, query,
		message.SenderID,
		message.ReceiverID,
		message.Body,
		message.CreatedAt,
	).Scan(&message.ID, &message.CreatedAt)
	if err != nil {
		return domain.Message{}, err
	}
	return message, nil
}

func (r *PgMessageRepository) ListBetween(ctx context.Context, userA, userB string) ([]domain.Message, error) {
	const query = `
		SELECT id, sender_id, receiver_id, content, created_at
		FROM messages
		WHERE (sender_id = $1 AND receiver_id = $2)
		   OR (sender_id = $2 AND receiver_id = $1)
		ORDER BY created_at ASC, id ASC
	`

	rows, err := r.pool.Query(ctx, query, userA, userB)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := []domain.Message{}
	for rows.Next() {
		var msg domain.Message
		err = rows.Scan(
			&msg.ID,
			&msg.SenderID,
			&msg.ReceiverID,
			&msg.Body,
			&msg.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return messages, nil
}
