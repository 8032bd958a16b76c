package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"chattersphere/internal/domain"
)

// MemoryUserRepository guarda usuarios en memoria; se usa sin DATABASE_URL y en tests.
// Los "no encontrado" devuelven pgx.ErrNoRows igual que la implementacion Postgres.
type MemoryUserRepository struct {
	mu    sync.RWMutex
	users []domain.User
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{}
}

func (r *MemoryUserRepository) Create(_ context.Context, user domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users = append(r.users, user)
	return nil
}

func (r *MemoryUserRepository) GetByID(_ context.Context, id string) (domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if u.ID == id && u.DeletedAt == nil {
			return u, nil
		}
	}
	return domain.User{}, pgx.ErrNoRows
}

func (r *MemoryUserRepository) GetByEmail(_ context.Context, email string) (domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if u.Email == email && u.DeletedAt == nil {
			return u, nil
		}
	}
	return domain.User{}, pgx.ErrNoRows
}

func (r *MemoryUserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, err := r.GetByEmail(ctx, email)
	if err != nil {
		return false, nil
	}
	return true, nil
}

func (r *MemoryUserRepository) List(_ context.Context) ([]domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.User, 0, len(r.users))
	for _, u := range r.users {
		if u.DeletedAt == nil {
			out = append(out, u)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r *MemoryUserRepository) Touch(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.users {
		if r.users[i].ID == id && r.users[i].DeletedAt == nil {
			r.users[i].UpdatedAt = at
			return nil
		}
	}
	return pgx.ErrNoRows
}

// MemoryMessageRepository asigna ids monotonicos como lo haria un BIGSERIAL.
type MemoryMessageRepository struct {
	mu       sync.RWMutex
	nextID   int64
	messages []domain.Message
}

func NewMemoryMessageRepository() *MemoryMessageRepository {
	return &MemoryMessageRepository{}
}

func (r *MemoryMessageRepository) Create(_ context.Context, message domain.Message) (domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	message.ID = r.nextID
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now().UTC()
	}
	r.messages = append(r.messages, message)
	return message, nil
}

func (r *MemoryMessageRepository) ListBetween(_ context.Context, userA, userB string) ([]domain.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []domain.Message{}
	for _, m := range r.messages {
		if m.Involves(userA, userB) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Less(out[j])
	})
	return out, nil
}
