package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"chattersphere/internal/broadcast"
	"chattersphere/internal/domain"
	"chattersphere/internal/repository"
)

var ErrMessageServiceNotConfigured = errors.New("message service not configured")

// ActivityRecorder registra la ultima actividad de un usuario.
type ActivityRecorder interface {
	Touch(ctx context.Context, id string, at time.Time) error
}

// MessageService encapsula la lógica para manejar mensajes entre dos usuarios.
type MessageService struct {
	logger   *zap.Logger
	repo     repository.MessageRepository
	activity ActivityRecorder
	notifier broadcast.Broadcaster
	topic    string
	now      func() time.Time
}

func NewMessageService(logger *zap.Logger, repo repository.MessageRepository, activity ActivityRecorder, notifier broadcast.Broadcaster, topic string) *MessageService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if topic == "" {
		topic = broadcast.DefaultTopic
	}
	return &MessageService{
		logger:   logger,
		repo:     repo,
		activity: activity,
		notifier: notifier,
		topic:    topic,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock reemplaza el reloj usado para created_at.
func (s *MessageService) WithClock(now func() time.Time) *MessageService {
	if now != nil {
		s.now = now
	}
	return s
}

// Append persiste un mensaje; cada insert es independiente de los demas.
func (s *MessageService) Append(ctx context.Context, senderID, receiverID, body string) (domain.Message, error) {
	if s == nil || s.repo == nil {
		return domain.Message{}, ErrMessageServiceNotConfigured
	}

	senderID = strings.TrimSpace(senderID)
	receiverID = strings.TrimSpace(receiverID)
	if senderID == "" || receiverID == "" {
		return domain.Message{}, ErrInvalidInput
	}
	body, err := domain.NormalizeBody(body)
	if err != nil {
		return domain.Message{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	msg, err := s.repo.Create(ctx, domain.Message{
		SenderID:   senderID,
		ReceiverID: receiverID,
		Body:       body,
		CreatedAt:  s.now(),
	})
	if err != nil {
		return domain.Message{}, err
	}

	if s.activity != nil {
		if err := s.activity.Touch(ctx, senderID, msg.CreatedAt); err != nil {
			s.logger.Debug("touch sender failed", zap.Error(err), zap.String("user_id", senderID))
		}
	}
	if err := broadcast.PublishEvent(ctx, s.notifier, s.topic, domain.NewDeliveryEvent(msg)); err != nil {
		s.logger.Warn("publish delivery event failed", zap.Error(err), zap.Int64("message_id", msg.ID))
	}
	return msg, nil
}

// ListBetween devuelve los mensajes del par en ambas direcciones, en orden ascendente.
func (s *MessageService) ListBetween(ctx context.Context, userA, userB string) ([]domain.Message, error) {
	if s == nil || s.repo == nil {
		return nil, ErrMessageServiceNotConfigured
	}
	userA = strings.TrimSpace(userA)
	userB = strings.TrimSpace(userB)
	if userA == "" || userB == "" {
		return nil, ErrInvalidInput
	}
	return s.repo.ListBetween(ctx, userA, userB)
}
