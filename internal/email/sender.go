package email

import (
	"context"

	"go.uber.org/zap"
)

// Sender entrega las instrucciones de restablecimiento de contraseña.
type Sender interface {
	SendPasswordReset(ctx context.Context, toEmail, name string) error
}

type logSender struct {
	logger *zap.Logger
}

// NewLogSender no envia correo: solo registra la solicitud.
func NewLogSender(logger *zap.Logger) Sender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &logSender{logger: logger}
}

func (s *logSender) SendPasswordReset(_ context.Context, toEmail, _ string) error {
	s.logger.Info("password reset requested", zap.String("email", toEmail))
	return nil
}
