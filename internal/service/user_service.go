package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	passwordvalidator "github.com/wagslane/go-password-validator"
	"go.uber.org/zap"

	"chattersphere/internal/domain"
	"chattersphere/internal/email"
	"chattersphere/internal/repository"
)

// MinPasswordLength replica la regla del formulario de registro.
const MinPasswordLength = 6

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrPasswordTooShort   = fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, MinPasswordLength)
	ErrWeakPassword       = fmt.Errorf("%w: password is not strong enough", ErrInvalidInput)
	ErrDuplicateEmail     = errors.New("email already registered")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrRateLimited        = errors.New("rate limited")
	ErrResetSendFailure   = errors.New("password reset delivery failed")
)

// UserService coordina reglas de negocio para el directorio de usuarios.
type UserService struct {
	logger   *zap.Logger
	users    repository.UserRepository
	secrets  SecretHasher
	notifier email.Sender
	limiter  RateLimiter
	now      func() time.Time

	// minEntropy en bits; 0 deja solo la regla de longitud minima.
	minEntropy float64
}

func NewUserService(logger *zap.Logger, users repository.UserRepository, secrets SecretHasher, notifier email.Sender, limiter RateLimiter) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if secrets == nil {
		secrets = PlainSecrets{}
	}
	if notifier == nil {
		notifier = email.NewLogSender(logger)
	}
	if limiter == nil {
		limiter = NewRateLimiter(10*time.Minute, 3)
	}
	return &UserService{
		logger:   logger,
		users:    users,
		secrets:  secrets,
		notifier: notifier,
		limiter:  limiter,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithPasswordEntropy exige una entropia minima (bits) a las contraseñas nuevas.
func (s *UserService) WithPasswordEntropy(bits float64) *UserService {
	if bits > 0 {
		s.minEntropy = bits
	}
	return s
}

type CreateUserInput struct {
	Name     string
	Email    string
	Password string
}

// EmailExists indica si hay un usuario no eliminado con ese email exacto.
func (s *UserService) EmailExists(ctx context.Context, emailAddr string) (bool, error) {
	if s.users == nil {
		return false, errors.New("user service not configured")
	}
	emailAddr = strings.TrimSpace(emailAddr)
	if emailAddr == "" {
		return false, nil
	}
	return s.users.ExistsByEmail(ctx, emailAddr)
}

// CreateUser registra un usuario. El chequeo de email y el insert no son atomicos:
// dos registros concurrentes con el mismo email pueden pasar ambos.
func (s *UserService) CreateUser(ctx context.Context, input CreateUserInput) (domain.User, error) {
	if s.users == nil {
		return domain.User{}, errors.New("user service not configured")
	}

	name := strings.TrimSpace(input.Name)
	emailAddr := strings.TrimSpace(input.Email)
	if name == "" || emailAddr == "" || input.Password == "" {
		return domain.User{}, ErrInvalidInput
	}
	if len(input.Password) < MinPasswordLength {
		return domain.User{}, ErrPasswordTooShort
	}
	if s.minEntropy > 0 {
		if err := passwordvalidator.Validate(input.Password, s.minEntropy); err != nil {
			return domain.User{}, fmt.Errorf("%w: %s", ErrWeakPassword, err.Error())
		}
	}

	exists, err := s.users.ExistsByEmail(ctx, emailAddr)
	if err != nil {
		return domain.User{}, err
	}
	if exists {
		return domain.User{}, ErrDuplicateEmail
	}

	secret, err := s.secrets.Hash(input.Password)
	if err != nil {
		return domain.User{}, err
	}

	now := s.now()
	user := domain.User{
		ID:        uuid.NewString(),
		Name:      name,
		Email:     emailAddr,
		Secret:    secret,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return domain.User{}, err
	}
	return user, nil
}

func (s *UserService) Authenticate(ctx context.Context, emailAddr, password string) (domain.User, error) {
	if s.users == nil {
		return domain.User{}, errors.New("user service not configured")
	}

	emailAddr = strings.TrimSpace(emailAddr)
	if emailAddr == "" || password == "" {
		return domain.User{}, ErrInvalidCredentials
	}
	user, err := s.users.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, ErrInvalidCredentials
		}
		return domain.User{}, err
	}
	if !s.secrets.Matches(user.Secret, password) {
		return domain.User{}, ErrInvalidCredentials
	}

	now := s.now()
	if err := s.users.Touch(ctx, user.ID, now); err != nil {
		s.logger.Warn("touch user on login failed", zap.Error(err), zap.String("user_id", user.ID))
	} else {
		user.UpdatedAt = now
	}
	return user, nil
}

// ListUsers devuelve los usuarios no eliminados, los mas nuevos primero.
func (s *UserService) ListUsers(ctx context.Context) ([]domain.User, error) {
	if s.users == nil {
		return nil, errors.New("user service not configured")
	}
	return s.users.List(ctx)
}

func (s *UserService) GetUser(ctx context.Context, id string) (domain.User, error) {
	if s.users == nil {
		return domain.User{}, errors.New("user service not configured")
	}
	user, err := s.users.GetByID(ctx, strings.TrimSpace(id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, ErrUserNotFound
	}
	return user, err
}

// RequestPasswordReset valida el email y delega el aviso al notifier configurado.
func (s *UserService) RequestPasswordReset(ctx context.Context, emailAddr string) error {
	if s.users == nil {
		return errors.New("user service not configured")
	}

	emailAddr = strings.TrimSpace(emailAddr)
	if emailAddr == "" {
		return ErrInvalidInput
	}
	if s.limiter != nil && !s.limiter.Allow(emailAddr) {
		return ErrRateLimited
	}

	user, err := s.users.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrUserNotFound
		}
		return err
	}

	if err := s.notifier.SendPasswordReset(ctx, user.Email, user.Name); err != nil {
		s.logger.Warn("send password reset failed", zap.Error(err), zap.String("email", user.Email))
		return ErrResetSendFailure
	}
	return nil
}
