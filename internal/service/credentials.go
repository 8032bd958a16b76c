package service

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"chattersphere/internal/config"
)

// SecretHasher decide como se guarda y se compara la credencial de un usuario.
type SecretHasher interface {
	Hash(secret string) (string, error)
	Matches(stored, supplied string) bool
}

// NewSecretHasher devuelve el hasher para el modo configurado.
func NewSecretHasher(mode string) (SecretHasher, error) {
	switch mode {
	case "", config.CredentialModePlain:
		return PlainSecrets{}, nil
	case config.CredentialModeBcrypt:
		return BcryptSecrets{Cost: bcrypt.DefaultCost}, nil
	default:
		return nil, fmt.Errorf("unsupported credential mode %q", mode)
	}
}

// PlainSecrets guarda el secreto tal cual y compara por igualdad exacta.
// Es el comportamiento de referencia; BcryptSecrets es la variante endurecida.
type PlainSecrets struct{}

func (PlainSecrets) Hash(secret string) (string, error) {
	return secret, nil
}

func (PlainSecrets) Matches(stored, supplied string) bool {
	return stored == supplied
}

type BcryptSecrets struct {
	Cost int
}

func (b BcryptSecrets) Hash(secret string) (string, error) {
	cost := b.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func (BcryptSecrets) Matches(stored, supplied string) bool {
	if stored == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(supplied)) == nil
}
