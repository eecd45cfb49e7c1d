package crypto

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// Пароль есть только у администратора: хеш задается ADMIN_PASSWORD_HASH,
// сервер его лишь проверяет.
var (
	ErrEmptyPassword    = errors.New("empty password")
	ErrPasswordMismatch = errors.New("wrong password")
	ErrInvalidHash      = errors.New("malformed bcrypt hash")
	ErrPasswordTooLong  = errors.New("password longer than 72 bytes")
)

const (
	// DefaultCost - стоимость для хеша, который кладут в окружение
	DefaultCost = 12

	// MaxPasswordLength - bcrypt не учитывает байты дальше 72-го
	MaxPasswordLength = 72
)

// HashPassword хеширует пароль с DefaultCost
func HashPassword(password string) (string, error) {
	return HashPasswordWithCost(password, DefaultCost)
}

// HashPasswordWithCost хеширует пароль, cost приводится к допустимому диапазону bcrypt
func HashPasswordWithCost(password string, cost int) (string, error) {
	switch {
	case password == "":
		return "", ErrEmptyPassword
	case len(password) > MaxPasswordLength:
		return "", ErrPasswordTooLong
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), clampCost(cost))
	return string(hash), err
}

// VerifyPassword проверяет пароль из Basic auth по хешу
func VerifyPassword(password, hash string) error {
	switch {
	case password == "":
		return ErrEmptyPassword
	case hash == "":
		return ErrInvalidHash
	}

	switch err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); {
	case err == nil:
		return nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return ErrPasswordMismatch
	default:
		return ErrInvalidHash
	}
}

func clampCost(cost int) int {
	if cost < bcrypt.MinCost {
		return bcrypt.MinCost
	}
	if cost > bcrypt.MaxCost {
		return bcrypt.MaxCost
	}
	return cost
}
