package maxclient

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConnected — вызов метода API до Start либо после Disconnect.
	ErrNotConnected = errors.New("maxclient: not connected")

	// ErrClosed — соединение закрыто (сервером или нами).
	ErrClosed = errors.New("maxclient: connection closed")

	// ErrTimeout — за отведённое время кадр не пришёл.
	ErrTimeout = errors.New("maxclient: receive timeout")

	// ErrAuthTimeout — сервер не ответил на вход за отведённое время.
	ErrAuthTimeout = errors.New("maxclient: auth timeout")

	// ErrNoCredentials — нет ни токена, ни телефона для входа.
	ErrNoCredentials = errors.New("maxclient: no token and no phone to authenticate with")

	// ErrTooManyAttempts — сервер ограничил частоту попыток входа.
	// Сверяется через errors.Is с ошибкой, которую вернул authenticate.
	ErrTooManyAttempts = errors.New("maxclient: too many auth attempts")
)

const errLimitViolate = "error.limit.violate"

// AuthError — отказ сервера на этапе входа. Code — машинный код
// ("login.token", "error.limit.violate"), Message — текст для человека.
type AuthError struct {
	Code    string
	Message string
}

func (e *AuthError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("maxclient: auth failed (%s)", e.Code)
	}
	if e.Code == "" {
		return "maxclient: auth failed: " + e.Message
	}
	return fmt.Sprintf("maxclient: auth failed: %s (%s)", e.Message, e.Code)
}

func (e *AuthError) Is(target error) bool {
	return target == ErrTooManyAttempts && e.Code == errLimitViolate
}
