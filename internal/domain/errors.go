package domain

import (
	"errors"
	"fmt"
	"time"
)

// Kind clasifica errores para traducirlos a respuestas HTTP.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindAuthentication
	KindAuthorization
	KindNotFound
	KindRateLimited
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthentication:
		return "authentication"
	case KindAuthorization:
		return "authorization"
	case KindNotFound:
		return "not_found"
	case KindRateLimited:
		return "rate_limited"
	default:
		return "internal"
	}
}

// Error es un error de dominio con un mensaje seguro para el cliente.
type Error struct {
	Kind    Kind
	Message string
	Err     error
	// RetryAfter solo aplica a KindRateLimited.
	RetryAfter time.Duration
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewValidationError(msg string) *Error {
	return &Error{Kind: KindValidation, Message: msg}
}

func NewAuthenticationError(msg string) *Error {
	return &Error{Kind: KindAuthentication, Message: msg}
}

func NewAuthorizationError(msg string) *Error {
	return &Error{Kind: KindAuthorization, Message: msg}
}

func NewNotFoundError(msg string) *Error {
	return &Error{Kind: KindNotFound, Message: msg}
}

func NewRateLimitError(msg string) *Error {
	return &Error{Kind: KindRateLimited, Message: msg}
}

// RetryLater devuelve una copia de base con la espera sugerida; errors.Is
// sigue reconociendo base.
func RetryLater(base *Error, wait time.Duration) *Error {
	return &Error{Kind: base.Kind, Message: base.Message, Err: base, RetryAfter: wait}
}

// NewInternalError envuelve una causa interna con un mensaje apto para el
// cliente.
func NewInternalError(msg string, err error) *Error {
	return &Error{Kind: KindInternal, Message: msg, Err: err}
}

// ErrNotFound lo devuelven los repositorios cuando no hay fila.
var ErrNotFound = NewNotFoundError("resource not found")

// KindOf devuelve la clase del error o KindInternal si no es de dominio.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}
