package email

import (
	"context"
	"errors"
)

// Message es un correo de texto plano.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Sender define la interfaz para envío de correos transaccionales.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type disabledSender struct {
	reason string
}

// NewDisabledSender devuelve un Sender que siempre falla; se usa cuando SMTP
// no está configurado para que los flujos que dependen del correo lo noten.
func NewDisabledSender(reason string) Sender {
	return &disabledSender{reason: reason}
}

func (s *disabledSender) Send(_ context.Context, _ Message) error {
	if s.reason == "" {
		return errors.New("email sender disabled")
	}
	return errors.New(s.reason)
}
