// Package notify envía al receptor el comprobante autorizado.
package notify

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"gopkg.in/gomail.v2"

	"github.com/jhoicas/osiris-api/internal/application/electronic"
	"github.com/jhoicas/osiris-api/pkg/config"
)

// SMTPMailer implementa electronic.Mailer sobre un servidor SMTP.
type SMTPMailer struct {
	dialer *gomail.Dialer
	from   string
}

// NewSMTPMailer construye el mailer desde la configuración SMTP.
func NewSMTPMailer(cfg config.SMTPConfig) *SMTPMailer {
	return &SMTPMailer{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password),
		from:   cfg.From,
	}
}

var _ electronic.Mailer = (*SMTPMailer)(nil)

// Send abre la conexión, envía el mensaje y la cierra.
func (s *SMTPMailer) Send(ctx context.Context, mail electronic.Mail) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.dialer.DialAndSend(buildMessage(s.from, mail)); err != nil {
		return fmt.Errorf("smtp: enviar a %s: %w", mail.To, err)
	}
	return nil
}

func buildMessage(from string, mail electronic.Mail) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", from)
	m.SetHeader("To", mail.To)
	m.SetHeader("Subject", mail.Subject)
	m.SetBody("text/plain", mail.Body)
	for _, a := range mail.Attachments {
		data := a.Data
		m.Attach(a.Name,
			gomail.SetCopyFunc(func(w io.Writer) error {
				_, err := w.Write(data)
				return err
			}),
			gomail.SetHeader(map[string][]string{"Content-Type": {a.ContentType}}),
		)
	}
	return m
}

// LogMailer registra el correo sin enviarlo (SMTP no configurado).
type LogMailer struct {
	log zerolog.Logger
}

// NewLogMailer construye el mailer de solo log.
func NewLogMailer(log zerolog.Logger) *LogMailer {
	return &LogMailer{log: log.With().Str("component", "mailer").Logger()}
}

var _ electronic.Mailer = (*LogMailer)(nil)

func (l *LogMailer) Send(_ context.Context, mail electronic.Mail) error {
	names := make([]string, 0, len(mail.Attachments))
	for _, a := range mail.Attachments {
		names = append(names, a.Name)
	}
	l.log.Info().
		Str("para", mail.To).
		Str("asunto", mail.Subject).
		Strs("adjuntos", names).
		Msg("correo no enviado: SMTP sin configurar")
	return nil
}
