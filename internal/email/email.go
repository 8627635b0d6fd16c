// Package email envía los correos transaccionales del servicio (reset de
// contraseña). SMTP vía go-mail en prod, un echo-sender para dev.
package email

import (
	"crypto/tls"
	"fmt"

	mail "github.com/go-mail/mail"

	"github.com/dropDatabas3/gatekeeper/internal/observability/logger"
)

type Sender interface {
	Send(to string, subject string, htmlBody string, textBody string) error
}

type SMTPSender struct {
	Host               string
	Port               int
	From               string
	User               string
	Pass               string
	TLSMode            string // "auto" | "starttls" | "ssl" | "none"
	InsecureSkipVerify bool
}

func NewSMTPSender(host string, port int, from, user, pass string) *SMTPSender {
	return &SMTPSender{
		Host:    host,
		Port:    port,
		From:    from,
		User:    user,
		Pass:    pass,
		TLSMode: "auto",
	}
}

func (s *SMTPSender) Send(to, subject, htmlBody, textBody string) error {
	log := logger.Named("email.smtp")
	log.Info("send try",
		logger.String("host", s.Host),
		logger.Int("port", s.Port),
		logger.String("to", to),
		logger.String("subject", subject),
	)

	m := mail.NewMessage()
	m.SetHeader("From", s.From)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)

	// Preferimos multipart/alternative (txt + html)
	if textBody != "" {
		m.SetBody("text/plain", textBody)
	}
	if htmlBody != "" {
		if textBody == "" {
			m.SetBody("text/html", htmlBody)
		} else {
			m.AddAlternative("text/html", htmlBody)
		}
	}

	d := mail.NewDialer(s.Host, s.Port, s.User, s.Pass)
	d.TLSConfig = &tls.Config{
		ServerName:         s.Host,
		InsecureSkipVerify: s.InsecureSkipVerify, // sólo dev
	}

	switch s.TLSMode {
	case "ssl":
		d.SSL = true
	case "none":
		d.TLSConfig = &tls.Config{InsecureSkipVerify: s.InsecureSkipVerify}
	default:
		// "auto"/"starttls": go-mail negocia STARTTLS si corresponde
	}

	if err := d.DialAndSend(m); err != nil {
		log.Error("send failed", logger.String("to", to), logger.Err(err))
		return fmt.Errorf("smtp send: %w", err)
	}
	log.Info("send ok", logger.String("to", to))
	return nil
}

// EchoSender loguea el correo en vez de enviarlo. Útil en dev cuando no hay
// SMTP configurado: el link de reset sale por el log.
type EchoSender struct{}

func (EchoSender) Send(to, subject, htmlBody, textBody string) error {
	logger.Named("email.echo").Info("email (not sent)",
		logger.String("to", to),
		logger.String("subject", subject),
		logger.String("text", textBody),
	)
	return nil
}
