package actions

import (
	"context"
	"fmt"
	"mime"
	"net/smtp"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"

	"propflow/internal/pkg/logger"
	"propflow/internal/pkg/validator"
	"propflow/internal/platform/config"
	"propflow/internal/platform/models"
)

type Email struct {
	To      []string
	Subject string
	Body    string
}

// EmailSender hands a message to an outbound mail provider.
type EmailSender interface {
	Send(ctx context.Context, msg Email) error
}

// NewEmailSender picks a sender from configuration. Anything other than a
// configured smtp provider logs messages instead of sending them.
func NewEmailSender(cfg config.EmailConfig) EmailSender {
	if cfg.Provider == "smtp" && cfg.SMTP.Host != "" {
		return &SMTPSender{cfg: cfg.SMTP}
	}
	return &LogSender{log: logger.For("email")}
}

type SMTPSender struct {
	cfg config.SMTPConfig
}

func (s *SMTPSender) Send(ctx context.Context, msg Email) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}

	raw := s.message(msg, time.Now())

	done := make(chan error, 1)
	go func() {
		done <- smtp.SendMail(addr, auth, s.cfg.FromAddress, msg.To, raw)
	}()

	select {
	case err := <-done:
		return errors.Wrap(err, "smtp send failed")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// message builds the RFC 5322 text. Header values derived from event data
// are folded onto one line and Q-encoded so they cannot open new headers.
func (s *SMTPSender) message(msg Email, at time.Time) []byte {
	from := s.cfg.FromAddress
	if s.cfg.FromName != "" {
		from = fmt.Sprintf("%s <%s>", headerValue(s.cfg.FromName), s.cfg.FromAddress)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(msg.To, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", headerValue(msg.Subject))
	fmt.Fprintf(&b, "Date: %s\r\n", at.Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	b.WriteString(msg.Body)
	return []byte(b.String())
}

var headerBreaks = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ")

func headerValue(v string) string {
	return mime.QEncoding.Encode("utf-8", headerBreaks.Replace(v))
}

type LogSender struct {
	log zerolog.Logger
}

func (s *LogSender) Send(_ context.Context, msg Email) error {
	s.log.Info().
		Strs("to", msg.To).
		Str("subject", msg.Subject).
		Int("body_length", len(msg.Body)).
		Msg("email send skipped, no smtp provider configured")
	return nil
}

// SendEmail renders subject and message from the trigger data and mails them
// to config.to.
func SendEmail(sender EmailSender) Executor {
	return ExecutorFunc(func(ctx context.Context, req Request) Result {
		to, err := validator.ParseRecipients(stringParam(req.Config, "to"))
		if err != nil {
			return failed("invalid recipients: %v", err)
		}

		msg := Email{
			To:      to,
			Subject: Render(stringParam(req.Config, "subject"), req.Data),
			Body:    Render(stringParam(req.Config, "message"), req.Data),
		}
		if err := sender.Send(ctx, msg); err != nil {
			return failed("email delivery failed: %v", err)
		}
		return ok("email sent to %d recipient(s)", len(to))
	})
}

type NotificationStore interface {
	Create(ctx context.Context, n *models.Notification) error
}

// SendNotification records an in-app notification.
func SendNotification(store NotificationStore) Executor {
	return ExecutorFunc(func(ctx context.Context, req Request) Result {
		message := Render(stringParam(req.Config, "message"), req.Data)
		if message == "" {
			return failed("message is required")
		}

		n := &models.Notification{
			OrganizationID: req.OrganizationID,
			RuleID:         req.RuleID,
			Channel:        "in_app",
			Recipient:      stringParam(req.Config, "recipient"),
			Subject:        Render(stringParam(req.Config, "subject"), req.Data),
			Body:           message,
		}
		if err := store.Create(ctx, n); err != nil {
			return failed("notification failed: %v", err)
		}
		return ok("notification %s created", n.ID)
	})
}
