package notify

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"

	"offboarding-workflow/internal/domain"
	"offboarding-workflow/internal/metrics"
)

// Message is a rendered notification ready for a transport.
type Message struct {
	Template     Template
	SubmissionID string
	To           domain.Recipient
	Subject      string
	Body         string
}

// Transport hands a rendered message to the outside world.
type Transport interface {
	Deliver(ctx context.Context, msg Message) error
}

type EmailLog interface {
	RecordEmail(ctx context.Context, entry domain.EmailLogEntry) error
}

type Outbox interface {
	ArchiveUndelivered(ctx context.Context, submissionID, template string, at time.Time, message []byte) (string, error)
}

// Logger represents the methods used by the mailer to log information.
type Logger interface {
	Infof(string, ...interface{})
	Warningf(string, ...interface{})
	Errorf(string, ...interface{})
}

type MailerConfig struct {
	Catalog   *Catalog
	Transport Transport
	From      string
	Clock     clock.Clock
	Logger    Logger
	Metrics   *metrics.Collector
	// EmailLog and Outbox are optional.
	EmailLog EmailLog
	Outbox   Outbox
}

func (config MailerConfig) Validate() error {
	if config.Catalog == nil {
		return errors.NotValidf("nil Catalog")
	}
	if config.Transport == nil {
		return errors.NotValidf("nil Transport")
	}
	if config.Clock == nil {
		return errors.NotValidf("nil Clock")
	}
	if config.Logger == nil {
		return errors.NotValidf("nil Logger")
	}
	return nil
}

// Mailer renders templates, hands them to a transport and records every attempt.
type Mailer struct {
	config MailerConfig
}

func NewMailer(config MailerConfig) (*Mailer, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return &Mailer{config: config}, nil
}

func (m *Mailer) Send(ctx context.Context, template Template, to domain.Recipient, data Data) error {
	subject, body, err := m.config.Catalog.Render(template, to.Locale, data)
	if err != nil {
		m.config.Metrics.NotificationAttempted(string(template), metrics.ResultError)
		return err
	}
	msg := Message{
		Template:     template,
		SubmissionID: data.SubmissionID,
		To:           to,
		Subject:      subject,
		Body:         body,
	}

	sendErr := m.config.Transport.Deliver(ctx, msg)
	m.record(ctx, msg, sendErr)
	if sendErr != nil {
		m.config.Metrics.NotificationAttempted(string(template), metrics.ResultError)
		m.archive(ctx, msg)
		return fmt.Errorf("deliver %s to %s: %w", template, to.Email, sendErr)
	}
	m.config.Metrics.NotificationAttempted(string(template), metrics.ResultOK)
	return nil
}

func (m *Mailer) record(ctx context.Context, msg Message, sendErr error) {
	if m.config.EmailLog == nil {
		return
	}
	entry := domain.EmailLogEntry{
		SubmissionID: msg.SubmissionID,
		Template:     string(msg.Template),
		Recipient:    msg.To.Email,
		Subject:      msg.Subject,
		Status:       domain.DeliverySent,
		CreatedAt:    m.config.Clock.Now(),
	}
	if sendErr != nil {
		entry.Status = domain.DeliveryFailed
		entry.Error = sendErr.Error()
	}
	if err := m.config.EmailLog.RecordEmail(ctx, entry); err != nil {
		m.config.Logger.Warningf("email log write failed for %s: %v", msg.SubmissionID, err)
	}
}

func (m *Mailer) archive(ctx context.Context, msg Message) {
	if m.config.Outbox == nil {
		return
	}
	key, err := m.config.Outbox.ArchiveUndelivered(ctx, msg.SubmissionID, string(msg.Template), m.config.Clock.Now(), FormatRFC822(m.config.From, msg))
	if err != nil {
		m.config.Logger.Errorf("archive undelivered %s for %s: %v", msg.Template, msg.SubmissionID, err)
		return
	}
	m.config.Logger.Infof("archived undelivered %s for %s at %s", msg.Template, msg.SubmissionID, key)
}

// FormatRFC822 renders msg as a plain-text UTF-8 mail.
func FormatRFC822(from string, msg Message) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", formatAddress(msg.To))
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("Content-Transfer-Encoding: 8bit\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(msg.Body, "\n", "\r\n"))
	b.WriteString("\r\n")
	return b.Bytes()
}

func formatAddress(r domain.Recipient) string {
	if r.Name == "" {
		return r.Email
	}
	return mime.QEncoding.Encode("utf-8", r.Name) + " <" + r.Email + ">"
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPTransport delivers over SMTP with PLAIN auth when a username is set.
type SMTPTransport struct {
	config   SMTPConfig
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPTransport(config SMTPConfig) *SMTPTransport {
	return &SMTPTransport{config: config, sendMail: smtp.SendMail}
}

func (t *SMTPTransport) Deliver(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var auth smtp.Auth
	if t.config.Username != "" {
		auth = smtp.PlainAuth("", t.config.Username, t.config.Password, t.config.Host)
	}
	addr := t.config.Host + ":" + strconv.Itoa(t.config.Port)
	return t.sendMail(addr, auth, t.config.From, []string{msg.To.Email}, FormatRFC822(t.config.From, msg))
}

// LogTransport writes messages to the log instead of sending them.
type LogTransport struct {
	Logger Logger
}

func (t LogTransport) Deliver(_ context.Context, msg Message) error {
	t.Logger.Infof("mail %s to %s <%s> for %s: %s\n%s", msg.Template, msg.To.Name, msg.To.Email, msg.SubmissionID, msg.Subject, msg.Body)
	return nil
}
