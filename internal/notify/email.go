package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/wneessen/go-mail"

	"github.com/Kerhoff/giftlist/internal/models"
)

// SMTPConfig holds the outgoing mail settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       []string
}

// Configured reports whether mail can actually be sent.
func (c SMTPConfig) Configured() bool {
	return c.Host != "" && c.From != "" && len(c.recipients()) > 0
}

func (c SMTPConfig) recipients() []string {
	var out []string
	for _, to := range c.To {
		if to = strings.TrimSpace(to); to != "" {
			out = append(out, to)
		}
	}
	return out
}

// dialer is satisfied by *mail.Client.
type dialer interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// EmailChannel mails the bride and groom. Without SMTP settings it only logs
// the message and reports success.
type EmailChannel struct {
	cfg    SMTPConfig
	logger *logrus.Logger
	dial   func(SMTPConfig) (dialer, error)
}

func NewEmailChannel(cfg SMTPConfig, logger *logrus.Logger) *EmailChannel {
	return &EmailChannel{cfg: cfg, logger: logger, dial: newMailClient}
}

func (e *EmailChannel) Name() string { return "email" }

func (e *EmailChannel) Send(ctx context.Context, claim models.ReservationClaim) error {
	if !e.cfg.Configured() {
		e.logger.WithFields(logrus.Fields{
			"guest_name": claim.GuestName,
			"gift_title": claim.GiftTitle,
		}).Info("SMTP not configured, simulating reservation email")
		return nil
	}

	msg, err := e.buildMessage(claim)
	if err != nil {
		return err
	}

	client, err := e.dial(e.cfg)
	if err != nil {
		return fmt.Errorf("failed to create mail client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("failed to send reservation email: %w", err)
	}

	e.logger.WithField("gift_title", claim.GiftTitle).Info("Reservation email sent")
	return nil
}

func (e *EmailChannel) buildMessage(claim models.ReservationClaim) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(e.cfg.From); err != nil {
		return nil, fmt.Errorf("invalid sender address: %w", err)
	}
	if err := msg.To(e.cfg.recipients()...); err != nil {
		return nil, fmt.Errorf("invalid recipient address: %w", err)
	}
	msg.Subject(fmt.Sprintf("Nova reserva: %s", claim.GiftTitle))
	msg.SetBodyString(mail.TypeTextPlain, FormatMessage(claim))
	return msg, nil
}

func newMailClient(cfg SMTPConfig) (dialer, error) {
	opts := []mail.Option{mail.WithPort(cfg.Port)}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}
	return mail.NewClient(cfg.Host, opts...)
}
