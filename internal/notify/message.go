// Package notify tells the couple when a guest reserves a gift.
package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/giftlist/internal/metrics"
	"github.com/Kerhoff/giftlist/internal/models"
)

// DefaultMessage replaces an empty guest message.
const DefaultMessage = "Nenhuma mensagem adicional"

const dateLayout = "02/01/2006, 15:04:05"

// Channel delivers one reservation notice.
type Channel interface {
	Name() string
	Send(ctx context.Context, claim models.ReservationClaim) error
}

// Params are the template parameters of a reservation notice.
type Params struct {
	GuestName       string
	GiftTitle       string
	Message         string
	ReservationDate string
}

// ParamsFor fills in the defaults for a claim.
func ParamsFor(claim models.ReservationClaim) Params {
	msg := strings.TrimSpace(claim.Message)
	if msg == "" {
		msg = DefaultMessage
	}
	return Params{
		GuestName:       claim.GuestName,
		GiftTitle:       claim.GiftTitle,
		Message:         msg,
		ReservationDate: claim.CreatedAt.Format(dateLayout),
	}
}

// FormatMessage renders the plain-text notice.
func FormatMessage(claim models.ReservationClaim) string {
	p := ParamsFor(claim)

	var sb strings.Builder
	sb.WriteString("🎁 NOVA RESERVA DE PRESENTE 🎁\n\n")
	fmt.Fprintf(&sb, "Padrinho/Madrinha: %s\n", p.GuestName)
	fmt.Fprintf(&sb, "Presente: %s\n", p.GiftTitle)
	fmt.Fprintf(&sb, "Data da Reserva: %s\n", p.ReservationDate)
	fmt.Fprintf(&sb, "\nMensagem: %s\n", p.Message)
	sb.WriteString("\n---\nLista de Presentes dos Noivos")
	return sb.String()
}

// Notifier fans a reservation out to every channel.
type Notifier struct {
	channels []Channel
	logger   *logrus.Logger
	metrics  *metrics.Metrics
}

func New(logger *logrus.Logger, m *metrics.Metrics, channels ...Channel) *Notifier {
	return &Notifier{channels: channels, logger: logger, metrics: m}
}

// NotifyReservation sends to all channels and joins their failures.
func (n *Notifier) NotifyReservation(ctx context.Context, claim models.ReservationClaim) error {
	var result *multierror.Error
	for _, ch := range n.channels {
		err := ch.Send(ctx, claim)
		n.metrics.Notification(ch.Name(), err)
		if err != nil {
			n.logger.WithError(err).WithFields(logrus.Fields{
				"channel": ch.Name(),
				"gift_id": claim.GiftID,
			}).Warn("Notification failed")
			result = multierror.Append(result, fmt.Errorf("%s: %w", ch.Name(), err))
		}
	}
	return result.ErrorOrNil()
}
