package notify

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/giftlist/internal/models"
)

// MessageSender is satisfied by *telegram.Bot.
type MessageSender interface {
	SendMessage(chatID int64, text string) error
}

// TelegramChannel posts the notice to a set of chats.
type TelegramChannel struct {
	sender  MessageSender
	chatIDs []int64
	logger  *logrus.Logger
}

func NewTelegramChannel(sender MessageSender, chatIDs []int64, logger *logrus.Logger) *TelegramChannel {
	return &TelegramChannel{sender: sender, chatIDs: chatIDs, logger: logger}
}

func (t *TelegramChannel) Name() string { return "telegram" }

func (t *TelegramChannel) Send(_ context.Context, claim models.ReservationClaim) error {
	if t.sender == nil || len(t.chatIDs) == 0 {
		t.logger.Debug("No notification chats configured, skipping telegram notice")
		return nil
	}

	text := FormatMessage(claim)
	var result *multierror.Error
	for _, id := range t.chatIDs {
		if err := t.sender.SendMessage(id, text); err != nil {
			result = multierror.Append(result, fmt.Errorf("chat %d: %w", id, err))
		}
	}
	return result.ErrorOrNil()
}
