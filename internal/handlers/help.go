package handlers

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/giftlist/internal/telegram"
)

// HelpHandler handles the /help command
type HelpHandler struct {
	logger *logrus.Logger
}

func NewHelpHandler(logger *logrus.Logger) *HelpHandler {
	return &HelpHandler{logger: logger}
}

func (h *HelpHandler) Handle(bot telegram.Sender, message *tgbotapi.Message, args []string) error {
	helpText := `📚 *Ajuda*

*Presentes:*
• /gifts - Lista os presentes e quem já reservou
• /status - Estado da última sincronização

*Reserva:*
• /reserve <número> - Escolhe um presente
• /name <seu nome> | <mensagem opcional> - Informa seus dados
• /confirm - Confirma a reserva
• /back - Volta para corrigir nome ou mensagem
• /cancel - Desiste da reserva`

	msg := tgbotapi.NewMessage(message.Chat.ID, helpText)
	msg.ParseMode = tgbotapi.ModeMarkdown

	_, err := bot.Send(msg)
	if err != nil {
		return fmt.Errorf("failed to send help message: %w", err)
	}

	h.logger.WithFields(logrus.Fields{
		"chat_id": message.Chat.ID,
	}).Info("Sent help message")

	return nil
}
