package telegram

import (
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

// Sender is the part of *tgbotapi.BotAPI the handlers use.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Router handles message routing and command parsing
type Router struct {
	logger   *logrus.Logger
	handlers map[string]CommandHandler
}

// CommandHandler defines the interface for command handlers
type CommandHandler interface {
	Handle(bot Sender, message *tgbotapi.Message, args []string) error
}

// NewRouter creates a new message router
func NewRouter(logger *logrus.Logger) *Router {
	return &Router{
		logger:   logger,
		handlers: make(map[string]CommandHandler),
	}
}

// RegisterCommand registers a command handler
func (r *Router) RegisterCommand(command string, handler CommandHandler) {
	r.handlers[command] = handler
	r.logger.Debugf("Registered command: %s", command)
}

// HandleMessage handles incoming messages
func (r *Router) HandleMessage(bot Sender, message *tgbotapi.Message) {
	fields := logrus.Fields{
		"chat_id":    message.Chat.ID,
		"message_id": message.MessageID,
	}
	if message.From != nil {
		fields["user_id"] = message.From.ID
		fields["username"] = message.From.UserName
	}
	log := r.logger.WithFields(fields)
	log.Debug("Received message")

	// Only process text commands
	if message.Text == "" || !message.IsCommand() {
		return
	}

	command := message.Command()
	args := strings.Fields(message.CommandArguments())

	handler, exists := r.handlers[command]
	if !exists {
		log.WithField("command", command).Warn("Unknown command")
		r.notify(bot, log, message.Chat.ID, "❓ Comando desconhecido. Use /help para ver os comandos.")
		return
	}

	if err := handler.Handle(bot, message, args); err != nil {
		log.WithError(err).WithField("command", command).Error("Command handler failed")
		r.notify(bot, log, message.Chat.ID, "❌ Ocorreu um erro ao processar o comando. Tente novamente.")
	}
}

// notify sends a router-level reply; there is no caller to return a failure to.
func (r *Router) notify(bot Sender, log *logrus.Entry, chatID int64, text string) {
	if _, err := bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		log.WithError(err).Warn("Failed to send reply")
	}
}

// HandleCallbackQuery answers inline keyboard presses by dispatching the
// callback data ("command arg...") as if it had been typed.
func (r *Router) HandleCallbackQuery(bot Sender, callbackQuery *tgbotapi.CallbackQuery) {
	log := r.logger.WithFields(logrus.Fields{
		"callback_id": callbackQuery.ID,
		"user_id":     callbackQuery.From.ID,
		"data":        callbackQuery.Data,
	})
	log.Debug("Received callback query")

	// Answer the callback query to remove loading state
	if _, err := bot.Request(tgbotapi.NewCallback(callbackQuery.ID, "")); err != nil {
		log.WithError(err).Warn("Failed to answer callback query")
	}

	parts := strings.Fields(callbackQuery.Data)
	if len(parts) == 0 || callbackQuery.Message == nil {
		return
	}
	handler, ok := r.handlers[parts[0]]
	if !ok {
		return
	}

	// The callback message belongs to the bot; attribute it to the presser.
	msg := *callbackQuery.Message
	msg.From = callbackQuery.From
	if err := handler.Handle(bot, &msg, parts[1:]); err != nil {
		log.WithError(err).WithField("command", parts[0]).Error("Callback handler failed")
	}
}
