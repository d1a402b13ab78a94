package handlers

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/giftlist/internal/models"
	"github.com/Kerhoff/giftlist/internal/service"
	"github.com/Kerhoff/giftlist/internal/telegram"
)

// GiftCatalog is the revealed catalog with reservation status merged in.
type GiftCatalog interface {
	Gifts() []models.Gift
}

// maxKeyboardRows caps the inline reserve buttons under one message.
const maxKeyboardRows = 20

// ---------------------------------------------------------------------------
// GiftsHandler – /gifts
// ---------------------------------------------------------------------------

// GiftsHandler lists the revealed gifts, numbered for /reserve.
type GiftsHandler struct {
	catalog GiftCatalog
	logger  *logrus.Logger
}

func NewGiftsHandler(catalog GiftCatalog, logger *logrus.Logger) *GiftsHandler {
	return &GiftsHandler{catalog: catalog, logger: logger}
}

func (h *GiftsHandler) Handle(bot telegram.Sender, message *tgbotapi.Message, args []string) error {
	gifts := h.catalog.Gifts()
	if len(gifts) == 0 {
		return reply(bot, message.Chat.ID, "⏳ A lista ainda está carregando. Tente novamente em instantes.")
	}

	var sb strings.Builder
	sb.WriteString("🎁 Lista de presentes\n\n")
	var rows [][]tgbotapi.InlineKeyboardButton
	for i, g := range gifts {
		n := i + 1
		if g.Reserved {
			fmt.Fprintf(&sb, "%d. %s ✅ reservado", n, g.Title)
			if g.ReservedBy != "" {
				fmt.Fprintf(&sb, " por %s", g.ReservedBy)
			}
			sb.WriteString("\n")
			continue
		}
		fmt.Fprintf(&sb, "%d. %s\n   %s\n", n, g.Title, g.ProductURL)
		if len(rows) < maxKeyboardRows {
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("Reservar %d", n), "reserve "+giftKey(g.ID)),
			))
		}
	}
	sb.WriteString("\nPara reservar: /reserve <número>")

	msg := tgbotapi.NewMessage(message.Chat.ID, sb.String())
	msg.DisableWebPagePreview = true
	if len(rows) > 0 {
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	}
	if _, err := bot.Send(msg); err != nil {
		return fmt.Errorf("failed to send gift list: %w", err)
	}

	h.logger.WithFields(logrus.Fields{
		"chat_id": message.Chat.ID,
		"gifts":   len(gifts),
	}).Info("Sent gift list")
	return nil
}

// giftKey is the short stable key carried by the reserve buttons: the hash
// suffix of the gift id, prefixed so it never reads as a list number.
func giftKey(id string) string {
	return keyPrefix + id[strings.LastIndex(id, "-")+1:]
}

const keyPrefix = "g"

// ---------------------------------------------------------------------------
// StatusHandler – /status
// ---------------------------------------------------------------------------

// SyncStatusReporter reports the catalog sync state.
type SyncStatusReporter interface {
	Status() service.SyncStatus
}

// StatusHandler shows the state of the catalog sync.
type StatusHandler struct {
	sync   SyncStatusReporter
	logger *logrus.Logger
}

func NewStatusHandler(sync SyncStatusReporter, logger *logrus.Logger) *StatusHandler {
	return &StatusHandler{sync: sync, logger: logger}
}

func (h *StatusHandler) Handle(bot telegram.Sender, message *tgbotapi.Message, args []string) error {
	st := h.sync.Status()

	var sb strings.Builder
	fmt.Fprintf(&sb, "Estado: %s\n", st.State)
	fmt.Fprintf(&sb, "Presentes visíveis: %d\n", st.Revealed)
	if st.LastSync != nil {
		fmt.Fprintf(&sb, "Última sincronização: %s\n", st.LastSync.Format("02/01/2006 15:04"))
	}
	if !st.Online {
		sb.WriteString("⚠️ Sem conexão com a planilha\n")
	}
	if st.LastError != "" {
		fmt.Fprintf(&sb, "Último erro: %s\n", st.LastError)
	}

	if _, err := bot.Send(tgbotapi.NewMessage(message.Chat.ID, sb.String())); err != nil {
		return fmt.Errorf("failed to send status: %w", err)
	}
	return nil
}
