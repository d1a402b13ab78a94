package handlers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/giftlist/internal/models"
	"github.com/Kerhoff/giftlist/internal/reservation"
	"github.com/Kerhoff/giftlist/internal/telegram"
)

const submitTimeout = 30 * time.Second

// FlowSubmitter commits a confirmed reservation flow.
type FlowSubmitter interface {
	Submit(ctx context.Context, flow reservation.Flow) (reservation.Outcome, error)
}

func reply(bot telegram.Sender, chatID int64, text string) error {
	if _, err := bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		return fmt.Errorf("failed to send reply: %w", err)
	}
	return nil
}

func sender(message *tgbotapi.Message) int64 {
	if message.From == nil {
		return 0
	}
	return message.From.ID
}

func summary(f reservation.Flow) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Presente: %s\nNome: %s\n", f.Gift.Title, f.GuestName)
	if f.Message != "" {
		fmt.Fprintf(&sb, "Mensagem: %s\n", f.Message)
	}
	sb.WriteString("\n/confirm para confirmar, /back para corrigir ou /cancel para desistir.")
	return sb.String()
}

// ---------------------------------------------------------------------------
// ReserveHandler – /reserve <n>
// ---------------------------------------------------------------------------

// ReserveHandler opens a reservation flow for the n-th gift of /gifts, or
// for the gift whose key was sent by a reserve button.
type ReserveHandler struct {
	catalog GiftCatalog
	flows   *FlowStore
	logger  *logrus.Logger
}

func NewReserveHandler(catalog GiftCatalog, flows *FlowStore, logger *logrus.Logger) *ReserveHandler {
	return &ReserveHandler{catalog: catalog, flows: flows, logger: logger}
}

func (h *ReserveHandler) Handle(bot telegram.Sender, message *tgbotapi.Message, args []string) error {
	chatID := message.Chat.ID
	if len(args) == 0 {
		return reply(bot, chatID, "Use /reserve <número>. Veja os números com /gifts.")
	}

	gift, ok := h.resolve(args[0])
	if !ok {
		return reply(bot, chatID, "❌ Número inválido. Veja a lista com /gifts.")
	}
	if gift.Reserved {
		return reply(bot, chatID, fmt.Sprintf("😕 %s já foi reservado. Escolha outro em /gifts.", gift.Title))
	}

	if _, err := h.flows.Apply(chatID, sender(message), reservation.Open{Gift: gift}); err != nil {
		if errors.Is(err, reservation.ErrInvalidTransition) {
			return reply(bot, chatID, "Você já tem uma reserva em andamento. Termine-a ou use /cancel.")
		}
		return err
	}

	h.logger.WithFields(logrus.Fields{
		"chat_id": chatID,
		"gift_id": gift.ID,
	}).Info("Reservation flow opened")

	return reply(bot, chatID, fmt.Sprintf(
		"🎁 Você escolheu: %s\n\nAgora envie seu nome:\n/name Seu Nome | mensagem opcional para os noivos", gift.Title))
}

func (h *ReserveHandler) resolve(arg string) (models.Gift, bool) {
	gifts := h.catalog.Gifts()
	if strings.HasPrefix(arg, keyPrefix) {
		for _, g := range gifts {
			if giftKey(g.ID) == arg {
				return g, true
			}
		}
		return models.Gift{}, false
	}
	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 || n > len(gifts) {
		return models.Gift{}, false
	}
	return gifts[n-1], true
}

// ---------------------------------------------------------------------------
// NameHandler – /name <guest> | <message>
// ---------------------------------------------------------------------------

// NameHandler collects the guest name and optional message.
type NameHandler struct {
	flows  *FlowStore
	logger *logrus.Logger
}

func NewNameHandler(flows *FlowStore, logger *logrus.Logger) *NameHandler {
	return &NameHandler{flows: flows, logger: logger}
}

func (h *NameHandler) Handle(bot telegram.Sender, message *tgbotapi.Message, args []string) error {
	chatID := message.Chat.ID

	name, msg, _ := strings.Cut(message.CommandArguments(), "|")
	f, err := h.flows.Apply(chatID, sender(message), reservation.SubmitInfo{GuestName: name, Message: msg})
	switch {
	case errors.Is(err, reservation.ErrGuestNameRequired):
		return reply(bot, chatID, "❌ Informe seu nome: /name Seu Nome | mensagem opcional")
	case errors.Is(err, reservation.ErrInvalidTransition):
		return reply(bot, chatID, "Escolha um presente primeiro com /reserve <número>.")
	case err != nil:
		return err
	}

	return reply(bot, chatID, "Confira sua reserva:\n\n"+summary(f))
}

// ---------------------------------------------------------------------------
// ConfirmHandler – /confirm
// ---------------------------------------------------------------------------

// ConfirmHandler submits a confirming flow. A failed write keeps the entered
// name and message so the guest can simply retry.
type ConfirmHandler struct {
	flows     *FlowStore
	submitter FlowSubmitter
	logger    *logrus.Logger
}

func NewConfirmHandler(flows *FlowStore, submitter FlowSubmitter, logger *logrus.Logger) *ConfirmHandler {
	return &ConfirmHandler{flows: flows, submitter: submitter, logger: logger}
}

func (h *ConfirmHandler) Handle(bot telegram.Sender, message *tgbotapi.Message, args []string) error {
	chatID, userID := message.Chat.ID, sender(message)

	confirming := h.flows.Get(chatID, userID)
	// Move the stored flow to submitting so a second /confirm is rejected.
	if _, err := h.flows.Apply(chatID, userID, reservation.Confirm{}); err != nil {
		if errors.Is(err, reservation.ErrInvalidTransition) {
			return reply(bot, chatID, "Nada para confirmar. Use /reserve <número> e /name primeiro.")
		}
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), submitTimeout)
	defer cancel()

	out, err := h.submitter.Submit(ctx, confirming)
	if err != nil {
		if errors.Is(err, reservation.ErrRemoteWrite) {
			h.flows.Set(chatID, userID, out.Flow)
			return reply(bot, chatID, "❌ Não foi possível atualizar a lista. Seus dados foram mantidos, tente /confirm novamente.")
		}
		h.flows.Set(chatID, userID, confirming)
		return fmt.Errorf("submit reservation: %w", err)
	}
	h.flows.Set(chatID, userID, out.Flow)

	text := fmt.Sprintf("✅ Obrigado, %s! %s está reservado para você.", out.Claim.GuestName, out.Claim.GiftTitle)
	if out.Warning != "" {
		text += "\n\n⚠️ Reserva salva apenas aqui, ainda não sincronizada com a lista compartilhada."
	}
	return reply(bot, chatID, text)
}

// ---------------------------------------------------------------------------
// FlowEventHandler – /back, /cancel
// ---------------------------------------------------------------------------

// FlowEventHandler applies a fixed event and answers with a fixed text.
type FlowEventHandler struct {
	flows   *FlowStore
	event   reservation.Event
	success string
	invalid string
}

func NewBackHandler(flows *FlowStore) *FlowEventHandler {
	return &FlowEventHandler{
		flows:   flows,
		event:   reservation.Back{},
		success: "Envie novamente: /name Seu Nome | mensagem opcional",
		invalid: "Não há nada para voltar.",
	}
}

func NewCancelHandler(flows *FlowStore) *FlowEventHandler {
	return &FlowEventHandler{
		flows:   flows,
		event:   reservation.Cancel{},
		success: "Reserva cancelada.",
		invalid: "A reserva já está sendo enviada, aguarde.",
	}
}

func (h *FlowEventHandler) Handle(bot telegram.Sender, message *tgbotapi.Message, args []string) error {
	if _, err := h.flows.Apply(message.Chat.ID, sender(message), h.event); err != nil {
		if errors.Is(err, reservation.ErrInvalidTransition) {
			return reply(bot, message.Chat.ID, h.invalid)
		}
		return err
	}
	return reply(bot, message.Chat.ID, h.success)
}
