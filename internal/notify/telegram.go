package notify

import (
	"fmt"
	"strings"

	"rentescrow/internal/domain"
	"rentescrow/internal/events"
	"rentescrow/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// OperatorEvents are the events that need a human to look at them.
var OperatorEvents = []string{
	events.EventReleasePending,
	events.EventReleaseFailed,
	events.EventFundsReleased,
	events.EventBookingExpired,
}

// BotWrapper adapts tgbotapi.BotAPI to domain.TelegramSender.
type BotWrapper struct {
	*tgbotapi.BotAPI
}

func NewBotWrapper(bot *tgbotapi.BotAPI) *BotWrapper {
	return &BotWrapper{BotAPI: bot}
}

// TelegramNotifier forwards escrow events to operator chats.
type TelegramNotifier struct {
	bot     domain.TelegramSender
	chatIDs []int64
	logger  *zerolog.Logger
}

func NewTelegramNotifier(bot domain.TelegramSender, chatIDs []int64, logger *zerolog.Logger) *TelegramNotifier {
	return &TelegramNotifier{
		bot:     bot,
		chatIDs: chatIDs,
		logger:  logger,
	}
}

func (n *TelegramNotifier) SendMessage(chatID int64, text string) (tgbotapi.Message, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	return n.bot.Send(msg)
}

func (n *TelegramNotifier) SendMarkdown(chatID int64, text string) (tgbotapi.Message, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = models.ParseModeMarkdown
	return n.bot.Send(msg)
}

// Subscribe attaches the notifier to the bus.
func (n *TelegramNotifier) Subscribe(bus *events.EventBus) {
	bus.SubscribeAll(OperatorEvents, n.Handle)
}

// Handle broadcasts one event to every operator chat. Returns the last send error.
func (n *TelegramNotifier) Handle(event *events.Event) error {
	var payload events.BookingEventPayload
	if err := event.Decode(&payload); err != nil {
		return fmt.Errorf("decode %s payload: %w", event.Type, err)
	}

	text := FormatEvent(event.Type, &payload)

	var lastErr error
	for _, chatID := range n.chatIDs {
		if _, err := n.SendMarkdown(chatID, text); err != nil {
			n.logger.Error().Err(err).Int64("chat_id", chatID).Str("event", event.Type).Msg("failed to notify operator")
			lastErr = err
		}
	}
	return lastErr
}

// FormatEvent renders a short Markdown message for operators.
func FormatEvent(eventType string, p *events.BookingEventPayload) string {
	var sb strings.Builder

	switch eventType {
	case events.EventReleasePending:
		sb.WriteString("⏳ *Выплата ожидает*\n")
	case events.EventReleaseFailed:
		sb.WriteString("❌ *Выплата не прошла*\n")
	case events.EventFundsReleased:
		sb.WriteString("✅ *Средства выплачены*\n")
	case events.EventBookingExpired:
		sb.WriteString("⌛ *Бронь истекла*\n")
	default:
		sb.WriteString("ℹ️ *" + eventType + "*\n")
	}

	fmt.Fprintf(&sb, "Booking: #%d\n", p.BookingID)
	if p.ListingTitle != "" {
		fmt.Fprintf(&sb, "Listing: %s\n", p.ListingTitle)
	} else {
		fmt.Fprintf(&sb, "Listing: %s #%d\n", p.ListingType, p.ListingID)
	}
	if p.Amount > 0 {
		fmt.Fprintf(&sb, "Amount: ₦%s\n", models.FormatAmount(p.Amount))
	}
	if p.PayoutReference != "" {
		fmt.Fprintf(&sb, "Payout ref: `%s`\n", p.PayoutReference)
	}
	if p.Reason != "" {
		fmt.Fprintf(&sb, "Reason: %s\n", p.Reason)
	}
	return sb.String()
}
