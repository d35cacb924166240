package notify

import (
	"errors"
	"strings"
	"testing"

	"rentescrow/internal/events"
	"rentescrow/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockTelegramSender struct {
	mock.Mock
}

func (m *mockTelegramSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	args := m.Called(c)
	return args.Get(0).(tgbotapi.Message), args.Error(1)
}

func TestTelegramNotifier(t *testing.T) {
	logger := zerolog.Nop()

	t.Run("SendMarkdown", func(t *testing.T) {
		sender := new(mockTelegramSender)
		n := NewTelegramNotifier(sender, nil, &logger)
		sender.On("Send", mock.MatchedBy(func(c tgbotapi.Chattable) bool {
			msg, ok := c.(tgbotapi.MessageConfig)
			return ok && msg.ParseMode == models.ParseModeMarkdown && msg.ChatID == 123
		})).Return(tgbotapi.Message{}, nil).Once()

		_, err := n.SendMarkdown(123, "*bold*")
		assert.NoError(t, err)
		sender.AssertExpectations(t)
	})

	t.Run("BroadcastsOperatorEvents", func(t *testing.T) {
		sender := new(mockTelegramSender)
		n := NewTelegramNotifier(sender, []int64{1, 2}, &logger)
		bus := events.NewEventBus()
		n.Subscribe(bus)

		sender.On("Send", mock.MatchedBy(func(c tgbotapi.Chattable) bool {
			msg := c.(tgbotapi.MessageConfig)
			return strings.Contains(msg.Text, "#42") && strings.Contains(msg.Text, "bank details")
		})).Return(tgbotapi.Message{}, nil).Twice()

		require.NoError(t, bus.PublishJSON(events.EventReleasePending, events.BookingEventPayload{
			BookingID: 42,
			Reason:    "bank details missing",
		}))
		// not an operator event
		require.NoError(t, bus.PublishJSON(events.EventBookingCreated, events.BookingEventPayload{BookingID: 42}))

		sender.AssertExpectations(t)
		sender.AssertNumberOfCalls(t, "Send", 2)
	})

	t.Run("SendErrorReachesHook", func(t *testing.T) {
		sender := new(mockTelegramSender)
		n := NewTelegramNotifier(sender, []int64{1}, &logger)
		bus := events.NewEventBus()
		n.Subscribe(bus)

		var hookErr error
		bus.OnError(func(_ *events.Event, err error) { hookErr = err })

		sender.On("Send", mock.Anything).Return(tgbotapi.Message{}, errors.New("chat not found")).Once()
		require.NoError(t, bus.PublishJSON(events.EventReleaseFailed, events.BookingEventPayload{BookingID: 7}))
		assert.EqualError(t, hookErr, "chat not found")
	})
}

func TestFormatEvent(t *testing.T) {
	text := FormatEvent(events.EventFundsReleased, &events.BookingEventPayload{
		BookingID:       9,
		ListingTitle:    "2-bed flat, Yaba",
		Amount:          50_000_00,
		PayoutReference: "MERCH_9_ABCDEF01",
	})
	assert.Contains(t, text, "Средства выплачены")
	assert.Contains(t, text, "2-bed flat, Yaba")
	assert.Contains(t, text, "₦50000.00")
	assert.Contains(t, text, "`MERCH_9_ABCDEF01`")

	text = FormatEvent(events.EventBookingExpired, &events.BookingEventPayload{BookingID: 3, ListingType: "hotel_listing", ListingID: 5})
	assert.Contains(t, text, "hotel_listing #5")
	assert.NotContains(t, text, "Amount")
}
