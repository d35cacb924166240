package events

import (
	"encoding/json"
	"sync"
	"time"
)

// Booking lifecycle events.
const (
	EventBookingCreated   = "booking_created"
	EventPaymentInitiated = "payment_initiated"
	EventPaymentConfirmed = "payment_confirmed"
	EventBookingConfirmed = "booking_confirmed"
	EventBookingCancelled = "booking_cancelled"
	EventRefundRequested  = "refund_requested"
	EventFundsReleased    = "funds_released"
	EventReleaseFailed    = "release_failed"
	EventReleasePending   = "release_pending"
	EventBookingExpired   = "booking_expired"
)

// AllBookingEvents lists every event a ledger consumer should mirror.
var AllBookingEvents = []string{
	EventBookingCreated,
	EventPaymentInitiated,
	EventPaymentConfirmed,
	EventBookingConfirmed,
	EventBookingCancelled,
	EventRefundRequested,
	EventFundsReleased,
	EventReleaseFailed,
	EventReleasePending,
	EventBookingExpired,
}

// BookingEventPayload describes the minimal booking snapshot for event consumers.
type BookingEventPayload struct {
	BookingID        int64     `json:"booking_id"`
	UserID           int64     `json:"user_id"`
	ListingType      string    `json:"listing_type"`
	ListingID        int64     `json:"listing_id"`
	ListingTitle     string    `json:"listing_title,omitempty"`
	Status           string    `json:"status"`
	PreviousStatus   string    `json:"previous_status,omitempty"`
	Amount           int64     `json:"amount,omitempty"`
	PaymentType      string    `json:"payment_type,omitempty"`
	PaymentReference string    `json:"payment_reference,omitempty"`
	PayoutReference  string    `json:"payout_reference,omitempty"`
	Reason           string    `json:"reason,omitempty"`
	ChangedBy        string    `json:"changed_by,omitempty"`
	ChangedByID      int64     `json:"changed_by_id,omitempty"`
	At               time.Time `json:"at"`
}

// Event represents a lightweight domain event.
type Event struct {
	ID        int64
	Type      string
	Payload   []byte
	CreatedAt time.Time
	Processed bool
}

// Decode unmarshals the payload into v.
func (e *Event) Decode(v interface{}) error {
	return json.Unmarshal(e.Payload, v)
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// ErrorHook is called for every handler that returns an error.
type ErrorHook func(event *Event, err error)

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	onError     ErrorHook
	mu          sync.RWMutex
}

// NewEventBus constructs an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// OnError installs a hook for handler failures.
func (b *EventBus) OnError(hook ErrorHook) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onError = hook
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// SubscribeAll registers a handler for several event types at once.
func (b *EventBus) SubscribeAll(eventTypes []string, handler EventHandler) {
	for _, t := range eventTypes {
		b.Subscribe(t, handler)
	}
}

// Publish notifies subscribers of the event type.
func (b *EventBus) Publish(event *Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	hook := b.onError
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		// Handlers run synchronously; caller decides concurrency model.
		if err := handler(event); err != nil && hook != nil {
			hook(event, err)
		}
	}
}

// PublishJSON serializes the payload and publishes an event.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	event, err := NewJSONEvent(eventType, payload)
	if err != nil {
		return err
	}

	b.Publish(&event)
	return nil
}

// NewJSONEvent builds an Event with JSON payload for manual publishing.
func NewJSONEvent(eventType string, payload interface{}) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}

	return Event{Type: eventType, Payload: raw, CreatedAt: time.Now()}, nil
}
