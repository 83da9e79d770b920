package events

import (
	"context"
	"sync"
	"time"

	"raffler/models"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventTypeRaffleCreated       EventType = "raffle_created"
	EventTypeRaffleStatusChanged EventType = "raffle_status_changed"
	EventTypeDrawSettingsUpdated EventType = "draw_settings_updated"
	EventTypeWinningNumbersSet   EventType = "winning_numbers_set"
	EventTypeTicketPurchased     EventType = "ticket_purchased"
	EventTypeTicketStatusChanged EventType = "ticket_status_changed"
)

// AllEventTypes lists every event type the service emits
var AllEventTypes = []EventType{
	EventTypeRaffleCreated,
	EventTypeRaffleStatusChanged,
	EventTypeDrawSettingsUpdated,
	EventTypeWinningNumbersSet,
	EventTypeTicketPurchased,
	EventTypeTicketStatusChanged,
}

// Event is the base interface for all events
type Event interface {
	Type() EventType
}

// RaffleCreatedEvent is emitted when a raffle (including a recurrent copy) is created
type RaffleCreatedEvent struct {
	RaffleID       uuid.UUID           `json:"raffleId"`
	CreatorID      uuid.UUID           `json:"creatorId"`
	ParentRaffleID *uuid.UUID          `json:"parentRaffleId,omitempty"`
	RaffleType     models.RaffleType   `json:"raffleType"`
	Status         models.RaffleStatus `json:"status"`
}

func (e RaffleCreatedEvent) Type() EventType {
	return EventTypeRaffleCreated
}

// RaffleStatusChangedEvent represents a lifecycle transition
type RaffleStatusChangedEvent struct {
	RaffleID  uuid.UUID           `json:"raffleId"`
	ActorID   uuid.UUID           `json:"actorId"`
	OldStatus models.RaffleStatus `json:"oldStatus"`
	NewStatus models.RaffleStatus `json:"newStatus"`
}

func (e RaffleStatusChangedEvent) Type() EventType {
	return EventTypeRaffleStatusChanged
}

// DrawSettingsUpdatedEvent represents a change of draw mode or date
type DrawSettingsUpdatedEvent struct {
	RaffleID              uuid.UUID       `json:"raffleId"`
	ActorID               uuid.UUID       `json:"actorId"`
	DrawMode              models.DrawMode `json:"drawMode"`
	DrawDate              time.Time       `json:"drawDate"`
	ExternalLotterySource *string         `json:"externalLotterySource,omitempty"`
}

func (e DrawSettingsUpdatedEvent) Type() EventType {
	return EventTypeDrawSettingsUpdated
}

// WinningNumbersSetEvent represents a winner declaration
type WinningNumbersSetEvent struct {
	RaffleID                 uuid.UUID `json:"raffleId"`
	ActorID                  uuid.UUID `json:"actorId"`
	WinningNumber            int       `json:"winningNumber"`
	SecondPrizeWinningNumber *int      `json:"secondPrizeWinningNumber,omitempty"`
	Source                   string    `json:"source"`
}

func (e WinningNumbersSetEvent) Type() EventType {
	return EventTypeWinningNumbersSet
}

// TicketPurchasedEvent represents a committed number claim
type TicketPurchasedEvent struct {
	TicketID uuid.UUID `json:"ticketId"`
	RaffleID uuid.UUID `json:"raffleId"`
	UserID   uuid.UUID `json:"userId"`
	Number   int       `json:"number"`
}

func (e TicketPurchasedEvent) Type() EventType {
	return EventTypeTicketPurchased
}

// TicketStatusChangedEvent represents a ticket status transition
type TicketStatusChangedEvent struct {
	TicketID  uuid.UUID           `json:"ticketId"`
	RaffleID  uuid.UUID           `json:"raffleId"`
	ActorID   uuid.UUID           `json:"actorId"`
	OldStatus models.TicketStatus `json:"oldStatus"`
	NewStatus models.TicketStatus `json:"newStatus"`
}

func (e TicketStatusChangedEvent) Type() EventType {
	return EventTypeTicketStatusChanged
}

// Handler is a function that handles events
type Handler func(ctx context.Context, event Event)

// Bus manages event subscriptions and dispatching
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
}

// NewBus creates a new event bus
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[EventType][]Handler),
	}
}

// Subscribe adds a handler for a specific event type
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handler)

	log.WithFields(log.Fields{
		"eventType":    eventType,
		"handlerCount": len(b.handlers[eventType]),
	}).Debug("Subscribed handler to event type")
}

// SubscribeAll adds handler for every known event type
func (b *Bus) SubscribeAll(handler Handler) {
	for _, eventType := range AllEventTypes {
		b.Subscribe(eventType, handler)
	}
}

// Emit publishes an event to all registered handlers. Handlers run
// asynchronously and a panicking handler does not affect the others.
func (b *Bus) Emit(ctx context.Context, event Event) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers[event.Type()]))
	copy(handlers, b.handlers[event.Type()])
	b.mu.RUnlock()

	log.WithFields(log.Fields{
		"eventType":    event.Type(),
		"handlerCount": len(handlers),
	}).Debug("Emitting event")

	for i, handler := range handlers {
		go func(h Handler, handlerIndex int) {
			defer func() {
				if r := recover(); r != nil {
					log.WithFields(log.Fields{
						"eventType":    event.Type(),
						"handlerIndex": handlerIndex,
						"panic":        r,
					}).Error("Event handler panicked")
				}
			}()
			h(ctx, event)
		}(handler, i)
	}
}

// TransactionalBus holds events raised inside a unit of work until the
// transaction commits.
type TransactionalBus struct {
	real    *Bus
	pending []Event
}

func NewTransactionalBus(real *Bus) *TransactionalBus {
	return &TransactionalBus{real: real}
}

// Publish queues an event until Flush
func (b *TransactionalBus) Publish(e Event) {
	b.pending = append(b.pending, e)
}

// Pending returns the number of queued events
func (b *TransactionalBus) Pending() int {
	return len(b.pending)
}

// Flush emits queued events to the real bus. Called after a successful commit.
func (b *TransactionalBus) Flush(ctx context.Context) {
	if b.real == nil {
		b.pending = nil
		return
	}

	// Handlers outlive the request that committed the transaction
	eventCtx := context.WithoutCancel(ctx)

	for _, ev := range b.pending {
		b.real.Emit(eventCtx, ev)
	}

	log.WithField("eventCount", len(b.pending)).Debug("Flushed transactional events")
	b.pending = nil
}

// Discard drops queued events. Called after a rollback.
func (b *TransactionalBus) Discard() {
	if len(b.pending) > 0 {
		log.WithField("eventCount", len(b.pending)).Debug("Discarded transactional events")
	}
	b.pending = nil
}
