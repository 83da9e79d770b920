package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"raffler/events"
	"raffler/models"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// ticketService implements the TicketService interface
type ticketService struct {
	uowFactory      UnitOfWorkFactory
	metrics         MetricsRecorder
	lockTimeout     time.Duration
	purchaseTimeout time.Duration
}

// NewTicketService creates a new ticket service. purchaseTimeout bounds a whole
// purchase including the wait for the raffle lock; lockTimeout bounds each lock wait.
func NewTicketService(uowFactory UnitOfWorkFactory, metrics MetricsRecorder, lockTimeout, purchaseTimeout time.Duration) TicketService {
	return &ticketService{
		uowFactory:      uowFactory,
		metrics:         metricsOrNoop(metrics),
		lockTimeout:     lockTimeout,
		purchaseTimeout: purchaseTimeout,
	}
}

// Purchase claims number on the raffle and creates a pending ticket in one
// transaction. The raffle row stays locked from the pool read until commit, so
// concurrent purchases of the same raffle run one at a time and a second buyer
// of the same number sees the first's claim.
func (s *ticketService) Purchase(ctx context.Context, raffleID, userID uuid.UUID, number int, paymentProofRef string) (ticket *models.Ticket, err error) {
	defer func() {
		s.metrics.RecordPurchase(models.KindOf(err))
	}()

	if s.purchaseTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.purchaseTimeout)
		defer cancel()
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, busyOnDeadline(ctx, fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer uow.Rollback()

	if err := uow.SetLockTimeout(s.lockTimeout); err != nil {
		return nil, busyOnDeadline(ctx, fmt.Errorf("failed to set lock timeout: %w", err))
	}

	user, err := uow.UserRepository().GetByID(ctx, userID)
	if err != nil {
		return nil, busyOnDeadline(ctx, fmt.Errorf("failed to get user: %w", err))
	}
	if user == nil {
		return nil, models.NewNotFound("user %s not found", userID)
	}

	lockStart := time.Now()
	raffle, err := uow.RaffleRepository().GetByIDForUpdate(ctx, raffleID)
	s.metrics.RecordLockWait("purchase", time.Since(lockStart))
	if err != nil {
		return nil, busyOnDeadline(ctx, fmt.Errorf("failed to lock raffle: %w", err))
	}
	if raffle == nil {
		return nil, models.NewNotFound("raffle %s not found", raffleID)
	}

	if !raffle.IsOpenForPurchase() {
		return nil, models.NewInvalidState("raffle not open for purchase")
	}

	slots, err := raffle.RaffleType.SlotCount()
	if err != nil {
		return nil, fmt.Errorf("failed to size raffle %s: %w", raffle.ID, err)
	}
	if number < 0 || number >= slots {
		return nil, models.NewInvalidArgument("number %d out of range [0, %d)", number, slots)
	}

	paymentProofRef = strings.TrimSpace(paymentProofRef)
	if paymentProofRef == "" {
		return nil, models.NewInvalidArgument("payment proof reference is required")
	}

	pool := raffle.NumberPool.Clone()
	if err := pool.Claim(number); err != nil {
		if errors.Is(err, models.ErrAlreadyClaimed) {
			return nil, models.NewConflict("number %d already sold", number)
		}
		return nil, fmt.Errorf("failed to claim number %d: %w", number, err)
	}
	raffle.NumberPool = pool

	if err := uow.RaffleRepository().Update(ctx, raffle); err != nil {
		return nil, busyOnDeadline(ctx, fmt.Errorf("failed to update number pool: %w", err))
	}

	ticket = &models.Ticket{
		RaffleID:        raffle.ID,
		UserID:          userID,
		Number:          number,
		Status:          models.TicketStatusPending,
		PaymentProofRef: paymentProofRef,
	}
	if err := uow.TicketRepository().Create(ctx, ticket); err != nil {
		return nil, busyOnDeadline(ctx, fmt.Errorf("failed to create ticket: %w", err))
	}

	uow.EventBus().Publish(events.TicketPurchasedEvent{
		TicketID: ticket.ID,
		RaffleID: ticket.RaffleID,
		UserID:   ticket.UserID,
		Number:   ticket.Number,
	})

	if err := uow.Commit(); err != nil {
		return nil, busyOnDeadline(ctx, fmt.Errorf("failed to commit transaction: %w", err))
	}

	log.WithFields(log.Fields{
		"ticket_id": ticket.ID,
		"raffle_id": ticket.RaffleID,
		"user_id":   ticket.UserID,
		"number":    ticket.Number,
	}).Info("Ticket purchased")

	return ticket, nil
}

// Get returns a ticket by ID
func (s *ticketService) Get(ctx context.Context, id uuid.UUID) (*models.Ticket, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	ticket, err := uow.TicketRepository().GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get ticket: %w", err)
	}
	if ticket == nil {
		return nil, models.NewNotFound("ticket %s not found", id)
	}

	return ticket, nil
}

// ListForUser returns a user's tickets newest first with their raffle summaries
func (s *ticketService) ListForUser(ctx context.Context, userID uuid.UUID) ([]*models.Ticket, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	user, err := uow.UserRepository().GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, models.NewNotFound("user %s not found", userID)
	}

	tickets, err := uow.TicketRepository().GetByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get tickets: %w", err)
	}

	return tickets, nil
}

// UpdateStatus moves a ticket to status. The pool number stays claimed whatever
// the status; a canceled ticket cannot come back to life while another live
// ticket holds its number.
func (s *ticketService) UpdateStatus(ctx context.Context, id uuid.UUID, status models.TicketStatus, actorID uuid.UUID) (*models.Ticket, error) {
	if !status.Valid() {
		return nil, models.NewInvalidArgument("invalid ticket status %q", status)
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	if err := uow.SetLockTimeout(s.lockTimeout); err != nil {
		return nil, fmt.Errorf("failed to set lock timeout: %w", err)
	}

	ticket, err := uow.TicketRepository().GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get ticket: %w", err)
	}
	if ticket == nil {
		return nil, models.NewNotFound("ticket %s not found", id)
	}

	// Serialize with purchases on the same raffle
	lockStart := time.Now()
	raffle, err := uow.RaffleRepository().GetByIDForUpdate(ctx, ticket.RaffleID)
	s.metrics.RecordLockWait("ticket_status", time.Since(lockStart))
	if err != nil {
		return nil, fmt.Errorf("failed to lock raffle: %w", err)
	}
	if raffle == nil {
		return nil, models.NewNotFound("raffle %s not found", ticket.RaffleID)
	}

	if ticket.Status == status {
		return ticket, nil
	}

	if !ticket.Status.Live() && status.Live() {
		taken, err := uow.TicketRepository().HasLiveTicket(ctx, ticket.RaffleID, ticket.Number, ticket.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to check number %d: %w", ticket.Number, err)
		}
		if taken {
			return nil, models.NewConflict("number %d already sold", ticket.Number)
		}
	}

	if err := uow.TicketRepository().UpdateStatus(ctx, ticket.ID, status); err != nil {
		return nil, fmt.Errorf("failed to update ticket status: %w", err)
	}

	previousStatus := ticket.Status
	ticket.Status = status

	uow.EventBus().Publish(events.TicketStatusChangedEvent{
		TicketID:  ticket.ID,
		RaffleID:  ticket.RaffleID,
		ActorID:   actorID,
		OldStatus: previousStatus,
		NewStatus: status,
	})

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"ticket_id":       ticket.ID,
		"actor_id":        actorID,
		"previous_status": previousStatus,
		"new_status":      status,
	}).Info("Ticket status updated")

	return ticket, nil
}

// busyOnDeadline reports err as Busy when the purchase deadline expired while
// it was outstanding
func busyOnDeadline(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) && models.KindOf(err) == models.KindInternal {
		return models.NewBusy(err)
	}
	return err
}
