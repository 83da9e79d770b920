package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"raffler/events"
	"raffler/models"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// raffleService implements the RaffleService interface
type raffleService struct {
	uowFactory  UnitOfWorkFactory
	validate    *validator.Validate
	metrics     MetricsRecorder
	lockTimeout time.Duration
}

// NewRaffleService creates a new raffle service
func NewRaffleService(uowFactory UnitOfWorkFactory, metrics MetricsRecorder, lockTimeout time.Duration) RaffleService {
	return &raffleService{
		uowFactory:  uowFactory,
		validate:    newValidator(),
		metrics:     metricsOrNoop(metrics),
		lockTimeout: lockTimeout,
	}
}

// Create creates a draft raffle with every number unclaimed
func (s *raffleService) Create(ctx context.Context, input models.CreateRaffleInput) (*models.Raffle, error) {
	input.Title = strings.TrimSpace(input.Title)
	input.Description = strings.TrimSpace(input.Description)

	if err := s.validate.Struct(input); err != nil {
		return nil, validationError(err)
	}

	pool, err := models.NewNumberPool(input.RaffleType)
	if err != nil {
		return nil, models.NewInvalidArgument("invalid raffle type %q", input.RaffleType)
	}

	drawMode := input.DrawMode
	if drawMode == "" {
		drawMode = models.DrawModeAppDraw
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	creator, err := uow.UserRepository().GetByID(ctx, input.CreatorID)
	if err != nil {
		return nil, fmt.Errorf("failed to get creator: %w", err)
	}
	if creator == nil {
		return nil, models.NewNotFound("user %s not found", input.CreatorID)
	}

	if input.MajorityOwnerID != nil {
		owner, err := uow.UserRepository().GetByID(ctx, *input.MajorityOwnerID)
		if err != nil {
			return nil, fmt.Errorf("failed to get majority owner: %w", err)
		}
		if owner == nil {
			return nil, models.NewNotFound("user %s not found", *input.MajorityOwnerID)
		}
	}

	raffle := &models.Raffle{
		CreatorID:        input.CreatorID,
		MajorityOwnerID:  input.MajorityOwnerID,
		Title:            input.Title,
		Description:      input.Description,
		TicketPrice:      input.TicketPrice,
		PrizeValue:       input.PrizeValue,
		SecondPrizeValue: input.SecondPrizeValue,
		PrizeImageURL:    input.PrizeImageURL,
		RaffleType:       input.RaffleType,
		NumberPool:       pool,
		Status:           models.RaffleStatusDraft,
		DrawMode:         drawMode,
		DrawDate:         input.DrawDate,
		Featured:         input.Featured,
	}

	if err := uow.RaffleRepository().Create(ctx, raffle); err != nil {
		return nil, fmt.Errorf("failed to create raffle: %w", err)
	}

	entry := &models.HistoryEntry{
		RaffleID:      raffle.ID,
		PerformedByID: raffle.CreatorID,
		Action:        models.HistoryActionRaffleCreated,
		Details: map[string]interface{}{
			"drawMode":               string(raffle.DrawMode),
			"drawDate":               formatTime(raffle.DrawDate),
			"hasSecondPrizeInverted": raffle.HasSecondPrizeInverted,
			"featured":               raffle.Featured,
		},
	}
	if err := uow.HistoryRepository().Append(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to record raffle creation: %w", err)
	}

	uow.EventBus().Publish(events.RaffleCreatedEvent{
		RaffleID:   raffle.ID,
		CreatorID:  raffle.CreatorID,
		RaffleType: raffle.RaffleType,
		Status:     raffle.Status,
	})

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"raffle_id":   raffle.ID,
		"creator_id":  raffle.CreatorID,
		"raffle_type": raffle.RaffleType,
	}).Info("Raffle created")

	return raffle, nil
}

// FindAll returns every non-deleted raffle, newest first
func (s *raffleService) FindAll(ctx context.Context) ([]*models.Raffle, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	raffles, err := uow.RaffleRepository().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list raffles: %w", err)
	}

	return raffles, nil
}

// FindOne returns a raffle resolved with its creator, majority owner and history
func (s *raffleService) FindOne(ctx context.Context, id uuid.UUID) (*models.RaffleDetail, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	raffle, err := uow.RaffleRepository().GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get raffle: %w", err)
	}
	if raffle == nil {
		return nil, models.NewNotFound("raffle %s not found", id)
	}

	detail := &models.RaffleDetail{Raffle: raffle}

	creator, err := uow.UserRepository().GetByID(ctx, raffle.CreatorID)
	if err != nil {
		return nil, fmt.Errorf("failed to get creator: %w", err)
	}
	if creator != nil {
		detail.Creator = creator.Summary()
	}

	if raffle.MajorityOwnerID != nil {
		owner, err := uow.UserRepository().GetByID(ctx, *raffle.MajorityOwnerID)
		if err != nil {
			return nil, fmt.Errorf("failed to get majority owner: %w", err)
		}
		if owner != nil {
			detail.MajorityOwner = owner.Summary()
		}
	}

	history, err := uow.HistoryRepository().GetByRaffle(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get raffle history: %w", err)
	}
	detail.History = history

	return detail, nil
}

// ListHistory returns the raffle's history newest first
func (s *raffleService) ListHistory(ctx context.Context, id uuid.UUID) ([]*models.HistoryEntry, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	raffle, err := uow.RaffleRepository().GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get raffle: %w", err)
	}
	if raffle == nil {
		return nil, models.NewNotFound("raffle %s not found", id)
	}

	history, err := uow.HistoryRepository().GetByRaffle(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get raffle history: %w", err)
	}

	return history, nil
}

// SetStatus moves a raffle to newStatus. Any known status may follow any other;
// the previous status is captured before the change and recorded in history.
func (s *raffleService) SetStatus(ctx context.Context, id uuid.UUID, newStatus models.RaffleStatus, actorID uuid.UUID) (*models.Raffle, error) {
	if !newStatus.Valid() {
		return nil, models.NewInvalidArgument("invalid raffle status %q", newStatus)
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	if err := uow.SetLockTimeout(s.lockTimeout); err != nil {
		return nil, fmt.Errorf("failed to set lock timeout: %w", err)
	}

	lockStart := time.Now()
	raffle, err := uow.RaffleRepository().GetByIDForUpdate(ctx, id)
	s.metrics.RecordLockWait("set_status", time.Since(lockStart))
	if err != nil {
		return nil, fmt.Errorf("failed to lock raffle: %w", err)
	}
	if raffle == nil {
		return nil, models.NewNotFound("raffle %s not found", id)
	}

	previousStatus := raffle.Status
	raffle.Status = newStatus

	if err := uow.RaffleRepository().Update(ctx, raffle); err != nil {
		return nil, fmt.Errorf("failed to update raffle status: %w", err)
	}

	entry := &models.HistoryEntry{
		RaffleID:      raffle.ID,
		PerformedByID: actorID,
		Action:        models.HistoryActionStatusUpdated,
		Details: map[string]interface{}{
			"previousStatus": string(previousStatus),
			"newStatus":      string(newStatus),
		},
	}
	if err := uow.HistoryRepository().Append(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to record status change: %w", err)
	}

	uow.EventBus().Publish(events.RaffleStatusChangedEvent{
		RaffleID:  raffle.ID,
		ActorID:   actorID,
		OldStatus: previousStatus,
		NewStatus: newStatus,
	})

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.metrics.RecordRaffleStatusChange(previousStatus, newStatus)

	log.WithFields(log.Fields{
		"raffle_id":       raffle.ID,
		"actor_id":        actorID,
		"previous_status": previousStatus,
		"new_status":      newStatus,
	}).Info("Raffle status updated")

	return raffle, nil
}

// CreateRecurrent starts a new round of a finished raffle. The copy keeps the
// parent's content and draw configuration with a fresh pool, no winners and no
// draw date.
func (s *raffleService) CreateRecurrent(ctx context.Context, parentID uuid.UUID, actorID uuid.UUID) (*models.Raffle, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	if err := uow.SetLockTimeout(s.lockTimeout); err != nil {
		return nil, fmt.Errorf("failed to set lock timeout: %w", err)
	}

	parent, err := uow.RaffleRepository().GetByIDForUpdate(ctx, parentID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock parent raffle: %w", err)
	}
	if parent == nil {
		return nil, models.NewNotFound("raffle %s not found", parentID)
	}
	if parent.Status != models.RaffleStatusFinished {
		return nil, models.NewInvalidState("only finished raffles can recur, raffle is %s", parent.Status)
	}

	pool, err := models.NewNumberPool(parent.RaffleType)
	if err != nil {
		return nil, fmt.Errorf("failed to create number pool: %w", err)
	}

	child := &models.Raffle{
		CreatorID:                parent.CreatorID,
		MajorityOwnerID:          parent.MajorityOwnerID,
		ParentRaffleID:           &parent.ID,
		Title:                    parent.Title,
		Description:              parent.Description,
		TicketPrice:              parent.TicketPrice,
		PrizeValue:               parent.PrizeValue,
		SecondPrizeValue:         parent.SecondPrizeValue,
		PrizeImageURL:            parent.PrizeImageURL,
		RaffleType:               parent.RaffleType,
		NumberPool:               pool,
		Status:                   models.RaffleStatusRecurrent,
		DrawMode:                 parent.DrawMode,
		ExternalLotterySource:    parent.ExternalLotterySource,
		HasSecondPrizeInverted:   parent.HasSecondPrizeInverted,
		HasSecondPrizePalindrome: parent.HasSecondPrizePalindrome,
		Featured:                 parent.Featured,
	}

	if err := uow.RaffleRepository().Create(ctx, child); err != nil {
		return nil, fmt.Errorf("failed to create recurrent raffle: %w", err)
	}

	entry := &models.HistoryEntry{
		RaffleID:      child.ID,
		PerformedByID: actorID,
		Action:        models.HistoryActionRecurrentRaffleCreated,
		Details: map[string]interface{}{
			"parentRaffleId": parent.ID.String(),
		},
	}
	if err := uow.HistoryRepository().Append(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to record recurrent raffle: %w", err)
	}

	uow.EventBus().Publish(events.RaffleCreatedEvent{
		RaffleID:       child.ID,
		CreatorID:      child.CreatorID,
		ParentRaffleID: child.ParentRaffleID,
		RaffleType:     child.RaffleType,
		Status:         child.Status,
	})

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"raffle_id":        child.ID,
		"parent_raffle_id": parent.ID,
		"actor_id":         actorID,
	}).Info("Recurrent raffle created")

	return child, nil
}
