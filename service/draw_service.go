package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"raffler/events"
	"raffler/models"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// dueAppDrawBatchSize caps how many due raffles one scan returns
const dueAppDrawBatchSize = 100

// DrawAuthorizer decides who may change a raffle's draw settings
type DrawAuthorizer interface {
	CanChangeDrawSettings(raffle *models.Raffle, actorID uuid.UUID) bool
}

// OwnerDrawAuthorizer allows the majority owner when one is set, otherwise the creator
type OwnerDrawAuthorizer struct{}

func (OwnerDrawAuthorizer) CanChangeDrawSettings(raffle *models.Raffle, actorID uuid.UUID) bool {
	return raffle.DrawAuthorityID() == actorID
}

// drawService implements the DrawService interface
type drawService struct {
	uowFactory  UnitOfWorkFactory
	authorizer  DrawAuthorizer
	metrics     MetricsRecorder
	lockTimeout time.Duration
	now         func() time.Time
	pick        func(upper int) (int, error)
}

// NewDrawService creates a new draw service. A nil authorizer uses OwnerDrawAuthorizer.
func NewDrawService(uowFactory UnitOfWorkFactory, authorizer DrawAuthorizer, metrics MetricsRecorder, lockTimeout time.Duration) DrawService {
	if authorizer == nil {
		authorizer = OwnerDrawAuthorizer{}
	}
	return &drawService{
		uowFactory:  uowFactory,
		authorizer:  authorizer,
		metrics:     metricsOrNoop(metrics),
		lockTimeout: lockTimeout,
		now:         time.Now,
		pick:        randomNumber,
	}
}

// UpdateDrawSettings changes the draw mode and date. Only the raffle's draw
// authority may do this; a refused change leaves no trace in history.
func (s *drawService) UpdateDrawSettings(ctx context.Context, raffleID uuid.UUID, input models.DrawSettingsInput) (*models.Raffle, error) {
	if !input.DrawMode.Valid() {
		return nil, models.NewInvalidArgument("invalid draw mode %q", input.DrawMode)
	}
	if input.DrawDate.IsZero() {
		return nil, models.NewInvalidArgument("draw date is required")
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
	raffle, err := uow.RaffleRepository().GetByIDForUpdate(ctx, raffleID)
	s.metrics.RecordLockWait("draw_settings", time.Since(lockStart))
	if err != nil {
		return nil, fmt.Errorf("failed to lock raffle: %w", err)
	}
	if raffle == nil {
		return nil, models.NewNotFound("raffle %s not found", raffleID)
	}

	if !s.authorizer.CanChangeDrawSettings(raffle, input.ActorID) {
		return nil, models.NewForbidden("only the raffle's majority owner or creator can change draw settings")
	}

	drawDate := input.DrawDate.UTC()
	raffle.DrawMode = input.DrawMode
	raffle.DrawDate = &drawDate
	raffle.HasSecondPrizeInverted = input.HasSecondPrizeInverted != nil && *input.HasSecondPrizeInverted
	raffle.HasSecondPrizePalindrome = input.HasSecondPrizePalindrome != nil && *input.HasSecondPrizePalindrome

	switch raffle.DrawMode {
	case models.DrawModeExternalLottery:
		// Without a source the previous one is kept
		if input.ExternalLotterySource != nil && *input.ExternalLotterySource != "" {
			source := *input.ExternalLotterySource
			raffle.ExternalLotterySource = &source
		}
	case models.DrawModeAppDraw:
		raffle.ExternalLotterySource = nil
	}

	if err := uow.RaffleRepository().Update(ctx, raffle); err != nil {
		return nil, fmt.Errorf("failed to update draw settings: %w", err)
	}

	entry := &models.HistoryEntry{
		RaffleID:      raffle.ID,
		PerformedByID: input.ActorID,
		Action:        models.HistoryActionDrawSettingsUpdated,
		Details: map[string]interface{}{
			"drawMode":                 string(raffle.DrawMode),
			"drawDate":                 formatTime(raffle.DrawDate),
			"hasSecondPrizeInverted":   raffle.HasSecondPrizeInverted,
			"hasSecondPrizePalindrome": raffle.HasSecondPrizePalindrome,
			"externalLotterySource":    optionalString(raffle.ExternalLotterySource),
		},
	}
	if err := uow.HistoryRepository().Append(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to record draw settings: %w", err)
	}

	uow.EventBus().Publish(events.DrawSettingsUpdatedEvent{
		RaffleID:              raffle.ID,
		ActorID:               input.ActorID,
		DrawMode:              raffle.DrawMode,
		DrawDate:              drawDate,
		ExternalLotterySource: raffle.ExternalLotterySource,
	})

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"raffle_id": raffle.ID,
		"actor_id":  input.ActorID,
		"draw_mode": raffle.DrawMode,
		"draw_date": drawDate,
	}).Info("Draw settings updated")

	return raffle, nil
}

// SetWinningNumbers records the winners as given. The numbers are not checked
// against the pool and the raffle status is left alone.
func (s *drawService) SetWinningNumbers(ctx context.Context, raffleID uuid.UUID, winningNumber int, secondPrizeWinningNumber *int, actorID *uuid.UUID) (*models.Raffle, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	if err := uow.SetLockTimeout(s.lockTimeout); err != nil {
		return nil, fmt.Errorf("failed to set lock timeout: %w", err)
	}

	raffle, err := uow.RaffleRepository().GetByIDForUpdate(ctx, raffleID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock raffle: %w", err)
	}
	if raffle == nil {
		return nil, models.NewNotFound("raffle %s not found", raffleID)
	}

	performedBy := raffle.CreatorID
	if actorID != nil {
		performedBy = *actorID
	}

	raffle.WinningNumber = &winningNumber
	raffle.SecondPrizeWinningNumber = secondPrizeWinningNumber

	if err := uow.RaffleRepository().Update(ctx, raffle); err != nil {
		return nil, fmt.Errorf("failed to update winning numbers: %w", err)
	}

	if err := s.recordWinners(ctx, uow, raffle, performedBy, "manual"); err != nil {
		return nil, err
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"raffle_id":      raffle.ID,
		"actor_id":       performedBy,
		"winning_number": winningNumber,
	}).Info("Winning numbers set")

	return raffle, nil
}

// RunAppDraw draws a uniform winning number for a due app-draw raffle, derives
// the inverted second prize when enabled and finishes the raffle. The due check
// is repeated under the lock, so a raffle drawn or reconfigured meanwhile is
// skipped with a nil result.
func (s *drawService) RunAppDraw(ctx context.Context, raffleID uuid.UUID) (raffle *models.Raffle, err error) {
	defer func() {
		if raffle != nil || err != nil {
			s.metrics.RecordAppDraw(err == nil)
		}
	}()

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	if err := uow.SetLockTimeout(s.lockTimeout); err != nil {
		return nil, fmt.Errorf("failed to set lock timeout: %w", err)
	}

	lockStart := time.Now()
	raffle, err = uow.RaffleRepository().GetByIDForUpdate(ctx, raffleID)
	s.metrics.RecordLockWait("app_draw", time.Since(lockStart))
	if err != nil {
		return nil, fmt.Errorf("failed to lock raffle: %w", err)
	}
	if raffle == nil || !raffle.IsDrawDue(s.now()) {
		return nil, nil
	}

	slots, err := raffle.RaffleType.SlotCount()
	if err != nil {
		return nil, fmt.Errorf("failed to size raffle %s: %w", raffle.ID, err)
	}

	winningNumber, err := s.pick(slots)
	if err != nil {
		return nil, fmt.Errorf("failed to draw winning number: %w", err)
	}

	var secondPrize *int
	if raffle.HasSecondPrizeInverted {
		inverted, err := raffle.RaffleType.InvertedNumber(winningNumber)
		if err != nil {
			return nil, fmt.Errorf("failed to derive second prize number: %w", err)
		}
		secondPrize = &inverted
	}

	previousStatus := raffle.Status
	raffle.WinningNumber = &winningNumber
	raffle.SecondPrizeWinningNumber = secondPrize
	raffle.Status = models.RaffleStatusFinished

	if err := uow.RaffleRepository().Update(ctx, raffle); err != nil {
		return nil, fmt.Errorf("failed to finish raffle: %w", err)
	}

	if err := s.recordWinners(ctx, uow, raffle, raffle.CreatorID, string(models.DrawModeAppDraw)); err != nil {
		return nil, err
	}

	statusEntry := &models.HistoryEntry{
		RaffleID:      raffle.ID,
		PerformedByID: raffle.CreatorID,
		Action:        models.HistoryActionStatusUpdated,
		Details: map[string]interface{}{
			"previousStatus": string(previousStatus),
			"newStatus":      string(raffle.Status),
		},
	}
	if err := uow.HistoryRepository().Append(ctx, statusEntry); err != nil {
		return nil, fmt.Errorf("failed to record status change: %w", err)
	}

	uow.EventBus().Publish(events.RaffleStatusChangedEvent{
		RaffleID:  raffle.ID,
		ActorID:   raffle.CreatorID,
		OldStatus: previousStatus,
		NewStatus: raffle.Status,
	})

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.metrics.RecordRaffleStatusChange(previousStatus, raffle.Status)

	log.WithFields(log.Fields{
		"raffle_id":      raffle.ID,
		"winning_number": winningNumber,
		"second_prize":   optionalInt(secondPrize),
	}).Info("App draw completed")

	return raffle, nil
}

// DueAppDraws lists raffles whose app draw should run at now
func (s *drawService) DueAppDraws(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	ids, err := uow.RaffleRepository().GetDueAppDrawIDs(ctx, now, dueAppDrawBatchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to get due app draws: %w", err)
	}

	return ids, nil
}

// recordWinners appends the WINNING_NUMBERS_SET entry and queues its event
func (s *drawService) recordWinners(ctx context.Context, uow UnitOfWork, raffle *models.Raffle, actorID uuid.UUID, source string) error {
	entry := &models.HistoryEntry{
		RaffleID:      raffle.ID,
		PerformedByID: actorID,
		Action:        models.HistoryActionWinningNumbersSet,
		Details: map[string]interface{}{
			"winningNumber":            optionalInt(raffle.WinningNumber),
			"secondPrizeWinningNumber": optionalInt(raffle.SecondPrizeWinningNumber),
			"source":                   source,
		},
	}
	if err := uow.HistoryRepository().Append(ctx, entry); err != nil {
		return fmt.Errorf("failed to record winning numbers: %w", err)
	}

	uow.EventBus().Publish(events.WinningNumbersSetEvent{
		RaffleID:                 raffle.ID,
		ActorID:                  actorID,
		WinningNumber:            *raffle.WinningNumber,
		SecondPrizeWinningNumber: raffle.SecondPrizeWinningNumber,
		Source:                   source,
	})

	return nil
}

// randomNumber returns a uniform number in [0, upper)
func randomNumber(upper int) (int, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(upper)))
	if err != nil {
		return 0, err
	}
	return int(n.Int64()), nil
}
