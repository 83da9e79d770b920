package application

import (
	"context"
	"fmt"
	"time"

	"raffler/service"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// DrawWorker runs app draws for raffles whose draw date has passed
type DrawWorker struct {
	drawService service.DrawService
	interval    time.Duration
	now         func() time.Time
}

// NewDrawWorker creates a new draw worker polling every interval
func NewDrawWorker(drawService service.DrawService, interval time.Duration) *DrawWorker {
	return &DrawWorker{
		drawService: drawService,
		interval:    interval,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Start begins the draw worker and returns a function that stops it
func (w *DrawWorker) Start(ctx context.Context) func() {
	stopChan := make(chan struct{})

	go func() {
		log.WithField("interval", w.interval).Info("Draw worker started")

		for {
			if err := w.processDueDraws(ctx); err != nil {
				log.Errorf("Error processing due draws: %v", err)
			}

			select {
			case <-ctx.Done():
				log.Info("Draw worker shutting down (context cancelled)...")
				return
			case <-stopChan:
				log.Info("Draw worker shutting down (stop requested)...")
				return
			case <-time.After(w.interval):
			}
		}
	}()

	return func() {
		close(stopChan)
	}
}

// processDueDraws runs every due draw, each in its own transaction
func (w *DrawWorker) processDueDraws(ctx context.Context) error {
	ids, err := w.drawService.DueAppDraws(ctx, w.now())
	if err != nil {
		return fmt.Errorf("failed to get due draws: %w", err)
	}

	if len(ids) == 0 {
		log.Debug("No app draws due")
		return nil
	}

	log.Infof("Found %d due app draws to process", len(ids))

	var successCount, skippedCount, failureCount int
	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}

		drawn, err := w.runDraw(ctx, id)
		switch {
		case err != nil:
			log.WithError(err).WithField("raffle_id", id).Error("App draw failed")
			failureCount++
		case !drawn:
			skippedCount++
		default:
			successCount++
		}
	}

	log.WithFields(log.Fields{
		"total_draws": len(ids),
		"successful":  successCount,
		"skipped":     skippedCount,
		"failed":      failureCount,
	}).Info("Completed app draw processing")

	return nil
}

// runDraw reports false when another caller already finished the raffle
func (w *DrawWorker) runDraw(ctx context.Context, id uuid.UUID) (bool, error) {
	raffle, err := w.drawService.RunAppDraw(ctx, id)
	if err != nil {
		return false, err
	}
	return raffle != nil, nil
}
