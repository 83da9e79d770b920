package models

import (
	"time"

	"github.com/google/uuid"
)

// HistoryAction names the kind of change recorded against a raffle
type HistoryAction string

const (
	HistoryActionRaffleCreated          HistoryAction = "RAFFLE_CREATED"
	HistoryActionStatusUpdated          HistoryAction = "STATUS_UPDATED"
	HistoryActionDrawSettingsUpdated    HistoryAction = "DRAW_SETTINGS_UPDATED"
	HistoryActionWinningNumbersSet      HistoryAction = "WINNING_NUMBERS_SET"
	HistoryActionRecurrentRaffleCreated HistoryAction = "RECURRENT_RAFFLE_CREATED"
)

// HistoryEntry is an immutable audit record of a change applied to a raffle
type HistoryEntry struct {
	ID            uuid.UUID              `db:"id" json:"id"`
	RaffleID      uuid.UUID              `db:"raffle_id" json:"raffleId"`
	PerformedByID uuid.UUID              `db:"performed_by_id" json:"performedById"`
	Action        HistoryAction          `db:"action" json:"action"`
	Details       map[string]interface{} `db:"details" json:"details"`
	CreatedAt     time.Time              `db:"created_at" json:"createdAt"`
	PerformedBy   *UserSummary           `db:"-" json:"performedBy,omitempty"`
}
