package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"raffler/database"
	"raffler/models"

	"github.com/google/uuid"
)

// HistoryRepository implements the append-only raffle history log. It has no
// update or delete path.
type HistoryRepository struct {
	q queryable
}

// NewHistoryRepository creates a new history repository
func NewHistoryRepository(db *database.DB) *HistoryRepository {
	return &HistoryRepository{q: db.Pool}
}

// newHistoryRepositoryWithTx creates a new history repository bound to a transaction
func newHistoryRepositoryWithTx(tx queryable) *HistoryRepository {
	return &HistoryRepository{q: tx}
}

// Append records a new history entry
func (r *HistoryRepository) Append(ctx context.Context, entry *models.HistoryEntry) error {
	details := entry.Details
	if details == nil {
		details = map[string]interface{}{}
	}

	detailsJSON, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("failed to marshal history details: %w", err)
	}

	query := `
		INSERT INTO raffle_history (raffle_id, performed_by_id, action, details)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`

	err = r.q.QueryRow(ctx, query,
		entry.RaffleID,
		entry.PerformedByID,
		entry.Action,
		detailsJSON,
	).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return translateError(err, fmt.Sprintf("append %s history for raffle %s", entry.Action, entry.RaffleID))
	}

	entry.Details = details
	return nil
}

// GetByRaffle returns a raffle's history newest first with the performing user
func (r *HistoryRepository) GetByRaffle(ctx context.Context, raffleID uuid.UUID) ([]*models.HistoryEntry, error) {
	query := `
		SELECT h.id, h.raffle_id, h.performed_by_id, h.action, h.details, h.created_at,
		       u.name, u.email
		FROM raffle_history h
		JOIN users u ON u.id = h.performed_by_id
		WHERE h.raffle_id = $1
		ORDER BY h.created_at DESC, h.id DESC
	`

	rows, err := r.q.Query(ctx, query, raffleID)
	if err != nil {
		return nil, translateError(err, fmt.Sprintf("get history for raffle %s", raffleID))
	}
	defer rows.Close()

	entries := make([]*models.HistoryEntry, 0)
	for rows.Next() {
		var entry models.HistoryEntry
		var performer models.UserSummary
		var detailsJSON []byte

		err := rows.Scan(
			&entry.ID,
			&entry.RaffleID,
			&entry.PerformedByID,
			&entry.Action,
			&detailsJSON,
			&entry.CreatedAt,
			&performer.Name,
			&performer.Email,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}

		if err := json.Unmarshal(detailsJSON, &entry.Details); err != nil {
			return nil, fmt.Errorf("failed to unmarshal history details: %w", err)
		}

		performer.ID = entry.PerformedByID
		entry.PerformedBy = &performer
		entries = append(entries, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate history: %w", err)
	}

	return entries, nil
}
