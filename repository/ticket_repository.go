package repository

import (
	"context"
	"errors"
	"fmt"

	"raffler/database"
	"raffler/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// TicketRepository implements the TicketRepository interface
type TicketRepository struct {
	q queryable
}

// NewTicketRepository creates a new ticket repository
func NewTicketRepository(db *database.DB) *TicketRepository {
	return &TicketRepository{q: db.Pool}
}

// newTicketRepositoryWithTx creates a new ticket repository bound to a transaction
func newTicketRepositoryWithTx(tx queryable) *TicketRepository {
	return &TicketRepository{q: tx}
}

// Create inserts a new ticket. A second live ticket for the same raffle number
// is rejected by the partial unique index and surfaces as a conflict.
func (r *TicketRepository) Create(ctx context.Context, ticket *models.Ticket) error {
	query := `
		INSERT INTO tickets (raffle_id, user_id, number, status, payment_proof_ref)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`

	err := r.q.QueryRow(ctx, query,
		ticket.RaffleID,
		ticket.UserID,
		ticket.Number,
		ticket.Status,
		ticket.PaymentProofRef,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
	if err != nil {
		translated := translateError(err, fmt.Sprintf("create ticket %d for raffle %s", ticket.Number, ticket.RaffleID))
		if models.KindOf(translated) == models.KindConflict {
			return &models.Error{
				Kind:    models.KindConflict,
				Message: fmt.Sprintf("number %d already sold", ticket.Number),
				Err:     translated,
			}
		}
		return translated
	}

	return nil
}

// GetByID retrieves a ticket by ID
func (r *TicketRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Ticket, error) {
	query := `
		SELECT id, raffle_id, user_id, number, status, payment_proof_ref, created_at, updated_at
		FROM tickets
		WHERE id = $1
	`

	var ticket models.Ticket
	err := r.q.QueryRow(ctx, query, id).Scan(
		&ticket.ID,
		&ticket.RaffleID,
		&ticket.UserID,
		&ticket.Number,
		&ticket.Status,
		&ticket.PaymentProofRef,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, translateError(err, fmt.Sprintf("get ticket %s", id))
	}

	return &ticket, nil
}

// GetByUser returns a user's tickets newest first, joined with their raffle
func (r *TicketRepository) GetByUser(ctx context.Context, userID uuid.UUID) ([]*models.Ticket, error) {
	query := `
		SELECT t.id, t.raffle_id, t.user_id, t.number, t.status, t.payment_proof_ref,
		       t.created_at, t.updated_at,
		       r.title, r.raffle_type, r.status, r.draw_date, r.winning_number
		FROM tickets t
		JOIN raffles r ON r.id = t.raffle_id
		WHERE t.user_id = $1 AND r.deleted_at IS NULL
		ORDER BY t.created_at DESC
	`

	rows, err := r.q.Query(ctx, query, userID)
	if err != nil {
		return nil, translateError(err, fmt.Sprintf("get tickets for user %s", userID))
	}
	defer rows.Close()

	tickets := make([]*models.Ticket, 0)
	for rows.Next() {
		var ticket models.Ticket
		var raffle models.RaffleSummary
		err := rows.Scan(
			&ticket.ID,
			&ticket.RaffleID,
			&ticket.UserID,
			&ticket.Number,
			&ticket.Status,
			&ticket.PaymentProofRef,
			&ticket.CreatedAt,
			&ticket.UpdatedAt,
			&raffle.Title,
			&raffle.RaffleType,
			&raffle.Status,
			&raffle.DrawDate,
			&raffle.WinningNumber,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ticket: %w", err)
		}
		raffle.ID = ticket.RaffleID
		ticket.Raffle = &raffle
		tickets = append(tickets, &ticket)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tickets: %w", err)
	}

	return tickets, nil
}

// GetByRaffle returns every ticket of a raffle ordered by number
func (r *TicketRepository) GetByRaffle(ctx context.Context, raffleID uuid.UUID) ([]*models.Ticket, error) {
	query := `
		SELECT id, raffle_id, user_id, number, status, payment_proof_ref, created_at, updated_at
		FROM tickets
		WHERE raffle_id = $1
		ORDER BY number ASC, created_at ASC
	`

	rows, err := r.q.Query(ctx, query, raffleID)
	if err != nil {
		return nil, translateError(err, fmt.Sprintf("get tickets for raffle %s", raffleID))
	}
	defer rows.Close()

	tickets := make([]*models.Ticket, 0)
	for rows.Next() {
		var ticket models.Ticket
		err := rows.Scan(
			&ticket.ID,
			&ticket.RaffleID,
			&ticket.UserID,
			&ticket.Number,
			&ticket.Status,
			&ticket.PaymentProofRef,
			&ticket.CreatedAt,
			&ticket.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ticket: %w", err)
		}
		tickets = append(tickets, &ticket)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tickets: %w", err)
	}

	return tickets, nil
}

// UpdateStatus changes a ticket's status
func (r *TicketRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.TicketStatus) error {
	query := `
		UPDATE tickets
		SET status = $2, updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.q.Exec(ctx, query, id, status)
	if err != nil {
		return translateError(err, fmt.Sprintf("update status of ticket %s", id))
	}

	if result.RowsAffected() == 0 {
		return models.NewNotFound("ticket %s not found", id)
	}

	return nil
}

// HasLiveTicket reports whether a non-canceled ticket other than excludeID holds number
func (r *TicketRepository) HasLiveTicket(ctx context.Context, raffleID uuid.UUID, number int, excludeID uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1
			FROM tickets
			WHERE raffle_id = $1 AND number = $2 AND status <> 'canceled' AND id <> $3
		)
	`

	var exists bool
	if err := r.q.QueryRow(ctx, query, raffleID, number, excludeID).Scan(&exists); err != nil {
		return false, translateError(err, fmt.Sprintf("check live ticket %d for raffle %s", number, raffleID))
	}

	return exists, nil
}
