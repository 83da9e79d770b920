package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"raffler/database"
	"raffler/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const raffleColumns = `
	id, creator_id, majority_owner_id, parent_raffle_id, title, description,
	ticket_price, prize_value, second_prize_value, prize_image_url, raffle_type,
	number_pool, status, draw_mode, draw_date, external_lottery_source,
	has_second_prize_inverted, has_second_prize_palindrome, featured,
	winning_number, second_prize_winning_number, created_at, updated_at, deleted_at`

// RaffleRepository implements the RaffleRepository interface
type RaffleRepository struct {
	q queryable
}

// NewRaffleRepository creates a new raffle repository
func NewRaffleRepository(db *database.DB) *RaffleRepository {
	return &RaffleRepository{q: db.Pool}
}

// newRaffleRepositoryWithTx creates a new raffle repository bound to a transaction
func newRaffleRepositoryWithTx(tx queryable) *RaffleRepository {
	return &RaffleRepository{q: tx}
}

// Create inserts a new raffle
func (r *RaffleRepository) Create(ctx context.Context, raffle *models.Raffle) error {
	pool, err := json.Marshal(raffle.NumberPool)
	if err != nil {
		return fmt.Errorf("failed to marshal number pool: %w", err)
	}

	query := `
		INSERT INTO raffles (
			creator_id, majority_owner_id, parent_raffle_id, title, description,
			ticket_price, prize_value, second_prize_value, prize_image_url, raffle_type,
			number_pool, status, draw_mode, draw_date, external_lottery_source,
			has_second_prize_inverted, has_second_prize_palindrome, featured
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		RETURNING id, created_at, updated_at
	`

	err = r.q.QueryRow(ctx, query,
		raffle.CreatorID,
		raffle.MajorityOwnerID,
		raffle.ParentRaffleID,
		raffle.Title,
		raffle.Description,
		raffle.TicketPrice,
		raffle.PrizeValue,
		raffle.SecondPrizeValue,
		raffle.PrizeImageURL,
		raffle.RaffleType,
		pool,
		raffle.Status,
		raffle.DrawMode,
		raffle.DrawDate,
		raffle.ExternalLotterySource,
		raffle.HasSecondPrizeInverted,
		raffle.HasSecondPrizePalindrome,
		raffle.Featured,
	).Scan(&raffle.ID, &raffle.CreatedAt, &raffle.UpdatedAt)
	if err != nil {
		return translateError(err, "create raffle")
	}

	return nil
}

// GetByID retrieves a non-deleted raffle by ID
func (r *RaffleRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Raffle, error) {
	query := `SELECT ` + raffleColumns + `
		FROM raffles
		WHERE id = $1 AND deleted_at IS NULL
	`

	raffle, err := scanRaffle(r.q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, translateError(err, fmt.Sprintf("get raffle %s", id))
	}

	return raffle, nil
}

// GetByIDForUpdate retrieves a non-deleted raffle and locks its row until the
// surrounding transaction ends. Concurrent callers queue on the lock and see
// the committed state of the previous holder.
func (r *RaffleRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Raffle, error) {
	query := `SELECT ` + raffleColumns + `
		FROM raffles
		WHERE id = $1 AND deleted_at IS NULL
		FOR UPDATE
	`

	raffle, err := scanRaffle(r.q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, translateError(err, fmt.Sprintf("lock raffle %s", id))
	}

	return raffle, nil
}

// List returns all non-deleted raffles, newest first
func (r *RaffleRepository) List(ctx context.Context) ([]*models.Raffle, error) {
	query := `SELECT ` + raffleColumns + `
		FROM raffles
		WHERE deleted_at IS NULL
		ORDER BY created_at DESC
	`

	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, translateError(err, "list raffles")
	}
	defer rows.Close()

	raffles := make([]*models.Raffle, 0)
	for rows.Next() {
		raffle, err := scanRaffle(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan raffle: %w", err)
		}
		raffles = append(raffles, raffle)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate raffles: %w", err)
	}

	return raffles, nil
}

// Update persists the mutable fields of a raffle. Type, creator and content
// are fixed at creation.
func (r *RaffleRepository) Update(ctx context.Context, raffle *models.Raffle) error {
	pool, err := json.Marshal(raffle.NumberPool)
	if err != nil {
		return fmt.Errorf("failed to marshal number pool: %w", err)
	}

	query := `
		UPDATE raffles
		SET majority_owner_id = $2,
		    number_pool = $3,
		    status = $4,
		    draw_mode = $5,
		    draw_date = $6,
		    external_lottery_source = $7,
		    has_second_prize_inverted = $8,
		    has_second_prize_palindrome = $9,
		    featured = $10,
		    winning_number = $11,
		    second_prize_winning_number = $12,
		    updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING updated_at
	`

	err = r.q.QueryRow(ctx, query,
		raffle.ID,
		raffle.MajorityOwnerID,
		pool,
		raffle.Status,
		raffle.DrawMode,
		raffle.DrawDate,
		raffle.ExternalLotterySource,
		raffle.HasSecondPrizeInverted,
		raffle.HasSecondPrizePalindrome,
		raffle.Featured,
		raffle.WinningNumber,
		raffle.SecondPrizeWinningNumber,
	).Scan(&raffle.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.NewNotFound("raffle %s not found", raffle.ID)
	}
	if err != nil {
		return translateError(err, fmt.Sprintf("update raffle %s", raffle.ID))
	}

	return nil
}

// GetDueAppDrawIDs returns raffles whose app draw is due at now, oldest draw date first
func (r *RaffleRepository) GetDueAppDrawIDs(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	query := `
		SELECT id
		FROM raffles
		WHERE deleted_at IS NULL
		  AND status = 'active'
		  AND draw_mode = 'app_draw'
		  AND winning_number IS NULL
		  AND draw_date IS NOT NULL
		  AND draw_date <= $1
		ORDER BY draw_date ASC
		LIMIT $2
	`

	rows, err := r.q.Query(ctx, query, now, limit)
	if err != nil {
		return nil, translateError(err, "get due app draws")
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan raffle id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate due app draws: %w", err)
	}

	return ids, nil
}

func scanRaffle(row pgx.Row) (*models.Raffle, error) {
	var raffle models.Raffle
	var pool []byte

	err := row.Scan(
		&raffle.ID,
		&raffle.CreatorID,
		&raffle.MajorityOwnerID,
		&raffle.ParentRaffleID,
		&raffle.Title,
		&raffle.Description,
		&raffle.TicketPrice,
		&raffle.PrizeValue,
		&raffle.SecondPrizeValue,
		&raffle.PrizeImageURL,
		&raffle.RaffleType,
		&pool,
		&raffle.Status,
		&raffle.DrawMode,
		&raffle.DrawDate,
		&raffle.ExternalLotterySource,
		&raffle.HasSecondPrizeInverted,
		&raffle.HasSecondPrizePalindrome,
		&raffle.Featured,
		&raffle.WinningNumber,
		&raffle.SecondPrizeWinningNumber,
		&raffle.CreatedAt,
		&raffle.UpdatedAt,
		&raffle.DeletedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(pool, &raffle.NumberPool); err != nil {
		return nil, fmt.Errorf("failed to unmarshal number pool of raffle %s: %w", raffle.ID, err)
	}

	return &raffle, nil
}
