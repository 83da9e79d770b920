package service

import (
	"context"
	"time"

	"raffler/events"
	"raffler/models"

	"github.com/google/uuid"
)

// UserRepository defines the interface for user data access
type UserRepository interface {
	// Create inserts a new user and fills its ID and timestamps
	Create(ctx context.Context, user *models.User) error

	// GetByID retrieves a user, returning nil when absent or deleted
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// RaffleRepository defines the interface for raffle data access
type RaffleRepository interface {
	// Create inserts a new raffle and fills its ID and timestamps
	Create(ctx context.Context, raffle *models.Raffle) error

	// GetByID retrieves a raffle without locking, returning nil when absent or soft-deleted
	GetByID(ctx context.Context, id uuid.UUID) (*models.Raffle, error)

	// GetByIDForUpdate retrieves a raffle and holds an exclusive row lock until the
	// transaction ends, returning nil when absent or soft-deleted
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Raffle, error)

	// List returns all non-deleted raffles, newest first
	List(ctx context.Context) ([]*models.Raffle, error)

	// Update persists every mutable field of the raffle
	Update(ctx context.Context, raffle *models.Raffle) error

	// GetDueAppDrawIDs returns active app-draw raffles whose draw date is at or before now
	// and that have no winning number yet
	GetDueAppDrawIDs(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)
}

// TicketRepository defines the interface for ticket data access
type TicketRepository interface {
	// Create inserts a new ticket and fills its ID and timestamps
	Create(ctx context.Context, ticket *models.Ticket) error

	// GetByID retrieves a ticket, returning nil when absent
	GetByID(ctx context.Context, id uuid.UUID) (*models.Ticket, error)

	// GetByUser returns a user's tickets newest first, each with its raffle summary
	GetByUser(ctx context.Context, userID uuid.UUID) ([]*models.Ticket, error)

	// GetByRaffle returns every ticket of a raffle ordered by number
	GetByRaffle(ctx context.Context, raffleID uuid.UUID) ([]*models.Ticket, error)

	// UpdateStatus changes a ticket's status
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.TicketStatus) error

	// HasLiveTicket reports whether a non-canceled ticket other than excludeID holds number
	HasLiveTicket(ctx context.Context, raffleID uuid.UUID, number int, excludeID uuid.UUID) (bool, error)
}

// HistoryRepository defines the append-only raffle audit log
type HistoryRepository interface {
	// Append records a new entry and fills its ID and timestamp
	Append(ctx context.Context, entry *models.HistoryEntry) error

	// GetByRaffle returns a raffle's entries newest first with the performing user resolved
	GetByRaffle(ctx context.Context, raffleID uuid.UUID) ([]*models.HistoryEntry, error)
}

// EventPublisher queues domain events for delivery
type EventPublisher interface {
	Publish(event events.Event)
}

// UnitOfWork groups repositories under one database transaction
type UnitOfWork interface {
	// Begin starts the transaction
	Begin(ctx context.Context) error

	// Commit commits the transaction and flushes queued events
	Commit() error

	// Rollback aborts the transaction and discards queued events. Safe after Commit.
	Rollback() error

	// SetLockTimeout bounds how long statements in this transaction wait for row locks
	SetLockTimeout(timeout time.Duration) error

	UserRepository() UserRepository
	RaffleRepository() RaffleRepository
	TicketRepository() TicketRepository
	HistoryRepository() HistoryRepository
	EventBus() EventPublisher
}

// UnitOfWorkFactory creates units of work
type UnitOfWorkFactory interface {
	Create() UnitOfWork
}

// MetricsRecorder receives domain counters. Implemented by the observability package.
type MetricsRecorder interface {
	RecordPurchase(outcome models.ErrorKind)
	RecordRaffleStatusChange(from, to models.RaffleStatus)
	RecordAppDraw(success bool)
	RecordLockWait(operation string, wait time.Duration)
}

// UserService defines user operations
type UserService interface {
	// Create registers a new user
	Create(ctx context.Context, input models.CreateUserInput) (*models.User, error)

	// Get returns a user or a NotFound error
	Get(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// RaffleService defines raffle lifecycle and read operations
type RaffleService interface {
	// Create creates a draft raffle with an empty number pool
	Create(ctx context.Context, input models.CreateRaffleInput) (*models.Raffle, error)

	// FindAll returns every non-deleted raffle, newest first
	FindAll(ctx context.Context) ([]*models.Raffle, error)

	// FindOne returns a raffle with creator, majority owner and history
	FindOne(ctx context.Context, id uuid.UUID) (*models.RaffleDetail, error)

	// ListHistory returns the raffle's history entries, newest first
	ListHistory(ctx context.Context, id uuid.UUID) ([]*models.HistoryEntry, error)

	// SetStatus moves the raffle to newStatus and records the change
	SetStatus(ctx context.Context, id uuid.UUID, newStatus models.RaffleStatus, actorID uuid.UUID) (*models.Raffle, error)

	// CreateRecurrent clones a finished raffle into a new recurrent raffle
	CreateRecurrent(ctx context.Context, parentID uuid.UUID, actorID uuid.UUID) (*models.Raffle, error)
}

// TicketService defines the allocation engine and ticket operations
type TicketService interface {
	// Purchase atomically claims number on the raffle and creates a pending ticket
	Purchase(ctx context.Context, raffleID, userID uuid.UUID, number int, paymentProofRef string) (*models.Ticket, error)

	// Get returns a ticket or a NotFound error
	Get(ctx context.Context, id uuid.UUID) (*models.Ticket, error)

	// ListForUser returns the user's tickets with their raffle summaries
	ListForUser(ctx context.Context, userID uuid.UUID) ([]*models.Ticket, error)

	// UpdateStatus transitions a ticket's status without releasing its pool number
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.TicketStatus, actorID uuid.UUID) (*models.Ticket, error)
}

// DrawService defines draw configuration and winner declaration
type DrawService interface {
	// UpdateDrawSettings changes draw mode and date; only the draw authority may call it
	UpdateDrawSettings(ctx context.Context, raffleID uuid.UUID, input models.DrawSettingsInput) (*models.Raffle, error)

	// SetWinningNumbers records the winners; actorID defaults to the raffle creator
	SetWinningNumbers(ctx context.Context, raffleID uuid.UUID, winningNumber int, secondPrizeWinningNumber *int, actorID *uuid.UUID) (*models.Raffle, error)

	// RunAppDraw draws winners for a due app-draw raffle and finishes it.
	// Returns nil, nil when the raffle is no longer due.
	RunAppDraw(ctx context.Context, raffleID uuid.UUID) (*models.Raffle, error)

	// DueAppDraws lists raffles whose app draw should run now
	DueAppDraws(ctx context.Context, now time.Time) ([]uuid.UUID, error)
}
