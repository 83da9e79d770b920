package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"raffler/events"
	"raffler/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestTicketService_Purchase_Success(t *testing.T) {
	ctx := context.Background()
	m := newUoWMocks()
	m.expectTx(true)
	m.expectLockTimeout()

	user := newTestUser()
	raffle := newTestRaffle(models.RaffleTypeSmall, models.RaffleStatusActive)
	ticketID := uuid.New()

	m.users.On("GetByID", mock.Anything, user.ID).Return(user, nil)
	m.raffles.On("GetByIDForUpdate", mock.Anything, raffle.ID).Return(raffle, nil)
	m.raffles.On("Update", mock.Anything, mock.MatchedBy(func(r *models.Raffle) bool {
		return r.ID == raffle.ID && r.NumberPool[42] && r.NumberPool.ClaimedCount() == 1
	})).Return(nil)
	m.tickets.On("Create", mock.Anything, mock.MatchedBy(func(tk *models.Ticket) bool {
		return tk.RaffleID == raffle.ID &&
			tk.UserID == user.ID &&
			tk.Number == 42 &&
			tk.Status == models.TicketStatusPending &&
			tk.PaymentProofRef == "receipt-001"
	})).Return(nil).Run(func(args mock.Arguments) {
		args.Get(1).(*models.Ticket).ID = ticketID
	})
	m.bus.On("Publish", events.TicketPurchasedEvent{
		TicketID: ticketID,
		RaffleID: raffle.ID,
		UserID:   user.ID,
		Number:   42,
	}).Return()

	metrics := new(MockMetricsRecorder)
	metrics.On("RecordLockWait", "purchase", mock.AnythingOfType("time.Duration")).Return()
	metrics.On("RecordPurchase", models.ErrorKind("")).Return()

	svc := NewTicketService(m.factory, metrics, testLockTimeout, 5*time.Second)
	ticket, err := svc.Purchase(ctx, raffle.ID, user.ID, 42, "  receipt-001 ")

	require.NoError(t, err)
	assert.Equal(t, ticketID, ticket.ID)
	assert.Equal(t, 42, ticket.Number)
	assert.Equal(t, models.TicketStatusPending, ticket.Status)

	m.assertExpectations(t)
	metrics.AssertExpectations(t)
}

func TestTicketService_Purchase_Rejections(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		status   models.RaffleStatus
		claimed  []int
		number   int
		proof    string
		wantKind models.ErrorKind
	}{
		{
			name:     "draft raffle",
			status:   models.RaffleStatusDraft,
			number:   1,
			proof:    "receipt",
			wantKind: models.KindInvalidState,
		},
		{
			name:     "finished raffle",
			status:   models.RaffleStatusFinished,
			number:   1,
			proof:    "receipt",
			wantKind: models.KindInvalidState,
		},
		{
			name:     "number above slot count",
			status:   models.RaffleStatusActive,
			number:   150,
			proof:    "receipt",
			wantKind: models.KindInvalidArgument,
		},
		{
			name:     "number equal to slot count",
			status:   models.RaffleStatusActive,
			number:   100,
			proof:    "receipt",
			wantKind: models.KindInvalidArgument,
		},
		{
			name:     "negative number",
			status:   models.RaffleStatusActive,
			number:   -1,
			proof:    "receipt",
			wantKind: models.KindInvalidArgument,
		},
		{
			name:     "blank proof",
			status:   models.RaffleStatusActive,
			number:   3,
			proof:    "   ",
			wantKind: models.KindInvalidArgument,
		},
		{
			name:     "number already sold",
			status:   models.RaffleStatusActive,
			claimed:  []int{7},
			number:   7,
			proof:    "receipt",
			wantKind: models.KindConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			m := newUoWMocks()
			m.expectTx(false)
			m.expectLockTimeout()

			user := newTestUser()
			raffle := newTestRaffle(models.RaffleTypeSmall, tt.status)
			for _, n := range tt.claimed {
				require.NoError(t, raffle.NumberPool.Claim(n))
			}
			before := raffle.NumberPool.Clone()

			m.users.On("GetByID", mock.Anything, user.ID).Return(user, nil)
			m.raffles.On("GetByIDForUpdate", mock.Anything, raffle.ID).Return(raffle, nil)

			svc := NewTicketService(m.factory, nil, testLockTimeout, 5*time.Second)
			ticket, err := svc.Purchase(ctx, raffle.ID, user.ID, tt.number, tt.proof)

			assert.Nil(t, ticket)
			assert.Equal(t, tt.wantKind, models.KindOf(err))
			assert.Equal(t, before, raffle.NumberPool)

			m.raffles.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
			m.tickets.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
			m.uow.AssertNotCalled(t, "Commit")
			m.assertExpectations(t)
		})
	}
}

func TestTicketService_Purchase_ConflictMessage(t *testing.T) {
	ctx := context.Background()
	m := newUoWMocks()
	m.expectTx(false)
	m.expectLockTimeout()

	user := newTestUser()
	raffle := newTestRaffle(models.RaffleTypeMedium, models.RaffleStatusActive)
	require.NoError(t, raffle.NumberPool.Claim(512))

	m.users.On("GetByID", mock.Anything, user.ID).Return(user, nil)
	m.raffles.On("GetByIDForUpdate", mock.Anything, raffle.ID).Return(raffle, nil)

	svc := NewTicketService(m.factory, nil, testLockTimeout, 5*time.Second)
	_, err := svc.Purchase(ctx, raffle.ID, user.ID, 512, "receipt")

	assert.ErrorIs(t, err, models.ErrConflict)
	assert.Equal(t, "number 512 already sold", models.MessageOf(err))
	m.assertExpectations(t)
}

func TestTicketService_Purchase_RaffleNotFound(t *testing.T) {
	ctx := context.Background()
	m := newUoWMocks()
	m.expectTx(false)
	m.expectLockTimeout()

	user := newTestUser()
	raffleID := uuid.New()

	m.users.On("GetByID", mock.Anything, user.ID).Return(user, nil)
	m.raffles.On("GetByIDForUpdate", mock.Anything, raffleID).Return(nil, nil)

	svc := NewTicketService(m.factory, nil, testLockTimeout, 5*time.Second)
	_, err := svc.Purchase(ctx, raffleID, user.ID, 1, "receipt")

	assert.ErrorIs(t, err, models.ErrNotFound)
	m.assertExpectations(t)
}

func TestTicketService_Purchase_UserNotFound(t *testing.T) {
	ctx := context.Background()
	m := newUoWMocks()
	m.expectTx(false)
	m.expectLockTimeout()

	userID := uuid.New()
	m.users.On("GetByID", mock.Anything, userID).Return(nil, nil)

	svc := NewTicketService(m.factory, nil, testLockTimeout, 5*time.Second)
	_, err := svc.Purchase(ctx, uuid.New(), userID, 1, "receipt")

	assert.ErrorIs(t, err, models.ErrNotFound)
	m.raffles.AssertNotCalled(t, "GetByIDForUpdate", mock.Anything, mock.Anything)
	m.assertExpectations(t)
}

func TestTicketService_Purchase_TicketInsertConflictRollsBack(t *testing.T) {
	ctx := context.Background()
	m := newUoWMocks()
	m.expectTx(false)
	m.expectLockTimeout()

	user := newTestUser()
	raffle := newTestRaffle(models.RaffleTypeSmall, models.RaffleStatusActive)

	m.users.On("GetByID", mock.Anything, user.ID).Return(user, nil)
	m.raffles.On("GetByIDForUpdate", mock.Anything, raffle.ID).Return(raffle, nil)
	m.raffles.On("Update", mock.Anything, raffle).Return(nil)
	m.tickets.On("Create", mock.Anything, mock.AnythingOfType("*models.Ticket")).
		Return(models.NewConflict("number 9 already sold"))

	metrics := new(MockMetricsRecorder)
	metrics.On("RecordLockWait", "purchase", mock.Anything).Return()
	metrics.On("RecordPurchase", models.KindConflict).Return()

	svc := NewTicketService(m.factory, metrics, testLockTimeout, 5*time.Second)
	ticket, err := svc.Purchase(ctx, raffle.ID, user.ID, 9, "receipt")

	assert.Nil(t, ticket)
	assert.ErrorIs(t, err, models.ErrConflict)
	m.uow.AssertNotCalled(t, "Commit")
	m.bus.AssertNotCalled(t, "Publish", mock.Anything)
	m.assertExpectations(t)
	metrics.AssertExpectations(t)
}

func TestTicketService_Purchase_LockWaitDeadlineIsBusy(t *testing.T) {
	ctx := context.Background()
	m := newUoWMocks()
	m.expectTx(false)
	m.expectLockTimeout()

	user := newTestUser()
	raffleID := uuid.New()

	m.users.On("GetByID", mock.Anything, user.ID).Return(user, nil)
	m.raffles.On("GetByIDForUpdate", mock.Anything, raffleID).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return(nil, errors.New("lock raffle: context deadline exceeded"))

	svc := NewTicketService(m.factory, nil, testLockTimeout, 20*time.Millisecond)
	_, err := svc.Purchase(ctx, raffleID, user.ID, 1, "receipt")

	assert.ErrorIs(t, err, models.ErrBusy)
	m.assertExpectations(t)
}

func TestTicketService_UpdateStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		from       models.TicketStatus
		to         models.TicketStatus
		liveExists bool
		checkLive  bool
		wantKind   models.ErrorKind
	}{
		{
			name: "pending to sold",
			from: models.TicketStatusPending,
			to:   models.TicketStatusSold,
		},
		{
			name: "sold to canceled keeps number claimed",
			from: models.TicketStatusSold,
			to:   models.TicketStatusCanceled,
		},
		{
			name:      "canceled back to pending when number is free",
			from:      models.TicketStatusCanceled,
			to:        models.TicketStatusPending,
			checkLive: true,
		},
		{
			name:       "canceled back to pending when number was resold",
			from:       models.TicketStatusCanceled,
			to:         models.TicketStatusPending,
			checkLive:  true,
			liveExists: true,
			wantKind:   models.KindConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			m := newUoWMocks()
			m.expectTx(tt.wantKind == "")
			m.expectLockTimeout()

			raffle := newTestRaffle(models.RaffleTypeSmall, models.RaffleStatusActive)
			require.NoError(t, raffle.NumberPool.Claim(12))
			ticket := &models.Ticket{
				ID:       uuid.New(),
				RaffleID: raffle.ID,
				UserID:   uuid.New(),
				Number:   12,
				Status:   tt.from,
			}
			actorID := uuid.New()

			m.tickets.On("GetByID", ctx, ticket.ID).Return(ticket, nil)
			m.raffles.On("GetByIDForUpdate", ctx, raffle.ID).Return(raffle, nil)
			if tt.checkLive {
				m.tickets.On("HasLiveTicket", ctx, raffle.ID, 12, ticket.ID).Return(tt.liveExists, nil)
			}
			if tt.wantKind == "" {
				m.tickets.On("UpdateStatus", ctx, ticket.ID, tt.to).Return(nil)
				m.bus.On("Publish", events.TicketStatusChangedEvent{
					TicketID:  ticket.ID,
					RaffleID:  raffle.ID,
					ActorID:   actorID,
					OldStatus: tt.from,
					NewStatus: tt.to,
				}).Return()
			}

			svc := NewTicketService(m.factory, nil, testLockTimeout, 5*time.Second)
			updated, err := svc.UpdateStatus(ctx, ticket.ID, tt.to, actorID)

			if tt.wantKind != "" {
				assert.Equal(t, tt.wantKind, models.KindOf(err))
				assert.Nil(t, updated)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.to, updated.Status)
			}
			m.raffles.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
			assert.True(t, raffle.NumberPool[12])
			m.assertExpectations(t)
		})
	}
}

func TestTicketService_UpdateStatus_InvalidStatus(t *testing.T) {
	m := newUoWMocks()

	svc := NewTicketService(m.factory, nil, testLockTimeout, 5*time.Second)
	_, err := svc.UpdateStatus(context.Background(), uuid.New(), models.TicketStatus("lost"), uuid.New())

	assert.ErrorIs(t, err, models.ErrInvalidArgument)
	m.factory.AssertNotCalled(t, "Create")
}

func TestTicketService_ListForUser(t *testing.T) {
	ctx := context.Background()
	m := newUoWMocks()
	m.expectTx(false)

	user := newTestUser()
	tickets := []*models.Ticket{
		{ID: uuid.New(), UserID: user.ID, Number: 3, Raffle: &models.RaffleSummary{Title: "Motorcycle raffle"}},
	}

	m.users.On("GetByID", ctx, user.ID).Return(user, nil)
	m.tickets.On("GetByUser", ctx, user.ID).Return(tickets, nil)

	svc := NewTicketService(m.factory, nil, testLockTimeout, 5*time.Second)
	result, err := svc.ListForUser(ctx, user.ID)

	require.NoError(t, err)
	assert.Equal(t, tickets, result)
	m.assertExpectations(t)
}

func TestTicketService_Get_NotFound(t *testing.T) {
	ctx := context.Background()
	m := newUoWMocks()
	m.expectTx(false)

	id := uuid.New()
	m.tickets.On("GetByID", ctx, id).Return(nil, nil)

	svc := NewTicketService(m.factory, nil, testLockTimeout, 5*time.Second)
	_, err := svc.Get(ctx, id)

	assert.ErrorIs(t, err, models.ErrNotFound)
	m.assertExpectations(t)
}
