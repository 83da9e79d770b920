package repository

import (
	"context"
	"testing"
	"time"

	"raffler/events"
	"raffler/models"
	"raffler/repository/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnitOfWork_CommitFlushesEvents(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	testDB := testutil.SetupTestDatabase(t)
	bus := events.NewBus()
	factory := NewUnitOfWorkFactory(testDB.DB, bus)
	ctx := context.Background()

	received := make(chan events.Event, 1)
	bus.Subscribe(events.EventTypeRaffleCreated, func(ctx context.Context, event events.Event) {
		received <- event
	})

	uow := factory.Create()
	require.NoError(t, uow.Begin(ctx))
	defer uow.Rollback()

	creator := testutil.CreateTestUser("Creator")
	require.NoError(t, uow.UserRepository().Create(ctx, creator))
	raffle := testutil.CreateTestRaffle(creator.ID, models.RaffleTypeSmall)
	require.NoError(t, uow.RaffleRepository().Create(ctx, raffle))

	uow.EventBus().Publish(events.RaffleCreatedEvent{RaffleID: raffle.ID, CreatorID: creator.ID})

	select {
	case <-received:
		t.Fatal("event delivered before commit")
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, uow.Commit())

	select {
	case event := <-received:
		assert.Equal(t, raffle.ID, event.(events.RaffleCreatedEvent).RaffleID)
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered after commit")
	}

	found, err := NewRaffleRepository(testDB.DB).GetByID(ctx, raffle.ID)
	require.NoError(t, err)
	assert.NotNil(t, found)
}

func TestUnitOfWork_RollbackDiscardsWritesAndEvents(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	testDB := testutil.SetupTestDatabase(t)
	bus := events.NewBus()
	factory := NewUnitOfWorkFactory(testDB.DB, bus)
	ctx := context.Background()

	received := make(chan events.Event, 1)
	bus.SubscribeAll(func(ctx context.Context, event events.Event) {
		received <- event
	})

	uow := factory.Create()
	require.NoError(t, uow.Begin(ctx))

	user := testutil.CreateTestUser("Ghost")
	require.NoError(t, uow.UserRepository().Create(ctx, user))
	uow.EventBus().Publish(events.RaffleCreatedEvent{})

	require.NoError(t, uow.Rollback())
	require.NoError(t, uow.Rollback(), "second rollback is a no-op")

	found, err := NewUserRepository(testDB.DB).GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Nil(t, found)

	select {
	case <-received:
		t.Fatal("event delivered after rollback")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestUnitOfWork_LockTimeoutSurfacesBusy(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	testDB := testutil.SetupTestDatabase(t)
	factory := NewUnitOfWorkFactory(testDB.DB, events.NewBus())
	ctx := context.Background()

	creator := testutil.CreateTestUser("Creator")
	require.NoError(t, NewUserRepository(testDB.DB).Create(ctx, creator))
	raffle := testutil.CreateTestRaffle(creator.ID, models.RaffleTypeSmall)
	require.NoError(t, NewRaffleRepository(testDB.DB).Create(ctx, raffle))

	holder := factory.Create()
	require.NoError(t, holder.Begin(ctx))
	defer holder.Rollback()
	_, err := holder.RaffleRepository().GetByIDForUpdate(ctx, raffle.ID)
	require.NoError(t, err)

	waiter := factory.Create()
	require.NoError(t, waiter.Begin(ctx))
	defer waiter.Rollback()
	require.NoError(t, waiter.SetLockTimeout(100*time.Millisecond))

	start := time.Now()
	_, err = waiter.RaffleRepository().GetByIDForUpdate(ctx, raffle.ID)
	assert.ErrorIs(t, err, models.ErrBusy)
	assert.Less(t, time.Since(start), 5*time.Second)

	// Unlocked reads are not blocked by the holder
	found, err := NewRaffleRepository(testDB.DB).GetByID(ctx, raffle.ID)
	require.NoError(t, err)
	assert.NotNil(t, found)
}

func TestUnitOfWork_AccessBeforeBeginPanics(t *testing.T) {
	factory := NewUnitOfWorkFactory(nil, events.NewBus())
	uow := factory.Create()

	assert.Panics(t, func() { uow.RaffleRepository() })
	assert.Error(t, uow.Commit())
	assert.NoError(t, uow.Rollback())
}
