package service

import (
	"testing"
	"time"

	"raffler/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

const testLockTimeout = 2 * time.Second

// uowMocks bundles a unit of work mock with its repositories
type uowMocks struct {
	factory *MockUnitOfWorkFactory
	uow     *MockUnitOfWork
	users   *MockUserRepository
	raffles *MockRaffleRepository
	tickets *MockTicketRepository
	history *MockHistoryRepository
	bus     *MockEventPublisher
}

func newUoWMocks() *uowMocks {
	m := &uowMocks{
		factory: new(MockUnitOfWorkFactory),
		uow:     new(MockUnitOfWork),
		users:   new(MockUserRepository),
		raffles: new(MockRaffleRepository),
		tickets: new(MockTicketRepository),
		history: new(MockHistoryRepository),
		bus:     new(MockEventPublisher),
	}
	m.uow.SetRepositories(m.users, m.raffles, m.tickets, m.history)
	m.uow.SetEventBus(m.bus)
	m.factory.On("Create").Return(m.uow)
	return m
}

// expectTx sets up Begin and Rollback, plus Commit when commit is true
func (m *uowMocks) expectTx(commit bool) {
	m.uow.On("Begin", mock.Anything).Return(nil)
	m.uow.On("Rollback").Return(nil)
	if commit {
		m.uow.On("Commit").Return(nil)
	}
}

func (m *uowMocks) expectLockTimeout() {
	m.uow.On("SetLockTimeout", testLockTimeout).Return(nil)
}

func (m *uowMocks) assertExpectations(t *testing.T) {
	t.Helper()
	m.factory.AssertExpectations(t)
	m.uow.AssertExpectations(t)
	m.users.AssertExpectations(t)
	m.raffles.AssertExpectations(t)
	m.tickets.AssertExpectations(t)
	m.history.AssertExpectations(t)
	m.bus.AssertExpectations(t)
}

func newTestUser() *models.User {
	return &models.User{
		ID:    uuid.New(),
		Name:  "Ana Gomez",
		Phone: "+57 300 123 4567",
		Email: "ana@example.com",
	}
}

func newTestRaffle(raffleType models.RaffleType, status models.RaffleStatus) *models.Raffle {
	pool, err := models.NewNumberPool(raffleType)
	if err != nil {
		panic(err)
	}
	return &models.Raffle{
		ID:            uuid.New(),
		CreatorID:     uuid.New(),
		Title:         "Motorcycle raffle",
		Description:   "Win a brand new motorcycle",
		TicketPrice:   10000,
		PrizeValue:    8000000,
		PrizeImageURL: "https://example.com/moto.png",
		RaffleType:    raffleType,
		NumberPool:    pool,
		Status:        status,
		DrawMode:      models.DrawModeAppDraw,
	}
}
