package testutil

import (
	"fmt"
	"sync/atomic"
	"time"

	"raffler/models"

	"github.com/google/uuid"
)

var userSeq atomic.Int64

// CreateTestUser returns an unsaved user with a unique phone and email
func CreateTestUser(name string) *models.User {
	n := userSeq.Add(1)
	return &models.User{
		Name:  name,
		Phone: fmt.Sprintf("+57 300 %07d", n),
		Email: fmt.Sprintf("user%d@example.com", n),
	}
}

// CreateTestRaffle returns an unsaved draft raffle with an empty pool
func CreateTestRaffle(creatorID uuid.UUID, raffleType models.RaffleType) *models.Raffle {
	pool, err := models.NewNumberPool(raffleType)
	if err != nil {
		panic(err)
	}
	return &models.Raffle{
		CreatorID:     creatorID,
		Title:         "Motorcycle raffle",
		Description:   "Win a brand new motorcycle",
		TicketPrice:   10000,
		PrizeValue:    8000000,
		PrizeImageURL: "https://example.com/moto.png",
		RaffleType:    raffleType,
		NumberPool:    pool,
		Status:        models.RaffleStatusDraft,
		DrawMode:      models.DrawModeAppDraw,
	}
}

// CreateTestRaffleDueAt returns an unsaved active app-draw raffle with the given draw date
func CreateTestRaffleDueAt(creatorID uuid.UUID, drawDate time.Time) *models.Raffle {
	raffle := CreateTestRaffle(creatorID, models.RaffleTypeSmall)
	raffle.Status = models.RaffleStatusActive
	raffle.DrawDate = &drawDate
	return raffle
}

// CreateTestTicket returns an unsaved pending ticket
func CreateTestTicket(raffleID, userID uuid.UUID, number int) *models.Ticket {
	return &models.Ticket{
		RaffleID:        raffleID,
		UserID:          userID,
		Number:          number,
		Status:          models.TicketStatusPending,
		PaymentProofRef: fmt.Sprintf("receipt-%d", number),
	}
}
