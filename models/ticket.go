package models

import (
	"time"

	"github.com/google/uuid"
)

// TicketStatus represents the state of a purchased ticket
type TicketStatus string

const (
	TicketStatusPending  TicketStatus = "pending"
	TicketStatusReserved TicketStatus = "reserved"
	TicketStatusSold     TicketStatus = "sold"
	TicketStatusCanceled TicketStatus = "canceled"
	TicketStatusRedeemed TicketStatus = "redeemed"
	TicketStatusExpired  TicketStatus = "expired"
	TicketStatusRefunded TicketStatus = "refunded"
)

// Valid reports whether s is a known ticket status
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusPending, TicketStatusReserved, TicketStatusSold, TicketStatusCanceled,
		TicketStatusRedeemed, TicketStatusExpired, TicketStatusRefunded:
		return true
	}
	return false
}

// Live reports whether a ticket in this status still holds its number
func (s TicketStatus) Live() bool {
	return s != TicketStatusCanceled
}

// Ticket is the durable record of one successful number claim
type Ticket struct {
	ID              uuid.UUID      `db:"id" json:"id"`
	RaffleID        uuid.UUID      `db:"raffle_id" json:"raffleId"`
	UserID          uuid.UUID      `db:"user_id" json:"userId"`
	Number          int            `db:"number" json:"number"`
	Status          TicketStatus   `db:"status" json:"status"`
	PaymentProofRef string         `db:"payment_proof_ref" json:"paymentProofRef"`
	CreatedAt       time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time      `db:"updated_at" json:"updatedAt"`
	Raffle          *RaffleSummary `db:"-" json:"raffle,omitempty"`
}
