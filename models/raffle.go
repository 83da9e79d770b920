package models

import (
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// RaffleStatus represents the lifecycle state of a raffle
type RaffleStatus string

const (
	RaffleStatusDraft     RaffleStatus = "draft"
	RaffleStatusActive    RaffleStatus = "active"
	RaffleStatusCanceled  RaffleStatus = "canceled"
	RaffleStatusFinished  RaffleStatus = "finished"
	RaffleStatusRecurrent RaffleStatus = "recurrent"
)

// Valid reports whether s is a known status
func (s RaffleStatus) Valid() bool {
	switch s {
	case RaffleStatusDraft, RaffleStatusActive, RaffleStatusCanceled, RaffleStatusFinished, RaffleStatusRecurrent:
		return true
	}
	return false
}

// RaffleType fixes the size of a raffle's number pool
type RaffleType string

const (
	RaffleTypeSmall  RaffleType = "small"
	RaffleTypeMedium RaffleType = "medium"
	RaffleTypeLarge  RaffleType = "large"
)

// SlotCount returns how many numbers a raffle of this type offers
func (t RaffleType) SlotCount() (int, error) {
	switch t {
	case RaffleTypeSmall:
		return 100, nil
	case RaffleTypeMedium:
		return 1000, nil
	case RaffleTypeLarge:
		return 10000, nil
	}
	return 0, fmt.Errorf("unknown raffle type %q", t)
}

// Valid reports whether t is a known raffle type
func (t RaffleType) Valid() bool {
	_, err := t.SlotCount()
	return err == nil
}

// InvertedNumber reverses the digits of n, zero-padded to the width of the
// largest number in the pool (42 -> 24, 7 -> 70 for a small raffle).
func (t RaffleType) InvertedNumber(n int) (int, error) {
	slots, err := t.SlotCount()
	if err != nil {
		return 0, err
	}
	if n < 0 || n >= slots {
		return 0, fmt.Errorf("%w: %d not in [0, %d)", ErrOutOfRange, n, slots)
	}

	width := len(strconv.Itoa(slots - 1))
	digits := []byte(fmt.Sprintf("%0*d", width, n))
	for i, j := 0, len(digits)-1; i < j; i, j = i+1, j-1 {
		digits[i], digits[j] = digits[j], digits[i]
	}

	inverted, err := strconv.Atoi(string(digits))
	if err != nil {
		return 0, fmt.Errorf("failed to invert number %d: %w", n, err)
	}
	return inverted, nil
}

// DrawMode determines how winning numbers are produced
type DrawMode string

const (
	DrawModeAppDraw         DrawMode = "app_draw"
	DrawModeExternalLottery DrawMode = "external_lottery"
)

// Valid reports whether m is a known draw mode
func (m DrawMode) Valid() bool {
	return m == DrawModeAppDraw || m == DrawModeExternalLottery
}

// Raffle is a single lottery event with a fixed pool of purchasable numbers
type Raffle struct {
	ID                       uuid.UUID    `db:"id" json:"id"`
	CreatorID                uuid.UUID    `db:"creator_id" json:"creatorId"`
	MajorityOwnerID          *uuid.UUID   `db:"majority_owner_id" json:"majorityOwnerId,omitempty"`
	ParentRaffleID           *uuid.UUID   `db:"parent_raffle_id" json:"parentRaffleId,omitempty"`
	Title                    string       `db:"title" json:"title"`
	Description              string       `db:"description" json:"description"`
	TicketPrice              int64        `db:"ticket_price" json:"ticketPrice"`
	PrizeValue               int64        `db:"prize_value" json:"prizeValue"`
	SecondPrizeValue         *int64       `db:"second_prize_value" json:"secondPrizeValue,omitempty"`
	PrizeImageURL            string       `db:"prize_image_url" json:"prizeImageUrl"`
	RaffleType               RaffleType   `db:"raffle_type" json:"raffleType"`
	NumberPool               NumberPool   `db:"number_pool" json:"numberPool"`
	Status                   RaffleStatus `db:"status" json:"status"`
	DrawMode                 DrawMode     `db:"draw_mode" json:"drawMode"`
	DrawDate                 *time.Time   `db:"draw_date" json:"drawDate,omitempty"`
	ExternalLotterySource    *string      `db:"external_lottery_source" json:"externalLotterySource,omitempty"`
	HasSecondPrizeInverted   bool         `db:"has_second_prize_inverted" json:"hasSecondPrizeInverted"`
	HasSecondPrizePalindrome bool         `db:"has_second_prize_palindrome" json:"hasSecondPrizePalindrome"`
	Featured                 bool         `db:"featured" json:"featured"`
	WinningNumber            *int         `db:"winning_number" json:"winningNumber,omitempty"`
	SecondPrizeWinningNumber *int         `db:"second_prize_winning_number" json:"secondPrizeWinningNumber,omitempty"`
	CreatedAt                time.Time    `db:"created_at" json:"createdAt"`
	UpdatedAt                time.Time    `db:"updated_at" json:"updatedAt"`
	DeletedAt                *time.Time   `db:"deleted_at" json:"-"`
}

// DrawAuthorityID returns the user allowed to change draw settings: the
// majority owner when set, otherwise the creator.
func (r *Raffle) DrawAuthorityID() uuid.UUID {
	if r.MajorityOwnerID != nil {
		return *r.MajorityOwnerID
	}
	return r.CreatorID
}

// IsOpenForPurchase reports whether tickets can currently be bought
func (r *Raffle) IsOpenForPurchase() bool {
	return r.Status == RaffleStatusActive
}

// IsDrawDue reports whether an app draw should run at now
func (r *Raffle) IsDrawDue(now time.Time) bool {
	return r.Status == RaffleStatusActive &&
		r.DrawMode == DrawModeAppDraw &&
		r.WinningNumber == nil &&
		r.DrawDate != nil &&
		!r.DrawDate.After(now)
}

// RaffleDetail is a raffle resolved with its owners and history
type RaffleDetail struct {
	*Raffle
	Creator       *UserSummary    `json:"creator,omitempty"`
	MajorityOwner *UserSummary    `json:"majorityOwner,omitempty"`
	History       []*HistoryEntry `json:"history"`
}

// RaffleSummary is the slice of a raffle attached to ticket listings
type RaffleSummary struct {
	ID            uuid.UUID    `db:"id" json:"id"`
	Title         string       `db:"title" json:"title"`
	RaffleType    RaffleType   `db:"raffle_type" json:"raffleType"`
	Status        RaffleStatus `db:"status" json:"status"`
	DrawDate      *time.Time   `db:"draw_date" json:"drawDate,omitempty"`
	WinningNumber *int         `db:"winning_number" json:"winningNumber,omitempty"`
}

// CreateRaffleInput carries the fields needed to create a raffle
type CreateRaffleInput struct {
	CreatorID        uuid.UUID  `json:"-" validate:"required"`
	MajorityOwnerID  *uuid.UUID `json:"majorityOwnerId"`
	Title            string     `json:"title" validate:"required,min=10,max=80"`
	Description      string     `json:"description" validate:"required,min=10,max=2000"`
	RaffleType       RaffleType `json:"raffleType" validate:"required,oneof=small medium large"`
	TicketPrice      int64      `json:"ticketPrice" validate:"gte=0"`
	PrizeValue       int64      `json:"prizeValue" validate:"gte=0"`
	SecondPrizeValue *int64     `json:"secondPrizeValue" validate:"omitempty,gte=0"`
	PrizeImageURL    string     `json:"prizeImageUrl" validate:"required,url"`
	DrawMode         DrawMode   `json:"drawMode" validate:"omitempty,oneof=app_draw external_lottery"`
	DrawDate         *time.Time `json:"drawDate"`
	Featured         bool       `json:"featured"`
}

// DrawSettingsInput carries a draw-settings change. Nil optional fields keep
// their defaults.
type DrawSettingsInput struct {
	DrawMode                 DrawMode
	DrawDate                 time.Time
	ActorID                  uuid.UUID
	HasSecondPrizeInverted   *bool
	HasSecondPrizePalindrome *bool
	ExternalLotterySource    *string
}
