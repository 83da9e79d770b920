package models

import (
	"errors"
	"fmt"
)

var (
	// ErrOutOfRange is returned for a number outside [0, len(pool))
	ErrOutOfRange = errors.New("number out of range")
	// ErrAlreadyClaimed is returned when claiming a number that is already taken
	ErrAlreadyClaimed = errors.New("number already claimed")
)

// NumberPool records which ticket numbers of a raffle are claimed. Index i is
// true once number i is taken. Its length is fixed by the raffle type.
type NumberPool []bool

// NewNumberPool returns an all-false pool sized for raffleType
func NewNumberPool(raffleType RaffleType) (NumberPool, error) {
	slots, err := raffleType.SlotCount()
	if err != nil {
		return nil, err
	}
	return make(NumberPool, slots), nil
}

// IsClaimed reports whether number n is taken
func (p NumberPool) IsClaimed(n int) (bool, error) {
	if n < 0 || n >= len(p) {
		return false, fmt.Errorf("%w: %d not in [0, %d)", ErrOutOfRange, n, len(p))
	}
	return p[n], nil
}

// Claim marks number n as taken. It must only run inside the purchase
// transaction that also creates the ticket.
func (p NumberPool) Claim(n int) error {
	claimed, err := p.IsClaimed(n)
	if err != nil {
		return err
	}
	if claimed {
		return fmt.Errorf("%w: %d", ErrAlreadyClaimed, n)
	}
	p[n] = true
	return nil
}

// Clone returns an independent copy
func (p NumberPool) Clone() NumberPool {
	out := make(NumberPool, len(p))
	copy(out, p)
	return out
}

// ClaimedCount returns how many numbers are taken
func (p NumberPool) ClaimedCount() int {
	count := 0
	for _, claimed := range p {
		if claimed {
			count++
		}
	}
	return count
}
