package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrCurrencyAlreadyExists indicates that the user already holds a balance in the currency.
	ErrCurrencyAlreadyExists = errors.New("balance currency already exists")
	// ErrOwnerNotFound indicates that the owner of the balance is not found.
	ErrOwnerNotFound = errors.New("owner not found")
)

// Balance holds the per currency holdings of a user.
//
// Available + Locked is expected to stay within Balance. Only the backend
// mutates balances and nothing on this side enforces it.
type Balance struct {
	ID               uuid.UUID `json:"id"`
	UserID           uuid.UUID `json:"user_id"`
	CurrencyCode     string    `json:"currency_code"`
	Balance          string    `json:"balance"`
	AvailableBalance string    `json:"available_balance"`
	LockedBalance    string    `json:"locked_balance"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}
