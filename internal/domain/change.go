package domain

import (
	"time"

	"github.com/google/uuid"
)

// Watched tables.
const (
	TableWallets      = "wallets"
	TableTransactions = "transactions"
)

// Row change types.
const (
	ChangeInsert = "INSERT"
	ChangeUpdate = "UPDATE"
	ChangeDelete = "DELETE"
)

// ChangeEvent signals that a row of a watched table changed.
type ChangeEvent struct {
	Table    string    `json:"table"`
	Type     string    `json:"type"`
	UserID   uuid.UUID `json:"user_id"`
	RecordID uuid.UUID `json:"record_id"`
	At       time.Time `json:"at"`
}

// Notice is a short user facing message about the outcome of an operation.
type Notice struct {
	Title       string
	Description string
	Failed      bool
}
