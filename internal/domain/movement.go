package domain

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrInvalidAmount indicates invalid amount.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrNegativeAmount indicates negative amount.
	ErrNegativeAmount = errors.New("negative amount")
	// ErrInvalidKind indicates an unknown movement kind.
	ErrInvalidKind = errors.New("invalid movement kind")
	// ErrSameCurrency indicates a conversion into the source currency.
	ErrSameCurrency = errors.New("conversion currencies must differ")
	// ErrMissingRecipient indicates an outbound transfer without recipient.
	ErrMissingRecipient = errors.New("recipient is required")
	// ErrUnsupportedCurrency indicates a currency outside of the supported set.
	ErrUnsupportedCurrency = errors.New("unsupported currency")
	// ErrInvalidMetadata indicates metadata that is not a JSON object.
	ErrInvalidMetadata = errors.New("invalid metadata")
)

// Movement kinds.
const (
	KindOutbound   = "outbound"
	KindConversion = "conversion"
)

// Movement statuses. Transitions after StatusPending are owned by the backend.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Movement is a requested transfer or conversion and its lifecycle status.
type Movement struct {
	ID                  uuid.UUID       `json:"id"`
	UserID              uuid.UUID       `json:"user_id"`
	Type                string          `json:"type"`
	Status              string          `json:"status"`
	SourceAmount        string          `json:"source_amount"`
	SourceCurrency      string          `json:"source_currency"`
	DestinationAmount   *string         `json:"destination_amount,omitempty"`
	DestinationCurrency *string         `json:"destination_currency,omitempty"`
	FeeAmount           *string         `json:"fee_amount,omitempty"`
	FeeCurrency         *string         `json:"fee_currency,omitempty"`
	ExternalID          *string         `json:"external_id,omitempty"`
	Metadata            json.RawMessage `json:"metadata,omitempty"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

// CreateMovementParams is the input data to insert a movement.
type CreateMovementParams struct {
	UserID              uuid.UUID       `json:"user_id"`
	Type                string          `json:"type"`
	SourceAmount        string          `json:"source_amount"`
	SourceCurrency      string          `json:"source_currency"`
	DestinationCurrency *string         `json:"destination_currency,omitempty"`
	Metadata            json.RawMessage `json:"metadata,omitempty"`
}

// TransferMetadata is packed into the metadata of an outbound movement.
type TransferMetadata struct {
	Recipient      string `json:"recipient"`
	Message        string `json:"message,omitempty"`
	PreferredRoute string `json:"preferred_route,omitempty"`
}

// ConversionMetadata is packed into the metadata of a conversion movement.
type ConversionMetadata struct {
	ConversionType string `json:"conversion_type"`
}
