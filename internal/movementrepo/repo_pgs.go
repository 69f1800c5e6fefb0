// Package movementrepo manages repository layer of money movements.
package movementrepo

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/rs/zerolog"

	"github.com/go-petr/unipay/internal/domain"
	"github.com/go-petr/unipay/pkg/dbpkg"
	"github.com/go-petr/unipay/pkg/errorspkg"
)

// RepoPGS facilitates movement repository layer logic.
type RepoPGS struct {
	db dbpkg.SQLInterface
}

// NewRepoPGS returns movement RepoPGS.
func NewRepoPGS(db dbpkg.SQLInterface) *RepoPGS {
	return &RepoPGS{
		db: db,
	}
}

const movementColumns = `
	id, user_id, type, status,
	source_amount, source_currency,
	destination_amount, destination_currency,
	fee_amount, fee_currency,
	external_id, metadata,
	created_at, updated_at`

const createQuery = `
INSERT INTO transactions (
	user_id,
	type,
	status,
	source_amount,
	source_currency,
	destination_currency,
	metadata
) VALUES (
	$1, $2, $3, $4, $5, $6, $7
) RETURNING ` + movementColumns

// Create inserts a pending movement and returns it.
func (r *RepoPGS) Create(ctx context.Context, arg domain.CreateMovementParams) (domain.Movement, error) {
	l := zerolog.Ctx(ctx)

	var metadata any
	if len(arg.Metadata) > 0 {
		metadata = string(arg.Metadata)
	}

	row := r.db.QueryRowContext(ctx, createQuery,
		arg.UserID,
		arg.Type,
		domain.StatusPending,
		arg.SourceAmount,
		arg.SourceCurrency,
		arg.DestinationCurrency,
		metadata,
	)

	m, err := scanMovement(row)
	if err != nil {
		l.Error().Err(err).Send()

		if pqErr, ok := err.(*pq.Error); ok {
			if pqErr.Constraint == "transactions_user_id_fkey" {
				return m, domain.ErrOwnerNotFound
			}
		}

		return m, errorspkg.ErrInternal
	}

	return m, nil
}

const listRecentQuery = `
SELECT ` + movementColumns + `
FROM transactions
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2
`

// ListRecent returns up to limit movements of the user, newest first.
func (r *RepoPGS) ListRecent(ctx context.Context, userID uuid.UUID, limit int32) ([]domain.Movement, error) {
	l := zerolog.Ctx(ctx)

	rows, err := r.db.QueryContext(ctx, listRecentQuery, userID, limit)
	if err != nil {
		l.Error().Err(err).Send()
		return nil, errorspkg.ErrInternal
	}
	defer rows.Close()

	items := []domain.Movement{}

	for rows.Next() {
		m, err := scanMovement(rows)
		if err != nil {
			l.Error().Err(err).Send()
			return nil, errorspkg.ErrInternal
		}

		items = append(items, m)
	}

	if err := rows.Close(); err != nil {
		l.Error().Err(err).Send()
		return nil, errorspkg.ErrInternal
	}

	if err := rows.Err(); err != nil {
		l.Error().Err(err).Send()
		return nil, errorspkg.ErrInternal
	}

	return items, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMovement(row scanner) (domain.Movement, error) {
	var (
		m            domain.Movement
		destAmount   sql.NullString
		destCurrency sql.NullString
		feeAmount    sql.NullString
		feeCurrency  sql.NullString
		externalID   sql.NullString
		metadata     []byte
	)

	err := row.Scan(
		&m.ID,
		&m.UserID,
		&m.Type,
		&m.Status,
		&m.SourceAmount,
		&m.SourceCurrency,
		&destAmount,
		&destCurrency,
		&feeAmount,
		&feeCurrency,
		&externalID,
		&metadata,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		return m, err
	}

	m.DestinationAmount = nullable(destAmount)
	m.DestinationCurrency = nullable(destCurrency)
	m.FeeAmount = nullable(feeAmount)
	m.FeeCurrency = nullable(feeCurrency)
	m.ExternalID = nullable(externalID)

	if len(metadata) > 0 {
		m.Metadata = json.RawMessage(metadata)
	}

	return m, nil
}

func nullable(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}

	return &s.String
}
