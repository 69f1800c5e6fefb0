// Package balancerepo manages repository layer of wallet balances.
package balancerepo

import (
	"context"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/rs/zerolog"

	"github.com/go-petr/unipay/internal/domain"
	"github.com/go-petr/unipay/pkg/dbpkg"
	"github.com/go-petr/unipay/pkg/errorspkg"
)

// RepoPGS facilitates balance repository layer logic.
type RepoPGS struct {
	db dbpkg.SQLInterface
}

// NewRepoPGS returns balance RepoPGS.
func NewRepoPGS(db dbpkg.SQLInterface) *RepoPGS {
	return &RepoPGS{
		db: db,
	}
}

const balanceColumns = `id, user_id, currency_code, balance, available_balance, locked_balance, created_at, updated_at`

const createQuery = `
INSERT INTO
    wallets (user_id, currency_code)
VALUES
    ($1, $2)
RETURNING ` + balanceColumns

// Create opens a zero balance in the given currency.
func (r *RepoPGS) Create(ctx context.Context, userID uuid.UUID, currency string) (domain.Balance, error) {
	l := zerolog.Ctx(ctx)

	row := r.db.QueryRowContext(ctx, createQuery, userID, currency)

	var b domain.Balance

	err := row.Scan(
		&b.ID,
		&b.UserID,
		&b.CurrencyCode,
		&b.Balance,
		&b.AvailableBalance,
		&b.LockedBalance,
		&b.CreatedAt,
		&b.UpdatedAt,
	)

	if err != nil {
		l.Error().Err(err).Send()

		if pqErr, ok := err.(*pq.Error); ok {
			switch pqErr.Constraint {
			case "wallets_user_id_fkey":
				return b, domain.ErrOwnerNotFound
			case "wallets_user_currency_key":
				return b, domain.ErrCurrencyAlreadyExists
			}
		}

		return b, errorspkg.ErrInternal
	}

	return b, nil
}

const listQuery = `
SELECT ` + balanceColumns + `
FROM wallets
WHERE user_id = $1
ORDER BY currency_code
`

// List returns all balances of the given user ordered by currency code.
func (r *RepoPGS) List(ctx context.Context, userID uuid.UUID) ([]domain.Balance, error) {
	l := zerolog.Ctx(ctx)

	rows, err := r.db.QueryContext(ctx, listQuery, userID)
	if err != nil {
		l.Error().Err(err).Send()
		return nil, errorspkg.ErrInternal
	}
	defer rows.Close()

	items := []domain.Balance{}

	for rows.Next() {
		var b domain.Balance
		if err := rows.Scan(
			&b.ID,
			&b.UserID,
			&b.CurrencyCode,
			&b.Balance,
			&b.AvailableBalance,
			&b.LockedBalance,
			&b.CreatedAt,
			&b.UpdatedAt,
		); err != nil {
			l.Error().Err(err).Send()
			return nil, errorspkg.ErrInternal
		}

		items = append(items, b)
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
