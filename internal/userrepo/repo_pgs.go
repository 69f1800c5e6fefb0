// Package userrepo manages repository layer of users.
package userrepo

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/rs/zerolog"

	"github.com/go-petr/unipay/internal/domain"
	"github.com/go-petr/unipay/pkg/dbpkg"
	"github.com/go-petr/unipay/pkg/errorspkg"
)

// RepoPGS facilitates user repository layer logic.
type RepoPGS struct {
	db dbpkg.SQLInterface
}

// NewRepoPGS returns user RepoPGS.
func NewRepoPGS(db dbpkg.SQLInterface) *RepoPGS {
	return &RepoPGS{
		db: db,
	}
}

const userColumns = `id, email, hashed_password, full_name, password_changed_at, created_at`

// CreateQuery inserts into users table.
const CreateQuery = `
INSERT INTO users (
    email,
    hashed_password,
    full_name
) VALUES (
    $1, $2, $3
) RETURNING ` + userColumns

// Create creates the user and then returns it.
func (r *RepoPGS) Create(ctx context.Context, arg domain.CreateUserParams) (domain.User, error) {
	l := zerolog.Ctx(ctx)

	row := r.db.QueryRowContext(ctx, CreateQuery,
		arg.Email,
		arg.HashedPassword,
		arg.FullName,
	)

	u, err := scanUser(row)
	if err != nil {
		l.Error().Err(err).Send()

		if pqErr, ok := err.(*pq.Error); ok {
			if pqErr.Code.Name() == "unique_violation" && pqErr.Constraint == "users_email_key" {
				return u, domain.ErrEmailALreadyExists
			}
		}

		return u, errorspkg.ErrInternal
	}

	return u, nil
}

const getByEmailQuery = `
SELECT ` + userColumns + `
FROM users
WHERE email = $1
`

// GetByEmail returns the user with the given email.
func (r *RepoPGS) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	return r.get(ctx, getByEmailQuery, email)
}

const getQuery = `
SELECT ` + userColumns + `
FROM users
WHERE id = $1
`

// Get returns the user with the given id.
func (r *RepoPGS) Get(ctx context.Context, id uuid.UUID) (domain.User, error) {
	return r.get(ctx, getQuery, id)
}

func (r *RepoPGS) get(ctx context.Context, query string, arg any) (domain.User, error) {
	l := zerolog.Ctx(ctx)

	u, err := scanUser(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if err == sql.ErrNoRows {
			l.Info().Err(err).Send()
			return u, domain.ErrUserNotFound
		}

		l.Error().Err(err).Send()

		return u, errorspkg.ErrInternal
	}

	return u, nil
}

func scanUser(row *sql.Row) (domain.User, error) {
	var u domain.User

	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.HashedPassword,
		&u.FullName,
		&u.PasswordChangedAt,
		&u.CreatedAt,
	)

	return u, err
}
