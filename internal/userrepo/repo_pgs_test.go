//go:build integration

package userrepo

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/go-petr/unipay/internal/domain"
	"github.com/go-petr/unipay/internal/integrationtest"
	"github.com/go-petr/unipay/pkg/passpkg"
	"github.com/go-petr/unipay/pkg/randompkg"
)

func createRandomUser(t *testing.T, repo *RepoPGS) domain.User {
	hashedPassword, err := passpkg.Hash(randompkg.String(10))
	require.NoError(t, err)

	arg := domain.CreateUserParams{
		Email:          randompkg.Email(),
		HashedPassword: hashedPassword,
		FullName:       randompkg.Owner(),
	}

	user, err := repo.Create(context.Background(), arg)
	require.NoError(t, err)

	require.NotEqual(t, uuid.Nil, user.ID)
	require.Equal(t, arg.Email, user.Email)
	require.Equal(t, arg.HashedPassword, user.HashedPassword)
	require.Equal(t, arg.FullName, user.FullName)
	require.NotZero(t, user.CreatedAt)

	return user
}

func TestCreate(t *testing.T) {
	repo := NewRepoPGS(integrationtest.SetupTX(t))
	createRandomUser(t, repo)
}

func TestCreateEmailUniqueViolation(t *testing.T) {
	repo := NewRepoPGS(integrationtest.SetupDB(t))
	user := createRandomUser(t, repo)

	arg := domain.CreateUserParams{
		Email:          user.Email,
		HashedPassword: user.HashedPassword,
		FullName:       randompkg.Owner(),
	}

	_, err := repo.Create(context.Background(), arg)
	require.ErrorIs(t, err, domain.ErrEmailALreadyExists)
}

func TestGet(t *testing.T) {
	repo := NewRepoPGS(integrationtest.SetupTX(t))
	want := createRandomUser(t, repo)

	got, err := repo.Get(context.Background(), want.ID)
	require.NoError(t, err)
	require.Equal(t, want.Email, got.Email)

	got, err = repo.GetByEmail(context.Background(), want.Email)
	require.NoError(t, err)
	require.Equal(t, want.ID, got.ID)

	_, err = repo.GetByEmail(context.Background(), randompkg.Email())
	require.ErrorIs(t, err, domain.ErrUserNotFound)
}
