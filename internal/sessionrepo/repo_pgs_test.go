//go:build integration

package sessionrepo

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/go-petr/unipay/internal/domain"
	"github.com/go-petr/unipay/internal/integrationtest"
	"github.com/go-petr/unipay/pkg/randompkg"
)

func TestCreateGetBlock(t *testing.T) {
	tx := integrationtest.SetupTX(t)
	user := integrationtest.SeedUser(t, tx)
	repo := NewRepoPGS(tx)

	arg := domain.CreateSessionParams{
		ID:           uuid.New(),
		UserID:       user.ID,
		RefreshToken: randompkg.String(32),
		UserAgent:    "Mozilla/5.0",
		ClientIP:     "123.123.123.123",
		ExpiresAt:    time.Now().Add(time.Hour).UTC(),
	}

	created, err := repo.Create(context.Background(), arg)
	require.NoError(t, err)
	require.Equal(t, arg.ID, created.ID)
	require.False(t, created.IsBlocked)

	got, err := repo.Get(context.Background(), arg.ID)
	require.NoError(t, err)
	require.Equal(t, arg.RefreshToken, got.RefreshToken)
	require.WithinDuration(t, arg.ExpiresAt, got.ExpiresAt, time.Second)

	blocked, err := repo.Block(context.Background(), arg.ID)
	require.NoError(t, err)
	require.True(t, blocked.IsBlocked)
}

func TestGetNotFound(t *testing.T) {
	repo := NewRepoPGS(integrationtest.SetupTX(t))

	_, err := repo.Get(context.Background(), uuid.New())
	require.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestCreateUnknownUser(t *testing.T) {
	repo := NewRepoPGS(integrationtest.SetupDB(t))

	_, err := repo.Create(context.Background(), domain.CreateSessionParams{
		ID:        uuid.New(),
		UserID:    uuid.New(),
		ExpiresAt: time.Now().Add(time.Hour),
	})
	require.ErrorIs(t, err, domain.ErrUserNotFound)
}
