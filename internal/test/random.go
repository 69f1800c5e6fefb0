// Package test provides shared test helpers.
package test

import (
	"time"

	"github.com/google/uuid"

	"github.com/go-petr/unipay/internal/domain"
	"github.com/go-petr/unipay/pkg/randompkg"
)

// RandomIdentity returns a random identity whose access token expires in expiresIn.
func RandomIdentity(expiresIn time.Duration) domain.Identity {
	return domain.Identity{
		User: domain.UserWihtoutPassword{
			ID:        uuid.New(),
			Email:     randompkg.Email(),
			FullName:  randompkg.Owner(),
			CreatedAt: time.Now().Truncate(time.Second).UTC(),
		},
		AccessToken:           randompkg.String(32),
		AccessTokenExpiresAt:  time.Now().Add(expiresIn).Truncate(time.Second).UTC(),
		RefreshToken:          randompkg.String(32),
		RefreshTokenExpiresAt: time.Now().Add(24 * time.Hour).Truncate(time.Second).UTC(),
	}
}

// RandomBalance returns a balance of total in currency owned by userID.
func RandomBalance(userID uuid.UUID, currency, total string) domain.Balance {
	return domain.Balance{
		ID:               uuid.New(),
		UserID:           userID,
		CurrencyCode:     currency,
		Balance:          total,
		AvailableBalance: total,
		LockedBalance:    "0",
		CreatedAt:        time.Now().Truncate(time.Second).UTC(),
		UpdatedAt:        time.Now().Truncate(time.Second).UTC(),
	}
}

// RandomMovement returns a pending movement of kind owned by userID.
func RandomMovement(userID uuid.UUID, kind string) domain.Movement {
	return domain.Movement{
		ID:             uuid.New(),
		UserID:         userID,
		Type:           kind,
		Status:         domain.StatusPending,
		SourceAmount:   randompkg.MoneyAmountBetween(1, 1000),
		SourceCurrency: randompkg.Currency(),
		CreatedAt:      time.Now().Truncate(time.Second).UTC(),
		UpdatedAt:      time.Now().Truncate(time.Second).UTC(),
	}
}
