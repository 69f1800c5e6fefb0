// Package balanceservice manages business logic layer of wallet balances.
package balanceservice

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/go-petr/unipay/internal/domain"
)

//go:generate mockgen -source service.go -destination service_mock.go -package balanceservice

// Repo provides data access layer interface needed by balance service layer.
type Repo interface {
	Create(ctx context.Context, userID uuid.UUID, currency string) (domain.Balance, error)
	List(ctx context.Context, userID uuid.UUID) ([]domain.Balance, error)
}

// Publisher announces row changes to change feed subscribers.
type Publisher interface {
	Publish(ctx context.Context, ev domain.ChangeEvent) error
}

// Service facilitates balance service layer logic.
type Service struct {
	repo      Repo
	publisher Publisher
}

// New returns balance service struct to manage balance bussines logic.
func New(br Repo, p Publisher) *Service {
	return &Service{
		repo:      br,
		publisher: p,
	}
}

// Create opens a zero balance of the given currency for the user.
func (s *Service) Create(ctx context.Context, userID uuid.UUID, currency string) (domain.Balance, error) {
	balance, err := s.repo.Create(ctx, userID, currency)
	if err != nil {
		return balance, err
	}

	ev := domain.ChangeEvent{
		Table:    domain.TableWallets,
		Type:     domain.ChangeInsert,
		UserID:   balance.UserID,
		RecordID: balance.ID,
		At:       time.Now().UTC(),
	}

	// The row is stored already, a lost event only delays the subscribers.
	if err := s.publisher.Publish(ctx, ev); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("table", ev.Table).Msg("publish change")
	}

	return balance, nil
}

// List returns the balances of the user ordered by currency code.
func (s *Service) List(ctx context.Context, userID uuid.UUID) ([]domain.Balance, error) {
	return s.repo.List(ctx, userID)
}
