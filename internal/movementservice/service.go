// Package movementservice manages business logic layer of money movements.
package movementservice

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/go-petr/unipay/internal/domain"
	"github.com/go-petr/unipay/pkg/currencypkg"
)

// DefaultLimit is the number of recent movements listed when no limit is given.
const DefaultLimit = 20

//go:generate mockgen -source service.go -destination service_mock.go -package movementservice

// Repo provides data access layer interface needed by movement service layer.
type Repo interface {
	Create(ctx context.Context, arg domain.CreateMovementParams) (domain.Movement, error)
	ListRecent(ctx context.Context, userID uuid.UUID, limit int32) ([]domain.Movement, error)
}

// Publisher announces row changes to change feed subscribers.
type Publisher interface {
	Publish(ctx context.Context, ev domain.ChangeEvent) error
}

// Service facilitates movement service layer logic.
type Service struct {
	repo      Repo
	publisher Publisher
}

// New returns movement service struct to manage movement bussines logic.
func New(mr Repo, p Publisher) *Service {
	return &Service{
		repo:      mr,
		publisher: p,
	}
}

func validRequest(ctx context.Context, arg domain.CreateMovementParams) error {
	l := zerolog.Ctx(ctx)

	amount, err := currencypkg.ParseAmount(arg.SourceAmount)
	if err != nil {
		l.Info().Err(err).Send()
		return domain.ErrInvalidAmount
	}

	if amount.LessThanOrEqual(decimal.Zero) {
		return domain.ErrNegativeAmount
	}

	if !currencypkg.IsSupportedCurrency(arg.SourceCurrency) {
		return domain.ErrUnsupportedCurrency
	}

	switch arg.Type {
	case domain.KindOutbound:
		var meta domain.TransferMetadata
		if len(arg.Metadata) == 0 {
			return domain.ErrMissingRecipient
		}

		if err := json.Unmarshal(arg.Metadata, &meta); err != nil {
			l.Info().Err(err).Send()
			return domain.ErrInvalidMetadata
		}

		if strings.TrimSpace(meta.Recipient) == "" {
			return domain.ErrMissingRecipient
		}
	case domain.KindConversion:
		if arg.DestinationCurrency == nil || !currencypkg.IsSupportedCurrency(*arg.DestinationCurrency) {
			return domain.ErrUnsupportedCurrency
		}

		if *arg.DestinationCurrency == arg.SourceCurrency {
			return domain.ErrSameCurrency
		}

		if len(arg.Metadata) > 0 && !json.Valid(arg.Metadata) {
			return domain.ErrInvalidMetadata
		}
	default:
		return domain.ErrInvalidKind
	}

	return nil
}

// Create validates the request and stores a pending movement for the user.
//
// Balance sufficiency is not checked here, settlement happens elsewhere.
func (s *Service) Create(ctx context.Context, userID uuid.UUID, arg domain.CreateMovementParams) (domain.Movement, error) {
	if err := validRequest(ctx, arg); err != nil {
		return domain.Movement{}, err
	}

	arg.UserID = userID
	if arg.Type == domain.KindOutbound {
		arg.DestinationCurrency = nil
	}

	movement, err := s.repo.Create(ctx, arg)
	if err != nil {
		return movement, err
	}

	ev := domain.ChangeEvent{
		Table:    domain.TableTransactions,
		Type:     domain.ChangeInsert,
		UserID:   movement.UserID,
		RecordID: movement.ID,
		At:       time.Now().UTC(),
	}

	if err := s.publisher.Publish(ctx, ev); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("table", ev.Table).Msg("publish change")
	}

	return movement, nil
}

// ListRecent returns up to limit movements of the user, newest first.
func (s *Service) ListRecent(ctx context.Context, userID uuid.UUID, limit int32) ([]domain.Movement, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	return s.repo.ListRecent(ctx, userID, limit)
}
