// Package walletsync keeps the balances and recent movements of the signed in
// identity in sync with the backend.
//
// A Syncer loads both relations when the identity changes, reloads a relation
// whenever the backend reports a change to one of its rows, and writes new
// movements on behalf of the identity.
package walletsync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/go-petr/unipay/internal/domain"
	"github.com/go-petr/unipay/pkg/currencypkg"
)

// MovementsLimit is the number of most recent movements kept in sync.
const MovementsLimit = 20

// Titles of failure notices.
const (
	paymentFailed    = "Payment Failed"
	conversionFailed = "Conversion Failed"
)

//go:generate mockgen -source sync.go -destination sync_mock.go -package walletsync

// Backend provides the backend calls needed by the syncer.
type Backend interface {
	ListBalances(ctx context.Context, accessToken string) ([]domain.Balance, error)
	ListMovements(ctx context.Context, accessToken string, limit int) ([]domain.Movement, error)
	CreateMovement(ctx context.Context, accessToken string, arg domain.CreateMovementParams) (domain.Movement, error)
	Subscribe(ctx context.Context, accessToken, table string, onChange func(domain.ChangeEvent)) (func(), error)
}

// Notifier presents notices about writes to the user.
type Notifier interface {
	Notify(n domain.Notice)
}

// TransferRequest holds the input of an outbound transfer.
type TransferRequest struct {
	Recipient string
	Amount    decimal.Decimal
	Currency  string
	Message   string
	Route     string
}

// Snapshot is a copy of the synced state.
type Snapshot struct {
	Balances  []domain.Balance
	Movements []domain.Movement
	Loading   bool
	Err       error
}

// Syncer syncs the relations of one identity at a time. It is safe for
// concurrent use.
type Syncer struct {
	backend  Backend
	notifier Notifier
	logger   zerolog.Logger

	mu        sync.Mutex
	identity  *domain.Identity
	balances  []domain.Balance
	movements []domain.Movement
	loading   bool
	err       error
	subCtx    context.Context
	cancel    context.CancelFunc
	channels  map[string]func()
}

var watchedTables = []string{domain.TableWallets, domain.TableTransactions}

// New returns a syncer without identity.
func New(backend Backend, notifier Notifier, logger zerolog.Logger) *Syncer {
	return &Syncer{
		backend:  backend,
		notifier: notifier,
		logger:   logger,
	}
}

func (s *Syncer) current() *domain.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.identity
}

// owns reports whether id belongs to the synced user. s.mu must be held.
func (s *Syncer) owns(id *domain.Identity) bool {
	return s.identity != nil && s.identity.UserID() == id.UserID()
}

func (s *Syncer) isCurrent(id *domain.Identity) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.owns(id)
}

// fail stores err in the error slot unless the user of id is no longer synced.
func (s *Syncer) fail(id *domain.Identity, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.owns(id) {
		s.err = err
	}
}

// LoadBalances replaces the balances with those of the identity, ordered by
// currency code. Without identity it does nothing. A failure is logged, kept
// in the error slot and returned; the loaded balances stay as they were.
func (s *Syncer) LoadBalances(ctx context.Context) error {
	id := s.current()
	if id == nil {
		return nil
	}

	balances, err := s.backend.ListBalances(ctx, id.AccessToken)
	if err != nil {
		s.logger.Error().Err(err).Msg("load balances")
		s.fail(id, err)

		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.owns(id) {
		s.balances = balances
	}

	return nil
}

// LoadMovements replaces the movements with the most recent MovementsLimit
// movements of the identity, newest first. Failures are handled as in
// LoadBalances.
func (s *Syncer) LoadMovements(ctx context.Context) error {
	id := s.current()
	if id == nil {
		return nil
	}

	movements, err := s.backend.ListMovements(ctx, id.AccessToken, MovementsLimit)
	if err != nil {
		s.logger.Error().Err(err).Msg("load movements")
		s.fail(id, err)

		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.owns(id) {
		s.movements = movements
	}

	return nil
}

// Refresh reloads both relations concurrently and returns the first failure.
func (s *Syncer) Refresh(ctx context.Context) error {
	var g errgroup.Group

	g.Go(func() error { return s.LoadBalances(ctx) })
	g.Go(func() error { return s.LoadMovements(ctx) })

	return g.Wait()
}

// InitiateTransfer writes a pending outbound movement and reloads both
// relations. A failed reload only sets the error slot.
func (s *Syncer) InitiateTransfer(ctx context.Context, req TransferRequest) (domain.Movement, error) {
	id := s.current()
	if id == nil {
		return domain.Movement{}, domain.ErrNotAuthenticated
	}

	if err := currencypkg.CheckAmount(req.Amount); err != nil {
		return domain.Movement{}, s.reject(paymentFailed, domain.ErrInvalidAmount)
	}

	metadata, err := json.Marshal(domain.TransferMetadata{
		Recipient:      req.Recipient,
		Message:        req.Message,
		PreferredRoute: req.Route,
	})
	if err != nil {
		return domain.Movement{}, err
	}

	arg := domain.CreateMovementParams{
		UserID:         id.UserID(),
		Type:           domain.KindOutbound,
		SourceAmount:   req.Amount.String(),
		SourceCurrency: req.Currency,
		Metadata:       metadata,
	}

	return s.write(ctx, id, arg,
		domain.Notice{
			Title:       "Payment Initiated",
			Description: fmt.Sprintf("Sending %s %s to %s", req.Amount, req.Currency, req.Recipient),
		},
		paymentFailed)
}

// InitiateConversion writes a pending conversion movement from one currency
// into another and reloads both relations.
func (s *Syncer) InitiateConversion(ctx context.Context, from, to string, amount decimal.Decimal) (domain.Movement, error) {
	id := s.current()
	if id == nil {
		return domain.Movement{}, domain.ErrNotAuthenticated
	}

	if err := currencypkg.CheckAmount(amount); err != nil {
		return domain.Movement{}, s.reject(conversionFailed, domain.ErrInvalidAmount)
	}

	metadata, err := json.Marshal(domain.ConversionMetadata{ConversionType: "internal"})
	if err != nil {
		return domain.Movement{}, err
	}

	arg := domain.CreateMovementParams{
		UserID:              id.UserID(),
		Type:                domain.KindConversion,
		SourceAmount:        amount.String(),
		SourceCurrency:      from,
		DestinationCurrency: &to,
		Metadata:            metadata,
	}

	return s.write(ctx, id, arg,
		domain.Notice{
			Title:       "Currency Conversion",
			Description: fmt.Sprintf("Converting %s %s to %s", amount, from, to),
		},
		conversionFailed)
}

func (s *Syncer) write(ctx context.Context, id *domain.Identity, arg domain.CreateMovementParams,
	success domain.Notice, failedTitle string) (domain.Movement, error) {
	movement, err := s.backend.CreateMovement(ctx, id.AccessToken, arg)
	if err != nil {
		s.logger.Error().Err(err).Str("type", arg.Type).Msg("create movement")
		return domain.Movement{}, s.reject(failedTitle, err)
	}

	s.notifier.Notify(success)

	_ = s.Refresh(ctx)

	return movement, nil
}

// reject notifies the failure of a write with err's message and returns err.
func (s *Syncer) reject(title string, err error) error {
	s.notifier.Notify(domain.Notice{
		Title:       title,
		Description: err.Error(),
		Failed:      true,
	})

	return err
}

// TotalValue returns the value of the loaded balances in USD.
func (s *Syncer) TotalValue() decimal.Decimal {
	s.mu.Lock()
	balances := s.balances
	s.mu.Unlock()

	return TotalValue(balances)
}

// Snapshot returns a copy of the synced state.
func (s *Syncer) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Snapshot{
		Balances:  append([]domain.Balance(nil), s.balances...),
		Movements: append([]domain.Movement(nil), s.movements...),
		Loading:   s.loading,
		Err:       s.err,
	}
}

// SetIdentity makes id the synced identity, nil signs the syncer out.
//
// When id belongs to the user already synced, only its tokens are replaced:
// the loaded state and the open channels are kept and channels that failed
// to open are opened again.
//
// Otherwise the channels of the previous identity are closed and the state
// is reset. For a non nil id, one change channel is opened per relation and
// both relations are loaded while Snapshot reports Loading. The returned
// error joins every failure; the syncer keeps working with whatever
// succeeded.
func (s *Syncer) SetIdentity(ctx context.Context, id *domain.Identity) error {
	var cur *domain.Identity
	if id != nil {
		cp := *id
		cur = &cp
	}

	if cur != nil && s.renew(cur) {
		return nil
	}

	var subCtx context.Context
	var cancel context.CancelFunc

	if cur != nil {
		subCtx, cancel = context.WithCancel(context.WithoutCancel(ctx))
	}

	s.mu.Lock()
	oldCancel, oldChannels := s.cancel, s.channels
	s.identity = cur
	s.balances = nil
	s.movements = nil
	s.err = nil
	s.loading = cur != nil
	s.subCtx = subCtx
	s.cancel = cancel
	s.channels = make(map[string]func())
	s.mu.Unlock()

	teardown(oldCancel, oldChannels)

	if cur == nil {
		return nil
	}

	var errs []error

	for _, table := range watchedTables {
		if err := s.subscribe(subCtx, cur, table); err != nil {
			errs = append(errs, err)
		}
	}

	errs = append(errs, s.Refresh(ctx))

	s.mu.Lock()
	if s.owns(cur) {
		s.loading = false
	}
	s.mu.Unlock()

	return errors.Join(errs...)
}

// renew swaps the tokens when id belongs to the synced user and reports
// whether it did.
func (s *Syncer) renew(id *domain.Identity) bool {
	s.mu.Lock()
	if !s.owns(id) {
		s.mu.Unlock()
		return false
	}

	s.identity = id
	subCtx := s.subCtx

	var missing []string

	if subCtx != nil {
		for _, table := range watchedTables {
			if _, ok := s.channels[table]; !ok {
				missing = append(missing, table)
			}
		}
	}
	s.mu.Unlock()

	for _, table := range missing {
		if err := s.subscribe(subCtx, id, table); err != nil {
			s.logger.Warn().Err(err).Str("table", table).Msg("reopen channel")
		}
	}

	return true
}

func (s *Syncer) subscribe(ctx context.Context, id *domain.Identity, table string) error {
	reload := s.LoadMovements
	if table == domain.TableWallets {
		reload = s.LoadBalances
	}

	l := s.logger.With().Str("table", table).Logger()

	unsubscribe, err := s.backend.Subscribe(ctx, id.AccessToken, table, func(ev domain.ChangeEvent) {
		if !s.isCurrent(id) {
			return
		}

		l.Debug().Str("type", ev.Type).Str("record_id", ev.RecordID.String()).Msg("change received")
		_ = reload(ctx)
	})
	if err != nil {
		l.Error().Err(err).Msg("subscribe")
		s.fail(id, err)

		return err
	}

	s.mu.Lock()
	_, open := s.channels[table]
	if open || s.subCtx != ctx || !s.owns(id) {
		s.mu.Unlock()
		unsubscribe()

		return nil
	}
	s.channels[table] = unsubscribe
	s.mu.Unlock()

	return nil
}

// Close closes the change channels. The loaded state stays readable.
func (s *Syncer) Close() {
	s.mu.Lock()
	cancel, channels := s.cancel, s.channels
	s.subCtx = nil
	s.cancel = nil
	s.channels = nil
	s.mu.Unlock()

	teardown(cancel, channels)
}

// teardown must be called without holding the syncer lock: unsubscribing
// waits for running change callbacks, which take the lock.
func teardown(cancel context.CancelFunc, channels map[string]func()) {
	if cancel != nil {
		cancel()
	}

	for _, unsubscribe := range channels {
		unsubscribe()
	}
}
