// Package sessionprovider holds the authenticated identity of the client and
// tells dependents whenever it changes.
package sessionprovider

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/go-petr/unipay/internal/domain"
)

// renewBefore is how long before expiry Refresh renews the access token.
const renewBefore = 30 * time.Second

//go:generate mockgen -source provider.go -destination provider_mock.go -package sessionprovider

// Authenticator provides the backend calls needed by the provider.
type Authenticator interface {
	SignUp(ctx context.Context, email, password, fullName string) (domain.Identity, error)
	SignIn(ctx context.Context, email, password string) (domain.Identity, error)
	SignOut(ctx context.Context, accessToken, refreshToken string) error
	Renew(ctx context.Context, refreshToken string) (string, time.Time, error)
}

// Listener is called with the new identity, nil after sign out.
type Listener func(ctx context.Context, id *domain.Identity)

// Provider holds the current identity.
type Provider struct {
	auth   Authenticator
	logger zerolog.Logger

	mu        sync.RWMutex
	current   *domain.Identity
	listeners []Listener
}

// New returns a provider without identity.
func New(auth Authenticator, logger zerolog.Logger) *Provider {
	return &Provider{
		auth:   auth,
		logger: logger,
	}
}

// OnChange registers l. Listeners run in registration order on the
// goroutine that changed the identity.
func (p *Provider) OnChange(l Listener) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.listeners = append(p.listeners, l)
}

// Current returns a copy of the current identity or nil.
func (p *Provider) Current() *domain.Identity {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.current == nil {
		return nil
	}

	id := *p.current

	return &id
}

func (p *Provider) set(ctx context.Context, id *domain.Identity) {
	p.mu.Lock()
	p.current = id
	listeners := append([]Listener(nil), p.listeners...)
	p.mu.Unlock()

	for _, l := range listeners {
		if id == nil {
			l(ctx, nil)
			continue
		}

		cp := *id
		l(ctx, &cp)
	}
}

// SignIn authenticates and makes the result the current identity.
func (p *Provider) SignIn(ctx context.Context, email, password string) (domain.Identity, error) {
	id, err := p.auth.SignIn(ctx, email, password)
	if err != nil {
		p.logger.Info().Err(err).Str("email", email).Msg("sign in")
		return id, err
	}

	p.set(ctx, &id)

	return id, nil
}

// SignUp registers a user and makes its session the current identity.
func (p *Provider) SignUp(ctx context.Context, email, password, fullName string) (domain.Identity, error) {
	id, err := p.auth.SignUp(ctx, email, password, fullName)
	if err != nil {
		p.logger.Info().Err(err).Str("email", email).Msg("sign up")
		return id, err
	}

	p.set(ctx, &id)

	return id, nil
}

// SignOut revokes the session on the backend and clears the identity.
//
// The identity is cleared even when the backend call fails.
func (p *Provider) SignOut(ctx context.Context) error {
	id := p.Current()
	if id == nil {
		return nil
	}

	err := p.auth.SignOut(ctx, id.AccessToken, id.RefreshToken)
	if err != nil {
		p.logger.Warn().Err(err).Msg("sign out")
	}

	p.set(ctx, nil)

	return err
}

// Refresh renews the access token when it expires within renewBefore.
// It reports whether the identity changed.
func (p *Provider) Refresh(ctx context.Context) (bool, error) {
	id := p.Current()
	if id == nil {
		return false, domain.ErrNotAuthenticated
	}

	if time.Until(id.AccessTokenExpiresAt) > renewBefore {
		return false, nil
	}

	token, expiresAt, err := p.auth.Renew(ctx, id.RefreshToken)
	if err != nil {
		p.logger.Warn().Err(err).Msg("renew access token")
		return false, err
	}

	id.AccessToken = token
	id.AccessTokenExpiresAt = expiresAt

	p.set(ctx, id)

	return true, nil
}
