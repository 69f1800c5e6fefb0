// Package sessionservice manages business logic layer of sessions.
package sessionservice

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/go-petr/unipay/internal/domain"
	"github.com/go-petr/unipay/pkg/configpkg"
	"github.com/go-petr/unipay/pkg/tokenpkg"
)

// Repo provides data access layer interface needed by session service layer.
//
//go:generate mockgen -source service.go -destination service_mock.go -package sessionservice
type Repo interface {
	Create(ctx context.Context, arg domain.CreateSessionParams) (domain.Session, error)
	Get(ctx context.Context, id uuid.UUID) (domain.Session, error)
	Block(ctx context.Context, id uuid.UUID) (domain.Session, error)
}

// Service facilitates session service layer logic.
type Service struct {
	repo       Repo
	TokenMaker tokenpkg.Maker
	config     configpkg.Config
}

// New returns session service struct to manage session bussines logic.
func New(sr Repo, config configpkg.Config, tm tokenpkg.Maker) (*Service, error) {
	if tm == nil {
		return nil, errors.New("token maker is required")
	}

	return &Service{
		repo:       sr,
		TokenMaker: tm,
		config:     config,
	}, nil
}

// Create issues an access token and stores a refresh session for the user.
func (s *Service) Create(ctx context.Context, arg domain.CreateSessionParams) (string, time.Time, domain.Session, error) {
	l := zerolog.Ctx(ctx)

	var sess domain.Session

	accessToken, accessPayload, err := s.TokenMaker.CreateToken(arg.UserID.String(), s.config.AccessTokenDuration)
	if err != nil {
		l.Error().Err(err).Send()
		return "", time.Time{}, sess, err
	}

	refreshToken, refreshPayload, err := s.TokenMaker.CreateToken(arg.UserID.String(), s.config.RefreshTokenDuration)
	if err != nil {
		l.Error().Err(err).Send()
		return "", time.Time{}, sess, err
	}

	arg.ID = refreshPayload.ID
	arg.RefreshToken = refreshToken
	arg.ExpiresAt = refreshPayload.ExpiredAt

	sess, err = s.repo.Create(ctx, arg)
	if err != nil {
		return "", time.Time{}, sess, err
	}

	return accessToken, accessPayload.ExpiredAt, sess, nil
}

func (s *Service) validSession(ctx context.Context, refreshToken string) (*tokenpkg.Payload, domain.Session, error) {
	l := zerolog.Ctx(ctx)

	refreshPayload, err := s.TokenMaker.VerifyToken(refreshToken)
	if err != nil {
		l.Info().Err(err).Send()
		return nil, domain.Session{}, err
	}

	sess, err := s.repo.Get(ctx, refreshPayload.ID)
	if err != nil {
		return nil, sess, err
	}

	if sess.IsBlocked {
		return nil, sess, domain.ErrBlockedSession
	}

	if sess.UserID.String() != refreshPayload.UserID {
		return nil, sess, domain.ErrInvalidUser
	}

	if sess.RefreshToken != refreshToken {
		return nil, sess, domain.ErrMismatchedRefreshToken
	}

	if time.Now().After(sess.ExpiresAt) {
		return nil, sess, domain.ErrExpiredSession
	}

	return refreshPayload, sess, nil
}

// RenewAccessToken issues a new access token for a valid refresh token.
func (s *Service) RenewAccessToken(ctx context.Context, refreshToken string) (string, time.Time, error) {
	refreshPayload, _, err := s.validSession(ctx, refreshToken)
	if err != nil {
		return "", time.Time{}, err
	}

	accessToken, accessPayload, err := s.TokenMaker.CreateToken(refreshPayload.UserID, s.config.AccessTokenDuration)
	if err != nil {
		return "", time.Time{}, err
	}

	return accessToken, accessPayload.ExpiredAt, nil
}

// Revoke blocks the refresh session so it cannot renew tokens anymore.
//
// Only the owner of the session may revoke it.
func (s *Service) Revoke(ctx context.Context, userID uuid.UUID, refreshToken string) error {
	_, sess, err := s.validSession(ctx, refreshToken)
	if err != nil {
		return err
	}

	if sess.UserID != userID {
		return domain.ErrInvalidUser
	}

	_, err = s.repo.Block(ctx, sess.ID)

	return err
}
