// Package userservice manages business logic layer of users.
package userservice

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/go-petr/unipay/internal/domain"
	"github.com/go-petr/unipay/pkg/errorspkg"
	"github.com/go-petr/unipay/pkg/passpkg"
)

// Repo provides data access layer interface needed by user service layer.
//
//go:generate mockgen -source service.go -destination service_mock.go -package userservice
type Repo interface {
	Create(ctx context.Context, arg domain.CreateUserParams) (domain.User, error)
	Get(ctx context.Context, id uuid.UUID) (domain.User, error)
	GetByEmail(ctx context.Context, email string) (domain.User, error)
}

// Service facilitates user service layer logic.
type Service struct {
	repo Repo
}

// New return user service struct to manage user bussines logic.
func New(ur Repo) *Service {
	return &Service{
		repo: ur,
	}
}

// NewUserWihtoutPassword returns user with removed sensitive data.
func NewUserWihtoutPassword(u domain.User) domain.UserWihtoutPassword {
	return domain.UserWihtoutPassword{
		ID:        u.ID,
		Email:     u.Email,
		FullName:  u.FullName,
		CreatedAt: u.CreatedAt,
	}
}

// Create registers and returns user. Emails are stored lower cased.
func (s *Service) Create(ctx context.Context, email, password, fullname string) (domain.UserWihtoutPassword, error) {
	l := zerolog.Ctx(ctx)

	var result domain.UserWihtoutPassword

	hashedPassword, err := passpkg.Hash(password)
	if err != nil {
		l.Error().Err(err).Send()
		return result, errorspkg.ErrInternal
	}

	arg := domain.CreateUserParams{
		Email:          strings.ToLower(email),
		HashedPassword: hashedPassword,
		FullName:       fullname,
	}

	gotUser, err := s.repo.Create(ctx, arg)
	if err != nil {
		return result, err
	}

	result = NewUserWihtoutPassword(gotUser)

	return result, nil
}

// CheckPassword checks if the password is valid for the given email.
func (s *Service) CheckPassword(ctx context.Context, email, pass string) (domain.UserWihtoutPassword, error) {
	l := zerolog.Ctx(ctx)

	var response domain.UserWihtoutPassword

	gotUser, err := s.repo.GetByEmail(ctx, strings.ToLower(email))
	if err != nil {
		return response, err
	}

	err = passpkg.Check(pass, gotUser.HashedPassword)
	if err != nil {
		l.Warn().Err(err).Send()
		return response, domain.ErrWrongPassword
	}

	response = NewUserWihtoutPassword(gotUser)

	return response, nil
}

// Get returns the user with the given id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (domain.UserWihtoutPassword, error) {
	gotUser, err := s.repo.Get(ctx, id)
	if err != nil {
		return domain.UserWihtoutPassword{}, err
	}

	return NewUserWihtoutPassword(gotUser), nil
}
