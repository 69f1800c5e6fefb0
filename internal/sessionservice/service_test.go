package sessionservice

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"github.com/go-petr/unipay/internal/domain"
	"github.com/go-petr/unipay/pkg/configpkg"
	"github.com/go-petr/unipay/pkg/errorspkg"
	"github.com/go-petr/unipay/pkg/randompkg"
	"github.com/go-petr/unipay/pkg/tokenpkg"
)

var config configpkg.Config

func TestMain(m *testing.M) {
	config = configpkg.Config{
		TokenSymmetricKey:    randompkg.String(32),
		AccessTokenDuration:  time.Minute,
		RefreshTokenDuration: time.Minute,
	}

	os.Exit(m.Run())
}

func TestNew(t *testing.T) {
	t.Parallel()

	if _, err := New(nil, config, nil); err == nil {
		t.Error("New(nil, config, nil) returned nil error, want error")
	}
}

func TestCreate(t *testing.T) {
	t.Parallel()

	tokenMaker, err := tokenpkg.NewPasetoMaker(config.TokenSymmetricKey)
	if err != nil {
		t.Fatalf("tokenpkg.NewPasetoMaker(%v) failed: %v", config.TokenSymmetricKey, err)
	}

	userID := uuid.New()
	want := domain.Session{
		UserID: userID,
	}

	testCases := []struct {
		name          string
		arg           domain.CreateSessionParams
		buildStubs    func(repo *MockRepo)
		checkResponse func(accessToken string, accessTokenExpiresAt time.Time, sess domain.Session)
		wantError     error
	}{
		{
			name: "OK",
			arg: domain.CreateSessionParams{
				UserID: userID,
			},
			buildStubs: func(repo *MockRepo) {
				repo.EXPECT().
					Create(gomock.Any(), gomock.AssignableToTypeOf(domain.CreateSessionParams{})).
					Times(1).
					DoAndReturn(func(_ context.Context, arg domain.CreateSessionParams) (domain.Session, error) {
						if arg.RefreshToken == "" || arg.ID == uuid.Nil {
							t.Errorf("Create got incomplete params %+v", arg)
						}
						return want, nil
					})
			},
			checkResponse: func(accessToken string, accessTokenExpiresAt time.Time, got domain.Session) {
				if accessToken == "" {
					t.Error(`accessToken = "", want non empty`)
				}

				if accessTokenExpiresAt.IsZero() {
					t.Error(`accessTokenExpiresAt is zero, want non zero`)
				}

				if diff := cmp.Diff(want, got); diff != "" {
					t.Errorf("session returned unexpected diff: %s", diff)
				}
			},
		},
		{
			name: "RepoInternalError",
			arg: domain.CreateSessionParams{
				UserID: userID,
			},
			buildStubs: func(repo *MockRepo) {
				repo.EXPECT().
					Create(gomock.Any(), gomock.AssignableToTypeOf(domain.CreateSessionParams{})).
					Times(1).
					Return(domain.Session{}, errorspkg.ErrInternal)
			},
			wantError: errorspkg.ErrInternal,
		},
	}

	for i := range testCases {
		tc := testCases[i]

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			sessionRepoMock := NewMockRepo(ctrl)
			sessionService, err := New(sessionRepoMock, config, tokenMaker)
			if err != nil {
				t.Fatalf("New(%v, %v, %v) failed: %v", sessionRepoMock, config, tokenMaker, err)
			}

			tc.buildStubs(sessionRepoMock)

			accessToken, accessTokenExpiresAt, sess, err := sessionService.Create(context.Background(), tc.arg)
			if err != tc.wantError {
				t.Fatalf("sessionService.Create(context.Background(), %v) returned error %v, want %v",
					tc.arg, err, tc.wantError)
			}

			if tc.checkResponse != nil {
				tc.checkResponse(accessToken, accessTokenExpiresAt, sess)
			}
		})
	}
}

type tokens struct {
	valid        string
	validPayload *tokenpkg.Payload
	expired      string
	other        string
	otherPayload *tokenpkg.Payload
}

func newTokens(t *testing.T, tokenMaker tokenpkg.Maker, userID uuid.UUID) tokens {
	t.Helper()

	var (
		tk  tokens
		err error
	)

	tk.valid, tk.validPayload, err = tokenMaker.CreateToken(userID.String(), config.RefreshTokenDuration)
	if err != nil {
		t.Fatalf("tokenMaker.CreateToken(%v, %v) failed: %v", userID, config.RefreshTokenDuration, err)
	}

	tk.expired, _, err = tokenMaker.CreateToken(userID.String(), -time.Minute)
	if err != nil {
		t.Fatalf("tokenMaker.CreateToken(%v, %v) failed: %v", userID, -time.Minute, err)
	}

	otherUser := uuid.New()

	tk.other, tk.otherPayload, err = tokenMaker.CreateToken(otherUser.String(), config.RefreshTokenDuration)
	if err != nil {
		t.Fatalf("tokenMaker.CreateToken(%v, %v) failed: %v", otherUser, config.RefreshTokenDuration, err)
	}

	return tk
}

func TestRenewAccessToken(t *testing.T) {
	t.Parallel()

	tokenMaker, err := tokenpkg.NewPasetoMaker(config.TokenSymmetricKey)
	if err != nil {
		t.Fatalf("tokenpkg.NewPasetoMaker(%v) failed: %v", config.TokenSymmetricKey, err)
	}

	userID := uuid.New()
	tk := newTokens(t, tokenMaker, userID)

	testCases := []struct {
		name          string
		token         string
		buildStubs    func(repo *MockRepo)
		checkResponse func(t *testing.T, accessToken string, accessTokenExpiresAt time.Time)
		wantError     error
	}{
		{
			name:  "OK",
			token: tk.valid,
			buildStubs: func(repo *MockRepo) {
				s := domain.Session{
					UserID:       userID,
					RefreshToken: tk.valid,
					ExpiresAt:    tk.validPayload.ExpiredAt,
				}
				repo.EXPECT().
					Get(gomock.Any(), gomock.Eq(tk.validPayload.ID)).
					Times(1).
					Return(s, nil)
			},
			checkResponse: func(t *testing.T, accessToken string, accessTokenExpiresAt time.Time) {
				payload, err := tokenMaker.VerifyToken(accessToken)
				if err != nil {
					t.Fatalf("tokenMaker.VerifyToken(accessToken) returned error: %v", err)
				}

				if payload.UserID != userID.String() {
					t.Errorf("payload.UserID = %v, want %v", payload.UserID, userID)
				}

				if accessTokenExpiresAt.IsZero() {
					t.Error(`accessTokenExpiresAt is zero, want non zero`)
				}
			},
		},
		{
			name:  "ErrExpiredToken",
			token: tk.expired,
			buildStubs: func(repo *MockRepo) {
				repo.EXPECT().
					Get(gomock.Any(), gomock.Any()).
					Times(0)
			},
			wantError: tokenpkg.ErrExpiredToken,
		},
		{
			name:  "ErrInvalidToken",
			token: "invalid",
			buildStubs: func(repo *MockRepo) {
				repo.EXPECT().
					Get(gomock.Any(), gomock.Any()).
					Times(0)
			},
			wantError: tokenpkg.ErrInvalidToken,
		},
		{
			name:  "ErrSessionNotFound",
			token: tk.valid,
			buildStubs: func(repo *MockRepo) {
				repo.EXPECT().
					Get(gomock.Any(), gomock.Eq(tk.validPayload.ID)).
					Times(1).
					Return(domain.Session{}, domain.ErrSessionNotFound)
			},
			wantError: domain.ErrSessionNotFound,
		},
		{
			name:  "ErrBlockedSession",
			token: tk.valid,
			buildStubs: func(repo *MockRepo) {
				repo.EXPECT().
					Get(gomock.Any(), gomock.Eq(tk.validPayload.ID)).
					Times(1).
					Return(domain.Session{IsBlocked: true}, nil)
			},
			wantError: domain.ErrBlockedSession,
		},
		{
			name:  "ErrInvalidUser",
			token: tk.other,
			buildStubs: func(repo *MockRepo) {
				repo.EXPECT().
					Get(gomock.Any(), gomock.Eq(tk.otherPayload.ID)).
					Times(1).
					Return(domain.Session{UserID: userID}, nil)
			},
			wantError: domain.ErrInvalidUser,
		},
		{
			name:  "ErrMismatchedRefreshToken",
			token: tk.valid,
			buildStubs: func(repo *MockRepo) {
				repo.EXPECT().
					Get(gomock.Any(), gomock.Eq(tk.validPayload.ID)).
					Times(1).
					Return(domain.Session{UserID: userID, RefreshToken: tk.other}, nil)
			},
			wantError: domain.ErrMismatchedRefreshToken,
		},
		{
			name:  "ErrExpiredSession",
			token: tk.valid,
			buildStubs: func(repo *MockRepo) {
				repo.EXPECT().
					Get(gomock.Any(), gomock.Eq(tk.validPayload.ID)).
					Times(1).
					Return(domain.Session{
						UserID:       userID,
						RefreshToken: tk.valid,
						ExpiresAt:    time.Now().Add(-time.Hour),
					}, nil)
			},
			wantError: domain.ErrExpiredSession,
		},
	}

	for i := range testCases {
		tc := testCases[i]

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			sessionRepoMock := NewMockRepo(ctrl)
			sessionService, err := New(sessionRepoMock, config, tokenMaker)
			if err != nil {
				t.Fatalf("New(%v, %v, %v) failed: %v", sessionRepoMock, config, tokenMaker, err)
			}

			tc.buildStubs(sessionRepoMock)

			accessToken, expires, err := sessionService.RenewAccessToken(context.Background(), tc.token)
			if err != tc.wantError {
				t.Fatalf("sessionService.RenewAccessToken(context.Background(), %v) returned error %v, want %v",
					tc.token, err, tc.wantError)
			}

			if tc.checkResponse != nil {
				tc.checkResponse(t, accessToken, expires)
			}
		})
	}
}

func TestRevoke(t *testing.T) {
	t.Parallel()

	tokenMaker, err := tokenpkg.NewPasetoMaker(config.TokenSymmetricKey)
	if err != nil {
		t.Fatalf("tokenpkg.NewPasetoMaker(%v) failed: %v", config.TokenSymmetricKey, err)
	}

	userID := uuid.New()
	tk := newTokens(t, tokenMaker, userID)

	sess := domain.Session{
		ID:           tk.validPayload.ID,
		UserID:       userID,
		RefreshToken: tk.valid,
		ExpiresAt:    tk.validPayload.ExpiredAt,
	}

	testCases := []struct {
		name       string
		userID     uuid.UUID
		buildStubs func(repo *MockRepo)
		wantError  error
	}{
		{
			name:   "OK",
			userID: userID,
			buildStubs: func(repo *MockRepo) {
				repo.EXPECT().Get(gomock.Any(), sess.ID).Times(1).Return(sess, nil)
				repo.EXPECT().Block(gomock.Any(), sess.ID).Times(1).Return(sess, nil)
			},
		},
		{
			name:   "NotOwner",
			userID: uuid.New(),
			buildStubs: func(repo *MockRepo) {
				repo.EXPECT().Get(gomock.Any(), sess.ID).Times(1).Return(sess, nil)
				repo.EXPECT().Block(gomock.Any(), gomock.Any()).Times(0)
			},
			wantError: domain.ErrInvalidUser,
		},
		{
			name:   "BlockError",
			userID: userID,
			buildStubs: func(repo *MockRepo) {
				repo.EXPECT().Get(gomock.Any(), sess.ID).Times(1).Return(sess, nil)
				repo.EXPECT().Block(gomock.Any(), sess.ID).Times(1).Return(domain.Session{}, errorspkg.ErrInternal)
			},
			wantError: errorspkg.ErrInternal,
		},
	}

	for i := range testCases {
		tc := testCases[i]

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			repo := NewMockRepo(ctrl)
			tc.buildStubs(repo)

			sessionService, err := New(repo, config, tokenMaker)
			if err != nil {
				t.Fatalf("New(...) failed: %v", err)
			}

			err = sessionService.Revoke(context.Background(), tc.userID, tk.valid)
			if err != tc.wantError {
				t.Errorf("sessionService.Revoke() error = %v, want %v", err, tc.wantError)
			}
		})
	}
}
