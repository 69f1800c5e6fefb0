package balanceservice

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"github.com/go-petr/unipay/internal/domain"
	"github.com/go-petr/unipay/pkg/errorspkg"
	"github.com/go-petr/unipay/pkg/randompkg"
)

func randomBalance(userID uuid.UUID) domain.Balance {
	return domain.Balance{
		ID:               uuid.New(),
		UserID:           userID,
		CurrencyCode:     randompkg.Currency(),
		Balance:          "0",
		AvailableBalance: "0",
		LockedBalance:    "0",
		CreatedAt:        time.Now().UTC(),
		UpdatedAt:        time.Now().UTC(),
	}
}

func TestCreate(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	balance := randomBalance(userID)

	testCases := []struct {
		name       string
		buildStubs func(repo *MockRepo, pub *MockPublisher)
		wantError  error
	}{
		{
			name: "OK",
			buildStubs: func(repo *MockRepo, pub *MockPublisher) {
				repo.EXPECT().
					Create(gomock.Any(), userID, balance.CurrencyCode).
					Times(1).
					Return(balance, nil)
				pub.EXPECT().
					Publish(gomock.Any(), gomock.AssignableToTypeOf(domain.ChangeEvent{})).
					Times(1).
					DoAndReturn(func(_ context.Context, ev domain.ChangeEvent) error {
						if ev.Table != domain.TableWallets || ev.Type != domain.ChangeInsert {
							t.Errorf("published %s %s, want %s %s", ev.Table, ev.Type, domain.TableWallets, domain.ChangeInsert)
						}
						if ev.UserID != userID || ev.RecordID != balance.ID {
							t.Errorf("published event %+v for wrong row", ev)
						}
						return nil
					})
			},
		},
		{
			name: "PublishErrorIgnored",
			buildStubs: func(repo *MockRepo, pub *MockPublisher) {
				repo.EXPECT().
					Create(gomock.Any(), userID, balance.CurrencyCode).
					Times(1).
					Return(balance, nil)
				pub.EXPECT().
					Publish(gomock.Any(), gomock.Any()).
					Times(1).
					Return(errors.New("broker down"))
			},
		},
		{
			name: "ErrCurrencyAlreadyExists",
			buildStubs: func(repo *MockRepo, pub *MockPublisher) {
				repo.EXPECT().
					Create(gomock.Any(), userID, balance.CurrencyCode).
					Times(1).
					Return(domain.Balance{}, domain.ErrCurrencyAlreadyExists)
				pub.EXPECT().Publish(gomock.Any(), gomock.Any()).Times(0)
			},
			wantError: domain.ErrCurrencyAlreadyExists,
		},
	}

	for i := range testCases {
		tc := testCases[i]

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			repo := NewMockRepo(ctrl)
			pub := NewMockPublisher(ctrl)
			tc.buildStubs(repo, pub)

			service := New(repo, pub)

			got, err := service.Create(context.Background(), userID, balance.CurrencyCode)
			if err != tc.wantError {
				t.Fatalf("service.Create(context.Background(), %v, %v) returned error %v, want %v",
					userID, balance.CurrencyCode, err, tc.wantError)
			}

			if tc.wantError == nil {
				if diff := cmp.Diff(balance, got); diff != "" {
					t.Errorf("service.Create returned unexpected difference (-want +got):\n%s", diff)
				}
			}
		})
	}
}

func TestList(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	balances := []domain.Balance{randomBalance(userID), randomBalance(userID)}

	testCases := []struct {
		name       string
		buildStubs func(repo *MockRepo)
		want       []domain.Balance
		wantError  error
	}{
		{
			name: "OK",
			buildStubs: func(repo *MockRepo) {
				repo.EXPECT().List(gomock.Any(), userID).Times(1).Return(balances, nil)
			},
			want: balances,
		},
		{
			name: "ErrInternal",
			buildStubs: func(repo *MockRepo) {
				repo.EXPECT().List(gomock.Any(), userID).Times(1).Return(nil, errorspkg.ErrInternal)
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

			got, err := New(repo, NewMockPublisher(ctrl)).List(context.Background(), userID)
			if err != tc.wantError {
				t.Fatalf("service.List(context.Background(), %v) returned error %v, want %v", userID, err, tc.wantError)
			}

			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("service.List returned unexpected difference (-want +got):\n%s", diff)
			}
		})
	}
}
