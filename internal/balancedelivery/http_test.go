package balancedelivery

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/golang/mock/gomock"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/google/uuid"

	"github.com/go-petr/unipay/internal/domain"
	"github.com/go-petr/unipay/internal/middleware"
	"github.com/go-petr/unipay/pkg/currencypkg"
	"github.com/go-petr/unipay/pkg/errorspkg"
	"github.com/go-petr/unipay/pkg/randompkg"
	"github.com/go-petr/unipay/pkg/tokenpkg"
)

var tokenMaker tokenpkg.Maker

func TestMain(m *testing.M) {
	gin.SetMode(gin.ReleaseMode)

	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		if err := v.RegisterValidation("currency", currencypkg.ValidCurrency); err != nil {
			panic(err)
		}
	}

	var err error

	tokenMaker, err = tokenpkg.NewPasetoMaker(randompkg.String(32))
	if err != nil {
		panic(err)
	}

	os.Exit(m.Run())
}

func randomBalance(userID uuid.UUID, currency string) domain.Balance {
	return domain.Balance{
		ID:               uuid.New(),
		UserID:           userID,
		CurrencyCode:     currency,
		Balance:          randompkg.MoneyAmountBetween(100, 1_000),
		AvailableBalance: "100",
		LockedBalance:    "0",
		CreatedAt:        time.Now().UTC(),
		UpdatedAt:        time.Now().UTC(),
	}
}

type listResponse struct {
	Data  BalancesData `json:"data"`
	Error string       `json:"error"`
}

type createResponse struct {
	Data  BalanceData `json:"data"`
	Error string      `json:"error"`
}

func TestCreate(t *testing.T) {
	userID := uuid.New()
	balance := randomBalance(userID, currencypkg.EUR)

	testCases := []struct {
		name           string
		body           gin.H
		buildStubs     func(service *MockService)
		wantStatusCode int
		wantError      string
	}{
		{
			name: "OK",
			body: gin.H{"currency": currencypkg.EUR},
			buildStubs: func(service *MockService) {
				service.EXPECT().Create(gomock.Any(), userID, currencypkg.EUR).Times(1).Return(balance, nil)
			},
			wantStatusCode: http.StatusCreated,
		},
		{
			name: "UnsupportedCurrency",
			body: gin.H{"currency": "XYZ"},
			buildStubs: func(service *MockService) {
				service.EXPECT().Create(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
			},
			wantStatusCode: http.StatusBadRequest,
			wantError:      "Currency field must be a supported currency",
		},
		{
			name: "CurrencyAlreadyExists",
			body: gin.H{"currency": currencypkg.EUR},
			buildStubs: func(service *MockService) {
				service.EXPECT().Create(gomock.Any(), userID, currencypkg.EUR).Times(1).
					Return(domain.Balance{}, domain.ErrCurrencyAlreadyExists)
			},
			wantStatusCode: http.StatusConflict,
			wantError:      domain.ErrCurrencyAlreadyExists.Error(),
		},
		{
			name: "InternalError",
			body: gin.H{"currency": currencypkg.EUR},
			buildStubs: func(service *MockService) {
				service.EXPECT().Create(gomock.Any(), userID, currencypkg.EUR).Times(1).
					Return(domain.Balance{}, errorspkg.ErrInternal)
			},
			wantStatusCode: http.StatusInternalServerError,
			wantError:      errorspkg.ErrInternal.Error(),
		},
	}

	for i := range testCases {
		tc := testCases[i]

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			service := NewMockService(ctrl)
			tc.buildStubs(service)

			server := gin.New()
			url := "/wallets"
			server.POST(url, middleware.AuthMiddleware(tokenMaker), NewHandler(service).Create)

			body, err := json.Marshal(tc.body)
			if err != nil {
				t.Fatalf("Encoding request body error: %v", err)
			}

			req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
			if err != nil {
				t.Fatalf("Creating request error: %v", err)
			}

			if err := middleware.AddAuthorization(req, tokenMaker, middleware.AuthTypeBearer, userID.String(), time.Minute); err != nil {
				t.Fatalf("middleware.AddAuthorization() returned error: %v", err)
			}

			w := httptest.NewRecorder()
			server.ServeHTTP(w, req)

			if got := w.Code; got != tc.wantStatusCode {
				t.Errorf("Status code: got %v, want %v", got, tc.wantStatusCode)
			}

			var res createResponse
			if err := json.NewDecoder(w.Body).Decode(&res); err != nil {
				t.Fatalf("Decoding response body error: %v", err)
			}

			if res.Error != tc.wantError {
				t.Errorf(`res.Error=%q, want %q`, res.Error, tc.wantError)
			}

			if tc.wantStatusCode == http.StatusCreated {
				if diff := cmp.Diff(balance, res.Data.Balance, cmpopts.EquateApproxTime(time.Second)); diff != "" {
					t.Errorf("res.Data.Balance mismatch (-want +got):\n%s", diff)
				}
			}
		})
	}
}

func TestList(t *testing.T) {
	userID := uuid.New()
	balances := []domain.Balance{
		randomBalance(userID, currencypkg.BTC),
		randomBalance(userID, currencypkg.USD),
	}

	testCases := []struct {
		name           string
		authorize      bool
		buildStubs     func(service *MockService)
		wantStatusCode int
		wantBalances   []domain.Balance
	}{
		{
			name:      "OK",
			authorize: true,
			buildStubs: func(service *MockService) {
				service.EXPECT().List(gomock.Any(), userID).Times(1).Return(balances, nil)
			},
			wantStatusCode: http.StatusOK,
			wantBalances:   balances,
		},
		{
			name: "NoAuthorization",
			buildStubs: func(service *MockService) {
				service.EXPECT().List(gomock.Any(), gomock.Any()).Times(0)
			},
			wantStatusCode: http.StatusUnauthorized,
		},
		{
			name:      "InternalError",
			authorize: true,
			buildStubs: func(service *MockService) {
				service.EXPECT().List(gomock.Any(), userID).Times(1).Return(nil, errorspkg.ErrInternal)
			},
			wantStatusCode: http.StatusInternalServerError,
		},
	}

	for i := range testCases {
		tc := testCases[i]

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			service := NewMockService(ctrl)
			tc.buildStubs(service)

			server := gin.New()
			url := "/wallets"
			server.GET(url, middleware.AuthMiddleware(tokenMaker), NewHandler(service).List)

			req, err := http.NewRequest(http.MethodGet, url, nil)
			if err != nil {
				t.Fatalf("Creating request error: %v", err)
			}

			if tc.authorize {
				if err := middleware.AddAuthorization(req, tokenMaker, middleware.AuthTypeBearer, userID.String(), time.Minute); err != nil {
					t.Fatalf("middleware.AddAuthorization() returned error: %v", err)
				}
			}

			w := httptest.NewRecorder()
			server.ServeHTTP(w, req)

			if got := w.Code; got != tc.wantStatusCode {
				t.Errorf("Status code: got %v, want %v", got, tc.wantStatusCode)
			}

			var res listResponse
			if err := json.NewDecoder(w.Body).Decode(&res); err != nil {
				t.Fatalf("Decoding response body error: %v", err)
			}

			if diff := cmp.Diff(tc.wantBalances, res.Data.Balances, cmpopts.EquateApproxTime(time.Second)); diff != "" {
				t.Errorf("res.Data.Balances mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
