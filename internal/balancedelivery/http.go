// Package balancedelivery manages delivery layer of wallet balances.
package balancedelivery

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/go-petr/unipay/internal/domain"
	"github.com/go-petr/unipay/internal/middleware"
	"github.com/go-petr/unipay/pkg/errorspkg"
	"github.com/go-petr/unipay/pkg/web"
)

// Service provides service layer interface needed by balance delivery layer.
//
//go:generate mockgen -source http.go -destination http_mock.go -package balancedelivery
type Service interface {
	Create(ctx context.Context, userID uuid.UUID, currency string) (domain.Balance, error)
	List(ctx context.Context, userID uuid.UUID) ([]domain.Balance, error)
}

// Handler facilitates balance delivery layer logic.
type Handler struct {
	service Service
}

// NewHandler returns balance handler.
func NewHandler(bs Service) *Handler {
	return &Handler{service: bs}
}

// BalanceData is the data of a single balance response.
type BalanceData struct {
	Balance domain.Balance `json:"balance"`
}

// BalancesData is the data of a balance list response.
type BalancesData struct {
	Balances []domain.Balance `json:"balances"`
}

type createRequest struct {
	Currency string `json:"currency" binding:"required,currency"`
}

// Create handles http request to open a balance in a currency.
func (h *Handler) Create(gctx *gin.Context) {
	ctx := gctx.Request.Context()
	l := zerolog.Ctx(ctx)

	userID, err := middleware.AuthUserID(gctx)
	if err != nil {
		gctx.JSON(http.StatusUnauthorized, web.Error(err))
		return
	}

	var req createRequest
	if err := gctx.ShouldBindJSON(&req); err != nil {
		l.Info().Err(err).Send()

		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			gctx.JSON(http.StatusBadRequest, web.Response{Error: web.GetErrorMsg(ve)})
			return
		}

		gctx.JSON(http.StatusBadRequest, web.Error(err))

		return
	}

	balance, err := h.service.Create(ctx, userID, req.Currency)
	if err != nil {
		switch err {
		case domain.ErrOwnerNotFound:
			gctx.JSON(http.StatusBadRequest, web.Error(err))
			return
		case domain.ErrCurrencyAlreadyExists:
			gctx.JSON(http.StatusConflict, web.Error(err))
			return
		}

		gctx.JSON(http.StatusInternalServerError, web.Error(errorspkg.ErrInternal))

		return
	}

	gctx.JSON(http.StatusCreated, web.Response{Data: BalanceData{Balance: balance}})
}

// List handles http request to list the balances of the caller.
func (h *Handler) List(gctx *gin.Context) {
	ctx := gctx.Request.Context()

	userID, err := middleware.AuthUserID(gctx)
	if err != nil {
		gctx.JSON(http.StatusUnauthorized, web.Error(err))
		return
	}

	balances, err := h.service.List(ctx, userID)
	if err != nil {
		gctx.JSON(http.StatusInternalServerError, web.Error(errorspkg.ErrInternal))
		return
	}

	gctx.JSON(http.StatusOK, web.Response{Data: BalancesData{Balances: balances}})
}
