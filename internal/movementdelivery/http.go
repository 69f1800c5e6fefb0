// Package movementdelivery manages delivery layer of money movements.
package movementdelivery

import (
	"context"
	"encoding/json"
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

// DefaultLimit is the page size of the list endpoint when none is requested.
const DefaultLimit = 20

// Service provides service layer interface needed by movement delivery layer.
//
//go:generate mockgen -source http.go -destination http_mock.go -package movementdelivery
type Service interface {
	Create(ctx context.Context, userID uuid.UUID, arg domain.CreateMovementParams) (domain.Movement, error)
	ListRecent(ctx context.Context, userID uuid.UUID, limit int32) ([]domain.Movement, error)
}

// Handler facilitates movement delivery layer logic.
type Handler struct {
	service Service
}

// NewHandler returns movement handler.
func NewHandler(ms Service) *Handler {
	return &Handler{service: ms}
}

// MovementData is the data of a single movement response.
type MovementData struct {
	Movement domain.Movement `json:"movement"`
}

// MovementsData is the data of a movement list response.
type MovementsData struct {
	Movements []domain.Movement `json:"movements"`
}

func writeBindError(gctx *gin.Context, err error) {
	zerolog.Ctx(gctx.Request.Context()).Info().Err(err).Send()

	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		gctx.JSON(http.StatusBadRequest, web.Response{Error: web.GetErrorMsg(ve)})
		return
	}

	gctx.JSON(http.StatusBadRequest, web.Error(err))
}

type createRequest struct {
	Type                string          `json:"type" binding:"required,oneof=outbound conversion"`
	SourceAmount        string          `json:"source_amount" binding:"required"`
	SourceCurrency      string          `json:"source_currency" binding:"required,currency"`
	DestinationCurrency *string         `json:"destination_currency" binding:"omitempty,currency"`
	Metadata            json.RawMessage `json:"metadata"`
}

// Create handles http request to record a new pending movement.
func (h *Handler) Create(gctx *gin.Context) {
	ctx := gctx.Request.Context()

	userID, err := middleware.AuthUserID(gctx)
	if err != nil {
		gctx.JSON(http.StatusUnauthorized, web.Error(err))
		return
	}

	var req createRequest
	if err := gctx.ShouldBindJSON(&req); err != nil {
		writeBindError(gctx, err)
		return
	}

	arg := domain.CreateMovementParams{
		Type:                req.Type,
		SourceAmount:        req.SourceAmount,
		SourceCurrency:      req.SourceCurrency,
		DestinationCurrency: req.DestinationCurrency,
		Metadata:            req.Metadata,
	}

	movement, err := h.service.Create(ctx, userID, arg)
	if err != nil {
		switch err {
		case domain.ErrInvalidAmount,
			domain.ErrNegativeAmount,
			domain.ErrInvalidKind,
			domain.ErrSameCurrency,
			domain.ErrMissingRecipient,
			domain.ErrUnsupportedCurrency,
			domain.ErrInvalidMetadata,
			domain.ErrOwnerNotFound:
			gctx.JSON(http.StatusBadRequest, web.Error(err))
			return
		}

		gctx.JSON(http.StatusInternalServerError, web.Error(errorspkg.ErrInternal))

		return
	}

	gctx.JSON(http.StatusCreated, web.Response{Data: MovementData{Movement: movement}})
}

type listRequest struct {
	Limit int32 `form:"limit" binding:"omitempty,min=1,max=100"`
}

// List handles http request to list the most recent movements of the caller.
func (h *Handler) List(gctx *gin.Context) {
	ctx := gctx.Request.Context()

	userID, err := middleware.AuthUserID(gctx)
	if err != nil {
		gctx.JSON(http.StatusUnauthorized, web.Error(err))
		return
	}

	var req listRequest
	if err := gctx.ShouldBindQuery(&req); err != nil {
		writeBindError(gctx, err)
		return
	}

	if req.Limit == 0 {
		req.Limit = DefaultLimit
	}

	movements, err := h.service.ListRecent(ctx, userID, req.Limit)
	if err != nil {
		gctx.JSON(http.StatusInternalServerError, web.Error(errorspkg.ErrInternal))
		return
	}

	gctx.JSON(http.StatusOK, web.Response{Data: MovementsData{Movements: movements}})
}
