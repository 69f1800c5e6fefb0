// Package sessiondelivery manages delivery layer of sessions.
package sessiondelivery

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/go-petr/unipay/internal/domain"
	"github.com/go-petr/unipay/internal/middleware"
	"github.com/go-petr/unipay/pkg/errorspkg"
	"github.com/go-petr/unipay/pkg/tokenpkg"
	"github.com/go-petr/unipay/pkg/web"
)

// Service provides service layer interface needed by session delivery layer.
//
//go:generate mockgen -source http.go -destination http_mock.go -package sessiondelivery
type Service interface {
	RenewAccessToken(ctx context.Context, refreshToken string) (string, time.Time, error)
	Revoke(ctx context.Context, userID uuid.UUID, refreshToken string) error
}

// Handler facilitates session delivery layer logic.
type Handler struct {
	service Service
}

// NewHandler returns session handler.
func NewHandler(ss Service) *Handler {
	return &Handler{
		service: ss,
	}
}

type refreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

func bind(gctx *gin.Context, req *refreshTokenRequest) bool {
	if err := gctx.ShouldBindJSON(req); err != nil {
		zerolog.Ctx(gctx.Request.Context()).Info().Err(err).Send()

		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			gctx.JSON(http.StatusBadRequest, web.Response{Error: web.GetErrorMsg(ve)})
			return false
		}

		gctx.JSON(http.StatusBadRequest, web.Error(err))

		return false
	}

	return true
}

func errorStatus(err error) int {
	switch err {
	case tokenpkg.ErrInvalidToken,
		tokenpkg.ErrExpiredToken,
		domain.ErrBlockedSession,
		domain.ErrInvalidUser,
		domain.ErrMismatchedRefreshToken,
		domain.ErrExpiredSession:
		return http.StatusUnauthorized
	case domain.ErrSessionNotFound:
		return http.StatusNotFound
	}

	return http.StatusInternalServerError
}

func writeError(gctx *gin.Context, err error) {
	code := errorStatus(err)
	if code == http.StatusInternalServerError {
		err = errorspkg.ErrInternal
	}

	gctx.JSON(code, web.Error(err))
}

// RenewAccessToken handles http request to renew access token.
func (h *Handler) RenewAccessToken(gctx *gin.Context) {
	var req refreshTokenRequest
	if !bind(gctx, &req) {
		return
	}

	accessToken, accessTokenExpiresAt, err := h.service.RenewAccessToken(gctx.Request.Context(), req.RefreshToken)
	if err != nil {
		writeError(gctx, err)
		return
	}

	gctx.JSON(http.StatusOK, web.Response{
		AccessToken:          accessToken,
		AccessTokenExpiresAt: accessTokenExpiresAt,
	})
}

// Revoke handles http sign out request by blocking the refresh session.
func (h *Handler) Revoke(gctx *gin.Context) {
	userID, err := middleware.AuthUserID(gctx)
	if err != nil {
		gctx.JSON(http.StatusUnauthorized, web.Error(err))
		return
	}

	var req refreshTokenRequest
	if !bind(gctx, &req) {
		return
	}

	if err := h.service.Revoke(gctx.Request.Context(), userID, req.RefreshToken); err != nil {
		writeError(gctx, err)
		return
	}

	gctx.JSON(http.StatusOK, web.Response{})
}
