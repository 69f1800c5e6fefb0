// Package userdelivery manages delivery layer of users.
package userdelivery

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
	"github.com/go-petr/unipay/pkg/web"
)

//go:generate mockgen -source http.go -destination http_mock.go -package userdelivery

// Service provides service layer interface needed by user delivery layer.
type Service interface {
	Create(ctx context.Context, email, password, fullname string) (domain.UserWihtoutPassword, error)
	CheckPassword(ctx context.Context, email, password string) (domain.UserWihtoutPassword, error)
	Get(ctx context.Context, id uuid.UUID) (domain.UserWihtoutPassword, error)
}

// SessionMaker facilitates session creation.
type SessionMaker interface {
	Create(ctx context.Context, arg domain.CreateSessionParams) (string, time.Time, domain.Session, error)
}

// Handler facilitates user delivery layer logic.
type Handler struct {
	service      Service
	sessionMaker SessionMaker
}

// NewHandler returns user handler.
func NewHandler(us Service, sm SessionMaker) *Handler {
	return &Handler{
		service:      us,
		sessionMaker: sm,
	}
}

// UserData is the data part of every user response.
type UserData struct {
	User domain.UserWihtoutPassword `json:"user"`
}

func bindError(gctx *gin.Context, err error) {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		gctx.JSON(http.StatusBadRequest, web.Response{Error: web.GetErrorMsg(ve)})
		return
	}

	gctx.JSON(http.StatusBadRequest, web.Error(err))
}

// respondWithSession opens a session for the user and writes it with the user data.
func (h *Handler) respondWithSession(gctx *gin.Context, code int, user domain.UserWihtoutPassword) {
	ctx := gctx.Request.Context()

	arg := domain.CreateSessionParams{
		UserID:    user.ID,
		UserAgent: gctx.Request.UserAgent(),
		ClientIP:  gctx.ClientIP(),
	}

	accessToken, accessTokenExpiresAt, session, err := h.sessionMaker.Create(ctx, arg)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Send()
		gctx.JSON(http.StatusInternalServerError, web.Error(errorspkg.ErrInternal))

		return
	}

	gctx.JSON(code, web.Response{
		AccessToken:           accessToken,
		AccessTokenExpiresAt:  accessTokenExpiresAt,
		RefreshToken:          session.RefreshToken,
		RefreshTokenExpiresAt: session.ExpiresAt,
		Data:                  UserData{User: user},
	})
}

type createRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	FullName string `json:"full_name" binding:"required"`
}

// Create handles http request to register a user and opens a session for it.
func (h *Handler) Create(gctx *gin.Context) {
	ctx := gctx.Request.Context()
	l := zerolog.Ctx(ctx)

	var req createRequest
	if err := gctx.ShouldBindJSON(&req); err != nil {
		l.Info().Err(err).Send()
		bindError(gctx, err)

		return
	}

	createdUser, err := h.service.Create(ctx, req.Email, req.Password, req.FullName)
	if err != nil {
		if err == domain.ErrEmailALreadyExists {
			gctx.JSON(http.StatusConflict, web.Error(err))
			return
		}

		gctx.JSON(http.StatusInternalServerError, web.Error(errorspkg.ErrInternal))

		return
	}

	h.respondWithSession(gctx, http.StatusCreated, createdUser)
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

// Login handles http login request and returns user and session data.
func (h *Handler) Login(gctx *gin.Context) {
	ctx := gctx.Request.Context()
	l := zerolog.Ctx(ctx)

	var req loginRequest
	if err := gctx.ShouldBindJSON(&req); err != nil {
		l.Info().Err(err).Send()
		bindError(gctx, err)

		return
	}

	user, err := h.service.CheckPassword(ctx, req.Email, req.Password)
	if err != nil {
		switch err {
		case domain.ErrUserNotFound:
			gctx.JSON(http.StatusNotFound, web.Error(err))
			return
		case domain.ErrWrongPassword:
			gctx.JSON(http.StatusUnauthorized, web.Error(err))
			return
		}

		gctx.JSON(http.StatusInternalServerError, web.Error(errorspkg.ErrInternal))

		return
	}

	h.respondWithSession(gctx, http.StatusOK, user)
}

// Me handles http request for the user of the access token.
func (h *Handler) Me(gctx *gin.Context) {
	ctx := gctx.Request.Context()

	userID, err := middleware.AuthUserID(gctx)
	if err != nil {
		gctx.JSON(http.StatusUnauthorized, web.Error(err))
		return
	}

	user, err := h.service.Get(ctx, userID)
	if err != nil {
		if err == domain.ErrUserNotFound {
			gctx.JSON(http.StatusNotFound, web.Error(err))
			return
		}

		gctx.JSON(http.StatusInternalServerError, web.Error(errorspkg.ErrInternal))

		return
	}

	gctx.JSON(http.StatusOK, web.Response{Data: UserData{User: user}})
}
