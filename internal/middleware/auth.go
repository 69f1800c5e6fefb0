// Package middleware provides gin middlewares shared by all handlers.
package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/go-petr/unipay/pkg/tokenpkg"
	"github.com/go-petr/unipay/pkg/web"
)

// Authorization header constants.
const (
	AuthHeaderKey  = "authorization"
	AuthTypeBearer = "bearer"
	AuthPayloadKey = "authorization_payload"
)

var (
	// ErrAuthHeaderNotFound indicates a request without authorization header.
	ErrAuthHeaderNotFound = errors.New("authorization header is not provided")
	// ErrBadAuthHeaderFormat indicates an authorization header that is not "<type> <token>".
	ErrBadAuthHeaderFormat = errors.New("invalid authorization header format")
	// ErrUnsupportedAuthType indicates an authorization type other than bearer.
	ErrUnsupportedAuthType = errors.New("unsupported authorization type")
)

// AddAuthorization creates a token for the user and sets it as authorization header of r.
func AddAuthorization(r *http.Request, tm tokenpkg.Maker, authType, userID string, d time.Duration) error {
	token, _, err := tm.CreateToken(userID, d)
	if err != nil {
		return err
	}

	r.Header.Set(AuthHeaderKey, fmt.Sprintf("%s %s", authType, token))

	return nil
}

// AuthMiddleware aborts requests without a valid bearer access token.
//
// The verified token payload is stored in the gin context under AuthPayloadKey.
func AuthMiddleware(tm tokenpkg.Maker) gin.HandlerFunc {
	return func(gctx *gin.Context) {
		authHeader := gctx.GetHeader(AuthHeaderKey)
		if len(authHeader) == 0 {
			gctx.AbortWithStatusJSON(http.StatusUnauthorized, web.Error(ErrAuthHeaderNotFound))
			return
		}

		fields := strings.Fields(authHeader)
		if len(fields) < 2 {
			gctx.AbortWithStatusJSON(http.StatusUnauthorized, web.Error(ErrBadAuthHeaderFormat))
			return
		}

		if strings.ToLower(fields[0]) != AuthTypeBearer {
			gctx.AbortWithStatusJSON(http.StatusUnauthorized, web.Error(ErrUnsupportedAuthType))
			return
		}

		payload, err := tm.VerifyToken(fields[1])
		if err != nil {
			gctx.AbortWithStatusJSON(http.StatusUnauthorized, web.Error(err))
			return
		}

		gctx.Set(AuthPayloadKey, payload)
		gctx.Next()
	}
}

// AuthUserID returns the id of the user authorized by AuthMiddleware.
func AuthUserID(gctx *gin.Context) (uuid.UUID, error) {
	payload, ok := gctx.MustGet(AuthPayloadKey).(*tokenpkg.Payload)
	if !ok {
		return uuid.Nil, tokenpkg.ErrInvalidToken
	}

	id, err := uuid.Parse(payload.UserID)
	if err != nil {
		return uuid.Nil, tokenpkg.ErrInvalidToken
	}

	return id, nil
}
