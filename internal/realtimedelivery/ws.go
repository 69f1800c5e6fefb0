// Package realtimedelivery streams row change events to websocket clients.
package realtimedelivery

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/go-petr/unipay/internal/changefeed"
	"github.com/go-petr/unipay/internal/domain"
	"github.com/go-petr/unipay/internal/middleware"
	"github.com/go-petr/unipay/pkg/web"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	readLimit  = 512
)

// Feed provides the change feed needed by realtime delivery layer.
type Feed interface {
	Subscribe(f changefeed.Filter) *changefeed.Subscription
}

// Handler facilitates realtime delivery layer logic.
type Handler struct {
	feed     Feed
	upgrader websocket.Upgrader
}

// NewHandler returns realtime handler.
func NewHandler(feed Feed) *Handler {
	return &Handler{
		feed: feed,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

func watchedTables(requested []string) ([]string, bool) {
	if len(requested) == 0 {
		return []string{domain.TableWallets, domain.TableTransactions}, true
	}

	for _, t := range requested {
		if t != domain.TableWallets && t != domain.TableTransactions {
			return nil, false
		}
	}

	return requested, true
}

// Stream upgrades the request to a websocket and writes every change of the
// caller's rows in the requested tables as a JSON message.
func (h *Handler) Stream(gctx *gin.Context) {
	ctx := gctx.Request.Context()
	l := zerolog.Ctx(ctx)

	userID, err := middleware.AuthUserID(gctx)
	if err != nil {
		gctx.JSON(http.StatusUnauthorized, web.Error(err))
		return
	}

	tables, ok := watchedTables(gctx.QueryArray("table"))
	if !ok {
		gctx.JSON(http.StatusBadRequest, web.Response{Error: "table must be one of [wallets transactions]"})
		return
	}

	// Subscribed before the handshake completes, so no change committed
	// after the client sees the channel open is missed.
	sub := h.feed.Subscribe(changefeed.Filter{UserID: userID, Tables: tables})
	defer sub.Close()

	conn, err := h.upgrader.Upgrade(gctx.Writer, gctx.Request, nil)
	if err != nil {
		// The upgrader has replied with an HTTP error already.
		l.Info().Err(err).Msg("websocket upgrade")
		return
	}
	defer conn.Close()

	l.Debug().Str("user_id", userID.String()).Strs("tables", tables).Msg("realtime subscribed")

	closed := make(chan struct{})

	go func() {
		defer close(closed)

		conn.SetReadLimit(readLimit)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-sub.Events():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))

			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "feed closed"))
				return
			}

			if err := conn.WriteJSON(ev); err != nil {
				l.Info().Err(err).Msg("realtime write")
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-closed:
			return
		case <-ctx.Done():
			return
		}
	}
}
