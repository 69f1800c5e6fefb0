package realtimedelivery

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/go-petr/unipay/internal/changefeed"
	"github.com/go-petr/unipay/internal/domain"
	"github.com/go-petr/unipay/internal/middleware"
	"github.com/go-petr/unipay/pkg/randompkg"
	"github.com/go-petr/unipay/pkg/tokenpkg"
)

func newServer(t *testing.T) (*httptest.Server, *changefeed.Hub, tokenpkg.Maker) {
	t.Helper()

	gin.SetMode(gin.ReleaseMode)

	tokenMaker, err := tokenpkg.NewPasetoMaker(randompkg.String(32))
	require.NoError(t, err)

	hub := changefeed.NewHub(changefeed.DefaultBuffer, zerolog.Nop())

	engine := gin.New()
	engine.GET("/realtime", middleware.AuthMiddleware(tokenMaker), NewHandler(hub).Stream)

	server := httptest.NewServer(engine)
	t.Cleanup(server.Close)
	t.Cleanup(hub.Close)

	return server, hub, tokenMaker
}

func dial(t *testing.T, server *httptest.Server, tm tokenpkg.Maker, userID uuid.UUID, query string) (*websocket.Conn, *http.Response, error) {
	t.Helper()

	req, err := http.NewRequest(http.MethodGet, server.URL, nil)
	require.NoError(t, err)
	require.NoError(t, middleware.AddAuthorization(req, tm, middleware.AuthTypeBearer, userID.String(), time.Minute))

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/realtime" + query

	return websocket.DefaultDialer.Dial(url, req.Header)
}

func waitSubscribers(t *testing.T, hub *changefeed.Hub, n int) {
	t.Helper()

	require.Eventually(t, func() bool { return hub.Len() == n }, 2*time.Second, 10*time.Millisecond)
}

func TestStream(t *testing.T) {
	server, hub, tm := newServer(t)

	userID := uuid.New()

	conn, _, err := dial(t, server, tm, userID, "?table=transactions")
	require.NoError(t, err)
	defer conn.Close()

	waitSubscribers(t, hub, 1)

	ctx := context.Background()

	// Neither of these may reach the client.
	require.NoError(t, hub.Publish(ctx, domain.ChangeEvent{Table: domain.TableTransactions, Type: domain.ChangeInsert, UserID: uuid.New()}))
	require.NoError(t, hub.Publish(ctx, domain.ChangeEvent{Table: domain.TableWallets, Type: domain.ChangeUpdate, UserID: userID}))

	want := domain.ChangeEvent{
		Table:    domain.TableTransactions,
		Type:     domain.ChangeInsert,
		UserID:   userID,
		RecordID: uuid.New(),
		At:       time.Now().UTC().Truncate(time.Millisecond),
	}
	require.NoError(t, hub.Publish(ctx, want))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	var got domain.ChangeEvent
	require.NoError(t, conn.ReadJSON(&got))
	require.Equal(t, want.RecordID, got.RecordID)
	require.Equal(t, want.Table, got.Table)
	require.True(t, want.At.Equal(got.At))

	require.NoError(t, conn.Close())
	waitSubscribers(t, hub, 0)
}

func TestStreamRejects(t *testing.T) {
	server, hub, tm := newServer(t)

	t.Run("UnknownTable", func(t *testing.T) {
		_, resp, err := dial(t, server, tm, uuid.New(), "?table=users")
		require.ErrorIs(t, err, websocket.ErrBadHandshake)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("NoAuthorization", func(t *testing.T) {
		url := "ws" + strings.TrimPrefix(server.URL, "http") + "/realtime"

		_, resp, err := websocket.DefaultDialer.Dial(url, nil)
		require.ErrorIs(t, err, websocket.ErrBadHandshake)
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	require.Zero(t, hub.Len())
}

func TestStreamSubscribedOnHandshake(t *testing.T) {
	server, hub, tm := newServer(t)

	userID := uuid.New()

	conn, _, err := dial(t, server, tm, userID, "")
	require.NoError(t, err)
	defer conn.Close()

	// No waiting: the subscription exists once the handshake is answered.
	require.Equal(t, 1, hub.Len())

	want := domain.ChangeEvent{Table: domain.TableWallets, Type: domain.ChangeUpdate, UserID: userID, RecordID: uuid.New()}
	require.NoError(t, hub.Publish(context.Background(), want))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	var got domain.ChangeEvent
	require.NoError(t, conn.ReadJSON(&got))
	require.Equal(t, want.RecordID, got.RecordID)
}

func TestStreamUpgradeFails(t *testing.T) {
	server, hub, tm := newServer(t)

	// A plain HTTP request passes authorization but cannot be upgraded.
	req, err := http.NewRequest(http.MethodGet, server.URL+"/realtime", nil)
	require.NoError(t, err)
	require.NoError(t, middleware.AddAuthorization(req, tm, middleware.AuthTypeBearer, uuid.New().String(), time.Minute))

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	waitSubscribers(t, hub, 0)
}
