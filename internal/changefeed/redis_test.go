package changefeed

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/go-petr/unipay/internal/domain"
)

func TestRedisBridge(t *testing.T) {
	mr := miniredis.RunT(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client, err := NewRedisClient(ctx, "redis://"+mr.Addr())
	require.NoError(t, err)
	defer client.Close()

	hub := NewHub(4, zerolog.Nop())
	bridge := NewRedisBridge(client, "unipay_changes", hub, zerolog.Nop())

	done := make(chan error, 1)
	go func() { done <- bridge.Run(ctx) }()

	select {
	case <-bridge.Ready():
	case err := <-done:
		t.Fatalf("bridge.Run returned early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("bridge did not subscribe in time")
	}

	owner := uuid.New()
	sub := hub.Subscribe(Filter{UserID: owner, Tables: []string{domain.TableTransactions}})

	want := event(domain.TableTransactions, owner)
	require.NoError(t, bridge.Publish(ctx, want))

	select {
	case got := <-sub.Events():
		require.Equal(t, want.RecordID, got.RecordID)
		require.True(t, want.At.Equal(got.At))
	case <-time.After(5 * time.Second):
		t.Fatal("event was not relayed")
	}

	// Malformed payloads are skipped.
	require.NoError(t, client.Publish(ctx, "unipay_changes", "not json").Err())

	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("bridge did not stop")
	}
}

func TestNewRedisClientErrors(t *testing.T) {
	_, err := NewRedisClient(context.Background(), "")
	require.Error(t, err)

	_, err = NewRedisClient(context.Background(), "://bad")
	require.Error(t, err)
}
