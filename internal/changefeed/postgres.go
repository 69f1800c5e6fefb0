package changefeed

import (
	"context"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog"
)

// PGChannel is the NOTIFY channel the table triggers write to.
const PGChannel = "unipay_changes"

const pingInterval = 90 * time.Second

// PGListener relays Postgres NOTIFY payloads into a Hub.
type PGListener struct {
	listener *pq.Listener
	hub      *Hub
	logger   zerolog.Logger
}

// NewPGListener connects a listener on channel.
func NewPGListener(source, channel string, hub *Hub, logger zerolog.Logger) (*PGListener, error) {
	report := func(ev pq.ListenerEventType, err error) {
		if err != nil {
			logger.Error().Err(err).Int("event", int(ev)).Msg("postgres listener")
		}
	}

	l := pq.NewListener(source, 10*time.Second, time.Minute, report)

	if err := l.Listen(channel); err != nil {
		l.Close()
		return nil, err
	}

	return &PGListener{
		listener: l,
		hub:      hub,
		logger:   logger,
	}, nil
}

// Run relays notifications until ctx is done.
func (p *PGListener) Run(ctx context.Context) error {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case n, ok := <-p.listener.Notify:
			if !ok {
				return nil
			}

			// nil after a reconnect; events in between are lost.
			if n == nil {
				p.logger.Warn().Msg("postgres listener reconnected")
				continue
			}

			ev, err := DecodeEvent([]byte(n.Extra))
			if err != nil {
				p.logger.Warn().Err(err).Str("payload", n.Extra).Msg("malformed change event")
				continue
			}

			_ = p.hub.Publish(ctx, ev)
		case <-ticker.C:
			go func() {
				if err := p.listener.Ping(); err != nil {
					p.logger.Warn().Err(err).Msg("postgres listener ping")
				}
			}()
		}
	}
}

// Close stops the listener.
func (p *PGListener) Close() error {
	return p.listener.Close()
}
