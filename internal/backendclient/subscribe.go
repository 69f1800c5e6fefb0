package backendclient

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/go-petr/unipay/internal/domain"
)

// Subscribe opens a change feed channel on table for the caller's rows.
//
// onChange runs on the channel's own goroutine, once per event, in the order
// events arrive. The returned function closes the channel and waits until
// onChange is no longer running. A dropped channel is not reopened.
func (c *Client) Subscribe(ctx context.Context, accessToken, table string, onChange func(domain.ChangeEvent)) (func(), error) {
	u := *c.baseURL
	u.Path += "/realtime"
	u.RawQuery = url.Values{"table": {table}}.Encode()

	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+accessToken)

	conn, resp, err := c.dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()

			var env envelope
			_ = decodeBody(resp, &env)

			msg := env.Error
			if msg == "" {
				msg = http.StatusText(resp.StatusCode)
			}

			return nil, &Error{StatusCode: resp.StatusCode, Message: msg}
		}

		return nil, err
	}

	l := c.logger.With().Str("table", table).Logger()
	done := make(chan struct{})

	go func() {
		defer close(done)

		for {
			var ev domain.ChangeEvent
			if err := conn.ReadJSON(&ev); err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure) && !errors.Is(err, net.ErrClosed) {
					l.Warn().Err(err).Msg("change feed closed")
				}

				return
			}

			onChange(ev)
		}
	}()

	var once sync.Once

	unsubscribe := func() {
		once.Do(func() {
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			_ = conn.Close()
			<-done
		})
	}

	return unsubscribe, nil
}

func decodeBody(resp *http.Response, v any) error {
	return json.NewDecoder(resp.Body).Decode(v)
}
