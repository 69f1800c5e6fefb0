// Package backendclient talks to the unipay backend over HTTP and websocket.
package backendclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/go-petr/unipay/internal/domain"
)

// Error is an error response of the backend. Its message is the one the
// backend sent, unchanged.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return e.Message
}

// envelope mirrors the common response body of every endpoint.
type envelope struct {
	AccessToken           string          `json:"access_token"`
	AccessTokenExpiresAt  time.Time       `json:"access_token_expires_at"`
	RefreshToken          string          `json:"refresh_token"`
	RefreshTokenExpiresAt time.Time       `json:"refresh_token_expires_at"`
	Data                  json.RawMessage `json:"data"`
	Error                 string          `json:"error"`
}

// Client is a backend client. It is safe for concurrent use.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	dialer  *websocket.Dialer
	logger  zerolog.Logger
}

// New returns a client for the backend at baseURL.
func New(baseURL string, timeout time.Duration, logger zerolog.Logger) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse backend url: %w", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("backend url scheme must be http or https, got %q", u.Scheme)
	}

	return &Client{
		baseURL: u,
		http:    &http.Client{Timeout: timeout},
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: timeout,
		},
		logger: logger,
	}, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, token string, body any) (envelope, error) {
	var env envelope

	u := *c.baseURL
	u.Path += path
	u.RawQuery = query.Encode()

	var reqBody bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&reqBody).Encode(body); err != nil {
			return env, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), &reqBody)
	if err != nil {
		return env, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return env, err
	}
	defer resp.Body.Close()

	decodeErr := json.NewDecoder(resp.Body).Decode(&env)

	if resp.StatusCode >= http.StatusBadRequest {
		msg := env.Error
		if decodeErr != nil || msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}

		c.logger.Debug().Str("method", method).Str("path", path).Int("status", resp.StatusCode).Msg(msg)

		return env, &Error{StatusCode: resp.StatusCode, Message: msg}
	}

	if decodeErr != nil {
		return env, fmt.Errorf("decode %s %s response: %w", method, path, decodeErr)
	}

	return env, nil
}

func decodeData(env envelope, v any) error {
	if len(env.Data) == 0 {
		return fmt.Errorf("response has no data")
	}

	return json.Unmarshal(env.Data, v)
}

type userData struct {
	User domain.UserWihtoutPassword `json:"user"`
}

func identityFrom(env envelope) (domain.Identity, error) {
	var data userData
	if err := decodeData(env, &data); err != nil {
		return domain.Identity{}, err
	}

	return domain.Identity{
		User:                  data.User,
		AccessToken:           env.AccessToken,
		AccessTokenExpiresAt:  env.AccessTokenExpiresAt,
		RefreshToken:          env.RefreshToken,
		RefreshTokenExpiresAt: env.RefreshTokenExpiresAt,
	}, nil
}

// SignUp registers a user and returns its first session.
func (c *Client) SignUp(ctx context.Context, email, password, fullName string) (domain.Identity, error) {
	env, err := c.do(ctx, http.MethodPost, "/users", nil, "", map[string]string{
		"email":     email,
		"password":  password,
		"full_name": fullName,
	})
	if err != nil {
		return domain.Identity{}, err
	}

	return identityFrom(env)
}

// SignIn authenticates with email and password.
func (c *Client) SignIn(ctx context.Context, email, password string) (domain.Identity, error) {
	env, err := c.do(ctx, http.MethodPost, "/users/login", nil, "", map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return domain.Identity{}, err
	}

	return identityFrom(env)
}

// Renew exchanges a refresh token for a new access token.
func (c *Client) Renew(ctx context.Context, refreshToken string) (string, time.Time, error) {
	env, err := c.do(ctx, http.MethodPost, "/sessions", nil, "", map[string]string{
		"refresh_token": refreshToken,
	})
	if err != nil {
		return "", time.Time{}, err
	}

	return env.AccessToken, env.AccessTokenExpiresAt, nil
}

// SignOut blocks the refresh session of the identity.
func (c *Client) SignOut(ctx context.Context, accessToken, refreshToken string) error {
	_, err := c.do(ctx, http.MethodDelete, "/sessions", nil, accessToken, map[string]string{
		"refresh_token": refreshToken,
	})

	return err
}

// Me returns the user the access token belongs to.
func (c *Client) Me(ctx context.Context, accessToken string) (domain.UserWihtoutPassword, error) {
	env, err := c.do(ctx, http.MethodGet, "/users/me", nil, accessToken, nil)
	if err != nil {
		return domain.UserWihtoutPassword{}, err
	}

	var data userData
	err = decodeData(env, &data)

	return data.User, err
}

// ListBalances returns the balances of the caller ordered by currency code.
func (c *Client) ListBalances(ctx context.Context, accessToken string) ([]domain.Balance, error) {
	env, err := c.do(ctx, http.MethodGet, "/wallets", nil, accessToken, nil)
	if err != nil {
		return nil, err
	}

	var data struct {
		Balances []domain.Balance `json:"balances"`
	}
	err = decodeData(env, &data)

	return data.Balances, err
}

// OpenBalance opens a zero balance in currency.
func (c *Client) OpenBalance(ctx context.Context, accessToken, currency string) (domain.Balance, error) {
	env, err := c.do(ctx, http.MethodPost, "/wallets", nil, accessToken, map[string]string{
		"currency": currency,
	})
	if err != nil {
		return domain.Balance{}, err
	}

	var data struct {
		Balance domain.Balance `json:"balance"`
	}
	err = decodeData(env, &data)

	return data.Balance, err
}

// ListMovements returns up to limit movements of the caller, newest first.
func (c *Client) ListMovements(ctx context.Context, accessToken string, limit int) ([]domain.Movement, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}

	env, err := c.do(ctx, http.MethodGet, "/transactions", query, accessToken, nil)
	if err != nil {
		return nil, err
	}

	var data struct {
		Movements []domain.Movement `json:"movements"`
	}
	err = decodeData(env, &data)

	return data.Movements, err
}

// CreateMovement records a pending movement for the caller.
func (c *Client) CreateMovement(ctx context.Context, accessToken string, arg domain.CreateMovementParams) (domain.Movement, error) {
	env, err := c.do(ctx, http.MethodPost, "/transactions", nil, accessToken, arg)
	if err != nil {
		return domain.Movement{}, err
	}

	var data struct {
		Movement domain.Movement `json:"movement"`
	}
	err = decodeData(env, &data)

	return data.Movement, err
}
