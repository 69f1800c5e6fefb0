// Package httpserver manages server creation and api routing.
package httpserver

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/go-petr/unipay/internal/balancedelivery"
	"github.com/go-petr/unipay/internal/balancerepo"
	"github.com/go-petr/unipay/internal/balanceservice"
	"github.com/go-petr/unipay/internal/changefeed"
	"github.com/go-petr/unipay/internal/domain"
	"github.com/go-petr/unipay/internal/middleware"
	"github.com/go-petr/unipay/internal/movementdelivery"
	"github.com/go-petr/unipay/internal/movementrepo"
	"github.com/go-petr/unipay/internal/movementservice"
	"github.com/go-petr/unipay/internal/realtimedelivery"
	"github.com/go-petr/unipay/internal/sessiondelivery"
	"github.com/go-petr/unipay/internal/sessionrepo"
	"github.com/go-petr/unipay/internal/sessionservice"
	"github.com/go-petr/unipay/internal/userdelivery"
	"github.com/go-petr/unipay/internal/userrepo"
	"github.com/go-petr/unipay/internal/userservice"
	"github.com/go-petr/unipay/pkg/configpkg"
	"github.com/go-petr/unipay/pkg/currencypkg"
	"github.com/go-petr/unipay/pkg/tokenpkg"
)

// ErrUnknownFeedDriver indicates an unsupported CHANGEFEED_DRIVER value.
var ErrUnknownFeedDriver = errors.New("unknown change feed driver")

type relay interface {
	Run(ctx context.Context) error
}

// Server holds db connection, handlers router and configuration.
type Server struct {
	DB     *sql.DB
	Engine *gin.Engine
	Config configpkg.Config
	Hub    *changefeed.Hub

	relays  []relay
	closers []func() error
}

// ServeHTTP implements the http.Handler interface for the Server type.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Engine.ServeHTTP(w, r)
}

// RunFeed relays external change notifications into the hub until ctx is
// done or a relay fails. It returns at once for the memory driver.
func (s *Server) RunFeed(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	for _, r := range s.relays {
		r := r
		g.Go(func() error { return r.Run(ctx) })
	}

	return g.Wait()
}

// Close closes the hub and the change feed connections.
func (s *Server) Close() error {
	s.Hub.Close()

	var errs []error

	for _, c := range s.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// publisher is what the services announce row changes with.
type publisher interface {
	Publish(ctx context.Context, ev domain.ChangeEvent) error
}

func (s *Server) setupFeed(ctx context.Context, logger zerolog.Logger) (publisher, error) {
	switch s.Config.ChangeFeedDriver {
	case configpkg.FeedMemory, "":
		return s.Hub, nil
	case configpkg.FeedRedis:
		client, err := changefeed.NewRedisClient(ctx, s.Config.RedisURL)
		if err != nil {
			return nil, err
		}

		bridge := changefeed.NewRedisBridge(client, s.Config.RedisChannel, s.Hub, logger)
		s.relays = append(s.relays, bridge)
		s.closers = append(s.closers, client.Close)

		return bridge, nil
	case configpkg.FeedPostgres:
		listener, err := changefeed.NewPGListener(s.Config.DBSource, changefeed.PGChannel, s.Hub, logger)
		if err != nil {
			return nil, err
		}

		s.relays = append(s.relays, listener)
		s.closers = append(s.closers, listener.Close)

		// The table triggers notify, services must not publish twice.
		return changefeed.Discard{}, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownFeedDriver, s.Config.ChangeFeedDriver)
}

// New creates Server type with instantiated domains and routes.
func New(ctx context.Context, conn *sql.DB, logger zerolog.Logger, config configpkg.Config) (*Server, error) {
	server := &Server{
		DB:     conn,
		Config: config,
		Hub:    changefeed.NewHub(changefeed.DefaultBuffer, logger),
	}

	pub, err := server.setupFeed(ctx, logger)
	if err != nil {
		return nil, fmt.Errorf("cannot set up change feed: %w", err)
	}

	// Connections opened by setupFeed are released on every later failure.
	fail := func(err error) (*Server, error) {
		if closeErr := server.Close(); closeErr != nil {
			logger.Warn().Err(closeErr).Msg("close change feed")
		}

		return nil, err
	}

	userRepo := userrepo.NewRepoPGS(conn)
	sessionRepo := sessionrepo.NewRepoPGS(conn)
	balanceRepo := balancerepo.NewRepoPGS(conn)
	movementRepo := movementrepo.NewRepoPGS(conn)

	tokenMaker, err := tokenpkg.NewPasetoMaker(config.TokenSymmetricKey)
	if err != nil {
		return fail(fmt.Errorf("cannot create token maker: %w", err))
	}

	userService := userservice.New(userRepo)
	balanceService := balanceservice.New(balanceRepo, pub)
	movementService := movementservice.New(movementRepo, pub)

	sessionService, err := sessionservice.New(sessionRepo, config, tokenMaker)
	if err != nil {
		return fail(fmt.Errorf("cannot initialize session service: %w", err))
	}

	userHandler := userdelivery.NewHandler(userService, sessionService)
	sessionHandler := sessiondelivery.NewHandler(sessionService)
	balanceHandler := balancedelivery.NewHandler(balanceService)
	movementHandler := movementdelivery.NewHandler(movementService)
	realtimeHandler := realtimedelivery.NewHandler(server.Hub)

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	engine.Use(middleware.RequestLogger(logger))
	engine.Use(gin.Recovery())

	engine.POST("/users", userHandler.Create)
	engine.POST("/users/login", userHandler.Login)
	engine.POST("/sessions", sessionHandler.RenewAccessToken)

	authRoutes := engine.Group("/").Use(middleware.AuthMiddleware(sessionService.TokenMaker))

	authRoutes.GET("/users/me", userHandler.Me)
	authRoutes.DELETE("/sessions", sessionHandler.Revoke)

	authRoutes.GET("/wallets", balanceHandler.List)
	authRoutes.POST("/wallets", balanceHandler.Create)

	authRoutes.GET("/transactions", movementHandler.List)
	authRoutes.POST("/transactions", movementHandler.Create)

	authRoutes.GET("/realtime", realtimeHandler.Stream)

	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		err := v.RegisterValidation("currency", currencypkg.ValidCurrency)
		if err != nil {
			return fail(fmt.Errorf("cannot register currency validator: %w", err))
		}
	}

	server.Engine = engine

	return server, nil
}
