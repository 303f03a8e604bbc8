package application

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"

	"go.uber.org/zap"

	"github.com/eugenenazirov/garage-discordbot/internal/api"
	"github.com/eugenenazirov/garage-discordbot/internal/bot"
	"github.com/eugenenazirov/garage-discordbot/internal/config"
	"github.com/eugenenazirov/garage-discordbot/internal/storage"
)

// ErrNilSession is returned when New is called without a gateway session.
var ErrNilSession = errors.New("discord session is required")

// App encapsulates the bot, its status API and their shared storage.
type App struct {
	storage storage.Storage
	bot     *bot.Bot
	handler *api.Handler
	router  http.Handler
	logger  *zap.Logger
	server  *http.Server

	mu       sync.Mutex
	listener net.Listener
	served   chan struct{}
}

// New initializes the application with all dependencies from the provided configuration.
func New(cfg config.Config, logger *zap.Logger, session bot.Session) (*App, error) {
	if session == nil {
		return nil, ErrNilSession
	}

	store := storage.NewMemoryStorage()
	discordBot := bot.New(session, store, logger.Named("bot"),
		bot.WithReplyLimit(cfg.ReplyRateLimit, cfg.ReplyBurst),
	)
	handler := api.NewHandler(store, discordBot)
	apiRouter := api.NewRouter(handler, logger.Named("api"),
		api.WithLogging(cfg.EnableRequestLogging),
		api.WithRateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst),
	)

	return &App{
		storage: store,
		bot:     discordBot,
		handler: handler,
		router:  apiRouter,
		logger:  logger,
		server:  NewServer(cfg, apiRouter),
	}, nil
}

// NewServer creates and configures an HTTP server from the provided configuration.
func NewServer(cfg config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
}

// Start binds the status API, serves it in the background and then opens the
// Discord gateway. The API keeps serving if the gateway fails to open; the
// caller decides whether to shut down.
func (a *App) Start() error {
	ln, err := net.Listen("tcp", a.server.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", a.server.Addr, err)
	}

	served := make(chan struct{})
	a.mu.Lock()
	a.listener = ln
	a.served = served
	a.mu.Unlock()

	go func() {
		defer close(served)
		a.logger.Info("status API listening", zap.String("addr", ln.Addr().String()))
		if err := a.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("status API stopped", zap.Error(err))
		}
	}()

	if err := a.bot.Start(); err != nil {
		return err
	}
	return nil
}

// Addr returns the bound address of the status API, or the configured one
// before Start.
func (a *App) Addr() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listener != nil {
		return a.listener.Addr().String()
	}
	return a.server.Addr
}

// Shutdown closes the gateway and drains the status API within ctx. When the
// deadline passes the server is closed forcibly.
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error

	if err := a.bot.Close(); err != nil {
		errs = append(errs, err)
	}

	if err := a.server.Shutdown(ctx); err != nil {
		a.logger.Warn("graceful shutdown failed", zap.Error(err))
		errs = append(errs, err)
		if closeErr := a.server.Close(); closeErr != nil {
			errs = append(errs, fmt.Errorf("force close: %w", closeErr))
		}
	}

	a.mu.Lock()
	served := a.served
	a.mu.Unlock()
	if served != nil {
		<-served
	}

	return errors.Join(errs...)
}

// Server returns the HTTP server instance.
func (a *App) Server() *http.Server {
	return a.server
}

// Storage returns the status store shared by the bot and the API.
func (a *App) Storage() storage.Storage {
	return a.storage
}

// Bot returns the Discord bot.
func (a *App) Bot() *bot.Bot {
	return a.bot
}
