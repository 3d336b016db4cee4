package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"

	"github.com/iliyamo/agent-incentives/internal/config"
	"github.com/iliyamo/agent-incentives/internal/database"
	"github.com/iliyamo/agent-incentives/internal/handler"
	"github.com/iliyamo/agent-incentives/internal/middleware"
	"github.com/iliyamo/agent-incentives/internal/repository"
	"github.com/iliyamo/agent-incentives/internal/router"
	"github.com/iliyamo/agent-incentives/internal/service"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg := config.Load()
	log := config.NewLogger(cfg)

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return err
	}
	defer db.Close()

	if cfg.MigrateOnStart {
		version, err := database.Migrate(db, cfg.DBName)
		if err != nil {
			return err
		}
		log.Info().Uint("version", version).Msg("schema migrated")
	}

	rdb := config.NewRedisClient() // nil when Redis is down; middleware degrades to pass-through
	if rdb != nil {
		defer rdb.Close()
	}

	var publisher *service.Publisher
	if ev := config.LoadEventsConfig(); ev.Enabled {
		publisher = service.NewPublisher(ev.URL, log)
	}

	agencies := repository.NewAgencyRepo(db)
	matcher := service.NewMatcher(agencies, log)
	coordinator := service.NewCoordinator(matcher, repository.NewRegistrationRepo(db), publisher, log)
	cache := middleware.NewResponseCache(config.LoadCacheConfig(), rdb, log)

	admin := &handler.AdminHandler{
		Bookings: repository.NewBookingRepo(db),
		Agents:   repository.NewAgentRepo(db),
		Agencies: agencies,
		Hotels:   repository.NewHotelRepo(db),
		Seeder:   repository.NewSeedRepo(db),
		Events:   publisher,
		Cache:    cache,
		Log:      log,
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(log))
	e.Use(middleware.Metrics)

	router.RegisterRoutes(e, db)
	router.RegisterRegistration(e, handler.NewRegistrationHandler(matcher, coordinator),
		middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, log))
	router.RegisterAdmin(e, admin, cache.Middleware())

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	addr := ":" + cfg.Port
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
