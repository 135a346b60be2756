package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	server "biz_dashboard/internal/adapters/http_server"
	"biz_dashboard/internal/adapters/memory"
	"biz_dashboard/internal/adapters/observability"
	redisad "biz_dashboard/internal/adapters/redis"
	"biz_dashboard/internal/app"
	"biz_dashboard/internal/domain"
	"biz_dashboard/internal/shared"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// set global logger first (console in dev, JSON otherwise) so config warnings use it;
	// background work logs through it too
	log.Logger = observability.NewLogger(shared.AppEnv())
	zerolog.DefaultContextLogger = &log.Logger

	cfg := shared.Load()

	reg := observability.InitRegistry()
	metricsSrv := observability.Serve(cfg.MetricsAddr, reg)

	// session store
	var store domain.SessionStore
	if cfg.RedisAddr != "" {
		rs := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
		if err := rs.Ping(ctx); err != nil {
			log.Fatal().Err(err).Str("addr", cfg.RedisAddr).Msg("redis ping failed")
		}
		defer rs.Close()
		log.Info().Str("addr", cfg.RedisAddr).Msg("redis session store ok")
		store = rs
	} else {
		ms := memory.New()
		go ms.RunSweeper(ctx, time.Minute)
		store = ms
	}

	// deps
	gen := app.NewGenerator(app.WithDelays(cfg.GenerateDelay, cfg.RegenerateDelay))
	coord := app.NewCoordinator(store, gen, cfg.SessionTTL, cfg.MaxInflight)

	// http
	srv := server.New()
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(&server.Handlers{C: coord, ActionRPS: cfg.ActionRPS})

	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Mux(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).
			Dur("generate_delay", cfg.GenerateDelay).
			Dur("regenerate_delay", cfg.RegenerateDelay).
			Msg("dashboard listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown failed")
	}
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	// pending generations resolve on their own timers; let them land before exit
	coord.Wait()
	log.Info().Msg("bye")
}
