// Command csinspect runs the inspect-link screenshot bot: it discovers
// tweets containing item inspect links through periodic search and the
// filtered realtime stream, renders each item via the Skinport screenshot
// service, and replies with the images.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/hexiro/csinspect/internal/bot"
	"github.com/hexiro/csinspect/internal/config"
	"github.com/hexiro/csinspect/internal/observability"
	"github.com/hexiro/csinspect/internal/ops"
	"github.com/hexiro/csinspect/internal/platform/twitterapi"
	"github.com/hexiro/csinspect/internal/screenshot"
	"github.com/hexiro/csinspect/internal/store"
	"github.com/hexiro/csinspect/internal/sysutil"
)

// version is stamped at build time via -ldflags.
var version = "dev"

func main() {
	// .env is a dev convenience; absence is not an error.
	_ = godotenv.Load()

	cfg := config.MustLoad()

	log.Logger = sysutil.NewLogger(cfg.LogPretty)
	sysutil.SetLogLevel(cfg.LogLevel)
	log.Info().Str("version", version).Msg("csinspect starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.Setup(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("setting up tracing failed")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownOTel(shutdownCtx)
	}()

	st, err := newStore(cfg.Store)
	if err != nil {
		log.Fatal().Err(err).Msg("opening response-state store failed")
	}
	defer st.Close()

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	if err := st.Ping(pingCtx); err != nil {
		cancel()
		log.Fatal().Err(err).Str("backend", cfg.Store.Backend).Msg("response-state store unreachable")
	}
	cancel()

	twitterClient := twitterapi.New(cfg.Twitter)

	renderer := screenshot.NewSkinportClient(cfg.RenderTimeout)
	coordinator := screenshot.NewCoordinator(renderer, cfg.RenderRPS, cfg.RenderBurst)

	filter := &bot.Filter{
		Store:             st,
		MaxImages:         cfg.MaxImages,
		MaxFailedAttempts: cfg.MaxFailedAttempts,
		AccountFilterID:   cfg.AccountFilterID,
		AccountFilterMode: cfg.AccountFilterMode,
	}

	orchestrator := bot.New(twitterClient, filter, coordinator, st)
	orchestrator.SearchInterval = cfg.SearchInterval
	orchestrator.SearchMaxResults = cfg.SearchMaxResults
	orchestrator.DryRun = cfg.DryRun

	opsServer := ops.New(cfg.OpsAddr, st)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return orchestrator.Run(gctx) })
	g.Go(func() error { return opsServer.Run(gctx) })

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Msg("csinspect exited with error")
	}
	log.Info().Msg("csinspect stopped")
}

// newStore selects the response-state backend from configuration.
func newStore(cfg config.StoreConfig) (store.Store, error) {
	switch cfg.Backend {
	case config.StoreBackendRedis:
		return store.NewRedis(cfg.Addr, cfg.Password, cfg.DB, cfg.TTL), nil
	case config.StoreBackendSQLite:
		return store.OpenSQLite(cfg.Path, cfg.TTL)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}
