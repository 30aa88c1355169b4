package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/hexiro/csinspect/internal/domain"
	"github.com/hexiro/csinspect/internal/platform"
	"github.com/hexiro/csinspect/internal/store"
)

// renderCoordinator is the slice of the screenshot coordinator the
// orchestrator needs; it exists so tests can substitute a fake.
type renderCoordinator interface {
	RenderAll(ctx context.Context, items []*domain.Item) []bool
}

// Orchestrator owns the main run loop: it pulls candidate messages from the
// periodic search and the realtime stream, filters them, and processes each
// eligible message in a supervised fire-and-forget worker.
type Orchestrator struct {
	Platform    platform.Client
	Filter      *Filter
	Coordinator renderCoordinator
	Store       store.Store

	// SearchInterval is the cadence of the recent-search loop.
	SearchInterval time.Duration
	// SearchMaxResults caps results per search cycle.
	SearchMaxResults int
	// DryRun suppresses the reply-post step.
	DryRun bool

	// StreamBackoff is the pause before re-subscribing after the stream
	// client returns. The platform client handles transport-level
	// reconnects; this only guards against tight error loops.
	StreamBackoff time.Duration
	// DrainGrace bounds the shutdown wait for in-flight workers.
	DrainGrace time.Duration

	// HTTPClient downloads rendered images before media upload.
	HTTPClient *http.Client

	runID   string
	workers workerGroup
}

// New builds an Orchestrator with defaults applied.
func New(client platform.Client, filter *Filter, coord renderCoordinator, st store.Store) *Orchestrator {
	return &Orchestrator{
		Platform:         client,
		Filter:           filter,
		Coordinator:      coord,
		Store:            st,
		SearchInterval:   600 * time.Second,
		SearchMaxResults: 100,
		StreamBackoff:    30 * time.Second,
		DrainGrace:       30 * time.Second,
		HTTPClient:       &http.Client{Timeout: 60 * time.Second},
		runID:            uuid.NewString(),
	}
}

// Run drives both discovery sources until ctx is cancelled, then drains
// in-flight workers. Individual cycle or message failures never terminate
// the loop; Run returns only on shutdown.
func (o *Orchestrator) Run(ctx context.Context) error {
	log.Info().
		Str("run_id", o.runID).
		Dur("search_interval", o.SearchInterval).
		Bool("dry_run", o.DryRun).
		Msg("orchestrator starting")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return o.searchLoop(gctx) })
	g.Go(func() error { return o.streamLoop(gctx) })

	err := g.Wait()

	o.workers.Drain(o.DrainGrace)
	log.Info().Str("run_id", o.runID).Msg("orchestrator stopped")

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// searchLoop runs one bounded recent-search per interval. A cycle error is
// logged and the next interval still runs.
func (o *Orchestrator) searchLoop(ctx context.Context) error {
	log.Debug().Msg("starting periodic search loop")

	ticker := time.NewTicker(o.SearchInterval)
	defer ticker.Stop()

	for {
		o.searchCycle(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (o *Orchestrator) searchCycle(ctx context.Context) {
	raws, err := o.Platform.SearchRecent(ctx, InspectLinkQuery, o.SearchMaxResults)
	if err != nil {
		log.Error().Err(err).Msg("recent search cycle failed")
		return
	}
	log.Debug().Int("results", len(raws)).Msg("search cycle complete")
	for _, raw := range raws {
		o.handleRaw(ctx, raw, "search")
	}
}

// streamLoop keeps the realtime subscription alive for the process
// lifetime, re-invoking the client (which re-asserts the matching rules)
// whenever it returns.
func (o *Orchestrator) streamLoop(ctx context.Context) error {
	log.Debug().Msg("starting realtime stream loop")

	rules := []string{InspectLinkQuery}
	for {
		err := o.Platform.Stream(ctx, rules, func(raw platform.RawMessage) {
			o.handleRaw(ctx, raw, "stream")
		})
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn().Err(err).Dur("backoff", o.StreamBackoff).Msg("stream ended, resubscribing")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(o.StreamBackoff):
		}
	}
}

// handleRaw filters one raw message and, when eligible, spawns its
// processing worker. Discovery never blocks on processing.
func (o *Orchestrator) handleRaw(ctx context.Context, raw platform.RawMessage, source string) {
	messagesDiscovered.WithLabelValues(source).Inc()

	msg, err := o.Filter.Parse(ctx, raw)
	if err != nil {
		if IsSkip(err) {
			messagesSkipped.WithLabelValues(skipReason(err)).Inc()
			log.Debug().Str("message_id", raw.ID).Str("source", source).Err(err).Msg("skipping message")
		} else {
			log.Error().Str("message_id", raw.ID).Err(err).Msg("filtering message failed")
		}
		return
	}

	o.workers.Go(msg.ID(), func() {
		o.processMessage(ctx, msg)
	})
}

// processMessage renders a message's items, posts the reply when at least
// one render succeeded, and persists the outcome. All failures are
// contained here; nothing escapes the worker boundary.
func (o *Orchestrator) processMessage(ctx context.Context, msg *domain.Message) {
	tr := otel.Tracer("bot/Orchestrator")
	ctx, span := tr.Start(ctx, "processMessage",
		trace.WithAttributes(
			attribute.String("message.id", msg.ID()),
			attribute.Int("message.items", len(msg.Items)),
		),
	)
	defer span.End()

	log.Info().Str("message_id", msg.ID()).Str("url", msg.URL()).Msg("processing message")

	results := o.Coordinator.RenderAll(ctx, msg.Items)

	anySuccess := false
	for _, ok := range results {
		if ok {
			anySuccess = true
			break
		}
	}
	if !anySuccess {
		log.Warn().Str("message_id", msg.ID()).Msg("all renders failed, no reply to post")
		messagesProcessed.WithLabelValues("render_failed").Inc()
		o.persistFailure(ctx, msg)
		return
	}

	if o.DryRun {
		log.Info().
			Str("message_id", msg.ID()).
			Int("images", len(msg.FinishedItems())).
			Msg("dry run: suppressing reply post")
		messagesProcessed.WithLabelValues("dry_run").Inc()
		o.persistSuccess(ctx, msg)
		return
	}

	if err := o.reply(ctx, msg); err != nil {
		log.Error().Err(err).Str("message_id", msg.ID()).Msg("posting reply failed")
		repliesPosted.WithLabelValues("failure").Inc()
		messagesProcessed.WithLabelValues("reply_failed").Inc()
		o.persistFailure(ctx, msg)
		return
	}

	log.Info().Str("message_id", msg.ID()).Str("url", msg.URL()).Msg("replied to message")
	repliesPosted.WithLabelValues("success").Inc()
	messagesProcessed.WithLabelValues("replied").Inc()
	o.persistSuccess(ctx, msg)
}

// reply uploads each rendered image and posts one reply carrying them.
func (o *Orchestrator) reply(ctx context.Context, msg *domain.Message) error {
	items := msg.FinishedItems()
	mediaIDs := make([]string, 0, len(items))

	for _, item := range items {
		data, err := o.downloadImage(ctx, item.ImageURL)
		if err != nil {
			return fmt.Errorf("downloading %s: %w", item.ImageURL, err)
		}
		id, err := o.Platform.UploadMedia(ctx, data)
		if err != nil {
			return fmt.Errorf("uploading media for %s: %w", item.InspectLink, err)
		}
		mediaIDs = append(mediaIDs, id)
	}

	return o.Platform.PostReply(ctx, msg.ID(), mediaIDs)
}

func (o *Orchestrator) downloadImage(ctx context.Context, imageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := o.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (o *Orchestrator) persistSuccess(ctx context.Context, msg *domain.Message) {
	st := domain.ResponseState{Successful: true, Time: time.Now()}
	if err := o.Store.Put(ctx, msg.ID(), st); err != nil {
		log.Error().Err(err).Str("message_id", msg.ID()).Msg("persisting success state failed")
	}
}

func (o *Orchestrator) persistFailure(ctx context.Context, msg *domain.Message) {
	st := domain.ResponseState{
		Successful:     false,
		FailedAttempts: msg.FailedAttempts + 1,
		Time:           time.Now(),
	}
	if err := o.Store.Put(ctx, msg.ID(), st); err != nil {
		log.Error().Err(err).Str("message_id", msg.ID()).Msg("persisting failure state failed")
	}
}
