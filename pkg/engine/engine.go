// pkg/engine/engine.go
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/rflihmmm/pln-monitor-sub001/pkg/aggregate"
	"github.com/rflihmmm/pln-monitor-sub001/pkg/authz"
	"github.com/rflihmmm/pln-monitor-sub001/pkg/cache"
	"github.com/rflihmmm/pln-monitor-sub001/pkg/compute"
	"github.com/rflihmmm/pln-monitor-sub001/pkg/correlate"
	"github.com/rflihmmm/pln-monitor-sub001/pkg/instrument"
	"github.com/rflihmmm/pln-monitor-sub001/pkg/persistence"
)

// ErrUnavailable is returned when a store failed while computing a view.
// The underlying error is logged, never returned to callers of the HTTP API.
var ErrUnavailable = errors.New("telemetry data is temporarily unavailable")

// Options configure an Engine.
type Options struct {
	ChunkSize   int
	Concurrency int

	SystemTTL time.Duration // unrestricted views
	ScopedTTL time.Duration // organization-scoped views

	Corrections aggregate.Corrections
}

// Engine computes the authorized views. Every view goes through the result cache.
type Engine struct {
	topology   persistence.TopologyStore
	resolver   *authz.Resolver
	correlator *correlate.Correlator
	cache      *cache.Cache
	opts       Options
	logger     log.FieldLogger
}

func New(topology persistence.TopologyStore, telemetry persistence.TelemetryStore, c *cache.Cache, opts Options, logger log.FieldLogger) *Engine {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = persistence.DefaultChunkSize
	}
	if opts.SystemTTL <= 0 {
		opts.SystemTTL = 30 * time.Second
	}
	if opts.ScopedTTL <= 0 {
		opts.ScopedTTL = 5 * time.Minute
	}
	return &Engine{
		topology: topology,
		resolver: authz.NewResolver(topology, opts.ChunkSize, logger),
		correlator: correlate.New(topology, telemetry, correlate.Options{
			ChunkSize:   opts.ChunkSize,
			Concurrency: opts.Concurrency,
		}, logger),
		cache:  c,
		opts:   opts,
		logger: logger,
	}
}

func (e *Engine) ttl(scope authz.Scope) time.Duration {
	if scope.Unrestricted() {
		return e.opts.SystemTTL
	}
	return e.opts.ScopedTTL
}

// snapshot is one correlated and computed identifier set.
type snapshot struct {
	ids     []int64
	visible map[int64]struct{} // the whole scope, before narrowing
	view    *correlate.View
	metrics map[int64]compute.Metrics
}

// load resolves the scope, narrows it to only (nil keeps everything) and runs the correlator.
func (e *Engine) load(ctx context.Context, scope authz.Scope, only []int64) (*snapshot, error) {
	all, err := e.resolver.ForScope(ctx, scope)
	if err != nil {
		return nil, err
	}
	view, err := e.correlator.Correlate(ctx, authz.Intersect(all, only))
	if err != nil {
		return nil, err
	}
	snap := &snapshot{
		ids:     view.IDs,
		visible: make(map[int64]struct{}, len(all)),
		view:    view,
		metrics: make(map[int64]compute.Metrics, len(view.IDs)),
	}
	for _, id := range all {
		snap.visible[id] = struct{}{}
	}
	for _, m := range compute.All(view) {
		snap.metrics[m.ID] = m
	}
	return snap, nil
}

// fail maps a pipeline error onto what callers see. Not-found and caller
// cancellation pass through; everything else is a store failure.
func (e *Engine) fail(view string, scope authz.Scope, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, persistence.ErrNotFound) || errors.Is(err, context.Canceled) {
		return err
	}
	instrument.PipelineFailures.WithLabelValues(view).Inc()
	e.logger.WithError(err).WithFields(log.Fields{
		"view":  view,
		"scope": scope.Key(),
	}).Error("view computation failed")
	return fmt.Errorf("%w: %s", ErrUnavailable, view)
}
