// pkg/correlate/correlator.go
package correlate

import (
	"context"
	"fmt"
	"sort"
	"sync"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/rflihmmm/pln-monitor-sub001/pkg/model"
	"github.com/rflihmmm/pln-monitor-sub001/pkg/persistence"
)

// Asset is one telemetry identifier joined with its topology and latest readings.
type Asset struct {
	ID          int64
	StationName string
	Membership  model.Membership
	Primary     *model.PrimaryAsset
	Extended    *model.ExtendedKeypoint

	// Status is the RTU-STAT reading, nil when the station reports none.
	Status *model.Reading
	// Readings holds the latest analog reading per recognised point name.
	Readings map[string]model.Reading

	// FeederIDs are the owned feeders for primary assets and the linked feeders otherwise.
	FeederIDs []int64
}

// Name is the display name: the station name, else the registry name.
func (a *Asset) Name() string {
	switch {
	case a.StationName != "":
		return a.StationName
	case a.Primary != nil:
		return a.Primary.Name
	case a.Extended != nil:
		return a.Extended.Name
	}
	return ""
}

// Coordinate is the stored coordinate text of whichever registry holds the asset.
func (a *Asset) Coordinate() string {
	if a.Primary != nil {
		return a.Primary.Coordinate
	}
	if a.Extended != nil {
		return a.Extended.Coordinate
	}
	return ""
}

// Feeder carries the edges of a feeder and the identifiers its load is attributed to.
type Feeder struct {
	model.Feeder
	// Keypoints is the sorted, distinct union of linked identifiers and the owner's identifier.
	Keypoints []int64
}

// View is the joined result for one identifier set.
type View struct {
	IDs     []int64
	Assets  map[int64]*Asset
	Feeders map[int64]*Feeder
	// Analog holds values for current and power edges, Status for breaker edges, keyed by point id.
	Analog map[int64]model.Reading
	Status map[int64]model.Reading
}

// Options tune batching.
type Options struct {
	ChunkSize   int // keys per query, default persistence.DefaultChunkSize
	Concurrency int // chunk queries in flight per stage, default 4
}

// Correlator batch-fetches telemetry and topology rows and joins them in memory.
type Correlator struct {
	topology  persistence.TopologyStore
	telemetry persistence.TelemetryStore
	opts      Options
	logger    log.FieldLogger
}

func New(topology persistence.TopologyStore, telemetry persistence.TelemetryStore, opts Options, logger log.FieldLogger) *Correlator {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = persistence.DefaultChunkSize
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	return &Correlator{topology: topology, telemetry: telemetry, opts: opts, logger: logger}
}

// fetchChunks schedules one query per chunk on g. sink runs under mu.
func fetchChunks[T any](ctx context.Context, g *errgroup.Group, mu *sync.Mutex, ids []int64, size int,
	what string, fetch func(context.Context, []int64) ([]T, error), sink func([]T)) {
	for _, chunk := range persistence.Chunk(ids, size) {
		chunk := chunk
		g.Go(func() error {
			rows, err := fetch(ctx, chunk)
			if err != nil {
				return fmt.Errorf("%s: %w", what, err)
			}
			mu.Lock()
			sink(rows)
			mu.Unlock()
			return nil
		})
	}
}

func (c *Correlator) newGroup(ctx context.Context) (*errgroup.Group, context.Context) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.Concurrency)
	return g, gctx
}

// Correlate loads everything the metric computations need for ids in three stages:
// identifiers, then feeders, then feeder edge points. A failing chunk fails the call.
func (c *Correlator) Correlate(ctx context.Context, ids []int64) (*View, error) {
	ids = persistence.UniqueIDs(ids)
	view := &View{
		IDs:     ids,
		Assets:  make(map[int64]*Asset, len(ids)),
		Feeders: make(map[int64]*Feeder),
		Analog:  make(map[int64]model.Reading),
		Status:  make(map[int64]model.Reading),
	}
	if len(ids) == 0 {
		return view, nil
	}

	var (
		mu       sync.Mutex
		stations = make(map[int64]string)
		status   = make(map[int64]model.Reading)
		readings = make(map[int64]map[string]model.Reading)
		primary  = make(map[int64]model.PrimaryAsset)
		extended = make(map[int64]model.ExtendedKeypoint)
		links    []model.FeederKeypoint
	)

	// Stage 1: per-identifier rows.
	g, gctx := c.newGroup(ctx)
	size := c.opts.ChunkSize
	fetchChunks(gctx, g, &mu, ids, size, "load stations", c.telemetry.StationsByIDs, func(rows []model.StationPoint) {
		for _, r := range rows {
			stations[r.StationID] = r.Name
		}
	})
	fetchChunks(gctx, g, &mu, ids, size, "load station status",
		func(ctx context.Context, chunk []int64) ([]model.StatusPoint, error) {
			return c.telemetry.StatusByStations(ctx, chunk, []string{model.PointRTUStatus})
		},
		func(rows []model.StatusPoint) {
			for _, r := range rows {
				rd := model.Reading{PointID: r.PointID, Raw: r.Value, UpdatedAt: r.UpdatedAt}
				if cur, ok := status[r.StationID]; !ok || rd.Newer(cur) {
					status[r.StationID] = rd
				}
			}
		})
	fetchChunks(gctx, g, &mu, ids, size, "load analog readings",
		func(ctx context.Context, chunk []int64) ([]model.AnalogPoint, error) {
			return c.telemetry.AnalogByStations(ctx, chunk, model.AnalogNames())
		},
		func(rows []model.AnalogPoint) {
			for _, r := range rows {
				byName := readings[r.StationID]
				if byName == nil {
					byName = make(map[string]model.Reading)
					readings[r.StationID] = byName
				}
				rd := model.Reading{PointID: r.PointID, Raw: r.Value, UpdatedAt: r.UpdatedAt}
				if cur, ok := byName[r.Name]; !ok || rd.Newer(cur) {
					byName[r.Name] = rd
				}
			}
		})
	fetchChunks(gctx, g, &mu, ids, size, "load primary assets", c.topology.PrimaryAssetsByKeypoints, func(rows []model.PrimaryAsset) {
		for _, a := range rows {
			if a.KeypointID == nil {
				continue
			}
			// Several asset records on one identifier: keep the lowest asset id.
			if cur, ok := primary[*a.KeypointID]; ok && cur.ID < a.ID {
				continue
			}
			primary[*a.KeypointID] = a
		}
	})
	fetchChunks(gctx, g, &mu, ids, size, "load keypoints", c.topology.ExtendedKeypoints, func(rows []model.ExtendedKeypoint) {
		for _, k := range rows {
			extended[k.KeypointID] = k
		}
	})
	fetchChunks(gctx, g, &mu, ids, size, "load feeder links", c.topology.FeederLinksByKeypoints, func(rows []model.FeederKeypoint) {
		links = append(links, rows...)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Stage 2: feeders reached through links, and the links of owned feeders.
	owned := make(map[int64]struct{})
	for _, a := range primary {
		for _, f := range a.Feeders {
			view.Feeders[f.ID] = &Feeder{Feeder: f}
			owned[f.ID] = struct{}{}
		}
	}
	linked := make(map[int64]struct{})
	for _, l := range links {
		linked[l.FeederID] = struct{}{}
	}
	var missingFeeders, missingLinks []int64
	for id := range linked {
		if _, ok := view.Feeders[id]; !ok {
			missingFeeders = append(missingFeeders, id)
		}
	}
	for id := range owned {
		if _, ok := linked[id]; !ok {
			missingLinks = append(missingLinks, id)
		}
	}
	var extraFeeders []model.Feeder
	g, gctx = c.newGroup(ctx)
	fetchChunks(gctx, g, &mu, persistence.UniqueIDs(missingFeeders), size, "load feeders", c.topology.FeedersByIDs, func(rows []model.Feeder) {
		extraFeeders = append(extraFeeders, rows...)
	})
	fetchChunks(gctx, g, &mu, persistence.UniqueIDs(missingLinks), size, "load owned feeder links", c.topology.FeederLinksByFeeders, func(rows []model.FeederKeypoint) {
		links = append(links, rows...)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	for _, f := range extraFeeders {
		view.Feeders[f.ID] = &Feeder{Feeder: f}
	}

	fanOut := make(map[int64]map[int64]struct{})
	linkedTo := make(map[int64][]int64) // identifier -> linked feeders
	for _, l := range links {
		if fanOut[l.FeederID] == nil {
			fanOut[l.FeederID] = make(map[int64]struct{})
		}
		fanOut[l.FeederID][l.KeypointID] = struct{}{}
		linkedTo[l.KeypointID] = append(linkedTo[l.KeypointID], l.FeederID)
	}
	for id, f := range view.Feeders {
		kps := fanOut[id]
		if kps == nil {
			kps = make(map[int64]struct{})
		}
		if f.AssetKeypointID != nil {
			kps[*f.AssetKeypointID] = struct{}{}
		}
		for kp := range kps {
			f.Keypoints = append(f.Keypoints, kp)
		}
		sort.Slice(f.Keypoints, func(i, j int) bool { return f.Keypoints[i] < f.Keypoints[j] })
	}

	// Stage 3: values of every edge point.
	var analogIDs, statusIDs []int64
	for _, f := range view.Feeders {
		for _, e := range f.StatusPoints {
			if e.MetricType == model.MetricBreaker {
				statusIDs = append(statusIDs, e.PointID)
			} else {
				analogIDs = append(analogIDs, e.PointID)
			}
		}
	}
	g, gctx = c.newGroup(ctx)
	fetchChunks(gctx, g, &mu, persistence.UniqueIDs(analogIDs), size, "load feeder analog points", c.telemetry.AnalogByPointIDs, func(rows []model.AnalogPoint) {
		for _, r := range rows {
			keepNewer(view.Analog, model.Reading{PointID: r.PointID, Raw: r.Value, UpdatedAt: r.UpdatedAt})
		}
	})
	fetchChunks(gctx, g, &mu, persistence.UniqueIDs(statusIDs), size, "load feeder status points", c.telemetry.StatusByPointIDs, func(rows []model.StatusPoint) {
		for _, r := range rows {
			keepNewer(view.Status, model.Reading{PointID: r.PointID, Raw: r.Value, UpdatedAt: r.UpdatedAt})
		}
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, id := range ids {
		a := &Asset{ID: id, StationName: stations[id], Readings: readings[id]}
		if a.Readings == nil {
			a.Readings = map[string]model.Reading{}
		}
		if st, ok := status[id]; ok {
			st := st
			a.Status = &st
		}
		if p, ok := primary[id]; ok {
			p := p
			a.Primary = &p
			a.Membership = model.MembershipPrimary
			for _, f := range p.Feeders {
				a.FeederIDs = append(a.FeederIDs, f.ID)
			}
		} else {
			a.FeederIDs = persistence.UniqueIDs(linkedTo[id])
		}
		if k, ok := extended[id]; ok {
			k := k
			a.Extended = &k
			if a.Membership == model.MembershipUnknown {
				a.Membership = model.MembershipExtended
			}
		}
		view.Assets[id] = a
	}

	c.logger.WithFields(log.Fields{
		"identifiers": len(ids),
		"feeders":     len(view.Feeders),
		"points":      len(view.Analog) + len(view.Status),
	}).Debug("correlated")
	return view, nil
}

// keepNewer stores rd unless a newer reading for the same point is already held.
func keepNewer(m map[int64]model.Reading, rd model.Reading) {
	if cur, ok := m[rd.PointID]; ok && !rd.Newer(cur) {
		return
	}
	m[rd.PointID] = rd
}
