package engine

import (
	"context"
	"fmt"

	"github.com/rflihmmm/pln-monitor-sub001/pkg/aggregate"
	"github.com/rflihmmm/pln-monitor-sub001/pkg/authz"
	"github.com/rflihmmm/pln-monitor-sub001/pkg/cache"
	"github.com/rflihmmm/pln-monitor-sub001/pkg/compute"
	"github.com/rflihmmm/pln-monitor-sub001/pkg/format"
	"github.com/rflihmmm/pln-monitor-sub001/pkg/persistence"
)

// Feeders lists every feeder reached from the scope, in id order.
func (e *Engine) Feeders(ctx context.Context, scope authz.Scope) ([]Feeder, error) {
	key := cache.Key("feeders", scope.Key(), nil)
	items, err := cache.Fetch(ctx, e.cache, key, e.ttl(scope), func(ctx context.Context) ([]Feeder, error) {
		snap, err := e.load(ctx, scope, nil)
		if err != nil {
			return nil, err
		}
		fms := compute.Feeders(snap.view)
		out := make([]Feeder, 0, len(fms))
		for _, fm := range fms {
			out = append(out, feederView(fm, snap.visible))
		}
		return out, nil
	})
	if err != nil {
		return nil, e.fail("feeders", scope, err)
	}
	return items, nil
}

// feederView formats a feeder total. Only keypoints the caller may see are listed.
func feederView(fm compute.FeederMetrics, visible map[int64]struct{}) Feeder {
	f := Feeder{
		ID:         fm.ID,
		Name:       fm.Name,
		AssetID:    fm.AssetID,
		LoadIS:     format.A(fm.Current),
		LoadMW:     format.MW(fm.Power),
		Breaker:    fm.Breaker,
		Keypoints:  make([]int64, 0, len(fm.Keypoints)),
		LastUpdate: format.Timestamp(fm.LastUpdate),
	}
	for _, kp := range fm.Keypoints {
		if _, ok := visible[kp]; ok {
			f.Keypoints = append(f.Keypoints, kp)
		}
	}
	return f
}

// rollup computes the keypoint shares of the scope and the hierarchy above them.
func (e *Engine) rollup(ctx context.Context, scope authz.Scope) (map[int64]aggregate.Totals, *aggregate.Hierarchy, error) {
	snap, err := e.load(ctx, scope, nil)
	if err != nil {
		return nil, nil, err
	}
	shares := aggregate.KeypointShares(compute.Feeders(snap.view), snap.ids)
	h, err := aggregate.LoadHierarchy(ctx, e.topology, snap.ids, e.opts.ChunkSize)
	if err != nil {
		return nil, nil, err
	}
	return shares, h, nil
}

// Regions rolls the scope up to DCC and UP3 totals plus the grand total.
func (e *Engine) Regions(ctx context.Context, scope authz.Scope) (*Regions, error) {
	key := cache.Key("regions", scope.Key(), nil)
	regions, err := cache.Fetch(ctx, e.cache, key, e.ttl(scope), func(ctx context.Context) (Regions, error) {
		shares, h, err := e.rollup(ctx, scope)
		if err != nil {
			return Regions{}, err
		}
		tops := aggregate.Regions(shares, h, e.opts.Corrections)
		out := Regions{DCC: make([]TopRegion, 0, len(tops))}
		for _, top := range tops {
			out.DCC = append(out.DCC, topView(top))
		}
		out.GrandTotal = []Total{totalView(aggregate.GrandTotal(shares, h, e.opts.Corrections))}
		return out, nil
	})
	if err != nil {
		return nil, e.fail("regions", scope, err)
	}
	return &regions, nil
}

// Region returns one DCC of the rollup. Id 0 is the unassigned bucket.
func (e *Engine) Region(ctx context.Context, scope authz.Scope, id int64) (*TopRegion, error) {
	regions, err := e.Regions(ctx, scope)
	if err != nil {
		return nil, err
	}
	for _, top := range regions.DCC {
		if top.ID == id {
			top := top
			return &top, nil
		}
	}
	return nil, fmt.Errorf("%w: region %d", persistence.ErrNotFound, id)
}

// SystemTotal is the grand total of the scope.
func (e *Engine) SystemTotal(ctx context.Context, scope authz.Scope) (*Total, error) {
	key := cache.Key("system-total", scope.Key(), nil)
	total, err := cache.Fetch(ctx, e.cache, key, e.ttl(scope), func(ctx context.Context) (Total, error) {
		shares, h, err := e.rollup(ctx, scope)
		if err != nil {
			return Total{}, err
		}
		return totalView(aggregate.GrandTotal(shares, h, e.opts.Corrections)), nil
	})
	if err != nil {
		return nil, e.fail("system-total", scope, err)
	}
	return &total, nil
}

func topView(top aggregate.TopRegion) TopRegion {
	out := TopRegion{
		ID:      top.ID,
		Name:    top.Name,
		Power:   format.MW(top.Power),
		Current: format.A(top.Current),
		UP3:     make([]MidRegion, 0, len(top.Mids)),
	}
	for _, mid := range top.Mids {
		out.UP3 = append(out.UP3, MidRegion{
			ID:        mid.ID,
			Name:      mid.Name,
			Power:     format.MW(mid.Power),
			Current:   format.A(mid.Current),
			Corrected: mid.Corrected,
			Direct:    mid.Direct,
		})
	}
	return out
}

func totalView(t aggregate.Totals) Total {
	return Total{Power: format.MW(t.Power), Current: format.A(t.Current)}
}
