package engine

import (
	"context"
	"fmt"

	"github.com/rflihmmm/pln-monitor-sub001/pkg/authz"
	"github.com/rflihmmm/pln-monitor-sub001/pkg/cache"
	"github.com/rflihmmm/pln-monitor-sub001/pkg/compute"
	"github.com/rflihmmm/pln-monitor-sub001/pkg/correlate"
	"github.com/rflihmmm/pln-monitor-sub001/pkg/format"
	"github.com/rflihmmm/pln-monitor-sub001/pkg/model"
	"github.com/rflihmmm/pln-monitor-sub001/pkg/persistence"
)

func (f KeypointFilter) empty() bool {
	return f.Type == nil && f.Status == "" && len(f.IDs) == 0
}

// Keypoints lists the keypoints of the scope that have a station name and a valid coordinate.
func (e *Engine) Keypoints(ctx context.Context, scope authz.Scope, filter KeypointFilter) ([]Keypoint, error) {
	filter.IDs = persistence.UniqueIDs(filter.IDs)
	var keyFilter any
	if !filter.empty() {
		keyFilter = filter
	}
	key := cache.Key("keypoints", scope.Key(), keyFilter)

	items, err := cache.Fetch(ctx, e.cache, key, e.ttl(scope), func(ctx context.Context) ([]Keypoint, error) {
		snap, err := e.load(ctx, scope, filter.IDs)
		if err != nil {
			return nil, err
		}
		out := make([]Keypoint, 0, len(snap.ids))
		for _, id := range snap.ids {
			kp, ok := keypoint(snap, id)
			if !ok || kp.Coordinate == nil {
				continue
			}
			if filter.Type != nil && kp.Type != *filter.Type {
				continue
			}
			if filter.Status != "" && kp.Status != filter.Status {
				continue
			}
			out = append(out, kp)
		}
		return out, nil
	})
	if err != nil {
		return nil, e.fail("keypoints", scope, err)
	}
	return items, nil
}

// Summary counts the keypoints of the scope by type and status.
// Keypoints without a valid coordinate are counted; they are only left off the map.
func (e *Engine) Summary(ctx context.Context, scope authz.Scope) (*Summary, error) {
	key := cache.Key("keypoint-summary", scope.Key(), nil)
	sum, err := cache.Fetch(ctx, e.cache, key, e.ttl(scope), func(ctx context.Context) (Summary, error) {
		snap, err := e.load(ctx, scope, nil)
		if err != nil {
			return Summary{}, err
		}
		s := Summary{ByType: map[string]StatusCount{}}
		for _, t := range []model.EntityType{model.EntityPrimarySubstation, model.EntitySwitch, model.EntityOther} {
			s.ByType[t.String()] = StatusCount{}
		}
		for _, id := range snap.ids {
			kp, ok := keypoint(snap, id)
			if !ok {
				continue
			}
			byType := s.ByType[kp.Type.String()]
			byType.add(kp.Status)
			s.ByType[kp.Type.String()] = byType
			s.add(kp.Status)
		}
		return s, nil
	})
	if err != nil {
		return nil, e.fail("keypoint-summary", scope, err)
	}
	return &sum, nil
}

func (c *StatusCount) add(status string) {
	c.Total++
	if status == StatusActive {
		c.Active++
	} else {
		c.Inactive++
	}
}

// Keypoint returns the detail of one keypoint. It is persistence.ErrNotFound
// when the keypoint is unknown or outside the scope.
func (e *Engine) Keypoint(ctx context.Context, scope authz.Scope, id int64) (*KeypointDetail, error) {
	key := cache.Key("keypoint", scope.Key(), map[string]int64{"id": id})
	detail, err := cache.Fetch(ctx, e.cache, key, e.ttl(scope), func(ctx context.Context) (KeypointDetail, error) {
		snap, err := e.load(ctx, scope, []int64{id})
		if err != nil {
			return KeypointDetail{}, err
		}
		kp, ok := keypoint(snap, id)
		if !ok {
			return KeypointDetail{}, fmt.Errorf("%w: keypoint %d", persistence.ErrNotFound, id)
		}
		a := snap.view.Assets[id]
		m := snap.metrics[id]
		d := KeypointDetail{
			Keypoint:      kp,
			Voltage:       format.KV(m.Voltage),
			PowerFactor:   format.Number(readingOrZero(a, model.PointPowerFactor)),
			ApparentPower: format.MVA(compute.ApparentPower(m)),
			Currents:      readings(a, model.PhaseCurrentNames, format.A),
			Voltages:      readings(a, model.LineVoltageNames, format.KV),
			FaultCurrents: readings(a, model.FaultCurrentNames, format.A),
			Feeders:       make([]Feeder, 0, len(a.FeederIDs)),
		}
		for _, fid := range a.FeederIDs {
			if f, ok := snap.view.Feeders[fid]; ok {
				d.Feeders = append(d.Feeders, feederView(compute.Feeder(f, snap.view), snap.visible))
			}
		}
		return d, nil
	})
	if err != nil {
		return nil, e.fail("keypoint", scope, err)
	}
	return &detail, nil
}

// keypoint projects one identifier. ok is false for malformed entities: no
// station name, or a primary-substation tag without a primary asset record.
func keypoint(snap *snapshot, id int64) (Keypoint, bool) {
	a := snap.view.Assets[id]
	if a == nil || a.StationName == "" {
		return Keypoint{}, false
	}
	m := snap.metrics[id]
	if m.Type == model.EntityPrimarySubstation && a.Primary == nil {
		return Keypoint{}, false
	}

	kp := Keypoint{
		ID:     id,
		Code:   a.StationName,
		Name:   registryName(a),
		Type:   m.Type,
		Status: status(m.Active),
		Data: LoadData{
			LoadMW:     format.MW(m.LoadPower),
			LoadIS:     format.A(m.LoadCurrent),
			LastUpdate: format.Timestamp(m.LastUpdate),
		},
	}
	if c, err := model.ParseCoordinate(a.Coordinate()); err == nil {
		kp.Coordinate = &c
	}
	if a.Extended != nil {
		kp.Parent = a.Extended.ParentKeypointID
	}
	if m.Type == model.EntityPrimarySubstation {
		kp.Feeder = make([]FeederLoad, 0, len(a.FeederIDs))
		for _, fid := range a.FeederIDs {
			f, ok := snap.view.Feeders[fid]
			if !ok {
				continue
			}
			fm := compute.Feeder(f, snap.view)
			kp.Feeder = append(kp.Feeder, FeederLoad{
				ID:     fm.ID,
				Name:   fm.Name,
				LoadIS: format.A(fm.Current),
				LoadMW: format.MW(fm.Power),
			})
		}
	}
	return kp, true
}

func registryName(a *correlate.Asset) string {
	switch {
	case a.Primary != nil && a.Primary.Name != "":
		return a.Primary.Name
	case a.Extended != nil && a.Extended.Name != "":
		return a.Extended.Name
	}
	return a.StationName
}

func status(active bool) string {
	if active {
		return StatusActive
	}
	return StatusInactive
}

func readingOrZero(a *correlate.Asset, name string) float64 {
	v, _ := compute.Reading(a, name)
	return v
}

// readings formats every name, missing or non-numeric readings as zero.
func readings(a *correlate.Asset, names []string, unit func(float64) string) map[string]string {
	out := make(map[string]string, len(names))
	for _, name := range names {
		out[name] = unit(readingOrZero(a, name))
	}
	return out
}
