// pkg/compute/metrics.go
package compute

import (
	"math"
	"sort"
	"time"

	"github.com/rflihmmm/pln-monitor-sub001/pkg/correlate"
	"github.com/rflihmmm/pln-monitor-sub001/pkg/model"
)

// Metrics are the derived values of one telemetry identifier. Nothing is rounded.
type Metrics struct {
	ID     int64
	Type   model.EntityType
	Active bool

	LoadCurrent float64 // A
	LoadPower   float64 // MW for primary substations, voltage × current otherwise
	Voltage     float64 // mean line voltage in kV, zero for primary substations

	LastUpdate time.Time // zero when no contributing reading exists
}

// BreakerState is the reading of a feeder's breaker edge.
type BreakerState string

const (
	BreakerUnknown BreakerState = "unknown"
	BreakerClosed  BreakerState = "closed"
	BreakerOpen    BreakerState = "open"
)

// FeederMetrics are the totals over a feeder's edges.
type FeederMetrics struct {
	ID        int64
	Name      string
	AssetID   int64
	Current   float64
	Power     float64
	Breaker   BreakerState
	Keypoints []int64

	LastUpdate time.Time
}

// Active reports whether the RTU-STAT reading is exactly zero. Missing or
// non-numeric readings count as inactive.
func Active(rtu *model.Reading) bool {
	if rtu == nil {
		return false
	}
	v, ok := rtu.Float()
	return ok && v == 0
}

// Classify tags an asset using registry membership first, then its station name.
func Classify(a *correlate.Asset) model.EntityType {
	return model.Classify(a.StationName, a.Membership)
}

// orderedSum adds the values smallest first so the result does not depend on input order.
func orderedSum(vals []float64) float64 {
	sort.Float64s(vals)
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return sum
}

// Feeder totals the current and power edges of f and reads its breaker edge.
func Feeder(f *correlate.Feeder, view *correlate.View) FeederMetrics {
	m := FeederMetrics{
		ID:        f.ID,
		Name:      f.Name,
		AssetID:   f.AssetID,
		Breaker:   BreakerUnknown,
		Keypoints: f.Keypoints,
	}
	var current, power []float64
	var breakerSeen bool
	for _, e := range f.StatusPoints {
		switch e.MetricType {
		case model.MetricCurrent, model.MetricPower:
			rd, ok := view.Analog[e.PointID]
			if !ok {
				continue
			}
			v, ok := rd.Float()
			if !ok {
				continue
			}
			if e.MetricType == model.MetricCurrent {
				current = append(current, v)
			} else {
				power = append(power, v)
			}
			if rd.UpdatedAt.After(m.LastUpdate) {
				m.LastUpdate = rd.UpdatedAt
			}
		case model.MetricBreaker:
			rd, ok := view.Status[e.PointID]
			if !ok || breakerSeen {
				continue
			}
			breakerSeen = true
			m.Breaker = breakerState(rd)
		}
	}
	m.Current = orderedSum(current)
	m.Power = orderedSum(power)
	return m
}

func breakerState(rd model.Reading) BreakerState {
	v, ok := rd.Float()
	switch {
	case !ok:
		return BreakerUnknown
	case v == 1:
		return BreakerClosed
	case v == 0:
		return BreakerOpen
	}
	return BreakerUnknown
}

// Asset computes the metrics of one identifier.
//
// Primary substations sum the current and power edges of every owned feeder.
// Everything else averages its non-zero phase currents and line voltages and
// multiplies the two averages for power.
func Asset(a *correlate.Asset, view *correlate.View) Metrics {
	m := Metrics{
		ID:     a.ID,
		Type:   Classify(a),
		Active: Active(a.Status),
	}
	if m.Type == model.EntityPrimarySubstation {
		var current, power []float64
		for _, fid := range a.FeederIDs {
			f, ok := view.Feeders[fid]
			if !ok {
				continue
			}
			fm := Feeder(f, view)
			current = append(current, fm.Current)
			power = append(power, fm.Power)
			if fm.LastUpdate.After(m.LastUpdate) {
				m.LastUpdate = fm.LastUpdate
			}
		}
		m.LoadCurrent = orderedSum(current)
		m.LoadPower = orderedSum(power)
		return m
	}

	current := nonZeroMean(a.Readings, model.PhaseCurrentNames)
	voltage := nonZeroMean(a.Readings, model.LineVoltageNames)
	for _, rd := range a.Readings {
		if rd.UpdatedAt.After(m.LastUpdate) {
			m.LastUpdate = rd.UpdatedAt
		}
	}
	m.LoadCurrent = current
	m.Voltage = voltage
	if current != 0 && voltage != 0 {
		m.LoadPower = voltage * current
	}
	return m
}

// ApparentPower is the three-phase apparent power in MVA, √3 × kV × A / 1000.
// It is zero when no line voltage is measured, which includes primary substations.
func ApparentPower(m Metrics) float64 {
	return math.Sqrt(3) * m.Voltage * m.LoadCurrent / 1000
}

// nonZeroMean averages the numeric, non-zero readings among names. Zero means none reported.
func nonZeroMean(readings map[string]model.Reading, names []string) float64 {
	var vals []float64
	for _, name := range names {
		rd, ok := readings[name]
		if !ok {
			continue
		}
		if v, ok := rd.Float(); ok && v != 0 {
			vals = append(vals, v)
		}
	}
	if len(vals) == 0 {
		return 0
	}
	return orderedSum(vals) / float64(len(vals))
}

// Reading returns the numeric value of a named reading.
func Reading(a *correlate.Asset, name string) (float64, bool) {
	rd, ok := a.Readings[name]
	if !ok {
		return 0, false
	}
	return rd.Float()
}

// All computes every identifier of the view, in identifier order.
func All(view *correlate.View) []Metrics {
	out := make([]Metrics, 0, len(view.IDs))
	for _, id := range view.IDs {
		if a, ok := view.Assets[id]; ok {
			out = append(out, Asset(a, view))
		}
	}
	return out
}

// Feeders computes every feeder of the view, in feeder id order.
func Feeders(view *correlate.View) []FeederMetrics {
	ids := make([]int64, 0, len(view.Feeders))
	for id := range view.Feeders {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]FeederMetrics, 0, len(ids))
	for _, id := range ids {
		out = append(out, Feeder(view.Feeders[id], view))
	}
	return out
}
