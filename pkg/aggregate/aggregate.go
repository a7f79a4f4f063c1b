// pkg/aggregate/aggregate.go
package aggregate

import (
	"math"
	"sort"
	"strings"

	"github.com/rflihmmm/pln-monitor-sub001/pkg/compute"
)

// UnassignedName labels keypoints that have no region and mid-level regions without a top-level one.
const UnassignedName = "unassigned"

// Correction recomputes a region's power from its current: current × LineKV × √3 × PowerFactor / 1000.
type Correction struct {
	Token       string  `toml:"token"`
	LineKV      float64 `toml:"line_kv"`
	PowerFactor float64 `toml:"power_factor"`
}

// Power applies the correction to a current in amperes.
func (c Correction) Power(current float64) float64 {
	return current * c.LineKV * math.Sqrt(3) * c.PowerFactor / 1000
}

// Corrections is the configured table, matched in order.
type Corrections []Correction

// Match returns the first correction whose token occurs in name, ignoring case.
func (cs Corrections) Match(name string) (Correction, bool) {
	upper := strings.ToUpper(name)
	for _, c := range cs {
		if c.Token != "" && strings.Contains(upper, strings.ToUpper(c.Token)) {
			return c, true
		}
	}
	return Correction{}, false
}

// Totals is a current and power pair.
type Totals struct {
	Current float64
	Power   float64
}

// KeypointShares attributes every feeder's totals to its distinct keypoints in equal parts.
// Only keypoints in scope receive a share; the shares of one feeder always add up to its total.
func KeypointShares(feeders []compute.FeederMetrics, scope []int64) map[int64]Totals {
	in := make(map[int64]struct{}, len(scope))
	for _, id := range scope {
		in[id] = struct{}{}
	}
	shares := make(map[int64]Totals, len(scope))
	for _, f := range feeders {
		n := len(f.Keypoints)
		if n == 0 {
			continue
		}
		part := Totals{Current: f.Current / float64(n), Power: f.Power / float64(n)}
		for _, kp := range f.Keypoints {
			if _, ok := in[kp]; !ok {
				continue
			}
			t := shares[kp]
			t.Current += part.Current
			t.Power += part.Power
			shares[kp] = t
		}
	}
	return shares
}

// MidRegion is a level-2 total. Power is corrected when the parent's name matched a token.
// Direct entries carry the share of keypoints granted to the top-level region itself
// and use its id and name.
type MidRegion struct {
	ID        int64
	Name      string
	Current   float64
	Power     float64
	RawPower  float64
	Corrected bool
	Direct    bool
}

// TopRegion is a level-1 total over its mid-level regions.
type TopRegion struct {
	ID      int64
	Name    string
	Current float64
	Power   float64
	Mids    []MidRegion
}

type midAccumulator struct {
	id, topID     int64
	name, topName string
	direct        bool
	raw           Totals
}

// accumulate splits every share equally over the keypoint's placements. Keypoints
// without any placement land in the accumulator with id 0.
func accumulate(shares map[int64]Totals, h *Hierarchy) map[int64]*midAccumulator {
	mids := make(map[int64]*midAccumulator)
	for _, kp := range sortedKeys(shares) {
		share := shares[kp]
		placements := h.Placements(kp)
		if len(placements) == 0 {
			acc := mids[0]
			if acc == nil {
				acc = &midAccumulator{name: UnassignedName, topName: UnassignedName}
				mids[0] = acc
			}
			acc.raw.Current += share.Current
			acc.raw.Power += share.Power
			continue
		}
		n := float64(len(placements))
		for _, p := range placements {
			acc := mids[p.Mid.ID]
			if acc == nil {
				acc = &midAccumulator{id: p.Mid.ID, name: p.Mid.Name, topName: UnassignedName, direct: p.Direct}
				if p.HasTop {
					acc.topID, acc.topName = p.Top.ID, p.Top.Name
				}
				mids[p.Mid.ID] = acc
			}
			acc.raw.Current += share.Current / n
			acc.raw.Power += share.Power / n
		}
	}
	return mids
}

// corrected returns the accumulator's power, recomputed from current when its
// top-level region matches a correction.
func (acc *midAccumulator) corrected(corr Corrections) (float64, bool) {
	if acc.topID != 0 {
		if c, ok := corr.Match(acc.topName); ok {
			return c.Power(acc.raw.Current), true
		}
	}
	return acc.raw.Power, false
}

// Regions rolls keypoint shares up to mid-level and top-level regions.
//
// A keypoint granted to several regions splits its share equally among them.
// A keypoint granted to a top-level region with no mid-level organization on the
// way up is a direct contribution to that region and is corrected like its
// mid-level regions. Keypoints without any region end up in a mid-level bucket
// with id 0, and mid-level regions without a top-level one in a top-level bucket
// with id 0; neither is ever corrected.
func Regions(shares map[int64]Totals, h *Hierarchy, corr Corrections) []TopRegion {
	mids := accumulate(shares, h)

	tops := make(map[int64]*TopRegion)
	for _, id := range sortedKeys(mids) {
		acc := mids[id]
		mid := MidRegion{ID: acc.id, Name: acc.name, Current: acc.raw.Current, RawPower: acc.raw.Power, Direct: acc.direct}
		mid.Power, mid.Corrected = acc.corrected(corr)
		top := tops[acc.topID]
		if top == nil {
			top = &TopRegion{ID: acc.topID, Name: acc.topName}
			tops[acc.topID] = top
		}
		top.Mids = append(top.Mids, mid)
		top.Current += mid.Current
		top.Power += mid.Power
	}

	out := make([]TopRegion, 0, len(tops))
	for _, id := range sortedKeys(tops) {
		out = append(out, *tops[id])
	}
	return out
}

// GrandTotal sums corrected power and raw current over every region of the scope.
// It does not read Regions output so the system view does not depend on the
// per-region projection.
func GrandTotal(shares map[int64]Totals, h *Hierarchy, corr Corrections) Totals {
	var total Totals
	mids := accumulate(shares, h)
	for _, id := range sortedKeys(mids) {
		acc := mids[id]
		power, _ := acc.corrected(corr)
		total.Current += acc.raw.Current
		total.Power += power
	}
	return total
}

func sortedKeys[V any](m map[int64]V) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
