// pkg/aggregate/hierarchy.go
package aggregate

import (
	"context"
	"fmt"
	"sort"

	"github.com/rflihmmm/pln-monitor-sub001/pkg/model"
	"github.com/rflihmmm/pln-monitor-sub001/pkg/persistence"
)

// Hierarchy is the part of the organization tree above a set of keypoints.
type Hierarchy struct {
	orgs         map[int64]model.Organization
	keypointOrgs map[int64][]int64
}

// NewHierarchy builds a Hierarchy from already loaded rows.
func NewHierarchy(orgs []model.Organization, grants []model.OrganizationKeypoint) *Hierarchy {
	h := &Hierarchy{
		orgs:         make(map[int64]model.Organization, len(orgs)),
		keypointOrgs: make(map[int64][]int64),
	}
	for _, o := range orgs {
		h.orgs[o.ID] = o
	}
	for _, g := range grants {
		h.keypointOrgs[g.KeypointID] = append(h.keypointOrgs[g.KeypointID], g.OrganizationID)
	}
	for kp, ids := range h.keypointOrgs {
		h.keypointOrgs[kp] = persistence.UniqueIDs(ids)
	}
	return h
}

// LoadHierarchy reads the grants of the keypoints and every ancestor of the granted organizations.
// Each level of the upward walk is one batch of queries; already loaded organizations are not refetched.
func LoadHierarchy(ctx context.Context, store persistence.TopologyStore, keypointIDs []int64, chunkSize int) (*Hierarchy, error) {
	var grants []model.OrganizationKeypoint
	for _, chunk := range persistence.Chunk(persistence.UniqueIDs(keypointIDs), chunkSize) {
		rows, err := store.OrganizationKeypointsByKeypoints(ctx, chunk)
		if err != nil {
			return nil, fmt.Errorf("load keypoint organizations: %w", err)
		}
		grants = append(grants, rows...)
	}

	loaded := make(map[int64]model.Organization)
	var pending []int64
	for _, g := range grants {
		pending = append(pending, g.OrganizationID)
	}
	for len(pending) > 0 {
		var next []int64
		for _, chunk := range persistence.Chunk(persistence.UniqueIDs(pending), chunkSize) {
			orgs, err := store.OrganizationsByIDs(ctx, chunk)
			if err != nil {
				return nil, fmt.Errorf("load organizations: %w", err)
			}
			for _, o := range orgs {
				loaded[o.ID] = o
			}
			for _, o := range orgs {
				if o.ParentID == nil {
					continue
				}
				if _, ok := loaded[*o.ParentID]; !ok {
					next = append(next, *o.ParentID)
				}
			}
		}
		// Only parents of organizations loaded in this round are requested next, so
		// missing rows and cycles end the walk.
		pending = pending[:0]
		for _, id := range persistence.UniqueIDs(next) {
			if _, ok := loaded[id]; !ok {
				pending = append(pending, id)
			}
		}
	}

	orgs := make([]model.Organization, 0, len(loaded))
	for _, o := range loaded {
		orgs = append(orgs, o)
	}
	return NewHierarchy(orgs, grants), nil
}

// ancestor walks from id toward the root and returns the first organization at level, cycle-safe.
func (h *Hierarchy) ancestor(id int64, level int) (model.Organization, bool) {
	seen := make(map[int64]struct{})
	for {
		o, ok := h.orgs[id]
		if !ok {
			return model.Organization{}, false
		}
		if o.Level == level {
			return o, true
		}
		if _, dup := seen[id]; dup || o.ParentID == nil {
			return model.Organization{}, false
		}
		seen[id] = struct{}{}
		id = *o.ParentID
	}
}

// MidRegions returns the distinct level-2 ancestor-or-self organizations of every organization
// the keypoint is granted to, sorted by id.
func (h *Hierarchy) MidRegions(keypointID int64) []model.Organization {
	byID := make(map[int64]model.Organization)
	for _, orgID := range h.keypointOrgs[keypointID] {
		if mid, ok := h.ancestor(orgID, model.LevelArea); ok {
			byID[mid.ID] = mid
		}
	}
	out := make([]model.Organization, 0, len(byID))
	for _, o := range byID {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// TopRegion returns the level-1 ancestor of a mid-level region.
func (h *Hierarchy) TopRegion(midID int64) (model.Organization, bool) {
	return h.ancestor(midID, model.LevelRegion)
}

// Placement is one region a keypoint's share is attributed to. Mid is the
// top-level region itself when Direct is set.
type Placement struct {
	Mid    model.Organization
	Top    model.Organization
	HasTop bool
	Direct bool
}

// Placements returns where the keypoint's share lands, sorted by Mid id. Each
// granted organization contributes its level-2 ancestor-or-self, or, when it has
// none, its level-1 ancestor-or-self as a direct placement. Organizations with
// neither contribute nothing.
func (h *Hierarchy) Placements(keypointID int64) []Placement {
	byID := make(map[int64]Placement)
	for _, orgID := range h.keypointOrgs[keypointID] {
		if mid, ok := h.ancestor(orgID, model.LevelArea); ok {
			p := Placement{Mid: mid}
			p.Top, p.HasTop = h.TopRegion(mid.ID)
			byID[mid.ID] = p
			continue
		}
		if top, ok := h.ancestor(orgID, model.LevelRegion); ok {
			byID[top.ID] = Placement{Mid: top, Top: top, HasTop: true, Direct: true}
		}
	}
	out := make([]Placement, 0, len(byID))
	for _, p := range byID {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Mid.ID < out[j].Mid.ID })
	return out
}
