// pkg/authz/resolver.go
package authz

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	log "github.com/sirupsen/logrus"

	"github.com/rflihmmm/pln-monitor-sub001/pkg/persistence"
)

// Scope is the caller's visibility. A nil OrganizationID means unrestricted.
type Scope struct {
	OrganizationID *int64
}

// Unrestricted reports whether the scope sees every identifier.
func (s Scope) Unrestricted() bool { return s.OrganizationID == nil }

// Key is the cache-key fragment for the scope.
func (s Scope) Key() string {
	if s.OrganizationID == nil {
		return "all"
	}
	return "org-" + strconv.FormatInt(*s.OrganizationID, 10)
}

// OrganizationScope is shorthand for a scope restricted to one organization.
func OrganizationScope(id int64) Scope { return Scope{OrganizationID: &id} }

// Resolver expands an organization into the telemetry identifiers it may see.
type Resolver struct {
	store     persistence.TopologyStore
	chunkSize int
	logger    log.FieldLogger
}

func NewResolver(store persistence.TopologyStore, chunkSize int, logger log.FieldLogger) *Resolver {
	if chunkSize <= 0 {
		chunkSize = persistence.DefaultChunkSize
	}
	return &Resolver{store: store, chunkSize: chunkSize, logger: logger}
}

// ResolveOrganizations returns the organization and every descendant, each once, in BFS order.
// Unknown organizations yield an empty result. Parent cycles terminate.
func (r *Resolver) ResolveOrganizations(ctx context.Context, organizationID int64) ([]int64, error) {
	root, err := r.store.OrganizationByID(ctx, organizationID)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			r.logger.WithField("organization_id", organizationID).Debug("unknown organization, empty scope")
			return nil, nil
		}
		return nil, fmt.Errorf("resolve organization %d: %w", organizationID, err)
	}

	visited := map[int64]struct{}{root.ID: {}}
	order := []int64{root.ID}
	frontier := []int64{root.ID}
	for len(frontier) > 0 {
		var next []int64
		for _, chunk := range persistence.Chunk(frontier, r.chunkSize) {
			children, err := r.store.ChildOrganizations(ctx, chunk)
			if err != nil {
				return nil, fmt.Errorf("load children of %d organizations: %w", len(chunk), err)
			}
			for _, c := range children {
				if _, seen := visited[c.ID]; seen {
					continue
				}
				visited[c.ID] = struct{}{}
				order = append(order, c.ID)
				next = append(next, c.ID)
			}
		}
		frontier = next
	}
	return order, nil
}

// Resolve returns the sorted, distinct identifiers granted to the organization or any descendant.
func (r *Resolver) Resolve(ctx context.Context, organizationID int64) ([]int64, error) {
	orgs, err := r.ResolveOrganizations(ctx, organizationID)
	if err != nil {
		return nil, err
	}
	var ids []int64
	for _, chunk := range persistence.Chunk(orgs, r.chunkSize) {
		grants, err := r.store.KeypointsForOrganizations(ctx, chunk)
		if err != nil {
			return nil, fmt.Errorf("load keypoint grants: %w", err)
		}
		for _, g := range grants {
			ids = append(ids, g.KeypointID)
		}
	}
	ids = persistence.UniqueIDs(ids)
	r.logger.WithFields(log.Fields{
		"organization_id": organizationID,
		"organizations":   len(orgs),
		"keypoints":       len(ids),
	}).Debug("scope resolved")
	return ids, nil
}

// All is the unrestricted identifier set: both asset registries combined.
func (r *Resolver) All(ctx context.Context) ([]int64, error) {
	ids, err := r.store.AllKeypointIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("load all keypoints: %w", err)
	}
	return persistence.UniqueIDs(ids), nil
}

// ForScope dispatches to All or Resolve.
func (r *Resolver) ForScope(ctx context.Context, s Scope) ([]int64, error) {
	if s.Unrestricted() {
		return r.All(ctx)
	}
	return r.Resolve(ctx, *s.OrganizationID)
}

// Intersect keeps the ids of scope that appear in filter. A nil filter keeps everything.
func Intersect(scope, filter []int64) []int64 {
	if filter == nil {
		return scope
	}
	want := make(map[int64]struct{}, len(filter))
	for _, id := range filter {
		want[id] = struct{}{}
	}
	out := make([]int64, 0, len(filter))
	for _, id := range scope {
		if _, ok := want[id]; ok {
			out = append(out, id)
		}
	}
	return out
}
