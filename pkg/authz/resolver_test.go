package authz

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rflihmmm/pln-monitor-sub001/pkg/logging"
	"github.com/rflihmmm/pln-monitor-sub001/pkg/model"
	"github.com/rflihmmm/pln-monitor-sub001/pkg/persistence"
)

func i64(v int64) *int64 { return &v }

// A(1) -> B(2) -> C(3); A holds 10, B holds 20, C holds 30 and 20.
func treeFixture() persistence.Fixture {
	return persistence.Fixture{
		Organizations: []model.Organization{
			{ID: 1, Name: "A", Level: model.LevelRegion},
			{ID: 2, Name: "B", Level: model.LevelArea, ParentID: i64(1)},
			{ID: 3, Name: "C", Level: model.LevelUnit, ParentID: i64(2)},
			{ID: 4, Name: "D", Level: model.LevelArea},
		},
		OrganizationGrants: []model.OrganizationKeypoint{
			{OrganizationID: 1, KeypointID: 10},
			{OrganizationID: 2, KeypointID: 20},
			{OrganizationID: 3, KeypointID: 30},
			{OrganizationID: 3, KeypointID: 20},
			{OrganizationID: 4, KeypointID: 40},
		},
		PrimaryAssets: []model.PrimaryAsset{{ID: 1, Name: "GI-10", KeypointID: i64(10)}},
		Keypoints:     []model.ExtendedKeypoint{{KeypointID: 20}, {KeypointID: 30}, {KeypointID: 40}},
	}
}

func TestResolveTree(t *testing.T) {
	ctx := context.Background()
	r := NewResolver(persistence.NewMemoryStore(treeFixture()), 0, logging.Discard())

	ids, err := r.Resolve(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []int64{10, 20, 30}, ids)

	ids, err = r.Resolve(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []int64{20, 30}, ids)

	ids, err = r.Resolve(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, []int64{20, 30}, ids)
}

func TestResolveUnknownOrganization(t *testing.T) {
	r := NewResolver(persistence.NewMemoryStore(treeFixture()), 0, logging.Discard())

	ids, err := r.Resolve(context.Background(), 999)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestResolveCycle(t *testing.T) {
	f := treeFixture()
	f.Organizations[0].ParentID = i64(3) // A -> B -> C -> A
	r := NewResolver(persistence.NewMemoryStore(f), 1, logging.Discard())

	orgs, err := r.ResolveOrganizations(context.Background(), 2)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{1, 2, 3}, orgs)
	assert.Len(t, orgs, 3)

	// self-parent
	f = treeFixture()
	f.Organizations[3].ParentID = i64(4)
	r = NewResolver(persistence.NewMemoryStore(f), 0, logging.Discard())
	orgs, err = r.ResolveOrganizations(context.Background(), 4)
	require.NoError(t, err)
	assert.Equal(t, []int64{4}, orgs)
}

func TestResolveChunksFrontier(t *testing.T) {
	f := persistence.Fixture{Organizations: []model.Organization{{ID: 1, Level: 1}}}
	for id := int64(2); id <= 8; id++ {
		f.Organizations = append(f.Organizations, model.Organization{ID: id, Level: 2, ParentID: i64(1)})
	}
	store := persistence.NewMemoryStore(f)
	r := NewResolver(store, 3, logging.Discard())

	orgs, err := r.ResolveOrganizations(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, orgs, 8)
	// frontier {1}, then {2..8} in chunks of 3
	assert.Equal(t, 1+3, store.Calls("ChildOrganizations"))
}

func TestResolveStoreFailure(t *testing.T) {
	store := persistence.NewMemoryStore(treeFixture())
	store.Fail(errors.New("connection refused"))
	r := NewResolver(store, 0, logging.Discard())

	_, err := r.Resolve(context.Background(), 1)
	assert.Error(t, err)
	assert.False(t, errors.Is(err, persistence.ErrNotFound))
}

func TestForScope(t *testing.T) {
	ctx := context.Background()
	r := NewResolver(persistence.NewMemoryStore(treeFixture()), 0, logging.Discard())

	all, err := r.ForScope(ctx, Scope{})
	require.NoError(t, err)
	assert.Equal(t, []int64{10, 20, 30, 40}, all)

	scoped, err := r.ForScope(ctx, OrganizationScope(4))
	require.NoError(t, err)
	assert.Equal(t, []int64{40}, scoped)

	assert.Equal(t, "all", Scope{}.Key())
	assert.Equal(t, "org-4", OrganizationScope(4).Key())
}

func TestIntersect(t *testing.T) {
	assert.Equal(t, []int64{1, 2, 3}, Intersect([]int64{1, 2, 3}, nil))
	assert.Equal(t, []int64{2}, Intersect([]int64{1, 2, 3}, []int64{2, 9}))
	assert.Empty(t, Intersect([]int64{1}, []int64{}))
}
