package persistence

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rflihmmm/pln-monitor-sub001/pkg/model"
)

func i64(v int64) *int64 { return &v }

func TestMemoryStoreTopology(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore(Fixture{
		Organizations: []model.Organization{
			{ID: 1, Name: "A", Level: 1},
			{ID: 2, Name: "B", Level: 2, ParentID: i64(1)},
		},
		PrimaryAssets: []model.PrimaryAsset{{ID: 10, Name: "GI-100", KeypointID: i64(100)}},
		Keypoints:     []model.ExtendedKeypoint{{KeypointID: 5, Name: "LBS-5"}, {KeypointID: 100, Name: "dup"}},
		Feeders:       []model.Feeder{{ID: 1, Name: "F1", AssetID: 10}},
		FeederStatusPoints: []model.FeederStatusPoint{
			{FeederID: 1, PointID: 500, MetricType: model.MetricCurrent},
			{FeederID: 1, PointID: 501, MetricType: model.MetricUnknown},
		},
		FeederKeypoints: []model.FeederKeypoint{
			{FeederID: 1, KeypointID: 5},
			{FeederID: 1, KeypointID: 6},
			{FeederID: 2, KeypointID: 7},
		},
	})

	_, err := m.OrganizationByID(ctx, 99)
	assert.True(t, errors.Is(err, ErrNotFound))

	children, err := m.ChildOrganizations(ctx, []int64{1})
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, int64(2), children[0].ID)

	ids, err := m.AllKeypointIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{5, 100}, ids)

	assets, err := m.PrimaryAssetsByKeypoints(ctx, []int64{100})
	require.NoError(t, err)
	require.Len(t, assets, 1)
	require.Len(t, assets[0].Feeders, 1)
	assert.Len(t, assets[0].Feeders[0].StatusPoints, 1)

	links, err := m.FeederLinksByKeypoints(ctx, []int64{5})
	require.NoError(t, err)
	assert.Equal(t, []model.FeederKeypoint{{FeederID: 1, KeypointID: 5}, {FeederID: 1, KeypointID: 6}}, links)

	m.Fail(errors.New("down"))
	_, err = m.AllKeypointIDs(ctx)
	assert.Error(t, err)
	assert.Equal(t, 2, m.Calls("AllKeypointIDs"))
}

func TestLoadMemoryStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixture.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"stations": [{"stationId": 5, "name": "LBS-5"}],
		"analogPoints": [{"pointId": 1, "stationId": 5, "name": "IR", "value": "10", "updatedAt": "2024-05-01T10:00:00Z"}]
	}`), 0o644))

	m, err := LoadMemoryStore(path)
	require.NoError(t, err)

	pts, err := m.AnalogByStations(context.Background(), []int64{5}, []string{"IR", "IS"})
	require.NoError(t, err)
	require.Len(t, pts, 1)
	assert.Equal(t, "10", *pts[0].Value)

	_, err = LoadMemoryStore(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
