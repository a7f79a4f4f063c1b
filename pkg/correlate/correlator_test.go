package correlate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rflihmmm/pln-monitor-sub001/pkg/logging"
	"github.com/rflihmmm/pln-monitor-sub001/pkg/model"
	"github.com/rflihmmm/pln-monitor-sub001/pkg/persistence"
)

func newCorrelator(store *persistence.MemoryStore, opts Options) *Correlator {
	return New(store, store, opts, logging.Discard())
}

func TestCorrelateSample(t *testing.T) {
	store := persistence.NewMemoryStore(persistence.SampleFixture())
	view, err := newCorrelator(store, Options{}).Correlate(context.Background(), []int64{100, 5, 200, 7, 999})
	require.NoError(t, err)

	gi := view.Assets[100]
	require.NotNil(t, gi)
	assert.Equal(t, "GI-100", gi.StationName)
	assert.Equal(t, model.MembershipPrimary, gi.Membership)
	assert.Equal(t, []int64{1, 2}, gi.FeederIDs)
	require.NotNil(t, gi.Status)
	assert.Equal(t, "0", *gi.Status.Raw)

	lbs := view.Assets[5]
	assert.Equal(t, model.MembershipExtended, lbs.Membership)
	assert.Equal(t, []int64{1}, lbs.FeederIDs)
	assert.Len(t, lbs.Readings, 6)
	assert.Equal(t, "LBS-5", lbs.Name())
	assert.Equal(t, "100,50", lbs.Coordinate())

	assert.Nil(t, view.Assets[7].Status)

	unknown := view.Assets[999]
	assert.Equal(t, model.MembershipUnknown, unknown.Membership)
	assert.Empty(t, unknown.FeederIDs)

	require.Len(t, view.Feeders, 3)
	assert.Equal(t, []int64{5, 100}, view.Feeders[1].Keypoints)
	assert.Equal(t, []int64{100}, view.Feeders[2].Keypoints)
	assert.Equal(t, []int64{7, 200}, view.Feeders[3].Keypoints)

	assert.Equal(t, "10", *view.Analog[1001].Raw)
	assert.Equal(t, "1", *view.Status[1003].Raw)
}

func TestCorrelateLinkedFeederOutOfScope(t *testing.T) {
	store := persistence.NewMemoryStore(persistence.SampleFixture())
	// Only LBS-5 is requested: F1 is reached through the link and keeps its owner in the fan-out.
	view, err := newCorrelator(store, Options{}).Correlate(context.Background(), []int64{5})
	require.NoError(t, err)

	require.Len(t, view.Feeders, 1)
	assert.Equal(t, []int64{5, 100}, view.Feeders[1].Keypoints)
	assert.Equal(t, "2.5", *view.Analog[1002].Raw)
}

func TestCorrelateTieBreak(t *testing.T) {
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	str := func(s string) *string { return &s }
	store := persistence.NewMemoryStore(persistence.Fixture{
		Stations: []model.StationPoint{{StationID: 1, Name: "LBS-1"}},
		StatusPoints: []model.StatusPoint{
			{PointID: 9, StationID: 1, Name: model.PointRTUStatus, Value: str("1"), UpdatedAt: ts},
			{PointID: 3, StationID: 1, Name: model.PointRTUStatus, Value: str("0"), UpdatedAt: ts},
		},
		AnalogPoints: []model.AnalogPoint{
			{PointID: 1, StationID: 1, Name: "IR", Value: str("1"), UpdatedAt: ts},
			{PointID: 2, StationID: 1, Name: "IR", Value: str("2"), UpdatedAt: ts.Add(time.Minute)},
		},
	})

	view, err := newCorrelator(store, Options{}).Correlate(context.Background(), []int64{1})
	require.NoError(t, err)

	a := view.Assets[1]
	assert.Equal(t, "0", *a.Status.Raw, "equal timestamps keep the lowest point id")
	assert.Equal(t, "2", *a.Readings["IR"].Raw, "latest timestamp wins")
}

func TestCorrelateChunks(t *testing.T) {
	store := persistence.NewMemoryStore(persistence.SampleFixture())
	ids := make([]int64, 0, 250)
	for i := int64(1000); i < 1250; i++ {
		ids = append(ids, i)
	}

	_, err := newCorrelator(store, Options{ChunkSize: 100, Concurrency: 2}).Correlate(context.Background(), ids)
	require.NoError(t, err)
	assert.Equal(t, 3, store.Calls("StationsByIDs"))
	assert.Equal(t, 3, store.Calls("AnalogByStations"))
	assert.Equal(t, 3, store.Calls("FeederLinksByKeypoints"))
}

func TestCorrelateFailure(t *testing.T) {
	store := persistence.NewMemoryStore(persistence.SampleFixture())
	store.Fail(errors.New("connection reset"))

	_, err := newCorrelator(store, Options{}).Correlate(context.Background(), []int64{100})
	assert.Error(t, err)
}

func TestCorrelateEmpty(t *testing.T) {
	store := persistence.NewMemoryStore(persistence.SampleFixture())
	view, err := newCorrelator(store, Options{}).Correlate(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, view.Assets)
	assert.Equal(t, 0, store.Calls("StationsByIDs"))
}
