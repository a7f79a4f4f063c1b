// pkg/persistence/memory_store.go
package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/rflihmmm/pln-monitor-sub001/pkg/model"
)

var (
	_ TopologyStore  = (*MemoryStore)(nil)
	_ TelemetryStore = (*MemoryStore)(nil)
)

// Fixture is the JSON document a MemoryStore is loaded from.
// Feeder status points and feeder links are flat lists, as in the relational layout.
type Fixture struct {
	Organizations      []model.Organization         `json:"organizations"`
	OrganizationGrants []model.OrganizationKeypoint `json:"organizationKeypoints"`
	PrimaryAssets      []model.PrimaryAsset         `json:"primaryAssets"`
	Keypoints          []model.ExtendedKeypoint     `json:"keypoints"`
	Feeders            []model.Feeder               `json:"feeders"`
	FeederKeypoints    []model.FeederKeypoint       `json:"feederKeypoints"`
	FeederStatusPoints []model.FeederStatusPoint    `json:"feederStatusPoints"`
	Stations           []model.StationPoint         `json:"stations"`
	StatusPoints       []model.StatusPoint          `json:"statusPoints"`
	AnalogPoints       []model.AnalogPoint          `json:"analogPoints"`
}

// MemoryStore serves both store interfaces from memory. It backs local runs
// (topology driver "memory") and the engine tests.
type MemoryStore struct {
	mu      sync.RWMutex
	fixture Fixture
	failure error
	calls   map[string]int
}

func NewMemoryStore(f Fixture) *MemoryStore {
	return &MemoryStore{fixture: f, calls: make(map[string]int)}
}

// LoadMemoryStore reads a Fixture from a JSON file.
func LoadMemoryStore(path string) (*MemoryStore, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture: %w", err)
	}
	var f Fixture
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("failed to decode fixture %s: %w", path, err)
	}
	return NewMemoryStore(f), nil
}

// Fail makes every subsequent call return err. Pass nil to recover.
func (m *MemoryStore) Fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failure = err
}

// Calls returns how many times the named method ran.
func (m *MemoryStore) Calls(method string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls[method]
}

// enter records the call and returns the injected failure, if any.
// Callers hold no lock; read access is taken separately.
func (m *MemoryStore) enter(method string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[method]++
	if m.failure != nil {
		return fmt.Errorf("memory store %s: %w", method, m.failure)
	}
	return nil
}

func (m *MemoryStore) Close() {}

func idSet(ids []int64) map[int64]struct{} {
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func (m *MemoryStore) OrganizationByID(ctx context.Context, id int64) (*model.Organization, error) {
	if err := m.enter("OrganizationByID"); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, o := range m.fixture.Organizations {
		if o.ID == id {
			o := o
			return &o, nil
		}
	}
	return nil, fmt.Errorf("%w: organization %d", ErrNotFound, id)
}

func (m *MemoryStore) ChildOrganizations(ctx context.Context, parentIDs []int64) ([]model.Organization, error) {
	if err := m.enter("ChildOrganizations"); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	parents := idSet(parentIDs)
	var out []model.Organization
	for _, o := range m.fixture.Organizations {
		if o.ParentID == nil {
			continue
		}
		if _, ok := parents[*o.ParentID]; ok {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *MemoryStore) OrganizationsByIDs(ctx context.Context, ids []int64) ([]model.Organization, error) {
	if err := m.enter("OrganizationsByIDs"); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	want := idSet(ids)
	var out []model.Organization
	for _, o := range m.fixture.Organizations {
		if _, ok := want[o.ID]; ok {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *MemoryStore) KeypointsForOrganizations(ctx context.Context, orgIDs []int64) ([]model.OrganizationKeypoint, error) {
	if err := m.enter("KeypointsForOrganizations"); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	want := idSet(orgIDs)
	var out []model.OrganizationKeypoint
	for _, g := range m.fixture.OrganizationGrants {
		if _, ok := want[g.OrganizationID]; ok {
			out = append(out, g)
		}
	}
	return out, nil
}

func (m *MemoryStore) OrganizationKeypointsByKeypoints(ctx context.Context, keypointIDs []int64) ([]model.OrganizationKeypoint, error) {
	if err := m.enter("OrganizationKeypointsByKeypoints"); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	want := idSet(keypointIDs)
	var out []model.OrganizationKeypoint
	for _, g := range m.fixture.OrganizationGrants {
		if _, ok := want[g.KeypointID]; ok {
			out = append(out, g)
		}
	}
	return out, nil
}

func (m *MemoryStore) AllKeypointIDs(ctx context.Context) ([]int64, error) {
	if err := m.enter("AllKeypointIDs"); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var ids []int64
	for _, a := range m.fixture.PrimaryAssets {
		if a.KeypointID != nil {
			ids = append(ids, *a.KeypointID)
		}
	}
	for _, k := range m.fixture.Keypoints {
		ids = append(ids, k.KeypointID)
	}
	return UniqueIDs(ids), nil
}

func (m *MemoryStore) PrimaryAssetsByKeypoints(ctx context.Context, keypointIDs []int64) ([]model.PrimaryAsset, error) {
	if err := m.enter("PrimaryAssetsByKeypoints"); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	want := idSet(keypointIDs)
	var out []model.PrimaryAsset
	for _, a := range m.fixture.PrimaryAssets {
		if a.KeypointID == nil {
			continue
		}
		if _, ok := want[*a.KeypointID]; !ok {
			continue
		}
		a.Feeders = nil
		for _, f := range m.fixture.Feeders {
			if f.AssetID == a.ID {
				a.Feeders = append(a.Feeders, m.withEdges(f))
			}
		}
		out = append(out, a)
	}
	return out, nil
}

func (m *MemoryStore) FeedersByIDs(ctx context.Context, feederIDs []int64) ([]model.Feeder, error) {
	if err := m.enter("FeedersByIDs"); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	want := idSet(feederIDs)
	var out []model.Feeder
	for _, f := range m.fixture.Feeders {
		if _, ok := want[f.ID]; ok {
			out = append(out, m.withEdges(f))
		}
	}
	return out, nil
}

// withEdges attaches the owner identifier and the status-point edges with a known metric type.
// Caller holds the read lock.
func (m *MemoryStore) withEdges(f model.Feeder) model.Feeder {
	f.AssetKeypointID = nil
	for _, a := range m.fixture.PrimaryAssets {
		if a.ID == f.AssetID && a.KeypointID != nil {
			kp := *a.KeypointID
			f.AssetKeypointID = &kp
		}
	}
	f.StatusPoints = nil
	for _, e := range m.fixture.FeederStatusPoints {
		if e.FeederID == f.ID && e.MetricType != model.MetricUnknown {
			f.StatusPoints = append(f.StatusPoints, e)
		}
	}
	return f
}

func (m *MemoryStore) ExtendedKeypoints(ctx context.Context, keypointIDs []int64) ([]model.ExtendedKeypoint, error) {
	if err := m.enter("ExtendedKeypoints"); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	want := idSet(keypointIDs)
	var out []model.ExtendedKeypoint
	for _, k := range m.fixture.Keypoints {
		if _, ok := want[k.KeypointID]; ok {
			out = append(out, k)
		}
	}
	return out, nil
}

func (m *MemoryStore) FeederLinksByKeypoints(ctx context.Context, keypointIDs []int64) ([]model.FeederKeypoint, error) {
	if err := m.enter("FeederLinksByKeypoints"); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	want := idSet(keypointIDs)
	feeders := make(map[int64]struct{})
	for _, l := range m.fixture.FeederKeypoints {
		if _, ok := want[l.KeypointID]; ok {
			feeders[l.FeederID] = struct{}{}
		}
	}
	var out []model.FeederKeypoint
	for _, l := range m.fixture.FeederKeypoints {
		if _, ok := feeders[l.FeederID]; ok {
			out = append(out, l)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].FeederID != out[j].FeederID {
			return out[i].FeederID < out[j].FeederID
		}
		return out[i].KeypointID < out[j].KeypointID
	})
	return out, nil
}

func (m *MemoryStore) FeederLinksByFeeders(ctx context.Context, feederIDs []int64) ([]model.FeederKeypoint, error) {
	if err := m.enter("FeederLinksByFeeders"); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	want := idSet(feederIDs)
	var out []model.FeederKeypoint
	for _, l := range m.fixture.FeederKeypoints {
		if _, ok := want[l.FeederID]; ok {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *MemoryStore) StationsByIDs(ctx context.Context, stationIDs []int64) ([]model.StationPoint, error) {
	if err := m.enter("StationsByIDs"); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	want := idSet(stationIDs)
	var out []model.StationPoint
	for _, s := range m.fixture.Stations {
		if _, ok := want[s.StationID]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}

func nameSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set
}

func (m *MemoryStore) StatusByStations(ctx context.Context, stationIDs []int64, names []string) ([]model.StatusPoint, error) {
	if err := m.enter("StatusByStations"); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	want, wantNames := idSet(stationIDs), nameSet(names)
	var out []model.StatusPoint
	for _, p := range m.fixture.StatusPoints {
		_, okID := want[p.StationID]
		_, okName := wantNames[p.Name]
		if okID && okName {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *MemoryStore) AnalogByStations(ctx context.Context, stationIDs []int64, names []string) ([]model.AnalogPoint, error) {
	if err := m.enter("AnalogByStations"); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	want, wantNames := idSet(stationIDs), nameSet(names)
	var out []model.AnalogPoint
	for _, p := range m.fixture.AnalogPoints {
		_, okID := want[p.StationID]
		_, okName := wantNames[p.Name]
		if okID && okName {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *MemoryStore) AnalogByPointIDs(ctx context.Context, pointIDs []int64) ([]model.AnalogPoint, error) {
	if err := m.enter("AnalogByPointIDs"); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	want := idSet(pointIDs)
	var out []model.AnalogPoint
	for _, p := range m.fixture.AnalogPoints {
		if _, ok := want[p.PointID]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *MemoryStore) StatusByPointIDs(ctx context.Context, pointIDs []int64) ([]model.StatusPoint, error) {
	if err := m.enter("StatusByPointIDs"); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	want := idSet(pointIDs)
	var out []model.StatusPoint
	for _, p := range m.fixture.StatusPoints {
		if _, ok := want[p.PointID]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}
