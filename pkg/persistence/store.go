// pkg/persistence/store.go
package persistence

import (
	"context" // Use context for cancellation and deadlines
	"errors"

	"github.com/rflihmmm/pln-monitor-sub001/pkg/model"
)

// ErrNotFound is returned (wrapped) when a single-row lookup finds nothing.
var ErrNotFound = errors.New("resource not found")

// DefaultChunkSize bounds the number of keys sent in one key-set query.
const DefaultChunkSize = 100

// TopologyStore is the read-only view of the local authorization and asset tables.
//
// Every method taking a key set returns rows for the keys that exist and
// silently skips the rest. An empty key set returns an empty result without
// a round-trip.
type TopologyStore interface {
	// OrganizationByID returns ErrNotFound for unknown ids.
	OrganizationByID(ctx context.Context, id int64) (*model.Organization, error)

	// ChildOrganizations returns the direct children of every given parent, one query per frontier.
	ChildOrganizations(ctx context.Context, parentIDs []int64) ([]model.Organization, error)

	// OrganizationsByIDs is used when walking up the tree.
	OrganizationsByIDs(ctx context.Context, ids []int64) ([]model.Organization, error)

	// KeypointsForOrganizations returns the grants held by the given organizations.
	KeypointsForOrganizations(ctx context.Context, orgIDs []int64) ([]model.OrganizationKeypoint, error)

	// OrganizationKeypointsByKeypoints is the reverse lookup: which organizations see these keypoints.
	OrganizationKeypointsByKeypoints(ctx context.Context, keypointIDs []int64) ([]model.OrganizationKeypoint, error)

	// AllKeypointIDs is the unrestricted scope: primary asset identifiers plus extended keypoint identifiers.
	AllKeypointIDs(ctx context.Context) ([]int64, error)

	// PrimaryAssetsByKeypoints loads the assets registered under the identifiers, with their feeders
	// and each feeder's status-point edges.
	PrimaryAssetsByKeypoints(ctx context.Context, keypointIDs []int64) ([]model.PrimaryAsset, error)

	// ExtendedKeypoints returns the extended registry rows for the identifiers.
	ExtendedKeypoints(ctx context.Context, keypointIDs []int64) ([]model.ExtendedKeypoint, error)

	// FeederLinksByKeypoints returns every feeder_keypoints row of every feeder that touches
	// one of the identifiers, so a feeder's full keypoint fan-out is known.
	FeederLinksByKeypoints(ctx context.Context, keypointIDs []int64) ([]model.FeederKeypoint, error)

	// FeederLinksByFeeders returns the feeder_keypoints rows of the given feeders.
	FeederLinksByFeeders(ctx context.Context, feederIDs []int64) ([]model.FeederKeypoint, error)

	// FeedersByIDs loads feeders with their status-point edges.
	FeedersByIDs(ctx context.Context, feederIDs []int64) ([]model.Feeder, error)

	Close()
}

// TelemetryStore is the read-only view of the external operational data store.
type TelemetryStore interface {
	StationsByIDs(ctx context.Context, stationIDs []int64) ([]model.StationPoint, error)

	// StatusByStations returns status points of the stations whose name is in names.
	StatusByStations(ctx context.Context, stationIDs []int64, names []string) ([]model.StatusPoint, error)

	// AnalogByStations returns analog points of the stations whose name is in names.
	AnalogByStations(ctx context.Context, stationIDs []int64, names []string) ([]model.AnalogPoint, error)

	AnalogByPointIDs(ctx context.Context, pointIDs []int64) ([]model.AnalogPoint, error)
	StatusByPointIDs(ctx context.Context, pointIDs []int64) ([]model.StatusPoint, error)

	Close()
}
