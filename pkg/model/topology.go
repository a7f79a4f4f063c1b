// pkg/model/topology.go
package model

import (
	"encoding/json"
	"strings"
)

// Organization levels, root first.
const (
	LevelRegion = 1 // top-level region (DCC)
	LevelArea   = 2 // mid-level area (UP3)
	LevelUnit   = 3 // leaf service unit (ULP)
)

// Organization is one node of the authorization tree.
// Children are not stored; they are found by reverse lookup on ParentID.
type Organization struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Level    int    `json:"level"`
	ParentID *int64 `json:"parentId,omitempty"`
}

// OrganizationKeypoint grants an organization visibility of one telemetry identifier.
type OrganizationKeypoint struct {
	OrganizationID int64 `json:"organizationId"`
	KeypointID     int64 `json:"keypointId"`
}

// PrimaryAsset is a primary substation (GI). It owns its feeders.
type PrimaryAsset struct {
	ID         int64    `json:"id"`
	Name       string   `json:"name"`
	KeypointID *int64   `json:"keypointId,omitempty"` // telemetry identifier, when the asset is telemetered
	Coordinate string   `json:"coordinate"`           // "lat,lng" as stored
	Feeders    []Feeder `json:"feeders,omitempty"`
}

// ExtendedKeypoint is a standalone telemetered asset (switches, reclosers, ...).
type ExtendedKeypoint struct {
	KeypointID       int64  `json:"keypointId"`
	Name             string `json:"name"`
	Coordinate       string `json:"coordinate"`
	ParentKeypointID *int64 `json:"parentKeypointId,omitempty"`
}

// Feeder is an outgoing line of a primary asset.
type Feeder struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	AssetID int64  `json:"assetId"`

	// AssetKeypointID is the owning asset's telemetry identifier, filled on load.
	AssetKeypointID *int64              `json:"assetKeypointId,omitempty"`
	StatusPoints    []FeederStatusPoint `json:"statusPoints,omitempty"`
}

// FeederKeypoint links a feeder to a telemetry identifier measured on it.
type FeederKeypoint struct {
	FeederID   int64  `json:"feederId"`
	KeypointID int64  `json:"keypointId"`
	Name       string `json:"name"`
}

// FeederStatusPoint binds a telemetry point to one metric of a feeder.
type FeederStatusPoint struct {
	FeederID   int64      `json:"feederId"`
	PointID    int64      `json:"pointId"`
	MetricType MetricType `json:"metricType"`
}

// MetricType tags what a feeder status point measures.
type MetricType string

const (
	MetricUnknown MetricType = ""
	MetricCurrent MetricType = "current"
	MetricPower   MetricType = "power"
	MetricBreaker MetricType = "breaker"
)

// ParseMetricType maps the tags found in the topology tables onto MetricType.
func ParseMetricType(tag string) MetricType {
	switch strings.ToUpper(strings.TrimSpace(tag)) {
	case "AMP", "CURRENT", "IS", "I":
		return MetricCurrent
	case "MW", "POWER", "P":
		return MetricPower
	case "PMT", "CB", "BREAKER", "STATUS":
		return MetricBreaker
	default:
		return MetricUnknown
	}
}

// UnmarshalJSON accepts any stored tag spelling.
func (m *MetricType) UnmarshalJSON(b []byte) error {
	var tag string
	if err := json.Unmarshal(b, &tag); err != nil {
		return err
	}
	*m = ParseMetricType(tag)
	return nil
}
