package engine

import (
	"github.com/rflihmmm/pln-monitor-sub001/pkg/compute"
	"github.com/rflihmmm/pln-monitor-sub001/pkg/model"
)

// Status values of a keypoint.
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// KeypointFilter narrows the keypoint list. Zero values select everything.
type KeypointFilter struct {
	Type   *model.EntityType `json:"type,omitempty"`
	Status string            `json:"status,omitempty"`
	IDs    []int64           `json:"ids,omitempty"`
}

type LoadData struct {
	LoadMW     string `json:"load-mw"`
	LoadIS     string `json:"load-is"`
	LastUpdate string `json:"lastUpdate"`
}

type FeederLoad struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	LoadIS string `json:"load-is"`
	LoadMW string `json:"load-mw"`
}

// Keypoint is one entry of the flat keypoint list.
type Keypoint struct {
	ID         int64             `json:"id"`
	Code       string            `json:"code"`
	Name       string            `json:"name"`
	Type       model.EntityType  `json:"type"`
	Coordinate *model.Coordinate `json:"coordinate"`
	Parent     *int64            `json:"parent"`
	Status     string            `json:"status"`
	Data       LoadData          `json:"data"`
	Feeder     []FeederLoad      `json:"feeder"` // null unless the keypoint is a primary substation
}

// KeypointDetail extends a list entry with every recognised reading.
type KeypointDetail struct {
	Keypoint
	Voltage       string            `json:"voltage"`
	PowerFactor   string            `json:"pf"`
	ApparentPower string            `json:"apparentPower"`
	Currents      map[string]string `json:"currents"`
	Voltages      map[string]string `json:"voltages"`
	FaultCurrents map[string]string `json:"faultCurrents"`
	Feeders       []Feeder          `json:"feeders"`
}

type StatusCount struct {
	Total    int `json:"total"`
	Active   int `json:"active"`
	Inactive int `json:"inactive"`
}

// Summary counts the keypoints of a scope by type and status.
type Summary struct {
	StatusCount
	ByType map[string]StatusCount `json:"byType"`
}

// Feeder is a feeder total with its breaker state.
type Feeder struct {
	ID         int64                `json:"id"`
	Name       string               `json:"name"`
	AssetID    int64                `json:"assetId"`
	LoadIS     string               `json:"load-is"`
	LoadMW     string               `json:"load-mw"`
	Breaker    compute.BreakerState `json:"breaker"`
	Keypoints  []int64              `json:"keypoints"`
	LastUpdate string               `json:"lastUpdate"`
}

type Total struct {
	Power   string `json:"power"`
	Current string `json:"current"`
}

// MidRegion is one UP3 total.
type MidRegion struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Power     string `json:"power"`
	Current   string `json:"current"`
	Corrected bool   `json:"corrected"`
	Direct    bool   `json:"direct"` // keypoints granted to the DCC itself
}

// TopRegion is one DCC total with its UP3 breakdown.
type TopRegion struct {
	ID      int64       `json:"id"`
	Name    string      `json:"name"`
	Power   string      `json:"power"`
	Current string      `json:"current"`
	UP3     []MidRegion `json:"up3"`
}

// Regions is the region rollup of a scope.
type Regions struct {
	DCC        []TopRegion `json:"dcc"`
	GrandTotal []Total     `json:"grandTotal"`
}
