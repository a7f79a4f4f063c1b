package model

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// Point names read from the telemetry store.
const (
	PointRTUStatus = "RTU-STAT"

	PointCurrentR = "IR"
	PointCurrentS = "IS"
	PointCurrentT = "IT"

	PointVoltageAB = "KV-AB"
	PointVoltageBC = "KV-BC"
	PointVoltageAC = "KV-AC"

	PointFaultR = "IF-R"
	PointFaultS = "IF-S"
	PointFaultT = "IF-T"
	PointFaultN = "IF-N"

	PointPowerFactor = "PF"
)

var (
	PhaseCurrentNames = []string{PointCurrentR, PointCurrentS, PointCurrentT}
	LineVoltageNames  = []string{PointVoltageAB, PointVoltageBC, PointVoltageAC}
	FaultCurrentNames = []string{PointFaultR, PointFaultS, PointFaultT, PointFaultN}
)

// AnalogNames is the recognised analog name set fetched per identifier.
func AnalogNames() []string {
	names := make([]string, 0, 11)
	names = append(names, PhaseCurrentNames...)
	names = append(names, LineVoltageNames...)
	names = append(names, FaultCurrentNames...)
	return append(names, PointPowerFactor)
}

// StationPoint identifies a telemetered station. The name prefix encodes the entity type.
type StationPoint struct {
	StationID int64  `json:"stationId"`
	Name      string `json:"name"`
}

// StatusPoint is a discrete point of the external store.
type StatusPoint struct {
	PointID   int64     `json:"pointId"`
	StationID int64     `json:"stationId"`
	Name      string    `json:"name"`
	Value     *string   `json:"value"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// AnalogPoint is a measured point of the external store.
type AnalogPoint struct {
	PointID   int64     `json:"pointId"`
	StationID int64     `json:"stationId"`
	Name      string    `json:"name"`
	Value     *string   `json:"value"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Reading is a point value after the store row has been picked.
type Reading struct {
	PointID   int64
	Raw       *string
	UpdatedAt time.Time
}

// Float returns the numeric value; ok is false for NULL, non-numeric and non-finite values.
func (r Reading) Float() (float64, bool) {
	if r.Raw == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(*r.Raw), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// Newer reports whether r should replace cur when both describe the same point name.
// Latest timestamp wins; equal timestamps fall back to the lowest point id.
func (r Reading) Newer(cur Reading) bool {
	if !r.UpdatedAt.Equal(cur.UpdatedAt) {
		return r.UpdatedAt.After(cur.UpdatedAt)
	}
	return r.PointID < cur.PointID
}
