package persistence

import (
	"time"

	"github.com/rflihmmm/pln-monitor-sub001/pkg/model"
)

// SampleFixture is a small two-region grid. It is what the memory driver serves
// when no fixture file is configured, and what the package tests run against.
//
//	DCC MAKASSAR (1) > UP3 MAKASSAR SELATAN (2) > ULP PANAKKUKANG (3): GI-100, LBS-5
//	DCC PALU (4)     > UP3 PALU (5)             > ULP TALISE (6):      GI-200, LBS-7
//
// GI-100 owns F1 (10 A, 2.5 MW, shared with LBS-5) and F2 (20 A, 3.5 MW).
// GI-200 owns F3 (40 A, 8 MW, shared with LBS-7).
func SampleFixture() Fixture {
	ts := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	str := func(s string) *string { return &s }
	id := func(v int64) *int64 { return &v }
	analog := func(pointID, station int64, name, value string) model.AnalogPoint {
		return model.AnalogPoint{PointID: pointID, StationID: station, Name: name, Value: str(value), UpdatedAt: ts}
	}

	return Fixture{
		Organizations: []model.Organization{
			{ID: 1, Name: "DCC MAKASSAR", Level: model.LevelRegion},
			{ID: 2, Name: "UP3 MAKASSAR SELATAN", Level: model.LevelArea, ParentID: id(1)},
			{ID: 3, Name: "ULP PANAKKUKANG", Level: model.LevelUnit, ParentID: id(2)},
			{ID: 4, Name: "DCC PALU", Level: model.LevelRegion},
			{ID: 5, Name: "UP3 PALU", Level: model.LevelArea, ParentID: id(4)},
			{ID: 6, Name: "ULP TALISE", Level: model.LevelUnit, ParentID: id(5)},
		},
		OrganizationGrants: []model.OrganizationKeypoint{
			{OrganizationID: 3, KeypointID: 100},
			{OrganizationID: 3, KeypointID: 5},
			{OrganizationID: 6, KeypointID: 200},
			{OrganizationID: 6, KeypointID: 7},
		},
		PrimaryAssets: []model.PrimaryAsset{
			{ID: 1, Name: "GI TELLO", KeypointID: id(100), Coordinate: "-5.1477,119.4327"},
			{ID: 2, Name: "GI PALU BARAT", KeypointID: id(200), Coordinate: "-0.8917,119.8707"},
		},
		Keypoints: []model.ExtendedKeypoint{
			{KeypointID: 5, Name: "LBS ANTANG", Coordinate: "100,50", ParentKeypointID: id(100)},
			{KeypointID: 7, Name: "LBS TALISE", Coordinate: "-0.8800,119.9000", ParentKeypointID: id(200)},
		},
		Feeders: []model.Feeder{
			{ID: 1, Name: "F1 TELLO", AssetID: 1},
			{ID: 2, Name: "F2 TELLO", AssetID: 1},
			{ID: 3, Name: "F3 PALU", AssetID: 2},
		},
		FeederKeypoints: []model.FeederKeypoint{
			{FeederID: 1, KeypointID: 5, Name: "LBS ANTANG"},
			{FeederID: 3, KeypointID: 7, Name: "LBS TALISE"},
		},
		FeederStatusPoints: []model.FeederStatusPoint{
			{FeederID: 1, PointID: 1001, MetricType: model.MetricCurrent},
			{FeederID: 1, PointID: 1002, MetricType: model.MetricPower},
			{FeederID: 1, PointID: 1003, MetricType: model.MetricBreaker},
			{FeederID: 2, PointID: 1011, MetricType: model.MetricCurrent},
			{FeederID: 2, PointID: 1012, MetricType: model.MetricPower},
			{FeederID: 3, PointID: 1021, MetricType: model.MetricCurrent},
			{FeederID: 3, PointID: 1022, MetricType: model.MetricPower},
		},
		Stations: []model.StationPoint{
			{StationID: 100, Name: "GI-100"},
			{StationID: 5, Name: "LBS-5"},
			{StationID: 200, Name: "GI-200"},
			{StationID: 7, Name: "LBS-7"},
		},
		StatusPoints: []model.StatusPoint{
			{PointID: 1, StationID: 100, Name: model.PointRTUStatus, Value: str("0"), UpdatedAt: ts},
			{PointID: 2, StationID: 5, Name: model.PointRTUStatus, Value: str("0"), UpdatedAt: ts},
			{PointID: 3, StationID: 200, Name: model.PointRTUStatus, Value: str("1"), UpdatedAt: ts},
			{PointID: 1003, Name: "CB", Value: str("1"), UpdatedAt: ts},
		},
		AnalogPoints: []model.AnalogPoint{
			analog(50, 5, model.PointCurrentR, "10"),
			analog(51, 5, model.PointCurrentS, "0"),
			analog(52, 5, model.PointCurrentT, "20"),
			analog(53, 5, model.PointVoltageAB, "20"),
			analog(54, 5, model.PointVoltageBC, "0"),
			analog(55, 5, model.PointVoltageAC, "20"),
			analog(70, 7, model.PointCurrentR, "5"),
			analog(71, 7, model.PointCurrentS, "5"),
			analog(72, 7, model.PointCurrentT, "5"),
			analog(73, 7, model.PointVoltageAB, "20"),
			analog(74, 7, model.PointVoltageBC, "20"),
			analog(75, 7, model.PointVoltageAC, "20"),
			analog(1001, 0, "AMP", "10"),
			analog(1002, 0, "MW", "2.5"),
			analog(1011, 0, "AMP", "20"),
			analog(1012, 0, "MW", "3.5"),
			analog(1021, 0, "AMP", "40"),
			analog(1022, 0, "MW", "8"),
		},
	}
}
