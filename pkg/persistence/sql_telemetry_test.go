package persistence

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rflihmmm/pln-monitor-sub001/pkg/logging"
)

const telemetrySchema = `
CREATE TABLE station_points (station_id INTEGER PRIMARY KEY, name TEXT);
CREATE TABLE status_points (point_id INTEGER PRIMARY KEY, station_id INTEGER, name TEXT, value TEXT, updated_at TIMESTAMP);
CREATE TABLE analog_points (point_id INTEGER PRIMARY KEY, station_id INTEGER, name TEXT, value TEXT, updated_at TIMESTAMP);
`

func openSQLiteTelemetry(t *testing.T) *SQLTelemetryStore {
	t.Helper()
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "telemetry.db")
	s, err := OpenSQLTelemetryStore(ctx, "sqlite", dsn, logging.Discard())
	require.NoError(t, err)
	t.Cleanup(s.Close)

	_, err = s.DB().ExecContext(ctx, telemetrySchema)
	require.NoError(t, err)

	ts := "2024-05-01T10:00:00Z"
	_, err = s.DB().ExecContext(ctx, `
INSERT INTO station_points VALUES (100, 'GI-100'), (5, 'LBS-5'), (7, NULL);
INSERT INTO status_points VALUES
  (1, 100, 'RTU-STAT', '0', '`+ts+`'),
  (2, 5, 'RTU-STAT', '1', '`+ts+`'),
  (3, 5, 'OTHER', '0', '`+ts+`');
INSERT INTO analog_points VALUES
  (10, 5, 'IR', '10', '`+ts+`'),
  (11, 5, 'IS', '20', '`+ts+`'),
  (12, 5, 'IT', NULL, '`+ts+`'),
  (13, 100, 'KV-AB', 'n/a', '`+ts+`');
`)
	require.NoError(t, err)
	return s
}

func TestSQLTelemetryStore(t *testing.T) {
	s := openSQLiteTelemetry(t)
	ctx := context.Background()
	want := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	stations, err := s.StationsByIDs(ctx, []int64{5, 7, 100, 999})
	require.NoError(t, err)
	require.Len(t, stations, 3)
	assert.Equal(t, "LBS-5", stations[0].Name)
	assert.Equal(t, "", stations[1].Name)

	status, err := s.StatusByStations(ctx, []int64{5, 100}, []string{"RTU-STAT"})
	require.NoError(t, err)
	require.Len(t, status, 2)
	assert.Equal(t, "0", *status[0].Value)
	assert.True(t, want.Equal(status[0].UpdatedAt), status[0].UpdatedAt)

	analog, err := s.AnalogByStations(ctx, []int64{5}, []string{"IR", "IS", "IT"})
	require.NoError(t, err)
	require.Len(t, analog, 3)
	assert.Nil(t, analog[2].Value)

	byID, err := s.AnalogByPointIDs(ctx, []int64{13, 404})
	require.NoError(t, err)
	require.Len(t, byID, 1)
	assert.Equal(t, "n/a", *byID[0].Value)

	sByID, err := s.StatusByPointIDs(ctx, []int64{3})
	require.NoError(t, err)
	require.Len(t, sByID, 1)
	assert.Equal(t, "OTHER", sByID[0].Name)

	empty, err := s.AnalogByStations(ctx, nil, []string{"IR"})
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestOpenSQLTelemetryStoreRejectsDriver(t *testing.T) {
	_, err := OpenSQLTelemetryStore(context.Background(), "godror", "", logging.Discard())
	assert.Error(t, err)
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "$3, $4", dialectPostgres.placeholders(3, 2))
	assert.Equal(t, "?, ?, ?", dialectSQLite.placeholders(1, 3))
}

func TestFlexTime(t *testing.T) {
	var ft flexTime
	require.NoError(t, ft.Scan("2024-05-01 10:00:00"))
	assert.Equal(t, 2024, ft.Year())
	require.NoError(t, ft.Scan(int64(0)))
	assert.Equal(t, int64(0), ft.Unix())
	require.NoError(t, ft.Scan(nil))
	assert.True(t, ft.IsZero())
	assert.Error(t, ft.Scan(3.5))
}
