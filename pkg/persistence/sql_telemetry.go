// pkg/persistence/sql_telemetry.go
package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq" // "postgres" driver
	log "github.com/sirupsen/logrus"
	_ "modernc.org/sqlite" // "sqlite" driver

	"github.com/rflihmmm/pln-monitor-sub001/pkg/instrument"
	"github.com/rflihmmm/pln-monitor-sub001/pkg/model"
)

var _ TelemetryStore = (*SQLTelemetryStore)(nil)

// SQLTelemetryStore reads the external station/status/analog tables through database/sql.
// Supported drivers are "postgres" and "sqlite".
type SQLTelemetryStore struct {
	db      *sql.DB
	dialect dialect
	logger  log.FieldLogger
}

type dialect int

const (
	dialectPostgres dialect = iota
	dialectSQLite
)

// placeholders renders n bind markers starting at position from (1-based).
func (d dialect) placeholders(from, n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		if d == dialectPostgres {
			b.WriteString("$")
			b.WriteString(strconv.Itoa(from + i))
		} else {
			b.WriteString("?")
		}
	}
	return b.String()
}

// OpenSQLTelemetryStore opens and pings the telemetry database.
func OpenSQLTelemetryStore(ctx context.Context, driver, dsn string, logger log.FieldLogger) (*SQLTelemetryStore, error) {
	var d dialect
	switch driver {
	case "postgres":
		d = dialectPostgres
	case "sqlite":
		d = dialectSQLite
	default:
		return nil, fmt.Errorf("unsupported telemetry driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to open telemetry database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to ping telemetry database: %w", err)
	}
	logger.WithField("driver", driver).Info("telemetry database connection established")
	return &SQLTelemetryStore{db: db, dialect: d, logger: logger}, nil
}

// DB exposes the handle, mostly for seeding test fixtures.
func (s *SQLTelemetryStore) DB() *sql.DB { return s.db }

func (s *SQLTelemetryStore) Close() {
	s.logger.Info("closing telemetry database")
	if err := s.db.Close(); err != nil {
		s.logger.WithError(err).Warn("closing telemetry database failed")
	}
}

// StationsByIDs returns the station rows for the given identifiers.
func (s *SQLTelemetryStore) StationsByIDs(ctx context.Context, stationIDs []int64) (stations []model.StationPoint, err error) {
	if len(stationIDs) == 0 {
		return nil, nil
	}
	done := instrument.ObserveQuery("telemetry", "stations_by_ids")
	defer func() { done(err) }()

	query := `SELECT station_id, name FROM station_points WHERE station_id IN (` +
		s.dialect.placeholders(1, len(stationIDs)) + `) ORDER BY station_id`
	rows, err := s.db.QueryContext(ctx, query, int64Args(stationIDs)...)
	if err != nil {
		return nil, fmt.Errorf("failed to query stations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var st model.StationPoint
		var name sql.NullString
		if err := rows.Scan(&st.StationID, &name); err != nil {
			return nil, fmt.Errorf("failed to scan station row: %w", err)
		}
		st.Name = name.String
		stations = append(stations, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating station rows: %w", err)
	}
	return stations, nil
}

func (s *SQLTelemetryStore) StatusByStations(ctx context.Context, stationIDs []int64, names []string) ([]model.StatusPoint, error) {
	points, err := s.pointsByStations(ctx, "status_points", stationIDs, names)
	if err != nil {
		return nil, err
	}
	out := make([]model.StatusPoint, len(points))
	for i, p := range points {
		out[i] = model.StatusPoint(p)
	}
	return out, nil
}

func (s *SQLTelemetryStore) AnalogByStations(ctx context.Context, stationIDs []int64, names []string) ([]model.AnalogPoint, error) {
	return s.pointsByStations(ctx, "analog_points", stationIDs, names)
}

func (s *SQLTelemetryStore) AnalogByPointIDs(ctx context.Context, pointIDs []int64) ([]model.AnalogPoint, error) {
	return s.pointsByIDs(ctx, "analog_points", pointIDs)
}

func (s *SQLTelemetryStore) StatusByPointIDs(ctx context.Context, pointIDs []int64) ([]model.StatusPoint, error) {
	points, err := s.pointsByIDs(ctx, "status_points", pointIDs)
	if err != nil {
		return nil, err
	}
	out := make([]model.StatusPoint, len(points))
	for i, p := range points {
		out[i] = model.StatusPoint(p)
	}
	return out, nil
}

const pointColumns = `point_id, station_id, name, value, updated_at`

func (s *SQLTelemetryStore) pointsByStations(ctx context.Context, table string, stationIDs []int64, names []string) (points []model.AnalogPoint, err error) {
	if len(stationIDs) == 0 || len(names) == 0 {
		return nil, nil
	}
	done := instrument.ObserveQuery("telemetry", table+"_by_stations")
	defer func() { done(err) }()

	query := `SELECT ` + pointColumns + ` FROM ` + table +
		` WHERE station_id IN (` + s.dialect.placeholders(1, len(stationIDs)) + `)` +
		` AND name IN (` + s.dialect.placeholders(len(stationIDs)+1, len(names)) + `)` +
		` ORDER BY point_id`
	args := int64Args(stationIDs)
	for _, n := range names {
		args = append(args, n)
	}
	return s.queryPoints(ctx, query, args)
}

func (s *SQLTelemetryStore) pointsByIDs(ctx context.Context, table string, pointIDs []int64) (points []model.AnalogPoint, err error) {
	if len(pointIDs) == 0 {
		return nil, nil
	}
	done := instrument.ObserveQuery("telemetry", table+"_by_ids")
	defer func() { done(err) }()

	query := `SELECT ` + pointColumns + ` FROM ` + table +
		` WHERE point_id IN (` + s.dialect.placeholders(1, len(pointIDs)) + `) ORDER BY point_id`
	return s.queryPoints(ctx, query, int64Args(pointIDs))
}

func (s *SQLTelemetryStore) queryPoints(ctx context.Context, query string, args []any) ([]model.AnalogPoint, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query telemetry points: %w", err)
	}
	defer rows.Close()

	var points []model.AnalogPoint
	for rows.Next() {
		var p model.AnalogPoint
		var station sql.NullInt64
		var name, value sql.NullString
		var ts flexTime
		if err := rows.Scan(&p.PointID, &station, &name, &value, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan telemetry point row: %w", err)
		}
		p.StationID = station.Int64
		p.Name = name.String
		if value.Valid {
			v := value.String
			p.Value = &v
		}
		p.UpdatedAt = ts.Time
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating telemetry point rows: %w", err)
	}
	return points, nil
}

func int64Args(ids []int64) []any {
	args := make([]any, len(ids), len(ids)+16)
	for i, id := range ids {
		args[i] = id
	}
	return args
}

// flexTime scans timestamps from drivers that hand them back as time.Time, text or unix seconds.
// NULL and unparseable values leave the zero time.
type flexTime struct {
	time.Time
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
}

func (t *flexTime) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		t.Time = time.Time{}
	case time.Time:
		t.Time = v
	case int64:
		t.Time = time.Unix(v, 0).UTC()
	case []byte:
		t.Time = parseTimeText(string(v))
	case string:
		t.Time = parseTimeText(v)
	default:
		return fmt.Errorf("unsupported timestamp type %T", src)
	}
	return nil
}

func parseTimeText(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts
		}
	}
	return time.Time{}
}
