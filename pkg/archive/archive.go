// Package archive keeps a history of fetched station readings in PostgreSQL
// (with PostGIS) or SQLite.
package archive

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/kass/go-aqi-viz/pkg/models"
)

// Supported drivers
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

// ErrUnsupportedDriver is returned for drivers other than postgres and sqlite3
var ErrUnsupportedDriver = errors.New("unsupported archive driver")

// Reading is one archived station observation
type Reading struct {
	Station   models.Station `json:"station"`
	FetchedAt time.Time      `json:"fetched_at"`
}

// Store writes and reads archived readings
type Store struct {
	db     *sql.DB
	driver string
	q      queries
}

// Open connects to the archive database and verifies the connection
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	if _, ok := dialects[driver]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if driver == DriverSQLite {
		// a single writer; also keeps ":memory:" databases on one connection
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(25)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	return NewStore(db, driver)
}

// NewStore wraps an already opened database
func NewStore(db *sql.DB, driver string) (*Store, error) {
	q, ok := dialects[driver]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
	}
	return &Store{db: db, driver: driver, q: q}, nil
}

// Driver returns the database driver name
func (s *Store) Driver() string {
	return s.driver
}

// InitSchema creates the readings table and its indexes if they do not exist
func (s *Store) InitSchema(ctx context.Context) error {
	for _, query := range s.q.schema {
		if _, err := s.db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query '%s': %w", query, err)
		}
	}
	return nil
}

// Record stores every station of dir in one transaction and returns the number
// of rows written
func (s *Store) Record(ctx context.Context, dir models.Directory) (int, error) {
	if len(dir.Stations) == 0 {
		return 0, nil
	}
	fetchedAt := dir.FetchedAt.UTC()
	if dir.FetchedAt.IsZero() {
		fetchedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, s.q.insert)
	if err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for i, st := range dir.Stations {
		var aqi sql.NullInt64
		if st.AQI != nil {
			aqi = sql.NullInt64{Int64: int64(*st.AQI), Valid: true}
		}
		_, err := stmt.ExecContext(ctx,
			st.Name, st.County, aqi, st.Status, st.PublishTime,
			st.Location.Lon, st.Location.Lat, fetchedAt)
		if err != nil {
			_ = tx.Rollback()
			return 0, fmt.Errorf("failed to insert station %d (%s): %w", i, st.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit readings: %w", err)
	}
	return len(dir.Stations), nil
}

// History returns the most recent readings of one station, newest first.
// A non-positive limit returns every reading.
func (s *Store) History(ctx context.Context, station string, limit int) ([]Reading, error) {
	if limit <= 0 {
		limit = math.MaxInt32
	}

	rows, err := s.db.QueryContext(ctx, s.q.history, station, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("close history rows", "error", err)
		}
	}()

	var out []Reading
	for rows.Next() {
		var (
			r   Reading
			aqi sql.NullInt64
		)
		if err := rows.Scan(&r.Station.Name, &r.Station.County, &aqi, &r.Station.Status,
			&r.Station.PublishTime, &r.Station.Location.Lat, &r.Station.Location.Lon, &r.FetchedAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		if aqi.Valid {
			v := int(aqi.Int64)
			r.Station.AQI = &v
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return out, nil
}

// Count returns the number of archived readings
func (s *Store) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM aqi_readings").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count readings: %w", err)
	}
	return count, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}
