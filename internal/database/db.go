package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/jgoulah/dropcountr/pkg/models"
	_ "modernc.org/sqlite"
)

const timeLayout = time.RFC3339

// DB wraps the database connection
type DB struct {
	conn *sql.DB
	loc  *time.Location
}

// New creates a new database connection and initializes the schema.
// Stored times are read back in loc.
func New(dbPath string, loc *time.Location) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if loc == nil {
		loc = time.UTC
	}

	db := &DB{conn: conn, loc: loc}
	if err := db.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// initSchema creates the necessary tables
func (db *DB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS usage_data (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		service_connection_id INTEGER NOT NULL,
		period TEXT NOT NULL,
		during TEXT NOT NULL,
		start_time TEXT NOT NULL,
		end_time TEXT NOT NULL,
		total_gallons REAL NOT NULL CHECK (total_gallons >= 0),
		irrigation_gallons REAL NOT NULL DEFAULT 0,
		irrigation_events REAL NOT NULL DEFAULT 0,
		is_leaking INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		published INTEGER DEFAULT 0,
		UNIQUE(service_connection_id, period, start_time)
	);
	CREATE INDEX IF NOT EXISTS idx_usage_connection ON usage_data(service_connection_id);
	CREATE INDEX IF NOT EXISTS idx_usage_start_time ON usage_data(start_time);
	CREATE INDEX IF NOT EXISTS idx_usage_published ON usage_data(published);
	`

	_, err := db.conn.Exec(schema)
	return err
}

// InsertUsage stores a usage record. An existing record for the same
// connection, period and start time is updated in place, keeping its
// published flag only when the values did not change.
func (db *DB) InsertUsage(serviceConnectionID int, period models.Period, data models.UsageData) (bool, error) {
	query := `
	INSERT INTO usage_data (service_connection_id, period, during, start_time, end_time,
		total_gallons, irrigation_gallons, irrigation_events, is_leaking, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(service_connection_id, period, start_time) DO UPDATE SET
		during = excluded.during,
		end_time = excluded.end_time,
		total_gallons = excluded.total_gallons,
		irrigation_gallons = excluded.irrigation_gallons,
		irrigation_events = excluded.irrigation_events,
		is_leaking = excluded.is_leaking,
		published = 0
	WHERE total_gallons != excluded.total_gallons
		OR irrigation_gallons != excluded.irrigation_gallons
		OR irrigation_events != excluded.irrigation_events
		OR is_leaking != excluded.is_leaking
	`

	createdAt := time.Now().UTC().Format(time.RFC3339)

	res, err := db.conn.Exec(query,
		serviceConnectionID,
		string(period),
		data.During,
		data.Start.Format(timeLayout),
		data.End.Format(timeLayout),
		data.TotalGallons,
		data.IrrigationGallons,
		data.IrrigationEvents,
		data.IsLeaking,
		createdAt,
	)
	if err != nil {
		return false, fmt.Errorf("inserting usage data: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("inserting usage data: %w", err)
	}
	return n > 0, nil
}

// ListUsage retrieves stored usage for a service connection, newest first
func (db *DB) ListUsage(serviceConnectionID int) ([]models.UsageRecord, error) {
	return db.queryUsage(`
	SELECT id, service_connection_id, period, during, start_time, end_time,
		total_gallons, irrigation_gallons, irrigation_events, is_leaking, published
	FROM usage_data
	WHERE service_connection_id = ?
	ORDER BY start_time DESC
	`, serviceConnectionID)
}

// ListUnpublishedUsage retrieves unpublished usage for a service connection, oldest first
func (db *DB) ListUnpublishedUsage(serviceConnectionID int) ([]models.UsageRecord, error) {
	return db.queryUsage(`
	SELECT id, service_connection_id, period, during, start_time, end_time,
		total_gallons, irrigation_gallons, irrigation_events, is_leaking, published
	FROM usage_data
	WHERE service_connection_id = ? AND published = 0
	ORDER BY start_time ASC
	`, serviceConnectionID)
}

// ServiceConnectionIDs lists every connection with stored usage
func (db *DB) ServiceConnectionIDs() ([]int, error) {
	rows, err := db.conn.Query(`SELECT DISTINCT service_connection_id FROM usage_data ORDER BY service_connection_id`)
	if err != nil {
		return nil, fmt.Errorf("querying service connections: %w", err)
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (db *DB) queryUsage(query string, args ...any) ([]models.UsageRecord, error) {
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying usage data: %w", err)
	}
	defer rows.Close()

	var results []models.UsageRecord
	for rows.Next() {
		var rec models.UsageRecord
		var period, startStr, endStr string

		if err := rows.Scan(&rec.ID, &rec.ServiceConnectionID, &period, &rec.During, &startStr, &endStr,
			&rec.TotalGallons, &rec.IrrigationGallons, &rec.IrrigationEvents, &rec.IsLeaking, &rec.Published); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		rec.Period = models.Period(period)

		rec.Start, err = time.Parse(timeLayout, startStr)
		if err != nil {
			return nil, fmt.Errorf("parsing start_time: %w", err)
		}
		rec.End, err = time.Parse(timeLayout, endStr)
		if err != nil {
			return nil, fmt.Errorf("parsing end_time: %w", err)
		}
		rec.Start = rec.Start.In(db.loc)
		rec.End = rec.End.In(db.loc)

		results = append(results, rec)
	}

	return results, rows.Err()
}

// MarkPublished marks a usage record as published
func (db *DB) MarkPublished(id int) error {
	query := `UPDATE usage_data SET published = 1 WHERE id = ?`
	_, err := db.conn.Exec(query, id)
	if err != nil {
		return fmt.Errorf("marking record as published: %w", err)
	}
	return nil
}
