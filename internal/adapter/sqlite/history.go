// Package sqlite stores prediction history in a SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/couchcryptid/disaster-prediction/internal/domain"
)

// SinkName labels this store in metrics and logs.
const SinkName = "sqlite"

// MaxLimit caps how many records Recent returns.
const MaxLimit = 500

// Fixed-width UTC timestamps sort lexically in time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// HistoryDB is a prediction history repository.
type HistoryDB struct {
	db *sql.DB
}

// NewHistoryDB opens (or creates) the database at path and applies the schema.
// ":memory:" opens a private in-memory database.
func NewHistoryDB(path string) (*HistoryDB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}
	// SQLite serializes writers; one connection also keeps ":memory:" a single database.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping history database: %w", err)
	}

	h := &HistoryDB{db: db}
	if err := h.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate history database: %w", err)
	}
	return h, nil
}

func (h *HistoryDB) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS disaster_history (
			id TEXT PRIMARY KEY,
			latitude REAL NOT NULL,
			longitude REAL NOT NULL,
			location TEXT,
			parameters TEXT,
			disaster_type TEXT NOT NULL,
			type_confidence REAL NOT NULL,
			possible_deaths REAL NOT NULL,
			infrastructure_loss REAL NOT NULL,
			severity REAL NOT NULL,
			bundle_version TEXT NOT NULL,
			timestamp TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_disaster_history_timestamp ON disaster_history(timestamp);
	`
	_, err := h.db.Exec(schema)
	return err
}

// Name implements history.Sink.
func (h *HistoryDB) Name() string { return SinkName }

// Save inserts one record. Saving the same ID twice is an error.
func (h *HistoryDB) Save(ctx context.Context, rec domain.PredictionRecord) error {
	params, err := json.Marshal(rec.Parameters)
	if err != nil {
		return fmt.Errorf("marshal parameters: %w", err)
	}

	_, err = h.db.ExecContext(ctx, `
		INSERT INTO disaster_history (
			id, latitude, longitude, location, parameters,
			disaster_type, type_confidence, possible_deaths, infrastructure_loss, severity,
			bundle_version, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Latitude, rec.Longitude, nullString(rec.Location), string(params),
		rec.Prediction.DisasterType, rec.Prediction.TypeConfidence,
		rec.Prediction.PossibleDeaths, rec.Prediction.InfrastructureLoss, rec.Prediction.Severity,
		rec.BundleVersion, rec.Timestamp.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("insert prediction %s: %w", rec.ID, err)
	}
	return nil
}

// Recent returns up to limit records, newest first. Limits outside
// [1, MaxLimit] are clamped.
func (h *HistoryDB) Recent(ctx context.Context, limit int) ([]domain.PredictionRecord, error) {
	limit = min(max(limit, 1), MaxLimit)

	rows, err := h.db.QueryContext(ctx, `
		SELECT id, latitude, longitude, location, parameters,
			disaster_type, type_confidence, possible_deaths, infrastructure_loss, severity,
			bundle_version, timestamp
		FROM disaster_history
		ORDER BY timestamp DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	records := make([]domain.PredictionRecord, 0, limit)
	for rows.Next() {
		var (
			rec      domain.PredictionRecord
			location sql.NullString
			params   sql.NullString
			ts       string
		)
		if err := rows.Scan(
			&rec.ID, &rec.Latitude, &rec.Longitude, &location, &params,
			&rec.Prediction.DisasterType, &rec.Prediction.TypeConfidence,
			&rec.Prediction.PossibleDeaths, &rec.Prediction.InfrastructureLoss, &rec.Prediction.Severity,
			&rec.BundleVersion, &ts,
		); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		rec.Location = location.String
		if params.Valid && params.String != "" {
			if err := json.Unmarshal([]byte(params.String), &rec.Parameters); err != nil {
				return nil, fmt.Errorf("decode parameters of %s: %w", rec.ID, err)
			}
		}
		if rec.Timestamp, err = time.Parse(timeLayout, ts); err != nil {
			return nil, fmt.Errorf("decode timestamp of %s: %w", rec.ID, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return records, nil
}

// CheckReadiness pings the database.
func (h *HistoryDB) CheckReadiness(ctx context.Context) error {
	return h.db.PingContext(ctx)
}

// Close closes the database.
func (h *HistoryDB) Close() error {
	return h.db.Close()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
