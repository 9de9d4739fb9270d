package source

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"occupancy-classifier/internal/model"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS households(
	id INTEGER PRIMARY KEY,
	multiple_occupancy BOOLEAN NOT NULL
);
CREATE TABLE IF NOT EXISTS motion(
	id INTEGER PRIMARY KEY,
	home_id INTEGER NOT NULL REFERENCES households(id),
	datetime TEXT NOT NULL,
	location TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS motion_home_id ON motion(home_id);`

func openSQLite(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(`PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;`); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// LoadSQLite reads the households and motion tables.
func LoadSQLite(ctx context.Context, path string) (*Relations, error) {
	db, err := openSQLite(path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	defer db.Close()

	rel := &Relations{}

	rows, err := db.QueryContext(ctx, `SELECT id, multiple_occupancy FROM households ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query households: %w", err)
	}
	for rows.Next() {
		var h model.Household
		if err := rows.Scan(&h.ID, &h.MultipleOccupancy); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan household: %w", err)
		}
		rel.Households = append(rel.Households, h)
	}
	if err := closeRows(rows); err != nil {
		return nil, err
	}

	rows, err = db.QueryContext(ctx, `SELECT id, home_id, datetime, location FROM motion ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query motion: %w", err)
	}
	for rows.Next() {
		var (
			e  model.MotionEvent
			ts any
		)
		if err := rows.Scan(&e.ID, &e.HomeID, &ts, &e.Location); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan motion event: %w", err)
		}
		if e.Timestamp, err = timestampValue(ts); err != nil {
			rows.Close()
			return nil, fmt.Errorf("motion event %d: %w", e.ID, err)
		}
		rel.Motion = append(rel.Motion, e)
	}
	if err := closeRows(rows); err != nil {
		return nil, err
	}

	return rel, nil
}

func closeRows(rows *sql.Rows) error {
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	return rows.Close()
}

// WriteSQLite creates the tables if needed and inserts both relations in
// one transaction. Existing rows with the same id are replaced.
func WriteSQLite(ctx context.Context, path string, rel *Relations) error {
	db, err := openSQLite(path)
	if err != nil {
		return fmt.Errorf("open sqlite %s: %w", path, err)
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, h := range rel.Households {
		if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO households(id, multiple_occupancy) VALUES(?, ?)`,
			h.ID, h.MultipleOccupancy); err != nil {
			return fmt.Errorf("insert household %d: %w", h.ID, err)
		}
	}
	for _, e := range rel.Motion {
		if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO motion(id, home_id, datetime, location) VALUES(?, ?, ?, ?)`,
			e.ID, e.HomeID, e.Timestamp.Format(timestampFormat), e.Location); err != nil {
			return fmt.Errorf("insert motion event %d: %w", e.ID, err)
		}
	}
	return tx.Commit()
}
