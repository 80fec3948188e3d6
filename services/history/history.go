// Package history keeps a local archive of refresh output. The remote
// cache holds only the latest snapshot under a TTL; the archive retains a
// daily close series per symbol so history survives cache expiry and
// non-trading gaps.
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/WIGMarkets/wigmarkets-sub001/models"
)

// Point is one archived trading day for a symbol.
type Point struct {
	Date      string  `json:"date"`
	Close     float64 `json:"close"`
	Volume    int64   `json:"volume"`
	Change24H float64 `json:"change24h"`
}

// Archive is a sqlite-backed snapshot store. Writes are serialized; the
// archive is strictly best-effort and never fails a refresh run.
type Archive struct {
	db *sql.DB
	mu sync.Mutex
}

// Open creates the database file (and its directory) if needed.
func Open(path string) (*Archive, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create archive directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping archive: %w", err)
	}

	schema := `
		CREATE TABLE IF NOT EXISTS snapshots (
			symbol    TEXT NOT NULL,
			date      TEXT NOT NULL,
			close     REAL NOT NULL,
			volume    INTEGER NOT NULL DEFAULT 0,
			change24h REAL NOT NULL DEFAULT 0,
			PRIMARY KEY (symbol, date)
		)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create snapshots table: %w", err)
	}
	return &Archive{db: db}, nil
}

// Close releases the underlying database handle.
func (a *Archive) Close() error {
	return a.db.Close()
}

// RecordSnapshots upserts one row per symbol for runAt's calendar date.
// Re-running a refresh on the same day overwrites that day's rows.
func (a *Archive) RecordSnapshots(runAt time.Time, quotes map[string]models.QuoteSnapshot) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	tx, err := a.db.Begin()
	if err != nil {
		return fmt.Errorf("begin archive write: %w", err)
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO snapshots (symbol, date, close, volume, change24h) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare archive write: %w", err)
	}
	defer stmt.Close()

	date := runAt.Format("2006-01-02")
	for symbol, q := range quotes {
		if _, err := stmt.Exec(symbol, date, q.Close, q.Volume, q.Change24H); err != nil {
			tx.Rollback()
			return fmt.Errorf("archive %s: %w", symbol, err)
		}
	}
	return tx.Commit()
}

// DailyCloses returns up to days of archived points for a symbol in
// chronological order.
func (a *Archive) DailyCloses(symbol string, days int) ([]Point, error) {
	if days <= 0 {
		days = 30
	}
	rows, err := a.db.Query(`
		SELECT date, close, volume, change24h FROM snapshots
		WHERE symbol = ?
		ORDER BY date DESC
		LIMIT ?`, symbol, days)
	if err != nil {
		return nil, fmt.Errorf("query archive: %w", err)
	}
	defer rows.Close()

	var points []Point
	for rows.Next() {
		var p Point
		if err := rows.Scan(&p.Date, &p.Close, &p.Volume, &p.Change24H); err != nil {
			return nil, fmt.Errorf("scan archive row: %w", err)
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse into chronological order.
	for i, j := 0, len(points)-1; i < j; i, j = i+1, j-1 {
		points[i], points[j] = points[j], points[i]
	}
	return points, nil
}

// Prune deletes rows dated before the cutoff and reports how many went.
func (a *Archive) Prune(before time.Time) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	res, err := a.db.Exec(`DELETE FROM snapshots WHERE date < ?`, before.Format("2006-01-02"))
	if err != nil {
		return 0, fmt.Errorf("prune archive: %w", err)
	}
	return res.RowsAffected()
}
