// Package popdb persists filtering results to a popcycle SQLite database.
package popdb

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/seaflowlab/seafilter/internal/errors"
	"github.com/seaflowlab/seafilter/internal/filter"
)

// DB wraps a popcycle database. All writes go through a single connection
// in WAL mode; the filtering pipeline funnels every save through one
// persistence goroutine, so contention stays low.
type DB struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// Open opens or creates a popcycle database at path and ensures the
// filtering tables exist.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, errors.NewDBError(errors.CodeOpenFailed, "opening database "+path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	d := &DB{db: db, path: path}
	for _, stmt := range allSchemaSQL() {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, errors.NewDBError(errors.CodeOpenFailed, "creating schema", err)
		}
	}
	return d, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// Path returns the database file path.
func (d *DB) Path() string {
	return d.path
}

// SaveFilterParams stores one new filter parameter set. Every row gets
// the same fresh id and timestamp, making the set the latest in the
// database. The validated set is returned with its assigned ID.
func (d *DB) SaveFilterParams(ctx context.Context, rows []filter.Params) (*filter.ParamSet, error) {
	id := uuid.New().String()
	ps, err := filter.NewParamSet(id, rows)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.NewDBError(errors.CodeSaveFailed, "starting transaction", err)
	}
	defer tx.Rollback()

	date := time.Now().UTC().Format(time.RFC3339)
	for _, p := range ps.Rows() {
		_, err := tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO filter VALUES
			(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, date, p.Quantile, p.BeadsFscSmall, p.BeadsD1, p.BeadsD2,
			p.Width, p.NotchSmallD1, p.NotchSmallD2, p.NotchLargeD1,
			p.NotchLargeD2, p.OffsetSmallD1, p.OffsetSmallD2,
			p.OffsetLargeD1, p.OffsetLargeD2)
		if err != nil {
			return nil, errors.NewDBError(errors.CodeSaveFailed, "inserting filter row", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, errors.NewDBError(errors.CodeSaveFailed, "committing filter rows", err)
	}
	return ps, nil
}

// LatestFilter returns the most recently saved filter parameter set,
// ordered by the date column with quantile as tiebreaker.
func (d *DB) LatestFilter(ctx context.Context) (*filter.ParamSet, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, quantile, beads_fsc_small, beads_D1, beads_D2, width,
		       notch_small_D1, notch_small_D2, notch_large_D1, notch_large_D2,
		       offset_small_D1, offset_small_D2, offset_large_D1, offset_large_D2
		FROM filter ORDER BY date DESC, quantile ASC`)
	if err != nil {
		return nil, errors.NewDBError(errors.CodeSaveFailed, "querying filter table", err)
	}
	defer rows.Close()

	var id string
	var params []filter.Params
	for rows.Next() {
		var rowID string
		var p filter.Params
		err := rows.Scan(&rowID, &p.Quantile, &p.BeadsFscSmall, &p.BeadsD1,
			&p.BeadsD2, &p.Width, &p.NotchSmallD1, &p.NotchSmallD2,
			&p.NotchLargeD1, &p.NotchLargeD2, &p.OffsetSmallD1,
			&p.OffsetSmallD2, &p.OffsetLargeD1, &p.OffsetLargeD2)
		if err != nil {
			return nil, errors.NewDBError(errors.CodeSaveFailed, "scanning filter row", err)
		}
		if id == "" {
			id = rowID
		}
		if rowID != id {
			continue
		}
		params = append(params, p)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewDBError(errors.CodeSaveFailed, "reading filter table", err)
	}
	if len(params) == 0 {
		return nil, errors.NewDBError(errors.CodeNoFilterParams,
			fmt.Sprintf("no filter parameters found in database %s", d.path), nil)
	}
	return filter.NewParamSet(id, params)
}

// SaveOppStats writes one opp statistics row per quantile for a filtered
// file. oppCounts must align with quantiles. The ratio is zero when no
// particles were above the noise floor.
func (d *DB) SaveOppStats(ctx context.Context, fileID string, allCount, evtCount int, quantiles []float64, oppCounts []int, filterID string) error {
	if len(quantiles) != len(oppCounts) {
		return errors.NewDBError(errors.CodeSaveFailed, fmt.Sprintf(
			"quantile count %d does not match opp count %d",
			len(quantiles), len(oppCounts)), nil)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewDBError(errors.CodeSaveFailed, "starting transaction", err)
	}
	defer tx.Rollback()

	for i, q := range quantiles {
		ratio := 0.0
		if evtCount > 0 {
			ratio = float64(oppCounts[i]) / float64(evtCount)
		}
		_, err := tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO opp VALUES (?, ?, ?, ?, ?, ?, ?)`,
			fileID, allCount, oppCounts[i], evtCount, ratio, filterID, q)
		if err != nil {
			return errors.NewDBError(errors.CodeSaveFailed, "inserting opp row", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return errors.NewDBError(errors.CodeSaveFailed, "committing opp rows", err)
	}
	return nil
}

// SaveOutlier records the outlier flag for a file. Freshly filtered files
// get flag 0; later analysis may mark them otherwise.
func (d *DB) SaveOutlier(ctx context.Context, fileID string, flag int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, err := d.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO outlier VALUES (?, ?)`, fileID, flag)
	if err != nil {
		return errors.NewDBError(errors.CodeSaveFailed, "inserting outlier row", err)
	}
	return nil
}

// ProcessedFiles returns the IDs of files that already have opp rows for
// the given filter parameter set.
func (d *DB) ProcessedFiles(ctx context.Context, filterID string) ([]string, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT DISTINCT file FROM opp WHERE filter_id = ? ORDER BY file ASC`, filterID)
	if err != nil {
		return nil, errors.NewDBError(errors.CodeSaveFailed, "querying opp table", err)
	}
	defer rows.Close()

	var files []string
	for rows.Next() {
		var f string
		if err := rows.Scan(&f); err != nil {
			return nil, errors.NewDBError(errors.CodeSaveFailed, "scanning opp row", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// FileProcessed reports whether a file already has opp rows for the
// given filter parameter set.
func (d *DB) FileProcessed(ctx context.Context, fileID, filterID string) (bool, error) {
	var n int
	err := d.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM opp WHERE file = ? AND filter_id = ?`,
		fileID, filterID).Scan(&n)
	if err != nil {
		return false, errors.NewDBError(errors.CodeSaveFailed, "querying opp table", err)
	}
	return n > 0, nil
}

// SaveMetadata replaces the cruise and instrument serial entry. The
// metadata table holds a single row.
func (d *DB) SaveMetadata(ctx context.Context, cruise, inst string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewDBError(errors.CodeSaveFailed, "starting transaction", err)
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM metadata`); err != nil {
		return errors.NewDBError(errors.CodeSaveFailed, "clearing metadata", err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO metadata VALUES (?, ?)`, cruise, inst); err != nil {
		return errors.NewDBError(errors.CodeSaveFailed, "inserting metadata", err)
	}
	if err := tx.Commit(); err != nil {
		return errors.NewDBError(errors.CodeSaveFailed, "committing metadata", err)
	}
	return nil
}

// Cruise returns the cruise name from the metadata table.
func (d *DB) Cruise(ctx context.Context) (string, error) {
	return d.metadataField(ctx, "cruise")
}

// Serial returns the instrument serial from the metadata table.
func (d *DB) Serial(ctx context.Context) (string, error) {
	return d.metadataField(ctx, "inst")
}

func (d *DB) metadataField(ctx context.Context, col string) (string, error) {
	var v string
	err := d.db.QueryRowContext(ctx, `SELECT `+col+` FROM metadata`).Scan(&v)
	if err == sql.ErrNoRows {
		return "", errors.NewDBError(errors.CodeSaveFailed,
			fmt.Sprintf("no %s found in database %s", col, d.path), nil)
	}
	if err != nil {
		return "", errors.NewDBError(errors.CodeSaveFailed, "querying metadata", err)
	}
	return v, nil
}
