// Package sqlite stores the billing collection in an embedded SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/ginjaninja78/billing-inquiry/internal/store"
	"github.com/ginjaninja78/billing-inquiry/internal/store/sqlite/migrations"
	"github.com/ginjaninja78/billing-inquiry/internal/types"
)

// DefaultBatchSize is the number of rows per INSERT statement.
const DefaultBatchSize = 100

// columnsPerRow is the number of bound parameters one record takes.
const columnsPerRow = 7

// MaxBatchSize is the largest batch whose INSERT stays within SQLite's
// limit of 32766 bound parameters per statement.
const MaxBatchSize = 32766 / columnsPerRow

// Repository implements store.Repository on a SQLite database.
type Repository struct {
	db        *sql.DB
	batchSize int
}

var (
	_ store.Repository         = (*Repository)(nil)
	_ store.ReplacementTracker = (*Repository)(nil)
)

// Open opens (creating if needed) the database at path and applies pending
// migrations.
func Open(path string, batchSize int) (*Repository, error) {
	if batchSize < 1 {
		batchSize = DefaultBatchSize
	}
	batchSize = min(batchSize, MaxBatchSize)

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}

	// WAL keeps searches readable while an upload replaces the table.
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	r := &Repository{db: db, batchSize: batchSize}
	if err := r.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return r, nil
}

// Close closes the database connection.
func (r *Repository) Close(context.Context) error {
	return r.db.Close()
}

// ReplaceAll deletes every stored bill and inserts records, in one
// transaction.
func (r *Repository) ReplaceAll(ctx context.Context, records []types.BillingRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, "DELETE FROM water_bills"); err != nil {
		return fmt.Errorf("clearing water_bills: %w", err)
	}

	for _, batch := range store.Batches(records, r.batchSize) {
		query, args := insertStatement(batch)
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("inserting water_bills batch: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO dataset_meta (key, value) VALUES ('replaced_at', ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		time.Now().UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("recording replacement time: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// LoadAll returns every stored bill in insertion order.
func (r *Repository) LoadAll(ctx context.Context) ([]types.BillingRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, account_number, name, address, bill_amount, due_date, amount_after_due_date
		FROM water_bills
		ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("querying water_bills: %w", err)
	}
	defer rows.Close()

	records := make([]types.BillingRecord, 0)
	for rows.Next() {
		var rec types.BillingRecord
		if err := rows.Scan(
			&rec.ID,
			&rec.AccountNumber,
			&rec.AccountName,
			&rec.Address,
			&rec.Amount,
			&rec.DueDate,
			&rec.AmountAfterDueDate,
		); err != nil {
			return nil, fmt.Errorf("scanning water_bills row: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating water_bills: %w", err)
	}

	return records, nil
}

// ReplacedAt returns when the collection was last replaced, or the zero
// time if it never was.
func (r *Repository) ReplacedAt(ctx context.Context) (time.Time, error) {
	var value string
	err := r.db.QueryRowContext(ctx, "SELECT value FROM dataset_meta WHERE key = 'replaced_at'").Scan(&value)
	if err == sql.ErrNoRows {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("reading dataset_meta: %w", err)
	}
	return time.Parse(time.RFC3339, value)
}

// insertStatement builds one multi-row INSERT for a batch.
func insertStatement(batch []types.BillingRecord) (string, []any) {
	var b strings.Builder
	b.WriteString(`INSERT INTO water_bills
		(id, account_number, name, address, bill_amount, due_date, amount_after_due_date) VALUES `)

	args := make([]any, 0, len(batch)*columnsPerRow)
	for i, rec := range batch {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(?, ?, ?, ?, ?, ?, ?)")
		args = append(args,
			rec.ID,
			rec.AccountNumber,
			rec.AccountName,
			rec.Address,
			rec.Amount,
			rec.DueDate,
			rec.AmountAfterDueDate,
		)
	}
	return b.String(), args
}

// migrate runs all pending migrations.
func (r *Repository) migrate(fsys embed.FS) error {
	_, err := r.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := r.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		if name := entry.Name(); strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// "001_water_bills.up.sql" -> 1
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := r.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := r.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}

	return nil
}
