package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"lightview/internal/logging"
	"lightview/internal/metrics"
)

// Default timeout for database operations
const defaultTimeout = 5 * time.Second

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("catalog: not found")

// Store manages all catalog database operations: tracked directories,
// file records, content records, and the durable jobs table.
type Store struct {
	db     *sql.DB
	dbPath string
	mu     sync.RWMutex

	batchMu     sync.Mutex
	batchStarts map[*sql.Tx]time.Time
}

// New creates a new Store instance.
// IMPORTANT: dbPath should be the full path to the database FILE
// (e.g., "/data/library.db"), and the parent directory must already exist
// and be writable. Use startup.LoadConfig() to ensure proper directory
// validation before calling this.
func New(ctx context.Context, dbPath string) (*Store, error) {
	logging.Info("Catalog database path: %s", dbPath)

	if err := diagnosePermissions(dbPath); err != nil {
		logging.Warn("Catalog permission diagnostics: %v", err)
	}

	// Use WAL mode and other optimizations
	// busy_timeout helps prevent "database is locked" errors
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=10000&_temp_store=MEMORY&_busy_timeout=5000", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Allow multiple readers; writes serialize on the WAL anyway.
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(time.Hour)

	s := &Store{
		db:          db,
		dbPath:      dbPath,
		batchStarts: make(map[*sql.Tx]time.Time),
	}

	if err := s.initialize(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after initialization failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	logging.Info("Catalog initialized successfully at %s", dbPath)
	return s, nil
}

func (s *Store) initialize(ctx context.Context) error {
	schema := `
	-- Tracked directories
	CREATE TABLE IF NOT EXISTS directories (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		path TEXT NOT NULL UNIQUE,
		watched INTEGER NOT NULL DEFAULT 1,
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);

	-- File records. A row is never deleted while its directory is tracked;
	-- files that vanish from disk are retired instead so identity survives
	-- a move-and-return.
	CREATE TABLE IF NOT EXISTS files (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		path TEXT NOT NULL UNIQUE,
		dir_id INTEGER NOT NULL,
		parent_path TEXT NOT NULL,
		name TEXT NOT NULL,
		kind TEXT NOT NULL,
		size INTEGER NOT NULL DEFAULT 0,
		mod_time INTEGER NOT NULL,
		liked INTEGER NOT NULL DEFAULT 0,
		liked_at INTEGER NOT NULL DEFAULT 0,
		content_id INTEGER NOT NULL DEFAULT 0,
		retired INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
		updated_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
		FOREIGN KEY (dir_id) REFERENCES directories(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_files_dir ON files(dir_id, retired);
	CREATE INDEX IF NOT EXISTS idx_files_parent ON files(parent_path, retired);
	CREATE INDEX IF NOT EXISTS idx_files_name ON files(name COLLATE NOCASE);
	CREATE INDEX IF NOT EXISTS idx_files_content ON files(content_id);
	CREATE INDEX IF NOT EXISTS idx_files_updated ON files(updated_at);
	CREATE INDEX IF NOT EXISTS idx_files_liked ON files(liked) WHERE liked = 1;

	-- Content records, keyed by fingerprint. Two paths with identical bytes
	-- share one row; derived artifacts (thumbnail, metadata) live here.
	CREATE TABLE IF NOT EXISTS contents (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		fingerprint TEXT NOT NULL UNIQUE,
		width INTEGER NOT NULL DEFAULT 0,
		height INTEGER NOT NULL DEFAULT 0,
		format TEXT NOT NULL DEFAULT '',
		duration_ms INTEGER NOT NULL DEFAULT 0,
		bitrate INTEGER NOT NULL DEFAULT 0,
		codec TEXT NOT NULL DEFAULT '',
		pnginfo TEXT NOT NULL DEFAULT '',
		thumb BLOB,
		thumb_ready INTEGER NOT NULL DEFAULT 0,
		meta_ready INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);

	-- Durable job queue. file_id/content_id use 0 for "not set" so the
	-- uniqueness index below stays a plain column index.
	CREATE TABLE IF NOT EXISTS jobs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		kind TEXT NOT NULL,
		file_id INTEGER NOT NULL DEFAULT 0,
		content_id INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'pending',
		priority INTEGER NOT NULL DEFAULT 0,
		boost INTEGER NOT NULL DEFAULT 0,
		attempts INTEGER NOT NULL DEFAULT 0,
		worker_id TEXT NOT NULL DEFAULT '',
		last_error TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
		updated_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);

	-- At most one live (pending or running) job per (kind, target).
	-- Enqueue uses INSERT OR IGNORE against this index, which makes it
	-- idempotent without a read-check race.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_jobs_outstanding
		ON jobs(kind, file_id, content_id)
		WHERE status IN ('pending', 'running');

	CREATE INDEX IF NOT EXISTS idx_jobs_claim ON jobs(status, priority DESC, id ASC);
	CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status);
	`

	_, err := s.db.ExecContext(ctx, schema)
	if err != nil {
		return err
	}

	return s.runMigrations(ctx)
}

// runMigrations applies database schema migrations
func (s *Store) runMigrations(ctx context.Context) error {
	// Migration 1: Add boost column if it doesn't exist (pre-prioritizer
	// databases carried priority only).
	var columnExists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) > 0
		FROM pragma_table_info('jobs')
		WHERE name='boost'
	`).Scan(&columnExists)

	if err != nil {
		return fmt.Errorf("failed to check for boost column: %w", err)
	}

	if !columnExists {
		logging.Info("Migrating database: adding boost column to jobs table")

		_, err = s.db.ExecContext(ctx, `
			ALTER TABLE jobs ADD COLUMN boost INTEGER NOT NULL DEFAULT 0
		`)
		if err != nil {
			return fmt.Errorf("failed to add boost column: %w", err)
		}

		logging.Info("Migration complete: boost column added")
	}

	// Migration 2: Add retired column to files if it doesn't exist.
	var retiredExists bool
	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) > 0
		FROM pragma_table_info('files')
		WHERE name='retired'
	`).Scan(&retiredExists)

	if err != nil {
		return fmt.Errorf("failed to check for retired column: %w", err)
	}

	if !retiredExists {
		logging.Info("Migrating database: adding retired column to files table")

		_, err = s.db.ExecContext(ctx, `
			ALTER TABLE files ADD COLUMN retired INTEGER NOT NULL DEFAULT 0
		`)
		if err != nil {
			return fmt.Errorf("failed to add retired column: %w", err)
		}

		logging.Info("Migration complete: retired column added")
	}

	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// BeginBatch starts a transaction for batch operations.
// The caller is responsible for calling EndBatch when done.
func (s *Store) BeginBatch() (*sql.Tx, error) {
	s.mu.Lock()
	txStart := time.Now()

	// Use background context - transaction lifetime is managed by EndBatch,
	// not a timeout. A timeout context here would cancel the transaction as
	// soon as this function returns.
	tx, err := s.db.BeginTx(context.Background(), nil)
	s.mu.Unlock()

	if err != nil {
		return nil, err
	}

	// Start times are tracked per transaction; batches from the scanner and
	// the workers overlap.
	s.batchMu.Lock()
	s.batchStarts[tx] = txStart
	s.batchMu.Unlock()

	return tx, nil
}

// EndBatch commits or rolls back a transaction.
func (s *Store) EndBatch(tx *sql.Tx, err error) error {
	s.batchMu.Lock()
	txStart, tracked := s.batchStarts[tx]
	delete(s.batchStarts, tx)
	s.batchMu.Unlock()

	if tracked {
		if duration := time.Since(txStart); duration > time.Second {
			logging.Debug("long catalog transaction: %v", duration)
		}
	}

	if err != nil {
		rbErr := tx.Rollback()
		if rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback also failed: %w", rbErr))
		}
		return err
	}

	return tx.Commit()
}

// Vacuum optimizes the database.
func (s *Store) Vacuum() error {
	start := time.Now()
	var err error
	defer func() { recordQuery("vacuum", start, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	_, err = s.db.ExecContext(ctx, "VACUUM")
	return err
}

// recordQuery records database query metrics
func recordQuery(operation string, start time.Time, err error) {
	duration := time.Since(start).Seconds()
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.DBQueryTotal.WithLabelValues(operation, status).Inc()
	metrics.DBQueryDuration.WithLabelValues(operation).Observe(duration)
}

// UpdateDBMetrics updates database connection metrics
func (s *Store) UpdateDBMetrics() {
	stats := s.db.Stats()
	metrics.DBConnectionsOpen.Set(float64(stats.OpenConnections))
}

// diagnosePermissions checks database directory and file permissions
func diagnosePermissions(dbPath string) error {
	dir := filepath.Dir(dbPath)

	dirInfo, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("cannot stat database directory: %w", err)
	}

	logging.Debug("Database directory: %s (mode: %v)", dir, dirInfo.Mode())

	testFile := filepath.Join(dir, ".perm-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		return fmt.Errorf("database directory not writable: %w", err)
	}
	_ = os.Remove(testFile)

	if dbInfo, err := os.Stat(dbPath); err == nil {
		logging.Debug("Database file exists: %s (mode: %v, size: %d bytes)", dbPath, dbInfo.Mode(), dbInfo.Size())
		if dbInfo.Mode().Perm()&0o200 == 0 {
			logging.Warn("Database file is read-only! Mode: %v", dbInfo.Mode())
		}
	}

	return nil
}
