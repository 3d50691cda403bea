// Package store provides SQLite-backed bookkeeping for mirror replication:
// which artifacts have been fetched and how past sync passes went. File
// presence on disk stays authoritative for idempotence; the store is an
// index over it.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"
)

// SyncRun records one full-catalog replication pass.
type SyncRun struct {
	ID               int64
	StartTime        time.Time
	EndTime          time.Time
	Downloaded       int
	Skipped          int
	Failed           int
	BytesTransferred int64
	Status           string // "running", "success", "partial", "failed"
	ErrorMessage     string
}

// Artifact records one fetched release artifact.
type Artifact struct {
	ID        int64
	Path      string // relative to the mirror output directory
	Version   string
	System    string
	Arch      string
	Upstream  string // mirror that served the bytes
	Size      int64
	SHA256    string
	FetchedAt time.Time
}

// Store wraps the SQLite database.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// New opens (creating if needed) the database at dbPath and applies the schema.
func New(dbPath string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	s := &Store{db: db, logger: logger}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	logger.Debug("store initialized", "path", dbPath)
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateSyncRun inserts a new run and sets its ID.
func (s *Store) CreateSyncRun(run *SyncRun) error {
	const query = `
		INSERT INTO sync_runs (
			start_time, end_time, downloaded, skipped, failed,
			bytes_transferred, status, error_message
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := s.db.Exec(query,
		run.StartTime, run.EndTime, run.Downloaded, run.Skipped, run.Failed,
		run.BytesTransferred, run.Status, run.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("inserting sync run: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting sync run id: %w", err)
	}
	run.ID = id
	return nil
}

// UpdateSyncRun updates an existing run by ID.
func (s *Store) UpdateSyncRun(run *SyncRun) error {
	const query = `
		UPDATE sync_runs SET
			start_time = ?, end_time = ?, downloaded = ?, skipped = ?,
			failed = ?, bytes_transferred = ?, status = ?, error_message = ?
		WHERE id = ?
	`
	result, err := s.db.Exec(query,
		run.StartTime, run.EndTime, run.Downloaded, run.Skipped,
		run.Failed, run.BytesTransferred, run.Status, run.ErrorMessage, run.ID,
	)
	if err != nil {
		return fmt.Errorf("updating sync run: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("sync run not found: %d", run.ID)
	}
	return nil
}

// ListSyncRuns returns the most recent runs, newest first.
func (s *Store) ListSyncRuns(limit int) ([]SyncRun, error) {
	const query = `
		SELECT id, start_time, end_time, downloaded, skipped, failed,
		       bytes_transferred, status, error_message
		FROM sync_runs ORDER BY start_time DESC LIMIT ?
	`
	rows, err := s.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("listing sync runs: %w", err)
	}
	defer rows.Close()

	var runs []SyncRun
	for rows.Next() {
		var r SyncRun
		if err := rows.Scan(&r.ID, &r.StartTime, &r.EndTime, &r.Downloaded, &r.Skipped,
			&r.Failed, &r.BytesTransferred, &r.Status, &r.ErrorMessage); err != nil {
			return nil, fmt.Errorf("scanning sync run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// UpsertArtifact inserts or replaces the record for an artifact path.
func (s *Store) UpsertArtifact(a *Artifact) error {
	const query = `
		INSERT INTO artifacts (path, version, system, arch, upstream, size, sha256, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			version = excluded.version, system = excluded.system,
			arch = excluded.arch, upstream = excluded.upstream,
			size = excluded.size, sha256 = excluded.sha256,
			fetched_at = excluded.fetched_at
	`
	_, err := s.db.Exec(query, a.Path, a.Version, a.System, a.Arch, a.Upstream, a.Size, a.SHA256, a.FetchedAt)
	if err != nil {
		return fmt.Errorf("upserting artifact: %w", err)
	}
	return nil
}

// ListArtifacts returns all recorded artifacts ordered by path.
func (s *Store) ListArtifacts() ([]Artifact, error) {
	const query = `
		SELECT id, path, version, system, arch, upstream, size, sha256, fetched_at
		FROM artifacts ORDER BY path
	`
	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("listing artifacts: %w", err)
	}
	defer rows.Close()

	var artifacts []Artifact
	for rows.Next() {
		var a Artifact
		if err := rows.Scan(&a.ID, &a.Path, &a.Version, &a.System, &a.Arch, &a.Upstream,
			&a.Size, &a.SHA256, &a.FetchedAt); err != nil {
			return nil, fmt.Errorf("scanning artifact: %w", err)
		}
		artifacts = append(artifacts, a)
	}
	return artifacts, rows.Err()
}

// CountArtifacts returns the number of recorded artifacts and their total size.
func (s *Store) CountArtifacts() (int, int64, error) {
	var count int
	var size sql.NullInt64
	err := s.db.QueryRow(`SELECT COUNT(*), COALESCE(SUM(size), 0) FROM artifacts`).Scan(&count, &size)
	if err != nil {
		return 0, 0, fmt.Errorf("counting artifacts: %w", err)
	}
	return count, size.Int64, nil
}

// migrate applies the schema, tracking versions in a migrations table.
func (s *Store) migrate() error {
	const createMigrations = `
		CREATE TABLE IF NOT EXISTS migrations (
			id INTEGER PRIMARY KEY,
			version INTEGER NOT NULL UNIQUE,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);
	`
	if _, err := s.db.Exec(createMigrations); err != nil {
		return fmt.Errorf("creating migrations table: %w", err)
	}

	var current int
	if err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM migrations").Scan(&current); err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}

	migrations := []struct {
		version int
		sql     string
	}{
		{
			version: 1,
			sql: `
				CREATE TABLE sync_runs (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					start_time DATETIME NOT NULL,
					end_time DATETIME,
					downloaded INTEGER DEFAULT 0,
					skipped INTEGER DEFAULT 0,
					failed INTEGER DEFAULT 0,
					bytes_transferred INTEGER DEFAULT 0,
					status TEXT DEFAULT 'running',
					error_message TEXT
				);

				CREATE TABLE artifacts (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					path TEXT NOT NULL UNIQUE,
					version TEXT NOT NULL,
					system TEXT NOT NULL,
					arch TEXT NOT NULL,
					upstream TEXT,
					size INTEGER DEFAULT 0,
					sha256 TEXT,
					fetched_at DATETIME
				);

				CREATE INDEX idx_artifacts_version ON artifacts(version);
			`,
		},
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning migration %d: %w", m.version, err)
		}
		if _, err := tx.Exec(m.sql); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", m.version, err)
		}
		if _, err := tx.Exec("INSERT INTO migrations (version) VALUES (?)", m.version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", m.version, err)
		}
		s.logger.Debug("applied migration", "version", m.version)
	}
	return nil
}
