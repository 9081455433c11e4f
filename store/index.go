package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// currentSchemaVersion is the latest schema version. Bump when adding
// migrations.
const currentSchemaVersion = 1

// ErrArtifactNotFound reports an unknown artifact reference.
var ErrArtifactNotFound = errors.New("store: artifact not found")

// Artifact is one committed-artifact index record.
type Artifact struct {
	Ref         string
	DocumentID  string
	Fingerprint string
	BlobAddr    string
	ByteSize    int64
	CreatedAt   time.Time
}

// Index is the SQLite-backed artifact catalog.
type Index struct {
	db *sql.DB
}

// OpenIndex initializes the database at baseDir/artifacts.db. The baseDir
// parameter lets tests use t.TempDir().
func OpenIndex(baseDir string) (*Index, error) {
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("create index directory: %w", err)
	}
	_ = os.Chmod(baseDir, 0700)

	dbPath := filepath.Join(baseDir, "artifacts.db")
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	_ = os.Chmod(dbPath, 0600)
	return &Index{db: db}, nil
}

func migrate(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version < 1 {
		schema := `
		CREATE TABLE IF NOT EXISTS artifacts (
		  ref          TEXT PRIMARY KEY,
		  document_id  TEXT NOT NULL,
		  fingerprint  TEXT NOT NULL,
		  blob_addr    TEXT NOT NULL,
		  byte_size    INTEGER NOT NULL,
		  created_at   INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_artifacts_document
		ON artifacts(document_id, created_at DESC);

		CREATE INDEX IF NOT EXISTS idx_artifacts_created
		ON artifacts(created_at);
		`
		if _, err := db.Exec(schema); err != nil {
			return fmt.Errorf("migration 1 failed: %w", err)
		}
		if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
			return fmt.Errorf("set schema version: %w", err)
		}
	}
	return nil
}

// Record inserts one artifact record.
func (x *Index) Record(a Artifact) error {
	_, err := x.db.Exec(
		`INSERT INTO artifacts (ref, document_id, fingerprint, blob_addr, byte_size, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		a.Ref, a.DocumentID, a.Fingerprint, a.BlobAddr, a.ByteSize, a.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("record artifact %s: %w", a.Ref, err)
	}
	return nil
}

// Lookup fetches one record by artifact reference.
func (x *Index) Lookup(ref string) (Artifact, error) {
	var a Artifact
	var createdAt int64
	err := x.db.QueryRow(
		`SELECT ref, document_id, fingerprint, blob_addr, byte_size, created_at
		 FROM artifacts WHERE ref = ?`, ref,
	).Scan(&a.Ref, &a.DocumentID, &a.Fingerprint, &a.BlobAddr, &a.ByteSize, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Artifact{}, fmt.Errorf("%w: %s", ErrArtifactNotFound, ref)
	}
	if err != nil {
		return Artifact{}, fmt.Errorf("lookup artifact %s: %w", ref, err)
	}
	a.CreatedAt = time.Unix(createdAt, 0)
	return a, nil
}

// ByDocument lists a document's artifacts, newest first.
func (x *Index) ByDocument(documentID string) ([]Artifact, error) {
	rows, err := x.db.Query(
		`SELECT ref, document_id, fingerprint, blob_addr, byte_size, created_at
		 FROM artifacts WHERE document_id = ? ORDER BY created_at DESC, ref`, documentID,
	)
	if err != nil {
		return nil, fmt.Errorf("list artifacts for %s: %w", documentID, err)
	}
	defer rows.Close()
	var out []Artifact
	for rows.Next() {
		var a Artifact
		var createdAt int64
		if err := rows.Scan(&a.Ref, &a.DocumentID, &a.Fingerprint, &a.BlobAddr, &a.ByteSize, &createdAt); err != nil {
			return nil, err
		}
		a.CreatedAt = time.Unix(createdAt, 0)
		out = append(out, a)
	}
	return out, rows.Err()
}

// DeleteOlderThan removes records created before the cutoff and returns their
// blob addresses so a retention job can sweep the blob store. Retention
// policy itself stays with the caller.
func (x *Index) DeleteOlderThan(cutoff time.Time) ([]string, error) {
	rows, err := x.db.Query(
		"SELECT blob_addr FROM artifacts WHERE created_at < ?", cutoff.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("find expired artifacts: %w", err)
	}
	var addrs []string
	for rows.Next() {
		var addr string
		if err := rows.Scan(&addr); err != nil {
			rows.Close()
			return nil, err
		}
		addrs = append(addrs, addr)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	if _, err := x.db.Exec("DELETE FROM artifacts WHERE created_at < ?", cutoff.Unix()); err != nil {
		return nil, fmt.Errorf("delete expired artifacts: %w", err)
	}
	return addrs, nil
}

// Close releases the database handle.
func (x *Index) Close() error {
	return x.db.Close()
}
