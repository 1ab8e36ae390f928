package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/starsift-labs/starsift-cli/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/starsift-labs/starsift-cli/internal/core/domain"
	"github.com/starsift-labs/starsift-cli/internal/core/ports/driven"
	"github.com/starsift-labs/starsift-cli/internal/logger"
)

// Store is a unified SQLite-based storage that provides access to all
// index store interfaces through wrapper types.
type Store struct {
	db   *sql.DB
	path string

	vectors    vectorCache
	checkpoint checkpointPolicy
}

// Options tunes the store. Zero values select the defaults.
type Options struct {
	// CheckpointEvery folds the WAL after this many embedding writes
	// (default 256). Values below 1 select the default.
	CheckpointEvery int

	// CheckpointMs folds the WAL once a pending write has waited this
	// many milliseconds (default 3000). Values below 1 select the
	// default.
	CheckpointMs int
}

// NewStore creates a new SQLite store at the specified data directory.
// If dataDir is empty, defaults to ~/.starsift/data/index.db.
func NewStore(dataDir string, opts Options) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".starsift", "data")
	}

	// Ensure directory exists
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "index.db")

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}
	s.checkpoint.store = s
	s.checkpoint.configure(opts.CheckpointEvery, opts.CheckpointMs)

	// Run migrations
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	// Verify the schema and rebuild any table an external tool damaged.
	if err := s.heal(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("verifying schema: %w", err)
	}

	if err := s.checkpoint.recordParameters(context.Background()); err != nil {
		logger.Debug("Recording checkpoint parameters failed: %v", err)
	}

	return s, nil
}

// Close flushes pending checkpoint work and closes the database.
func (s *Store) Close() error {
	if err := s.Flush(context.Background()); err != nil {
		logger.Warn("Checkpoint on close failed: %v", err)
	}
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// RepositoryStore returns a RepositoryStore interface backed by this store.
func (s *Store) RepositoryStore() driven.RepositoryStore {
	return &repositoryStore{store: s}
}

// ChunkStore returns a ChunkStore interface backed by this store.
func (s *Store) ChunkStore() driven.ChunkStore {
	return &chunkStore{store: s}
}

// EmbeddingStore returns an EmbeddingStore interface backed by this store.
func (s *Store) EmbeddingStore() driven.EmbeddingStore {
	return &embeddingStore{store: s}
}

// ChatStore returns a ChatStore interface backed by this store.
func (s *Store) ChatStore() driven.ChatStore {
	return &chatStore{store: s}
}

// MetaStore returns a MetaStore interface backed by this store.
func (s *Store) MetaStore() driven.MetaStore {
	return &metaStore{store: s}
}

// ClearAllData removes every row from every table, keeping the schema.
func (s *Store) ClearAllData(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	// Child tables first so the deletes never trip foreign keys.
	for _, table := range []string{
		"embeddings", "chunks", "chat_messages", "chat_sessions", "repositories", "meta",
	} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clearing %s: %w", table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	s.vectors.invalidate()
	return s.Flush(ctx)
}

func (s *Store) migrate(fsys embed.FS) error {
	// Ensure schema_migrations table exists
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	// Get current version
	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	// Find all up migrations
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	// Sort and run migrations
	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// Extract version number (e.g., "001_initial.up.sql" -> 1)
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue // Skip files that don't match pattern
		}

		if version <= currentVersion {
			continue // Already applied
		}

		// Read and execute migration
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}

		if _, err := s.db.Exec(
			"INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}

	return nil
}

// withHeal runs op, and if it fails with a schema-shaped error, rebuilds
// the schema and retries once. A second failure is wrapped in
// ErrSchemaIntegrity together with the live DDL for diagnosis.
func (s *Store) withHeal(ctx context.Context, op func() error) error {
	err := op()
	if err == nil || !isSchemaError(err) {
		return err
	}

	logger.Warn("Schema error detected, attempting rebuild: %v", err)
	if healErr := s.heal(ctx); healErr != nil {
		return fmt.Errorf("%w: %v (rebuild failed: %v)", domain.ErrSchemaIntegrity, err, healErr)
	}

	if err := op(); err != nil {
		return fmt.Errorf("%w: %v\nlive schema:\n%s",
			domain.ErrSchemaIntegrity, err, s.liveDDL(ctx))
	}
	return nil
}

// isSchemaError classifies errors worth a heal-and-retry cycle.
func isSchemaError(err error) bool {
	msg := err.Error()
	for _, sig := range []string{
		"no such table",
		"no such column",
		"has no column named",
	} {
		if strings.Contains(msg, sig) {
			return true
		}
	}
	return false
}

// ==================== Shared helpers ====================

// float32SliceToBytes converts a []float32 to a little-endian byte slice.
func float32SliceToBytes(floats []float32) []byte {
	if len(floats) == 0 {
		return nil
	}
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice converts a byte slice back to []float32.
func bytesToFloat32Slice(data []byte) []float32 {
	if len(data) == 0 {
		return nil
	}
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}

// marshalTopics encodes the topic labels for the topics column.
func marshalTopics(topics []string) (string, error) {
	if topics == nil {
		topics = []string{}
	}
	b, err := json.Marshal(topics)
	if err != nil {
		return "", fmt.Errorf("marshalling topics: %w", err)
	}
	return string(b), nil
}

// unmarshalTopics decodes the topics column, tolerating damaged values.
func unmarshalTopics(raw string) []string {
	if raw == "" {
		return nil
	}
	var topics []string
	if err := json.Unmarshal([]byte(raw), &topics); err != nil {
		return nil
	}
	return topics
}
