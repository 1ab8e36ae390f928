package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/starsift-labs/starsift-cli/internal/logger"
)

// The schema is verified against this declarative expectation list rather
// than against migration history, so a database damaged by an external
// tool (dropped column, retyped column, stripped foreign key) is detected
// and repaired no matter how it got that way.
//
// The create statements must stay in sync with the latest migration.

// columnSpec is one expected column.
type columnSpec struct {
	name string
	typ  string

	// notNull requires the column to carry an explicit NOT NULL
	// constraint. Primary-key columns leave it unset: table_info does
	// not report them as NOT NULL even though they behave that way.
	notNull bool

	// salvageDefault is the SQL expression substituted for missing or
	// NULL values when rows are carried over during a rebuild.
	salvageDefault string

	// salvageExpr, when set, replaces the COALESCE(column, default)
	// salvage expression entirely, for columns whose salvage rule is
	// more than a NULL default.
	salvageExpr string
}

// fkSpec is one expected foreign key with ON DELETE CASCADE.
type fkSpec struct {
	parentTable string
	fromColumn  string
}

// tableSpec is the full expectation for one table.
type tableSpec struct {
	name    string
	columns []columnSpec
	fks     []fkSpec

	// requiredClauses are constraint fragments that must appear in the
	// table's DDL (compared with whitespace and case ignored), covering
	// constraints table_info cannot report, such as CHECK.
	requiredClauses []string

	createSQL string
	indexSQL  []string

	// salvage carries surviving rows through a rebuild. Tables holding
	// recomputable data skip salvage and are recreated empty.
	salvage bool

	// salvageFilter drops rows that cannot satisfy the canonical
	// constraints (NULL keys, orphaned foreign keys).
	salvageFilter string
}

var schemaSpecs = []tableSpec{
	{
		name: "repositories",
		columns: []columnSpec{
			{name: "id", typ: "INTEGER", salvageDefault: "0"},
			{name: "full_name", typ: "TEXT", notNull: true, salvageDefault: "''"},
			{name: "description", typ: "TEXT", notNull: true, salvageDefault: "''"},
			{name: "topics", typ: "TEXT", notNull: true, salvageDefault: "'[]'"},
			{name: "language", typ: "TEXT", notNull: true, salvageDefault: "''"},
			{name: "url", typ: "TEXT", notNull: true, salvageDefault: "''"},
			{name: "stars", typ: "INTEGER", notNull: true, salvageDefault: "0"},
			{name: "forks", typ: "INTEGER", notNull: true, salvageDefault: "0"},
			{name: "pushed_at", typ: "DATETIME", notNull: true, salvageDefault: "CURRENT_TIMESTAMP"},
			{name: "readme_hash", typ: "TEXT", notNull: true, salvageDefault: "''"},
			{name: "checksum", typ: "TEXT", notNull: true, salvageDefault: "''"},
			{name: "updated_at", typ: "DATETIME", notNull: true, salvageDefault: "CURRENT_TIMESTAMP"},
		},
		createSQL: `CREATE TABLE repositories (
			id INTEGER PRIMARY KEY,
			full_name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			topics TEXT NOT NULL DEFAULT '[]',
			language TEXT NOT NULL DEFAULT '',
			url TEXT NOT NULL DEFAULT '',
			stars INTEGER NOT NULL DEFAULT 0,
			forks INTEGER NOT NULL DEFAULT 0,
			pushed_at DATETIME NOT NULL,
			readme_hash TEXT NOT NULL DEFAULT '',
			checksum TEXT NOT NULL DEFAULT '',
			updated_at DATETIME NOT NULL
		)`,
		salvage:       true,
		salvageFilter: "id IS NOT NULL",
	},
	{
		name: "chunks",
		columns: []columnSpec{
			{name: "id", typ: "TEXT", salvageDefault: "''"},
			{name: "repo_id", typ: "INTEGER", notNull: true, salvageDefault: "0"},
			{name: "position", typ: "INTEGER", notNull: true, salvageDefault: "0"},
			{name: "content", typ: "TEXT", notNull: true, salvageDefault: "''"},
			{name: "source", typ: "TEXT", notNull: true, salvageDefault: "'readme'"},
		},
		fks: []fkSpec{{parentTable: "repositories", fromColumn: "repo_id"}},
		createSQL: `CREATE TABLE chunks (
			id TEXT PRIMARY KEY,
			repo_id INTEGER NOT NULL REFERENCES repositories(id) ON DELETE CASCADE,
			position INTEGER NOT NULL,
			content TEXT NOT NULL,
			source TEXT NOT NULL DEFAULT 'readme'
		)`,
		indexSQL:      []string{"CREATE INDEX idx_chunks_repo_id ON chunks(repo_id)"},
		salvage:       true,
		salvageFilter: "id IS NOT NULL AND repo_id IN (SELECT id FROM repositories)",
	},
	{
		// Vectors are recomputable from chunks: a damaged embeddings
		// table is recreated empty and the next sync refills it.
		name: "embeddings",
		columns: []columnSpec{
			{name: "chunk_id", typ: "TEXT"},
			{name: "vector", typ: "BLOB", notNull: true},
			{name: "model", typ: "TEXT", notNull: true},
			{name: "created_at", typ: "DATETIME", notNull: true},
		},
		fks: []fkSpec{{parentTable: "chunks", fromColumn: "chunk_id"}},
		createSQL: `CREATE TABLE embeddings (
			chunk_id TEXT PRIMARY KEY REFERENCES chunks(id) ON DELETE CASCADE,
			vector BLOB NOT NULL,
			model TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL
		)`,
		salvage: false,
	},
	{
		name: "chat_sessions",
		columns: []columnSpec{
			{name: "id", typ: "TEXT", salvageDefault: "''"},
			{name: "title", typ: "TEXT", notNull: true, salvageDefault: "''"},
			{name: "created_at", typ: "DATETIME", notNull: true, salvageDefault: "CURRENT_TIMESTAMP"},
		},
		createSQL: `CREATE TABLE chat_sessions (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL
		)`,
		salvage:       true,
		salvageFilter: "id IS NOT NULL",
	},
	{
		name: "chat_messages",
		columns: []columnSpec{
			{name: "id", typ: "INTEGER", salvageDefault: "NULL"},
			{name: "session_id", typ: "TEXT", notNull: true, salvageDefault: "''"},
			// Unknown roles degrade to 'user' rather than losing the row.
			{name: "role", typ: "TEXT", notNull: true, salvageDefault: "'user'",
				salvageExpr: "CASE WHEN role IN ('user', 'assistant', 'system') THEN role ELSE 'user' END"},
			{name: "content", typ: "TEXT", notNull: true, salvageDefault: "''"},
			// Out-of-range sequence numbers default to 1; the UNIQUE
			// constraint below drops colliding duplicates on salvage.
			{name: "seq", typ: "INTEGER", notNull: true, salvageDefault: "1",
				salvageExpr: "CASE WHEN seq IS NULL OR seq < 1 THEN 1 ELSE seq END"},
			{name: "created_at", typ: "DATETIME", notNull: true, salvageDefault: "CURRENT_TIMESTAMP"},
		},
		fks: []fkSpec{{parentTable: "chat_sessions", fromColumn: "session_id"}},
		requiredClauses: []string{
			"CHECK (role IN ('user', 'assistant', 'system'))",
		},
		createSQL: `CREATE TABLE chat_messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL REFERENCES chat_sessions(id) ON DELETE CASCADE,
			role TEXT NOT NULL CHECK (role IN ('user', 'assistant', 'system')),
			content TEXT NOT NULL,
			seq INTEGER NOT NULL,
			created_at DATETIME NOT NULL,
			UNIQUE(session_id, seq)
		)`,
		salvage:       true,
		salvageFilter: "session_id IN (SELECT id FROM chat_sessions)",
	},
	{
		name: "meta",
		columns: []columnSpec{
			{name: "key", typ: "TEXT", salvageDefault: "''"},
			{name: "value", typ: "TEXT", notNull: true, salvageDefault: "''"},
			{name: "updated_at", typ: "DATETIME", notNull: true, salvageDefault: "CURRENT_TIMESTAMP"},
		},
		createSQL: `CREATE TABLE meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		salvage:       true,
		salvageFilter: "key IS NOT NULL",
	},
}

// heal verifies every table against its expectation and rebuilds the ones
// that do not match. Parents are listed before children, so foreign keys
// always point at already-canonical tables.
func (s *Store) heal(ctx context.Context) error {
	for _, spec := range schemaSpecs {
		ok, exists, err := s.verifyTable(ctx, spec)
		if err != nil {
			return err
		}
		if ok {
			continue
		}

		if !exists {
			logger.Warn("Table %s is missing, recreating", spec.name)
			if err := s.createTable(ctx, spec); err != nil {
				return err
			}
			continue
		}

		logger.Warn("Table %s does not match the expected schema, rebuilding", spec.name)
		if err := s.rebuildTable(ctx, spec); err != nil {
			return err
		}
	}

	s.vectors.invalidate()
	return nil
}

// verifyTable checks one table against its expectation. It reports
// whether the table matches and whether it exists at all.
func (s *Store) verifyTable(ctx context.Context, spec tableSpec) (ok, exists bool, err error) {
	var count int
	row := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", spec.name)
	if err := row.Scan(&count); err != nil {
		return false, false, fmt.Errorf("checking table %s: %w", spec.name, err)
	}
	if count == 0 {
		return false, false, nil
	}

	columns, err := s.tableColumns(ctx, spec.name)
	if err != nil {
		return false, true, err
	}
	for _, col := range spec.columns {
		info, present := columns[col.name]
		if !present || !strings.EqualFold(info.typ, col.typ) {
			return false, true, nil
		}
		if col.notNull && !info.notNull {
			return false, true, nil
		}
	}

	for _, fk := range spec.fks {
		present, err := s.hasCascadeFK(ctx, spec.name, fk)
		if err != nil {
			return false, true, err
		}
		if !present {
			return false, true, nil
		}
	}

	if len(spec.requiredClauses) > 0 {
		ddl, err := s.tableDDL(ctx, spec.name)
		if err != nil {
			return false, true, err
		}
		normalized := normalizeDDL(ddl)
		for _, clause := range spec.requiredClauses {
			if !strings.Contains(normalized, normalizeDDL(clause)) {
				return false, true, nil
			}
		}
	}

	return true, true, nil
}

// normalizeDDL lowercases and strips all whitespace so constraint
// fragments compare independent of formatting.
func normalizeDDL(ddl string) string {
	return strings.Join(strings.Fields(strings.ToLower(ddl)), "")
}

// tableDDL returns the table's CREATE statement from sqlite_master.
func (s *Store) tableDDL(ctx context.Context, table string) (string, error) {
	var ddl sql.NullString
	row := s.db.QueryRowContext(ctx,
		"SELECT sql FROM sqlite_master WHERE type = 'table' AND name = ?", table)
	if err := row.Scan(&ddl); err != nil {
		return "", fmt.Errorf("reading DDL of %s: %w", table, err)
	}
	return ddl.String, nil
}

// columnInfo is what table_info reports for one live column.
type columnInfo struct {
	typ     string
	notNull bool
}

// tableColumns returns the declared type and NOT NULL flag of each column
// via table_info.
func (s *Store) tableColumns(ctx context.Context, table string) (map[string]columnInfo, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%q)", table))
	if err != nil {
		return nil, fmt.Errorf("reading columns of %s: %w", table, err)
	}
	defer rows.Close()

	columns := make(map[string]columnInfo)
	for rows.Next() {
		var cid, notNull, pk int
		var name, typ string
		var dflt any
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("scanning column of %s: %w", table, err)
		}
		columns[name] = columnInfo{typ: typ, notNull: notNull != 0}
	}
	return columns, rows.Err()
}

// hasCascadeFK reports whether table has the expected ON DELETE CASCADE
// foreign key, via foreign_key_list.
func (s *Store) hasCascadeFK(ctx context.Context, table string, fk fkSpec) (bool, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("PRAGMA foreign_key_list(%q)", table))
	if err != nil {
		return false, fmt.Errorf("reading foreign keys of %s: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, seq int
		var parent, from, onUpdate, onDelete, match string
		var to any
		if err := rows.Scan(&id, &seq, &parent, &from, &to, &onUpdate, &onDelete, &match); err != nil {
			return false, fmt.Errorf("scanning foreign key of %s: %w", table, err)
		}
		if parent == fk.parentTable && from == fk.fromColumn &&
			strings.EqualFold(onDelete, "CASCADE") {
			return true, nil
		}
	}
	return false, rows.Err()
}

// createTable creates a missing table with its indexes.
func (s *Store) createTable(ctx context.Context, spec tableSpec) error {
	if _, err := s.db.ExecContext(ctx, spec.createSQL); err != nil {
		return fmt.Errorf("creating table %s: %w", spec.name, err)
	}
	for _, idx := range spec.indexSQL {
		if _, err := s.db.ExecContext(ctx, idx); err != nil {
			return fmt.Errorf("creating index on %s: %w", spec.name, err)
		}
	}
	return nil
}

// rebuildTable replaces a damaged table with its canonical shape: build
// the canonical table under a scratch name, salvage what qualifies, drop
// the original, rename the scratch table into place. Building under a
// scratch name (instead of renaming the original aside) matters because
// RENAME rewrites other tables' foreign-key clauses to follow the rename.
//
// All statements run on one dedicated connection so the foreign_keys
// pragma toggle cannot land on a different pooled connection.
func (s *Store) rebuildTable(ctx context.Context, spec tableSpec) error {
	existing, err := s.tableColumns(ctx, spec.name)
	if err != nil {
		return err
	}

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquiring connection: %w", err)
	}
	defer conn.Close()

	// Enforcement pauses while the table is swapped out from under its
	// children.
	if _, err := conn.ExecContext(ctx, "PRAGMA foreign_keys = OFF"); err != nil {
		return fmt.Errorf("pausing foreign keys: %w", err)
	}
	defer func() {
		if _, err := conn.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
			logger.Error("Re-enabling foreign keys failed: %v", err)
		}
	}()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning rebuild of %s: %w", spec.name, err)
	}
	defer tx.Rollback() //nolint:errcheck

	scratch := spec.name + "_rebuild"
	if _, err := tx.ExecContext(ctx,
		fmt.Sprintf("DROP TABLE IF EXISTS %q", scratch)); err != nil {
		return fmt.Errorf("clearing scratch table: %w", err)
	}
	createScratch := strings.Replace(spec.createSQL,
		"CREATE TABLE "+spec.name, fmt.Sprintf("CREATE TABLE %q", scratch), 1)
	if _, err := tx.ExecContext(ctx, createScratch); err != nil {
		return fmt.Errorf("creating scratch table for %s: %w", spec.name, err)
	}

	if spec.salvage {
		var names, exprs []string
		for _, col := range spec.columns {
			names = append(names, col.name)
			_, present := existing[col.name]
			switch {
			case !present:
				exprs = append(exprs, col.salvageDefault)
			case col.salvageExpr != "":
				exprs = append(exprs, col.salvageExpr)
			default:
				exprs = append(exprs, fmt.Sprintf("COALESCE(%s, %s)", col.name, col.salvageDefault))
			}
		}

		query := fmt.Sprintf("INSERT OR IGNORE INTO %q (%s) SELECT %s FROM %q",
			scratch, strings.Join(names, ", "), strings.Join(exprs, ", "), spec.name)
		if spec.salvageFilter != "" {
			query += " WHERE " + spec.salvageFilter
		}
		if _, err := tx.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("salvaging rows of %s: %w", spec.name, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		fmt.Sprintf("DROP TABLE %q", spec.name)); err != nil {
		return fmt.Errorf("dropping %s: %w", spec.name, err)
	}
	if _, err := tx.ExecContext(ctx,
		fmt.Sprintf("ALTER TABLE %q RENAME TO %q", scratch, spec.name)); err != nil {
		return fmt.Errorf("renaming %s into place: %w", scratch, err)
	}
	for _, idx := range spec.indexSQL {
		if _, err := tx.ExecContext(ctx, idx); err != nil {
			return fmt.Errorf("recreating index on %s: %w", spec.name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing rebuild of %s: %w", spec.name, err)
	}
	return nil
}

// liveDDL returns the current schema DDL for diagnostics.
func (s *Store) liveDDL(ctx context.Context) string {
	rows, err := s.db.QueryContext(ctx,
		"SELECT sql FROM sqlite_master WHERE sql IS NOT NULL ORDER BY name")
	if err != nil {
		return fmt.Sprintf("(unavailable: %v)", err)
	}
	defer rows.Close()

	var ddl []string
	for rows.Next() {
		var stmt string
		if err := rows.Scan(&stmt); err != nil {
			continue
		}
		ddl = append(ddl, stmt+";")
	}
	return strings.Join(ddl, "\n")
}
