package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starsift-labs/starsift-cli/internal/core/domain"
)

func TestHeal_RecreatesDroppedTable(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	_, err := store.db.ExecContext(ctx, "DROP TABLE meta")
	require.NoError(t, err)

	// The next operation trips the heal-and-retry cycle.
	require.NoError(t, store.MetaStore().Set(ctx, "key", "value"))

	value, err := store.MetaStore().Get(ctx, "key")
	require.NoError(t, err)
	assert.Equal(t, "value", value)
}

func TestHeal_RestoresStrippedForeignKey(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.RepositoryStore().UpsertRepositories(ctx,
		[]domain.Repository{testRepo(1, "alice/indexer")}))

	// Simulate an external tool replacing chunks with a version that has
	// no foreign key and a missing column, holding one valid row and one
	// orphan.
	_, err := store.db.ExecContext(ctx, `
		DROP TABLE chunks;
		CREATE TABLE chunks (
			id TEXT PRIMARY KEY,
			repo_id INTEGER NOT NULL,
			position INTEGER NOT NULL,
			content TEXT NOT NULL
		);
		INSERT INTO chunks VALUES ('1:0', 1, 0, 'kept');
		INSERT INTO chunks VALUES ('999:0', 999, 0, 'orphan');
	`)
	require.NoError(t, err)

	require.NoError(t, store.heal(ctx))

	// The valid row survived with the missing column defaulted, the
	// orphan was dropped.
	pending, err := store.ChunkStore().ListUnembedded(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "1:0", pending[0].ID)
	assert.Equal(t, domain.ChunkSourceReadme, pending[0].Source)
	assert.Equal(t, "kept", pending[0].Content)

	// Cascade behavior is back: deleting the repository removes its chunks.
	require.NoError(t, store.RepositoryStore().DeleteByIDs(ctx, []int64{1}))
	count, err := store.ChunkStore().Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestHeal_RecreatesEmbeddingsOnTypeMismatch(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.RepositoryStore().UpsertRepositories(ctx,
		[]domain.Repository{testRepo(1, "alice/indexer")}))
	require.NoError(t, store.ChunkStore().UpsertChunks(ctx, []domain.Chunk{
		{ID: "1:0", RepoID: 1, Position: 0, Content: "alpha", Source: domain.ChunkSourceReadme},
	}))

	// Replace embeddings with a retyped vector column and a junk row.
	_, err := store.db.ExecContext(ctx, `
		DROP TABLE embeddings;
		CREATE TABLE embeddings (
			chunk_id TEXT PRIMARY KEY,
			vector TEXT NOT NULL,
			model TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL
		);
		INSERT INTO embeddings VALUES ('1:0', 'not a blob', '', CURRENT_TIMESTAMP);
	`)
	require.NoError(t, err)

	require.NoError(t, store.heal(ctx))

	// Vectors are recomputable: the table comes back empty and the chunk
	// is pending embedding again.
	count, err := store.EmbeddingStore().Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	pending, err := store.ChunkStore().ListUnembedded(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	// The store is fully usable after the rebuild.
	require.NoError(t, store.EmbeddingStore().UpsertEmbeddings(ctx, []domain.Embedding{
		{ChunkID: "1:0", Vector: []float32{1, 0}},
	}))
	results, err := store.EmbeddingStore().FindSimilar(ctx, []float32{1, 0}, 1)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestHeal_SalvagesMessagesWithDefaults(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.ChatStore().UpsertSession(ctx,
		domain.ChatSession{ID: "s1", Title: "kept"}))

	// chat_messages lost its seq column and its foreign key.
	_, err := store.db.ExecContext(ctx, `
		DROP TABLE chat_messages;
		CREATE TABLE chat_messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at DATETIME NOT NULL
		);
		INSERT INTO chat_messages (session_id, role, content, created_at)
			VALUES ('s1', 'user', 'survivor', CURRENT_TIMESTAMP);
		INSERT INTO chat_messages (session_id, role, content, created_at)
			VALUES ('ghost', 'user', 'orphan', CURRENT_TIMESTAMP);
	`)
	require.NoError(t, err)

	require.NoError(t, store.heal(ctx))

	messages, err := store.ChatStore().ListMessages(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "survivor", messages[0].Content)
	assert.Equal(t, 1, messages[0].Seq)

	orphaned, err := store.ChatStore().ListMessages(ctx, "ghost")
	require.NoError(t, err)
	assert.Empty(t, orphaned)
}

func TestChatMessages_RejectUnknownRole(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.ChatStore().UpsertSession(ctx,
		domain.ChatSession{ID: "s1", Title: "t"}))

	// Rows bypassing the store layer still cannot carry an unknown role.
	_, err := store.db.ExecContext(ctx, `
		INSERT INTO chat_messages (session_id, role, content, seq, created_at)
			VALUES ('s1', 'bogus-role', 'x', 1, CURRENT_TIMESTAMP)`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CHECK")
}

func TestHeal_RestoresRoleConstraint(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.ChatStore().UpsertSession(ctx,
		domain.ChatSession{ID: "s1", Title: "kept"}))

	// A CHECK-less replacement holding one valid row and one with a role
	// outside the recognized set.
	_, err := store.db.ExecContext(ctx, `
		DROP TABLE chat_messages;
		CREATE TABLE chat_messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			seq INTEGER NOT NULL,
			created_at DATETIME NOT NULL
		);
		INSERT INTO chat_messages (session_id, role, content, seq, created_at)
			VALUES ('s1', 'assistant', 'valid', 1, CURRENT_TIMESTAMP);
		INSERT INTO chat_messages (session_id, role, content, seq, created_at)
			VALUES ('s1', 'bogus-role', 'coerced', 2, CURRENT_TIMESTAMP);
	`)
	require.NoError(t, err)

	require.NoError(t, store.heal(ctx))

	// Known roles survive untouched, unknown ones degrade to user.
	messages, err := store.ChatStore().ListMessages(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, domain.RoleAssistant, messages[0].Role)
	assert.Equal(t, domain.RoleUser, messages[1].Role)

	// The canonical table enforces the role set again.
	_, err = store.db.ExecContext(ctx, `
		INSERT INTO chat_messages (session_id, role, content, seq, created_at)
			VALUES ('s1', 'bogus-role', 'x', 3, CURRENT_TIMESTAMP)`)
	assert.Error(t, err)
}

func TestHeal_ClampsOutOfRangeSeq(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.ChatStore().UpsertSession(ctx,
		domain.ChatSession{ID: "s1", Title: "kept"}))

	_, err := store.db.ExecContext(ctx, `
		DROP TABLE chat_messages;
		CREATE TABLE chat_messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			seq INTEGER NOT NULL,
			created_at DATETIME NOT NULL
		);
		INSERT INTO chat_messages (session_id, role, content, seq, created_at)
			VALUES ('s1', 'user', 'negative', -5, CURRENT_TIMESTAMP);
		INSERT INTO chat_messages (session_id, role, content, seq, created_at)
			VALUES ('s1', 'assistant', 'later', 3, CURRENT_TIMESTAMP);
	`)
	require.NoError(t, err)

	require.NoError(t, store.heal(ctx))

	messages, err := store.ChatStore().ListMessages(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "negative", messages[0].Content)
	assert.Equal(t, 1, messages[0].Seq)
	assert.Equal(t, "later", messages[1].Content)
	assert.Equal(t, 3, messages[1].Seq)
}

func TestHeal_RestoresNotNullConstraints(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	// A replacement whose columns match on type but allow NULL.
	_, err := store.db.ExecContext(ctx, `
		DROP TABLE meta;
		CREATE TABLE meta (
			key TEXT PRIMARY KEY,
			value TEXT,
			updated_at DATETIME
		);
		INSERT INTO meta (key, value) VALUES ('k', NULL);
	`)
	require.NoError(t, err)

	require.NoError(t, store.heal(ctx))

	// The NULL value was salvaged to the empty-string default.
	value, err := store.MetaStore().Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "", value)

	// NULLs are rejected again.
	_, err = store.db.ExecContext(ctx,
		"INSERT INTO meta (key, value, updated_at) VALUES ('k2', NULL, CURRENT_TIMESTAMP)")
	assert.Error(t, err)
}

func TestHeal_NoOpOnHealthySchema(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.RepositoryStore().UpsertRepositories(ctx,
		[]domain.Repository{testRepo(1, "alice/indexer")}))

	require.NoError(t, store.heal(ctx))

	count, err := store.RepositoryStore().Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestIsSchemaError(t *testing.T) {
	assert.True(t, isSchemaError(errSchema("SQL logic error: no such table: meta")))
	assert.True(t, isSchemaError(errSchema("table chunks has no column named source")))
	assert.False(t, isSchemaError(errSchema("UNIQUE constraint failed")))
}

type errSchema string

func (e errSchema) Error() string { return string(e) }
