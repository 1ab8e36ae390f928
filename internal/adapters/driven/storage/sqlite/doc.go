// Package sqlite implements the persistence ports on a single SQLite
// database file.
//
// The package provides a unified Store that exposes the individual store
// interfaces (repositories, chunks, embeddings, chat, meta) through
// accessor methods, so callers depend only on the ports they use.
//
// The database runs in WAL mode. Embedding writes are durable in the WAL
// as soon as their transaction commits; a checkpoint policy additionally
// folds the WAL into the main file after every 256 embedding writes or 3
// seconds of pending writes, and on Flush/Close, so a crash or power loss
// never costs committed vectors.
//
// The schema is self-healing: on open, and once more after any operation
// that fails with a schema-shaped error, the store verifies every table
// against a declarative expectation list and rebuilds tables in place,
// salvaging whatever rows it can. Data the index can recompute (the
// embeddings table) is dropped and recreated instead of salvaged when its
// shape is wrong.
package sqlite
