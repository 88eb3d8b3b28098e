// Package stores provides persistence layer implementations for gonnet.
// It includes SQLite-based storage with WAL mode, connection pooling,
// a content-addressed result cache keyed by entry and options fingerprint,
// and evaluation history with pruning.
package stores
