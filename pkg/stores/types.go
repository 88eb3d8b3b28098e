package stores

import (
	"context"
	"database/sql"
	"time"
)

// EvaluationStatus represents the outcome of a recorded evaluation
type EvaluationStatus string

const (
	EvaluationSucceeded EvaluationStatus = "succeeded"
	EvaluationFailed    EvaluationStatus = "failed"
)

// Evaluation kinds, matching how the program was handed to the evaluator.
const (
	KindFile    = "file"
	KindSnippet = "snippet"
)

// Evaluation represents one recorded evaluator run. Entry holds the absolute
// entry path for file evaluations and the snippet source for inline ones.
// Fingerprint digests the evaluation options, so runs of the same entry with
// different bindings never share a cache slot.
type Evaluation struct {
	ID          string           `json:"id"`
	Entry       string           `json:"entry"`
	Kind        string           `json:"kind"` // file or snippet
	Fingerprint string           `json:"fingerprint"`
	Output      string           `json:"output"`
	Status      EvaluationStatus `json:"status"`
	Error       *string          `json:"error,omitempty"`
	DurationMS  int64            `json:"duration_ms"`
	CreatedAt   time.Time        `json:"created_at"`
}

// Dependency records one file an evaluation read, with the digest of its
// content at evaluation time. A cached result is reusable only while every
// recorded dependency still hashes to the same digest.
type Dependency struct {
	EvaluationID  string `json:"evaluation_id"`
	Path          string `json:"path"`
	ContentSHA256 string `json:"content_sha256"`
}

// Store defines the interface for the persistence layer
type Store interface {
	// Lifecycle
	Init(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error

	// Transaction support
	BeginTx(ctx context.Context) (*sql.Tx, error)
	CommitTx(tx *sql.Tx) error
	RollbackTx(tx *sql.Tx) error

	// Evaluation operations
	CreateEvaluation(ctx context.Context, eval *Evaluation, deps []Dependency) error
	GetEvaluation(ctx context.Context, id string) (*Evaluation, error)
	ListEvaluations(ctx context.Context, limit, offset int) ([]*Evaluation, error)
	DeleteEvaluation(ctx context.Context, id string) error

	// Result cache operations
	LookupCached(ctx context.Context, entry, kind, fingerprint string) (*Evaluation, error)
	ListDependencies(ctx context.Context, evaluationID string) ([]Dependency, error)

	// History maintenance
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// Utility
	HealthCheck(ctx context.Context) error
}
