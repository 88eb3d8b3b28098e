package stores_test

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/gonnet/gonnet/pkg/stores"
)

// ExampleNewSQLiteStore demonstrates creating and initializing a new SQLite store.
func ExampleNewSQLiteStore() {
	// Create store configuration
	store, err := stores.NewSQLiteStore(stores.Config{
		Path:            ":memory:", // Use in-memory database for example
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	})
	if err != nil {
		log.Fatal(err)
	}

	// Initialize the database connection
	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		log.Fatal(err)
	}

	// Run migrations
	if err := store.Migrate(ctx); err != nil {
		log.Fatal(err)
	}

	defer store.Close()

	// Store is now ready to use
	fmt.Println("Store initialized successfully")
	// Output: Store initialized successfully
}

// ExampleSQLiteStore_CreateEvaluation demonstrates recording an evaluation.
func ExampleSQLiteStore_CreateEvaluation() {
	store, _ := stores.NewSQLiteStore(stores.Config{Path: ":memory:"})
	ctx := context.Background()
	_ = store.Init(ctx)
	_ = store.Migrate(ctx)
	defer store.Close()

	// Record an evaluation together with its dependency snapshot
	eval := &stores.Evaluation{
		ID:          "eval-001",
		Entry:       "/configs/service.gsn",
		Kind:        stores.KindFile,
		Fingerprint: stores.Checksum([]byte("jpath=/configs/lib")),
		Output:      `{ }`,
		Status:      stores.EvaluationSucceeded,
		DurationMS:  12,
		CreatedAt:   time.Now(),
	}
	deps := []stores.Dependency{
		{Path: "/configs/service.gsn", ContentSHA256: "aa11"},
	}

	if err := store.CreateEvaluation(ctx, eval, deps); err != nil {
		log.Fatal(err)
	}

	// Retrieve the evaluation
	retrieved, err := store.GetEvaluation(ctx, "eval-001")
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Entry: %s, Status: %s\n", retrieved.Entry, retrieved.Status)
	// Output: Entry: /configs/service.gsn, Status: succeeded
}

// ExampleSQLiteStore_LookupCached demonstrates reusing a cached result.
func ExampleSQLiteStore_LookupCached() {
	store, _ := stores.NewSQLiteStore(stores.Config{Path: ":memory:"})
	ctx := context.Background()
	_ = store.Init(ctx)
	_ = store.Migrate(ctx)
	defer store.Close()

	eval := &stores.Evaluation{
		ID:          "eval-002",
		Entry:       "/configs/service.gsn",
		Kind:        stores.KindFile,
		Fingerprint: "fp-1",
		Output:      `{ "port": 8080 }`,
		Status:      stores.EvaluationSucceeded,
		CreatedAt:   time.Now(),
	}
	_ = store.CreateEvaluation(ctx, eval, nil)

	// A hit returns the recorded evaluation, a miss returns nil
	cached, err := store.LookupCached(ctx, "/configs/service.gsn", stores.KindFile, "fp-1")
	if err != nil {
		log.Fatal(err)
	}
	if cached != nil {
		fmt.Println(cached.Output)
	}
	// Output: { "port": 8080 }
}

// ExampleSQLiteStore_BeginTx demonstrates using transactions.
func ExampleSQLiteStore_BeginTx() {
	store, _ := stores.NewSQLiteStore(stores.Config{Path: ":memory:"})
	ctx := context.Background()
	_ = store.Init(ctx)
	_ = store.Migrate(ctx)
	defer store.Close()

	// Begin transaction
	tx, err := store.BeginTx(ctx)
	if err != nil {
		log.Fatal(err)
	}

	// Perform operations within transaction
	query := `
		INSERT INTO evaluations (id, entry, kind, fingerprint, output, status, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = tx.ExecContext(ctx, query, "eval-tx-001", "/configs/tx.gsn",
		"file", "fp-tx", "{ }", "succeeded", 1, time.Now())

	if err != nil {
		_ = store.RollbackTx(tx)
		log.Fatal(err)
	}

	// Commit transaction
	if err := store.CommitTx(tx); err != nil {
		log.Fatal(err)
	}

	// Verify the evaluation was recorded
	eval, err := store.GetEvaluation(ctx, "eval-tx-001")
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Transaction committed: evaluation %s recorded\n", eval.ID)
	// Output: Transaction committed: evaluation eval-tx-001 recorded
}
