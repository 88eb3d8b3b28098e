package stores

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// setupTestStore creates an in-memory SQLite store for testing
func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := NewSQLiteStore(Config{
		Path: ":memory:",
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}

	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate store: %v", err)
	}

	return store
}

// TestStoreLifecycle tests database initialization and closure
func TestStoreLifecycle(t *testing.T) {
	store, err := NewSQLiteStore(Config{
		Path: ":memory:",
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}

	if err := store.HealthCheck(ctx); err != nil {
		t.Fatalf("health check failed: %v", err)
	}

	if err := store.Close(); err != nil {
		t.Fatalf("failed to close store: %v", err)
	}
}

// TestStoreMigrations tests database migrations
func TestStoreMigrations(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx := context.Background()

	// Check that tables exist by querying them
	tables := []string{"evaluations", "evaluation_deps"}
	for _, table := range tables {
		query := "SELECT COUNT(*) FROM " + table
		var count int
		err := store.db.QueryRowContext(ctx, query).Scan(&count)
		if err != nil {
			t.Errorf("table %s does not exist or is not accessible: %v", table, err)
		}
	}
}

// TestEvaluationCRUD tests evaluation create, read, list and delete
func TestEvaluationCRUD(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx := context.Background()
	now := time.Now()

	// Create
	eval := &Evaluation{
		ID:          "eval-001",
		Entry:       "/configs/service.gsn",
		Kind:        KindFile,
		Fingerprint: "fp-abc",
		Output:      "{\n   \"port\": 8080\n}",
		Status:      EvaluationSucceeded,
		DurationMS:  12,
		CreatedAt:   now,
	}
	deps := []Dependency{
		{Path: "/configs/service.gsn", ContentSHA256: "aa11"},
		{Path: "/configs/lib/ports.gsn", ContentSHA256: "bb22"},
	}

	if err := store.CreateEvaluation(ctx, eval, deps); err != nil {
		t.Fatalf("failed to create evaluation: %v", err)
	}

	// Read
	retrieved, err := store.GetEvaluation(ctx, eval.ID)
	if err != nil {
		t.Fatalf("failed to get evaluation: %v", err)
	}

	if retrieved.ID != eval.ID {
		t.Errorf("expected ID %s, got %s", eval.ID, retrieved.ID)
	}
	if retrieved.Entry != eval.Entry {
		t.Errorf("expected Entry %s, got %s", eval.Entry, retrieved.Entry)
	}
	if retrieved.Kind != eval.Kind {
		t.Errorf("expected Kind %s, got %s", eval.Kind, retrieved.Kind)
	}
	if retrieved.Fingerprint != eval.Fingerprint {
		t.Errorf("expected Fingerprint %s, got %s", eval.Fingerprint, retrieved.Fingerprint)
	}
	if retrieved.Output != eval.Output {
		t.Errorf("expected Output %s, got %s", eval.Output, retrieved.Output)
	}
	if retrieved.Status != eval.Status {
		t.Errorf("expected Status %s, got %s", eval.Status, retrieved.Status)
	}
	if retrieved.Error != nil {
		t.Errorf("expected nil Error, got %v", *retrieved.Error)
	}
	if retrieved.DurationMS != eval.DurationMS {
		t.Errorf("expected DurationMS %d, got %d", eval.DurationMS, retrieved.DurationMS)
	}

	// Dependencies come back sorted by path
	stored, err := store.ListDependencies(ctx, eval.ID)
	if err != nil {
		t.Fatalf("failed to list dependencies: %v", err)
	}

	if len(stored) != 2 {
		t.Fatalf("expected 2 dependencies, got %d", len(stored))
	}
	if stored[0].Path != "/configs/lib/ports.gsn" {
		t.Errorf("expected first dependency /configs/lib/ports.gsn, got %s", stored[0].Path)
	}
	if stored[1].Path != "/configs/service.gsn" {
		t.Errorf("expected second dependency /configs/service.gsn, got %s", stored[1].Path)
	}
	if stored[0].EvaluationID != eval.ID {
		t.Errorf("expected EvaluationID %s, got %s", eval.ID, stored[0].EvaluationID)
	}
	if stored[1].ContentSHA256 != "aa11" {
		t.Errorf("expected digest aa11, got %s", stored[1].ContentSHA256)
	}

	// List
	evals, err := store.ListEvaluations(ctx, 10, 0)
	if err != nil {
		t.Fatalf("failed to list evaluations: %v", err)
	}

	if len(evals) != 1 {
		t.Errorf("expected 1 evaluation, got %d", len(evals))
	}

	// Delete cascades to dependencies
	if err := store.DeleteEvaluation(ctx, eval.ID); err != nil {
		t.Fatalf("failed to delete evaluation: %v", err)
	}

	_, err = store.GetEvaluation(ctx, eval.ID)
	if err == nil {
		t.Error("expected error when getting deleted evaluation")
	}

	orphans, err := store.ListDependencies(ctx, eval.ID)
	if err != nil {
		t.Fatalf("failed to list dependencies after delete: %v", err)
	}
	if len(orphans) != 0 {
		t.Errorf("expected 0 dependencies after delete, got %d", len(orphans))
	}

	if err := store.DeleteEvaluation(ctx, eval.ID); err == nil {
		t.Error("expected error when deleting missing evaluation")
	}
}

// TestFailedEvaluation tests recording an evaluation that ended with an error
func TestFailedEvaluation(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx := context.Background()
	errMsg := "[runtime] boom"

	eval := &Evaluation{
		ID:          "eval-fail",
		Entry:       "/configs/broken.gsn",
		Kind:        KindFile,
		Fingerprint: "fp-abc",
		Status:      EvaluationFailed,
		Error:       &errMsg,
		DurationMS:  3,
		CreatedAt:   time.Now(),
	}

	if err := store.CreateEvaluation(ctx, eval, nil); err != nil {
		t.Fatalf("failed to create evaluation: %v", err)
	}

	retrieved, err := store.GetEvaluation(ctx, eval.ID)
	if err != nil {
		t.Fatalf("failed to get evaluation: %v", err)
	}

	if retrieved.Status != EvaluationFailed {
		t.Errorf("expected Status %s, got %s", EvaluationFailed, retrieved.Status)
	}
	if retrieved.Error == nil || *retrieved.Error != errMsg {
		t.Errorf("expected Error %s, got %v", errMsg, retrieved.Error)
	}
}

// TestLookupCached tests the content-addressed result cache queries
func TestLookupCached(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx := context.Background()
	now := time.Now()

	// Miss on an empty store is not an error
	cached, err := store.LookupCached(ctx, "/configs/a.gsn", KindFile, "fp-1")
	if err != nil {
		t.Fatalf("failed to look up cache: %v", err)
	}
	if cached != nil {
		t.Errorf("expected cache miss, got %s", cached.ID)
	}

	// Failed evaluations never serve the cache
	errMsg := "boom"
	failed := &Evaluation{
		ID:          "eval-f",
		Entry:       "/configs/a.gsn",
		Kind:        KindFile,
		Fingerprint: "fp-1",
		Status:      EvaluationFailed,
		Error:       &errMsg,
		CreatedAt:   now,
	}
	if err := store.CreateEvaluation(ctx, failed, nil); err != nil {
		t.Fatalf("failed to create evaluation: %v", err)
	}

	cached, err = store.LookupCached(ctx, "/configs/a.gsn", KindFile, "fp-1")
	if err != nil {
		t.Fatalf("failed to look up cache: %v", err)
	}
	if cached != nil {
		t.Error("expected failed evaluations to be skipped")
	}

	// The newest successful match wins
	older := &Evaluation{
		ID:          "eval-old",
		Entry:       "/configs/a.gsn",
		Kind:        KindFile,
		Fingerprint: "fp-1",
		Output:      "1",
		Status:      EvaluationSucceeded,
		CreatedAt:   now.Add(-time.Hour),
	}
	newer := &Evaluation{
		ID:          "eval-new",
		Entry:       "/configs/a.gsn",
		Kind:        KindFile,
		Fingerprint: "fp-1",
		Output:      "2",
		Status:      EvaluationSucceeded,
		CreatedAt:   now,
	}
	if err := store.CreateEvaluation(ctx, older, nil); err != nil {
		t.Fatalf("failed to create evaluation: %v", err)
	}
	if err := store.CreateEvaluation(ctx, newer, nil); err != nil {
		t.Fatalf("failed to create evaluation: %v", err)
	}

	cached, err = store.LookupCached(ctx, "/configs/a.gsn", KindFile, "fp-1")
	if err != nil {
		t.Fatalf("failed to look up cache: %v", err)
	}
	if cached == nil {
		t.Fatal("expected cache hit")
	}
	if cached.ID != "eval-new" {
		t.Errorf("expected eval-new, got %s", cached.ID)
	}
	if cached.Output != "2" {
		t.Errorf("expected output 2, got %s", cached.Output)
	}

	// A different fingerprint is a different cache slot
	cached, err = store.LookupCached(ctx, "/configs/a.gsn", KindFile, "fp-2")
	if err != nil {
		t.Fatalf("failed to look up cache: %v", err)
	}
	if cached != nil {
		t.Error("expected miss for unseen fingerprint")
	}

	// So is a different kind
	cached, err = store.LookupCached(ctx, "/configs/a.gsn", KindSnippet, "fp-1")
	if err != nil {
		t.Fatalf("failed to look up cache: %v", err)
	}
	if cached != nil {
		t.Error("expected miss for snippet kind")
	}
}

// TestListEvaluationsPagination tests list ordering and pagination
func TestListEvaluationsPagination(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx := context.Background()
	now := time.Now()

	ids := []string{"eval-1", "eval-2", "eval-3"}
	for i, id := range ids {
		eval := &Evaluation{
			ID:          id,
			Entry:       "/configs/a.gsn",
			Kind:        KindFile,
			Fingerprint: "fp",
			Output:      "{ }",
			Status:      EvaluationSucceeded,
			CreatedAt:   now.Add(time.Duration(i) * time.Minute),
		}
		if err := store.CreateEvaluation(ctx, eval, nil); err != nil {
			t.Fatalf("failed to create evaluation: %v", err)
		}
	}

	page, err := store.ListEvaluations(ctx, 2, 0)
	if err != nil {
		t.Fatalf("failed to list evaluations: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("expected 2 evaluations, got %d", len(page))
	}
	if page[0].ID != "eval-3" || page[1].ID != "eval-2" {
		t.Errorf("expected newest first, got %s then %s", page[0].ID, page[1].ID)
	}

	page, err = store.ListEvaluations(ctx, 2, 2)
	if err != nil {
		t.Fatalf("failed to list evaluations: %v", err)
	}
	if len(page) != 1 {
		t.Fatalf("expected 1 evaluation, got %d", len(page))
	}
	if page[0].ID != "eval-1" {
		t.Errorf("expected eval-1, got %s", page[0].ID)
	}
}

// TestPruneBefore tests history pruning and the dependency cascade
func TestPruneBefore(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx := context.Background()
	now := time.Now()

	old := &Evaluation{
		ID:          "eval-old",
		Entry:       "/configs/a.gsn",
		Kind:        KindFile,
		Fingerprint: "fp",
		Output:      "1",
		Status:      EvaluationSucceeded,
		CreatedAt:   now.Add(-48 * time.Hour),
	}
	recent := &Evaluation{
		ID:          "eval-recent",
		Entry:       "/configs/a.gsn",
		Kind:        KindFile,
		Fingerprint: "fp",
		Output:      "2",
		Status:      EvaluationSucceeded,
		CreatedAt:   now,
	}

	oldDeps := []Dependency{{Path: "/configs/a.gsn", ContentSHA256: "aa"}}
	if err := store.CreateEvaluation(ctx, old, oldDeps); err != nil {
		t.Fatalf("failed to create evaluation: %v", err)
	}
	if err := store.CreateEvaluation(ctx, recent, nil); err != nil {
		t.Fatalf("failed to create evaluation: %v", err)
	}

	pruned, err := store.PruneBefore(ctx, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("failed to prune evaluations: %v", err)
	}
	if pruned != 1 {
		t.Errorf("expected 1 pruned evaluation, got %d", pruned)
	}

	if _, err := store.GetEvaluation(ctx, "eval-old"); err == nil {
		t.Error("expected pruned evaluation to be gone")
	}
	if _, err := store.GetEvaluation(ctx, "eval-recent"); err != nil {
		t.Errorf("expected recent evaluation to survive: %v", err)
	}

	deps, err := store.ListDependencies(ctx, "eval-old")
	if err != nil {
		t.Fatalf("failed to list dependencies: %v", err)
	}
	if len(deps) != 0 {
		t.Errorf("expected dependencies to cascade, got %d", len(deps))
	}
}

// TestChecksum tests the digest helper against known values
func TestChecksum(t *testing.T) {
	if got := Checksum(nil); got != "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855" {
		t.Errorf("unexpected digest for empty input: %s", got)
	}
	if got := Checksum([]byte("hello world")); got != "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9" {
		t.Errorf("unexpected digest for hello world: %s", got)
	}
}

// TestDependenciesFresh tests staleness detection against real files
func TestDependenciesFresh(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lib.gsn")

	if err := os.WriteFile(path, []byte("{ answer: 42 }"), 0o644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	deps := []Dependency{{Path: path, ContentSHA256: Checksum([]byte("{ answer: 42 }"))}}

	if !DependenciesFresh(deps) {
		t.Error("expected unchanged dependencies to be fresh")
	}

	if err := os.WriteFile(path, []byte("{ answer: 43 }"), 0o644); err != nil {
		t.Fatalf("failed to rewrite file: %v", err)
	}
	if DependenciesFresh(deps) {
		t.Error("expected rewritten dependency to be stale")
	}

	missing := []Dependency{{Path: filepath.Join(dir, "absent.gsn"), ContentSHA256: "aa"}}
	if DependenciesFresh(missing) {
		t.Error("expected missing dependency to be stale")
	}

	if !DependenciesFresh(nil) {
		t.Error("expected empty dependency set to be fresh")
	}
}
