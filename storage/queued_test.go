package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/prodbudget/quote-api/models"
	"github.com/prodbudget/quote-api/syncqueue"
)

// flakyBackend fails every save while down is set, recording what reached it.
type flakyBackend struct {
	down bool

	budgets     map[string][]models.BudgetCategory
	workBudgets map[string][]models.BudgetCategory
	comments    map[string]map[string]string
	active      map[string]bool
}

func newFlakyBackend() *flakyBackend {
	return &flakyBackend{
		budgets:     map[string][]models.BudgetCategory{},
		workBudgets: map[string][]models.BudgetCategory{},
		comments:    map[string]map[string]string{},
		active:      map[string]bool{},
	}
}

var errDown = errors.New("connection refused")

func (b *flakyBackend) LoadBudget(_ context.Context, quoteID string) ([]models.BudgetCategory, error) {
	return b.budgets[quoteID], nil
}

func (b *flakyBackend) LoadWorkBudget(_ context.Context, quoteID string) ([]models.BudgetCategory, map[string]string, error) {
	return b.workBudgets[quoteID], b.comments[quoteID], nil
}

func (b *flakyBackend) SaveBudget(_ context.Context, quoteID string, tree []models.BudgetCategory) error {
	if b.down {
		return errDown
	}
	b.budgets[quoteID] = tree
	return nil
}

func (b *flakyBackend) SaveWorkBudget(_ context.Context, quoteID string, tree []models.BudgetCategory, comments map[string]string) error {
	if b.down {
		return errDown
	}
	b.workBudgets[quoteID] = tree
	b.comments[quoteID] = comments
	return nil
}

func (b *flakyBackend) SetWorkBudgetActive(_ context.Context, quoteID string, active bool) error {
	if b.down {
		return errDown
	}
	b.active[quoteID] = active
	return nil
}

func newQueuedUnderTest(t *testing.T) (*QueuedRepository, *flakyBackend, *syncqueue.Queue) {
	t.Helper()
	queue, err := syncqueue.Open(filepath.Join(t.TempDir(), "queue.db"))
	if err != nil {
		t.Fatalf("open queue: %v", err)
	}
	t.Cleanup(func() { queue.Close() })
	backend := newFlakyBackend()
	return NewQueuedRepository(backend, queue), backend, queue
}

func testTree() []models.BudgetCategory {
	return []models.BudgetCategory{{
		ID:    "cat-1",
		Name:  "Tournage",
		Items: []models.BudgetLine{{ID: "post-1", Type: models.LineTypePost, Rate: 650, Quantity: 5, Number: 1}},
	}}
}

func TestSaveBudgetPassesThroughWhenBackendUp(t *testing.T) {
	repo, backend, queue := newQueuedUnderTest(t)
	ctx := context.Background()

	if err := repo.SaveBudget(ctx, "q1", testTree()); err != nil {
		t.Fatal(err)
	}
	if len(backend.budgets["q1"]) != 1 {
		t.Error("save did not reach the backend")
	}
	if n, _ := queue.Pending(ctx); n != 0 {
		t.Errorf("pending = %d, want 0", n)
	}
}

func TestFailedSaveIsQueuedAndReportedAsSuccess(t *testing.T) {
	repo, backend, queue := newQueuedUnderTest(t)
	ctx := context.Background()
	backend.down = true

	if err := repo.SaveBudget(ctx, "q1", testTree()); err != nil {
		t.Fatalf("queued save should report success, got %v", err)
	}
	if n, _ := queue.Pending(ctx); n != 1 {
		t.Fatalf("pending = %d, want 1", n)
	}
	if len(backend.budgets) != 0 {
		t.Error("backend was written while down")
	}
}

func TestQueuedSavesReplayAfterRecovery(t *testing.T) {
	repo, backend, queue := newQueuedUnderTest(t)
	ctx := context.Background()
	backend.down = true

	comments := map[string]string{"post-1": "night rate"}
	if err := repo.SaveBudget(ctx, "q1", testTree()); err != nil {
		t.Fatal(err)
	}
	if err := repo.SaveWorkBudget(ctx, "q1", testTree(), comments); err != nil {
		t.Fatal(err)
	}
	if err := repo.SetWorkBudgetActive(ctx, "q1", true); err != nil {
		t.Fatal(err)
	}
	if n, _ := queue.Pending(ctx); n != 3 {
		t.Fatalf("pending = %d, want 3", n)
	}

	backend.down = false
	if err := queue.Flush(ctx, repo.Apply); err != nil {
		t.Fatalf("flush: %v", err)
	}

	if n, _ := queue.Pending(ctx); n != 0 {
		t.Errorf("pending after flush = %d, want 0", n)
	}
	if len(backend.budgets["q1"]) != 1 {
		t.Error("budget save not replayed")
	}
	if got := backend.comments["q1"]["post-1"]; got != "night rate" {
		t.Errorf("work budget comments not replayed: %q", got)
	}
	if !backend.active["q1"] {
		t.Error("work budget flag not replayed")
	}
}

func TestFlushKeepsEntryWhileBackendStillDown(t *testing.T) {
	repo, backend, queue := newQueuedUnderTest(t)
	ctx := context.Background()
	backend.down = true

	if err := repo.SaveBudget(ctx, "q1", testTree()); err != nil {
		t.Fatal(err)
	}
	if err := queue.Flush(ctx, repo.Apply); err == nil {
		t.Fatal("flush against a down backend should fail")
	}
	if n, _ := queue.Pending(ctx); n != 1 {
		t.Errorf("pending = %d, want 1", n)
	}
}

func TestApplyRejectsUnknownKind(t *testing.T) {
	repo, _, _ := newQueuedUnderTest(t)
	err := repo.Apply(context.Background(), syncqueue.Operation{Kind: "bogus", Payload: []byte(`{}`)})
	if err == nil {
		t.Fatal("unknown kind should error")
	}
}
