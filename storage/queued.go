package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/prodbudget/quote-api/models"
	"github.com/prodbudget/quote-api/syncqueue"
	"github.com/prodbudget/quote-api/utils"
)

// QueuedRepository decorates a BudgetRepository with offline tolerance.
// Loads pass straight through. When a save fails it is written to the local
// queue and the call reports success: the caller's optimistic in-memory
// state is already applied and the queue will replay the save in order once
// the backend is reachable again. Sync status surfaces through the queue's
// event subscription, not through save errors.
type QueuedRepository struct {
	backend BudgetRepository
	queue   *syncqueue.Queue
}

func NewQueuedRepository(backend BudgetRepository, queue *syncqueue.Queue) *QueuedRepository {
	return &QueuedRepository{backend: backend, queue: queue}
}

type budgetPayload struct {
	Tree     []models.BudgetCategory `json:"tree"`
	Comments map[string]string       `json:"comments,omitempty"`
	Active   bool                    `json:"active,omitempty"`
}

func (r *QueuedRepository) LoadBudget(ctx context.Context, quoteID string) ([]models.BudgetCategory, error) {
	return r.backend.LoadBudget(ctx, quoteID)
}

func (r *QueuedRepository) LoadWorkBudget(ctx context.Context, quoteID string) ([]models.BudgetCategory, map[string]string, error) {
	return r.backend.LoadWorkBudget(ctx, quoteID)
}

func (r *QueuedRepository) SaveBudget(ctx context.Context, quoteID string, tree []models.BudgetCategory) error {
	if err := r.backend.SaveBudget(ctx, quoteID, tree); err != nil {
		return r.enqueue(ctx, quoteID, syncqueue.KindBudget, budgetPayload{Tree: tree}, err)
	}
	return nil
}

func (r *QueuedRepository) SaveWorkBudget(ctx context.Context, quoteID string, tree []models.BudgetCategory, comments map[string]string) error {
	if err := r.backend.SaveWorkBudget(ctx, quoteID, tree, comments); err != nil {
		return r.enqueue(ctx, quoteID, syncqueue.KindWorkBudget, budgetPayload{Tree: tree, Comments: comments}, err)
	}
	return nil
}

func (r *QueuedRepository) SetWorkBudgetActive(ctx context.Context, quoteID string, active bool) error {
	if err := r.backend.SetWorkBudgetActive(ctx, quoteID, active); err != nil {
		return r.enqueue(ctx, quoteID, syncqueue.KindWorkBudgetFlag, budgetPayload{Active: active}, err)
	}
	return nil
}

func (r *QueuedRepository) enqueue(ctx context.Context, quoteID string, kind syncqueue.Kind, payload budgetPayload, cause error) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode queued payload: %w", err)
	}
	if err := r.queue.Enqueue(ctx, quoteID, kind, raw); err != nil {
		// Both the backend and the local queue failed; surface the original
		// persistence error.
		utils.SafeError("Save failed and could not be queued for quote %s: %v (queue: %v)", quoteID, cause, err)
		return cause
	}
	pending, _ := r.queue.Pending(ctx)
	utils.LogSyncAction("save queued (backend unreachable)", quoteID, pending)
	return nil
}

// Apply replays one queued operation against the backend; wired into the
// queue's flusher.
func (r *QueuedRepository) Apply(ctx context.Context, op syncqueue.Operation) error {
	var payload budgetPayload
	if err := json.Unmarshal(op.Payload, &payload); err != nil {
		return fmt.Errorf("decode queued payload: %w", err)
	}
	switch op.Kind {
	case syncqueue.KindBudget:
		return r.backend.SaveBudget(ctx, op.QuoteID, payload.Tree)
	case syncqueue.KindWorkBudget:
		return r.backend.SaveWorkBudget(ctx, op.QuoteID, payload.Tree, payload.Comments)
	case syncqueue.KindWorkBudgetFlag:
		return r.backend.SetWorkBudgetActive(ctx, op.QuoteID, payload.Active)
	default:
		return fmt.Errorf("unknown queued operation kind %q", op.Kind)
	}
}
