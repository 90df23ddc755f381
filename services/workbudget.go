package services

import (
	"context"
	"sync"

	"github.com/prodbudget/quote-api/models"
	"github.com/prodbudget/quote-api/storage"
	"github.com/prodbudget/quote-api/utils"
)

// TreeTarget selects which of a quote's two trees an operation applies to.
type TreeTarget string

const (
	TargetBudget     TreeTarget = "budget"
	TargetWorkBudget TreeTarget = "work"
)

// DualBudgetService coordinates a quote's canonical budget and its work
// budget. The two trees are structurally identical but edited independently:
// changes never propagate between them. Divergence is the point: the work
// budget tracks actual costs against the plan.
//
// Mutations apply to in-memory state synchronously (optimistic update) and
// then persist through the repository; with the queued repository in front
// of Postgres a save is fire-and-forget from here. The service assumes a
// single active editor per quote; operations on one quote are serialized by
// the mutex, and last write wins at the persistence layer.
type DualBudgetService struct {
	repo storage.BudgetRepository

	mu     sync.Mutex
	quotes map[string]*quoteTrees
}

type quoteTrees struct {
	budget     []models.BudgetCategory
	workBudget []models.BudgetCategory
	workActive bool
	loaded     bool
}

func NewDualBudgetService(repo storage.BudgetRepository) *DualBudgetService {
	return &DualBudgetService{
		repo:   repo,
		quotes: map[string]*quoteTrees{},
	}
}

// state returns the in-memory trees for a quote, loading both trees from the
// repository the first time the quote is touched. Hydrating the work budget
// here keeps the activation guard honest across process restarts: a persisted
// work budget must never look empty just because memory is fresh.
func (s *DualBudgetService) state(ctx context.Context, quoteID string) (*quoteTrees, error) {
	st, ok := s.quotes[quoteID]
	if !ok {
		st = &quoteTrees{}
		s.quotes[quoteID] = st
	}
	if !st.loaded {
		tree, err := s.repo.LoadBudget(ctx, quoteID)
		if err != nil {
			return nil, err
		}
		work, comments, err := s.repo.LoadWorkBudget(ctx, quoteID)
		if err != nil {
			return nil, err
		}
		joinComments(work, comments)
		st.budget = tree
		st.workBudget = work
		st.workActive = len(work) > 0
		st.loaded = true
	}
	return st, nil
}

// joinComments re-attaches the separately stored comments onto matching lines
// by id. Comments without a matching line are dropped.
func joinComments(tree []models.BudgetCategory, comments map[string]string) {
	if len(comments) == 0 {
		return
	}
	for ci := range tree {
		models.WalkLines(tree[ci].Items, func(l *models.BudgetLine) bool {
			if text, ok := comments[l.ID]; ok {
				l.Comments = text
			}
			return true
		})
	}
}

// Budget returns a deep copy of the quote's canonical budget.
func (s *DualBudgetService) Budget(ctx context.Context, quoteID string) ([]models.BudgetCategory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.state(ctx, quoteID)
	if err != nil {
		return nil, err
	}
	return CloneTree(st.budget), nil
}

// WorkBudget returns a deep copy of the quote's work budget and whether
// work tracking is active.
func (s *DualBudgetService) WorkBudget(ctx context.Context, quoteID string) ([]models.BudgetCategory, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.state(ctx, quoteID)
	if err != nil {
		return nil, false, err
	}
	return CloneTree(st.workBudget), st.workActive, nil
}

// Apply runs a tree transform against the selected tree, stores the result
// in memory and persists it. The persistence outcome does not roll back the
// in-memory update; offline saves are queued by the repository.
func (s *DualBudgetService) Apply(ctx context.Context, quoteID string, target TreeTarget, op func([]models.BudgetCategory) []models.BudgetCategory) ([]models.BudgetCategory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.state(ctx, quoteID)
	if err != nil {
		return nil, err
	}

	if target == TargetWorkBudget {
		st.workBudget = op(st.workBudget)
		s.persistWorkBudget(ctx, quoteID, st)
		return CloneTree(st.workBudget), nil
	}

	st.budget = op(st.budget)
	if err := s.repo.SaveBudget(ctx, quoteID, st.budget); err != nil {
		utils.SafeError("Persist budget for quote %s: %v", quoteID, err)
	}
	return CloneTree(st.budget), nil
}

// Totals aggregates the selected tree. The work budget is priced with
// actual costs where they are set.
func (s *DualBudgetService) Totals(ctx context.Context, quoteID string, target TreeTarget, settings *models.QuoteSettings) (models.AggregationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.state(ctx, quoteID)
	if err != nil {
		return models.AggregationResult{}, err
	}
	if target == TargetWorkBudget {
		return ComputeTotals(st.workBudget, settings, true), nil
	}
	return ComputeTotals(st.budget, settings, false), nil
}

// InitializeWorkBudget seeds the work budget from a snapshot of the current
// budget, minus comments, and activates work tracking. Idempotent: a
// populated work budget is never overwritten, so switching to the work view
// twice cannot wipe in-progress edits.
func (s *DualBudgetService) InitializeWorkBudget(ctx context.Context, quoteID string) ([]models.BudgetCategory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.state(ctx, quoteID)
	if err != nil {
		return nil, err
	}

	if len(st.workBudget) > 0 {
		st.workActive = true
		return CloneTree(st.workBudget), nil
	}

	st.workBudget = StripComments(st.budget)
	st.workActive = true
	s.persistWorkBudget(ctx, quoteID, st)
	if err := s.repo.SetWorkBudgetActive(ctx, quoteID, true); err != nil {
		utils.SafeError("Persist work budget flag for quote %s: %v", quoteID, err)
	}
	return CloneTree(st.workBudget), nil
}

// ResetWorkBudget clears the work budget and deactivates work tracking.
// Unconditional and destructive; confirmation belongs to the caller.
func (s *DualBudgetService) ResetWorkBudget(ctx context.Context, quoteID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.state(ctx, quoteID)
	if err != nil {
		return err
	}
	st.workBudget = []models.BudgetCategory{}
	st.workActive = false
	s.persistWorkBudget(ctx, quoteID, st)
	if err := s.repo.SetWorkBudgetActive(ctx, quoteID, false); err != nil {
		utils.SafeError("Persist work budget flag for quote %s: %v", quoteID, err)
	}
	return nil
}

// LoadWorkBudget rehydrates the work budget from the repository and re-joins
// the separately stored comments onto matching lines by id. On load failure
// the in-memory work budget is kept as-is; retrying is the repository's job,
// not ours.
func (s *DualBudgetService) LoadWorkBudget(ctx context.Context, quoteID string) ([]models.BudgetCategory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.state(ctx, quoteID)
	if err != nil {
		return nil, err
	}

	tree, comments, loadErr := s.repo.LoadWorkBudget(ctx, quoteID)
	if loadErr != nil {
		utils.SafeWarn("Load work budget for quote %s failed, keeping in-memory state: %v", quoteID, loadErr)
		return CloneTree(st.workBudget), nil
	}

	joinComments(tree, comments)
	st.workBudget = tree
	st.workActive = len(tree) > 0
	return CloneTree(st.workBudget), nil
}

// persistWorkBudget saves the work-budget tree with its comments extracted
// into the separate mapping the gateway stores them under. The persisted
// tree itself carries no comments.
func (s *DualBudgetService) persistWorkBudget(ctx context.Context, quoteID string, st *quoteTrees) {
	comments := map[string]string{}
	for ci := range st.workBudget {
		models.WalkLines(st.workBudget[ci].Items, func(l *models.BudgetLine) bool {
			if l.Comments != "" {
				comments[l.ID] = l.Comments
			}
			return true
		})
	}
	if err := s.repo.SaveWorkBudget(ctx, quoteID, StripComments(st.workBudget), comments); err != nil {
		utils.SafeError("Persist work budget for quote %s: %v", quoteID, err)
	}
}

// Forget drops a quote's in-memory trees, forcing a reload on next access.
// Used after a version restore rewrites the stored budget.
func (s *DualBudgetService) Forget(quoteID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.quotes, quoteID)
}
