package wizard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	domain "github.com/ganot/stepwise/internal/domain/wizard"
	"golang.org/x/sync/errgroup"
)

// Config holds the controller's collaborators.
type Config struct {
	Definition  *domain.Definition
	TenantID    string
	Progress    ProgressStore
	Suggestions SuggestionSource
	Quotas      QuotaSource
	Submitter   Submitter
	Logger      *slog.Logger
}

// Controller drives one tenant's wizard session. It owns the step pointer
// and the drafts of every step. Remote calls are made without holding the
// lock, so accessors stay responsive while a call is in flight.
type Controller struct {
	def         *domain.Definition
	tenantID    string
	progress    ProgressStore
	suggestions SuggestionSource
	quotas      QuotaSource
	submitter   Submitter
	logger      *slog.Logger

	mu      sync.Mutex
	current int
	drafts  domain.Drafts
	edited  map[domain.StepKey]map[string]bool
	quota   *domain.Quota
	uses    []domain.SuggestionUse
	ops     map[Op]OpState
	errs    map[Op]error
	receipt *domain.Receipt
	done    chan struct{}
}

// New creates a controller on step 1 with empty drafts.
func New(cfg Config) (*Controller, error) {
	switch {
	case cfg.Definition == nil || cfg.Definition.TotalSteps() == 0:
		return nil, errors.New("wizard definition is required")
	case cfg.TenantID == "":
		return nil, errors.New("tenant id is required")
	case cfg.Progress == nil || cfg.Suggestions == nil || cfg.Quotas == nil || cfg.Submitter == nil:
		return nil, errors.New("progress, suggestion, quota and submission clients are required")
	}
	return &Controller{
		def:         cfg.Definition,
		tenantID:    cfg.TenantID,
		progress:    cfg.Progress,
		suggestions: cfg.Suggestions,
		quotas:      cfg.Quotas,
		submitter:   cfg.Submitter,
		logger:      cfg.Logger,
		current:     1,
		drafts:      domain.Drafts{},
		edited:      map[domain.StepKey]map[string]bool{},
		ops:         map[Op]OpState{},
		errs:        map[Op]error{},
		done:        make(chan struct{}),
	}, nil
}

// begin marks op pending. The caller must hold c.mu.
func (c *Controller) begin(op Op) error {
	if c.receipt != nil {
		return ErrCompleted
	}
	for _, other := range conflicts(op) {
		if c.ops[other] == Pending {
			return ErrOperationPending
		}
	}
	c.ops[op] = Pending
	delete(c.errs, op)
	return nil
}

// finish records the outcome of op. The caller must hold c.mu.
func (c *Controller) finish(op Op, err error) {
	if err != nil {
		c.ops[op] = Failed
		c.errs[op] = err
		return
	}
	c.ops[op] = Succeeded
}

func (c *Controller) activeStep() domain.StepDefinition {
	step, _ := c.def.Step(c.current)
	return step
}

func (c *Controller) draftFor(step domain.StepDefinition) domain.StepDraft {
	if d, ok := c.drafts[step.Key]; ok {
		return d
	}
	return step.Empty()
}

// LoadSavedProgress fetches saved progress and the quota concurrently.
// Saved progress replaces the in-memory session. With none saved the session
// restarts at step 1 with empty drafts. A failed quota fetch is not fatal.
func (c *Controller) LoadSavedProgress(ctx context.Context) error {
	c.mu.Lock()
	if err := c.begin(OpLoad); err != nil {
		c.mu.Unlock()
		return err
	}
	c.mu.Unlock()

	var (
		saved    *domain.Progress
		quota    *domain.Quota
		quotaErr error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := c.progress.Load(gctx, c.tenantID, c.def.ID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		saved = p
		return nil
	})
	g.Go(func() error {
		quota, quotaErr = c.quotas.Get(gctx, c.tenantID)
		return nil
	})
	err := g.Wait()

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.finish(OpLoad, err)
		return err
	}
	if quotaErr != nil {
		c.warn("quota fetch failed", quotaErr)
	} else if quota != nil {
		c.quota = quota
	}

	c.edited = map[domain.StepKey]map[string]bool{}
	if saved == nil {
		c.current = 1
		c.drafts = domain.Drafts{}
	} else {
		c.current = clamp(saved.CurrentStep, 1, c.def.TotalSteps())
		c.drafts = saved.Drafts.Clone()
		if c.drafts == nil {
			c.drafts = domain.Drafts{}
		}
		for key, draft := range c.drafts {
			c.edited[key] = filledFields(c.def, key, draft)
		}
	}
	c.finish(OpLoad, nil)
	return nil
}

// GoNext validates the active step, saves it, and advances once the save is
// acknowledged. On the last step it saves and stays. A validation failure
// is returned as *domain.ValidationError and nothing is sent.
func (c *Controller) GoNext(ctx context.Context) error {
	c.mu.Lock()
	if err := c.begin(OpNext); err != nil {
		c.mu.Unlock()
		return err
	}
	step := c.activeStep()
	draft := domain.Derive(c.draftFor(step))
	if errs := step.Validate(draft); len(errs) > 0 {
		verr := &domain.ValidationError{Step: step.Key, Errors: errs}
		c.finish(OpNext, verr)
		c.mu.Unlock()
		return verr
	}
	c.drafts[step.Key] = draft
	from := c.current
	next := clamp(from+1, 1, c.def.TotalSteps())
	c.mu.Unlock()

	// The saved pointer is the step being advanced to, so a reload resumes there.
	err := c.progress.Save(ctx, c.tenantID, domain.SaveRequest{
		WizardID:    c.def.ID,
		CurrentStep: next,
		StepKey:     step.Key,
		Draft:       draft,
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.finish(OpNext, err)
		c.warn("save progress failed", err, "step", step.Key)
		return err
	}
	c.current = next
	c.finish(OpNext, nil)
	return nil
}

// GoPrevious moves back one step without validating or saving.
func (c *Controller) GoPrevious() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.receipt != nil {
		return ErrCompleted
	}
	for _, op := range navigation {
		if c.ops[op] == Pending {
			return ErrOperationPending
		}
	}
	c.current = clamp(c.current-1, 1, c.def.TotalSteps())
	return nil
}

// EditField sets one field of the active step from its text form and marks
// it as edited by the user.
func (c *Controller) EditField(name, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.receipt != nil {
		return ErrCompleted
	}
	step := c.activeStep()
	next, err := step.WithField(c.draftFor(step), name, value)
	if err != nil {
		return err
	}
	c.drafts[step.Key] = next
	c.markEdited(step.Key, name)
	return nil
}

// ReplaceDraft replaces the active step's draft. Every field counts as
// edited by the user.
func (c *Controller) ReplaceDraft(draft domain.StepDraft) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.receipt != nil {
		return ErrCompleted
	}
	step := c.activeStep()
	if draft == nil || draft.StepKey() != step.Key {
		return fmt.Errorf("%w: draft does not belong to step %s", domain.ErrMalformedDraft, step.Key)
	}
	c.drafts[step.Key] = domain.Derive(draft)
	for _, f := range step.Fields {
		if f.Kind != domain.KindDerived {
			c.markEdited(step.Key, f.Name)
		}
	}
	return nil
}

func (c *Controller) markEdited(key domain.StepKey, name string) {
	if c.edited[key] == nil {
		c.edited[key] = map[string]bool{}
	}
	c.edited[key][name] = true
}

// SuggestionResult is a suggestion and the fields it changed.
type SuggestionResult struct {
	Suggestion *domain.Suggestion
	Applied    []string
}

// RequestSuggestion asks for suggestions for the active step and merges them
// into its draft, leaving user-edited fields alone. With a locally exhausted
// quota it fails with ErrQuotaExhausted without a request unless force is set.
// The local counter only moves after the server confirms success; the quota
// is then re-read from the server.
func (c *Controller) RequestSuggestion(ctx context.Context, force bool) (*SuggestionResult, error) {
	c.mu.Lock()
	if err := c.begin(OpSuggest); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	if c.quota != nil && c.quota.Exhausted() && !force {
		c.finish(OpSuggest, ErrQuotaExhausted)
		c.mu.Unlock()
		return nil, ErrQuotaExhausted
	}
	step := c.activeStep()
	req := domain.SuggestionRequest{
		WizardID:      c.def.ID,
		StepKey:       step.Key,
		Draft:         c.draftFor(step),
		PreviousSteps: c.previousDrafts(),
	}
	c.mu.Unlock()

	suggestion, err := c.suggestions.Suggest(ctx, c.tenantID, req)
	if err != nil {
		c.mu.Lock()
		c.finish(OpSuggest, err)
		c.mu.Unlock()
		if errors.Is(err, ErrQuotaExceeded) {
			c.reconcileQuota(ctx)
		}
		return nil, err
	}

	c.mu.Lock()
	merged, applied, mergeErr := step.Merge(c.draftFor(step), suggestion.SuggestedData, c.edited[step.Key])
	if mergeErr == nil && len(applied) > 0 {
		c.drafts[step.Key] = merged
	}
	c.uses = append(c.uses, domain.SuggestionUse{StepKey: step.Key, Confidence: suggestion.Confidence, Applied: applied})
	if c.quota != nil {
		c.quota.Used++
	}
	c.finish(OpSuggest, nil)
	c.mu.Unlock()

	c.reconcileQuota(ctx)

	if mergeErr != nil {
		return nil, fmt.Errorf("applying suggestion: %w", mergeErr)
	}
	return &SuggestionResult{Suggestion: suggestion, Applied: applied}, nil
}

// previousDrafts returns the drafts of steps before the active one. The
// caller must hold c.mu.
func (c *Controller) previousDrafts() domain.Drafts {
	out := domain.Drafts{}
	for n := 1; n < c.current; n++ {
		step, _ := c.def.Step(n)
		if d, ok := c.drafts[step.Key]; ok {
			out[step.Key] = d
		}
	}
	return out
}

func (c *Controller) reconcileQuota(ctx context.Context) {
	if err := c.RefreshQuota(ctx); err != nil && !errors.Is(err, ErrOperationPending) {
		c.warn("quota refresh failed", err)
	}
}

// RefreshQuota replaces the cached quota with the server's.
func (c *Controller) RefreshQuota(ctx context.Context) error {
	c.mu.Lock()
	if c.ops[OpQuota] == Pending {
		c.mu.Unlock()
		return ErrOperationPending
	}
	c.ops[OpQuota] = Pending
	c.mu.Unlock()

	q, err := c.quotas.Get(ctx, c.tenantID)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err == nil {
		c.quota = q
	}
	c.finish(OpQuota, err)
	return err
}

// SubmitFinal sends every draft once the user is on the last step. Derived
// fields are recomputed first and the whole wizard is validated locally;
// neither failure sends anything. On success Done is closed.
func (c *Controller) SubmitFinal(ctx context.Context) (*domain.Receipt, error) {
	c.mu.Lock()
	if c.receipt != nil {
		c.mu.Unlock()
		return nil, ErrCompleted
	}
	if c.current != c.def.TotalSteps() {
		c.mu.Unlock()
		return nil, ErrNotOnLastStep
	}
	if err := c.begin(OpSubmit); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	drafts := domain.DeriveAll(c.drafts)
	if err := c.def.CheckComplete(drafts); err != nil {
		c.finish(OpSubmit, err)
		c.mu.Unlock()
		return nil, err
	}
	c.drafts = drafts
	sub := domain.Submission{
		WizardID:    c.def.ID,
		Drafts:      drafts.Clone(),
		Suggestions: append([]domain.SuggestionUse(nil), c.uses...),
	}
	c.mu.Unlock()

	receipt, err := c.submitter.Submit(ctx, c.tenantID, sub)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.finish(OpSubmit, err)
		c.warn("submission failed", err)
		return nil, err
	}
	c.receipt = receipt
	c.finish(OpSubmit, nil)
	close(c.done)
	if c.logger != nil {
		c.logger.Info("wizard submitted", "tenant_id", c.tenantID, "wizard_id", c.def.ID, "submission_id", receipt.ID)
	}
	return receipt, nil
}

// Done is closed after a successful submission.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

// Receipt returns the submission receipt, or nil before completion.
func (c *Controller) Receipt() *domain.Receipt {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.receipt == nil {
		return nil
	}
	r := *c.receipt
	return &r
}

// Definition returns the wizard definition.
func (c *Controller) Definition() *domain.Definition {
	return c.def
}

// TenantID returns the tenant the controller acts for.
func (c *Controller) TenantID() string {
	return c.tenantID
}

// Snapshot is a consistent copy of the controller state.
type Snapshot struct {
	CurrentStep int
	TotalSteps  int
	Step        domain.StepDefinition
	Draft       domain.StepDraft
	Drafts      domain.Drafts
	Edited      []string
	Quota       *domain.Quota
	Ops         map[Op]OpState
	Errors      map[Op]error
	Complete    bool
}

// Pending reports whether op is in flight.
func (s Snapshot) Pending(op Op) bool {
	return s.Ops[op] == Pending
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	step := c.activeStep()
	s := Snapshot{
		CurrentStep: c.current,
		TotalSteps:  c.def.TotalSteps(),
		Step:        step,
		Draft:       c.draftFor(step),
		Drafts:      c.drafts.Clone(),
		Ops:         make(map[Op]OpState, len(c.ops)),
		Errors:      make(map[Op]error, len(c.errs)),
		Complete:    c.receipt != nil,
	}
	for name := range c.edited[step.Key] {
		s.Edited = append(s.Edited, name)
	}
	sort.Strings(s.Edited)
	if c.quota != nil {
		q := *c.quota
		s.Quota = &q
	}
	for op, st := range c.ops {
		s.Ops[op] = st
	}
	for op, err := range c.errs {
		s.Errors[op] = err
	}
	return s
}

// CurrentStep returns the 1-based active step.
func (c *Controller) CurrentStep() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// State returns the state of op.
func (c *Controller) State(op Op) OpState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ops[op]
}

// SuggestionUses returns the suggestions received so far.
func (c *Controller) SuggestionUses() []domain.SuggestionUse {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.SuggestionUse(nil), c.uses...)
}

func (c *Controller) warn(msg string, err error, args ...any) {
	if c.logger == nil {
		return
	}
	c.logger.Warn(msg, append([]any{"tenant_id", c.tenantID, "wizard_id", c.def.ID, "error", err}, args...)...)
}

// filledFields returns the non-empty, non-derived fields of a loaded draft.
func filledFields(def *domain.Definition, key domain.StepKey, draft domain.StepDraft) map[string]bool {
	step, _, err := def.Lookup(key)
	if err != nil {
		return nil
	}
	out := map[string]bool{}
	for _, f := range step.Fields {
		if f.Kind == domain.KindDerived {
			continue
		}
		if text := step.FieldText(draft, f.Name); text != "" && text != "false" {
			out[f.Name] = true
		}
	}
	return out
}

func clamp(n, lo, hi int) int {
	return max(lo, min(n, hi))
}
