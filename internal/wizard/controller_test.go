package wizard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	domain "github.com/ganot/stepwise/internal/domain/wizard"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeProgress struct {
	mu      sync.Mutex
	saves   []domain.SaveRequest
	saveErr error
	saved   *domain.Progress
	loadErr error
	loads   int

	// gate, when set, blocks Save until closed. entered receives once per
	// Save call before it blocks.
	gate    chan struct{}
	entered chan struct{}
}

func (f *fakeProgress) Save(ctx context.Context, _ string, req domain.SaveRequest) error {
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves = append(f.saves, req)
	return f.saveErr
}

func (f *fakeProgress) Load(_ context.Context, _, _ string) (*domain.Progress, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads++
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	if f.saved == nil {
		return nil, ErrNotFound
	}
	p := *f.saved
	return &p, nil
}

func (f *fakeProgress) setSaveErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saveErr = err
}

func (f *fakeProgress) savedRequests() []domain.SaveRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.SaveRequest(nil), f.saves...)
}

type fakeSuggestions struct {
	mu       sync.Mutex
	result   *domain.Suggestion
	err      error
	requests []domain.SuggestionRequest
}

func (f *fakeSuggestions) Suggest(_ context.Context, _ string, req domain.SuggestionRequest) (*domain.Suggestion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeSuggestions) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

type fakeQuotas struct {
	mu    sync.Mutex
	quota domain.Quota
	err   error
	calls int
}

func (f *fakeQuotas) Get(_ context.Context, _ string) (*domain.Quota, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	q := f.quota
	return &q, nil
}

func (f *fakeQuotas) set(q domain.Quota) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.quota = q
}

type fakeSubmitter struct {
	mu          sync.Mutex
	submissions []domain.Submission
	err         error
}

func (f *fakeSubmitter) Submit(_ context.Context, _ string, sub domain.Submission) (*domain.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submissions = append(f.submissions, sub)
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Receipt{ID: "sub-1", SubmittedAt: time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC)}, nil
}

type harness struct {
	ctrl        *Controller
	progress    *fakeProgress
	suggestions *fakeSuggestions
	quotas      *fakeQuotas
	submitter   *fakeSubmitter
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		progress:    &fakeProgress{},
		suggestions: &fakeSuggestions{},
		quotas:      &fakeQuotas{quota: domain.Quota{Used: 0, Limit: 5}},
		submitter:   &fakeSubmitter{},
	}
	ctrl, err := New(Config{
		Definition:  domain.TaxOnboarding(),
		TenantID:    "T1",
		Progress:    h.progress,
		Suggestions: h.suggestions,
		Quotas:      h.quotas,
		Submitter:   h.submitter,
	})
	require.NoError(t, err)
	h.ctrl = ctrl
	return h
}

var validDrafts = []domain.StepDraft{
	domain.BusinessInfo{Country: "US", StateProvince: "CA", City: "SF"},
	domain.TaxRates{StateRate: "7.25", LocalRate: "1.5"},
	domain.Nexus{PhysicalPresence: true, States: []string{"CA"}},
	domain.Filing{Frequency: domain.FrequencyQuarterly, FirstPeriodStart: "2026-01-01"},
	domain.Review{ContactEmail: "ops@example.com", ConfirmAccuracy: true},
}

// advanceTo fills each step with a valid draft until step n is active.
func (h *harness) advanceTo(t *testing.T, n int) {
	t.Helper()
	for h.ctrl.CurrentStep() < n {
		require.NoError(t, h.ctrl.ReplaceDraft(validDrafts[h.ctrl.CurrentStep()-1]))
		require.NoError(t, h.ctrl.GoNext(context.Background()))
	}
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(Config{Definition: domain.TaxOnboarding(), TenantID: "T1"})
	require.Error(t, err)
	_, err = New(Config{TenantID: "T1"})
	require.Error(t, err)
}

func TestGoNext_ValidationFailureStaysOnStep(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.ctrl.EditField("country", ""))
	require.NoError(t, h.ctrl.EditField("stateProvince", "CA"))
	require.NoError(t, h.ctrl.EditField("city", "SF"))

	err := h.ctrl.GoNext(context.Background())
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, []string{"country is required"}, verr.Messages())
	require.Equal(t, 1, h.ctrl.CurrentStep())
	require.Empty(t, h.progress.savedRequests(), "validation errors never reach the network")
	require.Equal(t, Failed, h.ctrl.State(OpNext))
}

func TestGoNext_SavesThenAdvances(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.ctrl.EditField("country", "US"))
	require.NoError(t, h.ctrl.EditField("stateProvince", "CA"))
	require.NoError(t, h.ctrl.EditField("city", "SF"))

	require.NoError(t, h.ctrl.GoNext(context.Background()))
	require.Equal(t, 2, h.ctrl.CurrentStep())
	require.Equal(t, []domain.SaveRequest{{
		WizardID:    domain.TaxOnboardingID,
		CurrentStep: 2,
		StepKey:     domain.StepBusinessInfo,
		Draft:       domain.BusinessInfo{Country: "US", StateProvince: "CA", City: "SF"},
	}}, h.progress.savedRequests())
	require.Equal(t, Succeeded, h.ctrl.State(OpNext))
}

func TestGoNext_LastStepSavesAndStays(t *testing.T) {
	h := newHarness(t)
	h.advanceTo(t, 5)
	require.NoError(t, h.ctrl.ReplaceDraft(validDrafts[4]))
	require.NoError(t, h.ctrl.GoNext(context.Background()))
	require.Equal(t, 5, h.ctrl.CurrentStep())
	saves := h.progress.savedRequests()
	require.Equal(t, 5, saves[len(saves)-1].CurrentStep)
}

func TestRequestSuggestion_ServerQuotaRejection(t *testing.T) {
	h := newHarness(t)
	h.quotas.set(domain.Quota{Used: 5, Limit: 5})
	require.NoError(t, h.ctrl.LoadSavedProgress(context.Background()))
	h.advanceTo(t, 2)
	before := h.ctrl.Snapshot().Drafts

	_, err := h.ctrl.RequestSuggestion(context.Background(), false)
	require.ErrorIs(t, err, ErrQuotaExhausted)
	require.Zero(t, h.suggestions.calls(), "local pre-check avoids the round trip")

	h.suggestions.err = fmt.Errorf("request suggestion: %w", ErrQuotaExceeded)
	_, err = h.ctrl.RequestSuggestion(context.Background(), true)
	require.ErrorIs(t, err, ErrQuotaExceeded)
	require.Equal(t, 1, h.suggestions.calls())

	snap := h.ctrl.Snapshot()
	require.Empty(t, cmp.Diff(before, snap.Drafts))
	require.Equal(t, 5, snap.Quota.Used)
	require.Equal(t, Failed, snap.Ops[OpSuggest])
	require.Equal(t, NoticeQuota, Describe(err).Kind)
}

func TestLoadSavedProgress_Resumes(t *testing.T) {
	h := newHarness(t)
	saved := domain.Drafts{domain.StepBusinessInfo: domain.BusinessInfo{Country: "US", StateProvince: "CA", City: "SF"}}
	h.progress.saved = &domain.Progress{WizardID: domain.TaxOnboardingID, CurrentStep: 2, Drafts: saved}

	require.NoError(t, h.ctrl.EditField("country", "FR"))
	require.NoError(t, h.ctrl.LoadSavedProgress(context.Background()))

	snap := h.ctrl.Snapshot()
	require.Equal(t, 2, snap.CurrentStep)
	require.Empty(t, cmp.Diff(saved, snap.Drafts), "saved state replaces in-memory edits")
	require.Equal(t, &domain.Quota{Used: 0, Limit: 5}, snap.Quota)
	require.Equal(t, 1, h.quotas.calls)
}

func TestLoadSavedProgress_NotFoundStartsFresh(t *testing.T) {
	h := newHarness(t)
	h.advanceTo(t, 3)

	require.NoError(t, h.ctrl.LoadSavedProgress(context.Background()))
	snap := h.ctrl.Snapshot()
	require.Equal(t, 1, snap.CurrentStep)
	require.Empty(t, snap.Drafts)
}

func TestLoadSavedProgress_ClampsSavedStep(t *testing.T) {
	h := newHarness(t)
	h.progress.saved = &domain.Progress{CurrentStep: 9}
	require.NoError(t, h.ctrl.LoadSavedProgress(context.Background()))
	require.Equal(t, 5, h.ctrl.CurrentStep())
}

func TestLoadSavedProgress_FailureKeepsState(t *testing.T) {
	h := newHarness(t)
	h.advanceTo(t, 2)
	h.progress.loadErr = &TransientError{Op: "load progress", Err: errors.New("connection refused")}

	err := h.ctrl.LoadSavedProgress(context.Background())
	require.Error(t, err)
	require.Equal(t, 2, h.ctrl.CurrentStep())
	require.Equal(t, Failed, h.ctrl.State(OpLoad))
	require.True(t, Describe(err).Retryable)
}

func TestLoadSavedProgress_QuotaFailureIsNotFatal(t *testing.T) {
	h := newHarness(t)
	h.quotas.err = errors.New("quota down")
	require.NoError(t, h.ctrl.LoadSavedProgress(context.Background()))
	require.Nil(t, h.ctrl.Snapshot().Quota)
}

func TestSubmitFinal_NotOnLastStep(t *testing.T) {
	h := newHarness(t)
	h.advanceTo(t, 3)

	_, err := h.ctrl.SubmitFinal(context.Background())
	require.ErrorIs(t, err, ErrNotOnLastStep)
	require.Empty(t, h.submitter.submissions)
	require.Equal(t, 3, h.ctrl.CurrentStep())
}

func TestGoNext_SaveTimeoutKeepsStepAndRetries(t *testing.T) {
	h := newHarness(t)
	h.advanceTo(t, 4)
	require.NoError(t, h.ctrl.ReplaceDraft(validDrafts[3]))
	before := h.ctrl.Snapshot().Drafts
	h.progress.setSaveErr(&TransientError{Op: "save progress", Err: context.DeadlineExceeded})

	err := h.ctrl.GoNext(context.Background())
	require.Error(t, err)
	require.Equal(t, 4, h.ctrl.CurrentStep())
	require.Empty(t, cmp.Diff(before, h.ctrl.Snapshot().Drafts))
	notice := Describe(err)
	require.True(t, notice.Retryable)
	require.Equal(t, "Failed to save progress, try again.", notice.Message)

	h.progress.setSaveErr(nil)
	require.NoError(t, h.ctrl.GoNext(context.Background()))
	require.Equal(t, 5, h.ctrl.CurrentStep())

	saves := h.progress.savedRequests()
	require.Equal(t, saves[len(saves)-2], saves[len(saves)-1], "retry re-issues the same save")
}

func TestGoNext_PendingBlocksNavigation(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.ctrl.ReplaceDraft(validDrafts[0]))
	h.progress.gate = make(chan struct{})
	h.progress.entered = make(chan struct{}, 1)

	errc := make(chan error, 1)
	go func() { errc <- h.ctrl.GoNext(context.Background()) }()
	<-h.progress.entered

	require.ErrorIs(t, h.ctrl.GoNext(context.Background()), ErrOperationPending)
	require.ErrorIs(t, h.ctrl.GoPrevious(), ErrOperationPending)
	require.ErrorIs(t, h.ctrl.LoadSavedProgress(context.Background()), ErrOperationPending)
	snap := h.ctrl.Snapshot()
	require.True(t, snap.Pending(OpNext))
	require.Equal(t, 1, snap.CurrentStep, "no advance while the save is pending")

	close(h.progress.gate)
	require.NoError(t, <-errc)
	require.Equal(t, 2, h.ctrl.CurrentStep())
	require.Equal(t, Succeeded, h.ctrl.State(OpNext))
}

func TestGoNext_CanceledContext(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.ctrl.ReplaceDraft(validDrafts[0]))
	h.progress.gate = make(chan struct{})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := h.ctrl.GoNext(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Equal(t, 1, h.ctrl.CurrentStep())
	require.True(t, Describe(err).Retryable)
}

func TestPreviousNextRoundTrip(t *testing.T) {
	h := newHarness(t)
	h.advanceTo(t, 5)
	require.NoError(t, h.ctrl.ReplaceDraft(validDrafts[4]))

	for i := 2; i <= 5; i++ {
		for h.ctrl.CurrentStep() > i {
			require.NoError(t, h.ctrl.GoPrevious())
		}
		before := h.ctrl.Snapshot().Drafts

		require.NoError(t, h.ctrl.GoPrevious())
		require.Equal(t, i-1, h.ctrl.CurrentStep())
		require.NoError(t, h.ctrl.GoNext(context.Background()))

		require.Equal(t, i, h.ctrl.CurrentStep())
		require.Empty(t, cmp.Diff(before, h.ctrl.Snapshot().Drafts))
	}

	for h.ctrl.CurrentStep() > 1 {
		require.NoError(t, h.ctrl.GoPrevious())
	}
	require.NoError(t, h.ctrl.GoPrevious())
	require.Equal(t, 1, h.ctrl.CurrentStep(), "clamped at the first step")
}

func TestEditField_DerivesTotals(t *testing.T) {
	h := newHarness(t)
	h.advanceTo(t, 2)
	require.NoError(t, h.ctrl.EditField("stateRate", "6"))
	require.NoError(t, h.ctrl.EditField("localRate", "0.25"))
	require.Equal(t, domain.TaxRates{StateRate: "6", LocalRate: "0.25", TotalRate: "6.25"}, h.ctrl.Snapshot().Draft)
	require.ErrorIs(t, h.ctrl.EditField("totalRate", "1"), domain.ErrUnknownField)
	require.ErrorIs(t, h.ctrl.ReplaceDraft(domain.Nexus{}), domain.ErrMalformedDraft)
}

func TestRequestSuggestion_MergesAroundUserEdits(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.ctrl.LoadSavedProgress(context.Background()))
	h.advanceTo(t, 2)
	require.NoError(t, h.ctrl.EditField("stateRate", "6"))

	confidence := 85
	h.suggestions.result = &domain.Suggestion{
		Explanation:   "CA rates",
		Confidence:    &confidence,
		SuggestedData: map[string]any{"stateRate": "7.25", "localRate": "1"},
	}
	h.quotas.set(domain.Quota{Used: 3, Limit: 5})

	res, err := h.ctrl.RequestSuggestion(context.Background(), false)
	require.NoError(t, err)
	require.Equal(t, []string{"localRate"}, res.Applied)

	snap := h.ctrl.Snapshot()
	require.Equal(t, domain.TaxRates{StateRate: "6", LocalRate: "1", TotalRate: "7"}, snap.Draft)
	require.Equal(t, 3, snap.Quota.Used, "authoritative quota replaces the optimistic count")
	require.Equal(t, Succeeded, snap.Ops[OpSuggest])

	req := h.suggestions.requests[0]
	require.Equal(t, domain.StepTaxRates, req.StepKey)
	require.Empty(t, cmp.Diff(domain.Drafts{domain.StepBusinessInfo: validDrafts[0]}, req.PreviousSteps))

	// A second suggestion may overwrite the value the first one filled.
	h.suggestions.result = &domain.Suggestion{SuggestedData: map[string]any{"localRate": "2"}}
	_, err = h.ctrl.RequestSuggestion(context.Background(), false)
	require.NoError(t, err)
	require.Equal(t, "2", h.ctrl.Snapshot().Draft.(domain.TaxRates).LocalRate)
	require.Len(t, h.ctrl.SuggestionUses(), 2)
}

func TestRequestSuggestion_BadValueKeepsTheRest(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.ctrl.LoadSavedProgress(context.Background()))
	h.advanceTo(t, 2)
	h.suggestions.result = &domain.Suggestion{SuggestedData: map[string]any{"stateRate": "7.25", "localRate": 1.5}}

	res, err := h.ctrl.RequestSuggestion(context.Background(), false)
	require.NoError(t, err)
	require.Equal(t, []string{"stateRate"}, res.Applied)
	require.Equal(t, domain.TaxRates{StateRate: "7.25", TotalRate: "7.25"}, h.ctrl.Snapshot().Draft)
	require.Len(t, h.ctrl.SuggestionUses(), 1)
}

func TestRequestSuggestion_OptimisticCountWhenRefreshFails(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.ctrl.LoadSavedProgress(context.Background()))
	h.suggestions.result = &domain.Suggestion{SuggestedData: map[string]any{"country": "US"}}
	h.quotas.err = errors.New("quota down")

	_, err := h.ctrl.RequestSuggestion(context.Background(), false)
	require.NoError(t, err)
	require.Equal(t, 1, h.ctrl.Snapshot().Quota.Used)
}

func TestRequestSuggestion_TransientFailureLeavesDraft(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.ctrl.LoadSavedProgress(context.Background()))
	h.suggestions.err = &TransientError{Op: "request suggestion", Err: errors.New("503")}

	_, err := h.ctrl.RequestSuggestion(context.Background(), false)
	require.Error(t, err)
	snap := h.ctrl.Snapshot()
	require.Equal(t, 0, snap.Quota.Used)
	require.Equal(t, domain.BusinessInfo{}, snap.Draft)
	require.Empty(t, h.ctrl.SuggestionUses())
}

func TestRequestSuggestion_LoadedFieldsAreProtected(t *testing.T) {
	h := newHarness(t)
	h.progress.saved = &domain.Progress{
		CurrentStep: 1,
		Drafts:      domain.Drafts{domain.StepBusinessInfo: domain.BusinessInfo{Country: "CA"}},
	}
	require.NoError(t, h.ctrl.LoadSavedProgress(context.Background()))
	h.suggestions.result = &domain.Suggestion{SuggestedData: map[string]any{"country": "US", "city": "Toronto"}}

	res, err := h.ctrl.RequestSuggestion(context.Background(), false)
	require.NoError(t, err)
	require.Equal(t, []string{"city"}, res.Applied)
	require.Equal(t, domain.BusinessInfo{Country: "CA", City: "Toronto"}, h.ctrl.Snapshot().Draft)
}

func TestSubmitFinal_Success(t *testing.T) {
	h := newHarness(t)
	h.advanceTo(t, 5)
	require.NoError(t, h.ctrl.ReplaceDraft(validDrafts[4]))

	receipt, err := h.ctrl.SubmitFinal(context.Background())
	require.NoError(t, err)
	require.Equal(t, "sub-1", receipt.ID)

	select {
	case <-h.ctrl.Done():
	default:
		t.Fatal("Done not closed after submission")
	}
	require.Equal(t, receipt, h.ctrl.Receipt())
	require.True(t, h.ctrl.Snapshot().Complete)

	sub := h.submitter.submissions[0]
	require.Len(t, sub.Drafts, 5)
	require.Equal(t, "8.75", sub.Drafts[domain.StepTaxRates].(domain.TaxRates).TotalRate)

	require.ErrorIs(t, h.ctrl.GoPrevious(), ErrCompleted)
	require.ErrorIs(t, h.ctrl.EditField("contactEmail", "x@example.com"), ErrCompleted)
	_, err = h.ctrl.SubmitFinal(context.Background())
	require.ErrorIs(t, err, ErrCompleted)
	require.Len(t, h.submitter.submissions, 1)
}

func TestSubmitFinal_RederivesStaleTotals(t *testing.T) {
	h := newHarness(t)
	drafts := domain.Drafts{}
	for _, d := range validDrafts {
		drafts[d.StepKey()] = d
	}
	drafts[domain.StepTaxRates] = domain.TaxRates{StateRate: "5", LocalRate: "1", TotalRate: "99"}
	h.progress.saved = &domain.Progress{CurrentStep: 5, Drafts: drafts}
	require.NoError(t, h.ctrl.LoadSavedProgress(context.Background()))

	_, err := h.ctrl.SubmitFinal(context.Background())
	require.NoError(t, err)
	require.Equal(t, "6", h.submitter.submissions[0].Drafts[domain.StepTaxRates].(domain.TaxRates).TotalRate)
}

func TestSubmitFinal_IncompleteIsLocal(t *testing.T) {
	h := newHarness(t)
	h.progress.saved = &domain.Progress{CurrentStep: 5, Drafts: domain.Drafts{}}
	require.NoError(t, h.ctrl.LoadSavedProgress(context.Background()))

	_, err := h.ctrl.SubmitFinal(context.Background())
	require.ErrorIs(t, err, domain.ErrIncomplete)
	require.Empty(t, h.submitter.submissions)
	require.Equal(t, NoticeValidation, Describe(err).Kind)
}

func TestSubmitFinal_FailureStaysOnLastStep(t *testing.T) {
	h := newHarness(t)
	h.advanceTo(t, 5)
	require.NoError(t, h.ctrl.ReplaceDraft(validDrafts[4]))
	h.submitter.err = &RejectionError{Op: "submit", Status: 422}

	_, err := h.ctrl.SubmitFinal(context.Background())
	require.Error(t, err)
	require.Equal(t, 5, h.ctrl.CurrentStep())
	require.Nil(t, h.ctrl.Receipt())
	require.Equal(t, Failed, h.ctrl.State(OpSubmit))
	require.Equal(t, genericRejection, Describe(err).Message)

	select {
	case <-h.ctrl.Done():
		t.Fatal("Done closed after a failed submission")
	default:
	}
}
