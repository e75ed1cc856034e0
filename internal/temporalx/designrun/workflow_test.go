package designrun

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/testsuite"
	"go.temporal.io/sdk/workflow"

	"github.com/atelierhq/roomora-backend/internal/domain"
	"github.com/atelierhq/roomora-backend/internal/pkg/faults"
)

// stubs are the activity doubles for one workflow test. Any nil field gets a
// default that succeeds.
type stubs struct {
	mu sync.Mutex

	generate func(GenerateInput) (GenerateResult, error)
	edit     func(EditInput) (EditResult, error)
	shopping func(ShoppingInput) (ShoppingResult, error)

	generateCalls int
	editCalls     int
	editInputs    []EditInput
	shoppingCalls int
	purgeCalls    int
	purgedID      string
}

func defaultGenerate(GenerateInput) (GenerateResult, error) {
	return GenerateResult{Options: []domain.DesignOption{
		{ImageURL: "/artifacts/p/opt-0.png", Summary: "calm"},
		{ImageURL: "/artifacts/p/opt-1.png", Summary: "bold"},
	}}, nil
}

func defaultEdit(in EditInput) (EditResult, error) {
	return EditResult{
		Record: domain.RevisionRecord{
			Revision:    in.Revision,
			Kind:        in.Kind,
			BaseRef:     in.CurrentImage,
			ResultRef:   fmt.Sprintf("/artifacts/p/rev-%d.png", in.Revision),
			Instruction: in.Feedback,
		},
		SessionKey: in.ProjectID,
	}, nil
}

func defaultShopping(ShoppingInput) (ShoppingResult, error) {
	return ShoppingResult{List: domain.ShoppingList{
		Products:   []domain.Product{{Name: "accent chair", PriceCents: 24900}},
		TotalCents: 24900,
	}}, nil
}

func newEnv(t *testing.T, st *stubs) *testsuite.TestWorkflowEnvironment {
	t.Helper()
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflowWithOptions(Workflow, workflow.RegisterOptions{Name: WorkflowName})

	env.RegisterActivityWithOptions(func(_ context.Context, in GenerateInput) (GenerateResult, error) {
		st.mu.Lock()
		st.generateCalls++
		fn := st.generate
		st.mu.Unlock()
		if fn == nil {
			fn = defaultGenerate
		}
		return fn(in)
	}, activity.RegisterOptions{Name: ActivityGenerate})

	env.RegisterActivityWithOptions(func(_ context.Context, in EditInput) (EditResult, error) {
		st.mu.Lock()
		st.editCalls++
		st.editInputs = append(st.editInputs, in)
		fn := st.edit
		st.mu.Unlock()
		if fn == nil {
			fn = defaultEdit
		}
		return fn(in)
	}, activity.RegisterOptions{Name: ActivityEdit})

	env.RegisterActivityWithOptions(func(_ context.Context, in ShoppingInput) (ShoppingResult, error) {
		st.mu.Lock()
		st.shoppingCalls++
		fn := st.shopping
		st.mu.Unlock()
		if fn == nil {
			fn = defaultShopping
		}
		return fn(in)
	}, activity.RegisterOptions{Name: ActivityShopping})

	env.RegisterActivityWithOptions(func(_ context.Context, projectID string) error {
		st.mu.Lock()
		st.purgeCalls++
		st.purgedID = projectID
		st.mu.Unlock()
		return nil
	}, activity.RegisterOptions{Name: ActivityPurge})

	return env
}

func signalAt(env *testsuite.TestWorkflowEnvironment, d time.Duration, intent Intent) {
	env.RegisterDelayedCallback(func() {
		env.SignalWorkflow(SignalIntent, intent)
	}, d)
}

func queryState(t *testing.T, env *testsuite.TestWorkflowEnvironment) State {
	t.Helper()
	v, err := env.QueryWorkflow(QueryState)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	var state State
	if err := v.Get(&state); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	return state
}

func roomPhoto(id string) Intent {
	return Intent{Kind: IntentAddPhoto, Photo: &domain.PhotoRef{
		ID: id, Kind: domain.PhotoRoom, URL: "https://photos/" + id + ".jpg",
	}}
}

func intPtr(i int) *int { return &i }

func TestWorkflowHappyPath(t *testing.T) {
	st := &stubs{}
	env := newEnv(t, st)

	step := time.Minute
	signalAt(env, 1*step, Intent{Kind: IntentAddPhoto, Photo: &domain.PhotoRef{
		ID: "insp", Kind: domain.PhotoInspiration, URL: "https://photos/insp.jpg",
	}})
	signalAt(env, 2*step, roomPhoto("r1"))
	// One room photo is not enough to advance.
	env.RegisterDelayedCallback(func() {
		if got := queryState(t, env).Step; got != StepPhotos {
			t.Errorf("expected photos step with 1 room photo, got %q", got)
		}
	}, 2*step+time.Second)
	signalAt(env, 3*step, roomPhoto("r2"))
	env.RegisterDelayedCallback(func() {
		if got := queryState(t, env).Step; got != StepScan {
			t.Errorf("expected auto-advance to scan at 2 room photos, got %q", got)
		}
	}, 3*step+time.Second)
	signalAt(env, 4*step, Intent{Kind: IntentScanComplete, Scan: &domain.ScanData{Ref: "scan-1", RoomType: "living_room"}})
	signalAt(env, 5*step, Intent{Kind: IntentIntakeComplete, Brief: &domain.DesignBrief{Style: "japandi", BudgetTier: "mid"}})
	signalAt(env, 6*step, Intent{Kind: IntentSelectOption, OptionIndex: intPtr(1)})
	signalAt(env, 7*step, Intent{Kind: IntentFeedbackEdit, Feedback: "warmer lighting"})
	signalAt(env, 8*step, Intent{Kind: IntentApprove})

	env.ExecuteWorkflow(WorkflowName, Input{ProjectID: "proj-1"})

	if !env.IsWorkflowCompleted() {
		t.Fatalf("workflow did not complete")
	}
	if err := env.GetWorkflowError(); err != nil {
		t.Fatalf("workflow error: %v", err)
	}

	state := queryState(t, env)
	if state.Step != StepCompleted {
		t.Fatalf("step = %q, want completed", state.Step)
	}
	if !state.Approved {
		t.Fatalf("expected approved")
	}
	if state.SelectedOption == nil || *state.SelectedOption != 1 {
		t.Fatalf("selected option = %v", state.SelectedOption)
	}
	if len(state.RevisionHistory) != 1 || state.IterationCount != 1 {
		t.Fatalf("revisions = %d, iterations = %d", len(state.RevisionHistory), state.IterationCount)
	}
	if state.CurrentImage != state.RevisionHistory[0].ResultRef {
		t.Fatalf("current image not advanced to edit result")
	}
	if state.ShoppingList == nil || state.ShoppingList.TotalCents != 24900 {
		t.Fatalf("shopping list missing: %+v", state.ShoppingList)
	}
	if st.generateCalls != 1 || st.editCalls != 1 || st.shoppingCalls != 1 {
		t.Fatalf("activity calls: gen=%d edit=%d shop=%d", st.generateCalls, st.editCalls, st.shoppingCalls)
	}
	// Retention elapsed: the instance purged itself on the way out.
	if st.purgeCalls != 1 || st.purgedID != "proj-1" {
		t.Fatalf("purge calls = %d id = %q", st.purgeCalls, st.purgedID)
	}
}

func TestWorkflowTransientEditHeldUntilRetry(t *testing.T) {
	st := &stubs{}
	healthy := false
	st.edit = func(in EditInput) (EditResult, error) {
		if !healthy {
			return EditResult{}, faults.Transient("provider rate limited", nil)
		}
		return defaultEdit(in)
	}
	env := newEnv(t, st)

	step := time.Minute
	signalAt(env, 1*step, roomPhoto("r1"))
	signalAt(env, 2*step, roomPhoto("r2"))
	signalAt(env, 3*step, Intent{Kind: IntentSkipScan})
	signalAt(env, 4*step, Intent{Kind: IntentSkipIntake})
	signalAt(env, 5*step, Intent{Kind: IntentSelectOption, OptionIndex: intPtr(0)})
	signalAt(env, 6*step, Intent{Kind: IntentFeedbackEdit, Feedback: "less clutter"})

	env.RegisterDelayedCallback(func() {
		state := queryState(t, env)
		if state.Error == nil || !state.Error.Retryable {
			t.Errorf("expected retryable error state, got %+v", state.Error)
		}
		if state.IterationCount != 0 {
			t.Errorf("failed edit must not count as a pass")
		}
	}, 30*step)

	env.RegisterDelayedCallback(func() {
		healthy = true
		env.SignalWorkflow(SignalIntent, Intent{Kind: IntentRetry})
	}, 31*step)
	signalAt(env, 40*step, Intent{Kind: IntentApprove})

	env.ExecuteWorkflow(WorkflowName, Input{ProjectID: "proj-2"})

	if err := env.GetWorkflowError(); err != nil {
		t.Fatalf("workflow error: %v", err)
	}
	state := queryState(t, env)
	if state.Step != StepCompleted {
		t.Fatalf("step = %q", state.Step)
	}
	if len(state.RevisionHistory) != 1 || state.IterationCount != 1 {
		t.Fatalf("revisions = %d, iterations = %d", len(state.RevisionHistory), state.IterationCount)
	}
	// The held edit was replayed with its original payload.
	st.mu.Lock()
	last := st.editInputs[len(st.editInputs)-1]
	st.mu.Unlock()
	if last.Feedback != "less clutter" {
		t.Fatalf("requeued edit lost its payload: %+v", last)
	}
}

func TestWorkflowValidationEditDropped(t *testing.T) {
	st := &stubs{}
	st.edit = func(in EditInput) (EditResult, error) {
		if in.Feedback == "" {
			return EditResult{}, faults.Validation("feedback edit is empty", nil)
		}
		return defaultEdit(in)
	}
	env := newEnv(t, st)

	step := time.Minute
	signalAt(env, 1*step, roomPhoto("r1"))
	signalAt(env, 2*step, roomPhoto("r2"))
	signalAt(env, 3*step, Intent{Kind: IntentSkipScan})
	signalAt(env, 4*step, Intent{Kind: IntentSkipIntake})
	signalAt(env, 5*step, Intent{Kind: IntentSelectOption, OptionIndex: intPtr(0)})
	signalAt(env, 6*step, Intent{Kind: IntentFeedbackEdit}) // malformed: no feedback

	env.RegisterDelayedCallback(func() {
		state := queryState(t, env)
		if state.Error == nil || !state.Error.Retryable {
			t.Errorf("validation failure should leave a retryable error state, got %+v", state.Error)
		}
	}, 10*step)

	// Resubmitting the identical malformed payload fails the same way: the
	// dropped edit was never held for automatic retry.
	signalAt(env, 11*step, Intent{Kind: IntentFeedbackEdit})
	env.RegisterDelayedCallback(func() {
		state := queryState(t, env)
		if state.Error == nil || !state.Error.Retryable {
			t.Errorf("resubmitted bad payload should fail identically, got %+v", state.Error)
		}
		if state.IterationCount != 0 {
			t.Errorf("failed edits must not count as passes, got %d", state.IterationCount)
		}
	}, 12*step)

	signalAt(env, 13*step, Intent{Kind: IntentRetry})
	signalAt(env, 14*step, Intent{Kind: IntentFeedbackEdit, Feedback: "add plants"})
	signalAt(env, 15*step, Intent{Kind: IntentApprove})

	env.ExecuteWorkflow(WorkflowName, Input{ProjectID: "proj-3"})

	if err := env.GetWorkflowError(); err != nil {
		t.Fatalf("workflow error: %v", err)
	}
	state := queryState(t, env)
	if state.Step != StepCompleted {
		t.Fatalf("step = %q", state.Step)
	}
	if len(state.RevisionHistory) != 1 {
		t.Fatalf("expected 1 revision, got %d", len(state.RevisionHistory))
	}
	if st.editCalls != 3 {
		t.Fatalf("expected 3 edit calls (bad, bad again, corrected), got %d", st.editCalls)
	}
}

func TestWorkflowIterationLimitForcesApproval(t *testing.T) {
	st := &stubs{}
	env := newEnv(t, st)

	step := time.Minute
	signalAt(env, 1*step, roomPhoto("r1"))
	signalAt(env, 2*step, roomPhoto("r2"))
	signalAt(env, 3*step, Intent{Kind: IntentSkipScan})
	signalAt(env, 4*step, Intent{Kind: IntentSkipIntake})
	signalAt(env, 5*step, Intent{Kind: IntentSelectOption, OptionIndex: intPtr(0)})
	for i := 0; i < 6; i++ {
		signalAt(env, time.Duration(6+i)*step, Intent{Kind: IntentFeedbackEdit, Feedback: fmt.Sprintf("pass %d", i+1)})
	}
	env.RegisterDelayedCallback(func() {
		if got := queryState(t, env).Step; got != StepApproval {
			t.Errorf("expected forced approval after 5 passes, got %q", got)
		}
	}, 20*step)
	signalAt(env, 21*step, Intent{Kind: IntentApprove})

	env.ExecuteWorkflow(WorkflowName, Input{ProjectID: "proj-4"})

	if err := env.GetWorkflowError(); err != nil {
		t.Fatalf("workflow error: %v", err)
	}
	state := queryState(t, env)
	if state.IterationCount != 5 || len(state.RevisionHistory) != 5 {
		t.Fatalf("iterations = %d revisions = %d, want 5/5", state.IterationCount, len(state.RevisionHistory))
	}
	// The sixth edit fell into the approval phase and was dropped.
	if st.editCalls != 5 {
		t.Fatalf("edit calls = %d, want 5", st.editCalls)
	}
}

func TestWorkflowStartOverPreservesPhotosAndScan(t *testing.T) {
	st := &stubs{}
	env := newEnv(t, st)

	step := time.Minute
	signalAt(env, 1*step, roomPhoto("r1"))
	signalAt(env, 2*step, roomPhoto("r2"))
	signalAt(env, 3*step, Intent{Kind: IntentScanComplete, Scan: &domain.ScanData{Ref: "scan-keep"}})
	signalAt(env, 4*step, Intent{Kind: IntentIntakeComplete, Brief: &domain.DesignBrief{Style: "boho"}})
	signalAt(env, 5*step, Intent{Kind: IntentSelectOption, OptionIndex: intPtr(0)})
	signalAt(env, 6*step, Intent{Kind: IntentFeedbackEdit, Feedback: "first cycle edit"})
	signalAt(env, 7*step, Intent{Kind: IntentStartOver})

	env.RegisterDelayedCallback(func() {
		state := queryState(t, env)
		if state.Step != StepIntake {
			t.Errorf("expected restart into intake, got %q", state.Step)
		}
		if len(state.Photos) != 2 || state.ScanData == nil || state.ScanData.Ref != "scan-keep" {
			t.Errorf("photos/scan must survive restart: %+v %+v", state.Photos, state.ScanData)
		}
		if len(state.RevisionHistory) != 0 || state.CurrentImage != "" || state.DesignBrief != nil {
			t.Errorf("cycle outputs must be discarded on restart")
		}
	}, 10*step)

	signalAt(env, 11*step, Intent{Kind: IntentSkipIntake})
	signalAt(env, 12*step, Intent{Kind: IntentSelectOption, OptionIndex: intPtr(1)})
	signalAt(env, 13*step, Intent{Kind: IntentApprove})

	env.ExecuteWorkflow(WorkflowName, Input{ProjectID: "proj-5"})

	if err := env.GetWorkflowError(); err != nil {
		t.Fatalf("workflow error: %v", err)
	}
	state := queryState(t, env)
	if state.Step != StepCompleted {
		t.Fatalf("step = %q", state.Step)
	}
	if len(state.RevisionHistory) != 0 {
		t.Fatalf("second cycle made no edits, history = %d", len(state.RevisionHistory))
	}
	if st.generateCalls != 2 {
		t.Fatalf("expected one generation per cycle, got %d", st.generateCalls)
	}
}

func TestWorkflowStartOverDuringEditDiscardsResult(t *testing.T) {
	st := &stubs{}
	env := newEnv(t, st)
	st.edit = func(in EditInput) (EditResult, error) {
		// The restart lands while the edit call is still in flight; its
		// successful result must be thrown away, not applied.
		env.SignalWorkflow(SignalIntent, Intent{Kind: IntentStartOver})
		return defaultEdit(in)
	}

	step := time.Minute
	signalAt(env, 1*step, roomPhoto("r1"))
	signalAt(env, 2*step, roomPhoto("r2"))
	signalAt(env, 3*step, Intent{Kind: IntentScanComplete, Scan: &domain.ScanData{Ref: "scan-keep"}})
	signalAt(env, 4*step, Intent{Kind: IntentIntakeComplete, Brief: &domain.DesignBrief{Style: "coastal"}})
	signalAt(env, 5*step, Intent{Kind: IntentSelectOption, OptionIndex: intPtr(0)})
	signalAt(env, 6*step, Intent{Kind: IntentFeedbackEdit, Feedback: "doomed edit"})

	env.RegisterDelayedCallback(func() {
		state := queryState(t, env)
		if state.Step != StepIntake {
			t.Errorf("expected restart into intake, got %q", state.Step)
		}
		if len(state.RevisionHistory) != 0 || state.IterationCount != 0 || state.CurrentImage != "" {
			t.Errorf("stale edit result leaked into the new cycle: revisions=%d iterations=%d image=%q",
				len(state.RevisionHistory), state.IterationCount, state.CurrentImage)
		}
		if len(state.Photos) != 2 || state.ScanData == nil || state.ScanData.Ref != "scan-keep" {
			t.Errorf("photos/scan must survive restart: %+v %+v", state.Photos, state.ScanData)
		}
	}, 10*step)

	signalAt(env, 11*step, Intent{Kind: IntentSkipIntake})
	signalAt(env, 12*step, Intent{Kind: IntentSelectOption, OptionIndex: intPtr(1)})
	signalAt(env, 13*step, Intent{Kind: IntentApprove})

	env.ExecuteWorkflow(WorkflowName, Input{ProjectID: "proj-9"})

	if err := env.GetWorkflowError(); err != nil {
		t.Fatalf("workflow error: %v", err)
	}
	state := queryState(t, env)
	if state.Step != StepCompleted {
		t.Fatalf("step = %q", state.Step)
	}
	if len(state.RevisionHistory) != 0 {
		t.Fatalf("discarded edit reappeared in history: %d", len(state.RevisionHistory))
	}
	if st.editCalls != 1 {
		t.Fatalf("edit calls = %d, want 1", st.editCalls)
	}
	if st.generateCalls != 2 {
		t.Fatalf("expected one generation per cycle, got %d", st.generateCalls)
	}
}

func TestWorkflowGenerationTransientFailureRetried(t *testing.T) {
	st := &stubs{}
	healthy := false
	st.generate = func(in GenerateInput) (GenerateResult, error) {
		if !healthy {
			return GenerateResult{}, faults.Transient("render backend overloaded", nil)
		}
		return defaultGenerate(in)
	}
	env := newEnv(t, st)

	step := time.Minute
	signalAt(env, 1*step, roomPhoto("r1"))
	signalAt(env, 2*step, roomPhoto("r2"))
	signalAt(env, 3*step, Intent{Kind: IntentSkipScan})
	signalAt(env, 4*step, Intent{Kind: IntentSkipIntake})

	env.RegisterDelayedCallback(func() {
		state := queryState(t, env)
		if state.Step != StepGeneration {
			t.Errorf("expected to hold in generation, got %q", state.Step)
		}
		if state.Error == nil || !state.Error.Retryable {
			t.Errorf("expected retryable error state, got %+v", state.Error)
		}
		if len(state.GeneratedOptions) != 0 {
			t.Errorf("no options should exist yet: %d", len(state.GeneratedOptions))
		}
	}, 30*step)

	env.RegisterDelayedCallback(func() {
		healthy = true
		env.SignalWorkflow(SignalIntent, Intent{Kind: IntentRetry})
	}, 31*step)
	signalAt(env, 40*step, Intent{Kind: IntentSelectOption, OptionIndex: intPtr(0)})
	signalAt(env, 41*step, Intent{Kind: IntentApprove})

	env.ExecuteWorkflow(WorkflowName, Input{ProjectID: "proj-10"})

	if err := env.GetWorkflowError(); err != nil {
		t.Fatalf("workflow error: %v", err)
	}
	state := queryState(t, env)
	if state.Step != StepCompleted || state.Error != nil {
		t.Fatalf("step = %q error = %+v", state.Step, state.Error)
	}
	if len(state.GeneratedOptions) != 2 {
		t.Fatalf("options = %d, want 2", len(state.GeneratedOptions))
	}
	// Three policy attempts on the failing chain, then one clean call after
	// the retry intent.
	if st.generateCalls != 4 {
		t.Fatalf("generate calls = %d, want 4", st.generateCalls)
	}
}

func TestWorkflowCancelPurges(t *testing.T) {
	st := &stubs{}
	env := newEnv(t, st)

	step := time.Minute
	signalAt(env, 1*step, roomPhoto("r1"))
	signalAt(env, 2*step, Intent{Kind: IntentCancel})

	env.ExecuteWorkflow(WorkflowName, Input{ProjectID: "proj-6"})

	if err := env.GetWorkflowError(); err != nil {
		t.Fatalf("workflow error: %v", err)
	}
	state := queryState(t, env)
	if state.Step != StepCancelled {
		t.Fatalf("step = %q, want cancelled", state.Step)
	}
	if st.purgeCalls != 1 || st.purgedID != "proj-6" {
		t.Fatalf("purge calls = %d id = %q", st.purgeCalls, st.purgedID)
	}
}

func TestWorkflowAbandonedAfterIdleTimeout(t *testing.T) {
	st := &stubs{}
	env := newEnv(t, st)

	signalAt(env, time.Minute, roomPhoto("r1"))
	// Then silence: the 48h idle clock runs out.

	env.ExecuteWorkflow(WorkflowName, Input{ProjectID: "proj-7"})

	if err := env.GetWorkflowError(); err != nil {
		t.Fatalf("workflow error: %v", err)
	}
	state := queryState(t, env)
	if state.Step != StepAbandoned {
		t.Fatalf("step = %q, want abandoned", state.Step)
	}
	if st.purgeCalls != 1 {
		t.Fatalf("abandoned project must be purged")
	}
}

func TestWorkflowInvalidSelectionRecoverable(t *testing.T) {
	st := &stubs{}
	env := newEnv(t, st)

	step := time.Minute
	signalAt(env, 1*step, roomPhoto("r1"))
	signalAt(env, 2*step, roomPhoto("r2"))
	signalAt(env, 3*step, Intent{Kind: IntentSkipScan})
	signalAt(env, 4*step, Intent{Kind: IntentSkipIntake})
	signalAt(env, 5*step, Intent{Kind: IntentSelectOption, OptionIndex: intPtr(9)})
	env.RegisterDelayedCallback(func() {
		state := queryState(t, env)
		if state.Step != StepSelection || state.Error == nil {
			t.Errorf("invalid index should record an error and stay in selection: %q %+v", state.Step, state.Error)
		}
	}, 6*step)
	signalAt(env, 7*step, Intent{Kind: IntentSelectOption, OptionIndex: intPtr(0)})
	signalAt(env, 8*step, Intent{Kind: IntentApprove})

	env.ExecuteWorkflow(WorkflowName, Input{ProjectID: "proj-8"})

	if err := env.GetWorkflowError(); err != nil {
		t.Fatalf("workflow error: %v", err)
	}
	state := queryState(t, env)
	if state.Step != StepCompleted || state.SelectedOption == nil || *state.SelectedOption != 0 {
		t.Fatalf("recovery from invalid selection failed: %+v", state)
	}
}
