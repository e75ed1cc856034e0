package designrun

import (
	"errors"
	"strings"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/atelierhq/roomora-backend/internal/domain"
	"github.com/atelierhq/roomora-backend/internal/pkg/faults"
)

const (
	maxIterations = 5
	minRoomPhotos = 2

	// A wait exceeding this is abandonment: same cleanup as cancellation,
	// distinct terminal step.
	abandonAfter = 48 * time.Hour

	// Completed projects stay queryable for a day before purge.
	completedRetention = 24 * time.Hour
)

// Control-flow sentinels. Never returned from the workflow itself.
var (
	errCancelled = errors.New("designrun: cancel requested")
	errAbandoned = errors.New("designrun: abandoned")
	errRestart   = errors.New("designrun: start over requested")
)

type run struct {
	state   State
	pending []Intent
	// A transiently-failed edit held aside until retry_failed_step puts it
	// back at the front of the queue.
	requeued *Intent
}

// Workflow owns one project's lifecycle from photo upload through
// shopping-list delivery. All state mutation happens on this goroutine, in
// response to intents drained from the signal channel; queries read the
// latest snapshot without touching the queue.
func Workflow(ctx workflow.Context, in Input) error {
	projectID := strings.TrimSpace(in.ProjectID)
	if projectID == "" {
		projectID = workflow.GetInfo(ctx).WorkflowExecution.ID
	}

	r := &run{state: State{
		ProjectID: projectID,
		Step:      StepPhotos,
		Photos:    []domain.PhotoRef{},
	}}

	if err := workflow.SetQueryHandler(ctx, QueryState, func() (State, error) {
		return r.state, nil
	}); err != nil {
		return err
	}

	workflow.Go(ctx, func(gctx workflow.Context) {
		ch := workflow.GetSignalChannel(gctx, SignalIntent)
		for {
			var intent Intent
			if !ch.Receive(gctx, &intent) {
				return
			}
			r.pending = append(r.pending, intent)
		}
	})

	log := workflow.GetLogger(ctx)
	err := r.runPhases(ctx)
	switch {
	case err == nil:
		r.purge(ctx)
		log.Info("project completed; retention elapsed, purged", "project_id", projectID)
		return nil
	case errors.Is(err, errCancelled):
		r.purge(ctx)
		r.state.Step = StepCancelled
		log.Info("project cancelled", "project_id", projectID)
		if ctx.Err() != nil {
			return temporal.NewCanceledError("project cancelled")
		}
		return nil
	case errors.Is(err, errAbandoned):
		r.purge(ctx)
		r.state.Step = StepAbandoned
		log.Info("project abandoned after idle timeout", "project_id", projectID)
		return nil
	default:
		// Unclassified failures terminate the instance so real bugs surface.
		return err
	}
}

func (r *run) runPhases(ctx workflow.Context) error {
	if err := r.photosPhase(ctx); err != nil {
		return err
	}
	if err := r.scanPhase(ctx); err != nil {
		return err
	}
	for {
		err := r.designCycle(ctx)
		if errors.Is(err, errRestart) {
			r.resetCycle(ctx)
			continue
		}
		if err != nil {
			return err
		}
		break
	}
	if err := r.shoppingPhase(ctx); err != nil {
		return err
	}
	r.state.Step = StepCompleted
	return r.retentionPhase(ctx)
}

// designCycle is the restartable intake->approval group. errRestart unwinds
// it back to intake with photos and scan data preserved.
func (r *run) designCycle(ctx workflow.Context) error {
	if err := r.intakePhase(ctx); err != nil {
		return err
	}
	if err := r.generationPhase(ctx); err != nil {
		return err
	}
	if err := r.selectionPhase(ctx); err != nil {
		return err
	}
	approvedEarly, err := r.iterationPhase(ctx)
	if err != nil {
		return err
	}
	return r.approvalPhase(ctx, approvedEarly)
}

func (r *run) photosPhase(ctx workflow.Context) error {
	r.state.Step = StepPhotos
	for {
		if countRoomPhotos(r.state.Photos) >= minRoomPhotos {
			return nil
		}
		intent, err := r.nextIntent(ctx)
		if err != nil {
			return err
		}
		if r.applyPhotoIntent(ctx, intent) {
			continue
		}
		r.dropIntent(ctx, intent)
	}
}

func (r *run) scanPhase(ctx workflow.Context) error {
	r.state.Step = StepScan
	for {
		intent, err := r.nextIntent(ctx)
		if err != nil {
			return err
		}
		switch intent.Kind {
		case IntentScanComplete:
			r.state.ScanData = intent.Scan
			return nil
		case IntentSkipScan:
			return nil
		default:
			if !r.applyPhotoIntent(ctx, intent) {
				r.dropIntent(ctx, intent)
			}
		}
	}
}

func (r *run) intakePhase(ctx workflow.Context) error {
	r.state.Step = StepIntake
	for {
		intent, err := r.nextIntent(ctx)
		if err != nil {
			return err
		}
		switch intent.Kind {
		case IntentIntakeComplete:
			r.state.DesignBrief = intent.Brief
			if r.state.DesignBrief == nil {
				r.state.DesignBrief = &domain.DesignBrief{}
			}
			return nil
		case IntentSkipIntake:
			r.state.DesignBrief = &domain.DesignBrief{}
			return nil
		case IntentStartOver:
			return errRestart
		default:
			if !r.applyPhotoIntent(ctx, intent) {
				r.dropIntent(ctx, intent)
			}
		}
	}
}

func (r *run) generationPhase(ctx workflow.Context) error {
	r.state.Step = StepGeneration
	for {
		input := GenerateInput{
			ProjectID: r.state.ProjectID,
			Photos:    r.state.Photos,
			Brief:     r.state.DesignBrief,
			Scan:      r.state.ScanData,
		}
		var res GenerateResult
		err := workflow.ExecuteActivity(generateCtx(ctx), ActivityGenerate, input).Get(ctx, &res)
		if r.consumeRestart() {
			// A restart arrived while the call was in flight; the stale
			// result must not leak into the new cycle.
			return errRestart
		}
		if err == nil {
			r.state.GeneratedOptions = res.Options
			r.state.Error = nil
			return nil
		}
		cls, ok := faults.Classify(err)
		if !ok {
			return err
		}
		r.state.Error = &domain.ErrorState{Message: cls.Message, Retryable: cls.Retryable}
		if werr := r.awaitErrorCleared(ctx, true); werr != nil {
			return werr
		}
	}
}

func (r *run) selectionPhase(ctx workflow.Context) error {
	r.state.Step = StepSelection
	for {
		intent, err := r.nextIntent(ctx)
		if err != nil {
			return err
		}
		switch intent.Kind {
		case IntentSelectOption:
			if intent.OptionIndex == nil || *intent.OptionIndex < 0 || *intent.OptionIndex >= len(r.state.GeneratedOptions) {
				r.state.Error = &domain.ErrorState{Message: "invalid option index", Retryable: true}
				continue
			}
			idx := *intent.OptionIndex
			r.state.SelectedOption = &idx
			r.state.CurrentImage = r.state.GeneratedOptions[idx].ImageURL
			r.state.Error = nil
			return nil
		case IntentStartOver:
			return errRestart
		case IntentRetry:
			r.state.Error = nil
		default:
			r.dropIntent(ctx, intent)
		}
	}
}

// iterationPhase is the bounded edit loop: at most maxIterations successful
// passes, each one edit activity call. Returns true when the user approved
// from inside the loop.
func (r *run) iterationPhase(ctx workflow.Context) (bool, error) {
	r.state.Step = StepIteration
	for r.state.IterationCount < maxIterations {
		intent, err := r.nextIntent(ctx)
		if err != nil {
			return false, err
		}
		switch intent.Kind {
		case IntentApprove:
			if r.state.Error != nil {
				r.dropIntent(ctx, intent)
				continue
			}
			return true, nil
		case IntentStartOver:
			return false, errRestart
		case IntentAnnotationEdit, IntentFeedbackEdit:
			if err := r.runEdit(ctx, intent); err != nil {
				return false, err
			}
		case IntentRetry:
			r.state.Error = nil
		default:
			r.dropIntent(ctx, intent)
		}
	}
	// Five passes without approval force the project onward.
	return false, nil
}

func (r *run) runEdit(ctx workflow.Context, intent Intent) error {
	kind := domain.EditAnnotation
	if intent.Kind == IntentFeedbackEdit {
		kind = domain.EditFeedback
	}
	input := EditInput{
		ProjectID:    r.state.ProjectID,
		CurrentImage: r.state.CurrentImage,
		SessionKey:   r.state.ConversationKey,
		Revision:     len(r.state.RevisionHistory) + 1,
		Kind:         kind,
		Annotations:  intent.Annotations,
		Feedback:     intent.Feedback,
	}

	var res EditResult
	err := workflow.ExecuteActivity(editCtx(ctx), ActivityEdit, input).Get(ctx, &res)
	if r.consumeRestart() {
		return errRestart
	}
	if err == nil {
		r.state.RevisionHistory = append(r.state.RevisionHistory, res.Record)
		r.state.CurrentImage = res.Record.ResultRef
		r.state.ConversationKey = res.SessionKey
		r.state.IterationCount++
		r.state.Error = nil
		return nil
	}

	cls, ok := faults.Classify(err)
	if !ok {
		// Permanent provider failures and corrupt sessions included: not
		// recoverable inside the loop, surfaced by failing the instance.
		return err
	}
	switch cls.Kind {
	case faults.TypeTransientProvider:
		// Held aside; retry_failed_step puts it back at the front.
		held := intent
		r.requeued = &held
		r.state.Error = &domain.ErrorState{Message: cls.Message, Retryable: true}
		return r.awaitErrorCleared(ctx, true)
	case faults.TypeValidation:
		// Dropped, not requeued: the same payload can never succeed, the
		// user has to resubmit a corrected edit.
		r.state.Error = &domain.ErrorState{Message: cls.Message, Retryable: true}
		return nil
	default:
		return err
	}
}

func (r *run) approvalPhase(ctx workflow.Context, approvedEarly bool) error {
	r.state.Step = StepApproval
	if approvedEarly && r.state.Error == nil {
		r.state.Approved = true
		return nil
	}
	for {
		intent, err := r.nextIntent(ctx)
		if err != nil {
			return err
		}
		switch intent.Kind {
		case IntentApprove:
			if r.state.Error != nil {
				r.dropIntent(ctx, intent)
				continue
			}
			r.state.Approved = true
			return nil
		case IntentRetry:
			r.state.Error = nil
		case IntentStartOver:
			return errRestart
		default:
			r.dropIntent(ctx, intent)
		}
	}
}

func (r *run) shoppingPhase(ctx workflow.Context) error {
	r.state.Step = StepShopping
	for {
		input := ShoppingInput{
			ProjectID:  r.state.ProjectID,
			FinalImage: r.state.CurrentImage,
			RoomPhotos: roomPhotos(r.state.Photos),
			Brief:      r.state.DesignBrief,
			Revisions:  r.state.RevisionHistory,
		}
		var res ShoppingResult
		err := workflow.ExecuteActivity(shoppingCtx(ctx), ActivityShopping, input).Get(ctx, &res)
		if err == nil {
			r.state.ShoppingList = &res.List
			r.state.Error = nil
			return nil
		}
		cls, ok := faults.Classify(err)
		if !ok {
			return err
		}
		// No cycle to fall back to: recorded and retried for as long as the
		// user keeps asking.
		r.state.Error = &domain.ErrorState{Message: cls.Message, Retryable: cls.Retryable}
		if werr := r.awaitErrorCleared(ctx, false); werr != nil {
			return werr
		}
	}
}

func (r *run) retentionPhase(ctx workflow.Context) error {
	ok, err := workflow.AwaitWithTimeout(ctx, completedRetention, func() bool {
		return r.findPending(IntentCancel) >= 0
	})
	if err != nil {
		return errCancelled
	}
	if ok {
		return errCancelled
	}
	return nil
}

// nextIntent blocks for the next queued intent, watching the cancellation
// flag and the abandonment clock at the same suspension point.
func (r *run) nextIntent(ctx workflow.Context) (Intent, error) {
	ok, err := workflow.AwaitWithTimeout(ctx, abandonAfter, func() bool {
		return len(r.pending) > 0
	})
	if err != nil {
		return Intent{}, errCancelled
	}
	if !ok {
		return Intent{}, errAbandoned
	}
	intent := r.pending[0]
	r.pending = r.pending[1:]
	if intent.Kind == IntentCancel {
		return Intent{}, errCancelled
	}
	return intent, nil
}

// awaitErrorCleared blocks until a retry intent clears the recorded error
// (releasing any held edit back to the front of the queue), or a restart or
// cancellation arrives. Other queued intents are left untouched.
func (r *run) awaitErrorCleared(ctx workflow.Context, allowRestart bool) error {
	for {
		ok, err := workflow.AwaitWithTimeout(ctx, abandonAfter, func() bool {
			return r.findPending(IntentRetry, IntentStartOver, IntentCancel) >= 0
		})
		if err != nil {
			return errCancelled
		}
		if !ok {
			return errAbandoned
		}
		i := r.findPending(IntentRetry, IntentStartOver, IntentCancel)
		intent := r.pending[i]
		r.pending = append(r.pending[:i], r.pending[i+1:]...)
		switch intent.Kind {
		case IntentCancel:
			return errCancelled
		case IntentStartOver:
			if allowRestart {
				return errRestart
			}
			r.dropIntent(ctx, intent)
		case IntentRetry:
			r.state.Error = nil
			if r.requeued != nil {
				r.pending = append([]Intent{*r.requeued}, r.pending...)
				r.requeued = nil
			}
			return nil
		}
	}
}

func (r *run) applyPhotoIntent(ctx workflow.Context, intent Intent) bool {
	switch intent.Kind {
	case IntentAddPhoto:
		if intent.Photo == nil {
			r.dropIntent(ctx, intent)
			return true
		}
		r.state.Photos = append(r.state.Photos, *intent.Photo)
		return true
	case IntentRemovePhoto:
		kept := r.state.Photos[:0]
		for _, p := range r.state.Photos {
			if p.ID != intent.PhotoID {
				kept = append(kept, p)
			}
		}
		r.state.Photos = kept
		return true
	default:
		return false
	}
}

// resetCycle implements start-over: photos and scan data survive, everything
// the discarded cycle produced does not. Queued cycle-scoped intents are
// dropped with it.
func (r *run) resetCycle(ctx workflow.Context) {
	r.state.DesignBrief = nil
	r.state.GeneratedOptions = nil
	r.state.SelectedOption = nil
	r.state.CurrentImage = ""
	r.state.RevisionHistory = nil
	r.state.IterationCount = 0
	r.state.ShoppingList = nil
	r.state.Approved = false
	r.state.Error = nil
	r.state.ConversationKey = ""
	r.requeued = nil

	kept := r.pending[:0]
	for _, intent := range r.pending {
		switch intent.Kind {
		case IntentAddPhoto, IntentRemovePhoto, IntentCancel:
			kept = append(kept, intent)
		default:
			r.dropIntent(ctx, intent)
		}
	}
	r.pending = kept
}

// consumeRestart reports and removes a queued start-over. Checked right
// after every cycle-scoped activity call returns so stale results from an
// abandoned cycle are discarded instead of applied.
func (r *run) consumeRestart() bool {
	i := r.findPending(IntentStartOver)
	if i < 0 {
		return false
	}
	r.pending = append(r.pending[:i], r.pending[i+1:]...)
	return true
}

func (r *run) findPending(kinds ...IntentKind) int {
	for i, intent := range r.pending {
		for _, k := range kinds {
			if intent.Kind == k {
				return i
			}
		}
	}
	return -1
}

func (r *run) dropIntent(ctx workflow.Context, intent Intent) {
	workflow.GetLogger(ctx).Warn("dropping intent not applicable to current step",
		"kind", string(intent.Kind), "step", string(r.state.Step))
}

func (r *run) purge(ctx workflow.Context) {
	// Disconnected so cleanup still runs after a client-side cancel.
	dctx, cancel := workflow.NewDisconnectedContext(ctx)
	defer cancel()
	actx := workflow.WithActivityOptions(dctx, workflow.ActivityOptions{
		StartToCloseTimeout: time.Minute,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 2},
	})
	if err := workflow.ExecuteActivity(actx, ActivityPurge, r.state.ProjectID).Get(dctx, nil); err != nil {
		workflow.GetLogger(ctx).Warn("project purge failed", "project_id", r.state.ProjectID, "error", err)
	}
}

func generateCtx(ctx workflow.Context) workflow.Context {
	return workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    2 * time.Second,
			BackoffCoefficient: 2,
			MaximumInterval:    30 * time.Second,
			MaximumAttempts:    3,
			NonRetryableErrorTypes: []string{
				faults.TypeValidation,
				faults.TypePermanentProvider,
			},
		},
	})
}

func editCtx(ctx workflow.Context) workflow.Context {
	return workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 3 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    2 * time.Second,
			BackoffCoefficient: 2,
			MaximumInterval:    30 * time.Second,
			MaximumAttempts:    3,
			NonRetryableErrorTypes: []string{
				faults.TypeValidation,
				faults.TypePermanentProvider,
				faults.TypeCorruptSession,
			},
		},
	})
}

func shoppingCtx(ctx workflow.Context) workflow.Context {
	return workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    5 * time.Second,
			BackoffCoefficient: 2,
			MaximumInterval:    time.Minute,
			MaximumAttempts:    3,
			NonRetryableErrorTypes: []string{
				faults.TypeValidation,
				faults.TypePermanentProvider,
			},
		},
	})
}

func countRoomPhotos(photos []domain.PhotoRef) int {
	n := 0
	for _, p := range photos {
		if p.Kind == domain.PhotoRoom {
			n++
		}
	}
	return n
}

func roomPhotos(photos []domain.PhotoRef) []domain.PhotoRef {
	out := make([]domain.PhotoRef, 0, len(photos))
	for _, p := range photos {
		if p.Kind == domain.PhotoRoom {
			out = append(out, p)
		}
	}
	return out
}
