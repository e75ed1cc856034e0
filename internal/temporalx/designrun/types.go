package designrun

import (
	"github.com/atelierhq/roomora-backend/internal/domain"
)

const (
	WorkflowName = "design_project"

	SignalIntent = "project_intent"
	QueryState   = "project_state"

	ActivityGenerate = "design_generate"
	ActivityEdit     = "design_edit"
	ActivityShopping = "design_shopping"
	ActivityPurge    = "design_purge"
)

// WorkflowID derives the deterministic workflow id for a project, so the API
// layer can signal and query without storing a run handle.
func WorkflowID(projectID string) string {
	return "design-" + projectID
}

// Step is the workflow phase. The cycle between intake and approval can
// restart any number of times via a start-over intent.
type Step string

const (
	StepPhotos     Step = "photos"
	StepScan       Step = "scan"
	StepIntake     Step = "intake"
	StepGeneration Step = "generation"
	StepSelection  Step = "selection"
	StepIteration  Step = "iteration"
	StepApproval   Step = "approval"
	StepShopping   Step = "shopping"
	StepCompleted  Step = "completed"
	StepAbandoned  Step = "abandoned"
	StepCancelled  Step = "cancelled"
)

// IntentKind tags a queued mutation request.
type IntentKind string

const (
	IntentAddPhoto       IntentKind = "add_photo"
	IntentRemovePhoto    IntentKind = "remove_photo"
	IntentScanComplete   IntentKind = "scan_complete"
	IntentSkipScan       IntentKind = "skip_scan"
	IntentIntakeComplete IntentKind = "intake_complete"
	IntentSkipIntake     IntentKind = "skip_intake"
	IntentSelectOption   IntentKind = "select_option"
	IntentStartOver      IntentKind = "start_over"
	IntentAnnotationEdit IntentKind = "submit_annotation"
	IntentFeedbackEdit   IntentKind = "submit_feedback"
	IntentApprove        IntentKind = "approve"
	IntentRetry          IntentKind = "retry_failed_step"
	IntentCancel         IntentKind = "cancel"
)

// Intent is the single signal payload: a tagged union applied on the
// workflow's own thread in arrival order.
type Intent struct {
	Kind IntentKind `json:"kind"`

	Photo       *domain.PhotoRef    `json:"photo,omitempty"`
	PhotoID     string              `json:"photo_id,omitempty"`
	Scan        *domain.ScanData    `json:"scan,omitempty"`
	Brief       *domain.DesignBrief `json:"brief,omitempty"`
	OptionIndex *int                `json:"option_index,omitempty"`
	Annotations []domain.RegionEdit `json:"annotations,omitempty"`
	Feedback    string              `json:"feedback,omitempty"`
}

// State is the queryable snapshot of one project's lifecycle.
type State struct {
	ProjectID        string                  `json:"project_id"`
	Step             Step                    `json:"step"`
	Photos           []domain.PhotoRef       `json:"photos"`
	ScanData         *domain.ScanData        `json:"scan_data,omitempty"`
	DesignBrief      *domain.DesignBrief     `json:"design_brief,omitempty"`
	GeneratedOptions []domain.DesignOption   `json:"generated_options,omitempty"`
	SelectedOption   *int                    `json:"selected_option,omitempty"`
	CurrentImage     string                  `json:"current_image,omitempty"`
	RevisionHistory  []domain.RevisionRecord `json:"revision_history,omitempty"`
	IterationCount   int                     `json:"iteration_count"`
	ShoppingList     *domain.ShoppingList    `json:"shopping_list,omitempty"`
	Approved         bool                    `json:"approved"`
	Error            *domain.ErrorState      `json:"error,omitempty"`
	ConversationKey  string                  `json:"conversation_key,omitempty"`
}

// Input starts a project workflow instance.
type Input struct {
	ProjectID   string `json:"project_id"`
	OwnerUserID string `json:"owner_user_id,omitempty"`
}

// GenerateInput is the generation activity contract.
type GenerateInput struct {
	ProjectID string              `json:"project_id"`
	Photos    []domain.PhotoRef   `json:"photos"`
	Brief     *domain.DesignBrief `json:"brief,omitempty"`
	Scan      *domain.ScanData    `json:"scan,omitempty"`
}

// GenerateResult always carries exactly two options on success.
type GenerateResult struct {
	Options []domain.DesignOption `json:"options"`
}

// EditInput is the edit activity contract. SessionKey is empty on the first
// edit of a cycle; the activity returns the key under which the session now
// lives.
type EditInput struct {
	ProjectID    string              `json:"project_id"`
	CurrentImage string              `json:"current_image"`
	SessionKey   string              `json:"session_key,omitempty"`
	Revision     int                 `json:"revision"`
	Kind         domain.EditKind     `json:"kind"`
	Annotations  []domain.RegionEdit `json:"annotations,omitempty"`
	Feedback     string              `json:"feedback,omitempty"`
}

type EditResult struct {
	Record     domain.RevisionRecord `json:"record"`
	SessionKey string                `json:"session_key"`
}

// ShoppingInput is the shopping-list activity contract.
type ShoppingInput struct {
	ProjectID    string                  `json:"project_id"`
	FinalImage   string                  `json:"final_image"`
	RoomPhotos   []domain.PhotoRef       `json:"room_photos"`
	Brief        *domain.DesignBrief     `json:"brief,omitempty"`
	Revisions    []domain.RevisionRecord `json:"revisions,omitempty"`
}

type ShoppingResult struct {
	List domain.ShoppingList `json:"list"`
}
