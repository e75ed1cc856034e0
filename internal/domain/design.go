package domain

// PhotoKind distinguishes the user's own room photos from inspiration shots.
type PhotoKind string

const (
	PhotoRoom        PhotoKind = "room"
	PhotoInspiration PhotoKind = "inspiration"
)

// PhotoRef points at an uploaded photo. URL is an opaque reference into
// whatever serves the bytes; the workflow never dereferences it.
type PhotoRef struct {
	ID   string    `json:"id"`
	Kind PhotoKind `json:"kind"`
	URL  string    `json:"url"`
}

// ScanData references captured room geometry. Expensive to produce, so it
// survives a start-over.
type ScanData struct {
	Ref      string `json:"ref"`
	RoomType string `json:"room_type,omitempty"`
}

// DesignBrief is the structured outcome of the intake conversation. A blank
// brief is valid (the user skipped intake).
type DesignBrief struct {
	Style        string   `json:"style,omitempty"`
	ColorPalette []string `json:"color_palette,omitempty"`
	BudgetTier   string   `json:"budget_tier,omitempty"`
	KeepItems    []string `json:"keep_items,omitempty"`
	Notes        string   `json:"notes,omitempty"`
}

// DesignOption is one generated design candidate.
type DesignOption struct {
	ImageURL string `json:"image_url"`
	Summary  string `json:"summary,omitempty"`
}

// EditKind is how the user expressed an iteration edit.
type EditKind string

const (
	EditAnnotation EditKind = "annotation"
	EditFeedback   EditKind = "feedback"
)

// RegionEdit is one annotated region with its instruction. Coordinates are
// normalized to the image (0..1).
type RegionEdit struct {
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	W           float64 `json:"w"`
	H           float64 `json:"h"`
	Instruction string  `json:"instruction"`
}

// RevisionRecord is immutable once appended: one successful iteration pass.
type RevisionRecord struct {
	Revision    int      `json:"revision"`
	Kind        EditKind `json:"kind"`
	BaseRef     string   `json:"base_ref"`
	ResultRef   string   `json:"result_ref"`
	Instruction string   `json:"instruction"`
}

// Product is one matched shopping-list item.
type Product struct {
	Name       string  `json:"name"`
	URL        string  `json:"url,omitempty"`
	ImageURL   string  `json:"image_url,omitempty"`
	Retailer   string  `json:"retailer,omitempty"`
	PriceCents int64   `json:"price_cents"`
	Score      float64 `json:"score,omitempty"`
}

// ShoppingList is the final deliverable of a completed project.
type ShoppingList struct {
	Products   []Product `json:"products"`
	Unmatched  []string  `json:"unmatched,omitempty"`
	TotalCents int64     `json:"total_cents"`
}

// ErrorState is the user-visible failure snapshot. The product layer offers
// a retry action only when Retryable is true.
type ErrorState struct {
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}
