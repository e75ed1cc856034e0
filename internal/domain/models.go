package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Project is the relational shadow of a workflow instance, kept for listing
// and purge bookkeeping. The workflow state itself lives in Temporal.
type Project struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	OwnerUserID uuid.UUID `gorm:"type:uuid;index" json:"owner_user_id"`
	Title       string    `json:"title"`
	Status      string    `gorm:"index" json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (Project) TableName() string { return "design_project" }

// ProjectPhoto is one uploaded photo row.
type ProjectPhoto struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ProjectID uuid.UUID `gorm:"type:uuid;index" json:"project_id"`
	Kind      string    `json:"kind"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"created_at"`
}

func (ProjectPhoto) TableName() string { return "design_project_photo" }

// DesignRevisionRow is the durable copy of a RevisionRecord, written by the
// edit activity as each iteration pass succeeds.
type DesignRevisionRow struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ProjectID   uuid.UUID      `gorm:"type:uuid;index" json:"project_id"`
	Revision    int            `json:"revision"`
	Kind        string         `json:"kind"`
	BaseRef     string         `json:"base_ref"`
	ResultRef   string         `json:"result_ref"`
	Instruction string         `json:"instruction"`
	Payload     datatypes.JSON `json:"payload,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

func (DesignRevisionRow) TableName() string { return "design_revision" }
