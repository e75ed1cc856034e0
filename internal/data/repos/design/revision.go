package design

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/atelierhq/roomora-backend/internal/domain"
	"github.com/atelierhq/roomora-backend/internal/pkg/dbctx"
	"github.com/atelierhq/roomora-backend/internal/platform/logger"
)

type RevisionRepo interface {
	Append(dbc dbctx.Context, row *domain.DesignRevisionRow) error
	ListByProject(dbc dbctx.Context, projectID uuid.UUID) ([]*domain.DesignRevisionRow, error)
	DeleteByProject(dbc dbctx.Context, projectID uuid.UUID) error
}

type revisionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRevisionRepo(db *gorm.DB, log *logger.Logger) RevisionRepo {
	return &revisionRepo{db: db, log: log.With("repo", "RevisionRepo")}
}

func (r *revisionRepo) conn(dbc dbctx.Context) *gorm.DB {
	tx := dbc.Tx
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(dbc.Ctx)
}

func (r *revisionRepo) Append(dbc dbctx.Context, row *domain.DesignRevisionRow) error {
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	row.CreatedAt = time.Now().UTC()
	return r.conn(dbc).Create(row).Error
}

func (r *revisionRepo) ListByProject(dbc dbctx.Context, projectID uuid.UUID) ([]*domain.DesignRevisionRow, error) {
	var rows []*domain.DesignRevisionRow
	err := r.conn(dbc).
		Where("project_id = ?", projectID).
		Order("revision ASC").
		Find(&rows).Error
	return rows, err
}

func (r *revisionRepo) DeleteByProject(dbc dbctx.Context, projectID uuid.UUID) error {
	return r.conn(dbc).Delete(&domain.DesignRevisionRow{}, "project_id = ?", projectID).Error
}
