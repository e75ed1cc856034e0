package design

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/atelierhq/roomora-backend/internal/domain"
	"github.com/atelierhq/roomora-backend/internal/pkg/dbctx"
	"github.com/atelierhq/roomora-backend/internal/platform/logger"
)

type PhotoRepo interface {
	Add(dbc dbctx.Context, row *domain.ProjectPhoto) error
	Remove(dbc dbctx.Context, projectID, photoID uuid.UUID) error
	ListByProject(dbc dbctx.Context, projectID uuid.UUID) ([]*domain.ProjectPhoto, error)
	DeleteByProject(dbc dbctx.Context, projectID uuid.UUID) error
}

type photoRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPhotoRepo(db *gorm.DB, log *logger.Logger) PhotoRepo {
	return &photoRepo{db: db, log: log.With("repo", "PhotoRepo")}
}

func (r *photoRepo) conn(dbc dbctx.Context) *gorm.DB {
	tx := dbc.Tx
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(dbc.Ctx)
}

func (r *photoRepo) Add(dbc dbctx.Context, row *domain.ProjectPhoto) error {
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	row.CreatedAt = time.Now().UTC()
	return r.conn(dbc).Create(row).Error
}

func (r *photoRepo) Remove(dbc dbctx.Context, projectID, photoID uuid.UUID) error {
	return r.conn(dbc).
		Delete(&domain.ProjectPhoto{}, "project_id = ? AND id = ?", projectID, photoID).Error
}

func (r *photoRepo) ListByProject(dbc dbctx.Context, projectID uuid.UUID) ([]*domain.ProjectPhoto, error) {
	var rows []*domain.ProjectPhoto
	err := r.conn(dbc).
		Where("project_id = ?", projectID).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}

func (r *photoRepo) DeleteByProject(dbc dbctx.Context, projectID uuid.UUID) error {
	return r.conn(dbc).Delete(&domain.ProjectPhoto{}, "project_id = ?", projectID).Error
}
