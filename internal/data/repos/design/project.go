package design

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/atelierhq/roomora-backend/internal/domain"
	"github.com/atelierhq/roomora-backend/internal/pkg/dbctx"
	"github.com/atelierhq/roomora-backend/internal/platform/logger"
)

type ProjectRepo interface {
	Create(dbc dbctx.Context, row *domain.Project) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.Project, error)
	SetStatus(dbc dbctx.Context, id uuid.UUID, status string) error
	ListByOwner(dbc dbctx.Context, ownerID uuid.UUID) ([]*domain.Project, error)
	Delete(dbc dbctx.Context, id uuid.UUID) error
}

type projectRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewProjectRepo(db *gorm.DB, log *logger.Logger) ProjectRepo {
	return &projectRepo{db: db, log: log.With("repo", "ProjectRepo")}
}

func (r *projectRepo) conn(dbc dbctx.Context) *gorm.DB {
	tx := dbc.Tx
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(dbc.Ctx)
}

func (r *projectRepo) Create(dbc dbctx.Context, row *domain.Project) error {
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	now := time.Now().UTC()
	row.CreatedAt = now
	row.UpdatedAt = now
	return r.conn(dbc).Create(row).Error
}

func (r *projectRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.Project, error) {
	var row domain.Project
	err := r.conn(dbc).First(&row, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *projectRepo) SetStatus(dbc dbctx.Context, id uuid.UUID, status string) error {
	return r.conn(dbc).
		Model(&domain.Project{}).
		Where("id = ?", id).
		Updates(map[string]any{"status": status, "updated_at": time.Now().UTC()}).Error
}

func (r *projectRepo) ListByOwner(dbc dbctx.Context, ownerID uuid.UUID) ([]*domain.Project, error) {
	var rows []*domain.Project
	err := r.conn(dbc).
		Where("owner_user_id = ?", ownerID).
		Order("created_at DESC").
		Find(&rows).Error
	return rows, err
}

func (r *projectRepo) Delete(dbc dbctx.Context, id uuid.UUID) error {
	return r.conn(dbc).Delete(&domain.Project{}, "id = ?", id).Error
}
