package app

import (
	"gorm.io/gorm"

	designrepo "github.com/atelierhq/roomora-backend/internal/data/repos/design"
	"github.com/atelierhq/roomora-backend/internal/platform/logger"
)

type Repos struct {
	Projects  designrepo.ProjectRepo
	Photos    designrepo.PhotoRepo
	Revisions designrepo.RevisionRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Projects:  designrepo.NewProjectRepo(db, log),
		Photos:    designrepo.NewPhotoRepo(db, log),
		Revisions: designrepo.NewRevisionRepo(db, log),
	}
}
