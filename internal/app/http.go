package app

import (
	"fmt"

	"gorm.io/gorm"

	roomhttp "github.com/atelierhq/roomora-backend/internal/http"
	httpH "github.com/atelierhq/roomora-backend/internal/http/handlers"
	httpMW "github.com/atelierhq/roomora-backend/internal/http/middleware"
	"github.com/atelierhq/roomora-backend/internal/platform/envutil"
	"github.com/atelierhq/roomora-backend/internal/platform/logger"
	"github.com/atelierhq/roomora-backend/internal/temporalx/designrun"
)

func wireRouter(log *logger.Logger, clients Clients, repos Repos) (*roomhttp.Server, error) {
	log.Info("Wiring router...")

	auth, err := httpMW.NewAuthMiddleware(log, envutil.Str("JWT_SECRET_KEY", ""))
	if err != nil {
		return nil, fmt.Errorf("wire auth middleware: %w", err)
	}

	cfg := roomhttp.RouterConfig{
		Log:            log,
		AuthMiddleware: auth,
		HealthHandler:  httpH.NewHealthHandler(),
	}
	if clients.Artifacts != nil {
		cfg.ArtifactDir = clients.Artifacts.Dir()
	}
	if clients.Temporal != nil {
		project, err := httpH.NewProjectHandler(log, clients.Temporal, repos.Projects, repos.Photos, repos.Revisions)
		if err != nil {
			return nil, fmt.Errorf("wire project handler: %w", err)
		}
		cfg.ProjectHandler = project
	}

	return roomhttp.NewServer(cfg), nil
}

func wireActivities(log *logger.Logger, db *gorm.DB, clients Clients, repos Repos) *designrun.Activities {
	log.Info("Wiring activities...")
	return &designrun.Activities{
		Log:       log,
		DB:        db,
		Model:     clients.Model,
		Session:   clients.Session,
		Sessions:  clients.Sessions,
		Shopping:  clients.Shopping,
		Artifacts: clients.Artifacts,
		Projects:  repos.Projects,
		Photos:    repos.Photos,
		Revisions: repos.Revisions,
		Prompts:   clients.Prompts,
	}
}
