package app

import (
	"context"
	"fmt"
	"os"
	"time"

	temporalsdkclient "go.temporal.io/sdk/client"
	"gorm.io/gorm"

	"github.com/atelierhq/roomora-backend/internal/db"
	roomhttp "github.com/atelierhq/roomora-backend/internal/http"
	"github.com/atelierhq/roomora-backend/internal/observability"
	"github.com/atelierhq/roomora-backend/internal/platform/envutil"
	"github.com/atelierhq/roomora-backend/internal/platform/logger"
	"github.com/atelierhq/roomora-backend/internal/temporalx/designworker"
)

// App owns every long-lived dependency of one process: the API server and
// the Temporal worker run from the same wiring.
type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Server   *roomhttp.Server
	Temporal temporalsdkclient.Client

	worker       *designworker.Runner
	otelShutdown func(context.Context) error
	cancel       context.CancelFunc
}

func New() (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	otelShutdown := observability.InitOTel(context.Background(), log, observability.OtelConfig{
		ServiceName: envutil.Str("SERVICE_NAME", "roomora-backend"),
		Environment: envutil.Str("ENVIRONMENT", "development"),
		Version:     envutil.Str("SERVICE_VERSION", ""),
	})

	pg, err := db.NewPostgresService(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	if err := pg.AutoMigrateAll(); err != nil {
		log.Sync()
		return nil, fmt.Errorf("postgres automigrate: %w", err)
	}
	theDB := pg.DB()

	clientset, err := wireClients(log)
	if err != nil {
		log.Sync()
		return nil, err
	}

	reposet := wireRepos(theDB, log)

	acts := wireActivities(log, theDB, clientset, reposet)

	var worker *designworker.Runner
	if clientset.Temporal != nil {
		worker, err = designworker.NewRunner(log, clientset.Temporal, acts)
		if err != nil {
			log.Sync()
			return nil, err
		}
	} else {
		log.Warn("Temporal not configured; design workflows unavailable")
	}

	server, err := wireRouter(log, clientset, reposet)
	if err != nil {
		log.Sync()
		return nil, err
	}

	return &App{
		Log:          log,
		DB:           theDB,
		Server:       server,
		Temporal:     clientset.Temporal,
		worker:       worker,
		otelShutdown: otelShutdown,
	}, nil
}

// Start launches the Temporal worker. Safe to call when Temporal is not
// configured.
func (a *App) Start() error {
	if a == nil || a.cancel != nil {
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	if a.worker != nil {
		if err := a.worker.Start(ctx); err != nil {
			return fmt.Errorf("start temporal worker: %w", err)
		}
	}
	return nil
}

func (a *App) Run(addr string) error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized")
	}
	return a.Server.Run(addr)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	if a.Server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		_ = a.Server.Shutdown(ctx)
		cancel()
	}
	if a.Temporal != nil {
		a.Temporal.Close()
	}
	if a.otelShutdown != nil {
		_ = a.otelShutdown(context.Background())
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
