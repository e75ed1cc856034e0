package app

import (
	temporalsdkclient "go.temporal.io/sdk/client"

	"github.com/atelierhq/roomora-backend/internal/conversation"
	"github.com/atelierhq/roomora-backend/internal/platform/artifacts"
	"github.com/atelierhq/roomora-backend/internal/platform/envutil"
	"github.com/atelierhq/roomora-backend/internal/platform/genai"
	"github.com/atelierhq/roomora-backend/internal/platform/logger"
	"github.com/atelierhq/roomora-backend/internal/platform/prompts"
	"github.com/atelierhq/roomora-backend/internal/shopping"
	"github.com/atelierhq/roomora-backend/internal/temporalx"
)

// Clients holds every external-facing dependency: the design model, the
// conversation store, the catalog, Temporal and the artifact store.
type Clients struct {
	Temporal  temporalsdkclient.Client
	Model     genai.Client
	Sessions  conversation.Store
	Session   *conversation.Session
	Catalog   *shopping.CatalogClient
	Shopping  *shopping.Builder
	Artifacts *artifacts.Store
	Prompts   *prompts.Config
}

func wireClients(log *logger.Logger) (Clients, error) {
	log.Info("Wiring clients...")

	promptCfg, err := prompts.Load(envutil.Str("PROMPTS_PATH", ""))
	if err != nil {
		return Clients{}, err
	}

	model, err := genai.NewClient(log)
	if err != nil {
		return Clients{}, err
	}

	sessions, err := conversation.NewRedisStore(log)
	if err != nil {
		return Clients{}, err
	}
	session := conversation.NewSession(log, sessions, model, conversation.DefaultImageBudget)

	artifactStore, err := artifacts.NewStore(log)
	if err != nil {
		return Clients{}, err
	}

	// The catalog is optional in development; the shopping activity reports
	// a permanent failure when it is missing.
	catalog, err := shopping.NewCatalogClient(log)
	if err != nil {
		log.Warn("catalog not configured; shopping lists disabled", "error", err)
		catalog = nil
	}
	var builder *shopping.Builder
	if catalog != nil {
		builder = shopping.NewBuilder(log, model, catalog, promptCfg)
	}

	tc, err := temporalx.NewClient(log)
	if err != nil {
		return Clients{}, err
	}

	return Clients{
		Temporal:  tc,
		Model:     model,
		Sessions:  sessions,
		Session:   session,
		Catalog:   catalog,
		Shopping:  builder,
		Artifacts: artifactStore,
		Prompts:   promptCfg,
	}, nil
}
