package shopping

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/atelierhq/roomora-backend/internal/domain"
	"github.com/atelierhq/roomora-backend/internal/pkg/faults"
	"github.com/atelierhq/roomora-backend/internal/platform/envutil"
	"github.com/atelierhq/roomora-backend/internal/platform/logger"
)

// CatalogClient searches the product catalog feed for purchasable matches.
type CatalogClient struct {
	log        *logger.Logger
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewCatalogClient(log *logger.Logger) (*CatalogClient, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	baseURL := envutil.Str("CATALOG_API_URL", "")
	apiKey := envutil.Str("CATALOG_API_KEY", "")
	if baseURL == "" || apiKey == "" {
		return nil, fmt.Errorf("missing CATALOG_API_URL or CATALOG_API_KEY")
	}
	return &CatalogClient{
		log:        log.With("service", "CatalogClient"),
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: envutil.Seconds("CATALOG_TIMEOUT_SECONDS", 30)},
	}, nil
}

func (c *CatalogClient) Search(ctx context.Context, query string, limit int) ([]domain.Product, error) {
	if limit <= 0 {
		limit = 5
	}
	u := fmt.Sprintf("%s/v1/products/search?q=%s&limit=%d", c.baseURL, url.QueryEscape(query), limit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, faults.Permanent("build catalog request", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, faults.Transient("catalog unreachable", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, faults.Transient("read catalog response", err)
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return nil, faults.Transient(fmt.Sprintf("catalog returned %d", resp.StatusCode), nil)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, faults.Permanent(fmt.Sprintf("catalog returned %d", resp.StatusCode), nil)
	}

	var out struct {
		Products []domain.Product `json:"products"`
	}
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, faults.Transient("decode catalog response", err)
	}
	return out.Products, nil
}

// retryBudget bounds a whole pipeline run so one slow catalog page cannot
// eat the activity's time budget.
func (c *CatalogClient) withDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, 2*time.Minute)
}
