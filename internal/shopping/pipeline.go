package shopping

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/atelierhq/roomora-backend/internal/domain"
	"github.com/atelierhq/roomora-backend/internal/pkg/faults"
	"github.com/atelierhq/roomora-backend/internal/platform/genai"
	"github.com/atelierhq/roomora-backend/internal/platform/logger"
	"github.com/atelierhq/roomora-backend/internal/platform/prompts"
)

// BuildInput carries everything the pipeline needs from a finished project.
type BuildInput struct {
	FinalImageURL string
	RoomPhotoURLs []string
	Brief         domain.DesignBrief
	Revisions     []domain.RevisionRecord
}

// Builder runs extraction -> search -> scoring -> filtering over a final
// design and returns the shopping list.
type Builder struct {
	log     *logger.Logger
	model   genai.Client
	catalog *CatalogClient
	prompts *prompts.Config
}

func NewBuilder(log *logger.Logger, model genai.Client, catalog *CatalogClient, p *prompts.Config) *Builder {
	return &Builder{
		log:     log.With("service", "ShoppingBuilder"),
		model:   model,
		catalog: catalog,
		prompts: p,
	}
}

const minMatchScore = 0.4

func (b *Builder) Build(ctx context.Context, in BuildInput) (domain.ShoppingList, error) {
	if b.model == nil || b.catalog == nil {
		return domain.ShoppingList{}, faults.Permanent("shopping pipeline missing provider or catalog config", nil)
	}
	if strings.TrimSpace(in.FinalImageURL) == "" {
		return domain.ShoppingList{}, faults.Validation("shopping: missing final image", nil)
	}

	prompt := fmt.Sprintf(b.prompts.ShoppingExtract, briefSummary(in.Brief))
	items, err := b.model.ExtractItems(ctx, prompt, in.FinalImageURL)
	if err != nil {
		return domain.ShoppingList{}, err
	}

	ctx, cancel := b.catalog.withDeadline(ctx)
	defer cancel()

	var list domain.ShoppingList
	for _, item := range items {
		candidates, err := b.catalog.Search(ctx, searchQuery(item), 5)
		if err != nil {
			return domain.ShoppingList{}, err
		}
		best, score := bestMatch(item, candidates)
		if score < minMatchScore {
			list.Unmatched = append(list.Unmatched, item.Name)
			continue
		}
		best.Score = score
		list.Products = append(list.Products, best)
		list.TotalCents += best.PriceCents
	}

	list.Products = filterByDimensions(list.Products)
	b.log.Info("shopping list built",
		"matched", len(list.Products), "unmatched", len(list.Unmatched), "total_cents", list.TotalCents)
	return list, nil
}

func briefSummary(b domain.DesignBrief) string {
	parts := []string{}
	if b.Style != "" {
		parts = append(parts, "style: "+b.Style)
	}
	if len(b.ColorPalette) > 0 {
		parts = append(parts, "palette: "+strings.Join(b.ColorPalette, ", "))
	}
	if b.BudgetTier != "" {
		parts = append(parts, "budget: "+b.BudgetTier)
	}
	if b.Notes != "" {
		parts = append(parts, b.Notes)
	}
	if len(parts) == 0 {
		return "no brief provided"
	}
	return strings.Join(parts, "; ")
}

func searchQuery(item genai.ExtractedItem) string {
	q := item.Name
	if item.Category != "" {
		q = item.Category + " " + q
	}
	return strings.TrimSpace(q)
}

// bestMatch scores candidates by token overlap with the extracted item name
// and prefers priced listings on ties.
func bestMatch(item genai.ExtractedItem, candidates []domain.Product) (domain.Product, float64) {
	if len(candidates) == 0 {
		return domain.Product{}, 0
	}
	type scored struct {
		p domain.Product
		s float64
	}
	out := make([]scored, 0, len(candidates))
	for _, c := range candidates {
		s := tokenOverlap(item.Name, c.Name)
		if c.PriceCents > 0 {
			s += 0.05
		}
		out = append(out, scored{p: c, s: s})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].s > out[j].s })
	return out[0].p, out[0].s
}

func tokenOverlap(a, b string) float64 {
	at := tokens(a)
	if len(at) == 0 {
		return 0
	}
	bt := map[string]bool{}
	for _, t := range tokens(b) {
		bt[t] = true
	}
	hits := 0
	for _, t := range at {
		if bt[t] {
			hits++
		}
	}
	return float64(hits) / float64(len(at))
}

func tokens(s string) []string {
	fields := strings.Fields(strings.ToLower(s))
	out := fields[:0]
	for _, f := range fields {
		f = strings.Trim(f, ".,;:()")
		if len(f) > 2 {
			out = append(out, f)
		}
	}
	return out
}

// filterByDimensions is a pass-through until the catalog feed carries product
// dimension metadata; at that point it should drop items that cannot fit the
// scanned room geometry.
func filterByDimensions(products []domain.Product) []domain.Product {
	return products
}
