package recommendation

import (
	"context"
	"strings"
	"time"

	"closetapi/logging"
	"closetapi/models"

	"golang.org/x/sync/errgroup"
)

// Candidate is a retrieved item before ranking.
type Candidate struct {
	Item       models.Clothing
	Similarity float64
}

type RawCandidates struct {
	ProbeText  string
	ByCategory map[models.Category][]Candidate
}

type Retriever struct {
	embedder Embedder
	store    CandidateStore
	items    ItemSource
	k        int
	logger   *logging.Logger
}

func NewRetriever(embedder Embedder, store CandidateStore, items ItemSource, k int, logger *logging.Logger) *Retriever {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Retriever{embedder: embedder, store: store, items: items, k: k, logger: logger}
}

// ProbeText is the single text embedded for every category probe.
func ProbeText(sc SearchContext) string {
	parts := make([]string, 0, 6)
	if sc.Query != "" {
		parts = append(parts, sc.Query)
	}
	if sc.Style != "" {
		parts = append(parts, sc.Style)
	}
	if sc.TPO != "" {
		parts = append(parts, string(sc.TPO))
	}
	if sc.Season != "" {
		parts = append(parts, string(sc.Season))
	}
	if sc.Weather != nil && sc.Weather.RainProbability > 0.5 {
		parts = append(parts, "rain")
	}
	if sc.Style == "" && len(sc.PreferredStyles) > 0 {
		parts = append(parts, strings.Join(sc.PreferredStyles, " "))
	}
	return strings.Join(parts, " ")
}

// Retrieve never fails. A category whose probe or load fails comes back empty.
func (r *Retriever) Retrieve(ctx context.Context, userID uint, sc SearchContext) RawCandidates {
	raw := RawCandidates{
		ProbeText:  ProbeText(sc),
		ByCategory: make(map[models.Category][]Candidate, len(models.OutfitCategories)),
	}
	for _, category := range models.OutfitCategories {
		raw.ByCategory[category] = []Candidate{}
	}
	if r.embedder == nil || r.store == nil || r.items == nil {
		return raw
	}
	log := r.logger.With("user_id", userID)

	start := time.Now()
	probe, err := r.embedder.Embed(ctx, raw.ProbeText)
	StageDuration.WithLabelValues("embed").Observe(time.Since(start).Seconds())
	if err != nil || len(probe) == 0 {
		CollaboratorFailures.WithLabelValues("embedding").Inc()
		log.Warn("probe embedding failed, returning no candidates", "error", err)
		return raw
	}

	found := make([][]Candidate, len(models.OutfitCategories))
	var g errgroup.Group
	for i, category := range models.OutfitCategories {
		g.Go(func() error {
			candidates, err := r.retrieveCategory(ctx, userID, category, probe)
			if err != nil {
				RetrievalErrors.WithLabelValues(category.Key()).Inc()
				log.Warn("category retrieval failed", "category", category, "error", err)
				candidates = []Candidate{}
			}
			found[i] = candidates
			return nil
		})
	}
	_ = g.Wait()

	for i, category := range models.OutfitCategories {
		raw.ByCategory[category] = found[i]
	}
	return raw
}

func (r *Retriever) retrieveCategory(ctx context.Context, userID uint, category models.Category, probe []float32) ([]Candidate, error) {
	neighbors, err := r.store.NearestNeighbors(ctx, userID, category, probe, r.k)
	if err != nil {
		return nil, err
	}
	if len(neighbors) == 0 {
		return []Candidate{}, nil
	}
	ids := make([]uint, len(neighbors))
	similarity := make(map[uint]float64, len(neighbors))
	for i, n := range neighbors {
		ids[i] = n.ID
		similarity[n.ID] = n.Similarity
	}
	items, err := r.items.ItemsByID(ctx, userID, ids)
	if err != nil {
		return nil, err
	}
	candidates := make([]Candidate, 0, len(items))
	for _, item := range items {
		// the index may lag behind an attribute change
		if item.Category != category {
			continue
		}
		candidates = append(candidates, Candidate{Item: item, Similarity: similarity[item.ID]})
	}
	return candidates, nil
}
