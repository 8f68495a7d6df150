package recommendation

import (
	"context"
	"time"

	"closetapi/logging"
	"closetapi/models"
)

// Engine runs one search: resolve context, retrieve per category, rank, compose.
type Engine struct {
	resolver  *Resolver
	retriever *Retriever
	scorer    *Scorer
	composer  *Composer
	logger    *logging.Logger
}

func NewEngine(resolver *Resolver, retriever *Retriever, scorer *Scorer, composer *Composer, logger *logging.Logger) *Engine {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Engine{resolver: resolver, retriever: retriever, scorer: scorer, composer: composer, logger: logger}
}

// Search never fails; collaborator problems only make the result poorer.
func (e *Engine) Search(ctx context.Context, user models.UserAccount, req SearchRequest) OutfitSearchResults {
	start := time.Now()
	sc := e.resolver.Resolve(ctx, user, req)
	StageDuration.WithLabelValues("resolve").Observe(time.Since(start).Seconds())

	start = time.Now()
	raw := e.retriever.Retrieve(ctx, user.ID, sc)
	StageDuration.WithLabelValues("retrieve").Observe(time.Since(start).Seconds())

	start = time.Now()
	ranked := CategorySearchResults{}
	for _, category := range models.OutfitCategories {
		*ranked.For(category) = e.scorer.Rank(raw.ByCategory[category], sc)
	}
	StageDuration.WithLabelValues("rank").Observe(time.Since(start).Seconds())

	results := e.composer.Compose(ranked, sc, raw.ProbeText)
	outcome := "ok"
	if len(results.Outfits) == 0 {
		outcome = "no_outfits"
	}
	SearchRequests.WithLabelValues(outcome).Inc()
	e.logger.Debug("search finished",
		"user_id", user.ID,
		"tpo", sc.TPO,
		"tpo_source", sc.Sources["tpo"],
		"outfits", len(results.Outfits),
	)
	return results
}
