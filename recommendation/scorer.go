package recommendation

import (
	"math"
	"sort"
	"strings"

	"closetapi/config"
	"closetapi/languageutil"
	"closetapi/models"
)

// Garment words that make an item wrong for a heat wave or a cold snap.
var (
	heavyGarmentWords = []string{"padding", "padded", "puffer", "coat", "jumper", "knit", "boots", "패딩", "코트", "점퍼", "니트", "부츠"}
	lightGarmentWords = []string{"sleeveless", "shorts", "sandals", "short sleeve", "short-sleeve", "민소매", "반바지", "샌들", "반팔"}
)

const (
	hotThreshold  = 23.0
	coldThreshold = 5.0
	rainThreshold = 0.5
	tempPenalty   = 0.3
)

// Scorer is a pure function of (item, similarity, context). It never reads
// the clock; novelty is measured from the context date.
type Scorer struct {
	cfg config.ScoringConfig
}

func NewScorer(cfg config.ScoringConfig) *Scorer {
	return &Scorer{cfg: cfg}
}

func (s *Scorer) Score(item models.Clothing, similarity float64, sc SearchContext) ScoredClothing {
	sub := SubScores{
		Weather:    s.weatherFit(item, sc),
		Occasion:   s.occasionFit(item, sc),
		Style:      s.styleFit(item, sc),
		Novelty:    s.novelty(item, sc),
		Preference: s.preference(item),
		Relevance:  clamp01(similarity),
	}
	total := s.cfg.TotalWeight()
	score := s.cfg.Neutral
	if total > 0 {
		score = (s.cfg.WeatherWeight*sub.Weather +
			s.cfg.OccasionWeight*sub.Occasion +
			s.cfg.StyleWeight*sub.Style +
			s.cfg.NoveltyWeight*sub.Novelty +
			s.cfg.PreferenceWeight*sub.Preference +
			s.cfg.RelevanceWeight*sub.Relevance) / total
	}
	return ScoredClothing{Item: item, Score: clamp01(score), Similarity: similarity, SubScores: sub}
}

// Rank scores every candidate and orders by score, ties by ascending id.
func (s *Scorer) Rank(candidates []Candidate, sc SearchContext) []ScoredClothing {
	ranked := make([]ScoredClothing, 0, len(candidates))
	for _, c := range candidates {
		ranked = append(ranked, s.Score(c.Item, c.Similarity, sc))
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Item.ID < ranked[j].Item.ID
	})
	return ranked
}

func (s *Scorer) weatherFit(item models.Clothing, sc SearchContext) float64 {
	w := sc.Weather
	if w == nil {
		return s.cfg.Neutral
	}
	fit := s.cfg.Neutral
	if w.Temp != nil {
		fit = seasonFactor(item.Seasons, sc.Season)
		words := garmentText(item)
		if *w.Temp >= hotThreshold && containsAny(words, heavyGarmentWords) {
			fit *= tempPenalty
		}
		if *w.Temp < coldThreshold && containsAny(words, lightGarmentWords) {
			fit *= tempPenalty
		}
	}
	if w.RainProbability > rainThreshold && !item.WaterResistant &&
		(item.Category == models.CategoryOuter || item.Category == models.CategoryShoes) {
		fit *= 1 - 0.5*w.RainProbability
	}
	return clamp01(fit)
}

func seasonFactor(tags models.StringList, season models.Season) float64 {
	if len(tags) == 0 {
		return 0.5
	}
	if tags.Contains(string(season)) {
		return 1.0
	}
	for _, tag := range tags {
		if models.Season(tag).Adjacent(season) {
			return 0.5
		}
	}
	return 0.1
}

func garmentText(item models.Clothing) string {
	return languageutil.Normalize(item.SubCategory + " " + item.Name)
}

func containsAny(text string, words []string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}

func (s *Scorer) occasionFit(item models.Clothing, sc SearchContext) float64 {
	if item.TPOs.Contains(string(sc.TPO)) {
		return 1.0
	}
	return s.cfg.OccasionMismatch
}

func (s *Scorer) styleFit(item models.Clothing, sc SearchContext) float64 {
	moods := LookupStyles(sc.Style)
	if len(moods) == 0 {
		return s.cfg.Neutral
	}
	matched := 0
	for _, mood := range moods {
		if item.StyleMoods.Contains(string(mood)) {
			matched++
		}
	}
	return float64(matched) / float64(len(moods))
}

func (s *Scorer) novelty(item models.Clothing, sc SearchContext) float64 {
	recency := 1.0
	if item.LastWorn != nil {
		days := sc.Date.Sub(*item.LastWorn).Hours() / 24
		if days < 0 {
			days = 0
		}
		recency = 1 - math.Exp(-math.Ln2*days/s.cfg.NoveltyHalfLifeDays)
	}
	wear := item.WearCount
	if wear < 0 {
		wear = 0
	}
	rotation := 1 / (1 + math.Log1p(float64(wear)))
	share := s.cfg.NoveltyRecencyShare
	return clamp01(share*recency + (1-share)*rotation)
}

// preference is a smoothed acceptance rate; an item with no feedback sits at 0.5.
func (s *Scorer) preference(item models.Clothing) float64 {
	accepts := math.Max(float64(item.AcceptCount), 0)
	rejects := math.Max(float64(item.RejectCount), 0)
	alpha := s.cfg.PreferenceAlpha
	return (accepts + alpha) / (accepts + rejects + 2*alpha)
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
