package recommendation

import (
	"math"
	"testing"
	"time"

	"closetapi/config"
	"closetapi/models"

	"github.com/stretchr/testify/assert"
)

func testScorer() *Scorer {
	return NewScorer(config.DefaultScoring())
}

func dailyContext() SearchContext {
	return SearchContext{
		TPO:    models.TPODaily,
		Date:   time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		Season: models.SeasonSpring,
	}
}

func TestScoreStaysInUnitRange(t *testing.T) {
	s := testScorer()
	sc := dailyContext()
	sc.Weather = &Weather{Temp: floatPtr(30), RainProbability: 1}
	sc.Season = models.SeasonSummer
	sc.Style = "street"

	items := []models.Clothing{
		clothing(1, models.CategoryOuter),
		{SubCategory: "Padding", Category: models.CategoryOuter, Seasons: models.StringList{"Winter"}, WearCount: 500, RejectCount: 40},
		{Category: models.CategoryTop, TPOs: models.StringList{"Daily"}, StyleMoods: models.StringList{"Street"}, Seasons: models.StringList{"Summer"}, AcceptCount: 30},
	}
	for _, item := range items {
		for _, similarity := range []float64{-0.4, 0, 0.7, 1.3} {
			scored := s.Score(item, similarity, sc)
			assert.GreaterOrEqual(t, scored.Score, 0.0)
			assert.LessOrEqual(t, scored.Score, 1.0)
			assert.GreaterOrEqual(t, scored.SubScores.Relevance, 0.0)
			assert.LessOrEqual(t, scored.SubScores.Relevance, 1.0)
		}
	}
}

func TestNeverWornIsAtLeastAsNovelAsWornYesterday(t *testing.T) {
	s := testScorer()
	sc := dailyContext()

	fresh := clothing(1, models.CategoryTop)
	worn := clothing(1, models.CategoryTop)
	yesterday := sc.Date.AddDate(0, 0, -1)
	worn.LastWorn = &yesterday

	freshScore := s.Score(fresh, 0.5, sc)
	wornScore := s.Score(worn, 0.5, sc)
	assert.GreaterOrEqual(t, freshScore.SubScores.Novelty, wornScore.SubScores.Novelty)
	assert.Greater(t, freshScore.Score, wornScore.Score)

	// with equal recency, a heavily worn item rotates out
	worn.LastWorn = nil
	worn.WearCount = 20
	assert.Greater(t, s.Score(fresh, 0.5, sc).SubScores.Novelty, s.Score(worn, 0.5, sc).SubScores.Novelty)
}

func TestNoveltyRecoversOverTime(t *testing.T) {
	s := testScorer()
	sc := dailyContext()
	item := clothing(1, models.CategoryTop)

	lastWeek := sc.Date.AddDate(0, 0, -7)
	item.LastWorn = &lastWeek
	weekOld := s.Score(item, 0, sc).SubScores.Novelty

	yesterday := sc.Date.AddDate(0, 0, -1)
	item.LastWorn = &yesterday
	dayOld := s.Score(item, 0, sc).SubScores.Novelty
	assert.Greater(t, weekOld, dayOld)

	// one half-life: recency 0.5, rotation 1 with zero wear count
	cfg := config.DefaultScoring()
	expected := cfg.NoveltyRecencyShare*0.5 + (1 - cfg.NoveltyRecencyShare)
	item.LastWorn = &lastWeek
	assert.InDelta(t, expected, s.Score(item, 0, sc).SubScores.Novelty, 1e-9)
}

func TestOccasionFit(t *testing.T) {
	s := testScorer()
	sc := dailyContext()
	sc.TPO = models.TPOWedding

	match := clothing(1, models.CategoryTop)
	match.TPOs = models.StringList{"Wedding", "Party"}
	other := clothing(2, models.CategoryTop)
	other.TPOs = models.StringList{"Sports"}

	assert.Equal(t, 1.0, s.Score(match, 0, sc).SubScores.Occasion)
	mismatch := s.Score(other, 0, sc).SubScores.Occasion
	assert.Equal(t, config.DefaultScoring().OccasionMismatch, mismatch)
	assert.Greater(t, mismatch, 0.0)
}

func TestStyleFit(t *testing.T) {
	s := testScorer()
	sc := dailyContext()
	item := clothing(1, models.CategoryTop)
	item.StyleMoods = models.StringList{"Street"}

	assert.Equal(t, 0.5, s.Score(item, 0, sc).SubScores.Style)

	sc.Style = "스트릿"
	assert.Equal(t, 1.0, s.Score(item, 0, sc).SubScores.Style)

	sc.Style = "street minimal"
	assert.Equal(t, 0.5, s.Score(item, 0, sc).SubScores.Style)

	sc.Style = "sparkly"
	assert.Equal(t, 0.5, s.Score(item, 0, sc).SubScores.Style)
}

func TestWeatherFit(t *testing.T) {
	s := testScorer()
	sc := dailyContext()

	coat := models.Clothing{Category: models.CategoryOuter, SubCategory: "Coat", Seasons: models.StringList{"Winter"}}
	tee := models.Clothing{Category: models.CategoryTop, SubCategory: "Short sleeve T", Seasons: models.StringList{"Summer"}}
	untagged := models.Clothing{Category: models.CategoryTop}

	// unknown weather is neutral
	assert.Equal(t, 0.5, s.Score(coat, 0, sc).SubScores.Weather)

	sc.Weather = &Weather{Temp: floatPtr(28)}
	sc.Season = models.SeasonSummer
	assert.InDelta(t, 0.1*0.3, s.Score(coat, 0, sc).SubScores.Weather, 1e-9)
	assert.Equal(t, 1.0, s.Score(tee, 0, sc).SubScores.Weather)
	assert.Equal(t, 0.5, s.Score(untagged, 0, sc).SubScores.Weather)

	sc.Weather = &Weather{Temp: floatPtr(-2)}
	sc.Season = models.SeasonWinter
	assert.Equal(t, 1.0, s.Score(coat, 0, sc).SubScores.Weather)
	assert.InDelta(t, 0.1*0.3, s.Score(tee, 0, sc).SubScores.Weather, 1e-9)

	// adjacent season
	sc.Weather = &Weather{Temp: floatPtr(10)}
	sc.Season = models.SeasonAutumn
	assert.Equal(t, 0.5, s.Score(coat, 0, sc).SubScores.Weather)
}

func TestRainPenalisesExposedOuterAndShoes(t *testing.T) {
	s := testScorer()
	sc := dailyContext()
	sc.Weather = &Weather{Temp: floatPtr(18), RainProbability: 0.8}

	sneakers := models.Clothing{Category: models.CategoryShoes, Seasons: models.StringList{"Spring"}}
	boots := models.Clothing{Category: models.CategoryShoes, Seasons: models.StringList{"Spring"}, WaterResistant: true}
	top := models.Clothing{Category: models.CategoryTop, Seasons: models.StringList{"Spring"}}

	assert.InDelta(t, 1-0.5*0.8, s.Score(sneakers, 0, sc).SubScores.Weather, 1e-9)
	assert.Equal(t, 1.0, s.Score(boots, 0, sc).SubScores.Weather)
	assert.Equal(t, 1.0, s.Score(top, 0, sc).SubScores.Weather)

	sc.Weather.RainProbability = 0.4
	assert.Equal(t, 1.0, s.Score(sneakers, 0, sc).SubScores.Weather)
}

func TestPreferenceSmoothing(t *testing.T) {
	s := testScorer()
	sc := dailyContext()
	item := clothing(1, models.CategoryTop)
	assert.Equal(t, 0.5, s.Score(item, 0, sc).SubScores.Preference)

	item.AcceptCount = 3
	assert.InDelta(t, 4.0/5.0, s.Score(item, 0, sc).SubScores.Preference, 1e-9)

	item.AcceptCount = 0
	item.RejectCount = 3
	assert.InDelta(t, 1.0/5.0, s.Score(item, 0, sc).SubScores.Preference, 1e-9)
}

func TestRankIsDeterministic(t *testing.T) {
	s := testScorer()
	sc := dailyContext()
	sc.Weather = &Weather{Temp: floatPtr(12), RainProbability: 0.6}
	sc.Season = models.SeasonAutumn

	candidates := []Candidate{}
	for id := uint(1); id <= 12; id++ {
		item := clothing(id, models.CategoryTop)
		item.WearCount = int(id % 3)
		if id%4 == 0 {
			item.TPOs = models.StringList{"Daily"}
		}
		candidates = append(candidates, Candidate{Item: item, Similarity: float64(id%5) / 5})
	}

	first := s.Rank(candidates, sc)
	for i := 0; i < 5; i++ {
		reversed := make([]Candidate, len(candidates))
		for j := range candidates {
			reversed[len(candidates)-1-j] = candidates[j]
		}
		again := s.Rank(reversed, sc)
		assert.Equal(t, ids(first), ids(again))
	}
	for i := 1; i < len(first); i++ {
		prev, cur := first[i-1], first[i]
		assert.True(t, prev.Score > cur.Score || (prev.Score == cur.Score && prev.Item.ID < cur.Item.ID))
	}
}

func TestTiesBreakByID(t *testing.T) {
	s := testScorer()
	sc := dailyContext()
	ranked := s.Rank([]Candidate{
		{Item: clothing(9, models.CategoryTop), Similarity: 0.5},
		{Item: clothing(3, models.CategoryTop), Similarity: 0.5},
		{Item: clothing(5, models.CategoryTop), Similarity: 0.5},
	}, sc)
	assert.Equal(t, []uint{3, 5, 9}, ids(ranked))
}

func TestZeroWeightsFallBackToNeutral(t *testing.T) {
	cfg := config.DefaultScoring()
	cfg.WeatherWeight, cfg.OccasionWeight, cfg.StyleWeight = 0, 0, 0
	cfg.NoveltyWeight, cfg.PreferenceWeight, cfg.RelevanceWeight = 0, 0, 0
	scored := NewScorer(cfg).Score(clothing(1, models.CategoryTop), 1, dailyContext())
	assert.Equal(t, cfg.Neutral, scored.Score)
	assert.False(t, math.IsNaN(scored.Score))
}

func ids(list []ScoredClothing) []uint {
	out := make([]uint, len(list))
	for i, s := range list {
		out[i] = s.Item.ID
	}
	return out
}
