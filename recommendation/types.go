package recommendation

import (
	"context"
	"time"

	"closetapi/models"
)

// Weather is the forecast the resolver attaches to a context. Temp is nil
// when the provider only knows the condition.
type Weather struct {
	Temp            *float64 `json:"temp"`
	Condition       string   `json:"condition"`
	RainProbability float64  `json:"rain_probability"` // 0..1
	Location        string   `json:"location,omitempty"`
}

// SearchContext is resolved once per request and never modified afterwards.
type SearchContext struct {
	TPO             models.TPO        `json:"tpo"`
	Weather         *Weather          `json:"weather"`
	Date            time.Time         `json:"date"`
	Query           string            `json:"query,omitempty"`
	Style           string            `json:"style,omitempty"`
	Season          models.Season     `json:"season"`
	PreferredStyles []string          `json:"preferred_styles,omitempty"`
	Sources         map[string]string `json:"sources"`
}

// SearchRequest carries the optional signals of a recommendation request.
type SearchRequest struct {
	Keyword       string
	Query         string
	CalendarEvent string
	// Date is a civil date; only its year, month and day are read.
	Date     *time.Time
	Tomorrow bool
	Style    string
}

type ScoredClothing struct {
	Item       models.Clothing `json:"item"`
	Score      float64         `json:"score"`
	Similarity float64         `json:"similarity"`
	SubScores  SubScores       `json:"sub_scores"`
}

type SubScores struct {
	Weather    float64 `json:"weather"`
	Occasion   float64 `json:"occasion"`
	Style      float64 `json:"style"`
	Novelty    float64 `json:"novelty"`
	Preference float64 `json:"preference"`
	Relevance  float64 `json:"relevance"`
}

type CategorySearchResults struct {
	Outer  []ScoredClothing `json:"outer"`
	Top    []ScoredClothing `json:"top"`
	Bottom []ScoredClothing `json:"bottom"`
	Shoes  []ScoredClothing `json:"shoes"`
}

// For returns the list of one outfit slot.
func (r *CategorySearchResults) For(category models.Category) *[]ScoredClothing {
	switch category {
	case models.CategoryOuter:
		return &r.Outer
	case models.CategoryTop:
		return &r.Top
	case models.CategoryBottom:
		return &r.Bottom
	case models.CategoryShoes:
		return &r.Shoes
	}
	return nil
}

type Outfit struct {
	OuterID  *uint           `json:"outer_id,omitempty"`
	TopID    uint            `json:"top_id"`
	BottomID uint            `json:"bottom_id"`
	ShoesID  uint            `json:"shoes_id"`
	Outer    *ScoredClothing `json:"outer,omitempty"`
	Top      ScoredClothing  `json:"top"`
	Bottom   ScoredClothing  `json:"bottom"`
	Shoes    ScoredClothing  `json:"shoes"`
	Score    float64         `json:"score"`
}

func (o Outfit) Identity() models.OutfitIdentity {
	return models.OutfitIdentity{OuterID: o.OuterID, TopID: o.TopID, BottomID: o.BottomID, ShoesID: o.ShoesID}
}

type SearchMeta struct {
	Context         SearchContext  `json:"context"`
	TotalCandidates map[string]int `json:"total_candidates"`
	AppliedSeason   models.Season  `json:"applied_season"`
	ProbeText       string         `json:"probe_text"`
}

type OutfitSearchResults struct {
	Outfits    []Outfit              `json:"outfits"`
	Candidates CategorySearchResults `json:"candidates"`
	Meta       SearchMeta            `json:"meta"`
}

type OccasionGuess struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// OccasionInferrer turns free text into an advisory occasion label.
type OccasionInferrer interface {
	InferOccasion(ctx context.Context, text string) (*OccasionGuess, error)
}

// CalendarEvent is one event of the day, already enriched with the
// occasion and weather guessed for it.
type CalendarEvent struct {
	Title       string     `json:"title"`
	Location    string     `json:"location,omitempty"`
	Description string     `json:"description,omitempty"`
	Start       time.Time  `json:"start"`
	End         time.Time  `json:"end"`
	TPO         models.TPO `json:"tpo"`
	Weather     *Weather   `json:"weather"`
}

type CalendarProvider interface {
	GetEventsForDate(ctx context.Context, user models.UserAccount, date time.Time) ([]CalendarEvent, error)
}

type WeatherProvider interface {
	GetWeather(ctx context.Context, location string, date time.Time) (*Weather, error)
}

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
