package recommendation

import (
	"context"
	"errors"
	"sync"
	"time"

	"closetapi/config"
	"closetapi/models"
)

var errCollaborator = errors.New("collaborator unavailable")

func floatPtr(v float64) *float64 { return &v }
func strPtr(v string) *string     { return &v }
func uintPtr(v uint) *uint        { return &v }

type fakeInferrer struct {
	label string
	err   error
	delay time.Duration
	calls int
}

func (f *fakeInferrer) InferOccasion(ctx context.Context, text string) (*OccasionGuess, error) {
	f.calls++
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return nil, f.err
	}
	return &OccasionGuess{Label: f.label, Confidence: 0.9}, nil
}

type fakeCalendar struct {
	events []CalendarEvent
	err    error
}

func (f *fakeCalendar) GetEventsForDate(ctx context.Context, user models.UserAccount, date time.Time) ([]CalendarEvent, error) {
	return f.events, f.err
}

type fakeWeather struct {
	weather   *Weather
	err       error
	locations []string
	dates     []time.Time
}

func (f *fakeWeather) GetWeather(ctx context.Context, location string, date time.Time) (*Weather, error) {
	f.locations = append(f.locations, location)
	f.dates = append(f.dates, date)
	return f.weather, f.err
}

type fakeEmbedder struct {
	err   error
	texts []string
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.texts = append(f.texts, text)
	if f.err != nil {
		return nil, f.err
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

// fakeStore serves fixed neighbours per category and can fail one category.
type fakeStore struct {
	mu        sync.Mutex
	neighbors map[models.Category][]Neighbor
	failing   map[models.Category]bool
	probes    []models.Category
}

func (f *fakeStore) NearestNeighbors(ctx context.Context, userID uint, category models.Category, probe []float32, k int) ([]Neighbor, error) {
	f.mu.Lock()
	f.probes = append(f.probes, category)
	f.mu.Unlock()
	if f.failing[category] {
		return nil, errCollaborator
	}
	hits := f.neighbors[category]
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// fakeItems resolves ids against an in-memory wardrobe.
type fakeItems struct {
	items map[uint]models.Clothing
}

func newFakeItems(items ...models.Clothing) *fakeItems {
	f := &fakeItems{items: map[uint]models.Clothing{}}
	for _, item := range items {
		f.items[item.ID] = item
	}
	return f
}

func (f *fakeItems) ItemsByID(ctx context.Context, userID uint, ids []uint) ([]models.Clothing, error) {
	out := []models.Clothing{}
	for _, id := range ids {
		if item, ok := f.items[id]; ok && item.OwnerID == userID {
			out = append(out, item)
		}
	}
	return out, nil
}

func clothing(id uint, category models.Category) models.Clothing {
	item := models.Clothing{
		Category: category,
		OwnerID:  1,
		Colors:   models.StringList{"Black"},
	}
	item.ID = id
	return item
}

func testResolverConfig() config.ResolverConfig {
	cfg := config.DefaultResolver()
	cfg.StepTimeout = 200 * time.Millisecond
	cfg.TotalTimeout = time.Second
	return cfg
}

// fixedNow is 2026-03-10 15:00 in Seoul.
func fixedNow() time.Time {
	loc, _ := time.LoadLocation("Asia/Seoul")
	return time.Date(2026, 3, 10, 15, 0, 0, 0, loc)
}
