package recommendation

import (
	"context"
	"testing"
	"time"

	"closetapi/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestResolver(inferrer OccasionInferrer, calendar CalendarProvider, weather WeatherProvider) *Resolver {
	return NewResolver(testResolverConfig(), inferrer, calendar, weather, nil).WithClock(fixedNow)
}

func calendarUser() models.UserAccount {
	user := models.UserAccount{CalendarRefreshToken: strPtr("refresh-token"), HomeLocation: strPtr("Seoul")}
	user.ID = 1
	return user
}

func TestKeywordBeatsInferredText(t *testing.T) {
	inferrer := &fakeInferrer{label: "Sports"}
	r := newTestResolver(inferrer, nil, nil)

	sc := r.Resolve(context.Background(), models.UserAccount{}, SearchRequest{
		Keyword: "party",
		Query:   "going for a run by the river",
	})
	assert.Equal(t, models.TPOParty, sc.TPO)
	assert.Equal(t, "keyword", sc.Sources["tpo"])
	assert.Equal(t, 0, inferrer.calls)
}

func TestUnknownKeywordFallsThroughToInference(t *testing.T) {
	r := newTestResolver(&fakeInferrer{label: "Travel"}, nil, nil)

	sc := r.Resolve(context.Background(), models.UserAccount{}, SearchRequest{
		Keyword: "something odd",
		Query:   "weekend in Busan",
	})
	assert.Equal(t, models.TPOTravel, sc.TPO)
	assert.Equal(t, "inference", sc.Sources["tpo"])
}

func TestInvalidInferredLabelFallsBackToDaily(t *testing.T) {
	for _, label := range []string{"Funeral", "", "party-ish"} {
		r := newTestResolver(&fakeInferrer{label: label}, nil, nil)
		sc := r.Resolve(context.Background(), models.UserAccount{}, SearchRequest{Query: "what should I wear"})
		assert.Equal(t, models.TPODaily, sc.TPO, label)
		assert.Equal(t, "inference_fallback", sc.Sources["tpo"])
	}
}

func TestInferenceFailureFallsBackToDaily(t *testing.T) {
	r := newTestResolver(&fakeInferrer{err: errCollaborator}, nil, nil)
	sc := r.Resolve(context.Background(), models.UserAccount{}, SearchRequest{Query: "dinner with friends"})
	assert.Equal(t, models.TPODaily, sc.TPO)
}

func TestInferenceTimeoutFallsBackToDaily(t *testing.T) {
	r := newTestResolver(&fakeInferrer{label: "Party", delay: time.Second}, nil, nil)

	start := time.Now()
	sc := r.Resolve(context.Background(), models.UserAccount{}, SearchRequest{Query: "dinner with friends"})
	assert.Equal(t, models.TPODaily, sc.TPO)
	assert.Less(t, time.Since(start), 900*time.Millisecond)
}

func TestInferenceDecidesBeforeCalendar(t *testing.T) {
	calendar := &fakeCalendar{events: []CalendarEvent{{Title: "Team dinner", TPO: models.TPOParty}}}
	r := newTestResolver(&fakeInferrer{label: "Not a label"}, calendar, nil)

	sc := r.Resolve(context.Background(), calendarUser(), SearchRequest{Query: "anything", CalendarEvent: "Team dinner"})
	assert.Equal(t, models.TPODaily, sc.TPO)
	assert.Equal(t, "inference_fallback", sc.Sources["tpo"])
}

func TestCalendarEventSelection(t *testing.T) {
	day := fixedNow()
	eventWeather := &Weather{Temp: floatPtr(2), Condition: "Snow", Location: "Busan"}
	calendar := &fakeCalendar{events: []CalendarEvent{
		{Title: "Wedding of Jisoo", Start: day.Add(3 * time.Hour), TPO: models.TPOWedding, Weather: eventWeather},
		{Title: "Standup", Start: day.Add(time.Hour), TPO: models.TPOCommute},
	}}
	weather := &fakeWeather{weather: &Weather{Temp: floatPtr(20)}}
	r := newTestResolver(nil, calendar, weather)

	sc := r.Resolve(context.Background(), calendarUser(), SearchRequest{CalendarEvent: "Wedding of Jisoo"})
	assert.Equal(t, models.TPOWedding, sc.TPO)
	assert.Equal(t, eventWeather, sc.Weather)
	assert.Equal(t, "calendar", sc.Sources["weather"])
	assert.Equal(t, models.SeasonWinter, sc.Season)
	assert.Empty(t, weather.locations)

	// no exact title: earliest event of the day
	sc = r.Resolve(context.Background(), calendarUser(), SearchRequest{CalendarEvent: "wedding"})
	assert.Equal(t, models.TPOCommute, sc.TPO)
	assert.Equal(t, "home_location", sc.Sources["weather"])
	assert.Equal(t, []string{"Seoul"}, weather.locations)
}

func TestCalendarWithoutEventsOrLinkDefaults(t *testing.T) {
	r := newTestResolver(nil, &fakeCalendar{}, nil)
	sc := r.Resolve(context.Background(), calendarUser(), SearchRequest{CalendarEvent: "Standup"})
	assert.Equal(t, models.TPODaily, sc.TPO)
	assert.Equal(t, "default", sc.Sources["tpo"])

	linked := &fakeCalendar{events: []CalendarEvent{{Title: "Standup", TPO: models.TPOCommute}}}
	r = newTestResolver(nil, linked, nil)
	unlinked := models.UserAccount{}
	sc = r.Resolve(context.Background(), unlinked, SearchRequest{CalendarEvent: "Standup"})
	assert.Equal(t, models.TPODaily, sc.TPO)

	failing := &fakeCalendar{err: errCollaborator}
	r = newTestResolver(nil, failing, nil)
	sc = r.Resolve(context.Background(), calendarUser(), SearchRequest{CalendarEvent: "Standup"})
	assert.Equal(t, models.TPODaily, sc.TPO)
}

func TestHomeWeather(t *testing.T) {
	weather := &fakeWeather{weather: &Weather{Temp: floatPtr(27), RainProbability: 0.8}}
	r := newTestResolver(nil, nil, weather)

	sc := r.Resolve(context.Background(), calendarUser(), SearchRequest{})
	require.NotNil(t, sc.Weather)
	assert.Equal(t, models.SeasonSummer, sc.Season)
	assert.Equal(t, "home_location", sc.Sources["weather"])

	// no stored location: no weather, Spring
	sc = r.Resolve(context.Background(), models.UserAccount{}, SearchRequest{})
	assert.Nil(t, sc.Weather)
	assert.Equal(t, models.SeasonSpring, sc.Season)
	assert.Equal(t, "none", sc.Sources["weather"])

	failing := newTestResolver(nil, nil, &fakeWeather{err: errCollaborator})
	sc = failing.Resolve(context.Background(), calendarUser(), SearchRequest{})
	assert.Nil(t, sc.Weather)
}

func TestTargetDate(t *testing.T) {
	r := newTestResolver(nil, nil, nil)
	loc := r.cfg.Location()

	today := r.TargetDate(SearchRequest{})
	assert.Equal(t, time.Date(2026, 3, 10, 0, 0, 0, 0, loc), today)

	tomorrow := r.TargetDate(SearchRequest{Tomorrow: true})
	assert.Equal(t, time.Date(2026, 3, 11, 0, 0, 0, 0, loc), tomorrow)

	explicit := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 5, 1, 0, 0, 0, 0, loc), r.TargetDate(SearchRequest{Date: &explicit, Tomorrow: true}))
}

func TestTargetDateKeepsRequestedDayWestOfUTC(t *testing.T) {
	cfg := testResolverConfig()
	cfg.TimeZone = "America/New_York"
	r := NewResolver(cfg, nil, nil, nil, nil).WithClock(fixedNow)
	loc := cfg.Location()
	require.NotEqual(t, time.UTC, loc)

	requested, err := time.Parse(time.DateOnly, "2026-10-15")
	require.NoError(t, err)
	target := r.TargetDate(SearchRequest{Date: &requested})
	assert.Equal(t, time.Date(2026, 10, 15, 0, 0, 0, 0, loc), target)
	assert.Equal(t, "2026-10-15", target.Format(time.DateOnly))

	weather := &fakeWeather{weather: &Weather{Condition: "Clear"}}
	r = NewResolver(cfg, nil, nil, weather, nil).WithClock(fixedNow)
	sc := r.Resolve(context.Background(), calendarUser(), SearchRequest{Date: &requested})
	assert.Equal(t, "2026-10-15", sc.Date.Format(time.DateOnly))
	require.Len(t, weather.dates, 1)
	assert.Equal(t, "2026-10-15", weather.dates[0].Format(time.DateOnly))
}

func TestPreferredStylesCopied(t *testing.T) {
	r := newTestResolver(nil, nil, nil)
	user := models.UserAccount{PreferredStyles: models.StringList{"Minimal"}}
	sc := r.Resolve(context.Background(), user, SearchRequest{Style: "  street "})
	assert.Equal(t, []string{"Minimal"}, sc.PreferredStyles)
	assert.Equal(t, "street", sc.Style)
}

func TestSeasonFor(t *testing.T) {
	assert.Equal(t, models.SeasonSpring, SeasonFor(nil))
	assert.Equal(t, models.SeasonSpring, SeasonFor(&Weather{Condition: "Clear"}))
	assert.Equal(t, models.SeasonWinter, SeasonFor(&Weather{Temp: floatPtr(-3)}))
	assert.Equal(t, models.SeasonAutumn, SeasonFor(&Weather{Temp: floatPtr(5)}))
	assert.Equal(t, models.SeasonSpring, SeasonFor(&Weather{Temp: floatPtr(15)}))
	assert.Equal(t, models.SeasonSummer, SeasonFor(&Weather{Temp: floatPtr(23)}))
}

func TestSelectEvent(t *testing.T) {
	assert.Nil(t, SelectEvent(nil, "x"))
	base := fixedNow()
	events := []CalendarEvent{
		{Title: "B", Start: base.Add(2 * time.Hour)},
		{Title: "A", Start: base.Add(time.Hour)},
	}
	assert.Equal(t, "B", SelectEvent(events, "B").Title)
	assert.Equal(t, "A", SelectEvent(events, "missing").Title)
}
