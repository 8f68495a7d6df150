package recommendation

import (
	"context"
	"sort"
	"strings"
	"time"

	"closetapi/config"
	"closetapi/logging"
	"closetapi/models"
)

// Opinion is what a strategy contributes to the context. A nil opinion means
// the strategy has nothing to say and the next one is tried.
type Opinion struct {
	TPO     models.TPO
	Weather *Weather
	Source  string
}

// ResolveInput is the read-only view every strategy receives.
type ResolveInput struct {
	User    models.UserAccount
	Request SearchRequest
	Date    time.Time
}

// Strategy is one link of the occasion priority chain. A strategy may return
// both a fallback opinion and the error that forced it; the error is logged
// and the opinion still counts.
type Strategy interface {
	Name() string
	Resolve(ctx context.Context, in ResolveInput) (*Opinion, error)
}

type KeywordStrategy struct{}

func (KeywordStrategy) Name() string { return "keyword" }

func (KeywordStrategy) Resolve(ctx context.Context, in ResolveInput) (*Opinion, error) {
	if in.Request.Keyword == "" {
		return nil, nil
	}
	tpo, ok := LookupTPO(in.Request.Keyword)
	if !ok {
		return nil, nil
	}
	return &Opinion{TPO: tpo, Source: "keyword"}, nil
}

// InferenceStrategy asks the text collaborator for a label. With a query
// present it always decides, falling back to Daily.
type InferenceStrategy struct {
	Inferrer OccasionInferrer
	Timeout  time.Duration
}

func (InferenceStrategy) Name() string { return "inference" }

func (s InferenceStrategy) Resolve(ctx context.Context, in ResolveInput) (*Opinion, error) {
	query := strings.TrimSpace(in.Request.Query)
	if query == "" {
		return nil, nil
	}
	fallback := &Opinion{TPO: models.TPODaily, Source: "inference_fallback"}
	if s.Inferrer == nil {
		return fallback, nil
	}
	guess, err := callWithTimeout(ctx, s.Timeout, func(ctx context.Context) (*OccasionGuess, error) {
		return s.Inferrer.InferOccasion(ctx, query)
	})
	if err != nil {
		CollaboratorFailures.WithLabelValues("occasion_inference").Inc()
		return fallback, err
	}
	if guess == nil {
		return fallback, nil
	}
	tpo, ok := ParseTPOLabel(guess.Label)
	if !ok {
		return fallback, nil
	}
	return &Opinion{TPO: tpo, Source: "inference"}, nil
}

// CalendarStrategy adopts the occasion and weather of the referenced event,
// or of the first event of the day when no title matches.
type CalendarStrategy struct {
	Calendar CalendarProvider
	Timeout  time.Duration
}

func (CalendarStrategy) Name() string { return "calendar" }

func (s CalendarStrategy) Resolve(ctx context.Context, in ResolveInput) (*Opinion, error) {
	ref := strings.TrimSpace(in.Request.CalendarEvent)
	if ref == "" || s.Calendar == nil || !in.User.HasCalendar() {
		return nil, nil
	}
	events, err := callWithTimeout(ctx, s.Timeout, func(ctx context.Context) ([]CalendarEvent, error) {
		return s.Calendar.GetEventsForDate(ctx, in.User, in.Date)
	})
	if err != nil {
		CollaboratorFailures.WithLabelValues("calendar").Inc()
		return nil, err
	}
	event := SelectEvent(events, ref)
	if event == nil {
		return nil, nil
	}
	tpo := event.TPO
	if !tpo.Valid() {
		tpo = models.TPODaily
	}
	return &Opinion{TPO: tpo, Weather: event.Weather, Source: "calendar"}, nil
}

// SelectEvent returns the event titled exactly ref, else the earliest event.
func SelectEvent(events []CalendarEvent, ref string) *CalendarEvent {
	if len(events) == 0 {
		return nil
	}
	ordered := make([]CalendarEvent, len(events))
	copy(ordered, events)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Start.Before(ordered[j].Start)
	})
	for i := range ordered {
		if ordered[i].Title == ref {
			return &ordered[i]
		}
	}
	return &ordered[0]
}

type DefaultStrategy struct{}

func (DefaultStrategy) Name() string { return "default" }

func (DefaultStrategy) Resolve(ctx context.Context, in ResolveInput) (*Opinion, error) {
	return &Opinion{TPO: models.TPODaily, Source: "default"}, nil
}

type Resolver struct {
	strategies []Strategy
	weather    WeatherProvider
	cfg        config.ResolverConfig
	logger     *logging.Logger
	now        func() time.Time
}

// NewResolver builds the standard chain: keyword, inference, calendar, default.
// Nil collaborators are allowed; their steps then never decide.
func NewResolver(cfg config.ResolverConfig, inferrer OccasionInferrer, calendar CalendarProvider, weather WeatherProvider, logger *logging.Logger) *Resolver {
	return NewResolverWithStrategies(cfg, []Strategy{
		KeywordStrategy{},
		InferenceStrategy{Inferrer: inferrer, Timeout: cfg.StepTimeout},
		CalendarStrategy{Calendar: calendar, Timeout: cfg.StepTimeout},
		DefaultStrategy{},
	}, weather, logger)
}

func NewResolverWithStrategies(cfg config.ResolverConfig, strategies []Strategy, weather WeatherProvider, logger *logging.Logger) *Resolver {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Resolver{
		strategies: strategies,
		weather:    weather,
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
	}
}

// WithClock replaces the clock used for "today".
func (r *Resolver) WithClock(now func() time.Time) *Resolver {
	r.now = now
	return r
}

// TargetDate picks the explicit date, else tomorrow when asked, else today,
// as a midnight in the configured zone.
func (r *Resolver) TargetDate(req SearchRequest) time.Time {
	loc := r.cfg.Location()
	if req.Date != nil {
		// the requested day as written, whatever zone it was parsed in
		y, m, d := req.Date.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, loc)
	}
	now := r.now().In(loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	if req.Tomorrow {
		return today.AddDate(0, 0, 1)
	}
	return today
}

// Resolve never fails: every collaborator problem degrades to defaults.
func (r *Resolver) Resolve(ctx context.Context, user models.UserAccount, req SearchRequest) SearchContext {
	if r.cfg.TotalTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.TotalTimeout)
		defer cancel()
	}
	in := ResolveInput{User: user, Request: req, Date: r.TargetDate(req)}
	log := r.logger.With("user_id", user.ID)

	var decided *Opinion
	for _, strategy := range r.strategies {
		opinion, err := strategy.Resolve(ctx, in)
		if err != nil {
			log.Warn("context strategy failed, continuing", "strategy", strategy.Name(), "error", err)
		}
		if opinion != nil {
			decided = opinion
			break
		}
	}
	if decided == nil {
		decided = &Opinion{TPO: models.TPODaily, Source: "default"}
	}
	ContextSources.WithLabelValues(decided.Source).Inc()

	sources := map[string]string{"tpo": decided.Source}
	weather := decided.Weather
	if weather != nil {
		sources["weather"] = decided.Source
	} else {
		weather = r.homeWeather(ctx, user, in.Date)
		if weather != nil {
			sources["weather"] = "home_location"
		} else {
			sources["weather"] = "none"
		}
	}

	var preferred []string
	if len(user.PreferredStyles) > 0 {
		preferred = append(preferred, user.PreferredStyles...)
	}
	return SearchContext{
		TPO:             decided.TPO,
		Weather:         weather,
		Date:            in.Date,
		Query:           strings.TrimSpace(req.Query),
		Style:           strings.TrimSpace(req.Style),
		Season:          SeasonFor(weather),
		PreferredStyles: preferred,
		Sources:         sources,
	}
}

func (r *Resolver) homeWeather(ctx context.Context, user models.UserAccount, date time.Time) *Weather {
	if r.weather == nil || user.HomeLocation == nil || strings.TrimSpace(*user.HomeLocation) == "" {
		return nil
	}
	location := strings.TrimSpace(*user.HomeLocation)
	weather, err := callWithTimeout(ctx, r.cfg.StepTimeout, func(ctx context.Context) (*Weather, error) {
		return r.weather.GetWeather(ctx, location, date)
	})
	if err != nil {
		CollaboratorFailures.WithLabelValues("weather").Inc()
		r.logger.Warn("weather lookup failed, continuing without weather", "location", location, "error", err)
		return nil
	}
	return weather
}

// callWithTimeout bounds fn even when it ignores its context.
func callWithTimeout[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	type result struct {
		value T
		err   error
	}
	done := make(chan result, 1)
	go func() {
		value, err := fn(ctx)
		done <- result{value: value, err: err}
	}()
	select {
	case res := <-done:
		return res.value, res.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
