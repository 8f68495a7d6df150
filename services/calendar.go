package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"closetapi/config"
	"closetapi/logging"
	"closetapi/models"
	"closetapi/recommendation"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

const maxEventsPerDay = 20

// EventSource lists the raw events of one day. The google implementation
// reads the primary calendar with the user's offline refresh token.
type EventSource interface {
	ListEvents(ctx context.Context, user models.UserAccount, from, to time.Time) ([]recommendation.CalendarEvent, error)
}

type googleEventSource struct {
	oauth *oauth2.Config
}

func (g googleEventSource) ListEvents(ctx context.Context, user models.UserAccount, from, to time.Time) ([]recommendation.CalendarEvent, error) {
	if !user.HasCalendar() {
		return nil, fmt.Errorf("calendar: user %d has no linked calendar", user.ID)
	}
	httpClient := g.oauth.Client(ctx, &oauth2.Token{RefreshToken: *user.CalendarRefreshToken})
	svc, err := calendar.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("calendar: create service: %w", err)
	}
	list, err := svc.Events.List("primary").
		TimeMin(from.Format(time.RFC3339)).
		TimeMax(to.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		MaxResults(maxEventsPerDay).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("calendar: list events: %w", err)
	}
	events := make([]recommendation.CalendarEvent, 0, len(list.Items))
	for _, item := range list.Items {
		if item.Status == "cancelled" {
			continue
		}
		events = append(events, recommendation.CalendarEvent{
			Title:       item.Summary,
			Location:    item.Location,
			Description: item.Description,
			Start:       eventTime(item.Start, from.Location()),
			End:         eventTime(item.End, from.Location()),
		})
	}
	return events, nil
}

// eventTime reads a timed event's instant or an all-day event's date.
func eventTime(t *calendar.EventDateTime, loc *time.Location) time.Time {
	if t == nil {
		return time.Time{}
	}
	if t.DateTime != "" {
		if parsed, err := time.Parse(time.RFC3339, t.DateTime); err == nil {
			return parsed.In(loc)
		}
	}
	if t.Date != "" {
		if parsed, err := time.ParseInLocation(time.DateOnly, t.Date, loc); err == nil {
			return parsed
		}
	}
	return time.Time{}
}

// CalendarService returns the day's events, each enriched with an occasion
// and the weather at the event's place (or the user's home).
type CalendarService struct {
	source   EventSource
	inferrer recommendation.OccasionInferrer
	weather  recommendation.WeatherProvider
	logger   *logging.Logger
}

func NewGoogleCalendarService(cfg config.CalendarConfig, inferrer recommendation.OccasionInferrer, weather recommendation.WeatherProvider, logger *logging.Logger) *CalendarService {
	source := googleEventSource{oauth: &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{calendar.CalendarReadonlyScope},
	}}
	return NewCalendarService(source, inferrer, weather, logger)
}

func NewCalendarService(source EventSource, inferrer recommendation.OccasionInferrer, weather recommendation.WeatherProvider, logger *logging.Logger) *CalendarService {
	if logger == nil {
		logger = logging.Nop()
	}
	return &CalendarService{source: source, inferrer: inferrer, weather: weather, logger: logger}
}

func (s *CalendarService) GetEventsForDate(ctx context.Context, user models.UserAccount, date time.Time) ([]recommendation.CalendarEvent, error) {
	events, err := s.source.ListEvents(ctx, user, date, date.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i := range events {
		g.Go(func() error {
			events[i].TPO = s.eventOccasion(gctx, events[i])
			events[i].Weather = s.eventWeather(gctx, user, events[i], date)
			return nil
		})
	}
	_ = g.Wait()
	return events, nil
}

// eventOccasion tries the keyword table on the title before asking the model.
func (s *CalendarService) eventOccasion(ctx context.Context, event recommendation.CalendarEvent) models.TPO {
	if tpo, ok := recommendation.LookupTPO(event.Title); ok {
		return tpo
	}
	if s.inferrer == nil {
		return models.TPODaily
	}
	text := strings.TrimSpace(event.Title + "\n" + event.Description)
	guess, err := s.inferrer.InferOccasion(ctx, text)
	if err != nil || guess == nil {
		if err != nil {
			s.logger.Warn("event occasion inference failed", "title", event.Title, "error", err)
		}
		return models.TPODaily
	}
	if tpo, ok := recommendation.ParseTPOLabel(guess.Label); ok {
		return tpo
	}
	return models.TPODaily
}

func (s *CalendarService) eventWeather(ctx context.Context, user models.UserAccount, event recommendation.CalendarEvent, date time.Time) *recommendation.Weather {
	if s.weather == nil {
		return nil
	}
	location := strings.TrimSpace(event.Location)
	if location == "" && user.HomeLocation != nil {
		location = strings.TrimSpace(*user.HomeLocation)
	}
	if location == "" {
		return nil
	}
	weather, err := s.weather.GetWeather(ctx, location, date)
	if err != nil {
		s.logger.Warn("event weather lookup failed", "location", location, "error", err)
		return nil
	}
	return weather
}
