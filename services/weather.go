package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"closetapi/config"
	"closetapi/logging"
	"closetapi/recommendation"

	"github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/lib/v4/store"
	gobreaker "github.com/sony/gobreaker/v2"
)

var errLocationNotFound = errors.New("location not found")

// defaultPlace is used when a stored location cannot be geocoded.
var defaultPlace = place{Name: "Seoul", Latitude: 37.5665, Longitude: 126.978}

type place struct {
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type geocodingResponse struct {
	Results []place `json:"results"`
}

type forecastResponse struct {
	Daily struct {
		Time                        []string   `json:"time"`
		TemperatureMax              []*float64 `json:"temperature_2m_max"`
		TemperatureMin              []*float64 `json:"temperature_2m_min"`
		PrecipitationProbabilityMax []*float64 `json:"precipitation_probability_max"`
		WeatherCode                 []*int     `json:"weather_code"`
	} `json:"daily"`
}

// OpenMeteoWeatherService resolves a place name and a date to a daily forecast.
// Forecasts are cached per (location, date) and calls go through a breaker.
type OpenMeteoWeatherService struct {
	httpClient   *http.Client
	forecastURL  string
	geocodingURL string
	breaker      *gobreaker.CircuitBreaker[any]
	cache        *cache.LoadableCache[*recommendation.Weather]
	logger       *logging.Logger
}

func NewOpenMeteoWeatherService(cfg config.WeatherConfig, logger *logging.Logger) (*OpenMeteoWeatherService, error) {
	if logger == nil {
		logger = logging.Nop()
	}
	s := &OpenMeteoWeatherService{
		httpClient:   &http.Client{Timeout: 5 * time.Second},
		forecastURL:  cfg.ForecastURL,
		geocodingURL: cfg.GeocodingURL,
		breaker:      newBreaker("weather", cfg.BreakerFailures, cfg.BreakerTimeout, logger),
		logger:       logger,
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	ristrettoStore, err := newRistrettoStore(1 << 12)
	if err != nil {
		return nil, err
	}
	loadFunction := func(ctx context.Context, key any) (*recommendation.Weather, []store.Option, error) {
		k, ok := key.(string)
		if !ok {
			return nil, nil, fmt.Errorf("invalid key type provided to weather cache: expected string, got %T", key)
		}
		location, day, _ := strings.Cut(k, "|")
		weather, err := s.fetch(ctx, location, day)
		return weather, []store.Option{store.WithExpiration(ttl), store.WithCost(1)}, err
	}
	s.cache = cache.NewLoadable[*recommendation.Weather](loadFunction, cache.New[*recommendation.Weather](ristrettoStore))
	return s, nil
}

func (s *OpenMeteoWeatherService) GetWeather(ctx context.Context, location string, date time.Time) (*recommendation.Weather, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return nil, fmt.Errorf("weather: empty location")
	}
	weather, err := s.cache.Get(ctx, location+"|"+date.Format(time.DateOnly))
	if err != nil {
		return nil, err
	}
	// callers must not mutate the cached value
	copied := *weather
	return &copied, nil
}

func (s *OpenMeteoWeatherService) fetch(ctx context.Context, location, day string) (*recommendation.Weather, error) {
	out, err := s.breaker.Execute(func() (any, error) {
		p, err := s.geocode(ctx, location)
		if errors.Is(err, errLocationNotFound) {
			s.logger.Info("location not geocoded, using default place", "location", location)
			p = defaultPlace
		} else if err != nil {
			return nil, err
		}
		return s.forecast(ctx, p, day)
	})
	if err != nil {
		return nil, fmt.Errorf("weather: %s on %s: %w", location, day, err)
	}
	return out.(*recommendation.Weather), nil
}

func (s *OpenMeteoWeatherService) geocode(ctx context.Context, location string) (place, error) {
	query := url.Values{}
	query.Set("name", location)
	query.Set("count", "1")
	query.Set("language", "ko")
	query.Set("format", "json")

	var response geocodingResponse
	if err := s.getJSON(ctx, s.geocodingURL+"?"+query.Encode(), &response); err != nil {
		return place{}, fmt.Errorf("geocoding: %w", err)
	}
	if len(response.Results) == 0 {
		return place{}, errLocationNotFound
	}
	return response.Results[0], nil
}

func (s *OpenMeteoWeatherService) forecast(ctx context.Context, p place, day string) (*recommendation.Weather, error) {
	query := url.Values{}
	query.Set("latitude", strconv.FormatFloat(p.Latitude, 'f', 4, 64))
	query.Set("longitude", strconv.FormatFloat(p.Longitude, 'f', 4, 64))
	query.Set("daily", "temperature_2m_max,temperature_2m_min,precipitation_probability_max,weather_code")
	query.Set("timezone", "auto")
	query.Set("start_date", day)
	query.Set("end_date", day)

	var response forecastResponse
	if err := s.getJSON(ctx, s.forecastURL+"?"+query.Encode(), &response); err != nil {
		return nil, fmt.Errorf("forecast: %w", err)
	}
	daily := response.Daily
	idx := -1
	for i, d := range daily.Time {
		if d == day {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("forecast: no data for %s", day)
	}

	weather := &recommendation.Weather{Location: p.Name}
	maxTemp, minTemp := valueAt(daily.TemperatureMax, idx), valueAt(daily.TemperatureMin, idx)
	switch {
	case maxTemp != nil && minTemp != nil:
		mean := (*maxTemp + *minTemp) / 2
		weather.Temp = &mean
	case maxTemp != nil:
		weather.Temp = maxTemp
	case minTemp != nil:
		weather.Temp = minTemp
	}
	if rain := valueAt(daily.PrecipitationProbabilityMax, idx); rain != nil {
		weather.RainProbability = clampUnit(*rain / 100)
	}
	if code := valueAt(daily.WeatherCode, idx); code != nil {
		weather.Condition = WeatherCondition(*code)
	}
	return weather, nil
}

func (s *OpenMeteoWeatherService) getJSON(ctx context.Context, rawURL string, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to get response: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// WeatherCondition maps a WMO weather interpretation code to a short label.
func WeatherCondition(code int) string {
	switch {
	case code == 0:
		return "Clear"
	case code <= 3:
		return "Cloudy"
	case code == 45 || code == 48:
		return "Fog"
	case code >= 51 && code <= 67:
		return "Rain"
	case code >= 71 && code <= 77:
		return "Snow"
	case code >= 80 && code <= 82:
		return "Showers"
	case code == 85 || code == 86:
		return "Snow"
	case code >= 95:
		return "Thunderstorm"
	}
	return "Unknown"
}

func valueAt[T any](values []*T, idx int) *T {
	if idx < 0 || idx >= len(values) {
		return nil
	}
	return values[idx]
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
