package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// ConfigPathEnvVar points at an optional YAML file layered over the defaults.
const ConfigPathEnvVar = "CLOSET_CONFIG"

// envPrefix marks environment variables that map onto nested keys,
// e.g. CLOSET_SCORING__WEATHER_WEIGHT -> scoring.weather_weight.
const envPrefix = "CLOSET_"

var DefaultConfigPaths = []string{"./config.yaml", "/etc/closetapi/config.yaml"}

type Config struct {
	Env       string `koanf:"env"`
	SentryDSN string `koanf:"sentry_dsn"`

	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Broker   BrokerConfig   `koanf:"broker"`
	Gemini   GeminiConfig   `koanf:"gemini"`
	Weather  WeatherConfig  `koanf:"weather"`
	Calendar CalendarConfig `koanf:"calendar"`
	Search   SearchConfig   `koanf:"search"`
	Resolver ResolverConfig `koanf:"resolver"`
	Scoring  ScoringConfig  `koanf:"scoring"`
}

type ServerConfig struct {
	Addr      string  `koanf:"addr" validate:"required"`
	JWTSecret string  `koanf:"jwt_secret"`
	RateLimit float64 `koanf:"rate_limit" validate:"gt=0"`
}

type DatabaseConfig struct {
	Host         string `koanf:"host"`
	Port         string `koanf:"port"`
	User         string `koanf:"user"`
	Password     string `koanf:"password"`
	Name         string `koanf:"name"`
	MaxOpenConns int    `koanf:"max_open_conns" validate:"gt=0"`
	MaxIdleConns int    `koanf:"max_idle_conns" validate:"gte=0"`
}

// DSN renders the postgres connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s", d.User, d.Password, d.Host, d.Port, d.Name)
}

type BrokerConfig struct {
	Addr        string `koanf:"addr"`
	Concurrency int    `koanf:"concurrency" validate:"gt=0"`
}

type GeminiConfig struct {
	APIKey          string        `koanf:"api_key"`
	InferenceModel  string        `koanf:"inference_model"`
	EmbeddingModel  string        `koanf:"embedding_model"`
	EmbeddingDims   int32         `koanf:"embedding_dims" validate:"gt=0"`
	// applied to the inference and embedding breakers separately
	BreakerFailures uint32        `koanf:"breaker_failures" validate:"gt=0"`
	BreakerTimeout  time.Duration `koanf:"breaker_timeout"`
}

type WeatherConfig struct {
	ForecastURL     string        `koanf:"forecast_url" validate:"required"`
	GeocodingURL    string        `koanf:"geocoding_url" validate:"required"`
	CacheTTL        time.Duration `koanf:"cache_ttl"`
	BreakerFailures uint32        `koanf:"breaker_failures" validate:"gt=0"`
	BreakerTimeout  time.Duration `koanf:"breaker_timeout"`
}

type CalendarConfig struct {
	ClientID     string `koanf:"client_id"`
	ClientSecret string `koanf:"client_secret"`
}

type SearchConfig struct {
	// pgvector or qdrant
	Backend               string `koanf:"backend" validate:"oneof=pgvector qdrant"`
	QdrantURL             string `koanf:"qdrant_url"`
	QdrantAPIKey          string `koanf:"qdrant_api_key"`
	QdrantCollection      string `koanf:"qdrant_collection"`
	CandidatesPerCategory int    `koanf:"candidates_per_category" validate:"gt=0"`
	KeepPerCategory       int    `koanf:"keep_per_category" validate:"gt=0"`
	MaxOutfits            int    `koanf:"max_outfits" validate:"gt=0"`
}

type ResolverConfig struct {
	StepTimeout  time.Duration `koanf:"step_timeout"`
	TotalTimeout time.Duration `koanf:"total_timeout"`
	TimeZone     string        `koanf:"time_zone"`
}

// ScoringConfig holds the ranking weights and shape constants. Weights are
// relative; the scorer divides by their sum.
type ScoringConfig struct {
	WeatherWeight    float64 `koanf:"weather_weight" validate:"gte=0"`
	OccasionWeight   float64 `koanf:"occasion_weight" validate:"gte=0"`
	StyleWeight      float64 `koanf:"style_weight" validate:"gte=0"`
	NoveltyWeight    float64 `koanf:"novelty_weight" validate:"gte=0"`
	PreferenceWeight float64 `koanf:"preference_weight" validate:"gte=0"`
	RelevanceWeight  float64 `koanf:"relevance_weight" validate:"gte=0"`

	OccasionMismatch    float64 `koanf:"occasion_mismatch" validate:"gt=0,lte=1"`
	Neutral             float64 `koanf:"neutral" validate:"gte=0,lte=1"`
	PreferenceAlpha     float64 `koanf:"preference_alpha" validate:"gt=0"`
	NoveltyHalfLifeDays float64 `koanf:"novelty_half_life_days" validate:"gt=0"`
	NoveltyRecencyShare float64 `koanf:"novelty_recency_share" validate:"gte=0,lte=1"`
}

func (s ScoringConfig) TotalWeight() float64 {
	return s.WeatherWeight + s.OccasionWeight + s.StyleWeight + s.NoveltyWeight + s.PreferenceWeight + s.RelevanceWeight
}

func DefaultScoring() ScoringConfig {
	return ScoringConfig{
		WeatherWeight:       0.20,
		OccasionWeight:      0.20,
		StyleWeight:         0.15,
		NoveltyWeight:       0.15,
		PreferenceWeight:    0.15,
		RelevanceWeight:     0.15,
		OccasionMismatch:    0.3,
		Neutral:             0.5,
		PreferenceAlpha:     1,
		NoveltyHalfLifeDays: 7,
		NoveltyRecencyShare: 0.7,
	}
}

func DefaultSearch() SearchConfig {
	return SearchConfig{
		Backend:               "pgvector",
		QdrantCollection:      "wardrobe_items",
		CandidatesPerCategory: 15,
		KeepPerCategory:       10,
		MaxOutfits:            5,
	}
}

func DefaultResolver() ResolverConfig {
	return ResolverConfig{
		StepTimeout:  2 * time.Second,
		TotalTimeout: 5 * time.Second,
		TimeZone:     "Asia/Seoul",
	}
}

func defaultConfig() Config {
	return Config{
		Env: "local",
		Server: ServerConfig{
			Addr:      ":8083",
			RateLimit: 20,
		},
		Database: DatabaseConfig{
			Port:         "5432",
			MaxOpenConns: 300,
			MaxIdleConns: 10,
		},
		Broker: BrokerConfig{
			Addr:        "localhost:6379",
			Concurrency: 10,
		},
		Gemini: GeminiConfig{
			InferenceModel:  "gemini-2.5-flash-lite",
			EmbeddingModel:  "gemini-embedding-001",
			EmbeddingDims:   768,
			BreakerFailures: 5,
			BreakerTimeout:  30 * time.Second,
		},
		Weather: WeatherConfig{
			ForecastURL:     "https://api.open-meteo.com/v1/forecast",
			GeocodingURL:    "https://geocoding-api.open-meteo.com/v1/search",
			CacheTTL:        30 * time.Minute,
			BreakerFailures: 5,
			BreakerTimeout:  30 * time.Second,
		},
		Search:   DefaultSearch(),
		Resolver: DefaultResolver(),
		Scoring:  DefaultScoring(),
	}
}

// Load layers defaults, the optional YAML file and the environment, in that
// order of increasing priority, then validates the result.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}
	if c.Scoring.TotalWeight() <= 0 {
		return fmt.Errorf("scoring: at least one weight must be positive")
	}
	if c.Search.Backend == "qdrant" && c.Search.QdrantURL == "" {
		return fmt.Errorf("search: qdrant backend requires qdrant_url")
	}
	if _, err := time.LoadLocation(c.Resolver.TimeZone); err != nil {
		return fmt.Errorf("resolver: unknown time zone %q: %w", c.Resolver.TimeZone, err)
	}
	return nil
}

// Location returns the zone used to compute "today" and "tomorrow".
func (c ResolverConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// legacyEnv keeps the variable names the deployment already sets.
var legacyEnv = map[string]string{
	"env":                  "env",
	"sentry_dsn":           "sentry_dsn",
	"jwt_secret":           "server.jwt_secret",
	"db_host":              "database.host",
	"db_port":              "database.port",
	"db_username":          "database.user",
	"db_password":          "database.password",
	"db_name":              "database.name",
	"async_broker_address": "broker.addr",
	"google_api_key":       "gemini.api_key",
	"google_client_id":     "calendar.client_id",
	"google_client_secret": "calendar.client_secret",
	"qdrant_url":           "search.qdrant_url",
	"qdrant_api_key":       "search.qdrant_api_key",
}

// envTransformFunc maps an environment variable to a koanf path. Unknown
// variables return "" and are skipped.
func envTransformFunc(key string) string {
	if strings.HasPrefix(key, envPrefix) {
		trimmed := strings.ToLower(strings.TrimPrefix(key, envPrefix))
		return strings.ReplaceAll(trimmed, "__", ".")
	}
	if mapped, ok := legacyEnv[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}
