package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/outage-monitor/internal/domain"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	DatabaseURL string
	Sources     []domain.Source
	Location    *time.Location

	FetchTimeout time.Duration

	// Geoapify geocoding configuration.
	GeoapifyKey      string
	GeocodeEnabled   bool
	GeocodeTimeout   time.Duration
	GeocodeCacheSize int

	MatchRadiusKm float64

	ScheduleMinute    int
	ScheduleStartHour int
	ScheduleEndHour   int
	MisfireGrace      time.Duration
	RunOnStart        bool

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	loc, err := time.LoadLocation(envOrDefault("APP_TZ", "Europe/Belgrade"))
	if err != nil {
		return nil, fmt.Errorf("invalid APP_TZ: %w", err)
	}

	sources, err := parseSources(envOrDefault("SOURCES", "BVK=https://www.bvk.rs/kvarovi-na-mrezi/"))
	if err != nil {
		return nil, err
	}

	fetchTimeout, err := parseDuration("FETCH_TIMEOUT", "20s")
	if err != nil {
		return nil, err
	}

	geocodeTimeout, err := parseDuration("GEOCODE_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}

	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}

	misfireGrace, err := parseDuration("MISFIRE_GRACE", "5m")
	if err != nil {
		return nil, err
	}

	geoapifyKey := os.Getenv("GEOAPIFY_KEY")
	geocodeEnabled := geoapifyKey != ""
	if v := os.Getenv("GEOCODE_ENABLED"); v != "" {
		geocodeEnabled = v == "true"
	}

	radius, err := parseFloat("MATCH_RADIUS_KM", 0.7)
	if err != nil {
		return nil, err
	}

	minute, err := parseInt("SCHEDULE_MINUTE", 55)
	if err != nil {
		return nil, err
	}
	startHour, err := parseInt("SCHEDULE_START_HOUR", 6)
	if err != nil {
		return nil, err
	}
	endHour, err := parseInt("SCHEDULE_END_HOUR", 23)
	if err != nil {
		return nil, err
	}

	smtpPort, err := parseInt("SMTP_PORT", 587)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		Sources:      sources,
		Location:     loc,
		FetchTimeout: fetchTimeout,

		GeoapifyKey:      geoapifyKey,
		GeocodeEnabled:   geocodeEnabled,
		GeocodeTimeout:   geocodeTimeout,
		GeocodeCacheSize: parseCacheSize(),

		MatchRadiusKm: radius,

		ScheduleMinute:    minute,
		ScheduleStartHour: startHour,
		ScheduleEndHour:   endHour,
		MisfireGrace:      misfireGrace,
		RunOnStart:        envOrDefault("RUN_ON_START", "true") == "true",

		SMTPHost:     os.Getenv("SMTP_HOST"),
		SMTPPort:     smtpPort,
		SMTPUsername: os.Getenv("SMTP_USERNAME"),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),
		SMTPFrom:     os.Getenv("SMTP_FROM"),

		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if len(cfg.Sources) == 0 {
		return nil, errors.New("SOURCES is required")
	}
	if cfg.GeocodeEnabled && cfg.GeoapifyKey == "" {
		return nil, errors.New("GEOCODE_ENABLED is true but GEOAPIFY_KEY is not set")
	}
	if cfg.ScheduleMinute < 0 || cfg.ScheduleMinute > 59 {
		return nil, errors.New("SCHEDULE_MINUTE must be between 0 and 59")
	}
	if cfg.ScheduleStartHour < 0 || cfg.ScheduleStartHour > 23 ||
		cfg.ScheduleEndHour < 0 || cfg.ScheduleEndHour > 23 ||
		cfg.ScheduleStartHour > cfg.ScheduleEndHour {
		return nil, errors.New("SCHEDULE_START_HOUR and SCHEDULE_END_HOUR must form a valid hour window")
	}
	if cfg.MatchRadiusKm <= 0 {
		return nil, errors.New("MATCH_RADIUS_KM must be positive")
	}
	if cfg.SMTPHost != "" && cfg.SMTPFrom == "" {
		return nil, errors.New("SMTP_HOST is set but SMTP_FROM is not")
	}

	return cfg, nil
}

// NotificationsEnabled reports whether the mailer should be wired at startup.
func (c *Config) NotificationsEnabled() bool {
	return c.SMTPHost != ""
}

// parseSources parses a comma-separated list of name=url pairs.
func parseSources(raw string) ([]domain.Source, error) {
	var sources []domain.Source
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, url, ok := strings.Cut(pair, "=")
		if !ok || name == "" || url == "" {
			return nil, fmt.Errorf("invalid SOURCES entry %q, want name=url", pair)
		}
		sources = append(sources, domain.Source{Name: strings.TrimSpace(name), URL: strings.TrimSpace(url)})
	}
	return sources, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseDuration(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(envOrDefault(key, fallback))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return d, nil
}

func parseInt(key string, fallback int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func parseFloat(key string, fallback float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

func parseCacheSize() int {
	if s := os.Getenv("GEOCODE_CACHE_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 1000
}
