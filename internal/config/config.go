package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/jgoulah/dayboard/internal/calendar"
	"github.com/jgoulah/dayboard/pkg/models"
)

// ErrMissingCredential is returned when a job needs an API credential that is not configured
var ErrMissingCredential = errors.New("missing credential")

// Config holds the application configuration
type Config struct {
	Timezone           string           `yaml:"timezone,omitempty"`        // Reference timezone for calendar dates (default: America/New_York)
	Database           string           `yaml:"database,omitempty"`        // SQLite path or postgres:// DSN
	DefaultLocation    *models.Location `yaml:"default_location,omitempty"` // Used when no user has set a location
	HTTPTimeoutSeconds int              `yaml:"http_timeout_seconds,omitempty"`
	Market             MarketConfig     `yaml:"market,omitempty"`
	Weather            WeatherConfig    `yaml:"weather,omitempty"`
	Biometric          BiometricConfig  `yaml:"biometric,omitempty"`
	Geocode            GeocodeConfig    `yaml:"geocode,omitempty"`
	Server             ServerConfig     `yaml:"server,omitempty"`
	Dashboard          DashboardConfig  `yaml:"dashboard,omitempty"`
	MQTT               MQTTConfig       `yaml:"mqtt,omitempty"`
	HomeAssistant      HAConfig         `yaml:"home_assistant,omitempty"`
}

// Symbol maps an upstream ticker to the symbol name stored and charted
type Symbol struct {
	Ticker string `yaml:"ticker"`
	Symbol string `yaml:"symbol"`
}

// MarketConfig holds the previous-close market API settings
type MarketConfig struct {
	APIKey  string   `yaml:"api_key,omitempty"`
	BaseURL string   `yaml:"base_url,omitempty"`
	Symbols []Symbol `yaml:"symbols,omitempty"`
}

// WeatherConfig holds the forecast API settings
type WeatherConfig struct {
	BaseURL string `yaml:"base_url,omitempty"`
}

// BiometricConfig holds the sleep/readiness API settings
type BiometricConfig struct {
	AccessToken string `yaml:"access_token,omitempty"`
	BaseURL     string `yaml:"base_url,omitempty"`
}

// GeocodeConfig holds the ZIP code lookup settings
type GeocodeConfig struct {
	BaseURL string `yaml:"base_url,omitempty"`
}

// ServerConfig holds the HTTP listener settings
type ServerConfig struct {
	Addr string `yaml:"addr,omitempty"`
}

// DashboardConfig sizes the dashboard windows
type DashboardConfig struct {
	ChartDays   int `yaml:"chart_days,omitempty"`
	HeatmapDays int `yaml:"heatmap_days,omitempty"`
}

// MQTTConfig holds MQTT broker settings for publishing snapshots
type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Broker      string `yaml:"broker"` // host:port
	Username    string `yaml:"username,omitempty"`
	Password    string `yaml:"password,omitempty"`
	TopicPrefix string `yaml:"topic_prefix,omitempty"`
}

// HAConfig holds Home Assistant HTTP API configuration
type HAConfig struct {
	Enabled      bool   `yaml:"enabled"`
	URL          string `yaml:"url"`                     // e.g., "http://homeassistant.local:8123"
	Token        string `yaml:"token"`                   // Long-lived access token
	EntityPrefix string `yaml:"entity_prefix,omitempty"` // e.g., "sensor.dayboard"
}

// Load reads the config file and overlays secrets from the environment.
// A .env file in the working directory is loaded first without overriding
// variables that are already set.
func Load(configPath string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	case os.IsNotExist(err):
		// Run on defaults if the file doesn't exist
	default:
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config to file
func Save(configPath string, cfg *Config) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// DefaultConfigPath returns the default config file path (local directory)
func DefaultConfigPath() string {
	return "config.yaml"
}

func (c *Config) applyEnv() {
	if v := os.Getenv("POLYGON_API_KEY"); v != "" {
		c.Market.APIKey = v
	}
	if v := os.Getenv("OURA_ACCESS_TOKEN"); v != "" {
		c.Biometric.AccessToken = v
	}
	if v := os.Getenv("HA_TOKEN"); v != "" {
		c.HomeAssistant.Token = v
	}
	if v := os.Getenv("MQTT_PASSWORD"); v != "" {
		c.MQTT.Password = v
	}
	if v := os.Getenv("DAYBOARD_DATABASE"); v != "" {
		c.Database = v
	}
}

// Validate checks settings that would otherwise fail at run time
func (c *Config) Validate() error {
	if _, err := calendar.LoadZone(c.Timezone); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	// The upsert gateway does not deduplicate a batch, so symbols must be unique
	seen := make(map[string]bool)
	for _, s := range c.Market.Symbols {
		if s.Ticker == "" || s.Symbol == "" {
			return fmt.Errorf("config: market symbols need both ticker and symbol")
		}
		if seen[s.Symbol] {
			return fmt.Errorf("config: duplicate market symbol %q", s.Symbol)
		}
		seen[s.Symbol] = true
	}
	return nil
}

// Location returns the reference timezone
func (c *Config) Location() *time.Location {
	loc, err := calendar.LoadZone(c.Timezone)
	if err != nil {
		// Validate has already rejected unknown zones
		return time.UTC
	}
	return loc
}

// GetDatabase returns the database path or DSN, defaulting to ./data.db
func (c *Config) GetDatabase() string {
	if c.Database == "" {
		return "data.db"
	}
	return c.Database
}

// GetDefaultLocation returns the fallback weather location (Newton, MA)
func (c *Config) GetDefaultLocation() models.Location {
	if c.DefaultLocation == nil {
		return models.Location{Lat: 42.33, Lon: -71.21}
	}
	return *c.DefaultLocation
}

// GetHTTPTimeout returns the timeout for outbound API calls
func (c *Config) GetHTTPTimeout() time.Duration {
	if c.HTTPTimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.HTTPTimeoutSeconds) * time.Second
}

// GetSymbols returns the tracked market symbols, defaulting to VOO and VXX
func (c *Config) GetSymbols() []Symbol {
	if len(c.Market.Symbols) == 0 {
		return []Symbol{
			{Ticker: "VOO", Symbol: "VOO"},
			{Ticker: "VXX", Symbol: "VXX"},
		}
	}
	return c.Market.Symbols
}

// GetMarketBaseURL returns the market API root
func (c *Config) GetMarketBaseURL() string {
	if c.Market.BaseURL == "" {
		return "https://api.polygon.io"
	}
	return c.Market.BaseURL
}

// GetWeatherBaseURL returns the forecast API root
func (c *Config) GetWeatherBaseURL() string {
	if c.Weather.BaseURL == "" {
		return "https://api.open-meteo.com"
	}
	return c.Weather.BaseURL
}

// GetBiometricBaseURL returns the sleep/readiness API collection root
func (c *Config) GetBiometricBaseURL() string {
	if c.Biometric.BaseURL == "" {
		return "https://api.ouraring.com/v2/usercollection"
	}
	return c.Biometric.BaseURL
}

// GetGeocodeBaseURL returns the ZIP lookup API root
func (c *Config) GetGeocodeBaseURL() string {
	if c.Geocode.BaseURL == "" {
		return "https://api.zippopotam.us"
	}
	return c.Geocode.BaseURL
}

// GetServerAddr returns the HTTP listen address
func (c *Config) GetServerAddr() string {
	if c.Server.Addr == "" {
		return ":8080"
	}
	return c.Server.Addr
}

// GetChartDays returns the trailing window for dashboard charts
func (c *Config) GetChartDays() int {
	if c.Dashboard.ChartDays <= 0 {
		return 30
	}
	return c.Dashboard.ChartDays
}

// GetHeatmapDays returns the trailing window for activity heatmaps
func (c *Config) GetHeatmapDays() int {
	if c.Dashboard.HeatmapDays <= 0 {
		return 28
	}
	return c.Dashboard.HeatmapDays
}

// MarketAPIKey returns the market API key or ErrMissingCredential
func (c *Config) MarketAPIKey() (string, error) {
	if c.Market.APIKey == "" {
		return "", fmt.Errorf("market api key: %w (set POLYGON_API_KEY)", ErrMissingCredential)
	}
	return c.Market.APIKey, nil
}

// BiometricToken returns the biometric API token or ErrMissingCredential
func (c *Config) BiometricToken() (string, error) {
	if c.Biometric.AccessToken == "" {
		return "", fmt.Errorf("biometric access token: %w (set OURA_ACCESS_TOKEN)", ErrMissingCredential)
	}
	return c.Biometric.AccessToken, nil
}
