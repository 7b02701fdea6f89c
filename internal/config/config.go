package config

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	yaml "go.yaml.in/yaml/v3"
)

const (
	// SettingsFile holds the defaults shipped with the deployment.
	SettingsFile = "settings.yaml"
	// UserSettingsFile optionally overrides top-level keys of SettingsFile.
	UserSettingsFile = "settings.user.yaml"

	SinkInflux   = "influx"
	SinkPostgres = "postgres"
)

type Config struct {
	LogDir           string  `yaml:"log_dir" validate:"required"`
	DataDir          string  `yaml:"data_dir" validate:"required"`
	ModelIDsPath     string  `yaml:"model_ids_path" validate:"required"`
	HourlyFieldsPath string  `yaml:"hourly_fields_path" validate:"required"`
	Latitude         float64 `yaml:"latitude" validate:"gte=-90,lte=90"`
	Longitude        float64 `yaml:"longitude" validate:"gte=-180,lte=180"`
	TimeSeriesSink   string  `yaml:"timeseries_sink" validate:"oneof=influx postgres"`

	OpenMeteo   OpenMeteoConfig   `yaml:"open_meteo"`
	PegelOnline PegelOnlineConfig `yaml:"pegel_online"`
	Influx      InfluxConfig      `yaml:"influx"`
	Postgres    PostgresConfig    `yaml:"postgres"`
	Discord     DiscordConfig     `yaml:"discord"`
	Telegram    TelegramConfig    `yaml:"telegram"`
	Status      StatusConfig      `yaml:"status"`
	Metrics     MetricsConfig     `yaml:"metrics"`
}

type OpenMeteoConfig struct {
	BaseURL        string `yaml:"base_url" validate:"required,url"`
	ForecastDays   int    `yaml:"forecast_days" validate:"min=1,max=16"`
	Timeout        int    `yaml:"timeout_seconds" validate:"min=1"`
	RequestsPerMin int    `yaml:"requests_per_minute" validate:"min=1"`
	MaxRetries     int    `yaml:"max_retries" validate:"min=0,max=10"`
}

type PegelOnlineConfig struct {
	BaseURL string `yaml:"base_url" validate:"required,url"`
	Period  string `yaml:"period" validate:"required"`
	Timeout int    `yaml:"timeout_seconds" validate:"min=1"`
}

type InfluxConfig struct {
	URL             string `yaml:"url"`
	Token           string `yaml:"token"`
	Org             string `yaml:"org"`
	Bucket          string `yaml:"bucket"`
	BenchmarkBucket string `yaml:"benchmark_bucket"`
	BatchSize       int    `yaml:"batch_size" validate:"min=1"`
	TimeoutSeconds  int    `yaml:"timeout_seconds" validate:"min=1"`
}

type PostgresConfig struct {
	URL   string `yaml:"url"`
	Table string `yaml:"table" validate:"required"`
}

type DiscordConfig struct {
	WebhookURL string `yaml:"webhook_url"`
}

type TelegramConfig struct {
	BotToken string `yaml:"bot_token"`
	ChatID   int64  `yaml:"chat_id"`
}

type StatusConfig struct {
	Port    string `yaml:"port" validate:"required"`
	LogPath string `yaml:"log_path"`
}

type MetricsConfig struct {
	Port string `yaml:"port"`
}

// Defaults returns the settings used when no settings file overrides them.
func Defaults() *Config {
	return &Config{
		LogDir:           "./logs",
		DataDir:          "./csv-data",
		ModelIDsPath:     "./config/model_ids.csv",
		HourlyFieldsPath: "./config/hourly_fields.csv",
		Latitude:         47.6952,
		Longitude:        9.1307,
		TimeSeriesSink:   SinkInflux,
		OpenMeteo: OpenMeteoConfig{
			BaseURL:        "https://api.open-meteo.com/v1/forecast",
			ForecastDays:   16,
			Timeout:        30,
			RequestsPerMin: 120,
			MaxRetries:     5,
		},
		PegelOnline: PegelOnlineConfig{
			BaseURL: "https://www.pegelonline.wsv.de/webservices/rest-api/v2",
			Period:  "P1D",
			Timeout: 30,
		},
		Influx: InfluxConfig{
			URL:            "http://localhost:8086",
			Org:            "FogCast",
			Bucket:         "WeatherForecast",
			BatchSize:      5000,
			TimeoutSeconds: 300,
		},
		Postgres: PostgresConfig{
			Table: "forecast_points",
		},
		Status: StatusConfig{
			Port: "5000",
		},
	}
}

// Dir is the settings directory: FOGCAST_SETTINGS_DIR or the working directory.
func Dir() string {
	return getEnv("FOGCAST_SETTINGS_DIR", ".")
}

// Load reads settings.yaml (+ settings.user.yaml) from dir, applies environment overrides and validates the result.
// A missing settings.yaml is not an error: the defaults and the environment are used instead.
func Load(dir string) (*Config, error) {
	// .env is optional, same as in local development setups
	_ = godotenv.Load(filepath.Join(dir, ".env"))

	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve settings directory: %w", err)
	}

	merged, err := readSettings(root)
	if err != nil {
		return nil, err
	}

	cfg := Defaults()
	if len(merged) > 0 {
		raw, err := yaml.Marshal(merged)
		if err != nil {
			return nil, fmt.Errorf("failed to re-encode settings: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode settings: %w", err)
		}
	}

	applyEnv(cfg)
	cfg.resolvePaths(root)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// readSettings loads the base file and overlays the user file key by key at the top level.
func readSettings(root string) (map[string]interface{}, error) {
	merged := map[string]interface{}{}

	base, err := readYAML(filepath.Join(root, SettingsFile))
	if err != nil {
		return nil, err
	}
	for k, v := range base {
		merged[k] = v
	}

	user, err := readYAML(filepath.Join(root, UserSettingsFile))
	if err != nil {
		return nil, err
	}
	for k, v := range user {
		merged[k] = v
	}

	return merged, nil
}

func readYAML(path string) (map[string]interface{}, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var out map[string]interface{}
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return out, nil
}

func applyEnv(cfg *Config) {
	cfg.LogDir = getEnv("FOGCAST_LOG_DIR", cfg.LogDir)
	cfg.DataDir = getEnv("FOGCAST_DATA_DIR", cfg.DataDir)
	cfg.Latitude = getEnvAsFloat("FOGCAST_LATITUDE", cfg.Latitude)
	cfg.Longitude = getEnvAsFloat("FOGCAST_LONGITUDE", cfg.Longitude)
	cfg.TimeSeriesSink = getEnv("TIMESERIES_SINK", cfg.TimeSeriesSink)

	cfg.Influx.URL = getEnv("INFLUX_URL", cfg.Influx.URL)
	cfg.Influx.Token = getEnv("INFLUX_TOKEN", cfg.Influx.Token)
	cfg.Influx.Org = getEnv("INFLUX_ORG", cfg.Influx.Org)
	cfg.Influx.Bucket = getEnv("INFLUX_BUCKET", cfg.Influx.Bucket)

	cfg.Postgres.URL = getEnv("DATABASE_URL", cfg.Postgres.URL)

	cfg.Discord.WebhookURL = getEnv("DISCORD_WEBHOOK_URL", cfg.Discord.WebhookURL)
	cfg.Telegram.BotToken = getEnv("TELEGRAM_BOT_TOKEN", cfg.Telegram.BotToken)
	cfg.Telegram.ChatID = int64(getEnvAsInt("TELEGRAM_CHAT_ID", int(cfg.Telegram.ChatID)))

	cfg.Status.Port = getEnv("PORT", cfg.Status.Port)
	cfg.Status.LogPath = getEnv("LOG_PATH", cfg.Status.LogPath)
	cfg.Metrics.Port = getEnv("METRICS_PORT", cfg.Metrics.Port)
}

// resolvePaths makes *_dir and *_path settings relative to the settings directory.
func (c *Config) resolvePaths(root string) {
	for _, p := range []*string{&c.LogDir, &c.DataDir, &c.ModelIDsPath, &c.HourlyFieldsPath, &c.Status.LogPath} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(root, *p)
		}
	}
}

// Validate checks struct constraints and cross-field requirements.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.TimeSeriesSink == SinkPostgres && c.Postgres.URL == "" {
		return fmt.Errorf("invalid configuration: postgres sink selected but no database URL set")
	}
	return nil
}

// RunLogPath is the log file the status surface tails.
func (c *Config) RunLogPath() string {
	if c.Status.LogPath != "" {
		return c.Status.LogPath
	}
	return filepath.Join(c.LogDir, "cron.log")
}

func (c *Config) OpenMeteoTimeout() time.Duration {
	return time.Duration(c.OpenMeteo.Timeout) * time.Second
}

func (c *Config) PegelOnlineTimeout() time.Duration {
	return time.Duration(c.PegelOnline.Timeout) * time.Second
}

// BenchmarkBucket falls back to the forecast bucket when no dedicated bucket is set.
func (c *Config) BenchmarkBucket() string {
	if c.Influx.BenchmarkBucket != "" {
		return c.Influx.BenchmarkBucket
	}
	return c.Influx.Bucket
}

// ReadColumn returns the values of one named column of a CSV file with a header row.
// Used for model_ids.csv (column "name") and hourly_fields.csv (column "field").
func ReadColumn(path, column string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header of %s: %w", path, err)
	}

	idx := -1
	for i, h := range header {
		if strings.TrimSpace(h) == column {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("column %q not found in %s", column, path)
	}

	var values []string
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		if idx < len(record) {
			if v := strings.TrimSpace(record[idx]); v != "" {
				values = append(values, v)
			}
		}
	}
	return values, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
