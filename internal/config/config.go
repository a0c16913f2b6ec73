package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Windsor WindsorConfig `yaml:"windsor" mapstructure:"windsor"`
	Dataset DatasetConfig `yaml:"dataset" mapstructure:"dataset"`
	Geocode GeocodeConfig `yaml:"geocode" mapstructure:"geocode"`
	Cache   CacheConfig   `yaml:"cache" mapstructure:"cache"`
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Map     MapConfig     `yaml:"map" mapstructure:"map"`
	Capture CaptureConfig `yaml:"capture" mapstructure:"capture"`
	GIF     GIFConfig     `yaml:"gif" mapstructure:"gif"`
	Publish PublishConfig `yaml:"publish" mapstructure:"publish"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// WindsorConfig holds Windsor.ai connectors API settings.
type WindsorConfig struct {
	Key         string   `yaml:"api_key" mapstructure:"api_key"`
	BaseURL     string   `yaml:"base_url" mapstructure:"base_url"`
	Connector   string   `yaml:"connector" mapstructure:"connector"`
	DateFrom    string   `yaml:"date_from" mapstructure:"date_from"`
	DateTo      string   `yaml:"date_to" mapstructure:"date_to"`
	Fields      []string `yaml:"fields" mapstructure:"fields"`
	TimeoutSecs int      `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// DatasetConfig names the dataset columns the map is built from.
type DatasetConfig struct {
	DateColumn     string `yaml:"date_column" mapstructure:"date_column"`
	LocationColumn string `yaml:"location_column" mapstructure:"location_column"`
	ValueColumn    string `yaml:"value_column" mapstructure:"value_column"`
}

// GeocodeConfig configures location lookups.
type GeocodeConfig struct {
	NominatimURL  string  `yaml:"nominatim_url" mapstructure:"nominatim_url"`
	UserAgent     string  `yaml:"user_agent" mapstructure:"user_agent"`
	GoogleKey     string  `yaml:"google_api_key" mapstructure:"google_api_key"`
	RateLimit     float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	OverridesPath string  `yaml:"overrides_path" mapstructure:"overrides_path"`
	TimeoutSecs   int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// CacheConfig configures the geocode cache.
type CacheConfig struct {
	Enabled       bool   `yaml:"enabled" mapstructure:"enabled"`
	TTLDays       int    `yaml:"ttl_days" mapstructure:"ttl_days"`
	RedisAddr     string `yaml:"redis_addr" mapstructure:"redis_addr"`
	RedisPassword string `yaml:"redis_password" mapstructure:"redis_password"`
	RedisDB       int    `yaml:"redis_db" mapstructure:"redis_db"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// MapConfig configures the rendered HTML document.
type MapConfig struct {
	HTMLPath       string  `yaml:"html_path" mapstructure:"html_path"`
	Caption        string  `yaml:"caption" mapstructure:"caption"`
	Normalize      bool    `yaml:"normalize" mapstructure:"normalize"`
	Tiles          string  `yaml:"tiles" mapstructure:"tiles"`
	CenterLat      float64 `yaml:"center_lat" mapstructure:"center_lat"`
	CenterLon      float64 `yaml:"center_lon" mapstructure:"center_lon"`
	Zoom           float64 `yaml:"zoom" mapstructure:"zoom"`
	TransitionTime int     `yaml:"transition_ms" mapstructure:"transition_ms"`
}

// CaptureConfig configures headless browser screenshots.
type CaptureConfig struct {
	Browser         string `yaml:"browser" mapstructure:"browser"`
	Frames          int    `yaml:"frames" mapstructure:"frames"`
	IntervalMS      int    `yaml:"interval_ms" mapstructure:"interval_ms"`
	Width           int    `yaml:"width" mapstructure:"width"`
	Height          int    `yaml:"height" mapstructure:"height"`
	ScratchDir      string `yaml:"scratch_dir" mapstructure:"scratch_dir"`
	WaitNetworkIdle bool   `yaml:"wait_network_idle" mapstructure:"wait_network_idle"`
	TimeoutSecs     int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	KeepFrames      bool   `yaml:"keep_frames" mapstructure:"keep_frames"`
}

// GIFConfig configures animated image encoding.
type GIFConfig struct {
	Path        string `yaml:"path" mapstructure:"path"`
	FrameMS     int    `yaml:"frame_ms" mapstructure:"frame_ms"`
	LoopCount   int    `yaml:"loop_count" mapstructure:"loop_count"`
	Width       int    `yaml:"width" mapstructure:"width"`
	Label       string `yaml:"label" mapstructure:"label"`
	Concurrency int    `yaml:"concurrency" mapstructure:"concurrency"`
}

// PublishConfig configures optional S3 uploads of the rendered artifacts.
type PublishConfig struct {
	Bucket string `yaml:"bucket" mapstructure:"bucket"`
	Prefix string `yaml:"prefix" mapstructure:"prefix"`
	Region string `yaml:"region" mapstructure:"region"`
}

// ServerConfig configures the preview server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from .env, config file and environment.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("CLICKMAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "clickmap.db")
	v.SetDefault("store.max_conns", 4)
	v.SetDefault("store.min_conns", 1)
	v.SetDefault("server.port", 8080)
	v.SetDefault("windsor.base_url", "https://connectors.windsor.ai")
	v.SetDefault("windsor.connector", "google_ads")
	v.SetDefault("windsor.date_from", "2022-10-01")
	v.SetDefault("windsor.date_to", "2022-11-01")
	v.SetDefault("windsor.fields", []string{"date", "country", "source", "campaign", "clicks"})
	v.SetDefault("windsor.timeout_secs", 60)
	v.SetDefault("dataset.date_column", "date")
	v.SetDefault("dataset.location_column", "country")
	v.SetDefault("dataset.value_column", "clicks")
	v.SetDefault("geocode.nominatim_url", "https://nominatim.openstreetmap.org")
	v.SetDefault("geocode.user_agent", "Worldmap for Google Ads Clicks")
	v.SetDefault("geocode.rate_limit", 1.0)
	v.SetDefault("geocode.timeout_secs", 30)
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.ttl_days", 90)
	v.SetDefault("map.html_path", "world_map.html")
	v.SetDefault("map.caption", "Google Ads Clicks By Country (October 2022)")
	v.SetDefault("map.normalize", true)
	v.SetDefault("map.tiles", "https://{s}.basemaps.cartocdn.com/dark_nolabels/{z}/{x}/{y}{r}.png")
	v.SetDefault("map.center_lat", 0.0)
	v.SetDefault("map.center_lon", 30.0)
	v.SetDefault("map.zoom", 1.5)
	v.SetDefault("map.transition_ms", 1000)
	v.SetDefault("capture.browser", "Chrome")
	v.SetDefault("capture.frames", 30)
	v.SetDefault("capture.interval_ms", 1000)
	v.SetDefault("capture.width", 1024)
	v.SetDefault("capture.height", 768)
	v.SetDefault("capture.scratch_dir", "tmp_dir")
	v.SetDefault("capture.wait_network_idle", true)
	v.SetDefault("capture.timeout_secs", 60)
	v.SetDefault("capture.keep_frames", false)
	v.SetDefault("gif.path", "world_map.gif")
	v.SetDefault("gif.frame_ms", 500)
	v.SetDefault("gif.loop_count", 100)
	v.SetDefault("gif.concurrency", 4)
	v.SetDefault("publish.prefix", "maps/")
	v.SetDefault("publish.region", "us-east-1")

	// Keys without a default still need registering so env overrides unmarshal.
	for _, key := range []string{
		"windsor.api_key",
		"geocode.google_api_key",
		"geocode.overrides_path",
		"cache.redis_addr",
		"cache.redis_password",
		"gif.label",
		"publish.bucket",
	} {
		v.SetDefault(key, "")
	}
	v.SetDefault("cache.redis_db", 0)
	v.SetDefault("gif.width", 0)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings required by a command mode.
// Modes: run, fetch, render, gif, serve.
func (c *Config) Validate(mode string) error {
	var errs []error

	switch mode {
	case "run":
		errs = append(errs, c.validateFetch()...)
		errs = append(errs, c.validateRender()...)
		errs = append(errs, c.validateCapture()...)
	case "fetch":
		errs = append(errs, c.validateFetch()...)
	case "render":
		errs = append(errs, c.validateRender()...)
	case "gif":
		errs = append(errs, c.validateCapture()...)
	case "serve":
		if c.Server.Port <= 0 {
			errs = append(errs, errors.New("server.port must be > 0"))
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Errorf("store.driver must be sqlite or postgres, got %q", c.Store.Driver))
	}

	if len(errs) > 0 {
		return eris.Wrap(errors.Join(errs...), "config: validate "+mode)
	}
	return nil
}

func (c *Config) validateFetch() []error {
	var errs []error
	if c.Windsor.Key == "" {
		errs = append(errs, errors.New("windsor.api_key is required"))
	}
	if c.Windsor.Connector == "" {
		errs = append(errs, errors.New("windsor.connector is required"))
	}
	if len(c.Windsor.Fields) == 0 {
		errs = append(errs, errors.New("windsor.fields must not be empty"))
	}
	return errs
}

func (c *Config) validateRender() []error {
	var errs []error
	if c.Map.HTMLPath == "" {
		errs = append(errs, errors.New("map.html_path is required"))
	}
	if c.Dataset.ValueColumn == "" || c.Dataset.DateColumn == "" || c.Dataset.LocationColumn == "" {
		errs = append(errs, errors.New("dataset columns must be set"))
	}
	return errs
}

func (c *Config) validateCapture() []error {
	var errs []error
	if c.Capture.Frames < 1 {
		errs = append(errs, errors.New("capture.frames must be >= 1"))
	}
	if c.Capture.IntervalMS < 0 {
		errs = append(errs, errors.New("capture.interval_ms must be >= 0"))
	}
	if c.Capture.Width <= 0 || c.Capture.Height <= 0 {
		errs = append(errs, errors.New("capture.width and capture.height must be > 0"))
	}
	if c.GIF.Path == "" {
		errs = append(errs, errors.New("gif.path is required"))
	}
	if c.GIF.FrameMS < 10 {
		errs = append(errs, errors.New("gif.frame_ms must be >= 10"))
	}
	if c.GIF.LoopCount < -1 {
		errs = append(errs, errors.New("gif.loop_count must be >= -1"))
	}
	return errs
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
