// Package config loads the process configuration from an optional YAML file,
// an optional .env file and OCRANNOTATE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"

	"github.com/ironsheep/ocr-annotate/internal/annotate"
	"github.com/ironsheep/ocr-annotate/internal/blobstore"
	"github.com/ironsheep/ocr-annotate/internal/ocr"
)

// EnvPrefix prefixes every environment override, e.g. OCRANNOTATE_SERVER_PORT.
const EnvPrefix = "OCRANNOTATE"

// Storage drivers.
const (
	DriverFS    = "fs"
	DriverRedis = "redis"
)

// Config is the full process configuration.
type Config struct {
	Server   ServerConfig          `mapstructure:"server"`
	Storage  StorageConfig         `mapstructure:"storage"`
	Redis    blobstore.RedisConfig `mapstructure:"redis"`
	OCR      ocr.Config            `mapstructure:"ocr"`
	Annotate AnnotateConfig        `mapstructure:"annotate"`
	Log      LogConfig             `mapstructure:"log"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// MaxUpload bounds the multipart memory used per upload, in bytes.
	MaxUpload int64 `mapstructure:"max_upload"`
}

// StorageConfig selects where uploads and results are kept.
type StorageConfig struct {
	Driver string `mapstructure:"driver"`
	Dir    string `mapstructure:"dir"`
}

// AnnotateConfig sets the annotation colors and label size.
type AnnotateConfig struct {
	AccentColor string  `mapstructure:"accent_color"`
	TextColor   string  `mapstructure:"text_color"`
	FontSize    float64 `mapstructure:"font_size"`
}

// LogConfig sets the minimum log level.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Load reads path (a missing file is fine), then the env files (".env" when
// none are given; missing ones are skipped), then OCRANNOTATE_* variables.
// Later sources win. The result is validated.
func Load(path string, envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load env file %s: %w", f, err)
		}
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.mode", d.Server.Mode)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)
	v.SetDefault("server.max_upload", d.Server.MaxUpload)

	v.SetDefault("storage.driver", d.Storage.Driver)
	v.SetDefault("storage.dir", d.Storage.Dir)

	v.SetDefault("redis.addr", d.Redis.Addr)
	v.SetDefault("redis.password", d.Redis.Password)
	v.SetDefault("redis.db", d.Redis.DB)
	v.SetDefault("redis.prefix", d.Redis.Prefix)
	v.SetDefault("redis.ttl", d.Redis.TTL)

	v.SetDefault("ocr.engine", d.OCR.Engine)
	v.SetDefault("ocr.languages", d.OCR.Languages)
	v.SetDefault("ocr.gpu", d.OCR.GPU)
	v.SetDefault("ocr.level", d.OCR.Level)
	v.SetDefault("ocr.min_confidence", d.OCR.MinConfidence)
	v.SetDefault("ocr.tessdata_prefix", d.OCR.TessdataPrefix)
	v.SetDefault("ocr.remote_url", d.OCR.RemoteURL)
	v.SetDefault("ocr.timeout", d.OCR.Timeout)

	v.SetDefault("annotate.accent_color", d.Annotate.AccentColor)
	v.SetDefault("annotate.text_color", d.Annotate.TextColor)
	v.SetDefault("annotate.font_size", d.Annotate.FontSize)

	v.SetDefault("log.level", d.Log.Level)
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         ":5000",
			Mode:         "debug",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
			MaxUpload:    32 << 20,
		},
		Storage: StorageConfig{
			Driver: DriverFS,
			Dir:    "uploads",
		},
		Redis: blobstore.RedisConfig{
			Addr:   "localhost:6379",
			Prefix: "ocr-annotate:",
		},
		OCR: ocr.DefaultConfig(),
		Annotate: AnnotateConfig{
			AccentColor: "#A638F2",
			TextColor:   "#FFFFFF",
			FontSize:    annotate.DefaultFontSize,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return errors.New("config: server.port is required")
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("config: unknown server.mode %q", c.Server.Mode)
	}
	if c.Server.MaxUpload <= 0 {
		return errors.New("config: server.max_upload must be positive")
	}

	switch c.Storage.Driver {
	case DriverFS:
		if c.Storage.Dir == "" {
			return errors.New("config: storage.dir is required for the fs driver")
		}
	case DriverRedis:
		if c.Redis.Addr == "" {
			return errors.New("config: redis.addr is required for the redis driver")
		}
	default:
		return fmt.Errorf("config: unknown storage.driver %q", c.Storage.Driver)
	}

	if err := c.OCR.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if _, err := c.Palette(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.Annotate.FontSize <= 0 {
		return errors.New("config: annotate.font_size must be positive")
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("config: invalid log.level %q", c.Log.Level)
	}
	return nil
}

// Palette parses the configured annotation colors.
func (c *Config) Palette() (annotate.Palette, error) {
	return annotate.ParsePalette(c.Annotate.AccentColor, c.Annotate.TextColor)
}
