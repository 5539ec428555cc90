package config

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

type Config struct {
	// WebServer Configuration
	WebServerPort      int           `mapstructure:"WEBSERVER_PORT" validate:"min=1,max=65535"`
	CORSAllowedOrigins []string      `mapstructure:"CORS_ALLOWED_ORIGINS" validate:"min=1,dive,url"`
	RequestBodyLimit   string        `mapstructure:"REQUEST_BODY_LIMIT" validate:"required"`
	ShutdownTimeout    time.Duration `mapstructure:"SHUTDOWN_TIMEOUT" validate:"gt=0"`
	MetricsEnabled     bool          `mapstructure:"METRICS_ENABLED"`
	LogLevel           string        `mapstructure:"LOG_LEVEL" validate:"oneof=debug info warn error"`

	// Extraction
	YtdlpPath        string `mapstructure:"YTDLP_PATH" validate:"required"`
	YtdlpCookiesFile string `mapstructure:"YTDLP_COOKIES_FILE" validate:"omitempty,file"`
	YtdlpAutoUpdate  bool   `mapstructure:"YTDLP_AUTO_UPDATE"`

	// Transcoding and delivery
	FFmpegPath         string        `mapstructure:"FFMPEG_PATH" validate:"required"`
	AudioBitrateKbps   int           `mapstructure:"AUDIO_BITRATE_KBPS" validate:"min=32,max=320"`
	TimestampFilenames bool          `mapstructure:"TIMESTAMP_FILENAMES"`
	StreamTimeout      time.Duration `mapstructure:"STREAM_TIMEOUT" validate:"gte=0"`
}

// use reflect to bind environment variables based on mapstructure tags
func bindEnv(c Config) {
	val := reflect.ValueOf(c)
	typ := val.Type()

	for i := 0; i < val.NumField(); i++ {
		if tag := typ.Field(i).Tag.Get("mapstructure"); tag != "" {
			_ = viper.BindEnv(tag)
		}
	}
}

func setDefaults() {
	viper.SetDefault("WEBSERVER_PORT", 3001)
	viper.SetDefault("CORS_ALLOWED_ORIGINS", []string{"https://theabhiraj.github.io", "http://localhost:3000"})
	viper.SetDefault("REQUEST_BODY_LIMIT", "64K")
	viper.SetDefault("SHUTDOWN_TIMEOUT", 5*time.Second)
	viper.SetDefault("METRICS_ENABLED", true)
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("YTDLP_PATH", "yt-dlp")
	viper.SetDefault("FFMPEG_PATH", "ffmpeg")
	viper.SetDefault("AUDIO_BITRATE_KBPS", 128)
	viper.SetDefault("TIMESTAMP_FILENAMES", true)
	viper.SetDefault("STREAM_TIMEOUT", time.Duration(0))
}

func LoadConfig(ctx context.Context) (*Config, error) {
	bindEnv(Config{})
	viper.AutomaticEnv()
	setDefaults()

	cfg := Config{}
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	slog.InfoContext(ctx, "Loaded configuration",
		"port", cfg.WebServerPort,
		"cors_origins", cfg.CORSAllowedOrigins,
		"ytdlp", cfg.YtdlpPath,
		"cookies", cfg.YtdlpCookiesFile != "",
		"ffmpeg", cfg.FFmpegPath,
		"audio_kbps", cfg.AudioBitrateKbps,
		"stream_timeout", cfg.StreamTimeout,
	)

	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}
