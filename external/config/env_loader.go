package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	internalconfig "github.com/seajon16/sassbot/internal/config"
)

type envConfig struct {
	Env                        string `env:"ENV" envDefault:"production"`
	DiscordToken               string `env:"DISCORD_TOKEN,required"`
	SoundDir                   string `env:"SOUND_DIR" envDefault:"sounds"`
	SoundRecentCount           int    `env:"SOUNDBOARD_RECENT_COUNT" envDefault:"20"`
	RequestFile                string `env:"SOUNDBOARD_REQUEST_FILE" envDefault:"sb_requests.txt"`
	RequestFileMaxBytes        int64  `env:"SOUNDBOARD_REQUEST_FILE_MAX_BYTES" envDefault:"10000"`
	InactivityTimeoutMin       int    `env:"INACTIVITY_TIMEOUT_MIN" envDefault:"30"`
	SweepIntervalSec           int    `env:"INACTIVITY_SWEEP_INTERVAL_SEC" envDefault:"60"`
	DefaultTTSLanguage         string `env:"DEFAULT_TTS_LANGUAGE" envDefault:"en-GB"`
	GoogleCloudCredentialsJSON string `env:"GOOGLE_CLOUD_CREDENTIALS_JSON"`
	MediaRetryAttempts         int    `env:"MEDIA_RETRY_ATTEMPTS" envDefault:"3"`
	MediaRetryBackoffSec       int    `env:"MEDIA_RETRY_BACKOFF_SEC" envDefault:"3"`
}

func Load() (*internalconfig.Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, using system environment variables")
	}

	var raw envConfig
	if err := env.Parse(&raw); err != nil {
		return nil, fmt.Errorf("environment variables are invalid or missing: %w", err)
	}

	cfg := &internalconfig.Config{
		Env:                        raw.Env,
		DiscordToken:               raw.DiscordToken,
		SoundDir:                   raw.SoundDir,
		SoundRecentCount:           raw.SoundRecentCount,
		RequestFile:                raw.RequestFile,
		RequestFileMaxBytes:        raw.RequestFileMaxBytes,
		InactivityTimeout:          time.Duration(raw.InactivityTimeoutMin) * time.Minute,
		SweepInterval:              time.Duration(raw.SweepIntervalSec) * time.Second,
		DefaultTTSLanguage:         raw.DefaultTTSLanguage,
		GoogleCloudCredentialsJSON: raw.GoogleCloudCredentialsJSON,
		MediaRetryAttempts:         raw.MediaRetryAttempts,
		MediaRetryBackoff:          time.Duration(raw.MediaRetryBackoffSec) * time.Second,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
