package config

import (
	"fmt"
	"time"
)

type Config struct {
	Env          string
	DiscordToken string

	SoundDir            string
	SoundRecentCount    int
	RequestFile         string
	RequestFileMaxBytes int64

	InactivityTimeout time.Duration
	SweepInterval     time.Duration

	DefaultTTSLanguage         string
	GoogleCloudCredentialsJSON string

	MediaRetryAttempts int
	MediaRetryBackoff  time.Duration
}

func (c *Config) Validate() error {
	for _, req := range c.requiredFieldChecks() {
		if req.value == "" {
			return fmt.Errorf("%s is required", req.name)
		}
	}
	if c.SoundRecentCount <= 0 {
		return fmt.Errorf("SOUNDBOARD_RECENT_COUNT must be positive, got %d", c.SoundRecentCount)
	}
	if c.RequestFileMaxBytes <= 0 {
		return fmt.Errorf("SOUNDBOARD_REQUEST_FILE_MAX_BYTES must be positive, got %d", c.RequestFileMaxBytes)
	}
	if c.InactivityTimeout <= 0 {
		return fmt.Errorf("INACTIVITY_TIMEOUT_MIN must be positive, got %s", c.InactivityTimeout)
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("INACTIVITY_SWEEP_INTERVAL_SEC must be positive, got %s", c.SweepInterval)
	}
	if c.MediaRetryAttempts <= 0 {
		return fmt.Errorf("MEDIA_RETRY_ATTEMPTS must be positive, got %d", c.MediaRetryAttempts)
	}
	if c.MediaRetryBackoff < 0 {
		return fmt.Errorf("MEDIA_RETRY_BACKOFF_SEC must not be negative, got %s", c.MediaRetryBackoff)
	}
	return nil
}

type requiredEnvField struct {
	name  string
	value string
}

func (c *Config) requiredFieldChecks() []requiredEnvField {
	return []requiredEnvField{
		{name: "DISCORD_TOKEN", value: c.DiscordToken},
		{name: "SOUND_DIR", value: c.SoundDir},
		{name: "SOUNDBOARD_REQUEST_FILE", value: c.RequestFile},
		{name: "DEFAULT_TTS_LANGUAGE", value: c.DefaultTTSLanguage},
	}
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}
