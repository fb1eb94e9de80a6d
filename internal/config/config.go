// Package config provides the configuration structure for the tts-job-service.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/book-expert/configurator"
	"github.com/book-expert/logger"
)

// Storage environment variables. They take precedence over the file.
const (
	EnvBucketName      = "S3_BUCKET_NAME"
	EnvAccessKeyID     = "AWS_ACCESS_KEY_ID"
	EnvSecretAccessKey = "AWS_SECRET_ACCESS_KEY"
	EnvRegion          = "AWS_REGION"
	EnvEndpointURL     = "AWS_ENDPOINT_URL"
)

// Defaults applied to empty settings.
const (
	DefaultNATSURL             = "nats://127.0.0.1:4222"
	DefaultJobSubject          = "tts.jobs"
	DefaultResultsBucket       = "TTS_RESULTS"
	DefaultRegion              = "us-east-1"
	DefaultURLTTLSeconds       = 3600
	DefaultSynthesisTimeoutSec = 600
	DefaultAlignmentTimeoutSec = 300
	DefaultListenAddress       = ":8080"
	DefaultFFmpegBinary        = "ffmpeg"
)

var (
	// ErrBucketRequired is returned when no storage bucket is configured.
	ErrBucketRequired = errors.New("storage bucket is required")
	// ErrURLTTLInvalid is returned for a non-positive access URL lifetime.
	ErrURLTTLInvalid = errors.New("storage url_ttl_seconds must be positive")
	// ErrSynthesisURLRequired is returned when the synthesis service URL is missing.
	ErrSynthesisURLRequired = errors.New("synthesis service_url is required")
)

// NATSConfig holds the configuration for NATS.
type NATSConfig struct {
	URL           string `toml:"url"`
	JobSubject    string `toml:"job_subject"`
	ResultsBucket string `toml:"results_bucket"`
}

// StorageConfig holds the S3 bucket settings.
type StorageConfig struct {
	Bucket          string `toml:"bucket"`
	Region          string `toml:"region"`
	AccessKeyID     string `toml:"access_key_id"`
	SecretAccessKey string `toml:"secret_access_key"`
	EndpointURL     string `toml:"endpoint_url"`
	URLTTLSeconds   int    `toml:"url_ttl_seconds"`
	CreateLayout    bool   `toml:"create_layout"`
}

// SynthesisConfig holds the speech synthesis service settings.
type SynthesisConfig struct {
	ServiceURL     string `toml:"service_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// AlignmentConfig holds the transcription service settings. An empty
// ServiceURL disables alignment.
type AlignmentConfig struct {
	ServiceURL     string `toml:"service_url"`
	APIKey         string `toml:"api_key"`
	Model          string `toml:"model"`
	Language       string `toml:"language"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// ReferenceConfig holds the reference-audio conversion settings. References
// that are not decodable WAV are converted with FFmpegBinary when it is found.
type ReferenceConfig struct {
	FFmpegBinary string `toml:"ffmpeg_binary"`
}

// HTTPConfig holds the HTTP surface settings. An empty address disables it.
type HTTPConfig struct {
	ListenAddress string `toml:"listen_address"`
}

// PathsConfig holds the configuration for file paths.
type PathsConfig struct {
	BaseLogsDir string `toml:"base_logs_dir"`
	WorkDir     string `toml:"work_dir"`
}

// Config is the root configuration structure.
type Config struct {
	NATS      NATSConfig      `toml:"nats"`
	Storage   StorageConfig   `toml:"storage"`
	Synthesis SynthesisConfig `toml:"synthesis"`
	Alignment AlignmentConfig `toml:"alignment"`
	Reference ReferenceConfig `toml:"reference"`
	HTTP      HTTPConfig      `toml:"http"`
	Paths     PathsConfig     `toml:"paths"`
}

// Load loads the configuration, applies environment overrides and defaults,
// and validates the result.
func Load(log *logger.Logger) (*Config, error) {
	var cfg Config

	err := configurator.Load(&cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration from configurator: %w", err)
	}

	cfg.ApplyEnv(os.LookupEnv)
	cfg.ApplyDefaults()

	validateErr := cfg.Validate()
	if validateErr != nil {
		return nil, validateErr
	}

	return &cfg, nil
}

// ApplyEnv overrides storage settings with non-empty environment values.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	overrides := []struct {
		name   string
		target *string
	}{
		{EnvBucketName, &c.Storage.Bucket},
		{EnvAccessKeyID, &c.Storage.AccessKeyID},
		{EnvSecretAccessKey, &c.Storage.SecretAccessKey},
		{EnvRegion, &c.Storage.Region},
		{EnvEndpointURL, &c.Storage.EndpointURL},
	}

	for _, override := range overrides {
		value, ok := lookup(override.name)
		if ok && strings.TrimSpace(value) != "" {
			*override.target = strings.TrimSpace(value)
		}
	}
}

// ApplyDefaults fills empty settings with their defaults.
func (c *Config) ApplyDefaults() {
	setDefault(&c.NATS.URL, DefaultNATSURL)
	setDefault(&c.NATS.JobSubject, DefaultJobSubject)
	setDefault(&c.NATS.ResultsBucket, DefaultResultsBucket)
	setDefault(&c.Storage.Region, DefaultRegion)
	setDefault(&c.Reference.FFmpegBinary, DefaultFFmpegBinary)
	setDefault(&c.Paths.BaseLogsDir, os.TempDir())

	if c.Storage.URLTTLSeconds == 0 {
		c.Storage.URLTTLSeconds = DefaultURLTTLSeconds
	}

	if c.Synthesis.TimeoutSeconds == 0 {
		c.Synthesis.TimeoutSeconds = DefaultSynthesisTimeoutSec
	}

	if c.Alignment.TimeoutSeconds == 0 {
		c.Alignment.TimeoutSeconds = DefaultAlignmentTimeoutSec
	}
}

// Validate reports the first setting that prevents the service from starting.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Storage.Bucket) == "" {
		return fmt.Errorf("%w: set storage.bucket or %s", ErrBucketRequired, EnvBucketName)
	}

	if c.Storage.URLTTLSeconds <= 0 {
		return fmt.Errorf("%w: got %d", ErrURLTTLInvalid, c.Storage.URLTTLSeconds)
	}

	if strings.TrimSpace(c.Synthesis.ServiceURL) == "" {
		return ErrSynthesisURLRequired
	}

	return nil
}

// URLTTL returns the access URL lifetime.
func (c *Config) URLTTL() time.Duration {
	return time.Duration(c.Storage.URLTTLSeconds) * time.Second
}

// SynthesisTimeout returns the per-request synthesis timeout.
func (c *Config) SynthesisTimeout() time.Duration {
	return time.Duration(c.Synthesis.TimeoutSeconds) * time.Second
}

// AlignmentTimeout returns the per-request alignment timeout.
func (c *Config) AlignmentTimeout() time.Duration {
	return time.Duration(c.Alignment.TimeoutSeconds) * time.Second
}

// AlignmentEnabled reports whether an alignment service is configured.
func (c *Config) AlignmentEnabled() bool {
	return strings.TrimSpace(c.Alignment.ServiceURL) != ""
}

func setDefault(target *string, value string) {
	if strings.TrimSpace(*target) == "" {
		*target = value
	}
}
