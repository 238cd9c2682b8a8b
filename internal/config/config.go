// Package config defines the process configuration for autoshutdown.
// Configuration is loaded once at startup and is immutable thereafter.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File -> Struct Defaults (Lowest)
//
// Any invalid value makes LoadConfig fail and the process exits before the
// scheduler starts.
package config

import (
	"time"

	"autoshutdown/internal/types"
)

// SecretString is an alias for types.SecretString so config consumers do not
// need to import types for it.
type SecretString = types.SecretString

// State backends.
const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
)

// Config is the top-level configuration struct.
type Config struct {
	// System Metadata
	Environment string `envconfig:"APP_ENV" default:"local" validate:"required,oneof=local dev prod"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`
	ServerName  string `envconfig:"SERVER_NAME" default:"default" validate:"required"`

	Scheduler     SchedulerConfig
	State         StateConfig
	HTTP          HTTPConfig
	Console       ConsoleConfig
	Notify        NotifyConfig
	AWS           AWSConfig
	Observability ObservabilityConfig
	Host          HostConfig

	// Build Metadata (Injected via ldflags, not Env)
	Build BuildInfo
}

// SchedulerConfig controls the host loop cadence. The 1s warning is only
// meaningful with a tick of one second or less.
type SchedulerConfig struct {
	TickInterval time.Duration `envconfig:"TICK_INTERVAL" default:"250ms" validate:"gt=0,lte=1s"`
}

// StateConfig selects where the recurring timer is persisted.
type StateConfig struct {
	Backend     string       `envconfig:"STATE_BACKEND" default:"file" validate:"oneof=file postgres"`
	File        string       `envconfig:"STATE_FILE" default:"config/auto-shutdown.yaml" validate:"required_if=Backend file"`
	DatabaseURL SecretString `envconfig:"DATABASE_URL" validate:"required_if=Backend postgres,omitempty,url"`

	// Pool Tuning
	MaxConns       int32         `envconfig:"DB_MAX_CONNS" default:"2" validate:"gt=0"`
	AcquireTimeout time.Duration `envconfig:"DB_ACQUIRE_TIMEOUT" default:"2s"`
}

// HTTPConfig holds the admin API settings.
type HTTPConfig struct {
	Enabled bool   `envconfig:"HTTP_ENABLED" default:"true"`
	Port    string `envconfig:"PORT" default:"8080"`
	// AdminKeyHash is a bcrypt hash of the operator API key.
	AdminKeyHash SecretString `envconfig:"ADMIN_KEY_HASH" validate:"required_if=Enabled true"`
}

// ConsoleConfig enables the interactive operator console on stdin.
type ConsoleConfig struct {
	Enabled bool   `envconfig:"CONSOLE_ENABLED" default:"false"`
	Prompt  string `envconfig:"CONSOLE_PROMPT" default:"autoshutdown> "`
}

// NotifyConfig lists the optional network sinks for shutdown warnings.
type NotifyConfig struct {
	SQSQueueURL    string       `envconfig:"SQS_NOTIFICATIONS" validate:"omitempty,url"`
	WebhookURL     SecretString `envconfig:"WEBHOOK_URL" validate:"omitempty,url"`
	DispatchBuffer int          `envconfig:"DISPATCH_BUFFER" default:"64" validate:"gt=0"`
}

// AWSConfig holds regional configuration for SQS and CloudWatch.
type AWSConfig struct {
	Region string `envconfig:"AWS_REGION" default:"us-east-1"`

	// LocalStack Support (Empty in Prod)
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL" validate:"omitempty,url"`
}

// ObservabilityConfig holds telemetry settings.
type ObservabilityConfig struct {
	MetricsEnabled  bool   `envconfig:"METRICS_ENABLED" default:"false"`
	MetricNamespace string `envconfig:"METRIC_NAMESPACE" default:"AutoShutdown"`
}

// HostConfig describes how the host is stopped when the deadline passes.
type HostConfig struct {
	// StopCommand runs through "sh -c" before the process exits. Empty means
	// the process just exits.
	StopCommand string        `envconfig:"STOP_COMMAND"`
	StopTimeout time.Duration `envconfig:"STOP_TIMEOUT" default:"30s" validate:"gt=0"`
}

// NeedsAWS reports whether any AWS client has to be constructed.
func (c *Config) NeedsAWS() bool {
	return c.Notify.SQSQueueURL != "" || c.Observability.MetricsEnabled
}

// BuildInfo holds build-time metadata injected via ldflags.
// These values are NOT populated from environment variables.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// ConfigErrorType categorizes configuration loading failures to aid debugging.
type ConfigErrorType string

const (
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates a failure when parsing environment variable values
	// into their target types.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
)
