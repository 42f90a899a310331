// Package config defines the per-service configuration structures for the
// cloudnotes services. Configuration is loaded once at process start and is
// immutable thereafter.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File -> AWS SSM Parameter Store (Lowest)
//
// Any missing required value or invalid format is returned as a *ConfigError;
// binaries exit non-zero on it.
package config

import (
	"time"

	"cloudnotes/internal/types"
)

// SecretString is an alias for types.SecretString so that configuration
// credentials are redacted whenever a config struct is logged.
type SecretString = types.SecretString

// CommonConfig is embedded by every service configuration.
type CommonConfig struct {
	Environment string `envconfig:"APP_ENV" default:"local" validate:"required,oneof=local dev staging prod"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	// AWSEndpointURL points every AWS client at LocalStack. Empty in prod.
	AWSEndpointURL string `envconfig:"AWS_ENDPOINT_URL" validate:"omitempty,url"`

	// Build Metadata (Injected via ldflags, not Env)
	Build BuildInfo `ignored:"true"`
}

// GatewayConfig configures the public API gateway.
type GatewayConfig struct {
	CommonConfig

	Port   string `envconfig:"PORT" default:"3000"`
	Region string `envconfig:"AWS_REGION" validate:"required"`

	AuthServiceURL          string `envconfig:"AUTH_SERVICE_URL" default:"http://localhost:3001" validate:"url"`
	NotesServiceURL         string `envconfig:"NOTES_SERVICE_URL" default:"http://localhost:3002" validate:"url"`
	FilesServiceURL         string `envconfig:"FILES_SERVICE_URL" default:"http://localhost:3003" validate:"url"`
	NotificationsServiceURL string `envconfig:"NOTIFICATIONS_SERVICE_URL" default:"http://localhost:3004" validate:"url"`

	// RoutesFile optionally replaces the default route table with a JSON list
	// of rules.
	RoutesFile string `envconfig:"GATEWAY_ROUTES_FILE"`

	CorsAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`

	Upstream UpstreamConfig
}

// UpstreamConfig bounds every call the gateway makes to a backend service.
type UpstreamConfig struct {
	DialTimeout           time.Duration `envconfig:"UPSTREAM_DIAL_TIMEOUT" default:"5s"`
	ResponseHeaderTimeout time.Duration `envconfig:"UPSTREAM_RESPONSE_HEADER_TIMEOUT" default:"30s"`
	VerifyTimeout         time.Duration `envconfig:"IDENTITY_VERIFY_TIMEOUT" default:"5s"`

	// Circuit breaker tuning, one breaker per backend.
	BreakerFailureThreshold uint32        `envconfig:"UPSTREAM_BREAKER_FAILURES" default:"5" validate:"min=1"`
	BreakerOpenTimeout      time.Duration `envconfig:"UPSTREAM_BREAKER_OPEN_TIMEOUT" default:"30s"`
}

// AuthServiceConfig configures the Cognito-backed auth service.
type AuthServiceConfig struct {
	CommonConfig

	Port            string `envconfig:"PORT" default:"3001"`
	Region          string `envconfig:"AWS_REGION" validate:"required"`
	CognitoClientID string `envconfig:"COGNITO_CLIENT_ID" validate:"required"`
}

// NotesConfig configures the notes service.
type NotesConfig struct {
	CommonConfig

	Port     string         `envconfig:"PORT" default:"3002"`
	Database DatabaseConfig

	// QueueURL is optional; note events are skipped when it is unset.
	QueueURL string `envconfig:"SQS_QUEUE_URL" validate:"omitempty,url"`
	Region   string `envconfig:"AWS_REGION" validate:"required_with=QueueURL"`
}

// DatabaseConfig holds database connection and pool tuning parameters.
type DatabaseConfig struct {
	// Resolved from SSM or Env
	URL SecretString `envconfig:"DB_URL" validate:"required"`

	MaxConns        int32         `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns        int32         `envconfig:"DB_MIN_CONNS" default:"1"`
	MaxConnLifetime time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	AcquireTimeout  time.Duration `envconfig:"DB_ACQUIRE_TIMEOUT" default:"2s"`
}

// FilesConfig configures the files service.
type FilesConfig struct {
	CommonConfig

	Port           string `envconfig:"PORT" default:"3003"`
	Region         string `envconfig:"AWS_REGION" validate:"required"`
	Bucket         string `envconfig:"AWS_S3_BUCKET_NAME" validate:"required"`
	MetadataTable  string `envconfig:"DYNAMODB_TABLE_NAME" validate:"required"`
	MaxUploadBytes int64  `envconfig:"MAX_UPLOAD_BYTES" default:"10485760" validate:"min=1"`
}

// NotificationsConfig configures the notifications service: the history API
// plus the queue relay loop running in the same process.
type NotificationsConfig struct {
	CommonConfig

	Port   string `envconfig:"PORT" default:"3004"`
	Region string `envconfig:"AWS_REGION" validate:"required"`

	Fanout FanoutConfig
	Relay  RelayConfig
}

// FanoutConfig names the topic and audit table used by the publisher.
type FanoutConfig struct {
	TopicARN          string `envconfig:"AWS_SNS_TOPIC_ARN" validate:"required"`
	NotificationTable string `envconfig:"DYNAMODB_NOTIFICATIONS_TABLE_NAME" validate:"required"`
	MetricNamespace   string `envconfig:"METRIC_NAMESPACE" default:"CloudNotes"`
	MetricsEnabled    bool   `envconfig:"METRICS_ENABLED" default:"false"`
}

// RelayConfig tunes the SQS long-poll loop.
type RelayConfig struct {
	QueueURL          string        `envconfig:"SQS_QUEUE_URL" validate:"required,url"`
	MaxMessages       int32         `envconfig:"RELAY_MAX_MESSAGES" default:"5" validate:"min=1,max=10"`
	WaitTimeSeconds   int32         `envconfig:"RELAY_WAIT_TIME_SECONDS" default:"20" validate:"min=0,max=20"`
	VisibilityTimeout int32         `envconfig:"RELAY_VISIBILITY_TIMEOUT" default:"60" validate:"min=0"`
	ErrorBackoff      time.Duration `envconfig:"RELAY_ERROR_BACKOFF" default:"1s"`
}

// RelayLambdaConfig configures the Lambda variant of the relay, where SQS
// delivery is handled by the event source mapping.
type RelayLambdaConfig struct {
	CommonConfig

	Region string `envconfig:"AWS_REGION" validate:"required"`
	Fanout FanoutConfig
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
	// ErrMissingEnv indicates a required environment variable was not found.
	ErrMissingEnv ConfigErrorType = "MISSING_ENV"
	// ErrSSMResolution indicates a failure when fetching secrets from AWS SSM.
	ErrSSMResolution ConfigErrorType = "SSM_FAILURE"
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates a failure when parsing environment variable values
	// into their target types.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
)
