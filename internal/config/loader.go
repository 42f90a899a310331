package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// ConfigError is a diagnostic error type returned by the Load* functions.
// It wraps a ConfigErrorType and an underlying error message.
type ConfigError struct {
	Type    ConfigErrorType
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// ssmParamSuffix is the environment variable suffix used to identify SSM
// parameter pointer variables.
const ssmParamSuffix = "_SSM_PARAM"

// localEnv is the APP_ENV value that bypasses SSM resolution.
const localEnv = "local"

// envLookup is a function type for looking up environment variables.
// It matches the signature of os.LookupEnv and allows injection for testing.
type envLookup func(key string) (string, bool)

// envSet is a function type for setting environment variables.
// It matches the signature of os.Setenv and allows injection for testing.
type envSet func(key, value string) error

// environ is a function type for listing all environment variables.
// It matches the signature of os.Environ and allows injection for testing.
type environ func() []string

// loaderDeps holds the injectable dependencies for the loader, enabling
// testing without mutating global state.
type loaderDeps struct {
	lookupEnv envLookup
	setEnv    envSet
	environ   environ
}

// defaultDeps returns the standard OS-backed dependencies.
func defaultDeps() loaderDeps {
	return loaderDeps{
		lookupEnv: os.LookupEnv,
		setEnv:    os.Setenv,
		environ:   os.Environ,
	}
}

// LoadGatewayConfig loads and validates the gateway configuration.
func LoadGatewayConfig(provider SecretProvider) (*GatewayConfig, error) {
	var cfg GatewayConfig
	if err := load(provider, defaultDeps(), &cfg, &cfg.CommonConfig); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadAuthServiceConfig loads and validates the auth service configuration.
func LoadAuthServiceConfig(provider SecretProvider) (*AuthServiceConfig, error) {
	var cfg AuthServiceConfig
	if err := load(provider, defaultDeps(), &cfg, &cfg.CommonConfig); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadNotesConfig loads and validates the notes service configuration.
func LoadNotesConfig(provider SecretProvider) (*NotesConfig, error) {
	var cfg NotesConfig
	if err := load(provider, defaultDeps(), &cfg, &cfg.CommonConfig); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFilesConfig loads and validates the files service configuration.
func LoadFilesConfig(provider SecretProvider) (*FilesConfig, error) {
	var cfg FilesConfig
	if err := load(provider, defaultDeps(), &cfg, &cfg.CommonConfig); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadNotificationsConfig loads and validates the notifications service
// configuration.
func LoadNotificationsConfig(provider SecretProvider) (*NotificationsConfig, error) {
	var cfg NotificationsConfig
	if err := load(provider, defaultDeps(), &cfg, &cfg.CommonConfig); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadRelayLambdaConfig loads and validates the relay Lambda configuration.
func LoadRelayLambdaConfig(provider SecretProvider) (*RelayLambdaConfig, error) {
	var cfg RelayLambdaConfig
	if err := load(provider, defaultDeps(), &cfg, &cfg.CommonConfig); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// load runs the loading lifecycle against target, a pointer to one of the
// service config structs. common must point at the CommonConfig embedded in
// target.
func load(provider SecretProvider, deps loaderDeps, target any, common *CommonConfig) error {
	// Step 1: Enforce UTC timezone to prevent drift bugs.
	time.Local = time.UTC

	// Step 2: Load .env file (non-fatal if absent). godotenv does NOT
	// override existing environment variables.
	_ = godotenv.Load()

	// Step 3: Determine the environment.
	appEnv, _ := deps.lookupEnv("APP_ENV")

	// Step 4: Scan for _SSM_PARAM variables and resolve if non-local.
	if appEnv != localEnv && appEnv != "" {
		if err := resolveSSMParams(provider, deps); err != nil {
			return err
		}
	}

	// Step 5: Process envconfig tags. The empty prefix means envconfig uses
	// the exact tag values.
	if err := envconfig.Process("", target); err != nil {
		return &ConfigError{
			Type:    ErrParsing,
			Message: "failed to process environment configuration",
			Err:     err,
		}
	}

	// Step 6: Populate build metadata from linker-injected variables.
	common.Build = NewBuildInfo()

	// Step 7: Validate the populated struct.
	return validate(target)
}

// validate reports missing required values as ErrMissingEnv and every other
// rule violation as ErrValidation.
func validate(target any) error {
	err := validator.New().Struct(target)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		var missing []string
		for _, fe := range verrs {
			if strings.HasPrefix(fe.Tag(), "required") {
				missing = append(missing, fe.Namespace())
			}
		}
		if len(missing) == len(verrs) {
			return &ConfigError{
				Type:    ErrMissingEnv,
				Message: fmt.Sprintf("required configuration missing: %s", strings.Join(missing, ", ")),
				Err:     err,
			}
		}
	}

	return &ConfigError{
		Type:    ErrValidation,
		Message: "configuration validation failed",
		Err:     err,
	}
}

// resolveSSMParams scans the environment for variables ending in _SSM_PARAM,
// fetches the corresponding secret values via the SecretProvider, and injects
// them back into the environment so that envconfig can process them.
//
// DB_URL_SSM_PARAM=/prod/cloudnotes/db/url resolves into DB_URL. If the target variable is already set in the environment (via direct env var
// or .env file), the SSM resolution is skipped for that variable. This respects
// the priority chain: OS Environment > Dotenv > SSM.
func resolveSSMParams(provider SecretProvider, deps loaderDeps) error {
	// Collect all _SSM_PARAM variables and their target env var names.
	type ssmBinding struct {
		targetEnvVar string
		ssmPath      string
	}

	var bindings []ssmBinding
	// ssmPathToTarget maps SSM path -> target env var for reverse lookup
	// after batch retrieval.
	ssmPathToTarget := make(map[string]string)

	envVars := deps.environ()
	for _, envEntry := range envVars {
		// Each entry is "KEY=VALUE"
		eqIdx := strings.IndexByte(envEntry, '=')
		if eqIdx < 0 {
			continue
		}
		key := envEntry[:eqIdx]

		if !strings.HasSuffix(key, ssmParamSuffix) {
			continue
		}

		// Derive the target env var name by stripping the _SSM_PARAM suffix.
		targetEnvVar := strings.TrimSuffix(key, ssmParamSuffix)

		// Skip if the target variable is already set (priority: Env > SSM).
		if _, exists := deps.lookupEnv(targetEnvVar); exists {
			continue
		}

		// Extract the SSM path from the variable value.
		ssmPath := envEntry[eqIdx+1:]
		if ssmPath == "" {
			continue // Skip empty SSM paths
		}

		bindings = append(bindings, ssmBinding{
			targetEnvVar: targetEnvVar,
			ssmPath:      ssmPath,
		})
		ssmPathToTarget[ssmPath] = targetEnvVar
	}

	// No SSM parameters to resolve.
	if len(bindings) == 0 {
		return nil
	}

	// A provider is required if there are SSM parameters to resolve.
	if provider == nil {
		targetVars := make([]string, 0, len(bindings))
		for _, b := range bindings {
			targetVars = append(targetVars, b.targetEnvVar)
		}
		return &ConfigError{
			Type:    ErrSSMResolution,
			Message: fmt.Sprintf("SecretProvider is required for non-local environments (need to resolve: %s)", strings.Join(targetVars, ", ")),
		}
	}

	// Collect SSM paths for batch retrieval.
	ssmPaths := make([]string, 0, len(bindings))
	for _, b := range bindings {
		ssmPaths = append(ssmPaths, b.ssmPath)
	}

	// Fetch all SSM values in a single batch call.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	resolved, err := provider.GetParametersBatch(ctx, ssmPaths)
	if err != nil {
		return &ConfigError{
			Type:    ErrSSMResolution,
			Message: fmt.Sprintf("failed to resolve %d SSM parameters", len(ssmPaths)),
			Err:     err,
		}
	}

	// Inject resolved values into the environment.
	for ssmPath, value := range resolved {
		targetEnvVar, ok := ssmPathToTarget[ssmPath]
		if !ok {
			continue
		}
		if err := deps.setEnv(targetEnvVar, value); err != nil {
			return &ConfigError{
				Type:    ErrSSMResolution,
				Message: fmt.Sprintf("failed to set resolved value for %s", targetEnvVar),
				Err:     err,
			}
		}
	}

	// Check for any SSM paths that were not resolved.
	var missing []string
	for _, b := range bindings {
		if _, ok := resolved[b.ssmPath]; !ok {
			missing = append(missing, b.targetEnvVar)
		}
	}
	if len(missing) > 0 {
		return &ConfigError{
			Type:    ErrSSMResolution,
			Message: fmt.Sprintf("SSM parameters not found for: %s", strings.Join(missing, ", ")),
		}
	}

	return nil
}
