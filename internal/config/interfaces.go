package config

import (
	"context"
	"os"
)

// SecretProvider resolves _SSM_PARAM pointers: SSM Parameter Store in
// deployed environments, plain environment variables locally.
type SecretProvider interface {
	// GetParametersBatch returns key -> plaintext value for every key it
	// could resolve.
	GetParametersBatch(ctx context.Context, keys []string) (map[string]string, error)
}

// NewSecretProvider picks the provider for the current APP_ENV: the SSM
// provider in AWS_REGION for deployed environments, environment variables
// otherwise.
func NewSecretProvider() SecretProvider {
	return newSecretProvider(os.LookupEnv)
}

func newSecretProvider(lookup envLookup) SecretProvider {
	env, _ := lookup("APP_ENV")
	if env == "" || env == localEnv {
		return NewEnvVarProvider()
	}
	region, _ := lookup("AWS_REGION")
	return NewSSMProvider(region)
}
