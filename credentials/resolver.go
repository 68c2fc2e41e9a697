package credentials

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// Cloud platform type constants.
const (
	platformAWS   = "aws"
	platformGCP   = "gcp"
	platformAzure = "azure"
)

// DefaultEnvVars maps backend types to the environment variables checked
// when no explicit key source is configured.
var DefaultEnvVars = map[string][]string{
	"openai":     {"OPENAI_API_KEY", "OPENAI_TOKEN"},
	"elevenlabs": {"ELEVENLABS_API_KEY", "XI_API_KEY"},
	"cartesia":   {"CARTESIA_API_KEY"},
	"google":     {"GOOGLE_API_KEY"},
	"azure":      {"AZURE_SPEECH_KEY"},
}

// BackendHeaderConfig maps backend types to their API key header scheme.
var BackendHeaderConfig = map[string]struct {
	HeaderName string
	Prefix     string
}{
	"openai":     {HeaderName: "Authorization", Prefix: "Bearer "},
	"elevenlabs": {HeaderName: "xi-api-key", Prefix: ""},
	"cartesia":   {HeaderName: "X-API-Key", Prefix: ""},
	"azure":      {HeaderName: "Ocp-Apim-Subscription-Key", Prefix: ""},
}

// KeySource describes where an API key comes from. At most one field is set.
type KeySource struct {
	// APIKey is an explicit key value.
	APIKey string `yaml:"api_key,omitempty"`

	// File is a path to a file holding the key.
	File string `yaml:"file,omitempty"`

	// EnvVar names an environment variable holding the key.
	EnvVar string `yaml:"env,omitempty"`
}

// CloudConfig selects a cloud SDK credential chain instead of an API key.
type CloudConfig struct {
	// Type is "aws", "gcp", or "azure".
	Type string `yaml:"type"`

	// Region is the cloud region (AWS and GCP).
	Region string `yaml:"region,omitempty"`

	// Service is the AWS service name used in the SigV4 credential scope,
	// e.g. "polly" or "transcribe".
	Service string `yaml:"service,omitempty"`

	// RoleARN, when set for AWS, assumes the role via STS.
	RoleARN string `yaml:"role_arn,omitempty"`

	// Project is the GCP project ID.
	Project string `yaml:"project,omitempty"`

	// KeyFile is a GCP service account key file.
	KeyFile string `yaml:"key_file,omitempty"`

	// Endpoint is the Azure resource endpoint.
	Endpoint string `yaml:"endpoint,omitempty"`

	// TenantID, ClientID, and ClientSecret configure Azure client secret auth.
	TenantID     string `yaml:"tenant_id,omitempty"`
	ClientID     string `yaml:"client_id,omitempty"`
	ClientSecret string `yaml:"client_secret,omitempty"`
}

// ResolverConfig holds the inputs for credential resolution.
type ResolverConfig struct {
	// BackendType is the backend type (openai, elevenlabs, cartesia, ...).
	BackendType string

	// Key is the explicit key source from configuration, if any.
	Key *KeySource

	// Cloud selects a cloud SDK credential chain (aws, gcp, azure).
	Cloud *CloudConfig

	// ConfigDir is the base directory for resolving relative key file paths.
	ConfigDir string
}

// Resolve resolves a credential according to the chain:
// 1. explicit api_key value
// 2. key file
// 3. named environment variable
// 4. default environment variables for the backend type
//
// A cloud configuration takes precedence over the key chain and returns
// a credential backed by the respective SDK's default credential chain.
func Resolve(ctx context.Context, cfg ResolverConfig) (Credential, error) {
	if cfg.Cloud != nil && cfg.Cloud.Type != "" {
		return resolveCloudCredential(ctx, cfg)
	}
	return resolveAPIKeyCredential(cfg)
}

func resolveCloudCredential(ctx context.Context, cfg ResolverConfig) (Credential, error) {
	cloud := cfg.Cloud
	switch cloud.Type {
	case platformAWS:
		if cloud.RoleARN != "" {
			return NewAWSCredentialWithRole(ctx, cloud.Region, cloud.Service, cloud.RoleARN)
		}
		return NewAWSCredential(ctx, cloud.Region, cloud.Service)
	case platformGCP:
		if cloud.KeyFile != "" {
			return NewGCPCredentialWithServiceAccount(ctx, cloud.Project, cloud.Region, cloud.KeyFile)
		}
		return NewGCPCredential(ctx, cloud.Project, cloud.Region)
	case platformAzure:
		if cloud.ClientSecret != "" {
			return NewAzureCredentialWithClientSecret(ctx, cloud.Endpoint, cloud.TenantID, cloud.ClientID, cloud.ClientSecret)
		}
		return NewAzureCredential(ctx, cloud.Endpoint)
	default:
		return nil, fmt.Errorf("unknown cloud credential type: %q", cloud.Type)
	}
}

func resolveAPIKeyCredential(cfg ResolverConfig) (Credential, error) {
	apiKey, err := findAPIKey(cfg)
	if err != nil {
		return nil, err
	}

	// Local backends may legitimately run without auth.
	if apiKey == "" {
		return &NoOpCredential{}, nil
	}

	return createAPIKeyCredential(apiKey, cfg.BackendType), nil
}

func findAPIKey(cfg ResolverConfig) (string, error) {
	if cfg.Key != nil && cfg.Key.APIKey != "" {
		return cfg.Key.APIKey, nil
	}

	if cfg.Key != nil && cfg.Key.File != "" {
		key, err := readKeyFile(cfg.Key.File, cfg.ConfigDir)
		if err != nil {
			return "", fmt.Errorf("failed to read key file: %w", err)
		}
		return key, nil
	}

	if cfg.Key != nil && cfg.Key.EnvVar != "" {
		key := os.Getenv(cfg.Key.EnvVar)
		if key == "" {
			return "", fmt.Errorf("environment variable %s is not set", cfg.Key.EnvVar)
		}
		return key, nil
	}

	return findDefaultEnvKey(cfg.BackendType), nil
}

func findDefaultEnvKey(backendType string) string {
	defaultVars, ok := DefaultEnvVars[backendType]
	if !ok {
		return ""
	}
	for _, envVar := range defaultVars {
		if key := os.Getenv(envVar); key != "" {
			return key
		}
	}
	return ""
}

func createAPIKeyCredential(apiKey, backendType string) *APIKeyCredential {
	headerCfg, ok := BackendHeaderConfig[backendType]
	if !ok {
		headerCfg = struct {
			HeaderName string
			Prefix     string
		}{HeaderName: "Authorization", Prefix: "Bearer "}
	}

	return NewAPIKeyCredential(apiKey,
		WithHeaderName(headerCfg.HeaderName),
		WithPrefix(headerCfg.Prefix),
	)
}

// readKeyFile reads an API key from a file, resolving relative paths
// against the configuration directory.
func readKeyFile(path, configDir string) (string, error) {
	if !strings.HasPrefix(path, "/") && configDir != "" {
		path = configDir + "/" + path
	}

	//nolint:gosec // G304: file path comes from trusted configuration
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(string(data)), nil
}

// MustResolve resolves a credential and panics on error.
// Use only in initialization code where the error is unrecoverable.
func MustResolve(ctx context.Context, cfg ResolverConfig) Credential {
	cred, err := Resolve(ctx, cfg)
	if err != nil {
		panic(fmt.Sprintf("failed to resolve credentials: %v", err))
	}
	return cred
}
