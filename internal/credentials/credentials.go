// Package credentials resolves provider API keys from the environment.
//
// Keys come from environment variables, optionally seeded from a .env file.
// Keys are never read from documents or source files, and are never logged.
package credentials

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/joho/godotenv"
)

// ErrMissingKey indicates that no API key is set for a provider.
var ErrMissingKey = errors.New("credentials: missing API key")

// envVars maps a provider kind to the environment variables consulted, in
// priority order.
var envVars = map[string][]string{
	"openai":    {"OPENAI_API_KEY"},
	"anthropic": {"ANTHROPIC_API_KEY"},
	"deepseek":  {"DEEPSEEK_API_KEY"},
	"glm":       {"GLM_API_KEY", "ZHIPU_API_KEY"},
	"google":    {"GEMINI_API_KEY", "GOOGLE_API_KEY"},
}

// Load seeds the process environment from a .env file if one exists at path.
// Existing environment variables win over file values. A missing file is not
// an error; any other read failure is.
func Load(path string) error {
	if path == "" {
		path = ".env"
	}
	err := godotenv.Load(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("credentials: load %s: %w", path, err)
	}
	return nil
}

// KeyFor returns the API key for a provider kind.
// The mock provider needs no key and always returns "".
func KeyFor(kind string) (string, error) {
	if kind == "mock" {
		return "", nil
	}

	names, ok := envVars[kind]
	if !ok {
		return "", fmt.Errorf("credentials: unknown provider kind %q", kind)
	}

	for _, name := range names {
		if v := os.Getenv(name); v != "" {
			return v, nil
		}
	}
	return "", fmt.Errorf("%w for %s (set %s)", ErrMissingKey, kind, names[0])
}

// ProviderStatus reports whether a key is configured for one provider kind.
type ProviderStatus struct {
	Kind       string
	EnvVar     string
	Configured bool
}

// Status reports key availability for every known provider kind, sorted by
// kind. Key values are never included.
func Status() []ProviderStatus {
	kinds := make([]string, 0, len(envVars))
	for kind := range envVars {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)

	statuses := make([]ProviderStatus, 0, len(kinds))
	for _, kind := range kinds {
		_, err := KeyFor(kind)
		statuses = append(statuses, ProviderStatus{
			Kind:       kind,
			EnvVar:     envVars[kind][0],
			Configured: err == nil,
		})
	}
	return statuses
}
