// Package config carries the resolved settings for a validation run.
package config

import (
	"github.com/mwhelan/claimcheck/internal/models"
)

// ValidationConfig is the immutable configuration for a single validation run.
// Construct it with NewValidationConfig and the With* options.
type ValidationConfig struct {
	spec       *models.ValidationSpec
	specDir    string
	claimsDir  string
	verbose    bool
	outputPath string
	noCache    bool
}

// Option mutates a ValidationConfig during construction.
type Option func(*ValidationConfig)

// NewValidationConfig builds a ValidationConfig for the given spec.
// Panics if any option is nil.
func NewValidationConfig(spec *models.ValidationSpec, opts ...Option) *ValidationConfig {
	cfg := &ValidationConfig{spec: spec}
	for _, opt := range opts {
		if opt == nil {
			panic("config: nil Option passed to NewValidationConfig")
		}
		opt(cfg)
	}
	return cfg
}

// WithSpecDir sets the directory containing the spec file. Claim globs and
// relative probe paths resolve against it.
func WithSpecDir(dir string) Option {
	return func(c *ValidationConfig) { c.specDir = dir }
}

// WithClaimsDir overrides the directory claim globs resolve against.
func WithClaimsDir(dir string) Option {
	return func(c *ValidationConfig) { c.claimsDir = dir }
}

// WithVerbose enables verbose progress output.
func WithVerbose(verbose bool) Option {
	return func(c *ValidationConfig) { c.verbose = verbose }
}

// WithOutputPath sets the path the run outcome JSON is written to.
func WithOutputPath(path string) Option {
	return func(c *ValidationConfig) { c.outputPath = path }
}

// WithNoCache disables reading and writing the verdict cache.
func WithNoCache(noCache bool) Option {
	return func(c *ValidationConfig) { c.noCache = noCache }
}

func (c *ValidationConfig) Spec() *models.ValidationSpec { return c.spec }
func (c *ValidationConfig) SpecDir() string              { return c.specDir }
func (c *ValidationConfig) Verbose() bool                { return c.verbose }
func (c *ValidationConfig) OutputPath() string           { return c.outputPath }
func (c *ValidationConfig) NoCache() bool                { return c.noCache }

// ClaimsDir returns the claims directory, falling back to the spec directory.
func (c *ValidationConfig) ClaimsDir() string {
	if c.claimsDir != "" {
		return c.claimsDir
	}
	return c.specDir
}
