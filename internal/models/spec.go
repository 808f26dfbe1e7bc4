package models

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mwhelan/claimcheck/internal/hooks"
	"gopkg.in/yaml.v3"
)

// ValidationSpec is a complete claim-validation run specification.
type ValidationSpec struct {
	SpecIdentity `yaml:",inline"`
	Version      string            `yaml:"version"`
	Config       Config            `yaml:"config"`
	Providers    []ProviderConfig  `yaml:"providers"`
	Consensus    ConsensusConfig   `yaml:"consensus"`
	Probes       []ProbeConfig     `yaml:"evidence"`
	Hooks        hooks.HooksConfig `yaml:"hooks,omitempty"`
	Claims       []string          `yaml:"claims"`
	ClaimsFrom   string            `yaml:"claims_from,omitempty"`
	// ClaimsRows restricts a CSV dataset to a 1-based inclusive data row
	// range, e.g. "2-10". Useful for smoke-testing a slice of a large set.
	ClaimsRows string            `yaml:"claims_rows,omitempty"`
	Inputs     map[string]string `yaml:"inputs,omitempty"`
}

type SpecIdentity struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// Config controls execution behavior
type Config struct {
	TrialsPerClaim int    `yaml:"trials_per_claim" json:"trials_per_claim"`
	TimeoutSec     int    `yaml:"timeout_seconds" json:"timeout_sec"`
	Concurrent     bool   `yaml:"parallel" json:"concurrent"`
	Workers        int    `yaml:"max_workers,omitempty" json:"workers,omitempty"`
	StopOnError    bool   `yaml:"fail_fast,omitempty" json:"stop_on_error,omitempty"`
	MaxAttempts    int    `yaml:"max_attempts,omitempty" json:"max_attempts,omitempty"`
	PromptTemplate string `yaml:"prompt_template,omitempty" json:"prompt_template,omitempty"`
}

// ProviderConfig declares one scoring provider and its consensus weight.
type ProviderConfig struct {
	Kind       string         `yaml:"type" json:"kind"`
	Identifier string         `yaml:"name,omitempty" json:"identifier,omitempty"`
	Model      string         `yaml:"model,omitempty" json:"model,omitempty"`
	Weight     float64        `yaml:"weight,omitempty" json:"weight,omitempty"`
	Parameters map[string]any `yaml:"config,omitempty" json:"parameters,omitempty"`
}

// Name returns the provider's identifier, defaulting to its kind.
func (p *ProviderConfig) Name() string {
	if p.Identifier != "" {
		return p.Identifier
	}
	return p.Kind
}

// EffectiveWeight returns the configured weight, defaulting to 1.0.
func (p *ProviderConfig) EffectiveWeight() float64 {
	if p.Weight <= 0 {
		return 1.0
	}
	return p.Weight
}

// ConsensusConfig controls how provider verdicts are aggregated.
type ConsensusConfig struct {
	Method string `yaml:"method,omitempty" json:"method,omitempty"`

	// Quorum is the minimum number of successful provider verdicts required
	// for a definitive consensus. Below it the verdict is uncertain.
	Quorum int `yaml:"quorum,omitempty" json:"quorum,omitempty"`

	// PassThreshold is the consensus score at or above which a claim is
	// supported. FailThreshold is the score below which it is refuted.
	// Scores between the two are uncertain.
	PassThreshold float64 `yaml:"pass_threshold,omitempty" json:"pass_threshold,omitempty"`
	FailThreshold float64 `yaml:"fail_threshold,omitempty" json:"fail_threshold,omitempty"`
}

// ProbeConfig declares one evidence probe.
type ProbeConfig struct {
	Kind       string         `yaml:"type" json:"kind"`
	Identifier string         `yaml:"name" json:"identifier"`
	Parameters map[string]any `yaml:"config,omitempty" json:"parameters,omitempty"`
}

// LoadValidationSpec loads a spec from a YAML file
func LoadValidationSpec(path string) (*ValidationSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var spec ValidationSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, err
	}

	spec.applyDefaults()

	if err := spec.Validate(); err != nil {
		return nil, err
	}

	return &spec, nil
}

func (s *ValidationSpec) applyDefaults() {
	if s.Config.TrialsPerClaim == 0 {
		s.Config.TrialsPerClaim = 1
	}
	if s.Config.TimeoutSec == 0 {
		s.Config.TimeoutSec = 60
	}
	if s.Consensus.Method == "" {
		s.Consensus.Method = "weighted_mean"
	}
	if s.Consensus.PassThreshold == 0 {
		s.Consensus.PassThreshold = 0.7
	}
	if s.Consensus.FailThreshold == 0 {
		s.Consensus.FailThreshold = 0.4
	}
	if s.Consensus.Quorum == 0 {
		// A lone provider is an opinion, not a consensus.
		s.Consensus.Quorum = 2
		if len(s.Providers) < 2 {
			s.Consensus.Quorum = len(s.Providers)
		}
	}
}

// Validate checks that the spec is valid
func (s *ValidationSpec) Validate() error {
	if s.Config.TrialsPerClaim < 1 {
		return fmt.Errorf("trials_per_claim must be at least 1, got %d", s.Config.TrialsPerClaim)
	}
	if s.Config.TimeoutSec < 1 {
		return fmt.Errorf("timeout_seconds must be at least 1, got %d", s.Config.TimeoutSec)
	}
	if len(s.Providers) == 0 {
		return fmt.Errorf("at least one provider must be configured")
	}
	if s.Consensus.FailThreshold > s.Consensus.PassThreshold {
		return fmt.Errorf("fail_threshold (%.2f) must not exceed pass_threshold (%.2f)",
			s.Consensus.FailThreshold, s.Consensus.PassThreshold)
	}
	if s.ClaimsRows != "" && s.ClaimsFrom == "" {
		return fmt.Errorf("claims_rows requires claims_from")
	}
	if s.Consensus.Quorum > len(s.Providers) {
		return fmt.Errorf("quorum (%d) exceeds the number of configured providers (%d)",
			s.Consensus.Quorum, len(s.Providers))
	}
	seen := make(map[string]bool, len(s.Providers))
	for i := range s.Providers {
		name := s.Providers[i].Name()
		if seen[name] {
			return fmt.Errorf("duplicate provider name %q", name)
		}
		seen[name] = true
	}
	return nil
}

// ResolveClaimFiles expands glob patterns to actual claim files
func (s *ValidationSpec) ResolveClaimFiles(basePath string) ([]string, error) {
	var files []string
	for _, pattern := range s.Claims {
		fullPattern := filepath.Join(basePath, pattern)
		matches, err := filepath.Glob(fullPattern)
		if err != nil {
			return nil, err
		}
		files = append(files, matches...)
	}
	return files, nil
}
