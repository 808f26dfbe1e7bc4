package config

import (
	"testing"

	"github.com/mwhelan/claimcheck/internal/models"
)

func TestNewValidationConfig_DefaultValues(t *testing.T) {
	spec := &models.ValidationSpec{SpecIdentity: models.SpecIdentity{Name: "test-spec"}}

	cfg := NewValidationConfig(spec)

	if cfg.Spec() != spec {
		t.Fatalf("Spec() = %p, want %p", cfg.Spec(), spec)
	}
	if cfg.SpecDir() != "" {
		t.Fatalf("SpecDir() = %q, want empty", cfg.SpecDir())
	}
	if cfg.ClaimsDir() != "" {
		t.Fatalf("ClaimsDir() = %q, want empty", cfg.ClaimsDir())
	}
	if cfg.Verbose() {
		t.Fatalf("Verbose() = true, want false")
	}
	if cfg.OutputPath() != "" {
		t.Fatalf("OutputPath() = %q, want empty", cfg.OutputPath())
	}
	if cfg.NoCache() {
		t.Fatalf("NoCache() = true, want false")
	}
}

func TestNewValidationConfig_AppliesFunctionalOptions(t *testing.T) {
	spec := &models.ValidationSpec{}

	cfg := NewValidationConfig(
		spec,
		WithSpecDir("/tmp/specs"),
		WithClaimsDir("/tmp/claims"),
		WithVerbose(true),
		WithOutputPath("results.json"),
		WithNoCache(true),
	)

	if cfg.SpecDir() != "/tmp/specs" {
		t.Fatalf("SpecDir() = %q, want %q", cfg.SpecDir(), "/tmp/specs")
	}
	if cfg.ClaimsDir() != "/tmp/claims" {
		t.Fatalf("ClaimsDir() = %q, want %q", cfg.ClaimsDir(), "/tmp/claims")
	}
	if !cfg.Verbose() {
		t.Fatalf("Verbose() = false, want true")
	}
	if cfg.OutputPath() != "results.json" {
		t.Fatalf("OutputPath() = %q, want %q", cfg.OutputPath(), "results.json")
	}
	if !cfg.NoCache() {
		t.Fatalf("NoCache() = false, want true")
	}
}

func TestClaimsDir_FallsBackToSpecDir(t *testing.T) {
	cfg := NewValidationConfig(&models.ValidationSpec{}, WithSpecDir("/tmp/specs"))

	if cfg.ClaimsDir() != "/tmp/specs" {
		t.Fatalf("ClaimsDir() = %q, want %q", cfg.ClaimsDir(), "/tmp/specs")
	}
}

func TestOptionOrder_LastOptionWins(t *testing.T) {
	cfg := NewValidationConfig(
		&models.ValidationSpec{},
		WithVerbose(true),
		WithVerbose(false),
		WithClaimsDir("first"),
		WithClaimsDir("second"),
	)

	if cfg.Verbose() {
		t.Fatalf("Verbose() = true, want false")
	}
	if cfg.ClaimsDir() != "second" {
		t.Fatalf("ClaimsDir() = %q, want %q", cfg.ClaimsDir(), "second")
	}
}

func TestNewValidationConfig_NilSpecAllowed(t *testing.T) {
	cfg := NewValidationConfig(nil, WithOutputPath(""), WithVerbose(false))

	if cfg.Spec() != nil {
		t.Fatalf("Spec() = %v, want nil", cfg.Spec())
	}
	if cfg.OutputPath() != "" {
		t.Fatalf("OutputPath() = %q, want empty", cfg.OutputPath())
	}
}

func TestNewValidationConfig_NilOptionPanics(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic for nil option, got none")
		}
	}()

	_ = NewValidationConfig(&models.ValidationSpec{}, nil)
}
