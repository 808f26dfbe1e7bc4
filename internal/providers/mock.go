package providers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mwhelan/claimcheck/internal/models"
)

type MockProviderArgs struct {
	// Verdict forces a fixed verdict. When empty the mock derives one from
	// the evidence: supported when every probe succeeded, refuted when any
	// failed, uncertain when there is no evidence.
	Verdict    models.Verdict
	Confidence float64
	Fail       bool
	DelayMs    int
}

// mockProvider produces deterministic verdicts without network access.
type mockProvider struct {
	name string
	args MockProviderArgs
}

func NewMockProvider(name string, args MockProviderArgs) (*mockProvider, error) {
	if name == "" {
		return nil, errors.New("missing name")
	}

	return &mockProvider{name: name, args: args}, nil
}

// Name implements [Provider].
func (p *mockProvider) Name() string { return p.name }

// Kind implements [Provider].
func (p *mockProvider) Kind() Kind { return KindMock }

// Score implements [Provider].
func (p *mockProvider) Score(ctx context.Context, req *ScoreRequest) (*models.ProviderVerdict, error) {
	return measureTime(func() (*models.ProviderVerdict, error) {
		if p.args.DelayMs > 0 {
			select {
			case <-time.After(time.Duration(p.args.DelayMs) * time.Millisecond):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		if p.args.Fail {
			return nil, fmt.Errorf("provider %s: simulated failure", p.name)
		}

		verdict := p.args.Verdict
		confidence := p.args.Confidence

		if verdict == "" {
			verdict, confidence = p.deriveVerdict(req.Evidence)
		} else if confidence == 0 {
			confidence = 0.9
		}

		return &models.ProviderVerdict{
			Provider:   p.name,
			Model:      "mock",
			Verdict:    verdict,
			Confidence: confidence,
			Rationale:  "mock verdict",
		}, nil
	})
}

func (p *mockProvider) deriveVerdict(evidence []models.Evidence) (models.Verdict, float64) {
	if len(evidence) == 0 {
		return models.VerdictUncertain, 0.5
	}

	for _, ev := range evidence {
		if !ev.OK {
			return models.VerdictRefuted, 0.85
		}
	}
	return models.VerdictSupported, 0.85
}
