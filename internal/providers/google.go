package providers

import (
	"context"
	"errors"
	"fmt"

	"github.com/mwhelan/claimcheck/internal/models"
	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

const defaultGoogleModel = "gemini-2.0-flash"

type GoogleProviderArgs struct {
	Model       string
	Temperature float32
}

// googleProvider scores claims through the Gemini API.
type googleProvider struct {
	name    string
	model   string
	apiKey  string
	args    GoogleProviderArgs
	limiter *rate.Limiter
}

func NewGoogleProvider(name, apiKey string, args GoogleProviderArgs) (*googleProvider, error) {
	if name == "" {
		return nil, errors.New("missing name")
	}

	if apiKey == "" {
		return nil, fmt.Errorf("provider %s: missing API key", name)
	}

	model := args.Model
	if model == "" {
		model = defaultGoogleModel
	}

	return &googleProvider{
		name:    name,
		model:   model,
		apiKey:  apiKey,
		args:    args,
		limiter: newLimiter(),
	}, nil
}

// Name implements [Provider].
func (p *googleProvider) Name() string { return p.name }

// Kind implements [Provider].
func (p *googleProvider) Kind() Kind { return KindGoogle }

// Score implements [Provider].
func (p *googleProvider) Score(ctx context.Context, req *ScoreRequest) (*models.ProviderVerdict, error) {
	return measureTime(func() (*models.ProviderVerdict, error) {
		prompt := req.PromptOverride
		if prompt == "" {
			prompt = buildValidationPrompt(req.Claim, req.Evidence, req.EvidenceStrength)
		}

		client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: p.apiKey})
		if err != nil {
			return nil, fmt.Errorf("provider %s: %w", p.name, err)
		}

		temp := p.args.Temperature
		cfg := &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(validationSystemPrompt, genai.RoleUser),
			Temperature:       &temp,
		}

		var resp *genai.GenerateContentResponse

		err = callWithRetry(ctx, p.limiter, func(ctx context.Context) error {
			var err error
			resp, err = client.Models.GenerateContent(ctx, p.model, genai.Text(prompt), cfg)

			var apiErr genai.APIError
			if errors.As(err, &apiErr) {
				return &statusError{status: apiErr.Code, err: err}
			}
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("provider %s: %w", p.name, err)
		}

		text := resp.Text()
		if text == "" {
			return nil, fmt.Errorf("provider %s: empty response", p.name)
		}

		verdict, confidence, rationale, err := parseVerdict(text)
		if err != nil {
			return nil, fmt.Errorf("provider %s: %w", p.name, err)
		}

		pv := &models.ProviderVerdict{
			Provider:   p.name,
			Model:      p.model,
			Verdict:    verdict,
			Confidence: confidence,
			Rationale:  rationale,
		}

		if resp.UsageMetadata != nil {
			pv.TokensIn = int(resp.UsageMetadata.PromptTokenCount)
			pv.TokensOut = int(resp.UsageMetadata.CandidatesTokenCount)
		}

		return pv, nil
	})
}
