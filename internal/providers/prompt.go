package providers

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mwhelan/claimcheck/internal/models"
)

const validationSystemPrompt = `You are an independent validator. You judge whether a claim is supported by the evidence provided, and nothing else. You have no stake in the outcome. Be skeptical: marketing language is not evidence.`

// buildValidationPrompt renders the user prompt for one claim.
// Evidence entries are serialized as JSON blocks so providers see the raw
// probe results, not a paraphrase. The strength score is included so the
// provider knows how much the evidence set itself can be trusted.
func buildValidationPrompt(claim *models.Claim, evidence []models.Evidence, strength float64) string {
	var sb strings.Builder

	sb.WriteString("## Claim\n")
	sb.WriteString(claim.Statement)
	sb.WriteString("\n\n")

	if claim.Context != "" {
		sb.WriteString("## Context\n")
		sb.WriteString(claim.Context)
		sb.WriteString("\n\n")
	}

	if len(evidence) == 0 {
		sb.WriteString("## Evidence\nNo evidence was collected for this claim.\n\n")
	} else {
		sb.WriteString("## Evidence\n")
		sb.WriteString(fmt.Sprintf("Evidence strength: %.2f on a 0-1 scale, from probe success rate, source diversity and freshness. Treat weak evidence with skepticism.\n\n", strength))
		for i, ev := range evidence {
			data, err := json.Marshal(ev)
			if err != nil {
				// Evidence came from json-decodable probe output; this
				// should not happen, but degrade to the summary if it does.
				data = []byte(fmt.Sprintf(`{"source":%q,"summary":%q}`, ev.Source, ev.Summary))
			}
			sb.WriteString(fmt.Sprintf("### Evidence %d (%s)\n```json\n%s\n```\n\n", i+1, ev.Source, string(data)))
		}
	}

	sb.WriteString("Judge whether the claim is supported by the evidence above.\n")
	sb.WriteString("Respond with ONLY a JSON object, no prose before or after:\n")
	sb.WriteString("```json\n")
	sb.WriteString(`{"verdict": "supported" | "refuted" | "uncertain", "confidence": <0.0-1.0>, "rationale": "<one or two sentences>"}`)
	sb.WriteString("\n```\n")

	return sb.String()
}
