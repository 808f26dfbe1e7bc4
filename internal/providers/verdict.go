package providers

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/mwhelan/claimcheck/internal/models"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

// verdictSchema constrains the JSON object providers are asked to return.
const verdictSchema = `{
  "type": "object",
  "properties": {
    "verdict": {"type": "string", "enum": ["supported", "refuted", "uncertain"]},
    "confidence": {"type": "number", "minimum": 0, "maximum": 1},
    "rationale": {"type": "string"}
  },
  "required": ["verdict", "confidence"]
}`

var compiledVerdictSchema = func() *jsonschema.Schema {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(verdictSchema))
	if err != nil {
		panic(fmt.Sprintf("providers: bad verdict schema: %v", err))
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("verdict.json", doc); err != nil {
		panic(fmt.Sprintf("providers: bad verdict schema: %v", err))
	}
	return compiler.MustCompile("verdict.json")
}()

type parsedVerdict struct {
	Verdict    string  `json:"verdict"`
	Confidence float64 `json:"confidence"`
	Rationale  string  `json:"rationale"`
}

var confidenceRe = regexp.MustCompile(`(?i)confidence["'\s:=]+([01](?:\.\d+)?)`)

// parseVerdict extracts a verdict from a provider response.
//
// The strict path finds the first JSON object in the text and validates it
// against the verdict schema. When no valid object exists it falls back to
// keyword and confidence-number heuristics, since some models wrap the
// answer in prose despite instructions.
func parseVerdict(text string) (models.Verdict, float64, string, error) {
	if raw, ok := extractJSONObject(text); ok {
		doc, err := jsonschema.UnmarshalJSON(strings.NewReader(raw))
		if err == nil && compiledVerdictSchema.Validate(doc) == nil {
			var pv parsedVerdict
			if err := json.Unmarshal([]byte(raw), &pv); err == nil {
				return models.Verdict(pv.Verdict), pv.Confidence, pv.Rationale, nil
			}
		}
	}

	return parseVerdictLoose(text)
}

// parseVerdictLoose recovers a verdict from free-form text.
func parseVerdictLoose(text string) (models.Verdict, float64, string, error) {
	lower := strings.ToLower(text)

	var verdict models.Verdict
	switch {
	case strings.Contains(lower, "refuted") || strings.Contains(lower, "not supported"):
		verdict = models.VerdictRefuted
	case strings.Contains(lower, "supported"):
		verdict = models.VerdictSupported
	case strings.Contains(lower, "uncertain") || strings.Contains(lower, "insufficient"):
		verdict = models.VerdictUncertain
	default:
		return "", 0, "", fmt.Errorf("no verdict found in response: %.80q", text)
	}

	confidence := 0.5
	if m := confidenceRe.FindStringSubmatch(text); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil && v >= 0 && v <= 1 {
			confidence = v
		}
	}

	return verdict, confidence, strings.TrimSpace(firstLine(text)), nil
}

// extractJSONObject returns the first balanced top-level JSON object in text.
func extractJSONObject(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	return s
}
