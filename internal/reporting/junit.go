package reporting

import (
	"encoding/xml"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/mwhelan/claimcheck/internal/models"
)

// JUnit XML schema types

// JUnitTestSuites is the top-level container.
type JUnitTestSuites struct {
	XMLName    xml.Name         `xml:"testsuites"`
	Tests      int              `xml:"tests,attr"`
	Failures   int              `xml:"failures,attr"`
	Errors     int              `xml:"errors,attr"`
	Time       float64          `xml:"time,attr"`
	TestSuites []JUnitTestSuite `xml:"testsuite"`
}

// JUnitTestSuite maps to one validation run.
type JUnitTestSuite struct {
	XMLName    xml.Name        `xml:"testsuite"`
	Name       string          `xml:"name,attr"`
	Tests      int             `xml:"tests,attr"`
	Failures   int             `xml:"failures,attr"`
	Errors     int             `xml:"errors,attr"`
	Skipped    int             `xml:"skipped,attr"`
	Time       float64         `xml:"time,attr"`
	Timestamp  string          `xml:"timestamp,attr"`
	Properties []JUnitProperty `xml:"properties>property,omitempty"`
	TestCases  []JUnitTestCase `xml:"testcase"`
}

// JUnitTestCase maps to one claim.
type JUnitTestCase struct {
	XMLName   xml.Name      `xml:"testcase"`
	Name      string        `xml:"name,attr"`
	Classname string        `xml:"classname,attr"`
	Time      float64       `xml:"time,attr"`
	Failure   *JUnitFailure `xml:"failure,omitempty"`
	Error     *JUnitError   `xml:"error,omitempty"`
	Skipped   *JUnitSkipped `xml:"skipped,omitempty"`
}

// JUnitFailure represents a claim whose consensus verdict did not match.
type JUnitFailure struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
	Body    string `xml:",chardata"`
}

// JUnitError represents an unexpected error during claim validation.
type JUnitError struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
	Body    string `xml:",chardata"`
}

// JUnitSkipped marks a claim as skipped.
type JUnitSkipped struct {
	Message string `xml:"message,attr,omitempty"`
}

// JUnitProperty is a key-value metadata entry.
type JUnitProperty struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

// ConvertToJUnit converts a ValidationOutcome to JUnit XML format, so CI
// systems can render claim results as test results.
func ConvertToJUnit(outcome *models.ValidationOutcome) *JUnitTestSuites {
	durationSec := float64(outcome.Digest.DurationMs) / 1000.0

	failed := 0
	for _, co := range outcome.ClaimOutcomes {
		if co.Status == models.StatusFailed {
			failed++
		}
	}

	suite := JUnitTestSuite{
		Name:      outcome.SpecName,
		Tests:     outcome.Digest.TotalClaims,
		Failures:  failed,
		Errors:    outcome.Digest.Errors,
		Time:      durationSec,
		Timestamp: outcome.Timestamp.Format(time.RFC3339),
		Properties: []JUnitProperty{
			{Name: "run_id", Value: outcome.RunID},
			{Name: "providers", Value: strings.Join(outcome.Setup.Providers, ",")},
			{Name: "consensus_method", Value: outcome.Setup.ConsensusMethod},
			{Name: "aggregate_score", Value: fmt.Sprintf("%.4f", outcome.Digest.AggregateScore)},
			{Name: "evidence_score", Value: fmt.Sprintf("%.4f", outcome.Digest.EvidenceScore)},
		},
	}

	for i := range outcome.ClaimOutcomes {
		tc := convertClaimOutcome(outcome.SpecName, &outcome.ClaimOutcomes[i])
		suite.TestCases = append(suite.TestCases, tc)
	}

	return &JUnitTestSuites{
		Tests:      outcome.Digest.TotalClaims,
		Failures:   failed,
		Errors:     outcome.Digest.Errors,
		Time:       durationSec,
		TestSuites: []JUnitTestSuite{suite},
	}
}

func convertClaimOutcome(specName string, co *models.ClaimOutcome) JUnitTestCase {
	// Compute duration from stats or trials
	var durationSec float64
	if co.Stats != nil && co.Stats.AvgDurationMs > 0 {
		durationSec = float64(co.Stats.AvgDurationMs) / 1000.0
	} else if len(co.Trials) > 0 {
		var totalMs int64
		for _, trial := range co.Trials {
			totalMs += trial.DurationMs
		}
		durationSec = float64(totalMs) / float64(len(co.Trials)) / 1000.0
	}

	classname := specName
	if co.Category != "" {
		classname = specName + "." + co.Category
	}

	tc := JUnitTestCase{
		Name:      co.DisplayName,
		Classname: classname,
		Time:      durationSec,
	}

	switch co.Status {
	case models.StatusFailed:
		tc.Failure = buildFailure(co)
	case models.StatusError:
		tc.Error = buildError(co)
	}

	return tc
}

func buildFailure(co *models.ClaimOutcome) *JUnitFailure {
	// Show provider verdicts from the first failed trial
	var details string
	for i := range co.Trials {
		if co.Trials[i].Status != models.StatusPassed {
			details = formatProviderVerdicts(co.Trials[i].Verdicts)
			break
		}
	}

	score := 0.0
	if co.Stats != nil {
		score = co.Stats.AvgScore
	}

	return &JUnitFailure{
		Message: fmt.Sprintf("%s: expected %s, consensus %s (score=%.2f)",
			co.DisplayName, co.Expected, co.Verdict, score),
		Type: "VerdictMismatch",
		Body: details,
	}
}

func buildError(co *models.ClaimOutcome) *JUnitError {
	var msg string
	for _, trial := range co.Trials {
		if trial.ErrorMsg != "" {
			msg = trial.ErrorMsg
			break
		}
	}
	if msg == "" {
		msg = "validation error"
	}

	return &JUnitError{
		Message: msg,
		Type:    "ValidationError",
	}
}

func formatProviderVerdicts(verdicts map[string]models.ProviderVerdict) string {
	if len(verdicts) == 0 {
		return ""
	}

	// Sort for deterministic output
	names := make([]string, 0, len(verdicts))
	for name := range verdicts {
		names = append(names, name)
	}
	sort.Strings(names)

	var result string
	for _, name := range names {
		v := verdicts[name]
		if v.Failed() {
			result += fmt.Sprintf("[ERROR] %s: %s\n", name, v.ErrorMsg)
			continue
		}
		result += fmt.Sprintf("[%s] %s: confidence=%.2f %s\n",
			strings.ToUpper(string(v.Verdict)), name, v.Confidence, v.Rationale)
	}
	return result
}

// WriteJUnitXML writes JUnit XML to the specified file path.
func WriteJUnitXML(outcome *models.ValidationOutcome, path string) error {
	suites := ConvertToJUnit(outcome)

	data, err := xml.MarshalIndent(suites, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JUnit XML: %w", err)
	}

	output := append([]byte(xml.Header), data...)
	return os.WriteFile(path, output, 0644)
}
