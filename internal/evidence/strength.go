package evidence

import (
	"time"

	"github.com/mwhelan/claimcheck/internal/models"
)

// freshnessWindow is how recent evidence must be to count as fully fresh.
// Staleness matters when evidence is replayed from the store.
const freshnessWindow = 24 * time.Hour

// Strength scores a body of evidence in [0, 1].
//
// Three signals, equally weighted: the fraction of probes that succeeded,
// source diversity (distinct probe kinds out of the three known kinds), and
// freshness relative to now. No evidence scores zero.
func Strength(evidence []models.Evidence, now time.Time) float64 {
	if len(evidence) == 0 {
		return 0.0
	}

	okCount := 0
	kinds := map[string]bool{}
	freshSum := 0.0

	for _, ev := range evidence {
		if ev.OK {
			okCount++
		}
		kinds[ev.Kind] = true

		age := now.Sub(ev.CollectedAt)
		switch {
		case age <= 0:
			freshSum += 1.0
		case age >= freshnessWindow:
			// stale evidence still counts a little
			freshSum += 0.1
		default:
			freshSum += 1.0 - 0.9*(float64(age)/float64(freshnessWindow))
		}
	}

	successRate := float64(okCount) / float64(len(evidence))
	diversity := float64(len(kinds)) / 3.0
	if diversity > 1.0 {
		diversity = 1.0
	}
	freshness := freshSum / float64(len(evidence))

	return (successRate + diversity + freshness) / 3.0
}
