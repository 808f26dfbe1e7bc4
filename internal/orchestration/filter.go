package orchestration

import (
	"fmt"
	"path/filepath"

	"github.com/mwhelan/claimcheck/internal/models"
)

// FilterClaims returns the subset of claims whose DisplayName or ClaimID
// matches at least one name pattern, and whose tags match at least one tag
// pattern. Empty pattern slices match everything.
func FilterClaims(claims []*models.Claim, namePatterns, tagPatterns []string) ([]*models.Claim, error) {
	if len(namePatterns) == 0 && len(tagPatterns) == 0 {
		return claims, nil
	}

	var matched []*models.Claim
	for _, c := range claims {
		nameOK, err := matchesName(c, namePatterns)
		if err != nil {
			return nil, err
		}

		tagOK, err := matchesTags(c, tagPatterns)
		if err != nil {
			return nil, err
		}

		if nameOK && tagOK {
			matched = append(matched, c)
		}
	}
	return matched, nil
}

// matchesName reports whether a claim's DisplayName or ClaimID matches any pattern.
func matchesName(c *models.Claim, patterns []string) (bool, error) {
	if len(patterns) == 0 {
		return true, nil
	}

	for _, p := range patterns {
		nameMatch, err := filepath.Match(p, c.Name())
		if err != nil {
			return false, fmt.Errorf("invalid claim filter pattern %q: %w", p, err)
		}
		if nameMatch {
			return true, nil
		}
		idMatch, err := filepath.Match(p, c.ClaimID)
		if err != nil {
			return false, fmt.Errorf("invalid claim filter pattern %q: %w", p, err)
		}
		if idMatch {
			return true, nil
		}
	}
	return false, nil
}

// matchesTags reports whether any of a claim's tags matches any pattern.
func matchesTags(c *models.Claim, patterns []string) (bool, error) {
	if len(patterns) == 0 {
		return true, nil
	}

	for _, p := range patterns {
		for _, tag := range c.Tags {
			ok, err := filepath.Match(p, tag)
			if err != nil {
				return false, fmt.Errorf("invalid tag filter pattern %q: %w", p, err)
			}
			if ok {
				return true, nil
			}
		}
	}
	return false, nil
}
