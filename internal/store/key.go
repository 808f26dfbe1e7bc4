package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"

	"github.com/mwhelan/claimcheck/internal/models"
)

// CacheKey generates a content-derived key for a claim trial.
// The key covers:
//   - spec identity and execution config
//   - provider and consensus configuration
//   - the claim definition
//   - evidence content (excluding timing, which varies per run)
//
// Any change to these invalidates the cached verdict.
func CacheKey(spec *models.ValidationSpec, claim *models.Claim, evidence []models.Evidence) (string, error) {
	h := sha256.New()

	if err := writeString(h, spec.Name); err != nil {
		return "", err
	}
	if err := writeInt(h, spec.Config.TimeoutSec); err != nil {
		return "", err
	}
	if err := writeString(h, spec.Config.PromptTemplate); err != nil {
		return "", err
	}

	providersJSON, err := json.Marshal(spec.Providers)
	if err != nil {
		return "", fmt.Errorf("marshaling providers: %w", err)
	}
	if _, err := h.Write(providersJSON); err != nil {
		return "", err
	}

	consensusJSON, err := json.Marshal(spec.Consensus)
	if err != nil {
		return "", fmt.Errorf("marshaling consensus: %w", err)
	}
	if _, err := h.Write(consensusJSON); err != nil {
		return "", err
	}

	claimJSON, err := json.Marshal(claim)
	if err != nil {
		return "", fmt.Errorf("marshaling claim: %w", err)
	}
	if _, err := h.Write(claimJSON); err != nil {
		return "", err
	}

	for _, ev := range evidence {
		if err := writeString(h, ev.Source); err != nil {
			return "", err
		}
		if err := writeString(h, ev.Kind); err != nil {
			return "", err
		}
		if err := writeString(h, fmt.Sprintf("%t", ev.OK)); err != nil {
			return "", err
		}
		if err := writeString(h, ev.Summary); err != nil {
			return "", err
		}

		payloadJSON, err := json.Marshal(ev.Payload)
		if err != nil {
			return "", fmt.Errorf("marshaling evidence payload: %w", err)
		}
		if _, err := h.Write(payloadJSON); err != nil {
			return "", err
		}
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// Helper functions

func writeString(w io.Writer, s string) error {
	// Write string with null byte delimiter to prevent hash collisions
	_, err := w.Write([]byte(s + "\x00"))
	return err
}

func writeInt(w io.Writer, i int) error {
	// Write int with null byte delimiter to prevent hash collisions
	_, err := fmt.Fprintf(w, "%d\x00", i)
	return err
}
