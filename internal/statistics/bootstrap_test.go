package statistics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBootstrapCI_DegenerateInputs(t *testing.T) {
	t.Run("Empty", func(t *testing.T) {
		ci := BootstrapCI(nil, 0.95)
		assert.Zero(t, ci.Mean)
		assert.Zero(t, ci.Lower)
		assert.Zero(t, ci.Upper)
		assert.Zero(t, ci.NumBootstraps)
	})

	t.Run("SinglePoint", func(t *testing.T) {
		ci := BootstrapCI([]float64{0.8}, 0.95)
		assert.Equal(t, 0.8, ci.Mean)
		assert.Equal(t, 0.8, ci.Lower)
		assert.Equal(t, 0.8, ci.Upper)
		assert.Zero(t, ci.NumBootstraps)
	})
}

func TestBootstrapCI_ConstantScores(t *testing.T) {
	// Every resample of a constant series has the same mean.
	ci := BootstrapCIWithSeed([]float64{0.7, 0.7, 0.7, 0.7}, 0.95, 42)

	assert.InDelta(t, 0.7, ci.Mean, 1e-9)
	assert.InDelta(t, 0.7, ci.Lower, 1e-9)
	assert.InDelta(t, 0.7, ci.Upper, 1e-9)
	assert.Equal(t, DefaultBootstrapIterations, ci.NumBootstraps)
}

func TestBootstrapCI_BracketsTheMean(t *testing.T) {
	scores := []float64{0.55, 0.62, 0.71, 0.68, 0.74, 0.59, 0.66, 0.7}

	ci := BootstrapCIWithSeed(scores, 0.95, 1)

	require.Equal(t, 0.95, ci.ConfidenceLevel)
	assert.LessOrEqual(t, ci.Lower, ci.Mean)
	assert.GreaterOrEqual(t, ci.Upper, ci.Mean)
	assert.Greater(t, ci.Upper, ci.Lower)

	// The interval should stay within the observed score range.
	assert.GreaterOrEqual(t, ci.Lower, 0.55)
	assert.LessOrEqual(t, ci.Upper, 0.74)
}

func TestBootstrapCI_Reproducible(t *testing.T) {
	scores := []float64{0.2, 0.5, 0.9, 0.4}

	a := BootstrapCIWithSeed(scores, 0.9, 7)
	b := BootstrapCIWithSeed(scores, 0.9, 7)

	assert.Equal(t, a, b)
}

func TestBootstrapCI_WiderAtHigherConfidence(t *testing.T) {
	scores := []float64{0.1, 0.4, 0.6, 0.9, 0.3, 0.7}

	narrow := BootstrapCIWithSeed(scores, 0.8, 3)
	wide := BootstrapCIWithSeed(scores, 0.99, 3)

	assert.GreaterOrEqual(t, wide.Upper-wide.Lower, narrow.Upper-narrow.Lower)
}

func TestIsSignificant(t *testing.T) {
	assert.True(t, IsSignificant(ConfidenceInterval{Lower: 0.1, Upper: 0.5}))
	assert.True(t, IsSignificant(ConfidenceInterval{Lower: -0.5, Upper: -0.1}))
	assert.False(t, IsSignificant(ConfidenceInterval{Lower: -0.1, Upper: 0.1}))
	assert.False(t, IsSignificant(ConfidenceInterval{Lower: 0, Upper: 0.2}))
}
