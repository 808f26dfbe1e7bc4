package orchestration

import (
	"testing"

	"github.com/mwhelan/claimcheck/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func claimSet() []*models.Claim {
	return []*models.Claim{
		{ClaimID: "latency-p99", DisplayName: "p99 latency", Tags: []string{"performance"}},
		{ClaimID: "uptime-sla", DisplayName: "uptime SLA", Tags: []string{"reliability"}},
		{ClaimID: "latency-p50", DisplayName: "p50 latency", Tags: []string{"performance", "core"}},
	}
}

func TestFilterClaims(t *testing.T) {
	t.Run("NoFiltersReturnsAll", func(t *testing.T) {
		got, err := FilterClaims(claimSet(), nil, nil)
		require.NoError(t, err)
		assert.Len(t, got, 3)
	})

	t.Run("NameGlob", func(t *testing.T) {
		got, err := FilterClaims(claimSet(), []string{"latency-*"}, nil)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "latency-p99", got[0].ClaimID)
		assert.Equal(t, "latency-p50", got[1].ClaimID)
	})

	t.Run("DisplayNameAlsoMatches", func(t *testing.T) {
		got, err := FilterClaims(claimSet(), []string{"uptime SLA"}, nil)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "uptime-sla", got[0].ClaimID)
	})

	t.Run("TagFilter", func(t *testing.T) {
		got, err := FilterClaims(claimSet(), nil, []string{"performance"})
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	t.Run("NameAndTagIntersect", func(t *testing.T) {
		got, err := FilterClaims(claimSet(), []string{"latency-*"}, []string{"core"})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "latency-p50", got[0].ClaimID)
	})

	t.Run("NoMatches", func(t *testing.T) {
		got, err := FilterClaims(claimSet(), []string{"throughput-*"}, nil)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("InvalidPattern", func(t *testing.T) {
		_, err := FilterClaims(claimSet(), []string{"[bad"}, nil)
		require.Error(t, err)
	})
}
