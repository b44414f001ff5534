package pattern

import (
	"context"
	"io"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krewdev/SealevelStudio4-sub007/internal/domain"
	"github.com/krewdev/SealevelStudio4-sub007/internal/storage/memory"
)

var testLogger = log.New(io.Discard, "", 0)

func mkFingerprint(routeLen int, profitPct float64, cat domain.TokenCategory) domain.Fingerprint {
	return domain.Fingerprint{
		RouteLength:   routeLen,
		FeeTotal:      0.003 * float64(routeLen),
		TokenCategory: cat,
		ProfitPct:     profitPct,
	}
}

func TestSimilarity_IdenticalIsOne(t *testing.T) {
	fp := mkFingerprint(3, 1.5, domain.CategoryNative)
	assert.Equal(t, 1.0, Similarity(fp, fp))
}

func TestSimilarity_Bounded(t *testing.T) {
	a := mkFingerprint(2, 0.2, domain.CategoryNative)
	extremes := []domain.Fingerprint{
		mkFingerprint(10, 500, domain.CategoryOther),
		mkFingerprint(2, 0.2, domain.CategoryStable),
		{},
	}
	for _, b := range extremes {
		s := Similarity(a, b)
		assert.GreaterOrEqual(t, s, 0.0)
		assert.LessOrEqual(t, s, 1.0)
	}
}

func TestSimilarity_DecaysWithDistance(t *testing.T) {
	base := mkFingerprint(3, 1.0, domain.CategoryNative)
	near := mkFingerprint(3, 1.5, domain.CategoryNative)
	far := mkFingerprint(5, 8.0, domain.CategoryOther)

	assert.Greater(t, Similarity(base, near), Similarity(base, far))
}

func TestFingerprintOf_SumsPoolFees(t *testing.T) {
	pools := map[string]*domain.Pool{
		"p1": {ID: "p1", FeeRate: 0.003},
		"p2": {ID: "p2", FeeRate: 0.0025},
	}
	o := &domain.Opportunity{
		ProfitPct: 1.2,
		Steps: []domain.Step{
			{PoolID: "p1", TokenIn: domain.MintWSOL, TokenOut: "X"},
			{PoolID: "p2", TokenIn: "X", TokenOut: domain.MintWSOL},
			{PoolID: "peg:mSOL/SOL", TokenIn: domain.MintWSOL, TokenOut: domain.MintWSOL},
		},
	}

	fp := FingerprintOf(o, pools)
	assert.Equal(t, 3, fp.RouteLength)
	assert.InDelta(t, 0.0055, fp.FeeTotal, 1e-12, "synthetic legs carry no fee")
	assert.Equal(t, domain.CategoryNative, fp.TokenCategory)
	assert.InDelta(t, 1.2, fp.ProfitPct, 1e-12)
}

func TestFindMatches_SortedBySimilarityDesc(t *testing.T) {
	store := memory.NewPatternStore(100)
	m := NewMatcher(store, Config{TopK: 10, MinSimilarity: 0}, testLogger)
	ctx := context.Background()

	query := mkFingerprint(3, 1.0, domain.CategoryNative)
	_, err := m.Record(ctx, mkFingerprint(5, 8.0, domain.CategoryOther), false, -0.1)
	require.NoError(t, err)
	_, err = m.Record(ctx, query, true, 0.01)
	require.NoError(t, err)
	_, err = m.Record(ctx, mkFingerprint(3, 1.4, domain.CategoryNative), true, 0.01)
	require.NoError(t, err)

	matches, err := m.FindMatches(ctx, query)
	require.NoError(t, err)
	require.Len(t, matches, 3)

	assert.Equal(t, 1.0, matches[0].Similarity, "exact match ranks first")
	for i := 1; i < len(matches); i++ {
		assert.LessOrEqual(t, matches[i].Similarity, matches[i-1].Similarity)
	}
}

func TestFindMatches_RespectsTopKAndThreshold(t *testing.T) {
	store := memory.NewPatternStore(100)
	m := NewMatcher(store, Config{TopK: 2, MinSimilarity: 0.9}, testLogger)
	ctx := context.Background()

	query := mkFingerprint(3, 1.0, domain.CategoryNative)
	for i := 0; i < 5; i++ {
		_, err := m.Record(ctx, query, true, 0.01)
		require.NoError(t, err)
	}
	_, err := m.Record(ctx, mkFingerprint(6, 9.0, domain.CategoryOther), false, -0.1)
	require.NoError(t, err)

	matches, err := m.FindMatches(ctx, query)
	require.NoError(t, err)
	assert.Len(t, matches, 2)
	for _, match := range matches {
		assert.GreaterOrEqual(t, match.Similarity, 0.9)
	}
}

func TestSuccessEstimate_NeutralWithoutHistory(t *testing.T) {
	store := memory.NewPatternStore(100)
	m := NewMatcher(store, DefaultConfig(), testLogger)

	estimate, n, err := m.SuccessEstimate(context.Background(), mkFingerprint(3, 1.0, domain.CategoryNative))
	require.NoError(t, err)
	assert.Equal(t, 0.5, estimate)
	assert.Zero(t, n)
}

func TestSuccessEstimate_WeightsBySimilarity(t *testing.T) {
	store := memory.NewPatternStore(100)
	m := NewMatcher(store, Config{TopK: 10, MinSimilarity: 0}, testLogger)
	ctx := context.Background()

	query := mkFingerprint(3, 1.0, domain.CategoryNative)
	_, err := m.Record(ctx, query, true, 0.01)
	require.NoError(t, err)
	_, err = m.Record(ctx, mkFingerprint(5, 6.0, domain.CategoryOther), false, -0.1)
	require.NoError(t, err)

	estimate, n, err := m.SuccessEstimate(ctx, query)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Greater(t, estimate, 0.5, "the exact successful match outweighs the distant failure")
}
