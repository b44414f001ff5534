package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krewdev/SealevelStudio4-sub007/internal/analytics"
	"github.com/krewdev/SealevelStudio4-sub007/internal/domain"
	"github.com/krewdev/SealevelStudio4-sub007/internal/fetcher"
	"github.com/krewdev/SealevelStudio4-sub007/internal/graph"
	"github.com/krewdev/SealevelStudio4-sub007/internal/pattern"
	"github.com/krewdev/SealevelStudio4-sub007/internal/poolcache"
	"github.com/krewdev/SealevelStudio4-sub007/internal/risk"
	"github.com/krewdev/SealevelStudio4-sub007/internal/scanner"
	"github.com/krewdev/SealevelStudio4-sub007/internal/service"
	"github.com/krewdev/SealevelStudio4-sub007/internal/signal"
	"github.com/krewdev/SealevelStudio4-sub007/internal/storage/memory"
)

var testLogger = log.New(io.Discard, "", 0)

type staticFetcher struct {
	venue domain.Venue
	pools []*domain.Pool
}

func (f *staticFetcher) Venue() domain.Venue { return f.venue }

func (f *staticFetcher) FetchPools(context.Context) ([]*domain.Pool, error) {
	out := make([]*domain.Pool, len(f.pools))
	for i, p := range f.pools {
		out[i] = p.Clone()
	}
	return out, nil
}

func seedPools() []*domain.Pool {
	mk := func(id string, reserveA, reserveB float64) *domain.Pool {
		p := &domain.Pool{
			ID:        id,
			Venue:     domain.VenueRaydium,
			Address:   id,
			TokenA:    domain.Token{Mint: "WSOLMINT", Symbol: "SOL", Decimals: 9},
			TokenB:    domain.Token{Mint: "USDCMINT", Symbol: "USDC", Decimals: 6},
			ReserveA:  reserveA,
			ReserveB:  reserveB,
			UpdatedAt: time.Now().UnixMilli(),
		}
		p.Price = p.SpotPrice()
		return p
	}
	return []*domain.Pool{
		mk("raydium:rich", 100, 200),
		mk("raydium:flat", 100, 100),
	}
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	registry := fetcher.NewRegistry()
	registry.Register(&staticFetcher{venue: domain.VenueRaydium, pools: seedPools()})

	detectCfg := graph.Config{
		MaxHops:        4,
		MinProfitPct:   0.1,
		InputAmount:    1,
		OpportunityTTL: time.Minute,
	}

	prioritizer, err := signal.New(signal.DefaultConfig(), testLogger)
	require.NoError(t, err)

	svc := service.New(service.Deps{
		Scanner:     scanner.New(registry, scanner.DefaultConfig(), testLogger),
		Cache:       poolcache.New(poolcache.DefaultConfig()),
		Simple:      graph.NewSimpleDetector(detectCfg, testLogger),
		Detector:    graph.NewDetector(detectCfg, testLogger),
		Peg:         graph.NewPegScanner(graph.PegConfig{DeviationThreshold: 0.005}, detectCfg, testLogger),
		Analyzer:    risk.New(risk.DefaultConfig(), testLogger),
		Monitor:     analytics.NewMonitor(analytics.DefaultConfig(), testLogger),
		Matcher:     pattern.NewMatcher(memory.NewPatternStore(100), pattern.DefaultConfig(), testLogger),
		Prioritizer: prioritizer,
	}, service.Config{StartMints: []string{"WSOLMINT"}}, testLogger)

	ts := httptest.NewServer(New(svc, testLogger).Routes())
	t.Cleanup(ts.Close)
	return ts
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestOpportunitiesEndpoint(t *testing.T) {
	ts := newTestServer(t)

	var body analysesResponse
	status := getJSON(t, ts.URL+"/api/opportunities", &body)

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, 2, body.PoolCount)
	require.NotEmpty(t, body.Analyses)

	top := body.Analyses[0]
	assert.NotEmpty(t, top.Opportunity.ID)
	assert.Len(t, top.Opportunity.Steps, 2)
	assert.InDelta(t, 100.0, top.Opportunity.ProfitPct, 1e-6)
	assert.GreaterOrEqual(t, top.RiskScore, 0.0)
	assert.LessOrEqual(t, top.RiskScore, 1.0)
	assert.NotEmpty(t, top.CompetitionLevel)
}

func TestOpportunitiesEndpoint_Params(t *testing.T) {
	ts := newTestServer(t)

	var body analysesResponse
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/opportunities", &body))
	require.NotEmpty(t, body.Analyses)
	id := body.Analyses[0].Opportunity.ID

	var single analysesResponse
	status := getJSON(t, ts.URL+"/api/opportunities?opportunityId="+id, &single)
	assert.Equal(t, http.StatusOK, status)
	require.Len(t, single.Analyses, 1)
	assert.Equal(t, id, single.Analyses[0].Opportunity.ID)

	status = getJSON(t, ts.URL+"/api/opportunities?opportunityId=missing", nil)
	assert.Equal(t, http.StatusNotFound, status)

	var filtered analysesResponse
	status = getJSON(t, ts.URL+"/api/opportunities?minProfit=1000", &filtered)
	assert.Equal(t, http.StatusOK, status)
	assert.Empty(t, filtered.Analyses, "no route clears a 1000% threshold")

	status = getJSON(t, ts.URL+"/api/opportunities?minProfit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestGraphEndpoint(t *testing.T) {
	ts := newTestServer(t)

	var body graphResponse
	status := getJSON(t, ts.URL+"/api/graph", &body)

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, 2, body.Nodes)
	assert.Equal(t, 4, body.Edges)
	assert.Equal(t, 2, body.PoolCount)
	assert.NotEmpty(t, body.Opportunities)
	require.Len(t, body.Venues, 1)
	assert.True(t, body.Venues[0].OK)
}

func TestGraphEndpoint_Params(t *testing.T) {
	ts := newTestServer(t)

	var body graphResponse
	status := getJSON(t, ts.URL+"/api/graph?startToken=WSOLMINT&maxHops=2&minProfit=0.5", &body)
	assert.Equal(t, http.StatusOK, status)
	assert.NotEmpty(t, body.Opportunities)

	status = getJSON(t, ts.URL+"/api/graph?startToken=UNKNOWNMINT", nil)
	assert.Equal(t, http.StatusNotFound, status)

	status = getJSON(t, ts.URL+"/api/graph?maxHops=two", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestMonitorEndpoint(t *testing.T) {
	ts := newTestServer(t)

	var body monitorResponse
	status := getJSON(t, ts.URL+"/api/monitor", &body)

	assert.Equal(t, http.StatusOK, status)
	assert.Len(t, body.Pools, 2)
	assert.Len(t, body.TrackedPools, 2)
	assert.Equal(t, 2, body.CacheStats.Size)

	var filtered monitorResponse
	status = getJSON(t, ts.URL+"/api/monitor?pools=raydium:rich", &filtered)
	assert.Equal(t, http.StatusOK, status)
	require.Len(t, filtered.Pools, 1)
	assert.Equal(t, "raydium:rich", filtered.Pools[0].ID)

	status = getJSON(t, ts.URL+"/api/monitor?pools=unknown:pool", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestPredictEndpoint(t *testing.T) {
	ts := newTestServer(t)

	var body predictReportResponse
	status := getJSON(t, ts.URL+"/api/predict?pools=raydium:rich&timeHorizon=120", &body)
	assert.Equal(t, http.StatusOK, status)
	require.Len(t, body.Predictions, 1)
	assert.Equal(t, "raydium:rich", body.Predictions[0].PoolID)
	assert.Equal(t, "flat", body.Predictions[0].Direction)
	assert.Equal(t, 120, body.Predictions[0].HorizonSeconds)

	var all predictReportResponse
	status = getJSON(t, ts.URL+"/api/predict", &all)
	assert.Equal(t, http.StatusOK, status)
	assert.Len(t, all.Predictions, 2, "no filter predicts every tracked pool")

	status = getJSON(t, ts.URL+"/api/predict?pools=unknown:pool", nil)
	assert.Equal(t, http.StatusNotFound, status)

	status = getJSON(t, ts.URL+"/api/predict?timeHorizon=soon", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestSignalsEndpoint(t *testing.T) {
	ts := newTestServer(t)

	var body signalsResponse
	status := getJSON(t, ts.URL+"/api/signals", &body)

	assert.Equal(t, http.StatusOK, status)
	require.NotEmpty(t, body.Signals)
	assert.Equal(t, 1, body.Signals[0].Rank)
	assert.NotEmpty(t, body.Signals[0].RecommendedAction)
}

func TestOutcomesEndpoint(t *testing.T) {
	ts := newTestServer(t)

	var ops analysesResponse
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/opportunities", &ops))
	require.NotEmpty(t, ops.Analyses)

	payload, err := json.Marshal(map[string]any{
		"opportunity_id":  ops.Analyses[0].Opportunity.ID,
		"success":         true,
		"realized_profit": 0.5,
	})
	require.NoError(t, err)

	resp, err := http.Post(ts.URL+"/api/outcomes", "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	var created outcomeResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	assert.Positive(t, created.PatternID)

	var stats patternStatsResponse
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/patterns", &stats))
	assert.Equal(t, 1, stats.Count)
}

func TestOutcomesEndpoint_BadRequests(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Post(ts.URL+"/api/outcomes", "application/json", bytes.NewReader([]byte("{")))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	payload := []byte(`{"opportunity_id":"missing","success":true}`)
	resp, err = http.Post(ts.URL+"/api/outcomes", "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	status := getJSON(t, ts.URL+"/api/outcomes", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, status)
}

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer(t)

	var body healthResponse
	status := getJSON(t, ts.URL+"/health", &body)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "starting", body.Status)

	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/opportunities", nil))

	status = getJSON(t, ts.URL+"/health", &body)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, 2, body.TrackedPools)
}
