package server

import (
	"github.com/krewdev/SealevelStudio4-sub007/internal/domain"
	"github.com/krewdev/SealevelStudio4-sub007/internal/service"
)

type stepResponse struct {
	PoolID    string  `json:"pool_id"`
	Venue     string  `json:"venue"`
	Direction string  `json:"direction"`
	TokenIn   string  `json:"token_in"`
	TokenOut  string  `json:"token_out"`
	Rate      float64 `json:"rate"`
}

type opportunityResponse struct {
	ID           string         `json:"id"`
	Source       string         `json:"source"`
	Steps        []stepResponse `json:"steps"`
	InputAmount  float64        `json:"input_amount"`
	OutputAmount float64        `json:"output_amount"`
	Profit       float64        `json:"profit"`
	ProfitPct    float64        `json:"profit_pct"`
	Confidence   float64        `json:"confidence"`
	CreatedAt    int64          `json:"created_at"`
	ExpiresAt    int64          `json:"expires_at"`
}

type analysisResponse struct {
	Opportunity          opportunityResponse `json:"opportunity"`
	RiskScore            float64             `json:"risk_score"`
	ExecutionProbability float64             `json:"execution_probability"`
	CompetitionLevel     string              `json:"competition_level"`
	LiquidityRisk        float64             `json:"liquidity_risk"`
	RouteRisk            float64             `json:"route_risk"`
}

type analysesResponse struct {
	Analyses    []analysisResponse `json:"analyses"`
	PoolCount   int                `json:"pool_count"`
	FromCache   bool               `json:"from_cache"`
	GeneratedAt int64              `json:"generated_at"`
}

func toOpportunity(o *domain.Opportunity) opportunityResponse {
	steps := make([]stepResponse, len(o.Steps))
	for i, st := range o.Steps {
		steps[i] = stepResponse{
			PoolID:    st.PoolID,
			Venue:     string(st.Venue),
			Direction: string(st.Direction),
			TokenIn:   st.TokenIn,
			TokenOut:  st.TokenOut,
			Rate:      st.Rate,
		}
	}
	return opportunityResponse{
		ID:           o.ID,
		Source:       string(o.Source),
		Steps:        steps,
		InputAmount:  o.InputAmount,
		OutputAmount: o.OutputAmount,
		Profit:       o.Profit,
		ProfitPct:    o.ProfitPct,
		Confidence:   o.Confidence,
		CreatedAt:    o.CreatedAt,
		ExpiresAt:    o.ExpiresAt,
	}
}

func toAnalysesResponse(report *service.AnalysisReport) analysesResponse {
	out := analysesResponse{
		Analyses:    make([]analysisResponse, len(report.Analyses)),
		PoolCount:   report.PoolCount,
		FromCache:   report.FromCache,
		GeneratedAt: report.GeneratedAt,
	}
	for i, a := range report.Analyses {
		out.Analyses[i] = analysisResponse{
			Opportunity:          toOpportunity(a.Opportunity),
			RiskScore:            a.RiskScore,
			ExecutionProbability: a.ExecutionProbability,
			CompetitionLevel:     string(a.CompetitionLevel),
			LiquidityRisk:        a.LiquidityRisk,
			RouteRisk:            a.RouteRisk,
		}
	}
	return out
}

type venueStatusResponse struct {
	Venue      string `json:"venue"`
	OK         bool   `json:"ok"`
	PoolCount  int    `json:"pool_count"`
	Error      string `json:"error,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

type graphResponse struct {
	Opportunities []opportunityResponse `json:"opportunities"`
	Nodes         int                   `json:"nodes"`
	Edges         int                   `json:"edges"`
	Pools         int                   `json:"pools"`
	PoolCount     int                   `json:"pool_count"`
	Venues        []venueStatusResponse `json:"venues"`
	FromCache     bool                  `json:"from_cache"`
	ScannedAt     int64                 `json:"scanned_at"`
}

func toGraphResponse(report *service.GraphReport) graphResponse {
	out := graphResponse{
		Opportunities: make([]opportunityResponse, len(report.Opportunities)),
		Nodes:         report.Stats.Nodes,
		Edges:         report.Stats.Edges,
		Pools:         report.Stats.Pools,
		PoolCount:     report.PoolCount,
		FromCache:     report.FromCache,
		ScannedAt:     report.ScannedAt,
	}
	for i, o := range report.Opportunities {
		out.Opportunities[i] = toOpportunity(o)
	}
	for venue, status := range report.Venues {
		out.Venues = append(out.Venues, venueStatusResponse{
			Venue:      string(venue),
			OK:         status.OK,
			PoolCount:  status.PoolCount,
			Error:      status.Error,
			DurationMs: status.Duration.Milliseconds(),
		})
	}
	return out
}

type anomalyResponse struct {
	PoolID    string  `json:"pool_id"`
	Metric    string  `json:"metric"`
	Value     float64 `json:"value"`
	Mean      float64 `json:"mean"`
	ZScore    float64 `json:"z_score"`
	Timestamp int64   `json:"timestamp"`
}

type cacheStatsResponse struct {
	Hits        uint64 `json:"hits"`
	Misses      uint64 `json:"misses"`
	Expirations uint64 `json:"expirations"`
	Evictions   uint64 `json:"evictions"`
	Size        int    `json:"size"`
	Capacity    int    `json:"capacity"`
}

type poolResponse struct {
	ID        string  `json:"id"`
	Venue     string  `json:"venue"`
	Address   string  `json:"address"`
	TokenA    string  `json:"token_a"`
	TokenB    string  `json:"token_b"`
	ReserveA  float64 `json:"reserve_a"`
	ReserveB  float64 `json:"reserve_b"`
	FeeRate   float64 `json:"fee_rate"`
	Price     float64 `json:"price"`
	Volume24h float64 `json:"volume_24h"`
	UpdatedAt int64   `json:"updated_at"`
}

func toPool(p *domain.Pool) poolResponse {
	return poolResponse{
		ID:        p.ID,
		Venue:     string(p.Venue),
		Address:   p.Address,
		TokenA:    p.TokenA.Symbol,
		TokenB:    p.TokenB.Symbol,
		ReserveA:  p.ReserveA,
		ReserveB:  p.ReserveB,
		FeeRate:   p.FeeRate,
		Price:     p.Price,
		Volume24h: p.Volume24h,
		UpdatedAt: p.UpdatedAt,
	}
}

type monitorResponse struct {
	Pools        []poolResponse     `json:"pools"`
	FromCache    bool               `json:"from_cache"`
	Anomalies    []anomalyResponse  `json:"anomalies"`
	TrackedPools []string           `json:"tracked_pools"`
	CacheStats   cacheStatsResponse `json:"cache_stats"`
	GeneratedAt  int64              `json:"generated_at"`
}

func toMonitorResponse(report *service.MonitorReport) monitorResponse {
	out := monitorResponse{
		Pools:        make([]poolResponse, len(report.Pools)),
		FromCache:    report.FromCache,
		Anomalies:    make([]anomalyResponse, len(report.Anomalies)),
		TrackedPools: report.TrackedPools,
		CacheStats: cacheStatsResponse{
			Hits:        report.CacheStats.Hits,
			Misses:      report.CacheStats.Misses,
			Expirations: report.CacheStats.Expirations,
			Evictions:   report.CacheStats.Evictions,
			Size:        report.CacheStats.Size,
			Capacity:    report.CacheStats.Capacity,
		},
		GeneratedAt: report.GeneratedAt,
	}
	for i, p := range report.Pools {
		out.Pools[i] = toPool(p)
	}
	for i, a := range report.Anomalies {
		out.Anomalies[i] = anomalyResponse{
			PoolID:    a.PoolID,
			Metric:    string(a.Metric),
			Value:     a.Value,
			Mean:      a.Mean,
			ZScore:    a.ZScore,
			Timestamp: a.Timestamp,
		}
	}
	return out
}

type predictionResponse struct {
	PoolID          string  `json:"pool_id"`
	HorizonSeconds  int     `json:"horizon_seconds"`
	Direction       string  `json:"direction"`
	Confidence      float64 `json:"confidence"`
	ExpectedMovePct float64 `json:"expected_move_pct"`
	SampleCount     int     `json:"sample_count"`
}

type predictReportResponse struct {
	Predictions []predictionResponse `json:"predictions"`
	Anomalies   []anomalyResponse    `json:"anomalies"`
	GeneratedAt int64                `json:"generated_at"`
}

func toPredictReportResponse(report *service.PredictReport) predictReportResponse {
	out := predictReportResponse{
		Predictions: make([]predictionResponse, len(report.Predictions)),
		Anomalies:   make([]anomalyResponse, len(report.Anomalies)),
		GeneratedAt: report.GeneratedAt,
	}
	for i, p := range report.Predictions {
		out.Predictions[i] = predictionResponse{
			PoolID:          p.PoolID,
			HorizonSeconds:  p.HorizonSeconds,
			Direction:       string(p.Direction),
			Confidence:      p.Confidence,
			ExpectedMovePct: p.ExpectedMovePct,
			SampleCount:     p.SampleCount,
		}
	}
	for i, a := range report.Anomalies {
		out.Anomalies[i] = anomalyResponse{
			PoolID:    a.PoolID,
			Metric:    string(a.Metric),
			Value:     a.Value,
			Mean:      a.Mean,
			ZScore:    a.ZScore,
			Timestamp: a.Timestamp,
		}
	}
	return out
}

type signalResponse struct {
	Opportunity          opportunityResponse `json:"opportunity"`
	CompositeScore       float64             `json:"composite_score"`
	Rank                 int                 `json:"rank"`
	RiskScore            float64             `json:"risk_score"`
	ExecutionProbability float64             `json:"execution_probability"`
	CompetitionLevel     string              `json:"competition_level"`
	TimeSensitivity      string              `json:"time_sensitivity"`
	RecommendedAction    string              `json:"recommended_action"`
	Reasons              []string            `json:"reasons,omitempty"`
}

type signalsResponse struct {
	Signals []signalResponse `json:"signals"`
}

func toSignalsResponse(signals []*domain.Signal) signalsResponse {
	out := signalsResponse{Signals: make([]signalResponse, len(signals))}
	for i, s := range signals {
		out.Signals[i] = signalResponse{
			Opportunity:          toOpportunity(s.Opportunity),
			CompositeScore:       s.CompositeScore,
			Rank:                 s.Rank,
			RiskScore:            s.Assessment.RiskScore,
			ExecutionProbability: s.Assessment.ExecutionProbability,
			CompetitionLevel:     string(s.Assessment.CompetitionLevel),
			TimeSensitivity:      string(s.TimeSensitivity),
			RecommendedAction:    string(s.RecommendedAction),
			Reasons:              s.Reasons,
		}
	}
	return out
}

type patternStatsResponse struct {
	Count       int     `json:"count"`
	Capacity    int     `json:"capacity"`
	SuccessRate float64 `json:"success_rate"`
}

type healthResponse struct {
	Status       string                `json:"status"`
	LastScanAt   int64                 `json:"last_scan_at"`
	TrackedPools int                   `json:"tracked_pools"`
	CacheStats   cacheStatsResponse    `json:"cache_stats"`
	Venues       []venueStatusResponse `json:"venues,omitempty"`
}

func toHealthResponse(h *service.Health) healthResponse {
	out := healthResponse{
		Status:       h.Status,
		LastScanAt:   h.LastScanAt,
		TrackedPools: h.TrackedPools,
		CacheStats: cacheStatsResponse{
			Hits:        h.CacheStats.Hits,
			Misses:      h.CacheStats.Misses,
			Expirations: h.CacheStats.Expirations,
			Evictions:   h.CacheStats.Evictions,
			Size:        h.CacheStats.Size,
			Capacity:    h.CacheStats.Capacity,
		},
	}
	for venue, status := range h.Venues {
		out.Venues = append(out.Venues, venueStatusResponse{
			Venue:      string(venue),
			OK:         status.OK,
			PoolCount:  status.PoolCount,
			Error:      status.Error,
			DurationMs: status.Duration.Milliseconds(),
		})
	}
	return out
}
