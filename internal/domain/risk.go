package domain

// CompetitionLevel buckets expected searcher competition for a route.
type CompetitionLevel string

// Competition levels.
const (
	CompetitionLow    CompetitionLevel = "low"
	CompetitionMedium CompetitionLevel = "medium"
	CompetitionHigh   CompetitionLevel = "high"
)

// RiskAssessment scores an opportunity for execution risk.
// Derived per request, never persisted.
type RiskAssessment struct {
	Opportunity          *Opportunity     // assessed opportunity
	RiskScore            float64          // combined risk in [0,1], higher is riskier
	ExecutionProbability float64          // estimated landing probability in [0,1]
	CompetitionLevel     CompetitionLevel // expected searcher competition
	LiquidityRisk        float64          // depth component in [0,1]
	RouteRisk            float64          // hop-count component in [0,1]
}
