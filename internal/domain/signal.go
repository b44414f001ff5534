package domain

// TimeSensitivity classes remaining time-to-expiry.
type TimeSensitivity string

// Time sensitivity classes.
const (
	SensitivityCritical TimeSensitivity = "critical" // <10s remaining
	SensitivityHigh     TimeSensitivity = "high"     // <30s remaining
	SensitivityMedium   TimeSensitivity = "medium"   // <60s remaining
	SensitivityLow      TimeSensitivity = "low"      // >=60s remaining
)

// RecommendedAction is the prioritizer's verdict for a signal.
type RecommendedAction string

// Recommended actions.
const (
	ActionExecuteNow  RecommendedAction = "execute_immediately"
	ActionExecuteSoon RecommendedAction = "execute_soon"
	ActionMonitor     RecommendedAction = "monitor"
	ActionSkip        RecommendedAction = "skip"
)

// Signal is a fully scored, ranked arbitrage signal.
type Signal struct {
	Opportunity       *Opportunity      // underlying opportunity
	Assessment        *RiskAssessment   // risk scoring inputs
	CompositeScore    float64           // weighted score in [0,1]
	Rank              int               // 1-based position after sorting
	TimeSensitivity   TimeSensitivity   // derived from time-to-expiry
	RecommendedAction RecommendedAction // derived from score and sensitivity
	Reasons           []string          // human-readable scoring tags
}
