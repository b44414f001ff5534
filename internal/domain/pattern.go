package domain

// Fingerprint summarizes an opportunity's shape for similarity search.
type Fingerprint struct {
	RouteLength   int           // number of hops in the route
	FeeTotal      float64       // sum of pool fee rates along the route
	TokenCategory TokenCategory // category of the start token
	ProfitPct     float64       // estimated profit percentage
}

// HistoricalPattern pairs a fingerprint with a realized outcome.
// Append-only; the repository evicts oldest entries beyond capacity.
type HistoricalPattern struct {
	ID             int64       // assigned by the store, monotonically increasing
	Fingerprint    Fingerprint // opportunity shape at detection time
	Success        bool        // whether execution realized a profit
	RealizedProfit float64     // realized profit in start-token units
	RecordedAt     int64       // Unix timestamp in milliseconds
}

// PatternMatch is a stored pattern paired with its similarity to a
// query fingerprint.
type PatternMatch struct {
	Pattern    HistoricalPattern // matched historical entry
	Similarity float64           // bounded metric in [0,1]; identical vectors score 1
}

// PatternStats aggregates the pattern repository.
type PatternStats struct {
	Count       int     // stored patterns
	Capacity    int     // repository cap
	SuccessRate float64 // fraction of stored patterns with Success=true
}
