// Package reporting aggregates archived opportunities into offline
// markdown and CSV reports.
package reporting

import "time"

// Report summarizes one time window of the opportunity archive.
type Report struct {
	GeneratedAt time.Time
	WindowStart int64 // Unix ms
	WindowEnd   int64 // Unix ms

	Summary DataSummary

	// Sources is sorted by source name.
	Sources []SourceRow

	// Routes is sorted by hop count.
	Routes []RouteLengthRow

	// Top holds the best archived opportunities by profit percentage.
	Top []TopOpportunityRow
}

// DataSummary describes the archived window.
type DataSummary struct {
	TotalOpportunities int
	SourceCount        int
	StartTokenCount    int
	FirstCreatedAt     int64 // Unix ms, 0 when empty
	LastCreatedAt      int64 // Unix ms, 0 when empty
}

// SourceRow aggregates one detection source.
type SourceRow struct {
	Source          string
	Count           int
	ProfitPctMean   float64
	ProfitPctMedian float64
	ProfitPctP10    float64
	ProfitPctP90    float64
	ConfidenceMean  float64
}

// RouteLengthRow aggregates opportunities sharing a hop count.
type RouteLengthRow struct {
	Hops          int
	Count         int
	ProfitPctMean float64
}

// TopOpportunityRow is one of the best archived opportunities.
type TopOpportunityRow struct {
	ID         string
	Source     string
	StartToken string
	Hops       int
	ProfitPct  float64
	Confidence float64
	CreatedAt  int64
}
