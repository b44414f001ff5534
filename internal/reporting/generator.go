package reporting

import (
	"context"
	"sort"
	"time"

	"github.com/krewdev/SealevelStudio4-sub007/internal/domain"
	"github.com/krewdev/SealevelStudio4-sub007/internal/storage"
)

// TopRows bounds the best-opportunities table.
const TopRows = 10

// Generator produces reports from the opportunity archive.
type Generator struct {
	archive storage.OpportunityArchive
	now     func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a report generator.
func NewGenerator(archive storage.OpportunityArchive) *Generator {
	return &Generator{
		archive: archive,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate aggregates archived opportunities created within
// [start, end] (Unix ms, inclusive).
func (g *Generator) Generate(ctx context.Context, start, end int64) (*Report, error) {
	records, err := g.archive.GetByTimeRange(ctx, start, end)
	if err != nil {
		return nil, err
	}

	return &Report{
		GeneratedAt: g.now(),
		WindowStart: start,
		WindowEnd:   end,
		Summary:     summarize(records),
		Sources:     sourceRows(records),
		Routes:      routeRows(records),
		Top:         topOpportunities(records),
	}, nil
}

func summarize(records []*domain.OpportunityRecord) DataSummary {
	s := DataSummary{TotalOpportunities: len(records)}
	if len(records) == 0 {
		return s
	}

	sources := make(map[domain.OpportunitySource]struct{})
	tokens := make(map[string]struct{})
	s.FirstCreatedAt = records[0].CreatedAt
	s.LastCreatedAt = records[0].CreatedAt
	for _, r := range records {
		sources[r.Source] = struct{}{}
		tokens[r.StartToken] = struct{}{}
		if r.CreatedAt < s.FirstCreatedAt {
			s.FirstCreatedAt = r.CreatedAt
		}
		if r.CreatedAt > s.LastCreatedAt {
			s.LastCreatedAt = r.CreatedAt
		}
	}
	s.SourceCount = len(sources)
	s.StartTokenCount = len(tokens)
	return s
}

func sourceRows(records []*domain.OpportunityRecord) []SourceRow {
	bySource := make(map[string][]*domain.OpportunityRecord)
	for _, r := range records {
		bySource[string(r.Source)] = append(bySource[string(r.Source)], r)
	}

	rows := make([]SourceRow, 0, len(bySource))
	for source, group := range bySource {
		profits := make([]float64, len(group))
		confSum := 0.0
		for i, r := range group {
			profits[i] = r.ProfitPct
			confSum += r.Confidence
		}
		sort.Float64s(profits)

		rows = append(rows, SourceRow{
			Source:          source,
			Count:           len(group),
			ProfitPctMean:   mean(profits),
			ProfitPctMedian: percentile(profits, 0.5),
			ProfitPctP10:    percentile(profits, 0.1),
			ProfitPctP90:    percentile(profits, 0.9),
			ConfidenceMean:  confSum / float64(len(group)),
		})
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].Source < rows[j].Source })
	return rows
}

func routeRows(records []*domain.OpportunityRecord) []RouteLengthRow {
	byHops := make(map[int][]float64)
	for _, r := range records {
		byHops[r.Hops] = append(byHops[r.Hops], r.ProfitPct)
	}

	rows := make([]RouteLengthRow, 0, len(byHops))
	for hops, profits := range byHops {
		rows = append(rows, RouteLengthRow{
			Hops:          hops,
			Count:         len(profits),
			ProfitPctMean: mean(profits),
		})
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].Hops < rows[j].Hops })
	return rows
}

func topOpportunities(records []*domain.OpportunityRecord) []TopOpportunityRow {
	sorted := make([]*domain.OpportunityRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ProfitPct > sorted[j].ProfitPct
	})
	if len(sorted) > TopRows {
		sorted = sorted[:TopRows]
	}

	rows := make([]TopOpportunityRow, len(sorted))
	for i, r := range sorted {
		rows[i] = TopOpportunityRow{
			ID:         r.ID,
			Source:     string(r.Source),
			StartToken: r.StartToken,
			Hops:       r.Hops,
			ProfitPct:  r.ProfitPct,
			Confidence: r.Confidence,
			CreatedAt:  r.CreatedAt,
		}
	}
	return rows
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// percentile linearly interpolates over a sorted slice.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := p * float64(len(sorted)-1)
	lo := int(rank)
	hi := lo + 1
	if hi >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	frac := rank - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
