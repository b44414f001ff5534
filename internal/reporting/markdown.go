package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders the report as a Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	sb.WriteString("# Opportunity Archive Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Window: %s to %s\n\n",
		time.UnixMilli(r.WindowStart).UTC().Format(time.RFC3339),
		time.UnixMilli(r.WindowEnd).UTC().Format(time.RFC3339)))

	sb.WriteString("## Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Total Opportunities | %d |\n", r.Summary.TotalOpportunities))
	sb.WriteString(fmt.Sprintf("| Sources | %d |\n", r.Summary.SourceCount))
	sb.WriteString(fmt.Sprintf("| Start Tokens | %d |\n", r.Summary.StartTokenCount))
	sb.WriteString(fmt.Sprintf("| First Created (ms) | %d |\n", r.Summary.FirstCreatedAt))
	sb.WriteString(fmt.Sprintf("| Last Created (ms) | %d |\n", r.Summary.LastCreatedAt))
	sb.WriteString("\n")

	if len(r.Sources) > 0 {
		sb.WriteString("## By Source\n\n")
		sb.WriteString("| Source | Count | Profit% Mean | Median | P10 | P90 | Confidence Mean |\n")
		sb.WriteString("|--------|-------|--------------|--------|-----|-----|------------------|\n")
		for _, row := range r.Sources {
			sb.WriteString(fmt.Sprintf("| %s | %d | %.4f | %.4f | %.4f | %.4f | %.4f |\n",
				row.Source, row.Count, row.ProfitPctMean, row.ProfitPctMedian,
				row.ProfitPctP10, row.ProfitPctP90, row.ConfidenceMean))
		}
		sb.WriteString("\n")
	}

	if len(r.Routes) > 0 {
		sb.WriteString("## By Route Length\n\n")
		sb.WriteString("| Hops | Count | Profit% Mean |\n")
		sb.WriteString("|------|-------|---------------|\n")
		for _, row := range r.Routes {
			sb.WriteString(fmt.Sprintf("| %d | %d | %.4f |\n", row.Hops, row.Count, row.ProfitPctMean))
		}
		sb.WriteString("\n")
	}

	if len(r.Top) > 0 {
		sb.WriteString("## Top Opportunities\n\n")
		sb.WriteString("| ID | Source | Start Token | Hops | Profit% | Confidence | Created (ms) |\n")
		sb.WriteString("|----|--------|-------------|------|---------|------------|---------------|\n")
		for _, row := range r.Top {
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %d | %.4f | %.4f | %d |\n",
				row.ID, row.Source, row.StartToken, row.Hops,
				row.ProfitPct, row.Confidence, row.CreatedAt))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}
