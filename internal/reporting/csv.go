package reporting

import (
	"fmt"
	"strings"
)

// RenderCSV renders the per-source aggregate rows as a CSV string.
func RenderCSV(rows []SourceRow) string {
	var sb strings.Builder

	sb.WriteString("source,count,profit_pct_mean,profit_pct_median,profit_pct_p10,profit_pct_p90,confidence_mean\n")

	for _, row := range rows {
		sb.WriteString(fmt.Sprintf("%s,%d,%.6f,%.6f,%.6f,%.6f,%.6f\n",
			row.Source,
			row.Count,
			row.ProfitPctMean,
			row.ProfitPctMedian,
			row.ProfitPctP10,
			row.ProfitPctP90,
			row.ConfidenceMean,
		))
	}

	return sb.String()
}
