// Package main generates offline markdown and CSV reports from the
// opportunity archive.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"

	"github.com/krewdev/SealevelStudio4-sub007/internal/reporting"
	chstore "github.com/krewdev/SealevelStudio4-sub007/internal/storage/clickhouse"
)

func main() {
	_ = godotenv.Load()

	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse DSN for the opportunity archive")
	outputDir := flag.String("output-dir", "reports", "Output directory for generated files")
	window := flag.Duration("window", 24*time.Hour, "Report window ending now")
	flag.Parse()

	logger := log.New(os.Stdout, "[report] ", log.LstdFlags)

	if *clickhouseDSN == "" {
		logger.Fatal("--clickhouse-dsn is required")
	}

	ctx := context.Background()

	conn, err := chstore.NewConn(ctx, *clickhouseDSN)
	if err != nil {
		logger.Fatalf("Failed to connect to clickhouse: %v", err)
	}
	defer conn.Close()

	end := time.Now().UnixMilli()
	start := end - window.Milliseconds()

	report, err := reporting.NewGenerator(chstore.NewOpportunityArchive(conn)).Generate(ctx, start, end)
	if err != nil {
		logger.Fatalf("Failed to generate report: %v", err)
	}

	if err := os.MkdirAll(*outputDir, 0o755); err != nil {
		logger.Fatalf("Failed to create output directory: %v", err)
	}

	mdPath := filepath.Join(*outputDir, "opportunities.md")
	if err := os.WriteFile(mdPath, []byte(reporting.RenderMarkdown(report)), 0o644); err != nil {
		logger.Fatalf("Failed to write markdown: %v", err)
	}

	csvPath := filepath.Join(*outputDir, "opportunities.csv")
	if err := os.WriteFile(csvPath, []byte(reporting.RenderCSV(report.Sources)), 0o644); err != nil {
		logger.Fatalf("Failed to write CSV: %v", err)
	}

	logger.Printf("Report written: %s, %s (%d opportunities)", mdPath, csvPath, report.Summary.TotalOpportunities)
}
