// Package main runs the arbitrage signal server: venue scanning,
// opportunity detection, risk scoring, and ranked signals over HTTP.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	ossignal "os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/krewdev/SealevelStudio4-sub007/internal/analytics"
	"github.com/krewdev/SealevelStudio4-sub007/internal/domain"
	"github.com/krewdev/SealevelStudio4-sub007/internal/fetcher"
	"github.com/krewdev/SealevelStudio4-sub007/internal/graph"
	"github.com/krewdev/SealevelStudio4-sub007/internal/observability"
	"github.com/krewdev/SealevelStudio4-sub007/internal/pattern"
	"github.com/krewdev/SealevelStudio4-sub007/internal/poolcache"
	"github.com/krewdev/SealevelStudio4-sub007/internal/risk"
	"github.com/krewdev/SealevelStudio4-sub007/internal/scanner"
	"github.com/krewdev/SealevelStudio4-sub007/internal/server"
	"github.com/krewdev/SealevelStudio4-sub007/internal/service"
	"github.com/krewdev/SealevelStudio4-sub007/internal/signal"
	"github.com/krewdev/SealevelStudio4-sub007/internal/solana"
	"github.com/krewdev/SealevelStudio4-sub007/internal/storage"
	chstore "github.com/krewdev/SealevelStudio4-sub007/internal/storage/clickhouse"
	"github.com/krewdev/SealevelStudio4-sub007/internal/storage/memory"
	"github.com/krewdev/SealevelStudio4-sub007/internal/storage/migrations"
	pgstore "github.com/krewdev/SealevelStudio4-sub007/internal/storage/postgres"
)

func main() {
	// Load .env if present; real env vars win.
	_ = godotenv.Load()

	rpcEndpoint := flag.String("rpc-endpoint", os.Getenv("SOLANA_RPC_ENDPOINT"), "Solana RPC HTTP endpoint")
	wsEndpoint := flag.String("ws-endpoint", os.Getenv("SOLANA_WS_ENDPOINT"), "Solana WebSocket endpoint (optional, enables push invalidation)")
	poolsPath := flag.String("pools", envOr("POOL_CONFIG", "pools.json"), "Path to the pool watchlist JSON")
	listenAddr := flag.String("listen-addr", envOr("LISTEN_ADDR", ":8080"), "HTTP listen address")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL DSN for pattern persistence (optional)")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse DSN for the opportunity archive (optional)")

	startMints := flag.String("start-mints", domain.MintWSOL+","+domain.MintUSDC, "Comma-separated mints cycle search starts from")
	maxHops := flag.Int("max-hops", 4, "Maximum swaps per arbitrage cycle")
	minProfitPct := flag.Float64("min-profit-pct", 0.1, "Minimum profit percentage to report")
	inputAmount := flag.Float64("input-amount", 1.0, "Reference trade size in start-token units")
	patternCap := flag.Int("pattern-capacity", 1000, "Pattern repository capacity")
	congestion := flag.Float64("congestion", 0, "Network congestion signal in [0,1]")
	competition := flag.Float64("competition", 0, "Competitor activity signal in [0,1]")

	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)

	if *rpcEndpoint == "" {
		logger.Fatal("--rpc-endpoint is required")
	}

	watchlist, err := loadWatchlist(*poolsPath)
	if err != nil {
		logger.Fatalf("Failed to load pool watchlist: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Storage: Postgres-backed patterns and ClickHouse archive are both
	// optional; the pipeline runs fully in memory without them.
	patternStore, archive, cleanup, err := createStores(ctx, *postgresDSN, *clickhouseDSN, *patternCap, logger)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	reader := solana.NewHTTPClient(*rpcEndpoint,
		solana.WithTimeout(10*time.Second),
		solana.WithMaxRetries(3),
	)

	registry := fetcher.NewRegistry()
	if len(watchlist.Raydium) > 0 {
		registry.Register(fetcher.NewRaydiumFetcher(reader, watchlist.Raydium, logger))
	}
	if len(watchlist.Orca) > 0 {
		registry.Register(fetcher.NewOrcaFetcher(reader, watchlist.Orca, logger))
	}
	if len(watchlist.Meteora) > 0 {
		registry.Register(fetcher.NewMeteoraFetcher(reader, watchlist.Meteora, logger))
	}
	if len(registry.All()) == 0 {
		logger.Fatal("Pool watchlist configures no venues")
	}

	detectCfg := graph.DefaultConfig()
	detectCfg.MaxHops = *maxHops
	detectCfg.MinProfitPct = *minProfitPct
	detectCfg.InputAmount = *inputAmount

	prioritizer, err := signal.New(signal.DefaultConfig(), logger)
	if err != nil {
		logger.Fatalf("Failed to create prioritizer: %v", err)
	}

	svc := service.New(service.Deps{
		Scanner:     scanner.New(registry, scanner.DefaultConfig(), logger),
		Cache:       poolcache.New(poolcache.DefaultConfig()),
		Simple:      graph.NewSimpleDetector(detectCfg, logger),
		Detector:    graph.NewDetector(detectCfg, logger),
		Peg:         graph.NewPegScanner(graph.DefaultPegConfig(), detectCfg, logger),
		Analyzer:    risk.New(risk.DefaultConfig(), logger),
		Monitor:     analytics.NewMonitor(analytics.DefaultConfig(), logger),
		Matcher:     pattern.NewMatcher(patternStore, pattern.DefaultConfig(), logger),
		Prioritizer: prioritizer,
		Archive:     archive,
	}, service.Config{
		StartMints: splitList(*startMints),
		RiskSignals: risk.Signals{
			NetworkCongestion:  *congestion,
			CompetitorActivity: *competition,
		},
	}, logger)

	// Push invalidation keeps hot pools fresh between scans.
	if *wsEndpoint != "" {
		go runFeed(ctx, *wsEndpoint, watchlist, svc, logger)
	}

	httpServer := &http.Server{
		Addr:    *listenAddr,
		Handler: server.New(svc, logger).Routes(),
	}

	done := make(chan error, 1)
	go func() {
		logger.Printf("Listening on %s", *listenAddr)
		done <- httpServer.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	ossignal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Printf("Received signal %v, shutting down", sig)
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Printf("Shutdown error: %v", err)
		}
	case err := <-done:
		if err != nil && err != http.ErrServerClosed {
			logger.Fatalf("HTTP server error: %v", err)
		}
	}

	logger.Println("Shutdown complete")
}

// Watchlist is the pool configuration file layout, keyed by venue.
type Watchlist struct {
	Raydium []fetcher.PoolConfig `json:"raydium"`
	Orca    []fetcher.PoolConfig `json:"orca"`
	Meteora []fetcher.PoolConfig `json:"meteora"`
}

// loadWatchlist reads and validates the pool watchlist JSON.
func loadWatchlist(path string) (*Watchlist, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var w Watchlist
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	for _, group := range [][]fetcher.PoolConfig{w.Raydium, w.Orca, w.Meteora} {
		for _, cfg := range group {
			if err := cfg.Validate(); err != nil {
				return nil, err
			}
		}
	}
	return &w, nil
}

// createStores builds the pattern store and archive from the DSNs.
func createStores(ctx context.Context, postgresDSN, clickhouseDSN string, patternCap int, logger *log.Logger) (storage.PatternStore, storage.OpportunityArchive, func(), error) {
	cleanups := []func(){}
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	var patternStore storage.PatternStore
	if postgresDSN != "" {
		pool, err := pgstore.NewPool(ctx, postgresDSN)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("connect to postgres: %w", err)
		}
		cleanups = append(cleanups, pool.Close)

		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			cleanup()
			return nil, nil, nil, fmt.Errorf("postgres migrations: %w", err)
		}
		patternStore = pgstore.NewPatternStore(pool, patternCap)
		logger.Println("Pattern store: postgres")
	} else {
		patternStore = memory.NewPatternStore(patternCap)
		logger.Println("Pattern store: in-memory")
	}

	var archive storage.OpportunityArchive
	if clickhouseDSN != "" {
		conn, err := chstore.NewConn(ctx, clickhouseDSN)
		if err != nil {
			cleanup()
			return nil, nil, nil, fmt.Errorf("connect to clickhouse: %w", err)
		}
		cleanups = append(cleanups, func() { conn.Close() })

		if err := migrations.RunClickhouseMigrations(ctx, conn); err != nil {
			cleanup()
			return nil, nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
		}
		archive = chstore.NewOpportunityArchive(conn)
		logger.Println("Opportunity archive: clickhouse")
	}

	return patternStore, archive, cleanup, nil
}

// runFeed subscribes to every watched pool account and invalidates the
// cache entry on each change notification.
func runFeed(ctx context.Context, endpoint string, watchlist *Watchlist, svc *service.Service, logger *log.Logger) {
	poolIDs := make(map[string]string)
	for _, cfg := range watchlist.Raydium {
		poolIDs[cfg.Address] = domain.PoolID(domain.VenueRaydium, cfg.Address)
	}
	for _, cfg := range watchlist.Orca {
		poolIDs[cfg.Address] = domain.PoolID(domain.VenueOrca, cfg.Address)
	}
	for _, cfg := range watchlist.Meteora {
		poolIDs[cfg.Address] = domain.PoolID(domain.VenueMeteora, cfg.Address)
	}

	ws, err := solana.NewWSClient(ctx, endpoint, nil)
	if err != nil {
		logger.Printf("WebSocket feed disabled: %v", err)
		return
	}
	defer ws.Close()

	notifications := make(chan solana.AccountNotification, 256)
	for address := range poolIDs {
		ch, err := ws.SubscribeAccount(ctx, address)
		if err != nil {
			logger.Printf("subscribe %s failed: %v", address, err)
			continue
		}
		go func() {
			for n := range ch {
				select {
				case notifications <- n:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	for {
		select {
		case <-ctx.Done():
			return
		case n := <-notifications:
			observability.RecordWSMessage()
			if id, ok := poolIDs[n.Address]; ok {
				svc.InvalidatePool(id)
			}
		}
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
