package graph

import (
	"log"
	"time"

	"github.com/krewdev/SealevelStudio4-sub007/internal/domain"
)

// SimpleDetector enumerates short cycles (2-3 hops) directly from
// adjacency. It trades completeness for latency and serves the quick
// scan path; deeper routes belong to Detector.
type SimpleDetector struct {
	config Config
	logger *log.Logger
}

// NewSimpleDetector creates a short-cycle detector.
func NewSimpleDetector(config Config, logger *log.Logger) *SimpleDetector {
	return &SimpleDetector{
		config: config.normalize(),
		logger: logger,
	}
}

// Detect returns all profitable 2- and 3-hop cycles in the graph,
// deduplicated by token set.
func (d *SimpleDetector) Detect(g *Graph) []*domain.Opportunity {
	now := time.Now()
	seen := make(map[string]bool)
	var out []*domain.Opportunity

	report := func(edges []Edge) {
		key := cycleKey(g, edges)
		if seen[key] {
			return
		}
		if o := buildOpportunity(g, edges, d.config, domain.SourceSimple, now); o != nil {
			seen[key] = true
			out = append(out, o)
		}
	}

	for u := 0; u < g.NodeCount(); u++ {
		for _, e1 := range g.Edges(u) {
			v := e1.To
			if v == u {
				continue
			}

			// 2-hop: back to u through a different pool
			for _, e2 := range g.Edges(v) {
				if e2.To != u || e2.PoolID == e1.PoolID {
					continue
				}
				report([]Edge{e1, e2})
			}

			// 3-hop: u -> v -> w -> u over three distinct pools
			for _, e2 := range g.Edges(v) {
				w := e2.To
				if w == u || w == v || e2.PoolID == e1.PoolID {
					continue
				}
				for _, e3 := range g.Edges(w) {
					if e3.To != u || e3.PoolID == e1.PoolID || e3.PoolID == e2.PoolID {
						continue
					}
					report([]Edge{e1, e2, e3})
				}
			}
		}
	}

	if len(out) > 0 {
		d.logger.Printf("simple scan found %d cycles over %d tokens", len(out), g.NodeCount())
	}
	return out
}
