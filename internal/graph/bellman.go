package graph

import (
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/krewdev/SealevelStudio4-sub007/internal/domain"
)

// ErrUnknownToken is returned when the requested start token is not in
// the graph.
var ErrUnknownToken = errors.New("start token not present in pool graph")

// relaxEps guards against reporting cycles born of float rounding.
const relaxEps = 1e-12

// Detector performs bounded-depth negative-cycle search in log-rate
// space. Each edge weighs -ln(effective rate), so a cycle whose weight
// sum is negative compounds to a rate above 1: multiplicative profit
// search becomes additive shortest-path relaxation instead of
// brute-force path enumeration.
type Detector struct {
	config Config
	logger *log.Logger
}

// Config returns the detector's active parameters.
func (d *Detector) Config() Config {
	return d.config
}

// WithConfig derives a detector with per-request parameter overrides.
func (d *Detector) WithConfig(config Config) *Detector {
	return NewDetector(config, d.logger)
}

// NewDetector creates a graph cycle detector.
func NewDetector(config Config, logger *log.Logger) *Detector {
	return &Detector{
		config: config.normalize(),
		logger: logger,
	}
}

// FindCycles searches for profitable cycles reachable from startMint
// using Bellman-Ford relaxation bounded by MaxHops rounds. Cycles are
// deduplicated by sorted token set; cycles longer than MaxHops are
// discarded.
func (d *Detector) FindCycles(g *Graph, startMint string) ([]*domain.Opportunity, error) {
	src := g.TokenIndex(startMint)
	if src < 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownToken, startMint)
	}

	n := g.NodeCount()
	dist := make([]float64, n)
	pred := make([]Edge, n)
	hasPred := make([]bool, n)
	for i := range dist {
		dist[i] = math.Inf(1)
	}
	dist[src] = 0

	var allEdges []Edge
	for u := 0; u < n; u++ {
		allEdges = append(allEdges, g.Edges(u)...)
	}

	rounds := d.config.MaxHops
	if rounds > n {
		rounds = n
	}

	for round := 0; round < rounds; round++ {
		updated := false
		for _, e := range allEdges {
			if math.IsInf(dist[e.From], 1) {
				continue
			}
			if next := dist[e.From] + e.Weight; next < dist[e.To]-relaxEps {
				dist[e.To] = next
				pred[e.To] = e
				hasPred[e.To] = true
				updated = true
			}
		}
		if !updated {
			break
		}
	}

	now := time.Now()
	seen := make(map[string]bool)
	var out []*domain.Opportunity

	// Any edge still relaxable after the bounded rounds witnesses a
	// negative-weight cycle on its path.
	for _, e := range allEdges {
		if math.IsInf(dist[e.From], 1) {
			continue
		}
		if dist[e.From]+e.Weight >= dist[e.To]-relaxEps {
			continue
		}

		cycle, ok := d.traceCycle(e.From, pred, hasPred)
		if !ok {
			continue
		}

		key := cycleKey(g, cycle)
		if seen[key] {
			continue
		}
		if o := buildOpportunity(g, cycle, d.config, domain.SourceGraph, now); o != nil {
			seen[key] = true
			out = append(out, o)
		}
	}

	if len(out) > 0 {
		d.logger.Printf("graph scan from %s found %d cycles", startMint, len(out))
	}
	return out, nil
}

// traceCycle walks predecessor edges back from a witness node until it
// closes a loop, returning the cycle in forward order. Returns false
// when the predecessor chain is broken or the cycle exceeds MaxHops.
func (d *Detector) traceCycle(witness int, pred []Edge, hasPred []bool) ([]Edge, bool) {
	// Step back MaxHops times to guarantee landing inside the cycle.
	x := witness
	for i := 0; i < d.config.MaxHops; i++ {
		if !hasPred[x] {
			return nil, false
		}
		x = pred[x].From
	}

	start := x
	var reversed []Edge
	for {
		if !hasPred[x] {
			return nil, false
		}
		e := pred[x]
		reversed = append(reversed, e)
		x = e.From
		if x == start {
			break
		}
		if len(reversed) > d.config.MaxHops {
			return nil, false
		}
	}
	if len(reversed) > d.config.MaxHops {
		return nil, false
	}

	cycle := make([]Edge, len(reversed))
	for i, e := range reversed {
		cycle[len(reversed)-1-i] = e
	}
	return cycle, true
}
