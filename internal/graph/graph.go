// Package graph builds a directed multigraph over the pool set and
// searches it for profitable swap cycles. Nodes are tokens indexed by
// small integers; each pool contributes two directed edges, one per
// swap direction, weighted by -ln(effective rate) so that a profitable
// cycle is exactly a negative-weight cycle.
package graph

import (
	"errors"
	"math"

	"github.com/krewdev/SealevelStudio4-sub007/internal/domain"
)

// ErrComputation marks an unexpected numeric failure during search.
// Fatal for the current request only.
var ErrComputation = errors.New("graph computation failed")

// Edge is one swap direction through one pool.
type Edge struct {
	From      int                  // source token index
	To        int                  // destination token index
	PoolID    string               // contributing pool
	Venue     domain.Venue         // hosting DEX
	Direction domain.SwapDirection // pair side consumed
	Rate      float64              // effective exchange rate after fees
	Weight    float64              // -ln(Rate)
	Fee       float64              // pool fee rate
}

// Graph is an adjacency-list token graph for one pool snapshot.
// Cycle search operates purely on token indices.
type Graph struct {
	tokens []string                // index -> mint
	index  map[string]int          // mint -> index
	adj    [][]Edge                // outgoing edges per token index
	pools  map[string]*domain.Pool // pool id -> snapshot
	edges  int
}

// Stats summarizes graph shape for reporting.
type Stats struct {
	Nodes int // distinct tokens
	Edges int // directed edges
	Pools int // pools contributing edges
}

// Build constructs the graph from a pool snapshot. Pools with a zero
// or near-zero reserve are excluded so no NaN/Inf rate can enter the
// edge set.
func Build(pools []*domain.Pool) *Graph {
	g := &Graph{
		index: make(map[string]int),
		pools: make(map[string]*domain.Pool),
	}

	for _, p := range pools {
		if !p.HasLiquidity() {
			continue
		}

		rateAB := p.SpotPrice() * (1 - p.FeeRate)
		rateBA := (p.ReserveA / p.ReserveB) * (1 - p.FeeRate)
		if !validRate(rateAB) || !validRate(rateBA) {
			continue
		}

		a := g.tokenIndex(p.TokenA.Mint)
		b := g.tokenIndex(p.TokenB.Mint)
		g.pools[p.ID] = p

		g.addEdge(Edge{
			From: a, To: b,
			PoolID:    p.ID,
			Venue:     p.Venue,
			Direction: domain.SwapAToB,
			Rate:      rateAB,
			Weight:    -math.Log(rateAB),
			Fee:       p.FeeRate,
		})
		g.addEdge(Edge{
			From: b, To: a,
			PoolID:    p.ID,
			Venue:     p.Venue,
			Direction: domain.SwapBToA,
			Rate:      rateBA,
			Weight:    -math.Log(rateBA),
			Fee:       p.FeeRate,
		})
	}

	return g
}

// validRate rejects zero, negative, and non-finite exchange rates.
func validRate(r float64) bool {
	return r > 0 && !math.IsInf(r, 0) && !math.IsNaN(r)
}

func (g *Graph) tokenIndex(mint string) int {
	if i, ok := g.index[mint]; ok {
		return i
	}
	i := len(g.tokens)
	g.tokens = append(g.tokens, mint)
	g.index[mint] = i
	g.adj = append(g.adj, nil)
	return i
}

func (g *Graph) addEdge(e Edge) {
	g.adj[e.From] = append(g.adj[e.From], e)
	g.edges++
}

// Stats returns node/edge/pool counts.
func (g *Graph) Stats() Stats {
	return Stats{
		Nodes: len(g.tokens),
		Edges: g.edges,
		Pools: len(g.pools),
	}
}

// TokenIndex returns the index for a mint, or -1 if absent.
func (g *Graph) TokenIndex(mint string) int {
	if i, ok := g.index[mint]; ok {
		return i
	}
	return -1
}

// Token returns the mint at an index.
func (g *Graph) Token(i int) string {
	return g.tokens[i]
}

// Pool returns the snapshot backing a pool id, or nil.
func (g *Graph) Pool(id string) *domain.Pool {
	return g.pools[id]
}

// Edges returns the outgoing edges of a token index.
func (g *Graph) Edges(i int) []Edge {
	return g.adj[i]
}

// NodeCount returns the number of distinct tokens.
func (g *Graph) NodeCount() int {
	return len(g.tokens)
}
