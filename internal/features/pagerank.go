package features

import (
	"github.com/opensource-finance/muleguard/internal/domain"
	"github.com/opensource-finance/muleguard/internal/graphbuilder"
)

// computePageRank runs amount-weighted PageRank (spec.md §4.2.2): the
// random walk follows out-edges with probability proportional to
// total_amount, damping factor cfg.PageRankDamping, dangling nodes
// (no out-edges) redistribute their mass uniformly across all nodes.
// Returns the stationary distribution (summing to 1) and whether it
// converged within cfg.PageRankMaxIter iterations under cfg.PageRankTol
// (L1 norm of the per-iteration delta).
func computePageRank(g *graphbuilder.Graph, cfg domain.PipelineConfig) (map[string]float64, bool) {
	nodes := g.Nodes()
	n := len(nodes)
	if n == 0 {
		return map[string]float64{}, true
	}

	outWeight := make(map[string]float64, n)
	for _, u := range nodes {
		var w float64
		for _, v := range g.OutNeighbors(u) {
			e, _ := g.Edge(u, v)
			w += e.TotalAmount
		}
		outWeight[u] = w
	}

	pr := make(map[string]float64, n)
	init := 1.0 / float64(n)
	for _, u := range nodes {
		pr[u] = init
	}

	d := cfg.PageRankDamping
	converged := false

	for iter := 0; iter < cfg.PageRankMaxIter; iter++ {
		next := make(map[string]float64, n)
		base := (1 - d) / float64(n)
		for _, u := range nodes {
			next[u] = base
		}

		var danglingMass float64
		for _, u := range nodes {
			if outWeight[u] == 0 {
				danglingMass += pr[u]
			}
		}
		danglingShare := d * danglingMass / float64(n)
		for _, u := range nodes {
			next[u] += danglingShare
		}

		for _, u := range nodes {
			w := outWeight[u]
			if w == 0 {
				continue
			}
			contrib := d * pr[u] / w
			for _, v := range g.OutNeighbors(u) {
				e, _ := g.Edge(u, v)
				next[v] += contrib * e.TotalAmount
			}
		}

		var delta float64
		for _, u := range nodes {
			diff := next[u] - pr[u]
			if diff < 0 {
				diff = -diff
			}
			delta += diff
		}

		pr = next
		if delta < cfg.PageRankTol {
			converged = true
			break
		}
	}

	return pr, converged
}
