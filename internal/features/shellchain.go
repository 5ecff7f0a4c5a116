package features

import (
	"github.com/opensource-finance/muleguard/internal/domain"
	"github.com/opensource-finance/muleguard/internal/graphbuilder"
)

// extractShellChains implements spec.md §4.2.7. Candidate nodes have
// 2 <= in_degree+out_degree <= 3 with at least one neighbor in each
// direction. A candidate is flagged when a forward+backward walk
// through uniquely-chained, similarly low-degree intermediaries
// (total degree <= cfg.ShellMaxDegree) reaches a combined depth of at
// least cfg.ShellMinChainDepth, counting the candidate itself.
func extractShellChains(g *graphbuilder.Graph, cfg domain.PipelineConfig, b *Bundle) {
	for _, id := range g.Nodes() {
		inDeg := g.InDegree(id)
		outDeg := g.OutDegree(id)
		total := inDeg + outDeg
		if total < 2 || total > 3 || inDeg < 1 || outDeg < 1 {
			continue
		}

		forward := chainWalk(g, cfg, id, id, true, 0)
		backward := chainWalk(g, cfg, id, id, false, 0)

		if forward+backward+1 >= cfg.ShellMinChainDepth {
			b.Accounts[id].ShellFlag = true
		}
	}
}

// chainWalk follows a unique out-neighbor (forward=true) or unique
// in-neighbor (forward=false) chain of low-degree nodes, up to
// cfg.ShellMinChainDepth hops, and returns how many hops it managed.
func chainWalk(g *graphbuilder.Graph, cfg domain.PipelineConfig, origin, cur string, forward bool, depth int) int {
	if depth >= cfg.ShellMinChainDepth {
		return depth
	}

	var neighbors []string
	if forward {
		neighbors = g.OutNeighbors(cur)
	} else {
		neighbors = g.InNeighbors(cur)
	}
	if len(neighbors) != 1 {
		return depth
	}

	next := neighbors[0]
	if next == origin || next == cur {
		return depth
	}
	if g.InDegree(next)+g.OutDegree(next) > cfg.ShellMaxDegree {
		return depth
	}

	return chainWalk(g, cfg, origin, next, forward, depth+1)
}
