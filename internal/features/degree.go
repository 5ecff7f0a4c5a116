package features

import (
	"github.com/opensource-finance/muleguard/internal/domain"
	"github.com/opensource-finance/muleguard/internal/graphbuilder"
)

// extractDegreeAndAmounts fills in_degree/out_degree, total in/out
// amounts, and the fan-in/fan-out flags (spec.md §4.2.1).
func extractDegreeAndAmounts(g *graphbuilder.Graph, cfg domain.PipelineConfig, b *Bundle) {
	for _, id := range g.Nodes() {
		acc := b.Accounts[id]
		acc.InDegree = g.InDegree(id)
		acc.OutDegree = g.OutDegree(id)

		for _, sender := range g.InNeighbors(id) {
			e, _ := g.Edge(sender, id)
			acc.TotalInAmount += e.TotalAmount
		}
		for _, receiver := range g.OutNeighbors(id) {
			e, _ := g.Edge(id, receiver)
			acc.TotalOutAmount += e.TotalAmount
		}

		acc.FanInFlag = acc.InDegree >= cfg.FanInMinIn && acc.OutDegree <= cfg.FanInMaxOut
		acc.FanOutFlag = acc.OutDegree >= cfg.FanOutMinOut && acc.InDegree <= cfg.FanOutMaxIn
	}
}

// extractForwardingRatios computes, for every account with at least
// one out-neighbor, the fraction of its recipients that themselves
// forward funds onward (have at least one out-neighbor). Used by the
// payroll suppression rule.
func extractForwardingRatios(g *graphbuilder.Graph, b *Bundle) {
	for _, id := range g.Nodes() {
		recipients := g.OutNeighbors(id)
		if len(recipients) == 0 {
			continue
		}
		forwarders := 0
		for _, r := range recipients {
			if g.OutDegree(r) > 0 {
				forwarders++
			}
		}
		b.ForwardingRatio[id] = float64(forwarders) / float64(len(recipients))
	}
}
