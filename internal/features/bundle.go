// Package features computes the seven feature families the scoring
// engine consumes (spec.md §4.2): degree/amount statistics, PageRank,
// betweenness centrality, bounded cycle enumeration, Louvain community
// detection, temporal smurfing, and shell-chain detection. Grounded on
// the extractor pipeline in the original `graph_features.py` service,
// reshaped into one fixed-schema record per account rather than an
// open property bag (see DESIGN.md).
package features

import (
	"github.com/opensource-finance/muleguard/internal/domain"
	"github.com/opensource-finance/muleguard/internal/graphbuilder"
)

// Cycle is one bounded simple directed cycle discovered by cycle
// enumeration, stored in an arena and referenced by id from each
// member account rather than through a direct node<->cycle pointer
// cycle.
type Cycle struct {
	ID      int
	Members []string // canonical order: starts at the minimum account id, follows the actual directed edges
}

// AccountCycleInfo aggregates everything the scoring engine needs
// about an account's cycle participation, without requiring it to
// walk the cycle arena itself.
type AccountCycleInfo struct {
	MembershipCount int
	MaxEdgeAmount   float64 // max total_amount among edges incident to this account within any of its cycles
	Validated       bool    // MembershipCount >= 2 OR MaxEdgeAmount > 1000
}

// Bundle is the complete output of feature extraction: one Account
// record per node plus the auxiliary structures (cycle arena, network
// means, forwarding ratios) the scoring engine needs but that don't
// belong on the per-node record.
type Bundle struct {
	Accounts map[string]*domain.Account

	Cycles          []Cycle
	CyclesTruncated bool
	CycleInfo       map[string]*AccountCycleInfo

	PageRankConverged bool
	PageRankMean      float64
	BetweennessMean   float64

	// ForwardingRatio[a] is the fraction of a's distinct out-neighbors
	// that themselves have out_degree > 0 ("forward funds onward"),
	// used by the payroll suppression rule. Defined only for accounts
	// with out_degree > 0.
	ForwardingRatio map[string]float64
}

// Extract runs all seven feature families over g and returns the
// completed Bundle. The only failure mode is an internal precondition
// violation (see pipelineerr.Internal); PageRank non-convergence and
// cycle-cap truncation are recorded on the Bundle, not returned as
// errors.
func Extract(g *graphbuilder.Graph, cfg domain.PipelineConfig) (*Bundle, error) {
	b := &Bundle{
		Accounts:        make(map[string]*domain.Account, g.NumNodes()),
		CycleInfo:       make(map[string]*AccountCycleInfo),
		ForwardingRatio: make(map[string]float64),
	}

	for _, id := range g.Nodes() {
		b.Accounts[id] = &domain.Account{ID: id}
	}

	extractDegreeAndAmounts(g, cfg, b)
	extractForwardingRatios(g, b)

	pr, converged := computePageRank(g, cfg)
	b.PageRankConverged = converged
	var prSum float64
	for id, v := range pr {
		b.Accounts[id].PageRank = v
		prSum += v
	}
	if len(pr) > 0 {
		b.PageRankMean = prSum / float64(len(pr))
	}

	bc := computeBetweenness(g, cfg)
	var bcSum float64
	for id, v := range bc {
		b.Accounts[id].Betweenness = v
		bcSum += v
	}
	if len(bc) > 0 {
		b.BetweennessMean = bcSum / float64(len(bc))
	}

	extractCycles(g, cfg, b)
	extractCommunities(g, b)
	extractSmurfingAndVelocity(g, cfg, b)
	extractShellChains(g, cfg, b)

	return b, nil
}
