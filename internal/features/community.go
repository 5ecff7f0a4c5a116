package features

import (
	"sort"

	"github.com/opensource-finance/muleguard/internal/graphbuilder"
)

// extractCommunities runs single-level Louvain modularity optimization
// (spec.md §4.2.5) on the undirected projection of g: antiparallel
// pairs collapse to one edge weighted by the sum of both directions'
// total_amount. Iterates local node moves until a pass's modularity
// gain falls under 1e-4. Community ids are renumbered by the minimum
// member account id for run-to-run stability; singleton communities
// are left nil.
func extractCommunities(g *graphbuilder.Graph, b *Bundle) {
	nodes := g.Nodes()
	if len(nodes) == 0 {
		return
	}

	neighborWeight := make(map[string]map[string]float64, len(nodes))
	addWeight := func(u, v string, w float64) {
		if u == v {
			return
		}
		if neighborWeight[u] == nil {
			neighborWeight[u] = make(map[string]float64)
		}
		neighborWeight[u][v] += w
	}

	for _, u := range nodes {
		for _, v := range g.OutNeighbors(u) {
			edge, _ := g.Edge(u, v)
			addWeight(u, v, edge.TotalAmount)
			addWeight(v, u, edge.TotalAmount)
		}
	}

	nodeWeight := make(map[string]float64, len(nodes))
	var totalWeight float64 // 2m
	for _, u := range nodes {
		var w float64
		for _, nw := range neighborWeight[u] {
			w += nw
		}
		nodeWeight[u] = w
		totalWeight += w
	}
	m2 := totalWeight // sum of degrees == 2m
	if m2 == 0 {
		return // no edges in the projection; every node stays singleton
	}

	community := make(map[string]string, len(nodes))
	for _, u := range nodes {
		community[u] = u
	}
	sigmaTot := make(map[string]float64, len(nodes))
	for _, u := range nodes {
		sigmaTot[u] = nodeWeight[u]
	}

	modularity := func() float64 {
		var q float64
		for _, u := range nodes {
			for v, w := range neighborWeight[u] {
				if community[u] == community[v] {
					q += w
				}
			}
		}
		q /= m2
		for _, c := range communityTotals(nodes, community, nodeWeight) {
			q -= (c / m2) * (c / m2)
		}
		return q
	}

	prev := modularity()
	for pass := 0; pass < 100; pass++ {
		improved := false

		for _, u := range nodes {
			curC := community[u]
			sigmaTot[curC] -= nodeWeight[u]

			linkWeight := make(map[string]float64)
			for v, w := range neighborWeight[u] {
				linkWeight[community[v]] += w
			}

			// candidates in sorted order so equal-gain ties resolve the
			// same way on every run
			cands := make([]string, 0, len(linkWeight))
			for c := range linkWeight {
				cands = append(cands, c)
			}
			sort.Strings(cands)

			bestC := curC
			bestGain := linkWeight[curC] - nodeWeight[u]*sigmaTot[curC]/m2
			for _, c := range cands {
				gain := linkWeight[c] - nodeWeight[u]*sigmaTot[c]/m2
				if gain > bestGain+1e-12 {
					bestGain = gain
					bestC = c
				}
			}

			sigmaTot[bestC] += nodeWeight[u]
			if bestC != curC {
				community[u] = bestC
				improved = true
			}
		}

		cur := modularity()
		if !improved || cur-prev < 1e-4 {
			prev = cur
			break
		}
		prev = cur
	}

	// renumber communities by minimum member id; singletons get nil
	members := make(map[string][]string)
	for _, u := range nodes {
		c := community[u]
		members[c] = append(members[c], u)
	}

	var roots []string
	for c := range members {
		roots = append(roots, c)
	}
	sort.Slice(roots, func(i, j int) bool {
		return minString(members[roots[i]]) < minString(members[roots[j]])
	})

	id := 0
	for _, c := range roots {
		ms := members[c]
		if len(ms) < 2 {
			continue
		}
		cid := id
		for _, u := range ms {
			b.Accounts[u].CommunityID = &cid
		}
		id++
	}
}

func communityTotals(nodes []string, community map[string]string, nodeWeight map[string]float64) []float64 {
	totals := make(map[string]float64)
	for _, u := range nodes {
		totals[community[u]] += nodeWeight[u]
	}
	out := make([]float64, 0, len(totals))
	for _, v := range totals {
		out = append(out, v)
	}
	return out
}

func minString(ss []string) string {
	m := ss[0]
	for _, s := range ss[1:] {
		if s < m {
			m = s
		}
	}
	return m
}
