package features

import (
	"github.com/opensource-finance/muleguard/internal/domain"
	"github.com/opensource-finance/muleguard/internal/graphbuilder"
)

// extractCycles enumerates bounded simple directed cycles (spec.md
// §4.2.4): length bound cfg.CycleLengthBound, global cap cfg.CycleCap.
// Each cycle is discovered exactly once, starting from its minimum
// account id and following real out-edges, which already yields the
// canonical min-id-rotated form the spec requires — a cycle and its
// reverse are found independently only if both directions of edges
// actually exist.
func extractCycles(g *graphbuilder.Graph, cfg domain.PipelineConfig, b *Bundle) {
	maxLen := cfg.CycleLengthBound
	cycleCap := cfg.CycleCap

	var cycles []Cycle
	truncated := false

	nodes := g.Nodes()
	for _, s := range nodes {
		if len(cycles) >= cycleCap {
			truncated = true
			break
		}
		visited := map[string]bool{s: true}
		path := []string{s}

		var dfs func(cur string)
		dfs = func(cur string) {
			if len(cycles) >= cycleCap {
				truncated = true
				return
			}
			for _, next := range g.OutNeighbors(cur) {
				if len(cycles) >= cycleCap {
					truncated = true
					return
				}
				if next == s {
					if len(path) >= 2 {
						members := make([]string, len(path))
						copy(members, path)
						cycles = append(cycles, Cycle{ID: len(cycles), Members: members})
						if len(cycles) >= cycleCap {
							truncated = true
							return
						}
					}
					continue
				}
				if next <= s || visited[next] {
					continue
				}
				if len(path) >= maxLen {
					continue
				}
				visited[next] = true
				path = append(path, next)
				dfs(next)
				path = path[:len(path)-1]
				delete(visited, next)
				if truncated {
					return
				}
			}
		}
		dfs(s)
	}

	b.Cycles = cycles
	b.CyclesTruncated = truncated

	for _, c := range cycles {
		edgeAmounts := cycleEdgeAmounts(g, c.Members)
		for i, acc := range c.Members {
			info := b.CycleInfo[acc]
			if info == nil {
				info = &AccountCycleInfo{}
				b.CycleInfo[acc] = info
			}
			info.MembershipCount++

			// the two cycle edges incident to this member: the one
			// arriving from its predecessor and the one leaving to its
			// successor.
			inAmt := edgeAmounts[(i-1+len(c.Members))%len(c.Members)]
			outAmt := edgeAmounts[i]
			if inAmt > info.MaxEdgeAmount {
				info.MaxEdgeAmount = inAmt
			}
			if outAmt > info.MaxEdgeAmount {
				info.MaxEdgeAmount = outAmt
			}

			b.Accounts[acc].InCycle = true
			b.Accounts[acc].CycleMemberships = append(b.Accounts[acc].CycleMemberships, c.ID)
		}
	}

	for _, info := range b.CycleInfo {
		info.Validated = info.MembershipCount >= 2 || info.MaxEdgeAmount > 1000
	}
}

// cycleEdgeAmounts returns, for a cycle members[0]->members[1]->...->members[0],
// the total_amount of edge members[i]->members[i+1 mod n] at index i.
func cycleEdgeAmounts(g *graphbuilder.Graph, members []string) []float64 {
	n := len(members)
	amounts := make([]float64, n)
	for i := 0; i < n; i++ {
		from := members[i]
		to := members[(i+1)%n]
		if e, ok := g.Edge(from, to); ok {
			amounts[i] = e.TotalAmount
		}
	}
	return amounts
}
