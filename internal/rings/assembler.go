// Package rings groups flagged accounts into fraud rings by cycle and
// Louvain community membership (spec.md §4.4). Grounded on the
// original `fraud_detection.py` `_assemble_fraud_rings` union-find
// merge step.
package rings

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/opensource-finance/muleguard/internal/domain"
	"github.com/opensource-finance/muleguard/internal/features"
	"github.com/opensource-finance/muleguard/internal/graphbuilder"
)

// unionFind is a classic disjoint-set structure over account ids.
type unionFind struct {
	parent map[string]string
}

func newUnionFind() *unionFind {
	return &unionFind{parent: make(map[string]string)}
}

func (u *unionFind) find(x string) string {
	if _, ok := u.parent[x]; !ok {
		u.parent[x] = x
	}
	if u.parent[x] != x {
		u.parent[x] = u.find(u.parent[x])
	}
	return u.parent[x]
}

func (u *unionFind) union(a, b string) {
	ra, rb := u.find(a), u.find(b)
	if ra != rb {
		u.parent[ra] = rb
	}
}

type memberGroup struct {
	members []string // sorted
	minID   string
}

// Assemble implements spec.md §4.4. Cycle-based rings (step 1-2) are
// emitted first, unioned when they share a member; Louvain-community
// rings (step 3) follow for any flagged account not already assigned.
// Ring ids are RING_001... assigned in that emission order, broken by
// each group's minimum member id. Cycle membership always wins over
// community membership on conflict, since step 3 only considers
// accounts step 1-2 left unassigned. Returns the rings (in no
// particular output order — the orchestrator sorts for display) and
// mutates scores in place to set RingID.
func Assemble(g *graphbuilder.Graph, b *features.Bundle, scores map[string]domain.AccountScore, flagThreshold float64) []domain.FraudRing {
	flagged := make(map[string]bool)
	for id, s := range scores {
		if s.SuspicionScore >= flagThreshold {
			flagged[id] = true
		}
	}

	cycleGroups := cycleMemberGroups(b, flagged)
	assigned := make(map[string]bool)
	for _, grp := range cycleGroups {
		for _, m := range grp.members {
			assigned[m] = true
		}
	}

	communityGroups := communityMemberGroups(b, flagged, assigned)

	rings := make([]domain.FraudRing, 0, len(cycleGroups)+len(communityGroups))
	n := 0
	for _, grp := range cycleGroups {
		n++
		rings = append(rings, newRing(ringIDFor(n), grp.members, domain.RingPatternCycle, scores))
	}
	for _, grp := range communityGroups {
		n++
		rings = append(rings, newRing(ringIDFor(n), grp.members, domain.RingPatternCommunity, scores))
	}

	for i := range rings {
		rings[i].TotalAmount = sumIntraRingAmount(rings[i].MemberAccounts, g)
	}

	for _, r := range rings {
		ringID := r.RingID
		for _, m := range r.MemberAccounts {
			s := scores[m]
			s.RingID = &ringID
			scores[m] = s
		}
	}

	return rings
}

func newRing(ringID string, members []string, patternType domain.RingPatternType, scores map[string]domain.AccountScore) domain.FraudRing {
	var sum float64
	for _, m := range members {
		sum += scores[m].SuspicionScore
	}
	risk := 0.0
	if len(members) > 0 {
		risk = math.Round(sum / float64(len(members)))
	}
	return domain.FraudRing{
		RingID:         ringID,
		MemberAccounts: members,
		PatternType:    patternType,
		RiskScore:      risk,
	}
}

func cycleMemberGroups(b *features.Bundle, flagged map[string]bool) []memberGroup {
	uf := newUnionFind()
	memberSet := make(map[string]bool)

	for _, c := range b.Cycles {
		var flaggedMembers []string
		for _, m := range c.Members {
			if flagged[m] {
				flaggedMembers = append(flaggedMembers, m)
			}
		}
		if len(flaggedMembers) < 2 {
			continue
		}
		for _, m := range flaggedMembers {
			memberSet[m] = true
		}
		for i := 1; i < len(flaggedMembers); i++ {
			uf.union(flaggedMembers[0], flaggedMembers[i])
		}
	}

	byRoot := make(map[string][]string)
	for m := range memberSet {
		root := uf.find(m)
		byRoot[root] = append(byRoot[root], m)
	}
	return sortedGroups(byRoot)
}

func communityMemberGroups(b *features.Bundle, flagged, assigned map[string]bool) []memberGroup {
	byCommunity := make(map[int][]string)
	for id, acc := range b.Accounts {
		if acc.CommunityID == nil || assigned[id] || !flagged[id] {
			continue
		}
		byCommunity[*acc.CommunityID] = append(byCommunity[*acc.CommunityID], id)
	}

	byRoot := make(map[string][]string)
	for cid, members := range byCommunity {
		if len(members) < 2 {
			continue
		}
		byRoot[communityGroupKey(cid)] = members
	}
	return sortedGroups(byRoot)
}

func sortedGroups(byRoot map[string][]string) []memberGroup {
	groups := make([]memberGroup, 0, len(byRoot))
	for _, members := range byRoot {
		sorted := append([]string(nil), members...)
		sort.Strings(sorted)
		groups = append(groups, memberGroup{members: sorted, minID: sorted[0]})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].minID < groups[j].minID })
	return groups
}

func communityGroupKey(cid int) string {
	return "community-" + strconv.Itoa(cid)
}

func ringIDFor(n int) string {
	return fmt.Sprintf("RING_%03d", n)
}

func sumIntraRingAmount(members []string, g *graphbuilder.Graph) float64 {
	set := make(map[string]bool, len(members))
	for _, m := range members {
		set[m] = true
	}
	var total float64
	g.Edges(func(e *domain.EdgeAggregate) {
		if set[e.Sender] && set[e.Receiver] {
			total += e.TotalAmount
		}
	})
	return total
}
