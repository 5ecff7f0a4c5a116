package features

import (
	"container/heap"
	"math"
	"math/rand"

	"github.com/opensource-finance/muleguard/internal/domain"
	"github.com/opensource-finance/muleguard/internal/graphbuilder"
)

// computeBetweenness runs weighted Brandes betweenness centrality
// (spec.md §4.2.3) with edge weight 1/total_amount (higher-value
// edges are "shorter"). Graphs over cfg.BetweennessSampleThresholdNodes
// nodes are approximated from a uniform sample of cfg.BetweennessSampleK
// sources drawn from a generator seeded with cfg.BetweennessSeed, then
// rescaled by N/k. Disconnected pairs contribute zero.
func computeBetweenness(g *graphbuilder.Graph, cfg domain.PipelineConfig) map[string]float64 {
	nodes := g.Nodes()
	n := len(nodes)
	bc := make(map[string]float64, n)
	for _, u := range nodes {
		bc[u] = 0
	}
	if n == 0 {
		return bc
	}

	sources := nodes
	rescale := 1.0
	if n > cfg.BetweennessSampleThresholdNodes {
		k := cfg.BetweennessSampleK
		if k > n {
			k = n
		}
		rng := rand.New(rand.NewSource(int64(cfg.BetweennessSeed)))
		shuffled := append([]string(nil), nodes...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		sources = append([]string(nil), shuffled[:k]...)
		rescale = float64(n) / float64(k)
	}

	for _, s := range sources {
		brandesSingleSource(g, s, bc)
	}

	if rescale != 1.0 {
		for u := range bc {
			bc[u] *= rescale
		}
	}

	return bc
}

type pqItem struct {
	node string
	dist float64
}

type priorityQueue []pqItem

func (pq priorityQueue) Len() int            { return len(pq) }
func (pq priorityQueue) Less(i, j int) bool   { return pq[i].dist < pq[j].dist }
func (pq priorityQueue) Swap(i, j int)        { pq[i], pq[j] = pq[j], pq[i] }
func (pq *priorityQueue) Push(x interface{}) { *pq = append(*pq, x.(pqItem)) }
func (pq *priorityQueue) Pop() interface{} {
	old := *pq
	n := len(old)
	item := old[n-1]
	*pq = old[:n-1]
	return item
}

func edgeWeight(e *domain.EdgeAggregate) float64 {
	if e.TotalAmount <= 0 {
		return math.Inf(1)
	}
	return 1.0 / e.TotalAmount
}

// brandesSingleSource runs one source's contribution of Brandes'
// algorithm (Dijkstra variant for positive edge weights) and
// accumulates dependency scores into bc.
func brandesSingleSource(g *graphbuilder.Graph, s string, bc map[string]float64) {
	dist := map[string]float64{s: 0}
	sigma := map[string]float64{s: 1}
	preds := map[string][]string{}
	var order []string // nodes in non-decreasing distance order (finish order)

	visited := map[string]bool{}
	pq := &priorityQueue{{node: s, dist: 0}}
	heap.Init(pq)

	for pq.Len() > 0 {
		item := heap.Pop(pq).(pqItem)
		u := item.node
		if visited[u] {
			continue
		}
		if item.dist > dist[u] {
			continue
		}
		visited[u] = true
		order = append(order, u)

		for _, v := range g.OutNeighbors(u) {
			e, _ := g.Edge(u, v)
			w := edgeWeight(e)
			if math.IsInf(w, 1) {
				continue
			}
			nd := dist[u] + w
			old, seen := dist[v]
			switch {
			case !seen || nd < old-1e-12:
				dist[v] = nd
				sigma[v] = sigma[u]
				preds[v] = []string{u}
				heap.Push(pq, pqItem{node: v, dist: nd})
			case nd < old+1e-12 && nd > old-1e-12:
				sigma[v] += sigma[u]
				preds[v] = append(preds[v], u)
			}
		}
	}

	delta := make(map[string]float64, len(order))
	for i := len(order) - 1; i >= 0; i-- {
		w := order[i]
		for _, v := range preds[w] {
			if sigma[w] == 0 {
				continue
			}
			delta[v] += (sigma[v] / sigma[w]) * (1 + delta[w])
		}
		if w != s {
			bc[w] += delta[w]
		}
	}
}
