// Package graphbuilder transforms a validated transaction list into a
// directed, weighted multigraph aggregated per ordered (sender,
// receiver) pair. It is the leaf of the detection pipeline: every
// downstream stage reads the Graph it produces but never mutates it.
package graphbuilder

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/opensource-finance/muleguard/internal/domain"
	"github.com/opensource-finance/muleguard/internal/pipelineerr"
)

// Graph is a directed graph whose edges are domain.EdgeAggregate
// values, built once and read-only thereafter. Neighbor lists are kept
// sorted so that every downstream algorithm iterates deterministically
// regardless of input row order.
type Graph struct {
	nodeSet map[string]struct{}
	nodes   []string // sorted

	out map[string]map[string]*domain.EdgeAggregate // sender -> receiver -> edge
	in  map[string]map[string]*domain.EdgeAggregate // receiver -> sender -> edge

	outOrder map[string][]string // sorted receiver ids per sender
	inOrder  map[string][]string // sorted sender ids per receiver
}

// Build aggregates transactions into a Graph. Multi-edges between the
// same ordered pair are coalesced (summed amount, counted rows, sorted
// timestamps). Self-loops are retained as edges. Returns
// pipelineerr.KindInputInvalid if any record is malformed and
// pipelineerr.KindEmptyInput if the batch has zero edges after
// aggregation.
func Build(transactions []domain.Transaction) (*Graph, error) {
	g := &Graph{
		nodeSet:  make(map[string]struct{}),
		out:      make(map[string]map[string]*domain.EdgeAggregate),
		in:       make(map[string]map[string]*domain.EdgeAggregate),
		outOrder: make(map[string][]string),
		inOrder:  make(map[string][]string),
	}

	for i, tx := range transactions {
		sender := strings.TrimSpace(tx.Sender)
		receiver := strings.TrimSpace(tx.Receiver)

		if sender == "" || receiver == "" {
			return nil, pipelineerr.InputInvalid(
				"row has an empty sender or receiver", fmt.Errorf("row %d", i))
		}
		if tx.Amount < 0 {
			return nil, pipelineerr.InputInvalid(
				"row has a negative amount", fmt.Errorf("row %d", i))
		}
		if tx.Timestamp.IsZero() {
			return nil, pipelineerr.InputInvalid(
				"row has an unparsable or missing timestamp", fmt.Errorf("row %d", i))
		}

		g.addNode(sender)
		g.addNode(receiver)
		g.addEdge(sender, receiver, tx.Amount, tx.Timestamp)
	}

	if g.NumEdges() == 0 {
		return nil, pipelineerr.EmptyInput("batch produced zero edges")
	}

	g.nodes = make([]string, 0, len(g.nodeSet))
	for n := range g.nodeSet {
		g.nodes = append(g.nodes, n)
	}
	sort.Strings(g.nodes)

	for _, m := range g.outOrder {
		sort.Strings(m)
	}
	for _, m := range g.inOrder {
		sort.Strings(m)
	}
	// sort timestamps per edge for temporal analysis
	for _, byReceiver := range g.out {
		for _, e := range byReceiver {
			sort.Slice(e.Timestamps, func(i, j int) bool {
				return e.Timestamps[i].Before(e.Timestamps[j])
			})
		}
	}

	return g, nil
}

func (g *Graph) addNode(id string) {
	g.nodeSet[id] = struct{}{}
}

func (g *Graph) addEdge(sender, receiver string, amount float64, ts time.Time) {
	if g.out[sender] == nil {
		g.out[sender] = make(map[string]*domain.EdgeAggregate)
	}
	if g.in[receiver] == nil {
		g.in[receiver] = make(map[string]*domain.EdgeAggregate)
	}

	if e, ok := g.out[sender][receiver]; ok {
		e.TotalAmount += amount
		e.TransactionCount++
		e.Timestamps = append(e.Timestamps, ts)
		return
	}

	e := &domain.EdgeAggregate{
		Sender:           sender,
		Receiver:         receiver,
		TotalAmount:      amount,
		TransactionCount: 1,
		Timestamps:       []time.Time{ts},
	}
	g.out[sender][receiver] = e
	g.in[receiver][sender] = e
	g.outOrder[sender] = append(g.outOrder[sender], receiver)
	g.inOrder[receiver] = append(g.inOrder[receiver], sender)
}

// Nodes returns every node id in sorted order.
func (g *Graph) Nodes() []string { return g.nodes }

// NumNodes returns the number of nodes.
func (g *Graph) NumNodes() int { return len(g.nodes) }

// NumEdges returns the number of distinct (sender, receiver) edges.
func (g *Graph) NumEdges() int {
	n := 0
	for _, m := range g.out {
		n += len(m)
	}
	return n
}

// Edge returns the EdgeAggregate for (sender, receiver), if any.
func (g *Graph) Edge(sender, receiver string) (*domain.EdgeAggregate, bool) {
	m, ok := g.out[sender]
	if !ok {
		return nil, false
	}
	e, ok := m[receiver]
	return e, ok
}

// OutNeighbors returns the sorted list of distinct receivers sender
// has sent to.
func (g *Graph) OutNeighbors(sender string) []string { return g.outOrder[sender] }

// InNeighbors returns the sorted list of distinct senders that have
// sent to receiver.
func (g *Graph) InNeighbors(receiver string) []string { return g.inOrder[receiver] }

// OutDegree is the count of distinct out-neighbors (not transaction count).
func (g *Graph) OutDegree(node string) int { return len(g.outOrder[node]) }

// InDegree is the count of distinct in-neighbors (not transaction count).
func (g *Graph) InDegree(node string) int { return len(g.inOrder[node]) }

// Edges iterates every edge in deterministic (sorted sender, then
// sorted receiver) order.
func (g *Graph) Edges(fn func(e *domain.EdgeAggregate)) {
	for _, sender := range g.nodes {
		for _, receiver := range g.outOrder[sender] {
			fn(g.out[sender][receiver])
		}
	}
}

// HasEdge reports whether an edge exists from sender to receiver.
func (g *Graph) HasEdge(sender, receiver string) bool {
	_, ok := g.Edge(sender, receiver)
	return ok
}
