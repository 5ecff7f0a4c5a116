package features

import (
	"sort"
	"time"

	"github.com/opensource-finance/muleguard/internal/domain"
	"github.com/opensource-finance/muleguard/internal/graphbuilder"
)

type timedEvent struct {
	ts          time.Time
	counterparty string
}

// extractSmurfingAndVelocity implements spec.md §4.2.6: for each
// account, the union of its incoming and outgoing transaction
// timestamps (self-loops excluded) is walked with a two-pointer
// sliding window. smurf_flag fires when the window ever holds at
// least cfg.SmurfingMinCounterparties distinct counterparties within
// cfg.SmurfingWindowHours. velocity_flag fires when any
// cfg.VelocityWindowHours window holds more than cfg.VelocityThreshold
// transaction events.
func extractSmurfingAndVelocity(g *graphbuilder.Graph, cfg domain.PipelineConfig, b *Bundle) {
	smurfWindow := time.Duration(cfg.SmurfingWindowHours) * time.Hour
	velocityWindow := time.Duration(cfg.VelocityWindowHours) * time.Hour

	for _, id := range g.Nodes() {
		events := accountEvents(g, id)
		if len(events) == 0 {
			continue
		}
		sort.Slice(events, func(i, j int) bool { return events[i].ts.Before(events[j].ts) })

		acc := b.Accounts[id]
		acc.SmurfFlag = maxDistinctCounterpartiesInWindow(events, smurfWindow) >= cfg.SmurfingMinCounterparties
		acc.VelocityFlag = maxEventsInWindow(events, velocityWindow) > cfg.VelocityThreshold
	}
}

// accountEvents returns every (timestamp, counterparty) pair from id's
// incoming and outgoing edges, excluding self-loops.
func accountEvents(g *graphbuilder.Graph, id string) []timedEvent {
	var events []timedEvent
	for _, sender := range g.InNeighbors(id) {
		if sender == id {
			continue
		}
		e, _ := g.Edge(sender, id)
		for _, ts := range e.Timestamps {
			events = append(events, timedEvent{ts: ts, counterparty: sender})
		}
	}
	for _, receiver := range g.OutNeighbors(id) {
		if receiver == id {
			continue
		}
		e, _ := g.Edge(id, receiver)
		for _, ts := range e.Timestamps {
			events = append(events, timedEvent{ts: ts, counterparty: receiver})
		}
	}
	return events
}

// maxDistinctCounterpartiesInWindow slides a window of the given
// duration over events (sorted ascending) and returns the maximum
// number of distinct counterparties present in any position.
func maxDistinctCounterpartiesInWindow(events []timedEvent, window time.Duration) int {
	counts := make(map[string]int)
	left := 0
	best := 0
	distinct := 0

	for right := 0; right < len(events); right++ {
		cp := events[right].counterparty
		if counts[cp] == 0 {
			distinct++
		}
		counts[cp]++

		for events[right].ts.Sub(events[left].ts) > window {
			lcp := events[left].counterparty
			counts[lcp]--
			if counts[lcp] == 0 {
				distinct--
			}
			left++
		}

		if distinct > best {
			best = distinct
		}
	}
	return best
}

// maxEventsInWindow slides a window of the given duration over events
// (sorted ascending) and returns the maximum count of events present
// in any position.
func maxEventsInWindow(events []timedEvent, window time.Duration) int {
	left := 0
	best := 0

	for right := 0; right < len(events); right++ {
		for events[right].ts.Sub(events[left].ts) > window {
			left++
		}
		count := right - left + 1
		if count > best {
			best = count
		}
	}
	return best
}
