// Package pipeline wires the four core stages — graph construction,
// feature extraction, scoring, and ring assembly — into one run and
// assembles the ResultBundle (spec.md §4.5). Grounded on the original
// `fraud_detection.run_detection_pipeline` orchestration order and on
// the teacher's `cmd/osprey/main.go` wiring idiom.
package pipeline

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/opensource-finance/muleguard/internal/domain"
	"github.com/opensource-finance/muleguard/internal/features"
	"github.com/opensource-finance/muleguard/internal/graphbuilder"
	"github.com/opensource-finance/muleguard/internal/pipelineerr"
	"github.com/opensource-finance/muleguard/internal/rings"
	"github.com/opensource-finance/muleguard/internal/scoring"
)

// Run executes stages 1-4 in order on a single batch and assembles the
// ResultBundle. The only suspension point is the cooperative
// cancellation check between stages — extractors themselves are not
// interruptible, since cycle enumeration and Louvain are bounded.
func Run(ctx context.Context, transactions []domain.Transaction, cfg domain.PipelineConfig) (*domain.ResultBundle, error) {
	start := time.Now()

	if len(transactions) == 0 {
		return nil, pipelineerr.EmptyInput("no transactions supplied")
	}
	if err := ctx.Err(); err != nil {
		return nil, pipelineerr.Internal("cancelled before graph construction", err)
	}

	g, err := graphbuilder.Build(transactions)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, pipelineerr.Internal("cancelled before feature extraction", err)
	}
	bundle, err := features.Extract(g, cfg)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, pipelineerr.Internal("cancelled before scoring", err)
	}
	scores := scoring.Score(bundle, cfg)

	if err := ctx.Err(); err != nil {
		return nil, pipelineerr.Internal("cancelled before ring assembly", err)
	}

	return AssembleResult(g, bundle, scores, cfg, start), nil
}

// AssembleResult runs stage 4 (ring assembly) and builds the final
// ResultBundle from a graph, its extracted feature bundle, and a
// completed score map. Split out from Run so that callers needing to
// insert a step between scoring and ring assembly — internal/worker's
// custom-rule overlay — can reuse the same tail instead of
// reimplementing it.
func AssembleResult(g *graphbuilder.Graph, bundle *features.Bundle, scores map[string]domain.AccountScore, cfg domain.PipelineConfig, start time.Time) *domain.ResultBundle {
	fraudRings := rings.Assemble(g, bundle, scores, cfg.FlagThreshold)

	suspicious := make([]domain.AccountScore, 0, len(scores))
	for _, s := range scores {
		if s.SuspicionScore >= cfg.FlagThreshold {
			suspicious = append(suspicious, s)
		}
	}
	sort.Slice(suspicious, func(i, j int) bool {
		if suspicious[i].SuspicionScore != suspicious[j].SuspicionScore {
			return suspicious[i].SuspicionScore > suspicious[j].SuspicionScore
		}
		return suspicious[i].AccountID < suspicious[j].AccountID
	})

	sort.Slice(fraudRings, func(i, j int) bool {
		if fraudRings[i].RiskScore != fraudRings[j].RiskScore {
			return fraudRings[i].RiskScore > fraudRings[j].RiskScore
		}
		return fraudRings[i].RingID < fraudRings[j].RingID
	})

	return &domain.ResultBundle{
		RunID:              uuid.NewString(),
		SuspiciousAccounts: suspicious,
		FraudRings:         fraudRings,
		GraphSnapshot:      buildSnapshot(g),
		Summary: domain.Summary{
			TotalAccountsAnalyzed:     g.NumNodes(),
			SuspiciousAccountsFlagged: len(suspicious),
			FraudRingsDetected:        len(fraudRings),
			ProcessingTimeSeconds:     time.Since(start).Seconds(),
			CyclesTruncated:           bundle.CyclesTruncated,
			PageRankConverged:         bundle.PageRankConverged,
		},
	}
}

func buildSnapshot(g *graphbuilder.Graph) domain.GraphSnapshot {
	nodes := make([]domain.GraphNode, 0, g.NumNodes())
	for _, id := range g.Nodes() {
		nodes = append(nodes, domain.GraphNode{ID: id})
	}

	var links []domain.GraphLink
	g.Edges(func(e *domain.EdgeAggregate) {
		links = append(links, domain.GraphLink{
			Source:           e.Sender,
			Target:           e.Receiver,
			TotalAmount:      e.TotalAmount,
			TransactionCount: e.TransactionCount,
		})
	})

	return domain.GraphSnapshot{Nodes: nodes, Links: links}
}
