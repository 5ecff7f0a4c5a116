// Package worker provides async batch processing off the EventBus.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/opensource-finance/muleguard/internal/customrules"
	"github.com/opensource-finance/muleguard/internal/domain"
	"github.com/opensource-finance/muleguard/internal/features"
	"github.com/opensource-finance/muleguard/internal/graphbuilder"
	"github.com/opensource-finance/muleguard/internal/pipeline"
	"github.com/opensource-finance/muleguard/internal/pipelineerr"
	"github.com/opensource-finance/muleguard/internal/scoring"
)

// Worker consumes submitted batches from the EventBus, runs the
// detection pipeline, applies any loaded custom-rule overlay on top of
// each account's formula score, and publishes the completed result. It
// runs graph construction through scoring itself rather than calling
// internal/pipeline.Run directly, since the overlay needs each
// account's full feature vector between scoring and ring assembly;
// internal/pipeline.AssembleResult supplies the shared tail.
type Worker struct {
	bus     domain.EventBus
	rules   *customrules.Engine
	cfg     domain.PipelineConfig
	workers int

	subscriptions []domain.Subscription
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// NewWorker creates a new async batch worker. rules may be nil, in
// which case no overlay is applied. workerCount is only reported in the
// start-up log; batches are handled one at a time on the subscription's
// delivery goroutine.
func NewWorker(bus domain.EventBus, rules *customrules.Engine, cfg domain.PipelineConfig, workerCount int) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	if workerCount <= 0 {
		workerCount = 4
	}
	return &Worker{
		bus:     bus,
		rules:   rules,
		cfg:     cfg,
		workers: workerCount,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// BatchSubmitted is the message payload published when a batch is
// accepted for asynchronous processing.
type BatchSubmitted struct {
	BatchID      string               `json:"batchId"`
	Transactions []domain.Transaction `json:"transactions"`
}

// BatchCompleted is the message payload published once a batch finishes
// processing, whether it succeeded or was rejected.
type BatchCompleted struct {
	BatchID string               `json:"batchId"`
	Result  *domain.ResultBundle `json:"result,omitempty"`
	Error   string               `json:"error,omitempty"`
}

// Start subscribes to the batch-submitted topic and begins processing.
func (w *Worker) Start() error {
	sub, err := w.bus.Subscribe(w.ctx, domain.TopicBatchSubmitted, w.handleBatch)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("worker started", "topic", domain.TopicBatchSubmitted, "workers", w.workers)
	return nil
}

func (w *Worker) handleBatch(ctx context.Context, msg *domain.Message) error {
	w.wg.Add(1)
	defer w.wg.Done()

	var batch BatchSubmitted
	if err := json.Unmarshal(msg.Payload, &batch); err != nil {
		slog.Error("failed to parse batch message", "message_id", msg.ID, "error", err)
		return err
	}

	start := time.Now()
	result, err := w.processBatch(ctx, &batch)

	completed := BatchCompleted{BatchID: batch.BatchID}
	if err != nil {
		completed.Error = err.Error()
		slog.Error("batch processing failed",
			"batch_id", batch.BatchID,
			"error", err,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	} else {
		completed.Result = result
		slog.Info("batch processed",
			"batch_id", batch.BatchID,
			"run_id", result.RunID,
			"accounts", result.Summary.TotalAccountsAnalyzed,
			"flagged", result.Summary.SuspiciousAccountsFlagged,
			"rings", result.Summary.FraudRingsDetected,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}

	payload, marshalErr := json.Marshal(completed)
	if marshalErr != nil {
		slog.Error("failed to marshal batch result", "batch_id", batch.BatchID, "error", marshalErr)
		return marshalErr
	}

	if err := w.bus.Publish(ctx, domain.TopicBatchCompleted, payload); err != nil {
		slog.Error("failed to publish batch completion", "batch_id", batch.BatchID, "error", err)
		return err
	}

	if err == nil {
		w.publishRingAlerts(ctx, result)
	}

	return nil
}

// processBatch runs graph construction, feature extraction and scoring
// the same way internal/pipeline.Run does, then applies the custom-rule
// overlay and hands off to pipeline.AssembleResult for ring assembly,
// sorting and summary — the only step the two callers don't share is
// the overlay insertion point between scoring and ring assembly.
func (w *Worker) processBatch(ctx context.Context, batch *BatchSubmitted) (*domain.ResultBundle, error) {
	start := time.Now()

	if len(batch.Transactions) == 0 {
		return nil, pipelineerr.EmptyInput("no transactions supplied")
	}

	g, err := graphbuilder.Build(batch.Transactions)
	if err != nil {
		return nil, err
	}

	bundle, err := features.Extract(g, w.cfg)
	if err != nil {
		return nil, err
	}

	scores := scoring.Score(bundle, w.cfg)

	if w.rules != nil && w.rules.RulesCount() > 0 {
		w.applyOverlay(ctx, bundle.Accounts, scores)
	}

	return pipeline.AssembleResult(g, bundle, scores, w.cfg, start), nil
}

// applyOverlay adds custom-rule points on top of every account's
// formula score before the flag-threshold filter runs, so an overlay
// rule can push a borderline account over the line.
func (w *Worker) applyOverlay(ctx context.Context, accounts map[string]*domain.Account, scores map[string]domain.AccountScore) {
	for id, acc := range accounts {
		extra, _, err := w.rules.EvaluateAccount(ctx, *acc)
		if err != nil || extra == 0 {
			continue
		}
		s := scores[id]
		s.SuspicionScore += extra
		if s.SuspicionScore > 100 {
			s.SuspicionScore = 100
		}
		scores[id] = s
	}
}

func (w *Worker) publishRingAlerts(ctx context.Context, result *domain.ResultBundle) {
	for _, ring := range result.FraudRings {
		payload, err := json.Marshal(ring)
		if err != nil {
			continue
		}
		if err := w.bus.Publish(ctx, domain.TopicRingDetected, payload); err != nil {
			slog.Error("failed to publish ring alert", "ring_id", ring.RingID, "error", err)
		}
	}
}

// Stop gracefully stops the worker, waiting for in-flight batches to finish.
func (w *Worker) Stop() error {
	w.cancel()

	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe", "topic", sub.Topic(), "error", err)
		}
	}
	w.subscriptions = nil

	w.wg.Wait()

	slog.Info("worker stopped")
	return nil
}
