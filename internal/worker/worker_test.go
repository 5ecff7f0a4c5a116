package worker

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/opensource-finance/muleguard/internal/bus"
	"github.com/opensource-finance/muleguard/internal/customrules"
	"github.com/opensource-finance/muleguard/internal/domain"
)

func tx(sender, receiver string, amount float64, ts time.Time) domain.Transaction {
	return domain.Transaction{Sender: sender, Receiver: receiver, Amount: amount, Timestamp: ts}
}

func awaitCompletion(t *testing.T, b domain.EventBus) BatchCompleted {
	t.Helper()
	done := make(chan BatchCompleted, 1)

	sub, err := b.Subscribe(context.Background(), domain.TopicBatchCompleted, func(ctx context.Context, msg *domain.Message) error {
		var completed BatchCompleted
		if err := json.Unmarshal(msg.Payload, &completed); err != nil {
			return err
		}
		done <- completed
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe returned error: %v", err)
	}
	defer sub.Unsubscribe()

	select {
	case c := <-done:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for batch completion")
		return BatchCompleted{}
	}
}

func TestWorkerProcessesBatchSuccessfully(t *testing.T) {
	b := bus.NewChannelBus(10)
	defer b.Close()

	w := NewWorker(b, nil, domain.DefaultPipelineConfig(), 2)
	if err := w.Start(); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	defer w.Stop()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	batch := BatchSubmitted{
		BatchID: "batch-1",
		Transactions: []domain.Transaction{
			tx("A", "B", 100, base),
			tx("B", "C", 50, base.Add(time.Hour)),
		},
	}
	payload, _ := json.Marshal(batch)

	if err := b.Publish(context.Background(), domain.TopicBatchSubmitted, payload); err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}

	completed := awaitCompletion(t, b)
	if completed.BatchID != "batch-1" {
		t.Errorf("expected batch-1, got %q", completed.BatchID)
	}
	if completed.Error != "" {
		t.Fatalf("expected no error, got %q", completed.Error)
	}
	if completed.Result == nil || completed.Result.Summary.TotalAccountsAnalyzed != 3 {
		t.Errorf("expected 3 accounts analyzed, got %+v", completed.Result)
	}
}

func TestWorkerRejectsEmptyBatch(t *testing.T) {
	b := bus.NewChannelBus(10)
	defer b.Close()

	w := NewWorker(b, nil, domain.DefaultPipelineConfig(), 2)
	if err := w.Start(); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	defer w.Stop()

	payload, _ := json.Marshal(BatchSubmitted{BatchID: "empty-batch"})
	if err := b.Publish(context.Background(), domain.TopicBatchSubmitted, payload); err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}

	completed := awaitCompletion(t, b)
	if completed.Error == "" {
		t.Fatal("expected an error for an empty batch")
	}
}

func TestWorkerAppliesCustomRuleOverlay(t *testing.T) {
	b := bus.NewChannelBus(10)
	defer b.Close()

	engine, err := customrules.NewEngine(2)
	if err != nil {
		t.Fatalf("NewEngine returned error: %v", err)
	}
	if err := engine.LoadRule(&domain.RuleConfig{
		ID:         "always-on",
		Expression: "true",
		Points:     100,
		Enabled:    true,
	}); err != nil {
		t.Fatalf("LoadRule returned error: %v", err)
	}

	cfg := domain.DefaultPipelineConfig()
	w := NewWorker(b, engine, cfg, 2)
	if err := w.Start(); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	defer w.Stop()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	batch := BatchSubmitted{
		BatchID: "batch-2",
		Transactions: []domain.Transaction{
			tx("A", "B", 100, base),
			tx("B", "C", 50, base.Add(time.Hour)),
		},
	}
	payload, _ := json.Marshal(batch)
	if err := b.Publish(context.Background(), domain.TopicBatchSubmitted, payload); err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}

	completed := awaitCompletion(t, b)
	if completed.Error != "" {
		t.Fatalf("expected no error, got %q", completed.Error)
	}
	if completed.Result.Summary.SuspiciousAccountsFlagged != 3 {
		t.Errorf("expected the always-on overlay rule to flag all 3 accounts, got %+v", completed.Result.Summary)
	}
}
