package graphbuilder

import (
	"testing"
	"time"

	"github.com/opensource-finance/muleguard/internal/domain"
	"github.com/opensource-finance/muleguard/internal/pipelineerr"
)

func tx(sender, receiver string, amount float64, ts time.Time) domain.Transaction {
	return domain.Transaction{Sender: sender, Receiver: receiver, Amount: amount, Timestamp: ts}
}

func TestBuildAggregatesMultiEdges(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	txs := []domain.Transaction{
		tx("A", "B", 100, base),
		tx("A", "B", 50, base.Add(time.Hour)),
		tx("A", "C", 10, base.Add(2 * time.Hour)),
	}

	g, err := Build(txs)
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}

	if g.NumNodes() != 3 {
		t.Fatalf("expected 3 nodes, got %d", g.NumNodes())
	}
	if g.NumEdges() != 2 {
		t.Fatalf("expected 2 edges, got %d", g.NumEdges())
	}

	e, ok := g.Edge("A", "B")
	if !ok {
		t.Fatalf("expected edge A->B to exist")
	}
	if e.TotalAmount != 150 {
		t.Errorf("expected aggregated amount 150, got %v", e.TotalAmount)
	}
	if e.TransactionCount != 2 {
		t.Errorf("expected transaction count 2, got %d", e.TransactionCount)
	}
	if len(e.Timestamps) != 2 || e.Timestamps[0].After(e.Timestamps[1]) {
		t.Errorf("expected timestamps sorted ascending, got %v", e.Timestamps)
	}
}

func TestBuildRetainsSelfLoops(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	txs := []domain.Transaction{tx("A", "A", 5, base)}

	g, err := Build(txs)
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	if !g.HasEdge("A", "A") {
		t.Fatalf("expected self-loop edge to be retained")
	}
	if g.NumNodes() != 1 {
		t.Fatalf("expected 1 node, got %d", g.NumNodes())
	}
}

func TestBuildDeterministicNeighborOrder(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	txs := []domain.Transaction{
		tx("A", "Z", 1, base),
		tx("A", "B", 1, base),
		tx("A", "M", 1, base),
	}

	g, err := Build(txs)
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}

	got := g.OutNeighbors("A")
	want := []string{"B", "M", "Z"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestBuildRejectsNegativeAmount(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	txs := []domain.Transaction{tx("A", "B", -1, base)}

	_, err := Build(txs)
	if err == nil {
		t.Fatalf("expected error for negative amount")
	}
	var perr *pipelineerr.Error
	if !asPipelineErr(err, &perr) || perr.Kind != pipelineerr.KindInputInvalid {
		t.Fatalf("expected KindInputInvalid, got %v", err)
	}
}

func TestBuildRejectsMissingSender(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	txs := []domain.Transaction{tx("  ", "B", 1, base)}

	_, err := Build(txs)
	if err == nil {
		t.Fatalf("expected error for missing sender")
	}
}

func TestBuildRejectsZeroTimestamp(t *testing.T) {
	txs := []domain.Transaction{tx("A", "B", 1, time.Time{})}

	_, err := Build(txs)
	if err == nil {
		t.Fatalf("expected error for zero timestamp")
	}
}

func TestBuildRejectsEmptyBatch(t *testing.T) {
	_, err := Build(nil)
	if err == nil {
		t.Fatalf("expected error for empty batch")
	}
	var perr *pipelineerr.Error
	if !asPipelineErr(err, &perr) || perr.Kind != pipelineerr.KindEmptyInput {
		t.Fatalf("expected KindEmptyInput, got %v", err)
	}
}

func TestDegrees(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	txs := []domain.Transaction{
		tx("A", "C", 1, base),
		tx("B", "C", 1, base),
		tx("C", "D", 1, base),
	}

	g, err := Build(txs)
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	if g.InDegree("C") != 2 {
		t.Errorf("expected InDegree(C)=2, got %d", g.InDegree("C"))
	}
	if g.OutDegree("C") != 1 {
		t.Errorf("expected OutDegree(C)=1, got %d", g.OutDegree("C"))
	}
}

func asPipelineErr(err error, target **pipelineerr.Error) bool {
	pe, ok := err.(*pipelineerr.Error)
	if !ok {
		return false
	}
	*target = pe
	return true
}
