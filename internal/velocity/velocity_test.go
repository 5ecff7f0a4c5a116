package velocity

import (
	"context"
	"testing"
	"time"

	"github.com/opensource-finance/muleguard/internal/cache"
)

func TestRecordTransactionIncrementsBothParties(t *testing.T) {
	svc := NewService(cache.NewLRUCache(100))
	ctx := context.Background()

	s1, r1, err := svc.RecordTransaction(ctx, "acct-a", "acct-b", time.Minute)
	if err != nil {
		t.Fatalf("RecordTransaction returned error: %v", err)
	}
	if s1 != 1 || r1 != 1 {
		t.Fatalf("expected both counts to start at 1, got sender=%d receiver=%d", s1, r1)
	}

	s2, r2, err := svc.RecordTransaction(ctx, "acct-a", "acct-c", time.Minute)
	if err != nil {
		t.Fatalf("RecordTransaction returned error: %v", err)
	}
	if s2 != 2 {
		t.Errorf("expected acct-a count to accumulate to 2, got %d", s2)
	}
	if r2 != 1 {
		t.Errorf("expected acct-c to be a fresh counter at 1, got %d", r2)
	}
}

func TestRecordTransactionRejectsEmptyIDs(t *testing.T) {
	svc := NewService(cache.NewLRUCache(100))
	if _, _, err := svc.RecordTransaction(context.Background(), "", "acct-b", time.Minute); err == nil {
		t.Fatal("expected error for empty senderID")
	}
}

func TestIsHighVelocity(t *testing.T) {
	svc := NewService(cache.NewLRUCache(100))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := svc.IsHighVelocity(ctx, "acct-a", time.Minute, 10); err != nil {
			t.Fatalf("IsHighVelocity returned error: %v", err)
		}
	}

	high, err := svc.IsHighVelocity(ctx, "acct-a", time.Minute, 5)
	if err != nil {
		t.Fatalf("IsHighVelocity returned error: %v", err)
	}
	if !high {
		t.Errorf("expected account to cross threshold after 6 checks")
	}
}
