// Package velocity provides a live, cross-batch transaction counter
// answering "how many transactions has this account taken part in
// during the last N seconds". No other package in this module calls it.
// It supplements the batch-scoped
// smurfing/velocity sliding-window features computed inside a single
// pipeline run (internal/features) — this package tracks activity that
// spans batches, backed by domain.Cache's atomic windowed counter.
package velocity

import (
	"context"
	"fmt"
	"time"

	"github.com/opensource-finance/muleguard/internal/domain"
)

// Service tracks per-account transaction velocity across batches.
type Service struct {
	cache domain.Cache
}

// NewService creates a new velocity service.
func NewService(cache domain.Cache) *Service {
	return &Service{cache: cache}
}

// RecordTransaction increments the live window counter for both parties
// to a transaction and returns each party's new count.
func (s *Service) RecordTransaction(ctx context.Context, senderID, receiverID string, window time.Duration) (senderCount, receiverCount int64, err error) {
	if senderID == "" || receiverID == "" {
		return 0, 0, fmt.Errorf("senderID and receiverID are required")
	}

	senderCount, err = s.cache.IncrementCounter(ctx, counterKey(senderID), window)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to increment sender counter: %w", err)
	}

	receiverCount, err = s.cache.IncrementCounter(ctx, counterKey(receiverID), window)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to increment receiver counter: %w", err)
	}

	return senderCount, receiverCount, nil
}

// IsHighVelocity reports whether an account has crossed threshold
// transactions within the live window, as a side effect also counting
// this check as activity within that window.
func (s *Service) IsHighVelocity(ctx context.Context, accountID string, window time.Duration, threshold int64) (bool, error) {
	count, err := s.cache.IncrementCounter(ctx, counterKey(accountID), window)
	if err != nil {
		return false, fmt.Errorf("failed to read velocity counter: %w", err)
	}
	return count > threshold, nil
}

func counterKey(accountID string) string {
	return "velocity:" + accountID
}
