package scoring

import (
	"github.com/opensource-finance/muleguard/internal/domain"
	"github.com/opensource-finance/muleguard/internal/features"
)

// Score implements spec.md §4.3: for every account in the bundle,
// compose the additive primary signals, the supporting signals (gated
// on a primary signal having fired), and the subtractive suppressions,
// then clamp to [0,100] and classify into a risk tier. Returns a score
// for every account, flagged or not — the orchestrator filters to
// score >= cfg.FlagThreshold for the public suspicious_accounts list.
func Score(b *features.Bundle, cfg domain.PipelineConfig) map[string]domain.AccountScore {
	out := make(map[string]domain.AccountScore, len(b.Accounts))
	for id, acc := range b.Accounts {
		out[id] = scoreAccount(acc, b, cfg)
	}
	return out
}

func scoreAccount(acc *domain.Account, b *features.Bundle, cfg domain.PipelineConfig) domain.AccountScore {
	var score float64

	hasPrimary := acc.InCycle || acc.FanInFlag || acc.FanOutFlag ||
		acc.SmurfFlag || acc.ShellFlag || acc.VelocityFlag

	cycleInfo := b.CycleInfo[acc.ID]
	if acc.InCycle {
		if cycleInfo != nil && cycleInfo.Validated {
			score += 40
		} else {
			score += 10
		}
	}
	if acc.FanInFlag {
		score += 25
	}
	if acc.FanOutFlag {
		score += 25
	}
	if acc.SmurfFlag {
		score += 25
	}
	if acc.ShellFlag {
		score += 30
	}
	if acc.VelocityFlag {
		score += 20
	}

	var highPageRank, highBetweenness, hasCommunity bool
	if hasPrimary {
		if b.PageRankMean > 0 && acc.PageRank > 2*b.PageRankMean {
			score += 5
			highPageRank = true
		}
		if b.BetweennessMean > 0 && acc.Betweenness > 2*b.BetweennessMean {
			score += 5
			highBetweenness = true
		}
		if acc.CommunityID != nil {
			score += 10
			hasCommunity = true
		}
	}

	if acc.OutDegree >= 10 && !acc.InCycle && b.ForwardingRatio[acc.ID] < 0.2 {
		score -= 30 // likely payroll
	}
	if acc.InDegree >= 10 && acc.OutDegree <= 1 && !acc.InCycle {
		score -= 40 // likely merchant
	}
	if acc.InDegree >= 50 && acc.OutDegree >= 50 && !acc.InCycle {
		score -= 40 // likely payment gateway
	}
	if !hasPrimary && acc.OutDegree <= 2 {
		score -= 20 // low activity
	}
	if acc.InCycle && cycleInfo != nil && cycleInfo.MembershipCount == 1 && cycleInfo.MaxEdgeAmount < 1000 {
		score -= 15 // low-amount cycle
	}

	final := clamp(score, 0, 100)
	patterns := buildPatterns(acc, hasCommunity, highPageRank, highBetweenness)

	return domain.AccountScore{
		AccountID:        acc.ID,
		SuspicionScore:   final,
		RiskLevel:        classify(final),
		DetectedPatterns: patterns,
		PrimaryReason:    buildPrimaryReason(patterns, hasPrimary),
	}
}

// buildPatterns returns the fired pattern tags in PatternOrder.
func buildPatterns(acc *domain.Account, hasCommunity, highPageRank, highBetweenness bool) []string {
	fired := map[string]bool{
		PatternCycle:           acc.InCycle,
		PatternFanIn:           acc.FanInFlag,
		PatternFanOut:          acc.FanOutFlag,
		PatternSmurfing:        acc.SmurfFlag,
		PatternShell:           acc.ShellFlag,
		PatternVelocity:        acc.VelocityFlag,
		PatternCommunity:       hasCommunity,
		PatternHighPageRank:    highPageRank,
		PatternHighBetweenness: highBetweenness,
	}

	patterns := make([]string, 0, len(PatternOrder))
	for _, p := range PatternOrder {
		if fired[p] {
			patterns = append(patterns, p)
		}
	}
	return patterns
}
