package domain

import "context"

// Repository persists the configuration that outlives a single batch:
// custom-rule overlay definitions (RuleConfig). It
// deliberately has no method to persist a batch's transactions or
// ResultBundle — spec.md's "no persistence beyond one batch" Non-goal.
type Repository interface {
	SaveRuleConfig(ctx context.Context, rule *RuleConfig) error
	GetRuleConfig(ctx context.Context, ruleID string) (*RuleConfig, error)
	ListRuleConfigs(ctx context.Context) ([]*RuleConfig, error)
	DeleteRuleConfig(ctx context.Context, ruleID string) error

	Ping(ctx context.Context) error
	Close() error
}
