// Package customrules provides a CEL-Go based overlay rule engine: after
// the seven mandated extractors and the additive/subtractive scoring
// formula run (internal/scoring), an analyst-authored rule set gets one
// more pass at each account's feature vector, contributing additional
// points on top of the formula score. Adapted from the teacher's
// internal/rules engine, retargeted from per-transaction CEL activations
// to per-account feature activations.
package customrules

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"

	"github.com/opensource-finance/muleguard/internal/domain"
)

// Engine evaluates a loaded set of custom CEL expressions against an
// account's post-extraction feature record.
type Engine struct {
	mu            sync.RWMutex
	env           *cel.Env
	compiledRules map[string]*compiledRule
	maxWorkers    int
}

type compiledRule struct {
	config  *domain.RuleConfig
	program cel.Program
}

// NewEngine creates a rule engine with an "account" feature-vector
// variable in scope.
func NewEngine(maxWorkers int) (*Engine, error) {
	if maxWorkers <= 0 {
		maxWorkers = 10
	}

	env, err := cel.NewEnv(
		cel.Variable("account", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Engine{
		env:           env,
		compiledRules: make(map[string]*compiledRule),
		maxWorkers:    maxWorkers,
	}, nil
}

// ValidateRule compiles a rule without loading it, for use by the rule
// CRUD HTTP handlers before a rule is persisted.
func (e *Engine) ValidateRule(cfg *domain.RuleConfig) error {
	if cfg == nil {
		return fmt.Errorf("rule config is required")
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, err := e.compileRule(cfg)
	return err
}

// LoadRule compiles and loads a single rule.
func (e *Engine) LoadRule(cfg *domain.RuleConfig) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	compiled, err := e.compileRule(cfg)
	if err != nil {
		return err
	}
	e.compiledRules[cfg.ID] = compiled
	return nil
}

// LoadRules compiles and loads every enabled rule, replacing anything
// previously loaded — used on startup and whenever the rule store changes.
func (e *Engine) LoadRules(configs []*domain.RuleConfig) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	loaded := make(map[string]*compiledRule, len(configs))
	for _, cfg := range configs {
		if !cfg.Enabled {
			continue
		}
		compiled, err := e.compileRule(cfg)
		if err != nil {
			return err
		}
		loaded[cfg.ID] = compiled
	}

	e.compiledRules = loaded
	return nil
}

// RuleOutcome is the per-rule evaluation result attached to an account.
type RuleOutcome struct {
	RuleID string
	Points float64
	Fired  bool
}

// EvaluateAccount runs every loaded rule against one account's feature
// vector and returns the sum of points from rules that fired, plus the
// per-rule breakdown.
func (e *Engine) EvaluateAccount(ctx context.Context, acc domain.Account) (float64, []RuleOutcome, error) {
	e.mu.RLock()
	rules := make([]*compiledRule, 0, len(e.compiledRules))
	for _, r := range e.compiledRules {
		rules = append(rules, r)
	}
	e.mu.RUnlock()

	if len(rules) == 0 {
		return 0, nil, nil
	}

	activation := map[string]any{
		"account": accountActivation(acc),
	}

	var total float64
	var mu sync.Mutex
	outcomes := make([]RuleOutcome, len(rules))
	var wg sync.WaitGroup
	sem := make(chan struct{}, e.maxWorkers)

	for i, rule := range rules {
		wg.Add(1)
		go func(idx int, r *compiledRule) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			fired, err := e.evaluateRule(r, activation)
			outcome := RuleOutcome{RuleID: r.config.ID, Fired: err == nil && fired}
			if outcome.Fired {
				outcome.Points = r.config.Points
				mu.Lock()
				total += r.config.Points
				mu.Unlock()
			}
			outcomes[idx] = outcome
		}(i, rule)
	}

	wg.Wait()
	return total, outcomes, nil
}

func (e *Engine) evaluateRule(rule *compiledRule, activation map[string]any) (bool, error) {
	out, _, err := rule.program.Eval(activation)
	if err != nil {
		return false, fmt.Errorf("evaluation error: %w", err)
	}
	return truthy(out), nil
}

func truthy(val ref.Val) bool {
	switch v := val.(type) {
	case types.Bool:
		return bool(v)
	case types.Double:
		return float64(v) != 0
	case types.Int:
		return int64(v) != 0
	default:
		return false
	}
}

func accountActivation(acc domain.Account) map[string]any {
	communityID := int64(-1)
	if acc.CommunityID != nil {
		communityID = int64(*acc.CommunityID)
	}

	return map[string]any{
		"id":                acc.ID,
		"in_degree":         int64(acc.InDegree),
		"out_degree":        int64(acc.OutDegree),
		"total_in_amount":   acc.TotalInAmount,
		"total_out_amount":  acc.TotalOutAmount,
		"pagerank":          acc.PageRank,
		"betweenness":       acc.Betweenness,
		"community_id":      communityID,
		"in_community":      acc.CommunityID != nil,
		"in_cycle":          acc.InCycle,
		"cycle_membership_count": int64(len(acc.CycleMemberships)),
		"fan_in":            acc.FanInFlag,
		"fan_out":           acc.FanOutFlag,
		"smurfing":          acc.SmurfFlag,
		"velocity":          acc.VelocityFlag,
		"shell":             acc.ShellFlag,
	}
}

// RulesCount returns the number of currently loaded rules.
func (e *Engine) RulesCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.compiledRules)
}

// Close releases all loaded rules.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.compiledRules = make(map[string]*compiledRule)
	return nil
}

func (e *Engine) compileRule(cfg *domain.RuleConfig) (*compiledRule, error) {
	ast, issues := e.env.Compile(cfg.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile rule %s: %w", cfg.ID, issues.Err())
	}

	outputType := ast.OutputType()
	// Bare feature lookups such as account.shell are dyn-typed, since the
	// account map's values are dyn; truthy() decides them at evaluation.
	if outputType != cel.BoolType && outputType != cel.DoubleType && outputType != cel.IntType && outputType != cel.DynType {
		return nil, fmt.Errorf("rule %s: expression must return bool, int, double, or a dyn feature value, got %s", cfg.ID, outputType)
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for rule %s: %w", cfg.ID, err)
	}

	return &compiledRule{config: cfg, program: program}, nil
}
