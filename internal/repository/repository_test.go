package repository

import (
	"context"
	"testing"

	"github.com/opensource-finance/muleguard/internal/domain"
)

func newTestRepo(t *testing.T) domain.Repository {
	t.Helper()
	repo, err := New(domain.RepositoryConfig{Driver: "sqlite", SQLitePath: ":memory:"})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestSaveAndGetRuleConfig(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	rule := &domain.RuleConfig{
		ID:         "high-value-transfer",
		Name:       "High value transfer",
		Expression: "account.total_out_amount > 100000.0",
		Points:     15,
		Enabled:    true,
	}

	if err := repo.SaveRuleConfig(ctx, rule); err != nil {
		t.Fatalf("SaveRuleConfig returned error: %v", err)
	}

	got, err := repo.GetRuleConfig(ctx, "high-value-transfer")
	if err != nil {
		t.Fatalf("GetRuleConfig returned error: %v", err)
	}
	if got.Name != rule.Name || got.Expression != rule.Expression || got.Points != rule.Points {
		t.Errorf("got %+v, want fields matching %+v", got, rule)
	}
}

func TestGetRuleConfigNotFound(t *testing.T) {
	repo := newTestRepo(t)
	if _, err := repo.GetRuleConfig(context.Background(), "missing"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListRuleConfigsExcludesDisabled(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	_ = repo.SaveRuleConfig(ctx, &domain.RuleConfig{ID: "a", Name: "A", Expression: "true", Enabled: true})
	_ = repo.SaveRuleConfig(ctx, &domain.RuleConfig{ID: "b", Name: "B", Expression: "true", Enabled: false})

	rules, err := repo.ListRuleConfigs(ctx)
	if err != nil {
		t.Fatalf("ListRuleConfigs returned error: %v", err)
	}
	if len(rules) != 1 || rules[0].ID != "a" {
		t.Errorf("expected only rule a, got %+v", rules)
	}
}

func TestSaveRuleConfigUpsert(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	_ = repo.SaveRuleConfig(ctx, &domain.RuleConfig{ID: "a", Name: "A", Expression: "true", Points: 5, Enabled: true})
	_ = repo.SaveRuleConfig(ctx, &domain.RuleConfig{ID: "a", Name: "A v2", Expression: "false", Points: 9, Enabled: true})

	got, err := repo.GetRuleConfig(ctx, "a")
	if err != nil {
		t.Fatalf("GetRuleConfig returned error: %v", err)
	}
	if got.Name != "A v2" || got.Points != 9 {
		t.Errorf("expected upsert to overwrite fields, got %+v", got)
	}
}

func TestDeleteRuleConfig(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	_ = repo.SaveRuleConfig(ctx, &domain.RuleConfig{ID: "a", Name: "A", Expression: "true", Enabled: true})

	if err := repo.DeleteRuleConfig(ctx, "a"); err != nil {
		t.Fatalf("DeleteRuleConfig returned error: %v", err)
	}
	if _, err := repo.GetRuleConfig(ctx, "a"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestDeleteRuleConfigNotFound(t *testing.T) {
	repo := newTestRepo(t)
	if err := repo.DeleteRuleConfig(context.Background(), "missing"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRepositoryPing(t *testing.T) {
	repo := newTestRepo(t)
	if err := repo.Ping(context.Background()); err != nil {
		t.Fatalf("Ping returned error: %v", err)
	}
}
