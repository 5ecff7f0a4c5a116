package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/opensource-finance/muleguard/internal/customrules"
	"github.com/opensource-finance/muleguard/internal/domain"
	"github.com/opensource-finance/muleguard/internal/pipeline"
)

// Handler holds dependencies for API handlers. resultCache is a cache
// instance owned by this layer to hold recent batch results for
// GET /batches/{id}; it is distinct from the velocity cache wired into
// internal/velocity, per domain.Cache's doc comment.
type Handler struct {
	repo        domain.Repository
	resultCache domain.Cache
	bus         domain.EventBus
	rules       *customrules.Engine
	cfg         domain.PipelineConfig
	version     string
}

// NewHandler creates a new API handler. resultCache backs GET /batches/{id}
// lookups and may be nil, in which case that endpoint always 503s.
func NewHandler(repo domain.Repository, resultCache domain.Cache, bus domain.EventBus, rules *customrules.Engine, cfg domain.PipelineConfig, version string) *Handler {
	return &Handler{
		repo:        repo,
		resultCache: resultCache,
		bus:         bus,
		rules:       rules,
		cfg:         cfg,
		version:     version,
	}
}

const resultCacheTTL = 1 * time.Hour

// BatchRequest is the request body for POST /batches.
type BatchRequest struct {
	Transactions []domain.Transaction `json:"transactions"`
}

// BatchResponse wraps a ResultBundle with the metadata the HTTP caller needs.
type BatchResponse struct {
	BatchID string               `json:"batchId"`
	Result  *domain.ResultBundle `json:"result"`
	Metadata struct {
		TraceID string `json:"traceId"`
		Version string `json:"version"`
	} `json:"metadata"`
}

// CreateBatch handles POST /batches: runs the detection pipeline
// synchronously on the supplied transactions and caches the resulting
// bundle under its run id for later retrieval.
func (h *Handler) CreateBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	traceID := GetTraceID(ctx)

	var req BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON request body"})
		return
	}

	result, err := pipeline.Run(ctx, req.Transactions, h.cfg)
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
		return
	}

	if err := h.cacheResult(ctx, result); err != nil {
		slog.Error("failed to cache batch result", "run_id", result.RunID, "error", err)
	}

	if h.bus != nil {
		h.publishBatchCompleted(ctx, result)
	}

	resp := BatchResponse{BatchID: result.RunID, Result: result}
	resp.Metadata.TraceID = traceID
	resp.Metadata.Version = h.version

	writeJSON(w, http.StatusCreated, resp)
}

// GetBatch handles GET /batches/{id}: retrieves a previously computed
// bundle from cache. Bundles are not persisted beyond the cache TTL —
// spec's "no persistence beyond one batch" Non-goal extends to this
// HTTP convenience layer too.
func (h *Handler) GetBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	batchID := chi.URLParam(r, "id")

	if batchID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "batch id is required"})
		return
	}

	if h.resultCache == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "result cache not available"})
		return
	}

	raw, err := h.resultCache.Get(ctx, resultCacheKey(batchID))
	if err != nil {
		slog.Error("failed to read cached batch result", "batch_id", batchID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to read cached result"})
		return
	}
	if raw == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "batch not found"})
		return
	}

	var result domain.ResultBundle
	if err := json.Unmarshal(raw, &result); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to decode cached result"})
		return
	}

	writeJSON(w, http.StatusOK, BatchResponse{BatchID: batchID, Result: &result})
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}
	if h.resultCache != nil {
		if err := h.resultCache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": status, "version": h.version})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"ready": "true"})
}

// ListRules returns all custom overlay rules persisted in the repository.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "repository not available"})
		return
	}

	rules, err := h.repo.ListRuleConfigs(r.Context())
	if err != nil {
		slog.Error("failed to list rule configs", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list rules"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"rules": rules, "count": len(rules)})
}

// GetRule retrieves a single custom overlay rule by id.
func (h *Handler) GetRule(w http.ResponseWriter, r *http.Request) {
	ruleID := chi.URLParam(r, "id")
	if ruleID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "rule id is required"})
		return
	}
	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "repository not available"})
		return
	}

	rule, err := h.repo.GetRuleConfig(r.Context(), ruleID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "rule not found"})
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

// CreateRuleRequest is the request body for POST /rules.
type CreateRuleRequest struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Expression  string  `json:"expression"`
	Points      float64 `json:"points"`
	Enabled     bool    `json:"enabled"`
}

// CreateRule validates, persists, and hot-loads a new custom overlay rule.
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON request body"})
		return
	}
	if req.ID == "" || req.Name == "" || req.Expression == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "id, name, and expression are required"})
		return
	}

	rule := &domain.RuleConfig{
		ID:          req.ID,
		Name:        req.Name,
		Description: req.Description,
		Expression:  req.Expression,
		Points:      req.Points,
		Enabled:     req.Enabled,
	}

	if h.rules != nil {
		if err := h.rules.ValidateRule(rule); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid CEL expression: " + err.Error()})
			return
		}
	}

	if h.repo != nil {
		if err := h.repo.SaveRuleConfig(ctx, rule); err != nil {
			slog.Error("failed to save rule config", "id", rule.ID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to save rule"})
			return
		}
	}

	if rule.Enabled && h.rules != nil {
		if err := h.rules.LoadRule(rule); err != nil {
			slog.Error("failed to hot-load rule", "id", rule.ID, "error", err)
		}
	}

	slog.Info("rule created", "id", rule.ID, "name", rule.Name)
	writeJSON(w, http.StatusCreated, rule)
}

// DeleteRule soft-deletes a custom overlay rule.
func (h *Handler) DeleteRule(w http.ResponseWriter, r *http.Request) {
	ruleID := chi.URLParam(r, "id")
	if ruleID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "rule id is required"})
		return
	}
	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "repository not available"})
		return
	}

	if err := h.repo.DeleteRuleConfig(r.Context(), ruleID); err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "rule not found"})
		return
	}

	slog.Info("rule deleted", "id", ruleID)
	writeJSON(w, http.StatusOK, map[string]string{"message": "rule deleted"})
}

// ReloadRules reloads every enabled rule from the repository into the
// overlay engine — used after out-of-band changes to the rule store.
func (h *Handler) ReloadRules(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "repository not available"})
		return
	}
	if h.rules == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "rule engine not available"})
		return
	}

	configs, err := h.repo.ListRuleConfigs(ctx)
	if err != nil {
		slog.Error("failed to list rule configs", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load rules from repository"})
		return
	}

	if err := h.rules.LoadRules(configs); err != nil {
		slog.Error("failed to reload rules", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to reload rules: " + err.Error()})
		return
	}

	slog.Info("rules reloaded", "count", len(configs))
	writeJSON(w, http.StatusOK, map[string]interface{}{"message": "rules reloaded", "count": len(configs)})
}

func (h *Handler) cacheResult(ctx context.Context, result *domain.ResultBundle) error {
	if h.resultCache == nil {
		return nil
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	return h.resultCache.Set(ctx, resultCacheKey(result.RunID), raw, resultCacheTTL)
}

func (h *Handler) publishBatchCompleted(ctx context.Context, result *domain.ResultBundle) {
	payload, err := json.Marshal(result)
	if err != nil {
		return
	}
	if err := h.bus.Publish(ctx, domain.TopicBatchCompleted, payload); err != nil {
		slog.Error("failed to publish batch completion", "run_id", result.RunID, "error", err)
	}
	for _, ring := range result.FraudRings {
		ringPayload, err := json.Marshal(ring)
		if err != nil {
			continue
		}
		if err := h.bus.Publish(ctx, domain.TopicRingDetected, ringPayload); err != nil {
			slog.Error("failed to publish ring alert", "ring_id", ring.RingID, "error", err)
		}
	}
}

func resultCacheKey(batchID string) string {
	return "batch-result:" + batchID
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
