package registry

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/agentgrid/backend/internal/discovery"
	"github.com/agentgrid/backend/internal/models"
)

// Response shapes mirror the discovery API contract (snake_case JSON).

type listResponse struct {
	Count       int                   `json:"count"`
	Q           *string               `json:"q"`
	Message     string                `json:"message"`
	TimingMs    discovery.Timing      `json:"timing_ms"`
	Diagnostics discovery.Diagnostics `json:"diagnostics"`
	Agents      []*models.AgentRecord `json:"agents"`
}

type matchResponse struct {
	Count            int                   `json:"count"`
	Q                string                `json:"q"`
	BestMatch        *models.AgentRecord   `json:"best_match"`
	BestMatchScore   int                   `json:"best_match_score"`
	BestMatchReasons []string              `json:"best_match_reasons"`
	Justification    string                `json:"justification"`
	TimingMs         discovery.Timing      `json:"timing_ms"`
	Diagnostics      discovery.Diagnostics `json:"diagnostics"`
	CandidatesRanked []models.MatchResult  `json:"candidates_ranked,omitempty"`
}

type errorResponse struct {
	Error    string            `json:"error"`
	TimingMs *discovery.Timing `json:"timing_ms,omitempty"`
}

type statusResponse struct {
	Status  string              `json:"status"`
	Agent   *models.AgentRecord `json:"agent,omitempty"`
	Deleted string              `json:"deleted,omitempty"`
}

// EnqueueReindexFunc schedules a background shadow-field reindex job.
type EnqueueReindexFunc func(ctx context.Context, requestedBy string) error

type Handler struct {
	svc            Service
	disc           *discovery.Service
	validator      *Validator
	enqueueReindex EnqueueReindexFunc
	log            *slog.Logger
}

// NewHandler wires the registry endpoints. validator and enqueueReindex may
// be nil: schema validation is then skipped and reindex returns 503.
func NewHandler(svc Service, disc *discovery.Service, validator *Validator, enqueueReindex EnqueueReindexFunc, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{svc: svc, disc: disc, validator: validator, enqueueReindex: enqueueReindex, log: log}
}

// Discover serves GET /api/registry/discover.
func (h *Handler) Discover(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	opts := discovery.Options{
		Q:           strings.TrimSpace(params.Get("q")),
		Debug:       parseTruthy(params.Get("debug"), false),
		IncludeFull: parseTruthy(params.Get("include_full"), false),
		TopK:        parseTop(params.Get("top")),
	}

	res, err := h.disc.Discover(r.Context(), opts)
	if err != nil {
		h.log.Error("discovery failed", "q", opts.Q, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error:    "discovery failed",
			TimingMs: &res.Timing,
		})
		return
	}

	if opts.Q == "" {
		writeJSON(w, http.StatusOK, listResponse{
			Count:       res.Count,
			Q:           nil,
			Message:     "No query provided. Returned registry list.",
			TimingMs:    res.Timing,
			Diagnostics: res.Diagnostics,
			Agents:      emptyAgentsIfNil(res.Agents),
		})
		return
	}

	resp := matchResponse{
		Count:            res.Count,
		Q:                res.Q,
		BestMatch:        res.BestAgent,
		BestMatchReasons: []string{},
		Justification:    res.Justification,
		TimingMs:         res.Timing,
		Diagnostics:      res.Diagnostics,
	}
	if res.Best != nil {
		resp.BestMatchScore = res.Best.Score
		resp.BestMatchReasons = res.Best.Reasons
	}
	if opts.Debug {
		resp.CandidatesRanked = res.Ranked
	}
	writeJSON(w, http.StatusOK, resp)
}

// Register serves POST /api/registry/register (admin).
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "unreadable request body"})
		return
	}
	if h.validator != nil {
		if err := h.validator.ValidateAgent(body); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
	}
	var rec models.AgentRecord
	if err := json.Unmarshal(body, &rec); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}

	saved, err := h.svc.Register(r.Context(), &rec)
	if err != nil {
		if errors.Is(err, ErrValidation) {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
		h.log.Error("register failed", "agent_id", rec.AgentID, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "register failed"})
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "ok", Agent: saved})
}

// GetAgent serves GET /api/registry/agents/{agent_id}.
func (h *Handler) GetAgent(w http.ResponseWriter, r *http.Request) {
	agentID := r.PathValue("agent_id")
	if agentID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing agent_id"})
		return
	}
	rec, err := h.svc.Get(r.Context(), agentID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
			return
		}
		h.log.Error("get agent failed", "agent_id", agentID, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "get failed"})
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// PatchAgent serves PATCH /api/registry/agents/{agent_id} (admin).
func (h *Handler) PatchAgent(w http.ResponseWriter, r *http.Request) {
	agentID := r.PathValue("agent_id")
	if agentID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing agent_id"})
		return
	}
	var patch PatchRequest
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}
	rec, err := h.svc.Patch(r.Context(), agentID, patch)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
		case errors.Is(err, ErrValidation):
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		default:
			h.log.Error("patch agent failed", "agent_id", agentID, "error", err)
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "patch failed"})
		}
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "ok", Agent: rec})
}

// DeleteAgent serves DELETE /api/registry/agents/{agent_id} (admin).
func (h *Handler) DeleteAgent(w http.ResponseWriter, r *http.Request) {
	agentID := r.PathValue("agent_id")
	if agentID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing agent_id"})
		return
	}
	if err := h.svc.Delete(r.Context(), agentID); err != nil {
		if errors.Is(err, ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
			return
		}
		h.log.Error("delete agent failed", "agent_id", agentID, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "delete failed"})
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "ok", Deleted: agentID})
}

// Reindex serves POST /api/registry/reindex (admin): schedules a background
// job that re-derives shadow fields for records written out-of-band.
func (h *Handler) Reindex(w http.ResponseWriter, r *http.Request) {
	if h.enqueueReindex == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "reindex unavailable"})
		return
	}
	if err := h.enqueueReindex(r.Context(), r.RemoteAddr); err != nil {
		h.log.Error("enqueue reindex failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "reindex failed"})
		return
	}
	writeJSON(w, http.StatusAccepted, statusResponse{Status: "ok"})
}

// parseTruthy is the enumerated boolean parser for query flags; anything
// outside the accepted set is the default, never an error.
func parseTruthy(v string, def bool) bool {
	if v == "" {
		return def
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "y", "on":
		return true
	default:
		return false
	}
}

// parseTop accepts only all-digit values and clamps them to [1, MaxTopK];
// anything else falls back to the configured default (0 sentinel).
func parseTop(v string) int {
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0
	}
	if n < 1 {
		n = 1
	}
	if n > discovery.MaxTopK {
		n = discovery.MaxTopK
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func emptyAgentsIfNil(agents []*models.AgentRecord) []*models.AgentRecord {
	if agents == nil {
		return []*models.AgentRecord{}
	}
	return agents
}
