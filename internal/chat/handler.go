// Package chat proxies a single chat message to the model API on behalf of a
// registered agent. The API gateway validates the caller's token and injects
// the agent identity headers; direct callers (dev setups without the
// gateway) may present an HS256 bearer token instead.
package chat

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/agentgrid/backend/internal/discovery"
	"github.com/agentgrid/backend/internal/models"
	"github.com/agentgrid/backend/internal/store"
)

const (
	// AppIDHeader and RolesHeader are injected by the gateway from the
	// caller's validated token claims.
	AppIDHeader = "x-agent-appid"
	RolesHeader = "x-agent-roles"

	// RoleChatInvoke is required to call the proxy.
	RoleChatInvoke = "agent.chat.invoke"
)

type chatRequest struct {
	Message string `json:"message"`
}

type chatResponse struct {
	AgentAppID string `json:"agent_appid"`
	AgentRoles string `json:"agent_roles"`
	AgentName  string `json:"agent_name"`
	Answer     string `json:"answer"`
}

type Handler struct {
	store     store.Store
	completer Completer
	jwtSecret []byte
	log       *slog.Logger
}

// NewHandler wires the chat proxy. completer may be nil, which disables the
// endpoint (no API key configured). jwtSecret may be empty, which disables
// the direct-caller bearer path.
func NewHandler(st store.Store, completer Completer, jwtSecret []byte, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{store: st, completer: completer, jwtSecret: jwtSecret, log: log}
}

// Chat serves POST /api/chat.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	if h.completer == nil {
		http.Error(w, `{"error":"chat proxy disabled"}`, http.StatusServiceUnavailable)
		return
	}

	appID, roles := h.callerIdentity(r)
	if appID == "" {
		http.Error(w, `{"error":"missing x-agent-appid (expected the gateway to set it)"}`, http.StatusUnauthorized)
		return
	}

	agent, err := h.lookupAgent(r, appID)
	if err != nil {
		h.log.Error("chat agent lookup failed", "appid", appID, "error", err)
		http.Error(w, `{"error":"agent lookup failed"}`, http.StatusInternalServerError)
		return
	}
	if agent == nil {
		http.Error(w, `{"error":"agent not registered"}`, http.StatusForbidden)
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON body"}`, http.StatusBadRequest)
		return
	}
	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" {
		http.Error(w, `{"error":"missing 'message' in body"}`, http.StatusBadRequest)
		return
	}

	if !hasRole(roles, RoleChatInvoke) {
		http.Error(w, `{"error":"missing required role"}`, http.StatusForbidden)
		return
	}

	system := "You are agent '" + agent.Name + "'. Be concise."
	answer, err := h.completer.Complete(r.Context(), system, req.Message)
	if err != nil {
		h.log.Error("completion call failed", "appid", appID, "error", err)
		http.Error(w, `{"error":"upstream completion failed"}`, http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(chatResponse{
		AgentAppID: appID,
		AgentRoles: roles,
		AgentName:  agent.Name,
		Answer:     answer,
	})
}

// callerIdentity resolves the calling agent's appid and roles from the
// gateway headers, falling back to a validated bearer token when configured.
func (h *Handler) callerIdentity(r *http.Request) (appID, roles string) {
	appID = r.Header.Get(AppIDHeader)
	roles = r.Header.Get(RolesHeader)
	if appID != "" || len(h.jwtSecret) == 0 {
		return appID, roles
	}

	token := bearerToken(r)
	if token == "" {
		return "", roles
	}
	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return h.jwtSecret, nil
	})
	if err != nil || !parsed.Valid {
		return "", roles
	}
	appID, _ = claims["appid"].(string)
	if roles == "" {
		roles, _ = claims["roles"].(string)
	}
	return appID, roles
}

// lookupAgent resolves the agent by id first, then by exact appid match for
// agents registered under a different agent_id.
func (h *Handler) lookupAgent(r *http.Request, appID string) (*models.AgentRecord, error) {
	agent, err := h.store.Get(r.Context(), appID)
	if err != nil || agent != nil {
		return agent, err
	}
	qn := discovery.FoldCase(appID)
	candidates, err := h.store.Query(r.Context(), store.Filter{Kind: store.MatchExact, Term: qn}, 5)
	if err != nil {
		return nil, err
	}
	for _, c := range candidates {
		if c.AppIDLC == qn {
			return h.store.Get(r.Context(), c.AgentID)
		}
	}
	return nil, nil
}

func hasRole(roles, want string) bool {
	for _, r := range strings.Split(roles, ",") {
		if strings.TrimSpace(r) == want {
			return true
		}
	}
	return false
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}
