package router

import (
	"net/http"

	"github.com/agentgrid/backend/internal/chat"
	"github.com/agentgrid/backend/internal/middleware"
	"github.com/agentgrid/backend/internal/registry"
)

// New returns the API handler. Mutating registry endpoints sit behind the
// admin-key check; discovery and point reads are open.
func New(reg *registry.Handler, ch *chat.Handler, adminKey string) http.Handler {
	mux := http.NewServeMux()
	admin := middleware.AdminKeyAuth(adminKey)

	mux.Handle("GET /api/registry/discover", http.HandlerFunc(reg.Discover))
	mux.Handle("POST /api/registry/register", admin(http.HandlerFunc(reg.Register)))
	mux.Handle("GET /api/registry/agents/{agent_id}", http.HandlerFunc(reg.GetAgent))
	mux.Handle("PATCH /api/registry/agents/{agent_id}", admin(http.HandlerFunc(reg.PatchAgent)))
	mux.Handle("DELETE /api/registry/agents/{agent_id}", admin(http.HandlerFunc(reg.DeleteAgent)))
	mux.Handle("POST /api/registry/reindex", admin(http.HandlerFunc(reg.Reindex)))
	mux.Handle("POST /api/chat", http.HandlerFunc(ch.Chat))

	return middleware.RequestID(mux)
}
