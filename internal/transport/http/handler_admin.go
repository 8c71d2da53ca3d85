package httptransport

import (
	"context"
	"net/http"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type AdminHandlers struct {
	lobbies LobbyService
	db      Pinger
}

func NewAdminHandlers(svc LobbyService, db Pinger) *AdminHandlers {
	return &AdminHandlers{lobbies: svc, db: db}
}

func (h *AdminHandlers) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out := map[string]any{"ok": true, "db": "disabled", "lobbies": len(h.lobbies.Lobbies())}
		if h.db != nil {
			if err := h.db.Ping(r.Context()); err != nil {
				out["ok"] = false
				out["db"] = "down"
				writeJSON(w, http.StatusServiceUnavailable, out)
				return
			}
			out["db"] = "up"
		}
		writeJSON(w, http.StatusOK, out)
	}
}
