package httptransport

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"nightreign-lobby/internal/lobby"
	"nightreign-lobby/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"
)

// LobbyService is the read side of the coordinator plus the operator
// removal path.
type LobbyService interface {
	Lobbies() []lobby.Lobby
	Lobby(id string) (lobby.Lobby, bool)
	LobbyOf(userID string) (lobby.Lobby, bool)
	MatchRequests() []lobby.MatchRequest
	PendingMatch(requesterID string) (lobby.MatchRequest, bool)
	Remove(ctx context.Context, lobbyID, reason string) error
}

type EventLister interface {
	ListLobbyEvents(ctx context.Context, lobbyID string, limit int) ([]store.LobbyEvent, error)
}

type LobbyHandlers struct {
	lobbies LobbyService
	events  EventLister
}

func NewLobbyHandlers(svc LobbyService, events EventLister) *LobbyHandlers {
	return &LobbyHandlers{lobbies: svc, events: events}
}

func (h *LobbyHandlers) List() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		metricLobbyQueryTotal.Add(1)
		items := h.lobbies.Lobbies()
		if open, _ := strconv.ParseBool(r.URL.Query().Get("open")); open {
			items = lo.Filter(items, func(l lobby.Lobby, _ int) bool { return len(l.Members) > 0 && !l.Full() })
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items, "count": len(items)})
	}
}

func (h *LobbyHandlers) Get() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		metricLobbyQueryTotal.Add(1)
		l, ok := h.lobbies.Lobby(chi.URLParam(r, "lobby_id"))
		if !ok {
			writeLobbyError(w, lobby.ErrLobbyNotFound)
			return
		}
		writeJSON(w, http.StatusOK, l)
	}
}

func (h *LobbyHandlers) Events() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		metricEventsQueryTotal.Add(1)
		if h.events == nil {
			WriteHTTPError(w, http.StatusServiceUnavailable, "journal_disabled")
			return
		}
		lobbyID := strings.TrimSpace(chi.URLParam(r, "lobby_id"))
		limit := parseLimit(r, 100, 1000)
		items, err := h.events.ListLobbyEvents(r.Context(), lobbyID, limit)
		if err != nil {
			metricEventsQueryErrors.Add(1)
			WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"lobby_id": lobbyID, "items": items, "limit": limit})
	}
}

func (h *LobbyHandlers) UserLobby() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "user_id")
		out := map[string]any{"user_id": userID, "lobby": nil, "match_request": nil}
		if l, ok := h.lobbies.LobbyOf(userID); ok {
			out["lobby"] = l
		}
		if req, ok := h.lobbies.PendingMatch(userID); ok {
			out["match_request"] = req
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func (h *LobbyHandlers) MatchRequests() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		items := h.lobbies.MatchRequests()
		writeJSON(w, http.StatusOK, map[string]any{"items": items, "count": len(items)})
	}
}

// Remove force-ends a lobby on behalf of an operator.
func (h *LobbyHandlers) Remove() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		metricAdminRemoveTotal.Add(1)
		lobbyID := chi.URLParam(r, "lobby_id")
		reason := strings.TrimSpace(r.URL.Query().Get("reason"))
		if err := h.lobbies.Remove(r.Context(), lobbyID, reason); err != nil {
			metricAdminRemoveErrors.Add(1)
			writeLobbyError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "lobby_id": lobbyID})
	}
}
