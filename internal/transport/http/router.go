package httptransport

import (
	"expvar"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"nightreign-lobby/internal/config"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

// NewRouter builds the ops API. events and db may be nil when the journal
// store is not configured.
func NewRouter(svc LobbyService, events EventLister, db Pinger, cfg config.ServerConfig) *chi.Mux {
	lobbyHandlers := NewLobbyHandlers(svc, events)
	adminHandlers := NewAdminHandlers(svc, db)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)

	r.With(APILogMiddleware()).Get("/healthz", adminHandlers.Health())

	r.Route("/api", func(r chi.Router) {
		r.Use(APILogMiddleware())
		r.Get("/lobbies", lobbyHandlers.List())
		r.Get("/lobbies/{lobby_id}", lobbyHandlers.Get())
		r.Get("/lobbies/{lobby_id}/events", lobbyHandlers.Events())
		r.Get("/users/{user_id}/lobby", lobbyHandlers.UserLobby())
		r.Get("/match-requests", lobbyHandlers.MatchRequests())

		r.Group(func(r chi.Router) {
			r.Use(AdminAuthMiddleware(cfg.AdminAPIKey))
			r.With(BodyCaptureMiddleware(4096)).Delete("/lobbies/{lobby_id}", lobbyHandlers.Remove())
			r.Get("/debug/vars", expvar.Handler().ServeHTTP)
		})
	})
	return r
}

func LogRoutes(r chi.Router) {
	type routeDef struct {
		Method string
		Path   string
	}
	routes := make([]routeDef, 0, 16)
	err := chi.Walk(r, func(method string, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		routes = append(routes, routeDef{Method: method, Path: route})
		return nil
	})
	if err != nil {
		log.Error().Err(err).Msg("walk routes failed")
		return
	}
	sort.Slice(routes, func(i, j int) bool {
		if routes[i].Path == routes[j].Path {
			return routes[i].Method < routes[j].Method
		}
		return routes[i].Path < routes[j].Path
	})
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Registered routes (%d):\n", len(routes)))
	for _, rt := range routes {
		b.WriteString(fmt.Sprintf("  %-6s %s\n", rt.Method, rt.Path))
	}
	fmt.Print(b.String())
}
