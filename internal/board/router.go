package board

import (
	"strings"

	"nightreign-lobby/internal/lobby"

	"github.com/samber/lo"
)

type Router struct{}

func (r Router) MatchTargets(targets []Target, ev lobby.Event) []Target {
	return lo.Filter(targets, func(t Target, _ int) bool {
		return t.Enabled && scopeMatches(t, ev) && eventAllowed(t.EventAllowlist, string(ev.Type))
	})
}

func scopeMatches(t Target, ev lobby.Event) bool {
	switch t.ScopeType {
	case ScopeAll:
		return true
	case ScopeOrigin:
		return t.ScopeValue != "" && t.ScopeValue == ev.Lobby.Origin
	case ScopeLobby:
		return t.ScopeValue != "" && t.ScopeValue == ev.LobbyID
	default:
		return false
	}
}

func eventAllowed(allowlist []string, evType string) bool {
	if len(allowlist) == 0 {
		return true
	}
	evType = strings.ToLower(strings.TrimSpace(evType))
	return lo.ContainsBy(allowlist, func(v string) bool {
		return v != "" && strings.ToLower(strings.TrimSpace(v)) == evType
	})
}
