package board

import (
	"testing"

	"nightreign-lobby/internal/lobby"
)

func TestRouterMatchTargets(t *testing.T) {
	targets := []Target{
		{Platform: "discord", Endpoint: "a", ScopeType: ScopeAll, Enabled: true},
		{Platform: "discord", Endpoint: "b", ScopeType: ScopeOrigin, ScopeValue: "general", Enabled: true},
		{Platform: "discord", Endpoint: "c", ScopeType: ScopeLobby, ScopeValue: "1001", Enabled: true},
		{Platform: "discord", Endpoint: "d", ScopeType: ScopeLobby, ScopeValue: "2002", Enabled: true},
		{Platform: "discord", Endpoint: "e", ScopeType: ScopeAll, Enabled: false},
		{Platform: "discord", Endpoint: "f", ScopeType: ScopeAll, EventAllowlist: []string{"lobby_deleted"}, Enabled: true},
	}

	got := Router{}.MatchTargets(targets, lobbyEvent(lobby.EventMemberJoined, testLobby("1001", "a")))
	if len(got) != 3 {
		t.Fatalf("expected 3 matched targets, got %d: %#v", len(got), got)
	}
	for i, want := range []string{"a", "b", "c"} {
		if got[i].Endpoint != want {
			t.Fatalf("target %d: expected %s, got %s", i, want, got[i].Endpoint)
		}
	}

	got = Router{}.MatchTargets(targets, lobbyEvent(lobby.EventLobbyDeleted, testLobby("1001")))
	if len(got) != 4 {
		t.Fatalf("expected allowlisted target to match, got %d", len(got))
	}

	// Match requests carry no lobby, so only unscoped targets see them.
	got = Router{}.MatchTargets(targets, lobby.Event{Type: lobby.EventMatchRequested})
	if len(got) != 1 || got[0].Endpoint != "a" {
		t.Fatalf("expected only the all-scope target, got %#v", got)
	}
}

func TestEventAllowedIsCaseInsensitive(t *testing.T) {
	if !eventAllowed([]string{" Member_Joined "}, "member_joined") {
		t.Fatal("expected case-insensitive match")
	}
	if eventAllowed([]string{""}, "member_joined") {
		t.Fatal("blank entries must not match")
	}
}
