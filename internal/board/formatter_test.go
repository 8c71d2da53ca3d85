package board

import (
	"strings"
	"testing"
	"time"

	"nightreign-lobby/internal/lobby"
)

func TestFormatPanelMessageLayout(t *testing.T) {
	l := testLobby("110000000000001234", "a", "b")
	l.FriendCode = "123456789"
	panel := &panelState{
		key:    "k",
		lobby:  l,
		recent: []string{"20:00 <@a> opened the lobby", "20:01 <@b> joined"},
		lastAt: time.Date(2026, 1, 1, 20, 1, 0, 0, time.UTC),
	}

	msg := formatPanelMessage(panel)
	if msg.Title != "Name a's lobby | 🟢 Open" {
		t.Fatalf("unexpected title: %s", msg.Title)
	}
	if msg.Timestamp != "2026-01-01T20:01:00Z" {
		t.Fatalf("unexpected timestamp: %s", msg.Timestamp)
	}
	if len(msg.Fields) != 4 {
		t.Fatalf("expected 4 fields, got %d", len(msg.Fields))
	}
	if msg.Fields[0].Value != "👑 <@a>\n<@b>" {
		t.Fatalf("unexpected player list: %q", msg.Fields[0].Value)
	}
	if msg.Fields[2].Name != "🎮 Game code" {
		t.Fatalf("unexpected field order: %#v", msg.Fields)
	}
	if !strings.Contains(msg.Fields[3].Value, "<@b> joined") {
		t.Fatalf("missing recent activity: %q", msg.Fields[3].Value)
	}

	panel.closed = true
	panel.reason = lobby.ReasonEmptyTimeout
	panel.lobby = testLobby("110000000000001234")
	msg = formatPanelMessage(panel)
	if msg.Title != "Lobby #1234 | 🔴 Closed" || msg.Color != colorClosed {
		t.Fatalf("unexpected closed panel: %s %x", msg.Title, msg.Color)
	}
	if msg.Fields[0].Value != "_empty_" || msg.Fields[2].Value != "nobody came back" {
		t.Fatalf("unexpected closed fields: %#v", msg.Fields)
	}
}

func TestEventLine(t *testing.T) {
	at := time.Date(2026, 1, 1, 9, 5, 0, 0, time.UTC)
	cases := []struct {
		ev   lobby.Event
		want string
	}{
		{lobby.Event{Type: lobby.EventMemberJoined, Actor: "b", Subject: "b", At: at}, "09:05 <@b> joined"},
		{lobby.Event{Type: lobby.EventMemberJoined, Actor: "a", Subject: "c", At: at}, "09:05 <@a> let <@c> in"},
		{lobby.Event{Type: lobby.EventMemberKicked, Actor: "a", Subject: "c", At: at}, "09:05 <@c> was kicked"},
		{lobby.Event{Type: lobby.EventLobbyDeleted, Reason: lobby.ReasonInactive, At: at}, "09:05 closed: inactive for too long"},
		{lobby.Event{Type: lobby.EventMatchDenied, At: at}, ""},
	}
	for _, tc := range cases {
		if got := eventLine(tc.ev); got != tc.want {
			t.Fatalf("%s: expected %q, got %q", tc.ev.Type, tc.want, got)
		}
	}
}

func TestFormatMessageMatchEvents(t *testing.T) {
	req := &lobby.MatchRequest{ID: "01JREQUESTIDXYZ", Requester: lobby.Member{ID: "r"}, DeniedBy: []string{"1"}}
	msg, ok := FormatMessage(lobby.Event{Type: lobby.EventMatchExpired, Request: req})
	if !ok {
		t.Fatal("expected expired request to format")
	}
	if msg.Description != "No lobby accepted <@r> in time." {
		t.Fatalf("unexpected description: %s", msg.Description)
	}
	if !strings.HasSuffix(msg.Footer, "request:01JREQUEST") {
		t.Fatalf("unexpected footer: %s", msg.Footer)
	}
	if msg.Timestamp != "" {
		t.Fatalf("zero time should leave timestamp empty")
	}

	if _, ok := FormatMessage(lobby.Event{Type: lobby.EventMatchCancelled, Request: req}); ok {
		t.Fatal("cancelled requests are not posted")
	}
	if _, ok := FormatMessage(lobby.Event{Type: lobby.EventMatchRequested}); ok {
		t.Fatal("events without a request are not posted")
	}
}
