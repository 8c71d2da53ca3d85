package board

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"nightreign-lobby/internal/board/webhook"
	"nightreign-lobby/internal/lobby"
)

type fakeAdapter struct {
	mu        sync.Mutex
	calls     int
	failFirst int
	forceFail bool
	messages  []webhook.Message
	threads   []string
	forgotten []string
}

func (f *fakeAdapter) Name() string { return "fake" }

func (f *fakeAdapter) Send(_ context.Context, _ string, threadID string, msg webhook.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.messages = append(f.messages, msg)
	f.threads = append(f.threads, threadID)
	if f.forceFail || f.calls <= f.failFirst {
		return errors.New("fail")
	}
	return nil
}

func (f *fakeAdapter) ForgetPanel(_, _ string, panelKey string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forgotten = append(f.forgotten, panelKey)
}

func (f *fakeAdapter) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeAdapter) Messages() []webhook.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]webhook.Message, len(f.messages))
	copy(out, f.messages)
	return out
}

func (f *fakeAdapter) Forgotten() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.forgotten))
	copy(out, f.forgotten)
	return out
}

func (f *fakeAdapter) SetForceFail(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forceFail = v
}

func fakeTarget() Target {
	return Target{Platform: "fake", Endpoint: "https://example.com", ScopeType: ScopeAll, Enabled: true}
}

func startManager(t *testing.T, cfg Config, adapter webhook.Adapter) *Manager {
	t.Helper()
	cfg.Enabled = true
	m := NewManager(cfg)
	m.adapters = map[string]webhook.Adapter{"fake": adapter}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := m.Start(ctx); err != nil {
		t.Fatalf("start manager: %v", err)
	}
	return m
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	if !cond() {
		t.Fatalf("condition not met within %s", timeout)
	}
}

func testLobby(id string, members ...string) lobby.Lobby {
	l := lobby.Lobby{ID: id, Capacity: 3, JoinToken: "tok" + id, Origin: "general"}
	for _, m := range members {
		l.Members = append(l.Members, lobby.Member{ID: m, Name: "Name " + m})
	}
	if len(l.Members) > 0 {
		l.Owner = l.Members[0].ID
	}
	return l
}

func lobbyEvent(typ lobby.EventType, l lobby.Lobby) lobby.Event {
	return lobby.Event{ID: string(typ) + l.ID, Type: typ, LobbyID: l.ID, Lobby: l, At: time.Now()}
}
