package board

import (
	"time"

	"nightreign-lobby/internal/board/webhook"
	"nightreign-lobby/internal/lobby"
)

const (
	ScopeAll    = "all"
	ScopeOrigin = "origin"
	ScopeLobby  = "lobby"
)

// Target is one webhook the board mirrors lobbies into. ScopeValue holds the
// origin channel or lobby id for the narrower scopes.
type Target struct {
	Platform       string   `json:"platform"`
	Endpoint       string   `json:"endpoint"`
	ThreadID       string   `json:"thread_id"`
	ScopeType      string   `json:"scope_type"`
	ScopeValue     string   `json:"scope_value"`
	EventAllowlist []string `json:"event_allowlist"`
	Enabled        bool     `json:"enabled"`
}

type Config struct {
	Enabled             bool
	ConfigPath          string
	ConfigReload        time.Duration
	Targets             []Target
	Workers             int
	RetryMax            int
	RetryBase           time.Duration
	FlushInterval       time.Duration
	RecentEvents        int
	FailureThreshold    int
	CircuitOpenDuration time.Duration
	RequestTimeout      time.Duration
	DispatchBuffer      int
}

type pushJob struct {
	Target        Target
	EventType     lobby.EventType
	Message       webhook.Message
	Attempt       int
	PanelStateKey string
	PanelTerminal bool

	panelVersion int
}

func (j pushJob) key() string {
	return targetKey(j.Target)
}

func targetKey(t Target) string {
	return t.Platform + "|" + t.Endpoint + "|" + t.ThreadID + "|" + t.ScopeType + "|" + t.ScopeValue
}
