package board

import (
	"context"
	"os"
	"strings"
	"sync"
	"time"

	"nightreign-lobby/internal/board/webhook"
	"nightreign-lobby/internal/lobby"

	"github.com/rs/zerolog/log"
)

// Manager mirrors lobby events into webhook channels. Lobby events are folded
// into one live panel per lobby and target; match requests and expiries are
// posted as standalone messages.
type Manager struct {
	cfg      Config
	router   Router
	adapters map[string]webhook.Adapter

	dispatchCh chan pushJob
	retryQ     *retryQueue
	done       chan struct{}

	flushMu      sync.Mutex
	mu           sync.Mutex
	started      bool
	panelByKey   map[string]*panelState
	breakerByKey map[string]breakerState
}

func NewManager(cfg Config) *Manager {
	if cfg.DispatchBuffer <= 0 {
		cfg.DispatchBuffer = 1024
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 500 * time.Millisecond
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = time.Second
	}
	if cfg.RecentEvents <= 0 {
		cfg.RecentEvents = 5
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 3
	}
	if cfg.CircuitOpenDuration <= 0 {
		cfg.CircuitOpenDuration = 30 * time.Second
	}
	if cfg.ConfigReload <= 0 {
		cfg.ConfigReload = time.Second
	}

	client := webhook.NewHTTPClient(cfg.RequestTimeout)
	m := &Manager{
		cfg:    cfg,
		router: Router{},
		adapters: map[string]webhook.Adapter{
			"discord": webhook.NewDiscordAdapter(client),
		},
		dispatchCh:   make(chan pushJob, cfg.DispatchBuffer),
		done:         make(chan struct{}),
		panelByKey:   map[string]*panelState{},
		breakerByKey: map[string]breakerState{},
	}
	m.retryQ = newRetryQueue(m.dispatchCh, m.done)
	return m
}

// Start launches the workers and the flush loop. They stop when ctx is done.
func (m *Manager) Start(ctx context.Context) error {
	if !m.cfg.Enabled {
		return nil
	}

	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return nil
	}
	m.started = true
	m.mu.Unlock()

	for i := 0; i < m.cfg.Workers; i++ {
		go m.worker(ctx)
	}
	if m.cfg.ConfigPath != "" {
		go m.watchConfigLoop(ctx)
	}
	go m.flushPanelsLoop(ctx)
	go func() {
		<-ctx.Done()
		close(m.done)
		m.mu.Lock()
		m.panelByKey = map[string]*panelState{}
		m.mu.Unlock()
		metricPanelsActive.Set(0)
	}()
	log.Info().Int("targets", len(m.currentTargets())).Int("workers", m.cfg.Workers).Msg("lobby board started")
	return nil
}

// OnLobbyEvent implements lobby.Observer.
func (m *Manager) OnLobbyEvent(ev lobby.Event) {
	if !m.cfg.Enabled {
		return
	}
	m.handleEvent(ev)
}

func (m *Manager) handleEvent(ev lobby.Event) {
	if ev.Type == "" {
		return
	}
	targets := m.router.MatchTargets(m.currentTargets(), ev)
	if len(targets) == 0 {
		return
	}

	if isPanelEvent(ev) {
		for _, target := range targets {
			m.accumulatePanel(target, ev)
		}
		if ev.Terminal() {
			m.flushDirtyPanels()
		}
		return
	}

	msg, ok := FormatMessage(ev)
	if !ok {
		return
	}
	for _, target := range targets {
		if !m.enqueue(pushJob{Target: target, EventType: ev.Type, Message: msg}) {
			metricDroppedTotal.Add(1)
		}
	}
}

// isPanelEvent reports whether ev carries a lobby snapshot worth rendering.
func isPanelEvent(ev lobby.Event) bool {
	return ev.Lobby.ID != "" && ev.Type != lobby.EventMatchDenied
}

func (m *Manager) enqueue(job pushJob) bool {
	select {
	case <-m.done:
		return false
	case m.dispatchCh <- job:
		metricQueuedTotal.Add(1)
		metricQueueLen.Set(int64(len(m.dispatchCh)))
		return true
	default:
		return false
	}
}

func (m *Manager) currentTargets() []Target {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Target, len(m.cfg.Targets))
	copy(out, m.cfg.Targets)
	return out
}

func (m *Manager) setTargets(targets []Target) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cfg.Targets = targets
}

func (m *Manager) watchConfigLoop(ctx context.Context) {
	lastRaw := ""
	if raw, err := os.ReadFile(m.cfg.ConfigPath); err == nil {
		lastRaw = strings.TrimSpace(string(raw))
	}
	ticker := time.NewTicker(m.cfg.ConfigReload)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.done:
			return
		case <-ticker.C:
			raw, err := os.ReadFile(m.cfg.ConfigPath)
			if err != nil {
				metricConfigReloadError.Add(1)
				continue
			}
			nextRaw := strings.TrimSpace(string(raw))
			if nextRaw == lastRaw {
				continue
			}
			targets, err := parseTargetsJSON(nextRaw)
			if err != nil {
				metricConfigReloadError.Add(1)
				log.Warn().Err(err).Str("path", m.cfg.ConfigPath).Msg("board config reload failed")
				continue
			}
			m.setTargets(targets)
			lastRaw = nextRaw
			metricConfigReloadTotal.Add(1)
			log.Info().Int("targets", len(targets)).Msg("board config reloaded")
		}
	}
}
