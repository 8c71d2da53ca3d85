package board

import (
	"context"
	"fmt"
	"strings"
	"time"

	"nightreign-lobby/internal/board/webhook"
	"nightreign-lobby/internal/lobby"

	"github.com/samber/lo"
)

type panelState struct {
	key     string
	target  Target
	lobby   lobby.Lobby
	reason  string
	recent  []string
	lastAt  time.Time
	version int
	sent    int
	closed  bool

	inflight bool
}

func (p *panelState) dirty() bool { return p.version != p.sent }

func (m *Manager) accumulatePanel(target Target, ev lobby.Event) {
	panelKey := targetKey(target) + "|" + ev.LobbyID

	m.mu.Lock()
	defer m.mu.Unlock()

	panel := m.panelByKey[panelKey]
	if panel == nil {
		panel = &panelState{
			key:    panelKey,
			target: target,
			recent: make([]string, 0, m.cfg.RecentEvents),
		}
		m.panelByKey[panelKey] = panel
		metricPanelsActive.Set(int64(len(m.panelByKey)))
	}
	if panel.closed {
		return
	}

	panel.target = target
	panel.lobby = ev.Lobby
	if ev.At.After(panel.lastAt) {
		panel.lastAt = ev.At
	}
	if line := eventLine(ev); line != "" {
		panel.recent = append(panel.recent, line)
		if len(panel.recent) > m.cfg.RecentEvents {
			panel.recent = panel.recent[len(panel.recent)-m.cfg.RecentEvents:]
		}
	}
	if ev.Terminal() {
		panel.closed = true
		panel.reason = ev.Reason
	}
	panel.version++
}

func (m *Manager) flushPanelsLoop(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.FlushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.done:
			return
		case <-ticker.C:
			m.flushDirtyPanels()
		}
	}
}

// flushDirtyPanels queues one render per changed panel. A panel with a send
// in flight waits for the next tick so edits never race each other.
func (m *Manager) flushDirtyPanels() {
	m.flushMu.Lock()
	defer m.flushMu.Unlock()

	jobs := make([]pushJob, 0)
	m.mu.Lock()
	for key, panel := range m.panelByKey {
		if panel == nil || !panel.dirty() || panel.inflight {
			continue
		}
		panel.inflight = true
		jobs = append(jobs, pushJob{
			Target:        panel.target,
			EventType:     "panel_update",
			Message:       formatPanelMessage(panel),
			PanelStateKey: key,
			PanelTerminal: panel.closed,
			panelVersion:  panel.version,
		})
	}
	m.mu.Unlock()

	for _, job := range jobs {
		if m.enqueue(job) {
			continue
		}
		metricDroppedTotal.Add(1)
		m.mu.Lock()
		if panel := m.panelByKey[job.PanelStateKey]; panel != nil {
			panel.inflight = false
		}
		m.mu.Unlock()
	}
}

func (m *Manager) markPanelDeliverySuccess(job pushJob) {
	if job.PanelStateKey == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	panel := m.panelByKey[job.PanelStateKey]
	if panel == nil {
		return
	}
	panel.inflight = false
	panel.sent = job.panelVersion
	if job.PanelTerminal {
		delete(m.panelByKey, job.PanelStateKey)
		metricPanelsActive.Set(int64(len(m.panelByKey)))
	}
}

func (m *Manager) markPanelDeliveryDropped(job pushJob) {
	if job.PanelStateKey == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	panel := m.panelByKey[job.PanelStateKey]
	if panel == nil {
		return
	}
	panel.inflight = false
}

func (m *Manager) panelCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.panelByKey)
}

func formatPanelMessage(panel *panelState) webhook.Message {
	l := panel.lobby
	status := panelStatus(panel)
	fields := []webhook.Field{
		{Name: fmt.Sprintf("👥 Players (%d/%d)", len(l.Members), l.Capacity), Value: playerList(l), Inline: true},
		{Name: "🔑 Join token", Value: "`" + fallback(l.JoinToken, "-") + "`", Inline: true},
	}
	if l.FriendCode != "" {
		fields = append(fields, webhook.Field{Name: "🎮 Game code", Value: "`" + l.FriendCode + "`", Inline: true})
	}
	if panel.reason != "" {
		fields = append(fields, webhook.Field{Name: "⚠️ Closed", Value: reasonText(panel.reason), Inline: false})
	}
	activity := "No activity yet"
	if len(panel.recent) > 0 {
		activity = strings.Join(panel.recent, "\n")
	}
	fields = append(fields, webhook.Field{Name: "📜 Recent activity", Value: activity, Inline: false})

	color := colorOpen
	switch status {
	case "closed":
		color = colorClosed
	case "full":
		color = colorFull
	case "empty":
		color = colorWarn
	}

	return webhook.Message{
		PanelKey:    panel.key,
		Title:       fmt.Sprintf("%s | %s", lobbyTitle(l), statusBadge(status)),
		Description: fmt.Sprintf("<#%s> | %d open slot(s) | %s", l.ID, l.OpenSlots(), lastSeen(l.LastActivityAt)),
		Color:       color,
		Timestamp:   eventTimestamp(panel.lastAt),
		Footer:      "lobby:" + shortID(fallback(l.ID, "-"), shortIDLimit),
		Fields:      fields,
	}
}

func panelStatus(panel *panelState) string {
	switch {
	case panel.closed:
		return "closed"
	case len(panel.lobby.Members) == 0:
		return "empty"
	case panel.lobby.Full():
		return "full"
	default:
		return "open"
	}
}

func statusBadge(status string) string {
	switch status {
	case "open":
		return "🟢 Open"
	case "full":
		return "🟠 Full"
	case "empty":
		return "🟡 Empty"
	case "closed":
		return "🔴 Closed"
	default:
		return "⚪ " + titleCase(status)
	}
}

func lobbyTitle(l lobby.Lobby) string {
	if owner, ok := l.OwnerMember(); ok && owner.Name != "" {
		return owner.Name + "'s lobby"
	}
	return "Lobby #" + lastDigits(l.ID, 4)
}

func playerList(l lobby.Lobby) string {
	if len(l.Members) == 0 {
		return "_empty_"
	}
	return strings.Join(lo.Map(l.Members, func(m lobby.Member, _ int) string {
		if m.ID == l.Owner {
			return "👑 <@" + m.ID + ">"
		}
		return "<@" + m.ID + ">"
	}), "\n")
}

func eventLine(ev lobby.Event) string {
	clock := ev.At.Format("15:04")
	var text string
	switch ev.Type {
	case lobby.EventLobbyCreated:
		text = fmt.Sprintf("<@%s> opened the lobby", ev.Actor)
	case lobby.EventLobbyRestored:
		text = "restored after restart"
	case lobby.EventMemberJoined:
		if ev.Actor != "" && ev.Actor != ev.Subject {
			text = fmt.Sprintf("<@%s> let <@%s> in", ev.Actor, ev.Subject)
		} else {
			text = fmt.Sprintf("<@%s> joined", ev.Subject)
		}
	case lobby.EventMemberLeft:
		text = fmt.Sprintf("<@%s> left", ev.Subject)
	case lobby.EventMemberKicked:
		text = fmt.Sprintf("<@%s> was kicked", ev.Subject)
	case lobby.EventOwnerChanged:
		text = fmt.Sprintf("<@%s> is now the owner", ev.Subject)
	case lobby.EventLobbyEmptied:
		text = "lobby is empty"
	case lobby.EventMatchAccepted:
		text = fmt.Sprintf("matched <@%s>", ev.Subject)
	case lobby.EventLobbyDeleted:
		text = "closed: " + reasonText(ev.Reason)
	default:
		return ""
	}
	return clock + " " + text
}

func reasonText(reason string) string {
	switch reason {
	case lobby.ReasonEmptyTimeout:
		return "nobody came back"
	case lobby.ReasonInactive:
		return "inactive for too long"
	case lobby.ReasonEnded:
		return "session ended"
	case lobby.ReasonRemoved:
		return "removed by an operator"
	default:
		return fallback(reason, "-")
	}
}

func lastSeen(at time.Time) string {
	if at.IsZero() {
		return "no activity yet"
	}
	return "last activity " + at.Format("15:04:05")
}
