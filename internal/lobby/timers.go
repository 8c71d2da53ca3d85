package lobby

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// emptyTimer is the handle for a lobby's pending empty-lobby reclamation. A
// firing timer only acts while it is still the lobby's current handle.
type emptyTimer struct {
	t       *time.Timer
	armedAt time.Time
}

// armEmptyTimerLocked schedules reclamation of an empty lobby. Arming an
// already armed lobby is a no-op.
func (c *Coordinator) armEmptyTimerLocked(l *lobbyState) {
	if l.emptyTimer != nil || c.closed {
		return
	}
	h := &emptyTimer{armedAt: c.now()}
	id := l.id
	h.t = time.AfterFunc(c.cfg.EmptyGrace, func() { c.expireEmpty(id, h) })
	l.emptyTimer = h
	l.emptySince = h.armedAt
	metricEmptyTimersArmed.Add(1)
}

func (c *Coordinator) cancelEmptyTimerLocked(l *lobbyState) {
	if l.emptyTimer == nil {
		return
	}
	l.emptyTimer.t.Stop()
	l.emptyTimer = nil
	l.emptySince = time.Time{}
}

func (c *Coordinator) expireEmpty(lobbyID string, h *emptyTimer) {
	c.mu.Lock()
	l := c.lobbies.get(lobbyID)
	if l == nil || l.emptyTimer != h {
		c.mu.Unlock()
		return
	}
	l.emptyTimer = nil
	if len(l.members) > 0 {
		l.emptySince = time.Time{}
		c.mu.Unlock()
		return
	}
	snap := c.deregisterLocked(l)
	c.mu.Unlock()

	metricEmptyTimersFired.Add(1)
	ctx, cancel := c.gatewayContext()
	defer cancel()
	c.bestEffort("delete_channel", lobbyID, c.gateway.DeleteChannel(ctx, lobbyID, "lobby empty"))
	log.Info().Str("lobby_id", lobbyID).Msg("empty lobby reclaimed")
	ev := c.newEvent(EventLobbyDeleted, snap)
	ev.Reason = ReasonEmptyTimeout
	c.emit(ev)
}

// StartJanitor runs the inactivity sweep every interval until ctx is done.
func (c *Coordinator) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				if n := c.sweepIdle(ctx, now); n > 0 {
					log.Info().Int("lobbies", n).Msg("inactive lobbies reclaimed")
				}
			}
		}
	}()
}

// sweepIdle deregisters every lobby idle longer than the threshold and then
// deletes their channels. Lobbies already removed by another path are not
// seen.
func (c *Coordinator) sweepIdle(ctx context.Context, now time.Time) int {
	c.mu.Lock()
	var removed []Lobby
	for _, l := range c.lobbies.all() {
		if now.Sub(l.idleSince()) <= c.cfg.IdleThreshold {
			continue
		}
		removed = append(removed, c.deregisterLocked(l))
	}
	c.broker.pruneLocked(now, c.cfg.MatchTTL)
	c.mu.Unlock()

	events := make([]Event, 0, len(removed))
	for _, snap := range removed {
		metricSweepReclaimedTotal.Add(1)
		dctx, cancel := context.WithTimeout(ctx, c.cfg.GatewayTimeout)
		c.bestEffort("delete_channel", snap.ID, c.gateway.DeleteChannel(dctx, snap.ID, "lobby inactive"))
		cancel()
		ev := c.newEvent(EventLobbyDeleted, snap)
		ev.Reason = ReasonInactive
		events = append(events, ev)
	}
	c.emit(events...)
	return len(removed)
}

// scheduleChannelDeleteLocked deletes an already deregistered lobby's channel
// after delay.
func (c *Coordinator) scheduleChannelDeleteLocked(channelID string, delay time.Duration, reason string) {
	if prev, ok := c.endTimers[channelID]; ok {
		prev.Stop()
	}
	var t *time.Timer
	t = time.AfterFunc(delay, func() {
		c.mu.Lock()
		if c.endTimers[channelID] != t {
			c.mu.Unlock()
			return
		}
		delete(c.endTimers, channelID)
		c.mu.Unlock()

		ctx, cancel := c.gatewayContext()
		defer cancel()
		c.bestEffort("delete_channel", channelID, c.gateway.DeleteChannel(ctx, channelID, reason))
	})
	c.endTimers[channelID] = t
}
