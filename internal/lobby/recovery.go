package lobby

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

// Restore rebuilds registry and session state from the lobby channels the
// gateway can still see. It is a best-effort bootstrap step: users already
// indexed are skipped, members beyond capacity are dropped, every recovered
// lobby gets a fresh join token, and lobbies without members are armed for
// empty reclamation. The result approximates, and may differ from, the state
// before a restart.
func (c *Coordinator) Restore(ctx context.Context) (int, error) {
	channels, err := c.gateway.ListLobbyChannels(ctx)
	if err != nil {
		metricGatewayErrorsTotal.Add(1)
		return 0, &GatewayError{Op: "list_lobby_channels", Err: err}
	}

	now := c.now()
	restored := make([]Lobby, 0, len(channels))
	c.mu.Lock()
	for _, ch := range channels {
		if ch.ID == "" || c.lobbies.get(ch.ID) != nil {
			continue
		}
		members := lo.UniqBy(ch.Members, func(m Member) string { return m.ID })
		members = lo.Filter(members, func(m Member, _ int) bool {
			_, indexed := c.sessions.lookup(m.ID)
			return m.ID != "" && !indexed
		})
		if len(members) > c.cfg.Capacity {
			log.Warn().Str("lobby_id", ch.ID).Int("members", len(members)).Msg("recovered lobby over capacity; trimming")
			members = members[:c.cfg.Capacity]
		}
		l := &lobbyState{
			id:             ch.ID,
			members:        members,
			capacity:       c.cfg.Capacity,
			createdAt:      lo.Ternary(ch.CreatedAt.IsZero(), now, ch.CreatedAt),
			lastActivityAt: ch.LastActivityAt,
		}
		if len(members) > 0 {
			l.owner = members[0].ID
			if idx := l.indexOf(ch.Owner); ch.Owner != "" && idx > 0 {
				owner := l.members[idx]
				l.members = append([]Member{owner}, lo.Without(l.members, owner)...)
				l.owner = owner.ID
			}
		}
		snap, err := c.registerLocked(l)
		if err != nil {
			log.Warn().Err(err).Str("lobby_id", ch.ID).Msg("skip recovered lobby")
			continue
		}
		if len(members) == 0 {
			c.armEmptyTimerLocked(l)
			snap = l.snapshot()
		}
		restored = append(restored, snap)
	}
	c.mu.Unlock()

	events := make([]Event, 0, len(restored))
	for _, snap := range restored {
		metricLobbyRestoredTotal.Add(1)
		events = append(events, c.newEvent(EventLobbyRestored, snap))
	}
	c.emit(events...)
	log.Info().Int("channels", len(channels)).Int("restored", len(restored)).Msg("lobby recovery pass finished")
	return len(restored), nil
}
