package lobby

import (
	"context"
	"strings"
	"sync"
	"time"

	"nightreign-lobby/internal/config"
	"nightreign-lobby/internal/ids"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

const maxTokenAttempts = 8

var newToken = ids.NewToken

type Config struct {
	Capacity       int
	EmptyGrace     time.Duration
	IdleThreshold  time.Duration
	MatchTTL       time.Duration
	EndDelay       time.Duration
	GatewayTimeout time.Duration
	ChannelPrefix  string
}

func ConfigFromEnv(cfg config.LobbyConfig, channelPrefix string) Config {
	return Config{
		Capacity:       cfg.Capacity,
		EmptyGrace:     cfg.EmptyGrace,
		IdleThreshold:  cfg.IdleThreshold,
		MatchTTL:       cfg.MatchTTL,
		EndDelay:       cfg.EndDelay,
		GatewayTimeout: cfg.GatewayTimeout,
		ChannelPrefix:  channelPrefix,
	}
}

func (c Config) withDefaults() Config {
	if c.Capacity <= 0 {
		c.Capacity = 3
	}
	if c.EmptyGrace <= 0 {
		c.EmptyGrace = 5 * time.Minute
	}
	if c.IdleThreshold <= 0 {
		c.IdleThreshold = 2 * time.Hour
	}
	if c.MatchTTL <= 0 {
		c.MatchTTL = 5 * time.Minute
	}
	if c.EndDelay < 0 {
		c.EndDelay = 0
	}
	if c.GatewayTimeout <= 0 {
		c.GatewayTimeout = 10 * time.Second
	}
	if c.ChannelPrefix == "" {
		c.ChannelPrefix = "lobby-"
	}
	return c
}

// CreateRequest asks for a new lobby owned by Owner. Origin is the channel
// the request came from and FriendCode the game code that triggered it, if
// any.
type CreateRequest struct {
	Owner      Member
	Origin     string
	FriendCode string
}

// Coordinator owns the lobby registry, the session index, and the match
// broker. A single mutex guards all three; gateway calls are made with the
// mutex released and failed calls roll their mutation back.
type Coordinator struct {
	cfg     Config
	gateway Gateway
	now     func() time.Time

	mu        sync.Mutex
	closed    bool
	lobbies   *registry
	sessions  *sessionIndex
	creating  map[string]struct{}
	broker    *matchBroker
	endTimers map[string]*time.Timer

	obsMu     sync.RWMutex
	observers []Observer
}

func NewCoordinator(gw Gateway, cfg Config) *Coordinator {
	return &Coordinator{
		cfg:       cfg.withDefaults(),
		gateway:   gw,
		now:       time.Now,
		lobbies:   newRegistry(),
		sessions:  newSessionIndex(),
		creating:  map[string]struct{}{},
		broker:    newMatchBroker(),
		endTimers: map[string]*time.Timer{},
	}
}

func (c *Coordinator) Config() Config { return c.cfg }

// Close stops every pending timer. Channels scheduled for deletion are left
// in place.
func (c *Coordinator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	for _, l := range c.lobbies.all() {
		c.cancelEmptyTimerLocked(l)
	}
	for _, req := range c.broker.requests {
		c.broker.stopExpiryLocked(req)
	}
	for id, t := range c.endTimers {
		t.Stop()
		delete(c.endTimers, id)
	}
}

func (c *Coordinator) Create(ctx context.Context, req CreateRequest) (Lobby, error) {
	owner := req.Owner
	if strings.TrimSpace(owner.ID) == "" {
		return Lobby{}, ErrInvalidMember
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return Lobby{}, ErrCoordinatorClosed
	}
	if err := c.admissionConflictLocked(owner.ID); err != nil {
		c.mu.Unlock()
		return Lobby{}, err
	}
	c.creating[owner.ID] = struct{}{}
	c.mu.Unlock()

	now := c.now()
	channelID, err := c.gateway.CreateChannel(ctx, ChannelSpec{
		Name:  ChannelName(c.cfg.ChannelPrefix, owner.label(), now),
		Owner: owner.ID,
		Topic: "Lobby owner: " + mention(owner.ID),
	})
	if err != nil {
		c.mu.Lock()
		delete(c.creating, owner.ID)
		c.mu.Unlock()
		metricGatewayErrorsTotal.Add(1)
		log.Error().Err(err).Str("user_id", owner.ID).Msg("create lobby channel failed")
		return Lobby{}, &GatewayError{Op: "create_channel", Err: err}
	}

	c.mu.Lock()
	delete(c.creating, owner.ID)
	registerErr := ErrCoordinatorClosed
	var (
		snap      Lobby
		withdrawn *MatchRequest
	)
	if !c.closed {
		snap, registerErr = c.registerLocked(&lobbyState{
			id:             channelID,
			owner:          owner.ID,
			members:        []Member{owner},
			capacity:       c.cfg.Capacity,
			origin:         req.Origin,
			friendCode:     req.FriendCode,
			createdAt:      now,
			lastActivityAt: now,
		})
		if registerErr == nil {
			withdrawn = c.withdrawMatchLocked(owner.ID)
		}
	}
	c.mu.Unlock()

	if registerErr != nil {
		dctx, cancel := c.gatewayContext()
		defer cancel()
		c.bestEffort("delete_channel", channelID, c.gateway.DeleteChannel(dctx, channelID, "lobby registration failed"))
		return Lobby{}, registerErr
	}

	metricLobbyCreatedTotal.Add(1)
	log.Info().
		Str("lobby_id", snap.ID).
		Str("owner_id", owner.ID).
		Str("join_token", snap.JoinToken).
		Msg("lobby created")
	ev := c.newEvent(EventLobbyCreated, snap)
	ev.Actor = owner.ID
	events := []Event{ev}
	if withdrawn != nil {
		events = append(events, c.withdrawnEvent(*withdrawn))
	}
	c.emit(events...)
	return snap, nil
}

// registerLocked assigns a fresh join token and indexes every member.
func (c *Coordinator) registerLocked(l *lobbyState) (Lobby, error) {
	token, err := c.uniqueTokenLocked()
	if err != nil {
		return Lobby{}, err
	}
	l.token = token
	if err := c.lobbies.add(l); err != nil {
		return Lobby{}, err
	}
	for _, m := range l.members {
		c.sessions.bind(m.ID, l.id)
	}
	metricLobbyActive.Add(1)
	return l.snapshot(), nil
}

func (c *Coordinator) uniqueTokenLocked() (string, error) {
	for i := 0; i < maxTokenAttempts; i++ {
		token := newToken()
		if token != "" && !c.lobbies.tokenInUse(token) {
			return token, nil
		}
	}
	return "", ErrTokenNotUnique
}

func (c *Coordinator) Join(ctx context.Context, lobbyID string, m Member) (Lobby, error) {
	return c.join(ctx, lobbyID, "", m, "")
}

func (c *Coordinator) JoinByToken(ctx context.Context, token string, m Member) (Lobby, error) {
	token = strings.ToLower(strings.TrimSpace(token))
	if token == "" {
		return Lobby{}, ErrLobbyNotFound
	}
	return c.join(ctx, "", token, m, "")
}

// Invite admits invitee on behalf of inviter, who must be a member of the
// lobby. The invitee is notified out of band; a failed notification falls
// back to a message in the lobby channel and never fails the invite.
func (c *Coordinator) Invite(ctx context.Context, lobbyID, inviterID string, invitee Member) (Lobby, error) {
	if strings.TrimSpace(inviterID) == "" {
		return Lobby{}, ErrNotMember
	}
	snap, err := c.join(ctx, lobbyID, "", invitee, inviterID)
	if err != nil {
		return Lobby{}, err
	}
	inviter, _ := lo.Find(snap.Members, func(m Member) bool { return m.ID == inviterID })
	if !c.bestEffort("invite_dm", snap.ID, c.gateway.DirectMessage(ctx, invitee.ID, inviteNotice(snap, inviter))) {
		c.bestEffort("invite_fallback", snap.ID, c.gateway.SendMessage(ctx, snap.ID, inviteFallbackNotice(invitee)))
	}
	return snap, nil
}

func (c *Coordinator) join(ctx context.Context, lobbyID, token string, m Member, inviterID string) (Lobby, error) {
	if strings.TrimSpace(m.ID) == "" {
		return Lobby{}, ErrInvalidMember
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return Lobby{}, ErrCoordinatorClosed
	}
	if inviterID != "" {
		target := c.resolveLocked(lobbyID, token)
		if target == nil {
			c.mu.Unlock()
			return Lobby{}, ErrLobbyNotFound
		}
		if target.indexOf(inviterID) < 0 {
			c.mu.Unlock()
			return Lobby{}, ErrNotMember
		}
	}
	l, becameOwner, err := c.admitLocked(lobbyID, token, m)
	if err != nil {
		c.mu.Unlock()
		metricJoinRejectedTotal.Add(1)
		return Lobby{}, err
	}
	id := l.id
	c.mu.Unlock()

	if err := c.gateway.GrantAccess(ctx, id, m.ID); err != nil {
		metricGatewayErrorsTotal.Add(1)
		log.Error().Err(err).Str("lobby_id", id).Str("user_id", m.ID).Msg("grant lobby access failed; rolling back join")
		if snap, r, ok := c.rollbackJoin(id, m.ID); ok {
			c.emit(c.handoverEvents(ctx, snap, r)...)
		}
		return Lobby{}, &GatewayError{Op: "grant_access", Err: err}
	}

	// The member may have been kicked, or the lobby ended, while the grant
	// was in flight.
	c.mu.Lock()
	l = c.lobbies.get(id)
	if l == nil || l.indexOf(m.ID) < 0 {
		c.mu.Unlock()
		return Lobby{}, c.abandonGrant(ctx, id, m.ID, l == nil)
	}
	snap := l.snapshot()
	becameOwner = becameOwner && l.owner == m.ID
	withdrawn := c.withdrawMatchLocked(m.ID)
	c.mu.Unlock()

	metricJoinTotal.Add(1)
	log.Info().Str("lobby_id", id).Str("user_id", m.ID).Int("members", len(snap.Members)).Msg("lobby joined")
	c.bestEffort("joined_notice", id, c.gateway.SendMessage(ctx, id, joinedNotice(m, snap)))

	ev := c.newEvent(EventMemberJoined, snap)
	ev.Actor = lo.Ternary(inviterID != "", inviterID, m.ID)
	ev.Subject = m.ID
	events := []Event{ev}
	if becameOwner {
		owner := c.newEvent(EventOwnerChanged, snap)
		owner.Subject = m.ID
		events = append(events, owner)
	}
	if withdrawn != nil {
		events = append(events, c.withdrawnEvent(*withdrawn))
	}
	c.emit(events...)
	return snap, nil
}

// abandonGrant undoes an access grant that landed after its member was
// already removed from the lobby.
func (c *Coordinator) abandonGrant(ctx context.Context, lobbyID, userID string, gone bool) error {
	c.bestEffort("revoke_access", lobbyID, c.gateway.RevokeAccess(ctx, lobbyID, userID))
	log.Warn().Str("lobby_id", lobbyID).Str("user_id", userID).Bool("lobby_gone", gone).Msg("member removed while access grant was in flight")
	if gone {
		return ErrLobbyNotFound
	}
	return ErrNotMember
}

func (c *Coordinator) resolveLocked(lobbyID, token string) *lobbyState {
	if lobbyID != "" {
		return c.lobbies.get(lobbyID)
	}
	if token != "" {
		return c.lobbies.byJoinToken(token)
	}
	return nil
}

// admissionConflictLocked reports why userID cannot enter a new lobby.
func (c *Coordinator) admissionConflictLocked(userID string) error {
	if current, ok := c.sessions.lookup(userID); ok {
		return &AlreadyInLobbyError{LobbyID: current}
	}
	if _, ok := c.creating[userID]; ok {
		return ErrCreateInProgress
	}
	return nil
}

// admitLocked validates and commits an admission as one step. It reports
// whether the member became owner of a previously empty lobby.
func (c *Coordinator) admitLocked(lobbyID, token string, m Member) (*lobbyState, bool, error) {
	if err := c.admissionConflictLocked(m.ID); err != nil {
		return nil, false, err
	}
	l := c.resolveLocked(lobbyID, token)
	if l == nil {
		return nil, false, ErrLobbyNotFound
	}
	if l.indexOf(m.ID) >= 0 {
		return nil, false, ErrAlreadyMember
	}
	if l.full() {
		members := make([]Member, len(l.members))
		copy(members, l.members)
		return nil, false, &LobbyFullError{LobbyID: l.id, Capacity: l.capacity, Members: members}
	}
	return l, c.addMemberLocked(l, m), nil
}

func (c *Coordinator) addMemberLocked(l *lobbyState, m Member) bool {
	l.members = append(l.members, m)
	c.sessions.bind(m.ID, l.id)
	c.cancelEmptyTimerLocked(l)
	l.touch(c.now())
	if l.owner == "" {
		l.owner = m.ID
		return true
	}
	return false
}

type removal struct {
	member   Member
	newOwner *Member
	emptied  bool
}

// removeMemberLocked drops userID from l and its session entry, transfers
// ownership to the first remaining member, and arms the empty timer when the
// lobby drains.
func (c *Coordinator) removeMemberLocked(l *lobbyState, userID string) (removal, bool) {
	idx := l.indexOf(userID)
	if idx < 0 {
		return removal{}, false
	}
	r := removal{member: l.members[idx]}
	l.members = lo.Reject(l.members, func(m Member, _ int) bool { return m.ID == userID })
	c.sessions.unbind(userID, l.id)
	l.touch(c.now())
	switch {
	case len(l.members) == 0:
		l.owner = ""
		c.armEmptyTimerLocked(l)
		r.emptied = true
	case l.owner == userID:
		next := l.members[0]
		l.owner = next.ID
		r.newOwner = &next
	}
	return r, true
}

// rollbackJoin undoes an admission whose access grant failed. It reports the
// removal so the caller can announce any ownership or occupancy change.
func (c *Coordinator) rollbackJoin(lobbyID, userID string) (Lobby, removal, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	l := c.lobbies.get(lobbyID)
	if l == nil {
		c.sessions.unbind(userID, lobbyID)
		return Lobby{}, removal{}, false
	}
	r, ok := c.removeMemberLocked(l, userID)
	return l.snapshot(), r, ok
}

func (c *Coordinator) Leave(ctx context.Context, lobbyID, userID string) (Lobby, error) {
	c.mu.Lock()
	l := c.lobbies.get(lobbyID)
	if l == nil {
		c.mu.Unlock()
		return Lobby{}, ErrLobbyNotFound
	}
	r, ok := c.removeMemberLocked(l, userID)
	if !ok {
		c.mu.Unlock()
		return Lobby{}, ErrNotMember
	}
	snap := l.snapshot()
	c.mu.Unlock()

	metricLeaveTotal.Add(1)
	c.bestEffort("revoke_access", lobbyID, c.gateway.RevokeAccess(ctx, lobbyID, userID))
	log.Info().Str("lobby_id", lobbyID).Str("user_id", userID).Int("members", len(snap.Members)).Msg("lobby left")
	c.afterRemoval(ctx, snap, r, EventMemberLeft, userID, false)
	return snap, nil
}

// Kick removes target on behalf of actor. Any member may kick any other
// member.
func (c *Coordinator) Kick(ctx context.Context, lobbyID, actorID, targetID string) (Lobby, error) {
	c.mu.Lock()
	l := c.lobbies.get(lobbyID)
	if l == nil {
		c.mu.Unlock()
		return Lobby{}, ErrLobbyNotFound
	}
	actorIdx := l.indexOf(actorID)
	if actorIdx < 0 {
		c.mu.Unlock()
		return Lobby{}, ErrNotMember
	}
	if actorID == targetID {
		c.mu.Unlock()
		return Lobby{}, ErrCannotKickSelf
	}
	actor := l.members[actorIdx]
	r, ok := c.removeMemberLocked(l, targetID)
	if !ok {
		c.mu.Unlock()
		return Lobby{}, ErrNotMember
	}
	snap := l.snapshot()
	c.mu.Unlock()

	metricKickTotal.Add(1)
	c.bestEffort("revoke_access", lobbyID, c.gateway.RevokeAccess(ctx, lobbyID, targetID))
	c.bestEffort("kick_dm", lobbyID, c.gateway.DirectMessage(ctx, targetID, kickNotice(snap, actor)))
	log.Info().Str("lobby_id", lobbyID).Str("actor_id", actorID).Str("user_id", targetID).Msg("lobby member kicked")
	c.afterRemoval(ctx, snap, r, EventMemberKicked, actorID, true)
	return snap, nil
}

func (c *Coordinator) afterRemoval(ctx context.Context, snap Lobby, r removal, typ EventType, actorID string, kicked bool) {
	c.bestEffort("left_notice", snap.ID, c.gateway.SendMessage(ctx, snap.ID, leftNotice(r.member, snap, kicked)))

	ev := c.newEvent(typ, snap)
	ev.Actor = actorID
	ev.Subject = r.member.ID
	c.emit(append([]Event{ev}, c.handoverEvents(ctx, snap, r)...)...)
}

// handoverEvents announces what a removal did to the lobby's ownership and
// occupancy.
func (c *Coordinator) handoverEvents(ctx context.Context, snap Lobby, r removal) []Event {
	var events []Event
	if r.newOwner != nil {
		c.bestEffort("owner_notice", snap.ID, c.gateway.SendMessage(ctx, snap.ID, ownerNotice(*r.newOwner)))
		owner := c.newEvent(EventOwnerChanged, snap)
		owner.Subject = r.newOwner.ID
		events = append(events, owner)
	}
	if r.emptied {
		log.Info().Str("lobby_id", snap.ID).Dur("grace", c.cfg.EmptyGrace).Msg("lobby empty; reclamation armed")
		events = append(events, c.newEvent(EventLobbyEmptied, snap))
	}
	return events
}

// End deregisters the lobby at once and deletes its channel after the
// configured delay. Only the owner or a platform moderator may end a
// session.
func (c *Coordinator) End(ctx context.Context, lobbyID, actorID string) error {
	c.mu.Lock()
	l := c.lobbies.get(lobbyID)
	if l == nil {
		c.mu.Unlock()
		return ErrLobbyNotFound
	}
	isOwner := l.owner == actorID && actorID != ""
	c.mu.Unlock()

	moderator := false
	if !isOwner {
		ok, err := c.gateway.IsModerator(ctx, actorID)
		if err != nil {
			metricGatewayErrorsTotal.Add(1)
			return &GatewayError{Op: "is_moderator", Err: err}
		}
		if !ok {
			return ErrNotLobbyOwner
		}
		moderator = true
	}

	c.mu.Lock()
	l = c.lobbies.get(lobbyID)
	if l == nil {
		c.mu.Unlock()
		return ErrLobbyNotFound
	}
	if !moderator && l.owner != actorID {
		c.mu.Unlock()
		return ErrNotLobbyOwner
	}
	snap := c.deregisterLocked(l)
	c.scheduleChannelDeleteLocked(lobbyID, c.cfg.EndDelay, "session ended")
	c.mu.Unlock()

	c.bestEffort("ended_notice", lobbyID, c.gateway.SendMessage(ctx, lobbyID, endedNotice(actorID, c.cfg.EndDelay)))
	log.Info().Str("lobby_id", lobbyID).Str("actor_id", actorID).Bool("moderator", moderator).Msg("lobby session ended")
	ev := c.newEvent(EventLobbyDeleted, snap)
	ev.Actor = actorID
	ev.Reason = ReasonEnded
	c.emit(ev)
	return nil
}

// Remove deregisters a lobby and deletes its channel immediately. It backs
// operator tooling and skips the owner check.
func (c *Coordinator) Remove(ctx context.Context, lobbyID, reason string) error {
	c.mu.Lock()
	l := c.lobbies.get(lobbyID)
	if l == nil {
		c.mu.Unlock()
		return ErrLobbyNotFound
	}
	snap := c.deregisterLocked(l)
	c.mu.Unlock()

	c.bestEffort("delete_channel", lobbyID, c.gateway.DeleteChannel(ctx, lobbyID, lo.Ternary(reason != "", reason, "removed by operator")))
	ev := c.newEvent(EventLobbyDeleted, snap)
	ev.Reason = ReasonRemoved
	c.emit(ev)
	return nil
}

// deregisterLocked is the single terminal step for a lobby. Whichever
// reclamation path reaches it first wins; later paths find no lobby.
func (c *Coordinator) deregisterLocked(l *lobbyState) Lobby {
	c.cancelEmptyTimerLocked(l)
	snap := l.snapshot()
	c.lobbies.remove(l.id)
	c.sessions.purge(l.id)
	c.broker.dropLobbyLocked(l.id)
	metricLobbyActive.Add(-1)
	metricLobbyDeletedTotal.Add(1)
	return snap
}

// Touch records externally observed activity in a lobby channel.
func (c *Coordinator) Touch(lobbyID string, at time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	l := c.lobbies.get(lobbyID)
	if l == nil {
		return false
	}
	l.touch(at)
	return true
}

func (c *Coordinator) Lobby(lobbyID string) (Lobby, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	l := c.lobbies.get(lobbyID)
	if l == nil {
		return Lobby{}, false
	}
	return l.snapshot(), true
}

func (c *Coordinator) LobbyOf(userID string) (Lobby, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, ok := c.sessions.lookup(userID)
	if !ok {
		return Lobby{}, false
	}
	l := c.lobbies.get(id)
	if l == nil {
		return Lobby{}, false
	}
	return l.snapshot(), true
}

// Lobbies returns every registered lobby, oldest first.
func (c *Coordinator) Lobbies() []Lobby {
	c.mu.Lock()
	defer c.mu.Unlock()
	return lo.Map(c.lobbies.all(), func(l *lobbyState, _ int) Lobby { return l.snapshot() })
}

// OpenLobbies returns lobbies that have members and at least one free slot.
func (c *Coordinator) OpenLobbies() []Lobby {
	return lo.Filter(c.Lobbies(), func(l Lobby, _ int) bool {
		return len(l.Members) > 0 && !l.Full()
	})
}

// bestEffort logs and discards the result of a side effect whose failure
// must not abort the calling operation. It reports whether err was nil.
func (c *Coordinator) bestEffort(op, lobbyID string, err error) bool {
	if err == nil {
		return true
	}
	metricSideEffectFailed.Add(1)
	log.Warn().Err(err).Str("op", op).Str("lobby_id", lobbyID).Msg("best-effort side effect failed")
	return false
}

func (c *Coordinator) gatewayContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), c.cfg.GatewayTimeout)
}
