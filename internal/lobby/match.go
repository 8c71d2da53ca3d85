package lobby

import (
	"context"
	"sort"
	"strings"
	"time"

	"nightreign-lobby/internal/ids"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

type MatchState string

const (
	MatchPending   MatchState = "pending"
	MatchAccepted  MatchState = "accepted"
	MatchDenied    MatchState = "denied"
	MatchCancelled MatchState = "cancelled"
	MatchExpired   MatchState = "expired"
)

// MatchRequest is a snapshot of a broadcast request to join any open lobby.
type MatchRequest struct {
	ID         string     `json:"id"`
	Requester  Member     `json:"requester"`
	State      MatchState `json:"state"`
	CreatedAt  time.Time  `json:"created_at"`
	ExpiresAt  time.Time  `json:"expires_at"`
	Targets    []string   `json:"targets"`
	DeniedBy   []string   `json:"denied_by,omitempty"`
	AcceptedBy string     `json:"accepted_by,omitempty"`
}

type matchRequest struct {
	id         string
	requester  Member
	state      MatchState
	createdAt  time.Time
	expiresAt  time.Time
	targets    []string
	deniedBy   map[string]struct{}
	acceptedBy string

	expiry    *time.Timer
	expiryGen int
}

// open requests can still be resolved by a lobby.
func (r *matchRequest) open() bool {
	return r.state == MatchPending || r.state == MatchDenied
}

func (r *matchRequest) snapshot() MatchRequest {
	targets := make([]string, len(r.targets))
	copy(targets, r.targets)
	denied := lo.Keys(r.deniedBy)
	sort.Strings(denied)
	return MatchRequest{
		ID:         r.id,
		Requester:  r.requester,
		State:      r.state,
		CreatedAt:  r.createdAt,
		ExpiresAt:  r.expiresAt,
		Targets:    targets,
		DeniedBy:   denied,
		AcceptedBy: r.acceptedBy,
	}
}

// matchBroker tracks match requests. The coordinator mutex guards it.
type matchBroker struct {
	requests    map[string]*matchRequest
	byRequester map[string]*matchRequest
	notices     map[string][]*matchRequest
}

func newMatchBroker() *matchBroker {
	return &matchBroker{
		requests:    map[string]*matchRequest{},
		byRequester: map[string]*matchRequest{},
		notices:     map[string][]*matchRequest{},
	}
}

func (b *matchBroker) addLocked(req *matchRequest) {
	b.requests[req.id] = req
	b.byRequester[req.requester.ID] = req
	for _, lobbyID := range req.targets {
		b.notices[lobbyID] = append(b.notices[lobbyID], req)
	}
}

// retireLocked forgets req everywhere. Its state is left as is.
func (b *matchBroker) retireLocked(req *matchRequest) {
	b.stopExpiryLocked(req)
	delete(b.requests, req.id)
	if b.byRequester[req.requester.ID] == req {
		delete(b.byRequester, req.requester.ID)
	}
	for _, lobbyID := range req.targets {
		b.notices[lobbyID] = lo.Without(b.notices[lobbyID], req)
		if len(b.notices[lobbyID]) == 0 {
			delete(b.notices, lobbyID)
		}
	}
}

func (b *matchBroker) stopExpiryLocked(req *matchRequest) {
	if req.expiry != nil {
		req.expiry.Stop()
		req.expiry = nil
	}
	req.expiryGen++
}

func (b *matchBroker) dropLobbyLocked(lobbyID string) {
	delete(b.notices, lobbyID)
}

// resolveLocked picks the request a lobby acts on: its most recent open
// request it has not denied, else its most recent accepted one so that the
// caller can report the requester as already placed.
func (b *matchBroker) resolveLocked(lobbyID string, includeAccepted bool) *matchRequest {
	notices := b.notices[lobbyID]
	var accepted *matchRequest
	for i := len(notices) - 1; i >= 0; i-- {
		req := notices[i]
		if _, denied := req.deniedBy[lobbyID]; denied {
			continue
		}
		if req.open() {
			return req
		}
		if req.state == MatchAccepted && accepted == nil {
			accepted = req
		}
	}
	if includeAccepted {
		return accepted
	}
	return nil
}

// pruneLocked forgets accepted requests whose original window has passed.
func (b *matchBroker) pruneLocked(now time.Time, ttl time.Duration) {
	for _, req := range b.requests {
		if req.state == MatchAccepted && now.Sub(req.createdAt) > ttl {
			b.retireLocked(req)
		}
	}
}

func (c *Coordinator) armMatchExpiryLocked(req *matchRequest, delay time.Duration) {
	c.broker.stopExpiryLocked(req)
	if c.closed {
		return
	}
	if delay < 0 {
		delay = 0
	}
	gen := req.expiryGen
	req.expiry = time.AfterFunc(delay, func() { c.expireMatch(req, gen) })
}

// FindMatch broadcasts requester's request to every lobby that has members
// and a free slot.
func (c *Coordinator) FindMatch(ctx context.Context, requester Member) (MatchRequest, error) {
	if strings.TrimSpace(requester.ID) == "" {
		return MatchRequest{}, ErrInvalidMember
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return MatchRequest{}, ErrCoordinatorClosed
	}
	if err := c.admissionConflictLocked(requester.ID); err != nil {
		c.mu.Unlock()
		return MatchRequest{}, err
	}
	if prev := c.broker.byRequester[requester.ID]; prev != nil {
		if prev.state == MatchPending {
			c.mu.Unlock()
			return MatchRequest{}, ErrRequestAlreadyPending
		}
		c.broker.retireLocked(prev)
	}
	now := c.now()
	req := &matchRequest{
		id:        ids.NewID(),
		requester: requester,
		state:     MatchPending,
		createdAt: now,
		expiresAt: now.Add(c.cfg.MatchTTL),
		deniedBy:  map[string]struct{}{},
	}
	for _, l := range c.lobbies.all() {
		if len(l.members) > 0 && !l.full() {
			req.targets = append(req.targets, l.id)
		}
	}
	c.broker.addLocked(req)
	c.armMatchExpiryLocked(req, c.cfg.MatchTTL)
	snap := req.snapshot()
	c.mu.Unlock()

	metricMatchRequestsTotal.Add(1)
	for _, lobbyID := range snap.Targets {
		c.bestEffort("match_notice", lobbyID, c.gateway.SendMessage(ctx, lobbyID, matchNotice(snap, lobbyID)))
	}
	log.Info().Str("request_id", snap.ID).Str("user_id", requester.ID).Int("targets", len(snap.Targets)).Msg("match request broadcast")
	ev := c.newEvent(EventMatchRequested, Lobby{})
	ev.Request = &snap
	ev.Actor = requester.ID
	c.emit(ev)
	return snap, nil
}

// Allow admits the requester of the lobby's most recent open request.
func (c *Coordinator) Allow(ctx context.Context, lobbyID, memberID string) (MatchRequest, error) {
	c.mu.Lock()
	l := c.lobbies.get(lobbyID)
	if l == nil {
		c.mu.Unlock()
		return MatchRequest{}, ErrLobbyNotFound
	}
	if l.indexOf(memberID) < 0 {
		c.mu.Unlock()
		return MatchRequest{}, ErrNotMember
	}
	req := c.broker.resolveLocked(lobbyID, true)
	if req == nil {
		c.mu.Unlock()
		return MatchRequest{}, ErrNoPendingRequest
	}
	if current, ok := c.sessions.lookup(req.requester.ID); ok {
		c.mu.Unlock()
		return MatchRequest{}, &AlreadyInLobbyError{LobbyID: current}
	}
	if !req.open() {
		c.mu.Unlock()
		return MatchRequest{}, ErrNoPendingRequest
	}
	if _, ok := c.creating[req.requester.ID]; ok {
		c.mu.Unlock()
		return MatchRequest{}, ErrCreateInProgress
	}
	if l.full() {
		members := make([]Member, len(l.members))
		copy(members, l.members)
		c.mu.Unlock()
		return MatchRequest{}, &LobbyFullError{LobbyID: l.id, Capacity: l.capacity, Members: members}
	}
	prevState := req.state
	c.addMemberLocked(l, req.requester)
	req.state = MatchAccepted
	req.acceptedBy = lobbyID
	c.broker.stopExpiryLocked(req)
	if c.broker.byRequester[req.requester.ID] == req {
		delete(c.broker.byRequester, req.requester.ID)
	}
	reqSnap := req.snapshot()
	c.mu.Unlock()

	requester := reqSnap.Requester
	if err := c.gateway.GrantAccess(ctx, lobbyID, requester.ID); err != nil {
		metricGatewayErrorsTotal.Add(1)
		log.Error().Err(err).Str("lobby_id", lobbyID).Str("request_id", reqSnap.ID).Msg("grant access for match failed; rolling back")
		if snap, r, ok := c.rollbackAllow(req, lobbyID, prevState); ok {
			c.emit(c.handoverEvents(ctx, snap, r)...)
		}
		return MatchRequest{}, &GatewayError{Op: "grant_access", Err: err}
	}

	c.mu.Lock()
	l = c.lobbies.get(lobbyID)
	if l == nil || l.indexOf(requester.ID) < 0 {
		c.mu.Unlock()
		return MatchRequest{}, c.abandonGrant(ctx, lobbyID, requester.ID, l == nil)
	}
	lobbySnap := l.snapshot()
	c.mu.Unlock()

	metricMatchAcceptedTotal.Add(1)
	metricJoinTotal.Add(1)
	c.bestEffort("joined_notice", lobbyID, c.gateway.SendMessage(ctx, lobbyID, joinedNotice(requester, lobbySnap)))
	c.bestEffort("match_accepted_dm", lobbyID, c.gateway.DirectMessage(ctx, requester.ID, matchAcceptedNotice(lobbySnap)))
	log.Info().Str("lobby_id", lobbyID).Str("request_id", reqSnap.ID).Str("user_id", requester.ID).Msg("match request accepted")

	joined := c.newEvent(EventMemberJoined, lobbySnap)
	joined.Actor = memberID
	joined.Subject = requester.ID
	accepted := c.newEvent(EventMatchAccepted, lobbySnap)
	accepted.Request = &reqSnap
	accepted.Actor = memberID
	accepted.Subject = requester.ID
	c.emit(joined, accepted)
	return reqSnap, nil
}

// rollbackAllow unseats the requester and reopens the request. Like
// rollbackJoin it reports the removal for the caller to announce.
func (c *Coordinator) rollbackAllow(req *matchRequest, lobbyID string, prevState MatchState) (Lobby, removal, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var (
		snap    Lobby
		r       removal
		removed bool
	)
	if l := c.lobbies.get(lobbyID); l != nil {
		r, removed = c.removeMemberLocked(l, req.requester.ID)
		snap = l.snapshot()
	} else {
		c.sessions.unbind(req.requester.ID, lobbyID)
	}
	if req.state != MatchAccepted || req.acceptedBy != lobbyID {
		return snap, r, removed
	}
	if _, live := c.broker.requests[req.id]; !live {
		return snap, r, removed
	}
	req.state = prevState
	req.acceptedBy = ""
	if c.broker.byRequester[req.requester.ID] == nil {
		c.broker.byRequester[req.requester.ID] = req
	}
	c.armMatchExpiryLocked(req, req.expiresAt.Sub(c.now()))
	return snap, r, removed
}

// withdrawMatchLocked cancels userID's open request once they are seated in
// a lobby some other way.
func (c *Coordinator) withdrawMatchLocked(userID string) *MatchRequest {
	req := c.broker.byRequester[userID]
	if req == nil || !req.open() {
		return nil
	}
	req.state = MatchCancelled
	c.broker.retireLocked(req)
	snap := req.snapshot()
	return &snap
}

func (c *Coordinator) withdrawnEvent(req MatchRequest) Event {
	ev := c.newEvent(EventMatchCancelled, Lobby{})
	ev.Request = &req
	ev.Actor = req.Requester.ID
	ev.Reason = ReasonSeated
	return ev
}

// Deny declines the lobby's most recent open request. Other lobbies can
// still accept it until it expires.
func (c *Coordinator) Deny(ctx context.Context, lobbyID, memberID string) (MatchRequest, error) {
	c.mu.Lock()
	l := c.lobbies.get(lobbyID)
	if l == nil {
		c.mu.Unlock()
		return MatchRequest{}, ErrLobbyNotFound
	}
	if l.indexOf(memberID) < 0 {
		c.mu.Unlock()
		return MatchRequest{}, ErrNotMember
	}
	req := c.broker.resolveLocked(lobbyID, false)
	if req == nil {
		c.mu.Unlock()
		return MatchRequest{}, ErrNoPendingRequest
	}
	req.deniedBy[lobbyID] = struct{}{}
	req.state = MatchDenied
	snap := req.snapshot()
	c.mu.Unlock()

	metricMatchDeniedTotal.Add(1)
	c.bestEffort("match_denied_dm", lobbyID, c.gateway.DirectMessage(ctx, snap.Requester.ID, matchDeniedNotice()))
	ev := c.newEvent(EventMatchDenied, Lobby{ID: lobbyID})
	ev.Request = &snap
	ev.Actor = memberID
	ev.Subject = snap.Requester.ID
	c.emit(ev)
	return snap, nil
}

// CancelMatch withdraws the requester's open request.
func (c *Coordinator) CancelMatch(ctx context.Context, requesterID string) (MatchRequest, error) {
	c.mu.Lock()
	req := c.broker.byRequester[requesterID]
	if req == nil || !req.open() {
		c.mu.Unlock()
		return MatchRequest{}, ErrNoPendingRequest
	}
	req.state = MatchCancelled
	c.broker.retireLocked(req)
	snap := req.snapshot()
	c.mu.Unlock()

	log.Info().Str("request_id", snap.ID).Str("user_id", requesterID).Msg("match request cancelled")
	ev := c.newEvent(EventMatchCancelled, Lobby{})
	ev.Request = &snap
	ev.Actor = requesterID
	c.emit(ev)
	return snap, nil
}

func (c *Coordinator) expireMatch(req *matchRequest, gen int) {
	c.mu.Lock()
	if req.expiryGen != gen || c.broker.requests[req.id] != req || !req.open() {
		c.mu.Unlock()
		return
	}
	wasPending := req.state == MatchPending
	req.state = MatchExpired
	req.expiry = nil
	c.broker.retireLocked(req)
	snap := req.snapshot()
	c.mu.Unlock()

	metricMatchExpiredTotal.Add(1)
	if wasPending {
		ctx, cancel := c.gatewayContext()
		defer cancel()
		c.bestEffort("match_expired_dm", "", c.gateway.DirectMessage(ctx, snap.Requester.ID, matchExpiredNotice()))
	}
	ev := c.newEvent(EventMatchExpired, Lobby{})
	ev.Request = &snap
	ev.Subject = snap.Requester.ID
	c.emit(ev)
}

// MatchRequests lists requests that can still be resolved.
func (c *Coordinator) MatchRequests() []MatchRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]MatchRequest, 0, len(c.broker.requests))
	for _, req := range c.broker.requests {
		if req.open() {
			out = append(out, req.snapshot())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// PendingMatch returns the requester's open request, if any.
func (c *Coordinator) PendingMatch(requesterID string) (MatchRequest, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	req := c.broker.byRequester[requesterID]
	if req == nil || !req.open() {
		return MatchRequest{}, false
	}
	return req.snapshot(), true
}
