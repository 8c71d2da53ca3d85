package lobby

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var errFakeGateway = errors.New("fake gateway failure")

type sentMessage struct {
	target string
	msg    Message
}

type fakeGateway struct {
	mu         sync.Mutex
	nextID     int
	created    []ChannelSpec
	deleted    []string
	granted    []string
	revoked    []string
	messages   []sentMessage
	dms        []sentMessage
	moderators map[string]bool
	channels   []ChannelInfo

	failCreate bool
	failGrant  bool
	failDM     bool
	grantDelay time.Duration
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{moderators: map[string]bool{}}
}

func (g *fakeGateway) CreateChannel(_ context.Context, spec ChannelSpec) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failCreate {
		return "", errFakeGateway
	}
	g.nextID++
	g.created = append(g.created, spec)
	return fmt.Sprintf("chan-%d", g.nextID), nil
}

func (g *fakeGateway) DeleteChannel(_ context.Context, channelID, _ string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.deleted = append(g.deleted, channelID)
	return nil
}

func (g *fakeGateway) GrantAccess(_ context.Context, channelID, userID string) error {
	g.mu.Lock()
	delay := g.grantDelay
	fail := g.failGrant
	g.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}
	if fail {
		return errFakeGateway
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.granted = append(g.granted, channelID+"|"+userID)
	return nil
}

func (g *fakeGateway) RevokeAccess(_ context.Context, channelID, userID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.revoked = append(g.revoked, channelID+"|"+userID)
	return nil
}

func (g *fakeGateway) SendMessage(_ context.Context, channelID string, msg Message) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.messages = append(g.messages, sentMessage{target: channelID, msg: msg})
	return nil
}

func (g *fakeGateway) DirectMessage(_ context.Context, userID string, msg Message) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failDM {
		return errFakeGateway
	}
	g.dms = append(g.dms, sentMessage{target: userID, msg: msg})
	return nil
}

func (g *fakeGateway) IsModerator(_ context.Context, userID string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.moderators[userID], nil
}

func (g *fakeGateway) ListLobbyChannels(_ context.Context) ([]ChannelInfo, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]ChannelInfo, len(g.channels))
	copy(out, g.channels)
	return out, nil
}

func (g *fakeGateway) Deleted() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]string, len(g.deleted))
	copy(out, g.deleted)
	return out
}

func (g *fakeGateway) Grants() (granted, revoked []string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.granted...), append([]string(nil), g.revoked...)
}

func (g *fakeGateway) DMsTo(userID string) []Message {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []Message
	for _, m := range g.dms {
		if m.target == userID {
			out = append(out, m.msg)
		}
	}
	return out
}

func (g *fakeGateway) MessagesIn(channelID string) []Message {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []Message
	for _, m := range g.messages {
		if m.target == channelID {
			out = append(out, m.msg)
		}
	}
	return out
}

func (g *fakeGateway) set(fn func(g *fakeGateway)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	fn(g)
}

type eventRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *eventRecorder) OnLobbyEvent(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *eventRecorder) Types() []EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventType, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

func (r *eventRecorder) Last(typ EventType) (Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].Type == typ {
			return r.events[i], true
		}
	}
	return Event{}, false
}

// waitForMember blocks until userID holds a seat in lobbyID, which for a join
// still waiting on its access grant means the grant is in flight.
func waitForMember(t *testing.T, c *Coordinator, lobbyID, userID string) {
	t.Helper()
	require.Eventually(t, func() bool {
		l, ok := c.Lobby(lobbyID)
		return ok && l.HasMember(userID)
	}, time.Second, time.Millisecond)
}

func testConfig() Config {
	return Config{
		Capacity:      3,
		EmptyGrace:    time.Hour,
		IdleThreshold: 2 * time.Hour,
		MatchTTL:      time.Hour,
		EndDelay:      time.Hour,
	}
}

func newTestCoordinator(t *testing.T, cfg Config) (*Coordinator, *fakeGateway, *eventRecorder) {
	t.Helper()
	gw := newFakeGateway()
	c := NewCoordinator(gw, cfg)
	rec := &eventRecorder{}
	c.AddObserver(rec)
	t.Cleanup(c.Close)
	return c, gw, rec
}

func member(id string) Member {
	return Member{ID: id, Name: "Player " + id}
}

// requireConsistent checks capacity, session bijection, owner membership, and
// token uniqueness.
func requireConsistent(t *testing.T, c *Coordinator) {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()

	members := 0
	tokens := map[string]string{}
	for id, l := range c.lobbies.lobbies {
		require.LessOrEqual(t, len(l.members), l.capacity, "lobby %s over capacity", id)
		if len(l.members) > 0 {
			require.GreaterOrEqual(t, l.indexOf(l.owner), 0, "owner of %s is not a member", id)
		} else {
			require.Empty(t, l.owner, "empty lobby %s keeps an owner", id)
		}
		for _, m := range l.members {
			got, ok := c.sessions.lookup(m.ID)
			require.True(t, ok, "member %s of %s has no session", m.ID, id)
			require.Equal(t, id, got)
			members++
		}
		prev, dup := tokens[l.token]
		require.False(t, dup, "token %s shared by %s and %s", l.token, prev, id)
		tokens[l.token] = id
	}
	require.Equal(t, members, c.sessions.len(), "session entries without membership")
}

func armedEmptyTimers(c *Coordinator) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, l := range c.lobbies.lobbies {
		if l.emptyTimer != nil {
			n++
		}
	}
	return n
}
