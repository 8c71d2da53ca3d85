package lobby

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCreateRegistersOwnerAndToken(t *testing.T) {
	c, gw, rec := newTestCoordinator(t, testConfig())
	ctx := context.Background()

	l, err := c.Create(ctx, CreateRequest{Owner: member("a"), Origin: "general", FriendCode: "123456789"})
	require.NoError(t, err)
	require.Equal(t, "a", l.Owner)
	require.Equal(t, []Member{member("a")}, l.Members)
	require.NotEmpty(t, l.JoinToken)
	require.Equal(t, "123456789", l.FriendCode)
	require.True(t, l.EmptySince.IsZero())

	require.Len(t, gw.created, 1)
	require.Equal(t, "a", gw.created[0].Owner)
	require.Regexp(t, `^lobby-player-a-\d{4}$`, gw.created[0].Name)

	got, ok := c.LobbyOf("a")
	require.True(t, ok)
	require.Equal(t, l.ID, got.ID)
	require.Equal(t, []EventType{EventLobbyCreated}, rec.Types())
	requireConsistent(t, c)
}

func TestCreateRejectsUserWithSession(t *testing.T) {
	c, _, _ := newTestCoordinator(t, testConfig())
	ctx := context.Background()

	first, err := c.Create(ctx, CreateRequest{Owner: member("a")})
	require.NoError(t, err)

	_, err = c.Create(ctx, CreateRequest{Owner: member("a")})
	var already *AlreadyInLobbyError
	require.ErrorAs(t, err, &already)
	require.Equal(t, first.ID, already.LobbyID)
	require.ErrorIs(t, err, ErrAlreadyInLobby)
}

func TestCreateRollsBackOnGatewayFailure(t *testing.T) {
	c, gw, rec := newTestCoordinator(t, testConfig())
	gw.set(func(g *fakeGateway) { g.failCreate = true })

	_, err := c.Create(context.Background(), CreateRequest{Owner: member("a")})
	require.ErrorIs(t, err, ErrGateway)
	require.ErrorIs(t, err, errFakeGateway)
	require.Empty(t, c.Lobbies())
	_, ok := c.LobbyOf("a")
	require.False(t, ok)
	require.Empty(t, rec.Types())

	gw.set(func(g *fakeGateway) { g.failCreate = false })
	_, err = c.Create(context.Background(), CreateRequest{Owner: member("a")})
	require.NoError(t, err)
}

func TestCreateRetriesTokenCollisions(t *testing.T) {
	c, _, _ := newTestCoordinator(t, testConfig())
	ctx := context.Background()

	tokens := []string{"dup", "dup", "dup", "fresh"}
	orig := newToken
	newToken = func() string {
		tok := tokens[0]
		tokens = tokens[1:]
		return tok
	}
	defer func() { newToken = orig }()

	first, err := c.Create(ctx, CreateRequest{Owner: member("a")})
	require.NoError(t, err)
	require.Equal(t, "dup", first.JoinToken)

	second, err := c.Create(ctx, CreateRequest{Owner: member("b")})
	require.NoError(t, err)
	require.Equal(t, "fresh", second.JoinToken)
	requireConsistent(t, c)
}

func TestCreateFailsWhenTokensExhausted(t *testing.T) {
	c, gw, _ := newTestCoordinator(t, testConfig())
	ctx := context.Background()

	orig := newToken
	newToken = func() string { return "same" }
	defer func() { newToken = orig }()

	_, err := c.Create(ctx, CreateRequest{Owner: member("a")})
	require.NoError(t, err)
	_, err = c.Create(ctx, CreateRequest{Owner: member("b")})
	require.ErrorIs(t, err, ErrTokenNotUnique)
	require.Len(t, c.Lobbies(), 1)
	require.Contains(t, gw.Deleted(), "chan-2")
	_, ok := c.LobbyOf("b")
	require.False(t, ok)
}

func TestJoinFullLobbyListsMembers(t *testing.T) {
	c, _, _ := newTestCoordinator(t, testConfig())
	ctx := context.Background()

	l, err := c.Create(ctx, CreateRequest{Owner: member("A")})
	require.NoError(t, err)
	_, err = c.Join(ctx, l.ID, member("B"))
	require.NoError(t, err)
	joined, err := c.JoinByToken(ctx, l.JoinToken, member("C"))
	require.NoError(t, err)
	require.True(t, joined.Full())

	_, err = c.Join(ctx, l.ID, member("D"))
	var full *LobbyFullError
	require.ErrorAs(t, err, &full)
	require.ErrorIs(t, err, ErrLobbyFull)
	require.Equal(t, 3, full.Capacity)
	require.Equal(t, []Member{member("A"), member("B"), member("C")}, full.Members)
	require.Contains(t, err.Error(), "3/3")
	_, ok := c.LobbyOf("D")
	require.False(t, ok)
	requireConsistent(t, c)
}

func TestJoinValidationOrder(t *testing.T) {
	c, _, _ := newTestCoordinator(t, testConfig())
	ctx := context.Background()

	l1, err := c.Create(ctx, CreateRequest{Owner: member("a")})
	require.NoError(t, err)
	l2, err := c.Create(ctx, CreateRequest{Owner: member("b")})
	require.NoError(t, err)

	// The session check comes first, so a member rejoining their own lobby
	// is told which lobby holds them.
	_, err = c.Join(ctx, l1.ID, member("a"))
	var already *AlreadyInLobbyError
	require.ErrorAs(t, err, &already)
	require.Equal(t, l1.ID, already.LobbyID)

	_, err = c.Join(ctx, l1.ID, member("b"))
	require.ErrorAs(t, err, &already)
	require.Equal(t, l2.ID, already.LobbyID)

	_, err = c.Join(ctx, "missing", member("b"))
	require.ErrorIs(t, err, ErrAlreadyInLobby)

	_, err = c.Join(ctx, "missing", member("c"))
	require.ErrorIs(t, err, ErrLobbyNotFound)

	_, err = c.JoinByToken(ctx, "nope", member("c"))
	require.ErrorIs(t, err, ErrLobbyNotFound)

	_, err = c.Join(ctx, l1.ID, Member{})
	require.ErrorIs(t, err, ErrInvalidMember)
}

func TestConcurrentJoinsNeverExceedCapacity(t *testing.T) {
	c, gw, _ := newTestCoordinator(t, testConfig())
	ctx := context.Background()
	gw.set(func(g *fakeGateway) { g.grantDelay = 5 * time.Millisecond })

	l, err := c.Create(ctx, CreateRequest{Owner: member("owner")})
	require.NoError(t, err)
	_, err = c.Join(ctx, l.ID, member("second"))
	require.NoError(t, err)

	var wg sync.WaitGroup
	var okCount, fullCount int
	var mu sync.Mutex
	for _, id := range []string{"x", "y", "z", "w"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := c.Join(ctx, l.ID, member(id))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				okCount++
			case errors.Is(err, ErrLobbyFull):
				fullCount++
			default:
				t.Errorf("unexpected join error: %v", err)
			}
		}(id)
	}
	wg.Wait()

	require.Equal(t, 1, okCount)
	require.Equal(t, 3, fullCount)
	got, ok := c.Lobby(l.ID)
	require.True(t, ok)
	require.Len(t, got.Members, 3)
	requireConsistent(t, c)
}

func TestConcurrentInvitesAndJoinsNeverExceedCapacity(t *testing.T) {
	c, _, _ := newTestCoordinator(t, testConfig())
	ctx := context.Background()

	l, err := c.Create(ctx, CreateRequest{Owner: member("owner")})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i, id := range []string{"j1", "j2", "i1", "i2", "j3", "i3"} {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			if i%2 == 0 {
				_, _ = c.Join(ctx, l.ID, member(id))
				return
			}
			_, _ = c.Invite(ctx, l.ID, "owner", member(id))
		}(i, id)
	}
	wg.Wait()

	got, ok := c.Lobby(l.ID)
	require.True(t, ok)
	require.Len(t, got.Members, 3)
	requireConsistent(t, c)
}

func TestJoinRollsBackWhenGrantFails(t *testing.T) {
	c, gw, rec := newTestCoordinator(t, testConfig())
	ctx := context.Background()

	l, err := c.Create(ctx, CreateRequest{Owner: member("a")})
	require.NoError(t, err)
	gw.set(func(g *fakeGateway) { g.failGrant = true })

	_, err = c.Join(ctx, l.ID, member("b"))
	require.ErrorIs(t, err, ErrGateway)

	got, _ := c.Lobby(l.ID)
	require.Equal(t, []Member{member("a")}, got.Members)
	_, ok := c.LobbyOf("b")
	require.False(t, ok)
	require.NotContains(t, rec.Types(), EventMemberJoined)
	requireConsistent(t, c)
}

func TestKickDuringGrantFailsJoin(t *testing.T) {
	c, gw, rec := newTestCoordinator(t, testConfig())
	ctx := context.Background()

	l, err := c.Create(ctx, CreateRequest{Owner: member("a")})
	require.NoError(t, err)
	gw.set(func(g *fakeGateway) { g.grantDelay = 100 * time.Millisecond })

	done := make(chan error, 1)
	go func() {
		_, err := c.Join(ctx, l.ID, member("b"))
		done <- err
	}()
	waitForMember(t, c, l.ID, "b")

	_, err = c.Kick(ctx, l.ID, "a", "b")
	require.NoError(t, err)
	require.ErrorIs(t, <-done, ErrNotMember)

	got, _ := c.Lobby(l.ID)
	require.Equal(t, []Member{member("a")}, got.Members)
	_, ok := c.LobbyOf("b")
	require.False(t, ok)
	require.Equal(t, []EventType{EventLobbyCreated, EventMemberKicked}, rec.Types())

	// The late grant is revoked again after it lands.
	granted, revoked := gw.Grants()
	require.Equal(t, []string{l.ID + "|b"}, granted)
	require.Equal(t, []string{l.ID + "|b", l.ID + "|b"}, revoked)
	requireConsistent(t, c)
}

func TestEndDuringGrantFailsJoin(t *testing.T) {
	c, gw, rec := newTestCoordinator(t, testConfig())
	ctx := context.Background()

	l, err := c.Create(ctx, CreateRequest{Owner: member("a")})
	require.NoError(t, err)
	gw.set(func(g *fakeGateway) { g.grantDelay = 100 * time.Millisecond })

	done := make(chan error, 1)
	go func() {
		_, err := c.JoinByToken(ctx, l.JoinToken, member("b"))
		done <- err
	}()
	waitForMember(t, c, l.ID, "b")

	require.NoError(t, c.End(ctx, l.ID, "a"))
	require.ErrorIs(t, <-done, ErrLobbyNotFound)

	_, ok := c.LobbyOf("b")
	require.False(t, ok)
	require.Equal(t, []EventType{EventLobbyCreated, EventLobbyDeleted}, rec.Types())
	_, revoked := gw.Grants()
	require.Equal(t, []string{l.ID + "|b"}, revoked)
	requireConsistent(t, c)
}

func TestJoinRollbackAnnouncesEmptiedLobby(t *testing.T) {
	c, gw, rec := newTestCoordinator(t, testConfig())
	ctx := context.Background()

	l, err := c.Create(ctx, CreateRequest{Owner: member("a")})
	require.NoError(t, err)
	gw.set(func(g *fakeGateway) {
		g.grantDelay = 100 * time.Millisecond
		g.failGrant = true
	})

	done := make(chan error, 1)
	go func() {
		_, err := c.Join(ctx, l.ID, member("b"))
		done <- err
	}()
	waitForMember(t, c, l.ID, "b")

	// The owner leaves while b's grant is pending, handing the crown to b.
	_, err = c.Leave(ctx, l.ID, "a")
	require.NoError(t, err)
	require.ErrorIs(t, <-done, ErrGateway)

	got, ok := c.Lobby(l.ID)
	require.True(t, ok)
	require.Empty(t, got.Members)
	require.Empty(t, got.Owner)
	require.Equal(t, 1, armedEmptyTimers(c))
	require.Equal(t, []EventType{EventLobbyCreated, EventMemberLeft, EventOwnerChanged, EventLobbyEmptied}, rec.Types())

	emptied, _ := rec.Last(EventLobbyEmptied)
	require.Empty(t, emptied.Lobby.Members)
	require.False(t, emptied.Lobby.EmptySince.IsZero())
	requireConsistent(t, c)
}

func TestJoinWithdrawsPendingMatchRequest(t *testing.T) {
	c, gw, rec := newTestCoordinator(t, testConfig())
	ctx := context.Background()

	l, err := c.Create(ctx, CreateRequest{Owner: member("a")})
	require.NoError(t, err)
	_, err = c.FindMatch(ctx, member("b"))
	require.NoError(t, err)

	_, err = c.Join(ctx, l.ID, member("b"))
	require.NoError(t, err)

	_, ok := c.PendingMatch("b")
	require.False(t, ok)
	require.Empty(t, c.MatchRequests())
	withdrawn, ok := rec.Last(EventMatchCancelled)
	require.True(t, ok)
	require.Equal(t, ReasonSeated, withdrawn.Reason)
	require.Equal(t, MatchCancelled, withdrawn.Request.State)

	_, err = c.Allow(ctx, l.ID, "a")
	require.ErrorIs(t, err, ErrNoPendingRequest)
	require.Empty(t, gw.DMsTo("b"))
}

func TestCreateWithdrawsPendingMatchRequest(t *testing.T) {
	c, _, rec := newTestCoordinator(t, testConfig())
	ctx := context.Background()

	_, err := c.Create(ctx, CreateRequest{Owner: member("a")})
	require.NoError(t, err)
	_, err = c.FindMatch(ctx, member("b"))
	require.NoError(t, err)

	_, err = c.Create(ctx, CreateRequest{Owner: member("b")})
	require.NoError(t, err)
	_, ok := c.PendingMatch("b")
	require.False(t, ok)
	require.Equal(t, EventMatchCancelled, rec.Types()[len(rec.Types())-1])
}

func TestLeaveRoundTripLeavesNoTimer(t *testing.T) {
	c, gw, _ := newTestCoordinator(t, testConfig())
	ctx := context.Background()

	l, err := c.Create(ctx, CreateRequest{Owner: member("u")})
	require.NoError(t, err)
	_, err = c.JoinByToken(ctx, l.JoinToken, member("v"))
	require.NoError(t, err)
	after, err := c.Leave(ctx, l.ID, "v")
	require.NoError(t, err)

	require.Equal(t, []Member{member("u")}, after.Members)
	_, ok := c.LobbyOf("v")
	require.False(t, ok)
	require.Zero(t, armedEmptyTimers(c))
	require.Contains(t, gw.revoked, l.ID+"|v")
	requireConsistent(t, c)
}

func TestLeaveNotMember(t *testing.T) {
	c, _, _ := newTestCoordinator(t, testConfig())
	ctx := context.Background()

	l, err := c.Create(ctx, CreateRequest{Owner: member("a")})
	require.NoError(t, err)

	_, err = c.Leave(ctx, l.ID, "stranger")
	require.ErrorIs(t, err, ErrNotMember)
	_, err = c.Leave(ctx, "missing", "a")
	require.ErrorIs(t, err, ErrLobbyNotFound)
}

func TestOwnerLeaveTransfersToFirstRemaining(t *testing.T) {
	c, gw, rec := newTestCoordinator(t, testConfig())
	ctx := context.Background()

	l, err := c.Create(ctx, CreateRequest{Owner: member("a")})
	require.NoError(t, err)
	_, err = c.Join(ctx, l.ID, member("b"))
	require.NoError(t, err)
	_, err = c.Join(ctx, l.ID, member("c"))
	require.NoError(t, err)

	after, err := c.Leave(ctx, l.ID, "a")
	require.NoError(t, err)
	require.Equal(t, "b", after.Owner)
	require.Equal(t, []Member{member("b"), member("c")}, after.Members)

	ev, ok := rec.Last(EventOwnerChanged)
	require.True(t, ok)
	require.Equal(t, "b", ev.Subject)
	msgs := gw.MessagesIn(l.ID)
	require.Contains(t, msgs[len(msgs)-1].Content, "<@b> is now the lobby owner")
	requireConsistent(t, c)
}

func TestKickOwnerTransfersOwnership(t *testing.T) {
	c, gw, _ := newTestCoordinator(t, testConfig())
	ctx := context.Background()

	l, err := c.Create(ctx, CreateRequest{Owner: member("a")})
	require.NoError(t, err)
	_, err = c.Join(ctx, l.ID, member("b"))
	require.NoError(t, err)
	_, err = c.Join(ctx, l.ID, member("c"))
	require.NoError(t, err)

	after, err := c.Kick(ctx, l.ID, "c", "a")
	require.NoError(t, err)
	require.Equal(t, "b", after.Owner)
	require.Len(t, gw.DMsTo("a"), 1)
	requireConsistent(t, c)
}

func TestKickValidation(t *testing.T) {
	c, _, _ := newTestCoordinator(t, testConfig())
	ctx := context.Background()

	l, err := c.Create(ctx, CreateRequest{Owner: member("a")})
	require.NoError(t, err)
	_, err = c.Join(ctx, l.ID, member("b"))
	require.NoError(t, err)

	_, err = c.Kick(ctx, l.ID, "a", "a")
	require.ErrorIs(t, err, ErrCannotKickSelf)
	_, err = c.Kick(ctx, l.ID, "stranger", "a")
	require.ErrorIs(t, err, ErrNotMember)
	_, err = c.Kick(ctx, l.ID, "a", "stranger")
	require.ErrorIs(t, err, ErrNotMember)
	_, err = c.Kick(ctx, "missing", "a", "b")
	require.ErrorIs(t, err, ErrLobbyNotFound)
}

func TestKickSucceedsWhenDMFails(t *testing.T) {
	c, gw, _ := newTestCoordinator(t, testConfig())
	ctx := context.Background()

	l, err := c.Create(ctx, CreateRequest{Owner: member("a")})
	require.NoError(t, err)
	_, err = c.Join(ctx, l.ID, member("b"))
	require.NoError(t, err)
	gw.set(func(g *fakeGateway) { g.failDM = true })

	after, err := c.Kick(ctx, l.ID, "b", "a")
	require.NoError(t, err)
	require.Equal(t, []Member{member("b")}, after.Members)
}

func TestInviteNotifiesAndFallsBack(t *testing.T) {
	c, gw, _ := newTestCoordinator(t, testConfig())
	ctx := context.Background()

	l, err := c.Create(ctx, CreateRequest{Owner: member("a")})
	require.NoError(t, err)

	_, err = c.Invite(ctx, l.ID, "a", member("b"))
	require.NoError(t, err)
	dms := gw.DMsTo("b")
	require.Len(t, dms, 1)
	require.Equal(t, "Lobby invite", dms[0].Title)

	gw.set(func(g *fakeGateway) { g.failDM = true })
	after, err := c.Invite(ctx, l.ID, "b", member("c"))
	require.NoError(t, err)
	require.True(t, after.HasMember("c"))
	msgs := gw.MessagesIn(l.ID)
	require.Contains(t, msgs[len(msgs)-1].Content, "Could not DM <@c>")
	requireConsistent(t, c)
}

func TestInviteValidation(t *testing.T) {
	c, _, _ := newTestCoordinator(t, testConfig())
	ctx := context.Background()

	l1, err := c.Create(ctx, CreateRequest{Owner: member("a")})
	require.NoError(t, err)
	l2, err := c.Create(ctx, CreateRequest{Owner: member("b")})
	require.NoError(t, err)

	_, err = c.Invite(ctx, l1.ID, "stranger", member("c"))
	require.ErrorIs(t, err, ErrNotMember)

	_, err = c.Invite(ctx, l1.ID, "a", member("b"))
	var already *AlreadyInLobbyError
	require.ErrorAs(t, err, &already)
	require.Equal(t, l2.ID, already.LobbyID)

	_, err = c.Invite(ctx, l1.ID, "a", member("a"))
	require.ErrorAs(t, err, &already)
	require.Equal(t, l1.ID, already.LobbyID)
}

func TestEndByOwnerDeregistersAndSchedulesDelete(t *testing.T) {
	cfg := testConfig()
	cfg.EndDelay = 20 * time.Millisecond
	c, gw, rec := newTestCoordinator(t, cfg)
	ctx := context.Background()

	l, err := c.Create(ctx, CreateRequest{Owner: member("a")})
	require.NoError(t, err)
	_, err = c.Join(ctx, l.ID, member("b"))
	require.NoError(t, err)

	require.ErrorIs(t, c.End(ctx, l.ID, "b"), ErrNotLobbyOwner)
	require.NoError(t, c.End(ctx, l.ID, "a"))

	_, ok := c.Lobby(l.ID)
	require.False(t, ok)
	_, ok = c.LobbyOf("b")
	require.False(t, ok)
	ev, ok := rec.Last(EventLobbyDeleted)
	require.True(t, ok)
	require.Equal(t, ReasonEnded, ev.Reason)

	require.Eventually(t, func() bool {
		return len(gw.Deleted()) == 1
	}, time.Second, 5*time.Millisecond)
	require.ErrorIs(t, c.End(ctx, l.ID, "a"), ErrLobbyNotFound)
	requireConsistent(t, c)
}

func TestEndByModerator(t *testing.T) {
	c, gw, _ := newTestCoordinator(t, testConfig())
	ctx := context.Background()
	gw.set(func(g *fakeGateway) { g.moderators["mod"] = true })

	l, err := c.Create(ctx, CreateRequest{Owner: member("a")})
	require.NoError(t, err)
	require.NoError(t, c.End(ctx, l.ID, "mod"))
	require.Empty(t, c.Lobbies())
}

func TestRemoveDeletesImmediately(t *testing.T) {
	c, gw, _ := newTestCoordinator(t, testConfig())
	ctx := context.Background()

	l, err := c.Create(ctx, CreateRequest{Owner: member("a")})
	require.NoError(t, err)
	require.NoError(t, c.Remove(ctx, l.ID, ""))
	require.Equal(t, []string{l.ID}, gw.Deleted())
	require.ErrorIs(t, c.Remove(ctx, l.ID, ""), ErrLobbyNotFound)
}

func TestOpenLobbiesExcludesFullAndEmpty(t *testing.T) {
	c, _, _ := newTestCoordinator(t, testConfig())
	ctx := context.Background()

	open, err := c.Create(ctx, CreateRequest{Owner: member("a")})
	require.NoError(t, err)
	full, err := c.Create(ctx, CreateRequest{Owner: member("b")})
	require.NoError(t, err)
	_, err = c.Join(ctx, full.ID, member("c"))
	require.NoError(t, err)
	_, err = c.Join(ctx, full.ID, member("d"))
	require.NoError(t, err)
	empty, err := c.Create(ctx, CreateRequest{Owner: member("e")})
	require.NoError(t, err)
	_, err = c.Leave(ctx, empty.ID, "e")
	require.NoError(t, err)

	got := c.OpenLobbies()
	require.Len(t, got, 1)
	require.Equal(t, open.ID, got[0].ID)
	require.Len(t, c.Lobbies(), 3)
}

func TestTouchUpdatesActivity(t *testing.T) {
	c, _, _ := newTestCoordinator(t, testConfig())
	ctx := context.Background()

	l, err := c.Create(ctx, CreateRequest{Owner: member("a")})
	require.NoError(t, err)
	later := l.LastActivityAt.Add(time.Minute)

	require.True(t, c.Touch(l.ID, later))
	require.True(t, c.Touch(l.ID, later.Add(-time.Hour)))
	got, _ := c.Lobby(l.ID)
	require.Equal(t, later, got.LastActivityAt)
	require.False(t, c.Touch("missing", later))
}

func TestClosedCoordinatorRejectsOperations(t *testing.T) {
	c, _, _ := newTestCoordinator(t, testConfig())
	c.Close()

	_, err := c.Create(context.Background(), CreateRequest{Owner: member("a")})
	require.ErrorIs(t, err, ErrCoordinatorClosed)
	_, err = c.FindMatch(context.Background(), member("a"))
	require.ErrorIs(t, err, ErrCoordinatorClosed)
}
