package lobby

import (
	"time"

	"github.com/samber/lo"
)

// Member is a user identity plus the display name captured when the user
// entered the lobby.
type Member struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (m Member) label() string {
	if m.Name != "" {
		return m.Name
	}
	return m.ID
}

// Lobby is a read-only snapshot of a registered lobby.
type Lobby struct {
	ID             string    `json:"id"`
	Owner          string    `json:"owner"`
	Members        []Member  `json:"members"`
	Capacity       int       `json:"capacity"`
	JoinToken      string    `json:"join_token"`
	Origin         string    `json:"origin,omitempty"`
	FriendCode     string    `json:"friend_code,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
	EmptySince     time.Time `json:"empty_since,omitempty"`
}

func (l Lobby) Full() bool { return len(l.Members) >= l.Capacity }

func (l Lobby) OpenSlots() int {
	if n := l.Capacity - len(l.Members); n > 0 {
		return n
	}
	return 0
}

func (l Lobby) HasMember(userID string) bool {
	return lo.ContainsBy(l.Members, func(m Member) bool { return m.ID == userID })
}

func (l Lobby) MemberNames() []string {
	return lo.Map(l.Members, func(m Member, _ int) string { return m.label() })
}

func (l Lobby) OwnerMember() (Member, bool) {
	return lo.Find(l.Members, func(m Member) bool { return m.ID == l.Owner })
}

type lobbyState struct {
	id             string
	owner          string
	members        []Member
	capacity       int
	token          string
	origin         string
	friendCode     string
	createdAt      time.Time
	lastActivityAt time.Time
	emptySince     time.Time
	emptyTimer     *emptyTimer
}

func (l *lobbyState) snapshot() Lobby {
	members := make([]Member, len(l.members))
	copy(members, l.members)
	return Lobby{
		ID:             l.id,
		Owner:          l.owner,
		Members:        members,
		Capacity:       l.capacity,
		JoinToken:      l.token,
		Origin:         l.origin,
		FriendCode:     l.friendCode,
		CreatedAt:      l.createdAt,
		LastActivityAt: l.lastActivityAt,
		EmptySince:     l.emptySince,
	}
}

func (l *lobbyState) indexOf(userID string) int {
	_, idx, ok := lo.FindIndexOf(l.members, func(m Member) bool { return m.ID == userID })
	if !ok {
		return -1
	}
	return idx
}

func (l *lobbyState) full() bool { return len(l.members) >= l.capacity }

func (l *lobbyState) touch(at time.Time) {
	if at.After(l.lastActivityAt) {
		l.lastActivityAt = at
	}
}

// idleSince falls back to the creation time when no activity was observed.
func (l *lobbyState) idleSince() time.Time {
	if l.lastActivityAt.IsZero() {
		return l.createdAt
	}
	return l.lastActivityAt
}
