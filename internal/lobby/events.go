package lobby

import (
	"time"

	"nightreign-lobby/internal/ids"
)

type EventType string

const (
	EventLobbyCreated   EventType = "lobby_created"
	EventLobbyRestored  EventType = "lobby_restored"
	EventMemberJoined   EventType = "member_joined"
	EventMemberLeft     EventType = "member_left"
	EventMemberKicked   EventType = "member_kicked"
	EventOwnerChanged   EventType = "owner_changed"
	EventLobbyEmptied   EventType = "lobby_emptied"
	EventLobbyDeleted   EventType = "lobby_deleted"
	EventMatchRequested EventType = "match_requested"
	EventMatchAccepted  EventType = "match_accepted"
	EventMatchDenied    EventType = "match_denied"
	EventMatchCancelled EventType = "match_cancelled"
	EventMatchExpired   EventType = "match_expired"
)

const (
	ReasonEmptyTimeout = "empty_timeout"
	ReasonInactive     = "inactive"
	ReasonEnded        = "ended"
	ReasonRemoved      = "removed"
	ReasonSeated       = "seated"
)

// Event describes one committed state transition. Lobby holds the snapshot
// taken right after the transition; it is empty for match events that do not
// touch a lobby.
type Event struct {
	ID      string        `json:"id"`
	Type    EventType     `json:"type"`
	LobbyID string        `json:"lobby_id,omitempty"`
	Lobby   Lobby         `json:"lobby"`
	Request *MatchRequest `json:"request,omitempty"`
	Actor   string        `json:"actor,omitempty"`
	Subject string        `json:"subject,omitempty"`
	Reason  string        `json:"reason,omitempty"`
	At      time.Time     `json:"at"`
}

func (e Event) Terminal() bool { return e.Type == EventLobbyDeleted }

// Observer receives lifecycle events after the coordinator has released its
// lock. Implementations must not block.
type Observer interface {
	OnLobbyEvent(ev Event)
}

type ObserverFunc func(ev Event)

func (f ObserverFunc) OnLobbyEvent(ev Event) { f(ev) }

func (c *Coordinator) AddObserver(obs Observer) {
	if obs == nil {
		return
	}
	c.obsMu.Lock()
	defer c.obsMu.Unlock()
	c.observers = append(c.observers, obs)
}

func (c *Coordinator) newEvent(typ EventType, lobby Lobby) Event {
	return Event{
		ID:      ids.NewID(),
		Type:    typ,
		LobbyID: lobby.ID,
		Lobby:   lobby,
		At:      c.now(),
	}
}

func (c *Coordinator) emit(events ...Event) {
	if len(events) == 0 {
		return
	}
	c.obsMu.RLock()
	observers := make([]Observer, len(c.observers))
	copy(observers, c.observers)
	c.obsMu.RUnlock()
	for _, ev := range events {
		metricEventsEmittedTotal.Add(1)
		for _, obs := range observers {
			obs.OnLobbyEvent(ev)
		}
	}
}
