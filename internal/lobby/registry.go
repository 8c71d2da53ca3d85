package lobby

import (
	"fmt"
	"sort"
)

// registry holds live lobbies. It is not safe for concurrent use; the
// coordinator guards it.
type registry struct {
	lobbies map[string]*lobbyState
	byToken map[string]string
}

func newRegistry() *registry {
	return &registry{
		lobbies: map[string]*lobbyState{},
		byToken: map[string]string{},
	}
}

func (r *registry) get(id string) *lobbyState {
	return r.lobbies[id]
}

func (r *registry) byJoinToken(token string) *lobbyState {
	id, ok := r.byToken[token]
	if !ok {
		return nil
	}
	return r.lobbies[id]
}

func (r *registry) tokenInUse(token string) bool {
	_, ok := r.byToken[token]
	return ok
}

func (r *registry) add(l *lobbyState) error {
	if _, ok := r.lobbies[l.id]; ok {
		return fmt.Errorf("lobby %s already registered", l.id)
	}
	if r.tokenInUse(l.token) {
		return ErrTokenNotUnique
	}
	r.lobbies[l.id] = l
	r.byToken[l.token] = l.id
	return nil
}

func (r *registry) remove(id string) *lobbyState {
	l := r.lobbies[id]
	if l == nil {
		return nil
	}
	delete(r.lobbies, id)
	if r.byToken[l.token] == id {
		delete(r.byToken, l.token)
	}
	return l
}

func (r *registry) len() int { return len(r.lobbies) }

// all returns lobbies oldest first.
func (r *registry) all() []*lobbyState {
	out := make([]*lobbyState, 0, len(r.lobbies))
	for _, l := range r.lobbies {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].createdAt.Equal(out[j].createdAt) {
			return out[i].id < out[j].id
		}
		return out[i].createdAt.Before(out[j].createdAt)
	})
	return out
}

// sessionIndex maps a user to the single lobby they belong to.
type sessionIndex struct {
	byUser map[string]string
}

func newSessionIndex() *sessionIndex {
	return &sessionIndex{byUser: map[string]string{}}
}

func (s *sessionIndex) lookup(userID string) (string, bool) {
	id, ok := s.byUser[userID]
	return id, ok
}

func (s *sessionIndex) bind(userID, lobbyID string) {
	s.byUser[userID] = lobbyID
}

// unbind removes the entry only when it still points at lobbyID.
func (s *sessionIndex) unbind(userID, lobbyID string) {
	if s.byUser[userID] == lobbyID {
		delete(s.byUser, userID)
	}
}

// purge drops every entry referencing lobbyID and reports how many it found.
func (s *sessionIndex) purge(lobbyID string) int {
	n := 0
	for userID, id := range s.byUser {
		if id == lobbyID {
			delete(s.byUser, userID)
			n++
		}
	}
	return n
}

func (s *sessionIndex) len() int { return len(s.byUser) }
