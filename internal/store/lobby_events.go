package store

import (
	"context"
	"encoding/json"
	"time"
)

const defaultEventLimit = 100

// LobbyEvent is one journaled lifecycle transition. Payload holds the full
// event as JSON.
type LobbyEvent struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	LobbyID    string          `json:"lobby_id"`
	ActorID    string          `json:"actor_id,omitempty"`
	SubjectID  string          `json:"subject_id,omitempty"`
	Reason     string          `json:"reason,omitempty"`
	Payload    json.RawMessage `json:"payload"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// AppendLobbyEvent is idempotent on the event id.
func (s *Store) AppendLobbyEvent(ctx context.Context, ev LobbyEvent) error {
	payload := ev.Payload
	if len(payload) == 0 {
		payload = json.RawMessage(`{}`)
	}
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO lobby_events (id, event_type, lobby_id, actor_id, subject_id, reason, payload, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING`,
		ev.ID, ev.Type, ev.LobbyID, ev.ActorID, ev.SubjectID, ev.Reason, []byte(payload), ev.OccurredAt)
	return err
}

// ListLobbyEvents returns the newest events of a lobby in chronological
// order.
func (s *Store) ListLobbyEvents(ctx context.Context, lobbyID string, limit int) ([]LobbyEvent, error) {
	if limit <= 0 || limit > 1000 {
		limit = defaultEventLimit
	}
	rows, err := s.Pool.Query(ctx, `
		SELECT id, event_type, lobby_id, actor_id, subject_id, reason, payload, occurred_at
		FROM (
		  SELECT * FROM lobby_events WHERE lobby_id = $1
		  ORDER BY occurred_at DESC, id DESC
		  LIMIT $2
		) recent
		ORDER BY occurred_at ASC, id ASC`, lobbyID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []LobbyEvent{}
	for rows.Next() {
		var ev LobbyEvent
		var payload []byte
		if err := rows.Scan(&ev.ID, &ev.Type, &ev.LobbyID, &ev.ActorID, &ev.SubjectID, &ev.Reason, &payload, &ev.OccurredAt); err != nil {
			return nil, err
		}
		ev.Payload = payload
		out = append(out, ev)
	}
	return out, rows.Err()
}
