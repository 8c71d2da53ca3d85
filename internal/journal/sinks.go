package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"nightreign-lobby/internal/config"
	"nightreign-lobby/internal/lobby"
	"nightreign-lobby/internal/store"

	"github.com/redis/go-redis/v9"
)

// Sink persists lobby events somewhere durable.
type Sink interface {
	Name() string
	Write(ctx context.Context, ev lobby.Event) error
}

// StoreSink appends events to the lobby_events table.
type StoreSink struct {
	st *store.Store
}

func NewStoreSink(st *store.Store) *StoreSink {
	return &StoreSink{st: st}
}

func (s *StoreSink) Name() string { return "postgres" }

func (s *StoreSink) Write(ctx context.Context, ev lobby.Event) error {
	rec, err := toStoreEvent(ev)
	if err != nil {
		return err
	}
	return s.st.AppendLobbyEvent(ctx, rec)
}

func toStoreEvent(ev lobby.Event) (store.LobbyEvent, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return store.LobbyEvent{}, fmt.Errorf("marshal lobby event: %w", err)
	}
	return store.LobbyEvent{
		ID:         ev.ID,
		Type:       string(ev.Type),
		LobbyID:    ev.LobbyID,
		ActorID:    ev.Actor,
		SubjectID:  ev.Subject,
		Reason:     ev.Reason,
		Payload:    payload,
		OccurredAt: ev.At,
	}, nil
}

// RedisSink pushes each event as JSON onto a Redis list for downstream
// consumers.
type RedisSink struct {
	rdb   *redis.Client
	queue string
}

func NewRedisSink(rdb *redis.Client, queue string) *RedisSink {
	return &RedisSink{rdb: rdb, queue: queue}
}

func (s *RedisSink) Name() string { return "redis" }

func (s *RedisSink) Write(ctx context.Context, ev lobby.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal lobby event: %w", err)
	}
	if err := s.rdb.RPush(ctx, s.queue, data).Err(); err != nil {
		return fmt.Errorf("rpush to redis list %q: %w", s.queue, err)
	}
	return nil
}

// ConnectRedis opens a client for cfg.RedisAddr and checks it with a ping.
func ConnectRedis(ctx context.Context, cfg config.JournalConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", cfg.RedisAddr, err)
	}
	return rdb, nil
}
