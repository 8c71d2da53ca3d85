// Package journal records every lobby lifecycle event to the configured
// sinks without slowing the coordinator down.
package journal

import (
	"context"
	"sync"
	"time"

	"nightreign-lobby/internal/lobby"

	"github.com/rs/zerolog/log"
)

const writeTimeout = 5 * time.Second

type Journal struct {
	sinks  []Sink
	events chan lobby.Event
	stop   chan struct{}
	once   sync.Once
	wg     sync.WaitGroup
}

func New(buffer int, sinks ...Sink) *Journal {
	if buffer <= 0 {
		buffer = 1024
	}
	return &Journal{
		sinks:  sinks,
		events: make(chan lobby.Event, buffer),
		stop:   make(chan struct{}),
	}
}

func (j *Journal) Start() {
	j.wg.Add(1)
	go j.run()
}

// Close stops the writer after flushing whatever is already queued.
func (j *Journal) Close() {
	j.once.Do(func() { close(j.stop) })
	j.wg.Wait()
}

// OnLobbyEvent implements lobby.Observer. Events are dropped when the queue
// is full.
func (j *Journal) OnLobbyEvent(ev lobby.Event) {
	if len(j.sinks) == 0 {
		return
	}
	select {
	case <-j.stop:
		metricDroppedTotal.Add(1)
		return
	default:
	}
	select {
	case j.events <- ev:
		metricQueuedTotal.Add(1)
		metricQueueLen.Set(int64(len(j.events)))
	default:
		metricDroppedTotal.Add(1)
		log.Warn().Str("event", string(ev.Type)).Str("lobby_id", ev.LobbyID).Msg("journal queue full; dropping event")
	}
}

func (j *Journal) run() {
	defer j.wg.Done()
	for {
		select {
		case ev := <-j.events:
			j.write(ev)
		case <-j.stop:
			for {
				select {
				case ev := <-j.events:
					j.write(ev)
				default:
					return
				}
			}
		}
	}
}

func (j *Journal) write(ev lobby.Event) {
	metricQueueLen.Set(int64(len(j.events)))
	for _, sink := range j.sinks {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		err := sink.Write(ctx, ev)
		cancel()
		if err != nil {
			metricWriteFailedTotal.Add(1)
			log.Warn().Err(err).Str("sink", sink.Name()).Str("event", string(ev.Type)).
				Str("lobby_id", ev.LobbyID).Msg("journal write failed")
			continue
		}
		metricWrittenTotal.Add(1)
	}
}
