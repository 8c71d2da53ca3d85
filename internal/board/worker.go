package board

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
)

var errCircuitOpen = errors.New("circuit_open")

type panelCleaner interface {
	ForgetPanel(endpoint, threadID, panelKey string)
}

type breakerState struct {
	consecutiveFailures int
	openUntil           time.Time
}

func (m *Manager) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.done:
			return
		case job := <-m.dispatchCh:
			metricQueueLen.Set(int64(len(m.dispatchCh)))
			m.processJob(ctx, job)
		}
	}
}

func (m *Manager) processJob(ctx context.Context, job pushJob) {
	adapter := m.adapters[job.Target.Platform]
	if adapter == nil {
		metricDroppedTotal.Add(1)
		m.markPanelDeliveryDropped(job)
		return
	}

	if err := m.beforeSend(job.key(), time.Now()); err != nil {
		metricCircuitOpenTotal.Add(1)
		if !m.retryOrDrop(job, err) {
			m.markPanelDeliveryDropped(job)
		}
		return
	}

	err := adapter.Send(ctx, job.Target.Endpoint, job.Target.ThreadID, job.Message)
	if err != nil {
		metricFailedTotal.Add(1)
		m.afterFailure(job.key(), time.Now())
		if !m.retryOrDrop(job, err) {
			m.markPanelDeliveryDropped(job)
		}
		return
	}

	metricSentTotal.Add(1)
	m.afterSuccess(job.key())
	m.markPanelDeliverySuccess(job)
	if job.PanelTerminal {
		if cleaner, ok := adapter.(panelCleaner); ok {
			cleaner.ForgetPanel(job.Target.Endpoint, job.Target.ThreadID, job.Message.PanelKey)
		}
	}
}

func (m *Manager) retryOrDrop(job pushJob, err error) bool {
	if job.Attempt >= m.cfg.RetryMax {
		metricRetryDroppedTotal.Add(1)
		log.Warn().Err(err).Str("platform", job.Target.Platform).Str("event", string(job.EventType)).
			Int("attempts", job.Attempt+1).Msg("board push dropped")
		return false
	}
	job.Attempt++
	metricRetryTotal.Add(1)
	delay := m.cfg.RetryBase * time.Duration(1<<(job.Attempt-1))
	m.retryQ.Enqueue(job, delay)
	return true
}

func (m *Manager) beforeSend(key string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	state := m.breakerByKey[key]
	if !state.openUntil.IsZero() && now.Before(state.openUntil) {
		return errCircuitOpen
	}
	return nil
}

func (m *Manager) afterFailure(key string, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	state := m.breakerByKey[key]
	state.consecutiveFailures++
	if state.consecutiveFailures >= m.cfg.FailureThreshold {
		state.openUntil = now.Add(m.cfg.CircuitOpenDuration)
		state.consecutiveFailures = 0
	}
	m.breakerByKey[key] = state
}

func (m *Manager) afterSuccess(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.breakerByKey[key] = breakerState{}
}
