package journal

import "expvar"

var (
	metricQueuedTotal      = expvar.NewInt("journal_queued_total")
	metricDroppedTotal     = expvar.NewInt("journal_dropped_total")
	metricWrittenTotal     = expvar.NewInt("journal_written_total")
	metricWriteFailedTotal = expvar.NewInt("journal_write_failed_total")
	metricQueueLen         = expvar.NewInt("journal_queue_len")
)
