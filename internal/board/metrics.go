package board

import "expvar"

var (
	metricQueuedTotal       = expvar.NewInt("board_push_queued_total")
	metricDroppedTotal      = expvar.NewInt("board_push_dropped_total")
	metricRetryTotal        = expvar.NewInt("board_push_retry_total")
	metricRetryDroppedTotal = expvar.NewInt("board_push_retry_dropped_total")
	metricSentTotal         = expvar.NewInt("board_push_sent_total")
	metricFailedTotal       = expvar.NewInt("board_push_failed_total")
	metricCircuitOpenTotal  = expvar.NewInt("board_push_circuit_open_total")
	metricQueueLen          = expvar.NewInt("board_push_queue_len")
	metricPanelsActive      = expvar.NewInt("board_panels_active")
	metricConfigReloadTotal = expvar.NewInt("board_config_reload_total")
	metricConfigReloadError = expvar.NewInt("board_config_reload_error_total")
)
