package lobby

import "expvar"

var (
	metricLobbyCreatedTotal   = expvar.NewInt("lobby_created_total")
	metricLobbyRestoredTotal  = expvar.NewInt("lobby_restored_total")
	metricLobbyDeletedTotal   = expvar.NewInt("lobby_deleted_total")
	metricLobbyActive         = expvar.NewInt("lobby_active")
	metricJoinTotal           = expvar.NewInt("lobby_join_total")
	metricJoinRejectedTotal   = expvar.NewInt("lobby_join_rejected_total")
	metricLeaveTotal          = expvar.NewInt("lobby_leave_total")
	metricKickTotal           = expvar.NewInt("lobby_kick_total")
	metricEmptyTimersArmed    = expvar.NewInt("lobby_empty_timers_armed_total")
	metricEmptyTimersFired    = expvar.NewInt("lobby_empty_timers_fired_total")
	metricSweepReclaimedTotal = expvar.NewInt("lobby_sweep_reclaimed_total")
	metricGatewayErrorsTotal  = expvar.NewInt("lobby_gateway_errors_total")
	metricSideEffectFailed    = expvar.NewInt("lobby_side_effect_failed_total")
	metricEventsEmittedTotal  = expvar.NewInt("lobby_events_emitted_total")

	metricMatchRequestsTotal = expvar.NewInt("lobby_match_requests_total")
	metricMatchAcceptedTotal = expvar.NewInt("lobby_match_accepted_total")
	metricMatchDeniedTotal   = expvar.NewInt("lobby_match_denied_total")
	metricMatchExpiredTotal  = expvar.NewInt("lobby_match_expired_total")
)
