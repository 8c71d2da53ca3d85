package httptransport

import "expvar"

var (
	metricLobbyQueryTotal   = expvar.NewInt("http_lobby_query_total")
	metricEventsQueryTotal  = expvar.NewInt("http_lobby_events_query_total")
	metricEventsQueryErrors = expvar.NewInt("http_lobby_events_query_errors_total")
	metricAdminRemoveTotal  = expvar.NewInt("http_admin_remove_total")
	metricAdminRemoveErrors = expvar.NewInt("http_admin_remove_errors_total")
)
