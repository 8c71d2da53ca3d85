package httptransport

import (
	"errors"
	"net/http"

	"nightreign-lobby/internal/lobby"
)

// MapLobbyError maps coordinator errors to an HTTP status and a stable code.
func MapLobbyError(err error) (int, string) {
	switch {
	case err == nil:
		return http.StatusOK, ""
	case errors.Is(err, lobby.ErrLobbyNotFound):
		return http.StatusNotFound, "lobby_not_found"
	case errors.Is(err, lobby.ErrAlreadyInLobby):
		return http.StatusConflict, "already_in_lobby"
	case errors.Is(err, lobby.ErrAlreadyMember):
		return http.StatusConflict, "already_member"
	case errors.Is(err, lobby.ErrLobbyFull):
		return http.StatusConflict, "lobby_full"
	case errors.Is(err, lobby.ErrRequestAlreadyPending):
		return http.StatusConflict, "request_already_pending"
	case errors.Is(err, lobby.ErrCreateInProgress):
		return http.StatusConflict, "create_in_progress"
	case errors.Is(err, lobby.ErrNotMember):
		return http.StatusForbidden, "not_member"
	case errors.Is(err, lobby.ErrNotLobbyOwner):
		return http.StatusForbidden, "not_lobby_owner"
	case errors.Is(err, lobby.ErrCannotKickSelf):
		return http.StatusBadRequest, "cannot_kick_self"
	case errors.Is(err, lobby.ErrInvalidMember):
		return http.StatusBadRequest, "invalid_member"
	case errors.Is(err, lobby.ErrNoPendingRequest):
		return http.StatusNotFound, "no_pending_request"
	case errors.Is(err, lobby.ErrTokenNotUnique):
		return http.StatusServiceUnavailable, "token_not_unique"
	case errors.Is(err, lobby.ErrCoordinatorClosed):
		return http.StatusServiceUnavailable, "coordinator_closed"
	case errors.Is(err, lobby.ErrGateway):
		return http.StatusBadGateway, "gateway_failure"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func writeLobbyError(w http.ResponseWriter, err error) {
	status, code := MapLobbyError(err)
	WriteHTTPError(w, status, code)
}
