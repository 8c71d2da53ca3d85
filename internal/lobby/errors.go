package lobby

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrAlreadyInLobby        = errors.New("already_in_lobby")
	ErrLobbyNotFound         = errors.New("lobby_not_found")
	ErrAlreadyMember         = errors.New("already_member")
	ErrNotMember             = errors.New("not_member")
	ErrLobbyFull             = errors.New("lobby_full")
	ErrCannotKickSelf        = errors.New("cannot_kick_self")
	ErrRequestAlreadyPending = errors.New("request_already_pending")
	ErrNoPendingRequest      = errors.New("no_pending_request")
	ErrTokenNotUnique        = errors.New("token_not_unique")
	ErrGateway               = errors.New("gateway_failure")

	ErrCreateInProgress  = errors.New("create_in_progress")
	ErrNotLobbyOwner     = errors.New("not_lobby_owner")
	ErrInvalidMember     = errors.New("invalid_member")
	ErrCoordinatorClosed = errors.New("coordinator_closed")
)

// AlreadyInLobbyError carries the lobby the user already belongs to.
type AlreadyInLobbyError struct {
	LobbyID string
}

func (e *AlreadyInLobbyError) Error() string {
	return ErrAlreadyInLobby.Error() + ": " + e.LobbyID
}

func (e *AlreadyInLobbyError) Unwrap() error { return ErrAlreadyInLobby }

// LobbyFullError lists the current members for display.
type LobbyFullError struct {
	LobbyID  string
	Capacity int
	Members  []Member
}

func (e *LobbyFullError) Error() string {
	names := make([]string, 0, len(e.Members))
	for _, m := range e.Members {
		names = append(names, m.label())
	}
	return fmt.Sprintf("%s: %d/%d (%s)", ErrLobbyFull.Error(), len(e.Members), e.Capacity, strings.Join(names, ", "))
}

func (e *LobbyFullError) Unwrap() error { return ErrLobbyFull }

// GatewayError wraps a failed chat platform call. It matches both ErrGateway
// and the underlying error.
type GatewayError struct {
	Op  string
	Err error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrGateway.Error(), e.Op, e.Err)
}

func (e *GatewayError) Unwrap() []error { return []error{ErrGateway, e.Err} }
