package land

import "fmt"

// JoinError is the typed error a CanJoin handler returns to reject a join.
// Code is a stable machine-readable identifier (spec §7 taxonomy
// "join": roomFull, unauthorized, landNotFound, custom(code,msg)).
type JoinError struct {
	Code    string
	Message string
}

func (e *JoinError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewJoinError builds a custom(code,msg) join rejection.
func NewJoinError(code, message string) *JoinError {
	return &JoinError{Code: code, Message: message}
}

var (
	// ErrRoomFull is returned by CanJoin when the land has no capacity left.
	ErrRoomFull = &JoinError{Code: "roomFull", Message: "land has no free capacity"}
	// ErrUnauthorized is returned by CanJoin when the session is not permitted to join.
	ErrUnauthorized = &JoinError{Code: "unauthorized", Message: "session is not authorized to join this land"}
	// ErrDuplicateLogin is returned when a playerId is already attached to this land.
	ErrDuplicateLogin = &JoinError{Code: "duplicateLogin", Message: "player id already joined to this land"}
)

// DispatchError is the typed error family for submitAction/submitClientEvent
// failures (spec §7 taxonomy "dispatch": unknownAction, decodeFailed, handlerError).
type DispatchError struct {
	Code    string
	Message string
	Cause   error
}

func (e *DispatchError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *DispatchError) Unwrap() error { return e.Cause }

func errUnknownAction(typeIdent string) *DispatchError {
	return &DispatchError{Code: "unknownAction", Message: fmt.Sprintf("no handler registered for %q", typeIdent)}
}

func errDecodeFailed(typeIdent string, cause error) *DispatchError {
	return &DispatchError{Code: "decodeFailed", Message: fmt.Sprintf("failed to decode payload for %q", typeIdent), Cause: cause}
}

func errHandlerError(cause error) *DispatchError {
	return &DispatchError{Code: "handlerError", Message: "action handler returned an error", Cause: cause}
}

// ErrActionTimeout is returned when an action's deadline expires before the
// keeper produces a response (spec §5 "Cancellation & timeouts").
var ErrActionTimeout = fmt.Errorf("land: action exceeded its deadline")

// ErrKeeperRetired is returned when an operation targets a keeper that has
// already retired (spec §4.4 "Retirement").
var ErrKeeperRetired = fmt.Errorf("land: keeper has retired")

// ErrSessionNotJoined is returned when an operation names a session id that
// is not currently attached to this keeper.
var ErrSessionNotJoined = fmt.Errorf("land: session is not joined to this land")
