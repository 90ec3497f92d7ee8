package realm

import "errors"

var (
	// ErrLandTypeAlreadyRegistered is returned by Register when landType has
	// already been registered (spec §4.4 "A land type may be registered at
	// most once").
	ErrLandTypeAlreadyRegistered = errors.New("realm: land type already registered")

	// ErrWSPathAlreadyRegistered is returned by Register when the WebSocket
	// path is already bound to a different land type.
	ErrWSPathAlreadyRegistered = errors.New("realm: websocket path already registered")

	// ErrLandTypeNotRegistered is returned when a path or land type has no
	// registered entry.
	ErrLandTypeNotRegistered = errors.New("realm: land type not registered")

	// ErrLandNotFound is returned when an instance id is given but no
	// matching instance exists and auto-create is disallowed (spec §4.4
	// "landNotFound").
	ErrLandNotFound = errors.New("realm: land not found")

	// ErrReplayDefinitionMismatch is returned by RegisterReplay when the
	// alias's keeper definition id does not match the primary's.
	ErrReplayDefinitionMismatch = errors.New("realm: replay alias definition id does not match primary")

	// ErrNoReplayAlias is returned when a replay is requested for a land
	// type with no registered replay alias.
	ErrNoReplayAlias = errors.New("realm: land type has no registered replay alias")
)
