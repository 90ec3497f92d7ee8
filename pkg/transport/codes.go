package transport

// WebSocket close codes used by the transport; all but
// CloseProtocolViolation (the RFC 6455 protocol-error code) lie in the
// application range (spec §7
// "protocol"/"auth"/"transport" taxonomies; spec §4.2/§4.4 "4000" for land
// retirement).
const (
	// CloseProtocolViolation closes a session that sent anything but a join
	// envelope before joining (spec §4.3 "Pre-join behavior").
	CloseProtocolViolation = 1002

	// CloseLandRetired is used by the keeper itself when it retires with
	// sessions still attached (spec §4.2).
	CloseLandRetired = 4000

	// CloseUnauthorized closes a session whose match token failed
	// validation or whose join envelope names a land id that does not
	// match the token's (spec §7 "auth").
	CloseUnauthorized = 4001

	// CloseDuplicateLogin is the code for closing the older of two
	// sessions for the same userId when the cluster directory grants the
	// lease to a newer node (spec §8 boundary scenario 5). No code in this
	// module closes a session with it; kick messages are only logged.
	CloseDuplicateLogin = 4002

	// CloseSlowConsumer closes a session whose outbound queue overflowed
	// with a frame that could not be coalesced (spec §4.3 "Backpressure").
	CloseSlowConsumer = 4003

	// CloseInternal closes a session after an unrecoverable encode or
	// transport failure (spec §7 "transport").
	CloseInternal = 4004
)
