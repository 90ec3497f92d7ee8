package transport

// ActionRecorder observes every join/action/event/leave a session routes
// through a land, independent of delivery to the client. When configured
// on an Adapter, it lets a replay.Manager reconstruct a land instance's
// lifecycle stream for later replay (spec §4.4 "replay alias").
type ActionRecorder interface {
	RecordJoin(landType, instanceID string, seed int64, tick uint64, sessionID, clientID string)
	RecordAction(landType, instanceID string, seed int64, tick uint64, sessionID, typeIdentifier string, payload []byte)
	RecordEvent(landType, instanceID string, seed int64, tick uint64, sessionID, typeIdentifier string, payload []byte)
	RecordLeave(landType, instanceID string, seed int64, tick uint64, sessionID string)
}
