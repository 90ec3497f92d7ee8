// Package validation provides input validation for the envelopes landkeeper's
// TransportAdapter decodes off a game WebSocket.
//
// This package ensures every join/action/event payload is sanitized and
// size-bounded before it reaches a land keeper's mailbox, preventing
// malformed identifiers and oversized payloads from becoming a land
// keeper's problem.
//
// # Creating a Validator
//
// Create an EnvelopeValidator with a maximum payload size limit:
//
//	validator := validation.NewEnvelopeValidator(64 * 1024) // 64KiB limit
//
// # Validating Envelopes
//
// Validate each envelope kind before dispatch:
//
//	err := validator.ValidateJoin(landType, instanceID, clientID, deviceID, metadata)
//	err := validator.ValidateAction(typeIdentifier, payload)
//	err := validator.ValidateEvent(typeIdentifier, payload)
//
// # Validation Rules
//
//   - landType/instanceId/type identifiers: alphanumeric plus -_. , <=128 chars
//   - clientId: non-empty, UTF-8, <=128 chars
//   - metadata: <=32 entries, bounded key/value length
//   - action/event payload body: bounded by maxPayloadSize
//   - matchmaking queueKey: "<landType>[:<qualifier>]" via ValidateQueueKey
//
// # Security Features
//
//   - Payload size enforcement prevents DoS via oversized frames
//   - Identifier pattern enforcement prevents path/key injection into the
//     realm registry, the replay filestore, and Redis keys
package validation
