// Package transport owns one WebSocket per session, parses envelopes,
// enforces join-before-anything-else, bridges inbound envelopes to the
// session's keeper after join, and streams outbound state updates and
// server events with bounded, coalescing backpressure (spec §4.3
// "TransportAdapter / Session").
package transport
