// Package main implements the landkeeper gameserver process.
//
// The gameserver hosts land instances: it registers land types with a
// realm.Registry, serves the game WebSocket via a transport.Adapter,
// records every join/action/event through a replay.Manager, and
// exposes the admin surface for inspecting and retiring live
// instances.
//
// # Startup sequence
//
//  1. Load configuration from environment variables.
//  2. Configure logging.
//  3. Register land types (arena) with the realm registry.
//  4. Register this process with the provisioning registry and start
//     its heartbeat loop.
//  5. Start listening for HTTP/WebSocket connections.
//  6. Handle SIGINT/SIGTERM gracefully with a 30s shutdown timeout,
//     flushing replay recordings before exit.
package main
