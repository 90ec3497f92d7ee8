// Package realm maps WebSocket paths to land types, owns the instance
// directory for each type, and routes join requests to a keeper, creating
// one when allowed (spec §4.4 "Realm / LandRouter / LandTypeRegistry").
package realm
