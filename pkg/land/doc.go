// Package land implements the LandKeeper: a single-consumer actor owning
// one land instance's state tree, tick loop, join/leave lifecycle, and
// action/event dispatch. All mutation to a land's state flows through the
// keeper's mailbox, which serializes inbound envelopes, tick fires, and
// scheduled timers exactly as described by the land's deterministic
// scheduling model.
package land
