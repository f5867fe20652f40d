// Package session owns the two protocol state machines.
//
// Ownership boundary:
// - Initiator: push local records, request all, receive, terminate
// - Responder: buffer and batch-commit records, answer enumeration
// - Store port consumed by the Responder
//
// Both sides are single-threaded and blocking. Closing the stream is the
// only cancellation: the Responder treats it as a clean end, the Initiator
// as a transport failure.
package session
