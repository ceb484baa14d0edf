// Package stream carries update frames from the collector to its consumers
// over one WebSocket stream per entity kind.
//
// The Server subscribes to the in-process event bus and fans every frame out
// to the sessions attached to that kind. Each session owns a buffered
// outbound channel drained by a single writer goroutine, so frames for the
// same entity reach a given subscriber in publish order. A session that
// cannot keep up is closed rather than skipped: the consumer notices the
// drop, reconnects, and recovers anything it missed through a full resync.
//
// The Client dials one stream per kind and keeps it alive with exponential
// backoff. Every successfully established session fires the resume hook
// before the first frame is read; frames published while the client was
// detached are gone from the transport, so the hook is the consumer's signal
// to discard and rebuild its materialized state. The hook fires on the
// initial connect too: resync is unconditional on resubscription, not
// conditional on detected loss.
package stream
