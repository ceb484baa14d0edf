// Package gateway exposes the materialized snapshot cache to downstream
// clients over REST and a live WebSocket channel.
//
// Each connected client holds a set of per-entity-kind registrations (kind
// plus optional server id). The Hub listens to applied cache frames and
// forwards each one only to the sessions whose registrations match its
// composite key. Add frames are rendered as the full cached snapshot so late
// joiners receive complete state; update and remove frames are rendered as
// the diff-only payload. Delivery is fire-and-forget per frame: a slow or
// broken client is dropped without affecting delivery to the others.
package gateway
