// Package tracker ingests live state from the simulation backend and turns it
// into persisted entities plus minimal update frames.
//
// The Collector owns one dirty field group per tracked entity. Each poll
// cycle feeds the fresh upstream snapshot through those groups, persists the
// entities that actually changed inside a fail-shutdown task scope (one
// transaction per entity), and publishes add/update/remove frames on the
// event bus for every persistence task that committed. A cycle whose batch
// hits a failure is logged and aborted; the failed entity's tracked state is
// rolled back to the last persisted model so the next cycle re-detects the
// change.
//
// The upstream game API client is an external collaborator; this package
// only defines the Poller contract plus a thin JSON adapter so the collect
// command can run against a real endpoint.
package tracker
