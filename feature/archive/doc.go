// Package archive persists periodic JSON dumps of the snapshot cache to
// object storage.
//
// The exporter serializes the cached servers, journeys and dispatch posts
// into a single dump object, uploads it under a timestamped key and mirrors
// it to a stable "latest" key. Dumps are written on a fixed interval and
// additionally after every cache resync, so the archive always holds a dump
// taken right after the cache was re-grounded in storage. Timestamped dumps
// beyond the configured retention are bulk-deleted.
package archive
