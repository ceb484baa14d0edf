// Package livecache materializes the tracked entities into an in-memory view
// kept current by applying update frames.
//
// The cache is seeded from storage at startup and then mutated exclusively
// by frame application: add inserts (fetching the full record on demand),
// update mutates only the attributes carried by the frame (fetching the
// record once on a cache miss), remove deletes. Duplicate adds, removes of
// unknown keys, and updates whose entity vanished even after the lazy fetch
// are all benign no-ops, which makes replaying a frame stream idempotent.
//
// A transport resume reported by the stream subscriber triggers a full
// resync: every collection is re-pulled from storage and swapped in
// wholesale. The resync runs on a background goroutine behind a
// single-flight gate so overlapping triggers collapse into one refresh and
// never block the caller that detected the resume.
package livecache
