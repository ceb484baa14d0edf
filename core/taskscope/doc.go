// Package taskscope coordinates the independent persistence tasks of one poll
// cycle under a shut-down-on-first-failure policy.
//
// A Scope runs forked tasks concurrently. The first task to fail cancels the
// scope context: tasks already finished keep their effects (each persistence
// call commits in its own transaction), tasks in flight observe the cancelled
// context cooperatively, and tasks still queued behind the concurrency limit
// never start. Join blocks until the batch settles and FirstErr then exposes
// exactly one winning failure.
//
// The scope bounds the blast radius of a malformed upstream record to "this
// cycle's batch, from the first failure onward" without tying the primitive
// to any particular storage layer.
package taskscope
