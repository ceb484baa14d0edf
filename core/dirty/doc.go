// Package dirty provides per-field value-change tracking for polled entities.
//
// A Group backs the mutable attributes of exactly one tracked entity. Each
// attribute is held in a Field (or SliceField) created against that group.
// Feeding a freshly polled value into a field marks it dirty only when the
// value actually differs from the stored one, so a poll cycle can turn a raw
// upstream snapshot into a minimal change set.
//
// # Dirty consumption
//
// ConsumeDirty is destructive: it reads and clears the flag. The collector
// consumes the group flag once per cycle to decide whether an update frame is
// needed at all, then consumes the per-field flags to decide which attributes
// the frame carries.
//
// # Null policy
//
// Fields reject nil updates unless created with NewNullableField. Passing nil
// to a non-nullable field is a silent no-op, not an error: upstream payloads
// routinely omit optional attributes and that must not clear tracked state.
//
// A group and its fields belong to a single goroutine for the duration of a
// poll cycle; the package performs no locking of its own.
package dirty
