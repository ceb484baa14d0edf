// Package frames defines the typed delta events that flow from the collector
// to every downstream consumer.
//
// A frame is a discriminated envelope per entity kind carrying an update type
// (add, update, remove) and only the attributes that actually changed. An add
// frame carries identity alone: consumers fetch the full record themselves, so
// a late joiner and a live subscriber converge on the same state. An update
// frame uses pointer fields for optionality: a nil attribute means "not
// part of this delta", never "set to zero". A remove frame is identity only.
//
// Frames for the same entity are produced, delivered, and applied in publish
// order; no ordering is promised across entities.
package frames
