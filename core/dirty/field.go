package dirty

import "slices"

// Group aggregates the dirty state of the fields backing one tracked entity.
type Group struct {
	dirty bool
}

// NewGroup creates an empty field group.
func NewGroup() *Group {
	return &Group{}
}

// markDirty records that a member field changed. Setting an already-set flag
// is a no-op; nothing is ever cleared here.
func (g *Group) markDirty() {
	g.dirty = true
}

// Dirty reports whether any member field is currently dirty.
func (g *Group) Dirty() bool {
	return g.dirty
}

// ConsumeDirty reads and clears the group flag. It does not touch the member
// fields; their flags are consumed individually when building a frame.
func (g *Group) ConsumeDirty() bool {
	d := g.dirty
	g.dirty = false
	return d
}

// Field tracks a single scalar attribute of a tracked entity.
type Field[T comparable] struct {
	group    *Group
	value    T
	isNull   bool
	nullable bool
	dirty    bool
}

// NewField creates a field that rejects nil updates.
func NewField[T comparable](g *Group) *Field[T] {
	return &Field[T]{group: g, isNull: true}
}

// NewNullableField creates a field for which null is a legal value.
func NewNullableField[T comparable](g *Group) *Field[T] {
	return &Field[T]{group: g, isNull: true, nullable: true}
}

// Update stores the new value if it differs from the current one and marks
// the field (and its group) dirty. A nil value is a silent no-op unless the
// field is nullable, in which case it transitions the field to null.
func (f *Field[T]) Update(v *T) {
	if v == nil {
		if !f.nullable || f.isNull {
			return
		}
		var zero T
		f.value = zero
		f.isNull = true
		f.markDirty()
		return
	}
	if !f.isNull && f.value == *v {
		return
	}
	f.value = *v
	f.isNull = false
	f.markDirty()
}

// Set is a convenience for Update with a non-nil value.
func (f *Field[T]) Set(v T) {
	f.Update(&v)
}

// Value returns the current value and whether it is set (non-null).
func (f *Field[T]) Value() (T, bool) {
	return f.value, !f.isNull
}

// Ptr returns a copy of the current value as a pointer, or nil when the
// field is null. Frames carry changed attributes in exactly this shape.
func (f *Field[T]) Ptr() *T {
	if f.isNull {
		return nil
	}
	v := f.value
	return &v
}

// Dirty reports the flag without clearing it.
func (f *Field[T]) Dirty() bool {
	return f.dirty
}

// ConsumeDirty reads and clears the field's dirty flag.
func (f *Field[T]) ConsumeDirty() bool {
	d := f.dirty
	f.dirty = false
	return d
}

func (f *Field[T]) markDirty() {
	f.dirty = true
	if f.group != nil {
		f.group.markDirty()
	}
}

// SliceField tracks a slice-valued attribute, compared element-wise.
type SliceField[T comparable] struct {
	group *Group
	value []T
	dirty bool
}

// NewSliceField creates a slice field attached to the group. A nil slice and
// an empty slice compare equal; slice fields have no null state.
func NewSliceField[T comparable](g *Group) *SliceField[T] {
	return &SliceField[T]{group: g}
}

// Update stores a copy of the new slice if it differs element-wise from the
// current value and marks the field dirty.
func (f *SliceField[T]) Update(v []T) {
	if slices.Equal(f.value, v) {
		return
	}
	f.value = slices.Clone(v)
	f.dirty = true
	if f.group != nil {
		f.group.markDirty()
	}
}

// Value returns the current slice. Callers must not mutate it.
func (f *SliceField[T]) Value() []T {
	return f.value
}

// Dirty reports the flag without clearing it.
func (f *SliceField[T]) Dirty() bool {
	return f.dirty
}

// ConsumeDirty reads and clears the field's dirty flag.
func (f *SliceField[T]) ConsumeDirty() bool {
	d := f.dirty
	f.dirty = false
	return d
}
