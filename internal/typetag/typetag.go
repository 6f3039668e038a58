// Package typetag provides stable runtime type tokens for type-erased storage.
//
// A Tag identifies one concrete Go type. Tags are plain comparable values:
// two Tags are equal if and only if they were derived from the same concrete
// type. Erased containers store a Tag next to their payload and compare it on
// every downcast attempt, which turns a would-be memory-safety bug into an
// ordinary absent result.
//
// The tag is the sole authority for downcast decisions. The type name is
// carried only for diagnostics (panic messages, debug output) and must never
// be compared for correctness: distinct types in distinct packages may share
// a short name.
package typetag

import "reflect"

// Tag is an opaque comparable token identifying one concrete type.
//
// The zero Tag is valid and matches no type produced by Of or OfValue.
type Tag struct {
	rtype reflect.Type
}

// Of returns the tag for the concrete type T.
//
// T may be any type, including pointer, interface, and unnamed types.
// Calling Of twice with the same T always yields equal tags.
func Of[T any]() Tag {
	return Tag{rtype: reflect.TypeOf((*T)(nil)).Elem()}
}

// OfValue returns the tag for v's dynamic type.
//
// A nil interface value yields the zero Tag, which matches nothing.
func OfValue(v any) Tag {
	return Tag{rtype: reflect.TypeOf(v)}
}

// Matches reports whether t and other identify the same concrete type.
//
//go:nosplit
func (t Tag) Matches(other Tag) bool {
	return t == other
}

// IsZero reports whether t is the zero Tag.
//
//go:nosplit
func (t Tag) IsZero() bool {
	return t.rtype == nil
}

// Name returns a human-readable name for the tagged type.
//
// Diagnostics only. The name is not unique across packages and must not be
// used to decide downcasts.
func (t Tag) Name() string {
	if t.rtype == nil {
		return "<none>"
	}
	return t.rtype.String()
}
