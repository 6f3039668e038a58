package syncbox

import "errors"

// Sentinel errors for operations that can fail for more than one recoverable
// reason. Callers compare with errors.Is. Fatal misuse (lock misuse,
// unchecked downcast mismatch, refcount underflow, use of a released handle)
// panics instead of returning an error; see the package documentation for the
// full taxonomy.
var (
	// ErrTypeMismatch reports that the requested concrete type does not
	// match the type recorded in the payload's tag. The handle the
	// operation was called with is unaffected.
	ErrTypeMismatch = errors.New("syncbox: payload type does not match requested type")

	// ErrNotUnique reports that an ownership-taking operation found other
	// live strong handles. The handle is returned to the caller unchanged.
	ErrNotUnique = errors.New("syncbox: other strong handles exist")

	// ErrNotGuarded reports that an operation requiring the cell's lock was
	// invoked on a handle built without one (see NewImmutable).
	ErrNotGuarded = errors.New("syncbox: cell has no lock")
)
