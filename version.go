package syncbox

// Version information for the syncbox primitives library.
const (
	// Version is the current version of the library.
	Version = "0.1.0"

	// VersionMajor is the major version number.
	VersionMajor = 0

	// VersionMinor is the minor version number.
	VersionMinor = 1

	// VersionPatch is the patch version number.
	VersionPatch = 0
)

// Info provides build-time information about the library.
type Info struct {
	// Version is the library version string.
	Version string

	// LockAlgorithm names the lock acquisition strategy.
	LockAlgorithm string

	// DefaultBuckets is the bucket count NewAtomicHashMap uses.
	DefaultBuckets int
}

// GetInfo returns information about the library.
//
// Example:
//
//	info := syncbox.GetInfo()
//	fmt.Printf("syncbox %s (%s)\n", info.Version, info.LockAlgorithm)
func GetInfo() Info {
	return Info{
		Version:        Version,
		LockAlgorithm:  "spin-yield-park, exclusive preferred",
		DefaultBuckets: defaultBuckets,
	}
}
