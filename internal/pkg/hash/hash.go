// Package hash provides hashing abstractions for secrets such as
// one-time codes.
package hash

// Hash defines the contract for hashing and verifying secrets.
type Hash interface {
	// Hash returns the hashed representation of the given string.
	Hash(str string) ([]byte, error)

	// Verify reports whether str matches the previously hashed value.
	// Implementations must compare in constant time.
	Verify(hashed, str string) bool
}
