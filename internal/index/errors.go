package index

import "errors"

var (
	// ErrStructuralInvariant is raised (as a panic) when rebalancing finds a
	// parent/child relationship that does not hold. The tree cannot be trusted
	// afterwards, so it is never recovered internally.
	ErrStructuralInvariant = errors.New("index structural invariant violated")

	// ErrCorruptSnapshot is returned when a serialized tree cannot be rebuilt.
	ErrCorruptSnapshot = errors.New("corrupt index snapshot")
)
