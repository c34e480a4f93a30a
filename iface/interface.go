// Package iface implements the interface-identity value type: a
// kernel index paired with a name.
package iface

import "fmt"

// Identity is a (index, name) pair identifying a network interface.
// Kernel indices are stable for an interface's lifetime but may be
// reused after removal; names may change via rename.
type Identity struct {
	Index uint32
	Name  string
}

// New builds an Identity.
func New(index uint32, name string) Identity {
	return Identity{Index: index, Name: name}
}

// Equal reports whether id and other share both index and name.
func (id Identity) Equal(other Identity) bool {
	return id.Index == other.Index && id.Name == other.Name
}

// Compare orders identities lexicographically on (Index, Name).
func (id Identity) Compare(other Identity) int {
	if id.Index != other.Index {
		if id.Index < other.Index {
			return -1
		}
		return 1
	}
	switch {
	case id.Name < other.Name:
		return -1
	case id.Name > other.Name:
		return 1
	default:
		return 0
	}
}

// String renders id as "name(index)".
func (id Identity) String() string {
	return fmt.Sprintf("%s(%d)", id.Name, id.Index)
}
