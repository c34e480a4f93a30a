// Package ethernet implements the hardware address value type used for
// an interface's MAC and broadcast addresses.
package ethernet

import "fmt"

// Addr is a 6-byte IEEE 802 hardware address. The zero value is the
// all-zero address.
type Addr [6]byte

// FromBytes builds an Addr from a 6-byte slice. It returns the all-zero
// address for any other length.
func FromBytes(b []byte) Addr {
	var a Addr
	if len(b) == len(a) {
		copy(a[:], b)
	}
	return a
}

// IsZero reports whether a is the all-zero address.
func (a Addr) IsZero() bool {
	return a == Addr{}
}

// IsBroadcast reports whether a is the all-ones (ff:ff:ff:ff:ff:ff)
// broadcast address.
func (a Addr) IsBroadcast() bool {
	return a == Addr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}
}

// String renders a in canonical lowercase colon-separated hex form.
func (a Addr) String() string {
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x", a[0], a[1], a[2], a[3], a[4], a[5])
}
