// Package ipaddr implements the IP address value type used throughout
// ifwatch: a tagged union of v4, v6, and unspecified, with the
// predicates and ordering rtnetlink consumers need.
package ipaddr

import (
	"bytes"
	"net"
)

// Family identifies which variant an Addr holds.
type Family uint8

const (
	// Unspecified is the zero value: no address.
	Unspecified Family = iota
	V4
	V6
)

func (f Family) String() string {
	switch f {
	case V4:
		return "v4"
	case V6:
		return "v6"
	default:
		return "unspecified"
	}
}

const (
	v4Len = 4
	v6Len = 16
)

// Addr is an IP address. The zero value is the unspecified address.
//
// Storage is a single fixed 16-byte array tagged by family, so the
// family and the byte length can never disagree (see DESIGN.md, which
// grounds this choice in spec.md's "Tagged IP address" design note).
type Addr struct {
	family Family
	bytes  [v6Len]byte
}

// FromV4 builds an Addr from 4 address bytes.
func FromV4(b [4]byte) Addr {
	var a Addr
	a.family = V4
	copy(a.bytes[:4], b[:])
	return a
}

// FromV6 builds an Addr from 16 address bytes.
func FromV6(b [16]byte) Addr {
	return Addr{family: V6, bytes: b}
}

// FromBytes builds an Addr from a 4- or 16-byte slice. It returns the
// unspecified address for any other length.
func FromBytes(b []byte) Addr {
	switch len(b) {
	case v4Len:
		var a Addr
		a.family = V4
		copy(a.bytes[:4], b)
		return a
	case v6Len:
		var a Addr
		a.family = V6
		copy(a.bytes[:], b)
		return a
	default:
		return Addr{}
	}
}

// FromString parses a textual IPv4 or IPv6 address. Garbage input
// yields the unspecified address, matching spec.md's round-trip
// testable property: "parsing garbage yields the unspecified address".
func FromString(s string) Addr {
	ip := net.ParseIP(s)
	if ip == nil {
		return Addr{}
	}
	if v4 := ip.To4(); v4 != nil && !isV6Literal(s) {
		var a Addr
		a.family = V4
		copy(a.bytes[:4], v4)
		return a
	}
	v6 := ip.To16()
	if v6 == nil {
		return Addr{}
	}
	return Addr{family: V6, bytes: [v6Len]byte(v6)}
}

// isV6Literal reports whether s was written with colons, so that a
// v4-mapped-v6 literal like "::ffff:10.0.0.1" round-trips as v6 rather
// than being silently collapsed to bare v4 by net.IP.To4.
func isV6Literal(s string) bool {
	return bytes.ContainsRune([]byte(s), ':')
}

// IsValid reports whether a is not the unspecified address.
func (a Addr) IsValid() bool { return a.family != Unspecified }

// Family reports which variant a holds.
func (a Addr) Family() Family { return a.family }

// IsV4 reports whether a holds a v4 address, including a v4-mapped-v6
// address (equality between the two is defined in Equal/Compare).
func (a Addr) IsV4() bool {
	return a.family == V4 || (a.family == V6 && a.IsV4MappedV6())
}

// IsV6 reports whether a's underlying storage is the 16-byte v6 form.
func (a Addr) IsV6() bool { return a.family == V6 }

// As4 returns the 4-byte representation and true if a is (or maps to) a
// v4 address.
func (a Addr) As4() ([4]byte, bool) {
	var out [4]byte
	switch {
	case a.family == V4:
		copy(out[:], a.bytes[:4])
		return out, true
	case a.family == V6 && a.IsV4MappedV6():
		copy(out[:], a.bytes[12:16])
		return out, true
	default:
		return out, false
	}
}

// As16 returns the 16-byte representation of a, zero-extending a v4
// address into v4-in-v6 mapped form.
func (a Addr) As16() [16]byte {
	if a.family == V4 {
		var out [16]byte
		out[10] = 0xff
		out[11] = 0xff
		copy(out[12:], a.bytes[:4])
		return out
	}
	return a.bytes
}

// IsLoopback reports membership in 127.0.0.0/8 or ::1.
func (a Addr) IsLoopback() bool {
	if v4, ok := a.As4(); ok {
		return v4[0] == 127
	}
	if a.family == V6 {
		return a.bytes == [16]byte{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1}
	}
	return false
}

// IsMulticast reports membership in 224.0.0.0/4 or ff00::/8.
func (a Addr) IsMulticast() bool {
	if v4, ok := a.As4(); ok {
		return v4[0]&0xf0 == 0xe0
	}
	if a.family == V6 {
		return a.bytes[0] == 0xff
	}
	return false
}

// IsLinkLocal reports membership in 169.254.0.0/16 or fe80::/10.
func (a Addr) IsLinkLocal() bool {
	if v4, ok := a.As4(); ok {
		return v4[0] == 169 && v4[1] == 254
	}
	if a.family == V6 {
		return a.bytes[0] == 0xfe && a.bytes[1]&0xc0 == 0x80
	}
	return false
}

// IsUniqueLocal reports membership in fc00::/7. Always false for v4.
func (a Addr) IsUniqueLocal() bool {
	return a.family == V6 && a.bytes[0]&0xfe == 0xfc
}

// IsBroadcast reports equality with 255.255.255.255. Always false for v6.
func (a Addr) IsBroadcast() bool {
	v4, ok := a.As4()
	return ok && v4 == [4]byte{255, 255, 255, 255}
}

// IsV4MappedV6 reports membership in ::ffff:0:0/96.
func (a Addr) IsV4MappedV6() bool {
	if a.family != V6 {
		return false
	}
	for i := 0; i < 10; i++ {
		if a.bytes[i] != 0 {
			return false
		}
	}
	return a.bytes[10] == 0xff && a.bytes[11] == 0xff
}

// IsDocumentation reports membership in the three IPv4 documentation
// ranges: 192.0.2/24 (TEST-NET-1), 198.51.100/24 (TEST-NET-2), and
// 203.0.113/24 (TEST-NET-3).
func (a Addr) IsDocumentation() bool {
	v4, ok := a.As4()
	if !ok {
		return false
	}
	switch {
	case v4[0] == 192 && v4[1] == 0 && v4[2] == 2:
		return true
	case v4[0] == 198 && v4[1] == 51 && v4[2] == 100:
		return true
	case v4[0] == 203 && v4[1] == 0 && v4[2] == 113:
		return true
	default:
		return false
	}
}

// Equal reports equality under spec.md's rule that a v4-mapped-v6
// address compares equal to the bare v4 address it maps.
func (a Addr) Equal(b Addr) bool {
	if !a.IsValid() && !b.IsValid() {
		return true
	}
	av4, aok := a.As4()
	bv4, bok := b.As4()
	if aok && bok {
		return av4 == bv4
	}
	if aok != bok {
		return false
	}
	return a.bytes == b.bytes
}

// Compare orders by family first (unspecified < v4 < v6), then
// byte-lexicographically within family. v4 and its v4-mapped-v6 form
// compare as bare v4 (family V4) for ordering purposes.
func (a Addr) Compare(b Addr) int {
	af, bf := orderFamily(a), orderFamily(b)
	if af != bf {
		if af < bf {
			return -1
		}
		return 1
	}
	switch af {
	case 1: // v4
		av, _ := a.As4()
		bv, _ := b.As4()
		return bytes.Compare(av[:], bv[:])
	case 2: // v6
		return bytes.Compare(a.bytes[:], b.bytes[:])
	default:
		return 0
	}
}

func orderFamily(a Addr) int {
	if v, ok := a.As4(); ok {
		_ = v
		return 1
	}
	if a.family == V6 {
		return 2
	}
	return 0
}

// String renders a in its canonical textual form, or the empty string
// for the unspecified address.
func (a Addr) String() string {
	if v4, ok := a.As4(); ok {
		return net.IP(v4[:]).String()
	}
	if a.family == V6 {
		return net.IP(a.bytes[:]).String()
	}
	return ""
}
