// Package netaddr implements the per-interface network-address record:
// an IP address together with its prefix length, scope, flags, and
// assignment protocol, as reported by RTM_NEWADDR/RTM_DELADDR.
package netaddr

import (
	"fmt"

	"github.com/kuuji/ifwatch/flagset"
	"github.com/kuuji/ifwatch/ipaddr"
)

// Scope is the rtnetlink address scope.
type Scope uint8

const (
	ScopeGlobal Scope = iota
	ScopeSite
	ScopeLink
	ScopeHost
	ScopeNowhere
)

func (s Scope) String() string {
	switch s {
	case ScopeGlobal:
		return "global"
	case ScopeSite:
		return "site"
	case ScopeLink:
		return "link"
	case ScopeHost:
		return "host"
	case ScopeNowhere:
		return "nowhere"
	default:
		return "unknown"
	}
}

// Kernel RT_SCOPE_* values, per include/uapi/linux/rtnetlink.h.
const (
	rtScopeUniverse = 0
	rtScopeSite     = 200
	rtScopeLink     = 253
	rtScopeHost     = 254
	rtScopeNowhere  = 255
)

// FromRtnlScope maps a raw kernel rtm_scope byte onto Scope. Unknown
// values fold to ScopeNowhere, the most restrictive scope.
func FromRtnlScope(v uint8) Scope {
	switch v {
	case rtScopeUniverse:
		return ScopeGlobal
	case rtScopeSite:
		return ScopeSite
	case rtScopeLink:
		return ScopeLink
	case rtScopeHost:
		return ScopeHost
	default:
		return ScopeNowhere
	}
}

// AddressFlag is a bit in an address's IFA_FLAGS value.
type AddressFlag uint8

const (
	Temporary AddressFlag = iota
	NoDuplicateAddressDetection
	Optimistic
	HomeAddress
	DuplicateAddressDetectionFailed
	Deprecated
	Tentative
	Permanent
	ManagedTemporaryAddress
	NoPrefixRoute
	MulticastAutoJoin
	StablePrivacy
	addressFlagCount
)

func addressFlagName(f AddressFlag) string {
	switch f {
	case Temporary:
		return "Temporary"
	case NoDuplicateAddressDetection:
		return "NoDuplicateAddressDetection"
	case Optimistic:
		return "Optimistic"
	case HomeAddress:
		return "HomeAddress"
	case DuplicateAddressDetectionFailed:
		return "DuplicateAddressDetectionFailed"
	case Deprecated:
		return "Deprecated"
	case Tentative:
		return "Tentative"
	case Permanent:
		return "Permanent"
	case ManagedTemporaryAddress:
		return "ManagedTemporaryAddress"
	case NoPrefixRoute:
		return "NoPrefixRoute"
	case MulticastAutoJoin:
		return "MulticastAutoJoin"
	case StablePrivacy:
		return "StablePrivacy"
	default:
		return "Unknown"
	}
}

// AddressFlagSet is a set of AddressFlag bits.
type AddressFlagSet = flagset.Set[AddressFlag]

// AddressFlagSetString renders an AddressFlagSet using this package's
// flag names and cardinality.
func AddressFlagSetString(s AddressFlagSet) string {
	return s.String(addressFlagCount, addressFlagName)
}

// AssignmentProtocol identifies what assigned an address, from IFA_PROTO.
type AssignmentProtocol uint8

const (
	ProtocolUnspecified AssignmentProtocol = iota
	ProtocolKernelLoopback
	ProtocolKernelRouterAdvertisement
	ProtocolKernelLinkLocal
)

func (p AssignmentProtocol) String() string {
	switch p {
	case ProtocolKernelLoopback:
		return "kernel-loopback"
	case ProtocolKernelRouterAdvertisement:
		return "kernel-router-advertisement"
	case ProtocolKernelLinkLocal:
		return "kernel-link-local"
	default:
		return "unspecified"
	}
}

// Kernel IFAPROT_* values, per include/uapi/linux/if_addr.h.
const (
	ifaProtoUnspec   = 0
	ifaProtoKernelLo = 1
	ifaProtoKernelRA = 2
	ifaProtoKernelLL = 3
)

// FromRtnlProto maps a raw kernel ifa_proto byte onto AssignmentProtocol.
func FromRtnlProto(v uint8) AssignmentProtocol {
	switch v {
	case ifaProtoKernelLo:
		return ProtocolKernelLoopback
	case ifaProtoKernelRA:
		return ProtocolKernelRouterAdvertisement
	case ifaProtoKernelLL:
		return ProtocolKernelLinkLocal
	default:
		return ProtocolUnspecified
	}
}

// Record is a single network-address attachment on an interface, as
// reported by RTM_NEWADDR. The zero value is not meaningful; build one
// with New.
type Record struct {
	IP        ipaddr.Addr
	Broadcast ipaddr.Addr // zero value (unspecified) if none reported
	PrefixLen uint8
	Scope     Scope
	Flags     AddressFlagSet
	Protocol  AssignmentProtocol
}

// New builds a Record. ip must not be the unspecified address.
func New(ip, broadcast ipaddr.Addr, prefixLen uint8, scope Scope, flags AddressFlagSet, proto AssignmentProtocol) Record {
	return Record{
		IP:        ip,
		Broadcast: broadcast,
		PrefixLen: prefixLen,
		Scope:     scope,
		Flags:     flags,
		Protocol:  proto,
	}
}

// HasBroadcast reports whether r carries a broadcast address.
func (r Record) HasBroadcast() bool {
	return r.Broadcast.IsValid()
}

// Equal reports whether r and other describe the same attachment: same
// IP, broadcast, prefix length, scope, flags, and protocol. A flag-only
// change therefore compares unequal, which is what lets the owning
// tracker replace the whole record atomically on a flag update.
func (r Record) Equal(other Record) bool {
	return r.IP.Equal(other.IP) &&
		r.Broadcast.Equal(other.Broadcast) &&
		r.PrefixLen == other.PrefixLen &&
		r.Scope == other.Scope &&
		r.Flags.Equal(other.Flags) &&
		r.Protocol == other.Protocol
}

// Compare orders records lexicographically over (IP, PrefixLen, Scope,
// Protocol); it ignores flags so a flag-only difference sorts as a
// tie-break on the remaining fields, never as distinct positions for
// what is conceptually "the same slot, different flags".
func (r Record) Compare(other Record) int {
	if c := r.IP.Compare(other.IP); c != 0 {
		return c
	}
	if r.PrefixLen != other.PrefixLen {
		if r.PrefixLen < other.PrefixLen {
			return -1
		}
		return 1
	}
	if r.Scope != other.Scope {
		if r.Scope < other.Scope {
			return -1
		}
		return 1
	}
	if r.Protocol != other.Protocol {
		if r.Protocol < other.Protocol {
			return -1
		}
		return 1
	}
	return 0
}

// String renders a human-readable summary, e.g. "10.0.0.5/24 global".
func (r Record) String() string {
	return fmt.Sprintf("%s/%d %s", r.IP, r.PrefixLen, r.Scope)
}
