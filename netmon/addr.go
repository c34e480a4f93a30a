package netmon

import (
	"github.com/josharian/native"
	"github.com/mdlayher/netlink"
	"golang.org/x/sys/unix"

	"github.com/kuuji/ifwatch/internal/rtattr"
	"github.com/kuuji/ifwatch/ipaddr"
	"github.com/kuuji/ifwatch/netaddr"
)

const (
	ifaddrmsgLen    = 8 // family(1)+prefixlen(1)+flags(1)+scope(1)+index(4)
	addrMaxAttrKind = 32
)

// Kernel IFA_F_* bit values, per include/uapi/linux/if_addr.h. These
// do not line up positionally with this package's AddressFlag
// declaration order, so the mapping is explicit rather than a direct
// bit copy (contrast linkFlagsFromWire).
var kernelAddressFlagBits = [...]struct {
	kernel uint32
	flag   netaddr.AddressFlag
}{
	{0x01, netaddr.Temporary},
	{0x02, netaddr.NoDuplicateAddressDetection},
	{0x04, netaddr.Optimistic},
	{0x08, netaddr.DuplicateAddressDetectionFailed},
	{0x10, netaddr.HomeAddress},
	{0x20, netaddr.Deprecated},
	{0x40, netaddr.Tentative},
	{0x80, netaddr.Permanent},
	{0x100, netaddr.ManagedTemporaryAddress},
	{0x200, netaddr.NoPrefixRoute},
	{0x400, netaddr.MulticastAutoJoin},
	{0x800, netaddr.StablePrivacy},
}

func addressFlagsFromWire(word uint32) netaddr.AddressFlagSet {
	var s netaddr.AddressFlagSet
	for _, b := range kernelAddressFlagBits {
		if word&b.kernel != 0 {
			s.Set(b.flag)
		}
	}
	return s
}

// handleAddrMessage applies a NEWADDR/DELADDR message per spec.md
// §4.6.
func (m *Monitor) handleAddrMessage(msg netlink.Message) {
	if len(msg.Data) < ifaddrmsgLen {
		m.log.Warn("netmon: address message shorter than ifaddrmsg", "len", len(msg.Data))
		return
	}

	family := msg.Data[0]
	prefixLen := msg.Data[1]
	headerFlags := msg.Data[2]
	scopeByte := msg.Data[3]
	index := native.Endian.Uint32(msg.Data[4:8])

	tr, ok := m.trackers[index]
	if !ok {
		m.stats.DiscardedUnknownIface++
		return
	}

	isV4 := family == unix.AF_INET
	isV6 := family == unix.AF_INET6
	if (m.flags.Test(PreferredFamilyV4) && !isV4) || (m.flags.Test(PreferredFamilyV6) && !isV6) {
		m.stats.DiscardedFamilyFilter++
		return
	}

	table, err := rtattr.Parse(msg.Data[ifaddrmsgLen:], addrMaxAttrKind, m.log)
	if err != nil {
		m.log.Warn("netmon: failed to parse address attributes", "error", err)
		return
	}
	m.stats.AttributesSeen += uint64(table.Seen())
	m.stats.AttributesUnrecognized += uint64(table.Unrecognized())

	var ip ipaddr.Addr
	var haveIP bool
	if isV4 {
		ip, haveIP = table.IPv4(unix.IFA_LOCAL)
	} else {
		ip, haveIP = table.IPv6(unix.IFA_ADDRESS)
	}
	if !haveIP {
		return
	}

	var broadcast ipaddr.Addr
	if isV4 {
		broadcast, _ = table.IPv4(unix.IFA_BROADCAST)
	}

	var flags netaddr.AddressFlagSet
	if raw, ok := table.Uint32(unix.IFA_FLAGS); ok {
		flags = addressFlagsFromWire(raw)
	} else {
		flags = addressFlagsFromWire(uint32(headerFlags))
	}

	proto := netaddr.ProtocolUnspecified
	if p, ok := table.Uint8(unix.IFA_PROTO); ok {
		proto = netaddr.FromRtnlProto(p)
	}

	rec := netaddr.New(ip, broadcast, prefixLen, netaddr.FromRtnlScope(scopeByte), flags, proto)

	if msg.Header.Type == netlink.HeaderType(unix.RTM_DELADDR) {
		tr.RemoveAddress(rec)
	} else {
		tr.AddAddress(rec)
	}
}
