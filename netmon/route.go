package netmon

import (
	"github.com/josharian/native"
	"github.com/mdlayher/netlink"
	"golang.org/x/sys/unix"

	"github.com/kuuji/ifwatch/internal/rtattr"
)

const (
	// rtmsg: family(1)+dst_len(1)+src_len(1)+tos(1)+table(1)+protocol(1)
	// +scope(1)+type(1)+flags(4).
	rtmsgLen         = 12
	routeMaxAttrKind = 32
)

// handleRouteMessage applies a NEWROUTE/DELROUTE message per spec.md
// §4.6. Only IPv4 routes are tracked; the gateway field is IPv4-only
// by design (spec.md §9).
func (m *Monitor) handleRouteMessage(msg netlink.Message) {
	if len(msg.Data) < rtmsgLen {
		m.log.Warn("netmon: route message shorter than rtmsg", "len", len(msg.Data))
		return
	}

	family := msg.Data[0]
	if family != unix.AF_INET {
		m.stats.DiscardedFamilyFilter++
		return
	}
	routeFlags := native.Endian.Uint32(msg.Data[8:12])

	table, err := rtattr.Parse(msg.Data[rtmsgLen:], routeMaxAttrKind, m.log)
	if err != nil {
		m.log.Warn("netmon: failed to parse route attributes", "error", err)
		return
	}
	m.stats.AttributesSeen += uint64(table.Seen())
	m.stats.AttributesUnrecognized += uint64(table.Unrecognized())

	oif, hasOif := table.Uint32(unix.RTA_OIF)

	if msg.Header.Type == netlink.HeaderType(unix.RTM_DELROUTE) {
		if !hasOif {
			return
		}
		tr, ok := m.trackers[oif]
		if !ok {
			return
		}
		if routeFlags&unix.RTNH_F_LINKDOWN != 0 {
			tr.ClearGateway(GatewayClearReasonLinkDown)
		} else {
			tr.ClearGateway(GatewayClearReasonRouteDeleted)
		}
		return
	}

	gw, hasGw := table.IPv4(unix.RTA_GATEWAY)
	if !hasOif || !hasGw {
		return
	}
	tr, ok := m.trackers[oif]
	if !ok {
		return
	}
	tr.SetGateway(gw)
}
