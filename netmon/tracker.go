package netmon

import (
	"time"

	"github.com/kuuji/ifwatch/ethernet"
	"github.com/kuuji/ifwatch/flagset"
	"github.com/kuuji/ifwatch/iface"
	"github.com/kuuji/ifwatch/ipaddr"
	"github.com/kuuji/ifwatch/netaddr"
)

// OperationalState mirrors the kernel's IF_OPER_* values reported via
// IFLA_OPERSTATE. The wire value is the ordinal.
type OperationalState uint8

const (
	OperUnknown OperationalState = iota
	OperNotPresent
	OperDown
	OperLowerLayerDown
	OperTesting
	OperDormant
	OperUp
)

func (s OperationalState) String() string {
	switch s {
	case OperNotPresent:
		return "not-present"
	case OperDown:
		return "down"
	case OperLowerLayerDown:
		return "lower-layer-down"
	case OperTesting:
		return "testing"
	case OperDormant:
		return "dormant"
	case OperUp:
		return "up"
	default:
		return "unknown"
	}
}

// LinkFlag is a bit in an interface's ifi_flags word.
type LinkFlag uint8

const (
	Up LinkFlag = iota
	Broadcast
	Debug
	Loopback
	PointToPoint
	NoTrailers
	Running
	NoArp
	Promiscuous
	AllMulticast
	Master
	Slave
	Multicast
	PortSet
	AutoMedia
	Dynamic
	linkFlagCount
)

func linkFlagName(f LinkFlag) string {
	switch f {
	case Up:
		return "Up"
	case Broadcast:
		return "Broadcast"
	case Debug:
		return "Debug"
	case Loopback:
		return "Loopback"
	case PointToPoint:
		return "PointToPoint"
	case NoTrailers:
		return "NoTrailers"
	case Running:
		return "Running"
	case NoArp:
		return "NoArp"
	case Promiscuous:
		return "Promiscuous"
	case AllMulticast:
		return "AllMulticast"
	case Master:
		return "Master"
	case Slave:
		return "Slave"
	case Multicast:
		return "Multicast"
	case PortSet:
		return "PortSet"
	case AutoMedia:
		return "AutoMedia"
	case Dynamic:
		return "Dynamic"
	default:
		return "Unknown"
	}
}

// LinkFlagSet is a set of LinkFlag bits.
type LinkFlagSet = flagset.Set[LinkFlag]

// LinkFlagSetString renders a LinkFlagSet using this package's flag
// names and cardinality.
func LinkFlagSetString(s LinkFlagSet) string {
	return s.String(linkFlagCount, linkFlagName)
}

// GatewayClearReason records why Tracker.Gateway most recently became
// absent, for diagnostic logging; it has no effect on notification
// content, which carries only the new (absent) value.
type GatewayClearReason uint8

const (
	GatewayClearReasonNone GatewayClearReason = iota
	GatewayClearReasonAllIPv4AddressesRemoved
	GatewayClearReasonLinkDown
	GatewayClearReasonRouteDeleted
)

func (r GatewayClearReason) String() string {
	switch r {
	case GatewayClearReasonAllIPv4AddressesRemoved:
		return "all-ipv4-addresses-removed"
	case GatewayClearReasonLinkDown:
		return "link-down"
	case GatewayClearReasonRouteDeleted:
		return "route-deleted"
	default:
		return "none"
	}
}

// DirtyFlag marks a Tracker field that changed since the last fan-out
// pass.
type DirtyFlag uint8

const (
	NameChanged DirtyFlag = iota
	LinkFlagsChanged
	OperationalStateChanged
	MacAddressChanged
	BroadcastAddressChanged
	GatewayAddressChanged
	NetworkAddressesChanged
	dirtyFlagCount
)

func dirtyFlagName(f DirtyFlag) string {
	switch f {
	case NameChanged:
		return "NameChanged"
	case LinkFlagsChanged:
		return "LinkFlagsChanged"
	case OperationalStateChanged:
		return "OperationalStateChanged"
	case MacAddressChanged:
		return "MacAddressChanged"
	case BroadcastAddressChanged:
		return "BroadcastAddressChanged"
	case GatewayAddressChanged:
		return "GatewayAddressChanged"
	case NetworkAddressesChanged:
		return "NetworkAddressesChanged"
	default:
		return "Unknown"
	}
}

// DirtyFlagSet is a set of DirtyFlag bits.
type DirtyFlagSet = flagset.Set[DirtyFlag]

// DirtyFlagSetString renders a DirtyFlagSet using this package's flag
// names and cardinality.
func DirtyFlagSetString(s DirtyFlagSet) string {
	return s.String(dirtyFlagCount, dirtyFlagName)
}

// notifyOrder is the fixed dirty-flag-to-callback order for a fan-out
// pass, per spec.md §4.7: not declaration order, the order in which
// the reference implementation's notifyChanges() fires callbacks.
var notifyOrder = [...]DirtyFlag{
	NameChanged,
	OperationalStateChanged,
	NetworkAddressesChanged,
	GatewayAddressChanged,
	MacAddressChanged,
	BroadcastAddressChanged,
	LinkFlagsChanged,
}

// Nerdstats counts, per field, how many times that field has actually
// changed (dirty flag transitioned unset to set) over the tracker's
// lifetime. Exposed when RuntimeFlag.StatsForNerds is set.
type Nerdstats struct {
	NameChanges             uint64
	LinkFlagsChanges        uint64
	OperationalStateChanges uint64
	MacAddressChanges       uint64
	BroadcastAddressChanges uint64
	GatewayAddressChanges   uint64
	NetworkAddressesChanges uint64
}

func (n *Nerdstats) bump(f DirtyFlag) {
	switch f {
	case NameChanged:
		n.NameChanges++
	case LinkFlagsChanged:
		n.LinkFlagsChanges++
	case OperationalStateChanged:
		n.OperationalStateChanges++
	case MacAddressChanged:
		n.MacAddressChanges++
	case BroadcastAddressChanged:
		n.BroadcastAddressChanges++
	case GatewayAddressChanged:
		n.GatewayAddressChanges++
	case NetworkAddressesChanged:
		n.NetworkAddressesChanges++
	}
}

// Tracker holds the current known state of one network interface.
// Build one with newTracker; the zero value is not meaningful.
type Tracker struct {
	Identity   iface.Identity
	MAC        ethernet.Addr
	Broadcast  ethernet.Addr
	OperState  OperationalState
	LinkFlags  LinkFlagSet
	Addresses  []netaddr.Record // kept sorted by netaddr.Record.Compare
	Gateway    ipaddr.Addr      // zero value (unspecified) means "no gateway"
	gwReason   GatewayClearReason
	LastChange time.Time
	Dirty      DirtyFlagSet
	Stats      Nerdstats
}

func newTracker(id iface.Identity) *Tracker {
	return &Tracker{Identity: id}
}

// touch marks f dirty. Only when f was not already dirty does it also
// bump f's Nerdstats counter and refresh LastChange, per spec.md §3's
// invariant that the timestamp advances only when a flag newly becomes
// dirty within an update.
func (t *Tracker) touch(f DirtyFlag) {
	if !t.Dirty.Test(f) {
		t.Dirty.Set(f)
		t.Stats.bump(f)
		t.LastChange = time.Now()
	}
}

// clearDirty clears every dirty flag, called once per tracker after a
// fan-out pass completes.
func (t *Tracker) clearDirty() {
	t.Dirty = DirtyFlagSet{}
}

// SetName updates the tracker's name if it differs.
func (t *Tracker) SetName(name string) {
	if t.Identity.Name == name {
		return
	}
	t.Identity.Name = name
	t.touch(NameChanged)
}

// SetOperState updates operational state if it differs.
func (t *Tracker) SetOperState(state OperationalState) {
	if t.OperState == state {
		return
	}
	t.OperState = state
	t.touch(OperationalStateChanged)
}

// SetLinkFlags updates the link-flag set if it differs.
func (t *Tracker) SetLinkFlags(flags LinkFlagSet) {
	if t.LinkFlags.Equal(flags) {
		return
	}
	t.LinkFlags = flags
	t.touch(LinkFlagsChanged)
}

// SetMAC updates the MAC address. Per spec.md §3, writing an all-zero
// MAC is always treated as a change, since kernels report zero during
// transitions and consumers must observe it.
func (t *Tracker) SetMAC(mac ethernet.Addr) {
	if t.MAC == mac && !mac.IsZero() {
		return
	}
	t.MAC = mac
	t.touch(MacAddressChanged)
}

// SetBroadcast updates the broadcast MAC with the same all-zero-is-
// always-a-change rule as SetMAC.
func (t *Tracker) SetBroadcast(mac ethernet.Addr) {
	if t.Broadcast == mac && !mac.IsZero() {
		return
	}
	t.Broadcast = mac
	t.touch(BroadcastAddressChanged)
}

// SetGateway sets the IPv4 default gateway.
func (t *Tracker) SetGateway(gw ipaddr.Addr) {
	if t.Gateway.Equal(gw) {
		return
	}
	t.Gateway = gw
	t.gwReason = GatewayClearReasonNone
	t.touch(GatewayAddressChanged)
}

// ClearGateway clears the gateway for the given reason. It is
// idempotent: clearing an already-absent gateway sets no dirty flag.
func (t *Tracker) ClearGateway(reason GatewayClearReason) {
	if !t.Gateway.IsValid() {
		return
	}
	t.Gateway = ipaddr.Addr{}
	t.gwReason = reason
	t.touch(GatewayAddressChanged)
}

// addressIndex returns the index of a record in t.Addresses whose key
// (ip, prefix length, scope) matches rec, or -1. Flags, protocol and
// broadcast are not part of the key.
func (t *Tracker) addressIndex(rec netaddr.Record) int {
	for i, existing := range t.Addresses {
		if existing.IP.Equal(rec.IP) && existing.PrefixLen == rec.PrefixLen && existing.Scope == rec.Scope {
			return i
		}
	}
	return -1
}

// AddAddress applies a NEWADDR record. If an equal record (every
// field, including flags) already exists, this is a no-op replay and
// no dirty flag is set. If the key matches but flags/protocol/
// broadcast differ, the prior record is replaced in place. Otherwise
// the record is inserted in sorted order. Returns true if the tracker
// state changed.
func (t *Tracker) AddAddress(rec netaddr.Record) bool {
	if i := t.addressIndex(rec); i >= 0 {
		if t.Addresses[i].Equal(rec) {
			return false
		}
		t.Addresses[i] = rec
		t.touch(NetworkAddressesChanged)
		return true
	}

	i := 0
	for ; i < len(t.Addresses); i++ {
		if rec.Compare(t.Addresses[i]) < 0 {
			break
		}
	}
	t.Addresses = append(t.Addresses, netaddr.Record{})
	copy(t.Addresses[i+1:], t.Addresses[i:])
	t.Addresses[i] = rec
	t.touch(NetworkAddressesChanged)
	return true
}

// RemoveAddress applies a DELADDR record, erasing by key equality. If
// the erase empties the interface's v4 address subset, the gateway is
// cleared with reason all-ipv4-addresses-removed. Returns true if an
// address was removed.
func (t *Tracker) RemoveAddress(rec netaddr.Record) bool {
	i := t.addressIndex(rec)
	if i < 0 {
		return false
	}
	t.Addresses = append(t.Addresses[:i], t.Addresses[i+1:]...)
	t.touch(NetworkAddressesChanged)

	if !t.hasV4Address() {
		t.ClearGateway(GatewayClearReasonAllIPv4AddressesRemoved)
	}
	return true
}

// addressesCopy returns a defensive copy of t.Addresses, safe for a
// subscriber callback to retain past the current fan-out pass.
func (t *Tracker) addressesCopy() []netaddr.Record {
	out := make([]netaddr.Record, len(t.Addresses))
	copy(out, t.Addresses)
	return out
}

func (t *Tracker) hasV4Address() bool {
	for _, a := range t.Addresses {
		if a.IP.IsV4() {
			return true
		}
	}
	return false
}
