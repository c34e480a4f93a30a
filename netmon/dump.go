package netmon

import (
	"github.com/mdlayher/netlink"
	"golang.org/x/sys/unix"
)

// dumpState is the monitor's position in the enumerating-links →
// enumerating-addresses → enumerating-routes → waiting-for-changes
// state machine from spec.md §4.5.
type dumpState uint8

const (
	stateEnumeratingLinks dumpState = iota
	stateEnumeratingAddresses
	stateEnumeratingRoutes
	stateWaitingForChanges
)

func (s dumpState) String() string {
	switch s {
	case stateEnumeratingLinks:
		return "enumerating-links"
	case stateEnumeratingAddresses:
		return "enumerating-addresses"
	case stateEnumeratingRoutes:
		return "enumerating-routes"
	default:
		return "waiting-for-changes"
	}
}

// dumpRequestType returns the RTM_GET* message type that begins
// enumeration for s, or false if s has no associated dump (only
// waiting-for-changes).
func (s dumpState) dumpRequestType() (uint16, bool) {
	switch s {
	case stateEnumeratingLinks:
		return unix.RTM_GETLINK, true
	case stateEnumeratingAddresses:
		return unix.RTM_GETADDR, true
	case stateEnumeratingRoutes:
		return unix.RTM_GETROUTE, true
	default:
		return 0, false
	}
}

// next returns the state that follows s once its dump completes.
func (s dumpState) next() dumpState {
	switch s {
	case stateEnumeratingLinks:
		return stateEnumeratingAddresses
	case stateEnumeratingAddresses:
		return stateEnumeratingRoutes
	default:
		return stateWaitingForChanges
	}
}

const genericFamilyHeaderLen = 4 // rtgenmsg: family (1 byte) + 3 bytes padding

func buildGenericFamilyHeader(family uint8) []byte {
	return []byte{family, 0, 0, 0}
}

// nextSequence returns the next dump sequence number, skipping zero:
// zero is reserved as the sentinel meaning "do not check sequence",
// used while waiting for changes.
func (m *Monitor) nextSequence() uint32 {
	m.seq++
	if m.seq == 0 {
		m.seq = 1
	}
	return m.seq
}

// buildDumpRequest constructs a REQUEST|DUMP message for msgType with
// a fresh sequence number, an AF_UNSPEC generic header, and
// IFLA_EXT_MASK = RTEXT_FILTER_SKIP_STATS.
func (m *Monitor) buildDumpRequest(msgType uint16) netlink.Message {
	ae := netlink.NewAttributeEncoder()
	ae.Uint32(unix.IFLA_EXT_MASK, unix.RTEXT_FILTER_SKIP_STATS)
	attrs, _ := ae.Encode() // encoding a single scalar attribute cannot fail

	data := append(buildGenericFamilyHeader(unix.AF_UNSPEC), attrs...)

	return netlink.Message{
		Header: netlink.Header{
			Type:     netlink.HeaderType(msgType),
			Flags:    netlink.Request | netlink.Dump,
			Sequence: m.nextSequence(),
		},
		Data: data,
	}
}

// sendDumpRequest builds and sends the request for the current state,
// remembering it so a transient failure can be retried with a fresh
// sequence number.
func (m *Monitor) sendDumpRequest() error {
	msgType, ok := m.state.dumpRequestType()
	if !ok {
		return nil
	}
	req := m.buildDumpRequest(msgType)
	m.lastRequest = req
	sent, err := m.conn.Send(req)
	if err != nil {
		return err
	}
	m.accountSend(sent)
	return nil
}

// retryLastDumpRequest rewrites the last dump request's sequence
// number in place and resends it, per spec.md §4.8's transient-error
// recovery steps 3 and 4.
func (m *Monitor) retryLastDumpRequest() error {
	m.stats.EnumerationRetries++
	m.lastRequest.Header.Sequence = m.nextSequence()
	sent, err := m.conn.Send(m.lastRequest)
	if err != nil {
		return err
	}
	m.accountSend(sent)
	return nil
}

// advanceDumpState moves to the next enumeration phase and issues its
// dump request, or — from the routes phase — enters steady state.
func (m *Monitor) advanceDumpState() error {
	m.state = m.state.next()
	if m.state == stateWaitingForChanges {
		m.seq = 0
		return nil
	}
	return m.sendDumpRequest()
}

// sequenceAccepted reports whether msg's sequence number should be
// processed given the current dump state, per spec.md §4.5: validated
// against the in-flight dump while enumerating, anything accepted
// while waiting for changes.
func (m *Monitor) sequenceAccepted(seq uint32) bool {
	if m.state == stateWaitingForChanges {
		return true
	}
	return seq == m.seq
}
