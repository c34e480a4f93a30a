// Package netmon implements a host-local observer of Linux rtnetlink
// state: it enumerates and then watches links, addresses, and routes,
// maintaining a deduplicated per-interface view and fanning out
// change notifications to subscribers.
package netmon

import (
	"encoding/hex"
	"errors"
	"log/slog"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/mdlayher/netlink"
	"golang.org/x/sys/unix"

	"github.com/kuuji/ifwatch/iface"
	"github.com/kuuji/ifwatch/watchable"
)

// nlmsgHeaderLen is sizeof(struct nlmsghdr): used as the fallback wire
// length for a message whose Header.Length wasn't populated by the
// netlink library (e.g. a request we just built ourselves).
const nlmsgHeaderLen = 16

func messageWireLength(msg netlink.Message) uint64 {
	if msg.Header.Length > 0 {
		return uint64(msg.Header.Length)
	}
	return uint64(nlmsgHeaderLen + len(msg.Data))
}

// retryableErrno is the set of errno values spec.md §4.8 treats as
// transient during enumeration: drain, sleep, retry with a fresh
// sequence number.
var retryableErrno = map[syscall.Errno]bool{
	unix.EPROTO: true,
	unix.EINTR:  true,
	unix.EAGAIN: true,
	unix.EBUSY:  true,
}

const enumerationRetryDelay = 10 * time.Millisecond

// Monitor observes route-netlink state and fans out changes to
// subscribers. It is not safe for concurrent use from multiple
// goroutines: a single goroutine must own Run and all Subscribe/
// Unsubscribe/EnumerateInterfaces calls, per spec.md §5.
type Monitor struct {
	log   *slog.Logger
	flags RuntimeFlagSet
	conn  socketConn

	running            bool
	enumerationStarted bool
	state              dumpState
	seq                uint32

	lastRequest netlink.Message

	trackers map[uint32]*Tracker
	subs     map[uuid.UUID]*subscription

	added   *watchable.Watchable[iface.Identity]
	removed *watchable.Watchable[iface.Identity]

	stats Statistics
}

// New constructs a Monitor, opening and configuring the route-netlink
// socket. A nil logger defaults to slog.Default. Socket setup failure
// is fatal: see socket_linux.go's dialSocket.
func New(flags RuntimeFlagSet, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "netmon")
	flags = resolveRuntimeFlags(flags, logger)

	return &Monitor{
		log:      logger,
		flags:    flags,
		conn:     dialSocket(flags, logger),
		trackers: make(map[uint32]*Tracker),
		subs:     make(map[uuid.UUID]*subscription),
		added:    watchable.New[iface.Identity](logger),
		removed:  watchable.New[iface.Identity](logger),
	}
}

// Run drives initial enumeration and then loops receiving and
// processing datagrams until Stop is called.
func (m *Monitor) Run() error {
	m.running = true
	if err := m.startEnumeration(); err != nil {
		return err
	}

	for m.running {
		msgs, err := m.conn.Receive()
		if err != nil {
			if stop, ferr := m.handleReceiveError(err); stop {
				return ferr
			}
			continue
		}
		m.accountReceive(msgs)
		for _, msg := range msgs {
			m.dispatch(msg)
			if !m.running {
				// stop() may have been called from within a listener
				// during dispatch's fan-out; honor it immediately and
				// stop issuing further syscalls.
				return nil
			}
		}
		m.fanOut()
	}
	return nil
}

// Stop halts the monitor and closes its socket. It is idempotent and
// safe to call from within a subscriber callback during fan-out; the
// in-progress pass completes, but Run issues no further syscalls.
func (m *Monitor) Stop() {
	if !m.running {
		return
	}
	m.running = false
	m.conn.Close()
}

func (m *Monitor) handleReceiveError(err error) (stop bool, fatalErr error) {
	var errno syscall.Errno
	if !errors.As(err, &errno) {
		errno = 0
	}

	if m.state != stateWaitingForChanges {
		if retryableErrno[errno] {
			m.drainPending()
			time.Sleep(enumerationRetryDelay)
			if rerr := m.retryLastDumpRequest(); rerr != nil {
				return true, rerr
			}
			return false, nil
		}
		return true, err
	}

	if errno == unix.ENOBUFS {
		m.log.Warn("netmon: ENOBUFS, resyncing", "error", err)
		m.stats.Resyncs++
		m.resync()
		return false, nil
	}

	m.log.Warn("netmon: steady-state receive error", "error", err)
	return false, nil
}

// drainPending discards any datagrams already queued on the socket
// before a retry, per spec.md §4.8 step 1.
func (m *Monitor) drainPending() {
	for {
		if _, err := m.conn.Receive(); err != nil {
			return
		}
	}
}

// resync implements the ENOBUFS recovery resolved in DESIGN.md:
// trackers are kept, their dirty flags wiped without firing
// notifications for the wipe itself, and a fresh links dump restarts
// the enumeration state machine.
func (m *Monitor) resync() {
	for _, tr := range m.trackers {
		tr.clearDirty()
	}
	m.state = stateEnumeratingLinks
	if err := m.sendDumpRequest(); err != nil {
		m.log.Warn("netmon: failed to resend dump request during resync", "error", err)
	}
}

func (m *Monitor) dispatch(msg netlink.Message) {
	if uint16(msg.Header.Type) == unix.NLMSG_DONE {
		if err := m.advanceDumpState(); err != nil {
			m.log.Warn("netmon: failed to advance dump state", "error", err)
		}
		return
	}

	if !m.sequenceAccepted(msg.Header.Sequence) {
		return
	}

	switch uint16(msg.Header.Type) {
	case unix.RTM_NEWLINK, unix.RTM_DELLINK:
		m.stats.MessagesLink++
		m.handleLinkMessage(msg)
	case unix.RTM_NEWADDR, unix.RTM_DELADDR:
		m.stats.MessagesAddr++
		m.handleAddrMessage(msg)
	case unix.RTM_NEWROUTE, unix.RTM_DELROUTE:
		m.stats.MessagesRoute++
		m.handleRouteMessage(msg)
	default:
		m.stats.MessagesUnknownType++
		m.log.Warn("netmon: unknown message type", "type", uint16(msg.Header.Type))
	}
}

// accountReceive updates the byte/packet counters for one completed
// Receive call and, when RuntimeFlag.DumpPackets is set, logs each raw
// message in the batch — the same packet-dump behavior the grounding
// source gates on RuntimeFlag::DumpPackets.
func (m *Monitor) accountReceive(msgs []netlink.Message) {
	m.stats.PacketsReceived++
	for _, msg := range msgs {
		m.stats.BytesReceived += messageWireLength(msg)
	}
	if m.flags.Test(DumpPackets) {
		m.dumpPackets(msgs)
	}
}

// accountSend updates the byte/packet counters for one message handed
// to the socket for sending.
func (m *Monitor) accountSend(sent netlink.Message) {
	m.stats.PacketsSent++
	m.stats.BytesSent += messageWireLength(sent)
}

func (m *Monitor) dumpPackets(msgs []netlink.Message) {
	for _, msg := range msgs {
		m.log.Debug("netmon: packet dump",
			"type", uint16(msg.Header.Type),
			"flags", uint16(msg.Header.Flags),
			"sequence", msg.Header.Sequence,
			"length", msg.Header.Length,
			"data", hex.EncodeToString(msg.Data),
		)
	}
}

// fanOut runs one full fan-out pass: for every tracker with dirty
// flags, calls the notification methods in notifyOrder for every
// interested subscriber, then clears the tracker's dirty flags.
func (m *Monitor) fanOut() {
	for _, tr := range m.trackers {
		m.stats.FanOutChecks++
		if tr.Dirty.None() {
			continue
		}
		m.stats.FanOutChanges++
		for _, sub := range m.subs {
			if !sub.interested(tr.Identity.Index) {
				continue
			}
			m.deliver(sub.sub, tr)
		}
		tr.clearDirty()
		m.stats.FanOutClears++
	}

	if m.flags.Test(StatsForNerds) && m.state == stateWaitingForChanges {
		logStatsForNerds(m.log, m.Stats())
	}
}

func (m *Monitor) deliver(sub Subscriber, tr *Tracker) {
	for _, flag := range notifyOrder {
		if !tr.Dirty.Test(flag) {
			continue
		}
		m.callSubscriber(sub, flag, tr)
	}
}

func (m *Monitor) callSubscriber(sub Subscriber, flag DirtyFlag, tr *Tracker) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error("netmon: subscriber callback panicked", "flag", dirtyFlagName(flag), "panic", r)
		}
	}()

	switch flag {
	case NameChanged:
		sub.OnNameChanged(tr.Identity, tr.Identity.Name)
	case OperationalStateChanged:
		sub.OnOperationalStateChanged(tr.Identity, tr.OperState)
	case NetworkAddressesChanged:
		sub.OnNetworkAddressesChanged(tr.Identity, tr.addressesCopy())
	case GatewayAddressChanged:
		sub.OnGatewayAddressChanged(tr.Identity, tr.Gateway, tr.Gateway.IsValid())
	case MacAddressChanged:
		sub.OnMacAddressChanged(tr.Identity, tr.MAC)
	case BroadcastAddressChanged:
		sub.OnBroadcastAddressChanged(tr.Identity, tr.Broadcast)
	case LinkFlagsChanged:
		sub.OnLinkFlagsChanged(tr.Identity, tr.LinkFlags)
	}
}

func (m *Monitor) notifyInterfaceAdded(id iface.Identity) {
	m.added.Notify(id)
}

func (m *Monitor) notifyInterfaceRemoved(id iface.Identity) {
	m.removed.Notify(id)
}

// Subscribe registers sub with an initial interest set and
// immediately delivers a synthetic initial snapshot for each
// interest-matching tracker, per spec.md §4.7. It returns a token for
// later UpdateSubscription/Unsubscribe calls.
func (m *Monitor) Subscribe(interfaces []iface.Identity, sub Subscriber) uuid.UUID {
	s := newSubscription(sub, interfaces)
	s.addedToken = m.added.Add(func(id iface.Identity) { sub.OnInterfaceAdded(id) })
	s.removedToken = m.removed.Add(func(id iface.Identity) { sub.OnInterfaceRemoved(id) })

	token := uuid.New()
	m.subs[token] = s

	m.deliverInitialSnapshots(s)
	return token
}

// UpdateSubscription replaces token's interest set. An empty set is
// equivalent to Unsubscribe; otherwise a fresh initial snapshot is
// delivered for the new interests.
func (m *Monitor) UpdateSubscription(token uuid.UUID, interfaces []iface.Identity) {
	s, ok := m.subs[token]
	if !ok {
		m.log.Warn("netmon: UpdateSubscription of unknown token", "token", token)
		return
	}
	if len(interfaces) == 0 {
		m.Unsubscribe(token)
		return
	}
	s.setInterests(interfaces)
	m.deliverInitialSnapshots(s)
}

// Unsubscribe removes token's subscription.
func (m *Monitor) Unsubscribe(token uuid.UUID) {
	s, ok := m.subs[token]
	if !ok {
		m.log.Warn("netmon: Unsubscribe of unknown token", "token", token)
		return
	}
	m.added.Remove(s.addedToken)
	m.removed.Remove(s.removedToken)
	delete(m.subs, token)
}

// startEnumeration issues the first dump request, if one has not
// already been sent by an earlier Run or EnumerateInterfaces call.
func (m *Monitor) startEnumeration() error {
	if m.enumerationStarted {
		return nil
	}
	m.enumerationStarted = true
	m.state = stateEnumeratingLinks
	return m.sendDumpRequest()
}

// EnumerateInterfaces drives the dump state machine to completion if
// it has not already finished, then returns the current set of
// tracked identities. It may be called before Run, in which case it
// kicks off enumeration itself; Run then continues from wherever
// EnumerateInterfaces left off instead of re-requesting a dump.
//
// Every field populated by the dump leaves its tracker dirty (see
// tracker.go's touch); since no fanOut pass runs during enumeration to
// consume and clear those flags, EnumerateInterfaces clears them
// itself once the dump completes. Otherwise the first message Run
// processes afterward would fan out a batch of stale notifications
// for state a freshly registered Subscribe snapshot already covered.
func (m *Monitor) EnumerateInterfaces() []iface.Identity {
	if err := m.startEnumeration(); err != nil {
		m.log.Warn("netmon: failed to start enumeration", "error", err)
		return nil
	}

	for m.state != stateWaitingForChanges {
		msgs, err := m.conn.Receive()
		if err != nil {
			if stop, _ := m.handleReceiveError(err); stop {
				break
			}
			continue
		}
		m.accountReceive(msgs)
		for _, msg := range msgs {
			m.dispatch(msg)
		}
	}

	ids := make([]iface.Identity, 0, len(m.trackers))
	for _, tr := range m.trackers {
		ids = append(ids, tr.Identity)
		tr.clearDirty()
	}
	return ids
}

// deliverInitialSnapshots sends s every currently tracked interface it
// is interested in, then clears all of that tracker's dirty flags —
// including NameChanged, which the snapshot does not carry — so a later
// fanOut does not repeat the snapshot as a "real" change. A change still
// pending on such a tracker is therefore not fanned out to any
// subscriber.
func (m *Monitor) deliverInitialSnapshots(s *subscription) {
	for _, tr := range m.trackers {
		if !s.interested(tr.Identity.Index) {
			continue
		}
		s.sub.OnOperationalStateChanged(tr.Identity, tr.OperState)
		s.sub.OnNetworkAddressesChanged(tr.Identity, tr.addressesCopy())
		s.sub.OnGatewayAddressChanged(tr.Identity, tr.Gateway, tr.Gateway.IsValid())
		s.sub.OnMacAddressChanged(tr.Identity, tr.MAC)
		s.sub.OnBroadcastAddressChanged(tr.Identity, tr.Broadcast)
		s.sub.OnLinkFlagsChanged(tr.Identity, tr.LinkFlags)
		tr.clearDirty()
	}
}

// Stats returns a point-in-time snapshot of the engine's counters,
// including a per-tracker Nerdstats view built fresh from the
// currently tracked interfaces.
func (m *Monitor) Stats() Statistics {
	s := m.stats
	s.Interfaces = make([]InterfaceStats, 0, len(m.trackers))
	for _, tr := range m.trackers {
		s.Interfaces = append(s.Interfaces, InterfaceStats{Identity: tr.Identity, Nerdstats: tr.Stats})
	}
	return s
}
