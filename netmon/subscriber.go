package netmon

import (
	"github.com/google/uuid"

	"github.com/kuuji/ifwatch/ethernet"
	"github.com/kuuji/ifwatch/iface"
	"github.com/kuuji/ifwatch/ipaddr"
	"github.com/kuuji/ifwatch/netaddr"
)

// Subscriber receives interface change notifications from a Monitor.
// Every method defaults to a no-op via BaseSubscriber, so concrete
// subscribers only need to implement the callbacks they care about;
// a future method added to this interface does not break existing
// embedders.
type Subscriber interface {
	OnInterfaceAdded(id iface.Identity)
	OnInterfaceRemoved(id iface.Identity)
	OnNameChanged(id iface.Identity, newName string)
	OnOperationalStateChanged(id iface.Identity, state OperationalState)
	OnNetworkAddressesChanged(id iface.Identity, addrs []netaddr.Record)
	OnGatewayAddressChanged(id iface.Identity, gateway ipaddr.Addr, present bool)
	OnMacAddressChanged(id iface.Identity, mac ethernet.Addr)
	OnBroadcastAddressChanged(id iface.Identity, broadcast ethernet.Addr)
	OnLinkFlagsChanged(id iface.Identity, flags LinkFlagSet)
}

// BaseSubscriber implements Subscriber with no-op methods. Embed it in
// a concrete subscriber type and override only the callbacks of
// interest.
type BaseSubscriber struct{}

func (BaseSubscriber) OnInterfaceAdded(iface.Identity)                            {}
func (BaseSubscriber) OnInterfaceRemoved(iface.Identity)                          {}
func (BaseSubscriber) OnNameChanged(iface.Identity, string)                       {}
func (BaseSubscriber) OnOperationalStateChanged(iface.Identity, OperationalState) {}
func (BaseSubscriber) OnNetworkAddressesChanged(iface.Identity, []netaddr.Record) {}
func (BaseSubscriber) OnGatewayAddressChanged(iface.Identity, ipaddr.Addr, bool)  {}
func (BaseSubscriber) OnMacAddressChanged(iface.Identity, ethernet.Addr)          {}
func (BaseSubscriber) OnBroadcastAddressChanged(iface.Identity, ethernet.Addr)    {}
func (BaseSubscriber) OnLinkFlagsChanged(iface.Identity, LinkFlagSet)             {}

var _ Subscriber = BaseSubscriber{}

// subscription is the engine's bookkeeping for one subscriber: which
// interfaces it is interested in (by kernel index — a rename must not
// silently unsubscribe a listener, per the Rename scenario in spec.md
// §8), the Subscriber itself, and the tokens its orthogonal add/remove
// listeners were registered under in the monitor's two Watchables.
type subscription struct {
	sub          Subscriber
	interests    map[uint32]bool
	addedToken   uuid.UUID
	removedToken uuid.UUID
}

func newSubscription(sub Subscriber, interfaces []iface.Identity) *subscription {
	s := &subscription{sub: sub, interests: make(map[uint32]bool, len(interfaces))}
	for _, id := range interfaces {
		s.interests[id.Index] = true
	}
	return s
}

func (s *subscription) interested(index uint32) bool {
	return s.interests[index]
}

func (s *subscription) setInterests(interfaces []iface.Identity) {
	s.interests = make(map[uint32]bool, len(interfaces))
	for _, id := range interfaces {
		s.interests[id.Index] = true
	}
}
