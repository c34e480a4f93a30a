package netmon

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/kuuji/ifwatch/ethernet"
	"github.com/kuuji/ifwatch/iface"
	"github.com/kuuji/ifwatch/ipaddr"
	"github.com/kuuji/ifwatch/netaddr"
)

func newTestTracker() *Tracker {
	return newTracker(iface.New(3, "eth0"))
}

func rec(ip string, prefix uint8, flags ...netaddr.AddressFlag) netaddr.Record {
	var fs netaddr.AddressFlagSet
	fs.SetAll(flags...)
	return netaddr.New(ipaddr.FromString(ip), ipaddr.Addr{}, prefix, netaddr.ScopeGlobal, fs, netaddr.ProtocolUnspecified)
}

// Property 1: idempotent add.
func TestAddAddressIdempotentReplay(t *testing.T) {
	t.Parallel()

	tr := newTestTracker()
	r := rec("10.0.0.5", 24, netaddr.Permanent)

	if changed := tr.AddAddress(r); !changed {
		t.Fatal("first add should report a change")
	}
	tr.clearDirty()

	if changed := tr.AddAddress(r); changed {
		t.Error("byte-identical replay should not report a change")
	}
	if tr.Dirty.Any() {
		t.Error("replay should leave no dirty flags set")
	}
}

// Property 2: gateway clearing on last v4 address removal, exactly once.
func TestGatewayClearedOnLastV4AddressRemoved(t *testing.T) {
	t.Parallel()

	tr := newTestTracker()
	r := rec("10.0.0.5", 24)
	tr.AddAddress(r)
	tr.clearDirty()
	tr.SetGateway(ipaddr.FromString("10.0.0.1"))
	tr.clearDirty()

	tr.RemoveAddress(r)
	if !tr.Dirty.Test(GatewayAddressChanged) {
		t.Fatal("removing the last v4 address should clear the gateway")
	}
	if tr.Gateway.IsValid() {
		t.Error("gateway should be absent after clearing")
	}
	tr.clearDirty()

	// A subsequent DELROUTE for the same interface produces no further
	// gateway notification: clearing an already-absent gateway is a no-op.
	tr.ClearGateway(GatewayClearReasonRouteDeleted)
	if tr.Dirty.Test(GatewayAddressChanged) {
		t.Error("clearing an already-absent gateway should not set a dirty flag")
	}
}

// Property 3: rename preserves identity; addresses and MAC untouched.
func TestRenamePreservesState(t *testing.T) {
	t.Parallel()

	tr := newTestTracker()
	mac := ethernet.FromBytes([]byte{1, 2, 3, 4, 5, 6})
	tr.SetMAC(mac)
	tr.AddAddress(rec("10.0.0.5", 24))
	tr.clearDirty()

	tr.SetName("enp0s3")
	if !tr.Dirty.Test(NameChanged) {
		t.Fatal("rename should set NameChanged")
	}
	if tr.Dirty.Count() != 1 {
		t.Errorf("rename should set exactly one dirty flag, got %s", DirtyFlagSetString(tr.Dirty))
	}
	if tr.MAC != mac {
		t.Error("MAC should be unchanged by a rename")
	}
	if len(tr.Addresses) != 1 {
		t.Error("address set should be unchanged by a rename")
	}
	if tr.Identity.Index != 3 || tr.Identity.Name != "enp0s3" {
		t.Errorf("identity = %v, want index 3 name enp0s3", tr.Identity)
	}
}

// Property 4: dirty-flag minimality — touching a field twice with the
// same value sets the flag only once (no redundant churn).
func TestDirtyFlagMinimality(t *testing.T) {
	t.Parallel()

	tr := newTestTracker()
	tr.SetOperState(OperUp)
	if !tr.Dirty.Test(OperationalStateChanged) {
		t.Fatal("first state change should be dirty")
	}
	tr.clearDirty()

	tr.SetOperState(OperUp)
	if tr.Dirty.Any() {
		t.Error("setting the same operational state again should not be dirty")
	}
}

// Zero-MAC writes are always a change, per spec.md §3.
func TestZeroMACAlwaysDirty(t *testing.T) {
	t.Parallel()

	tr := newTestTracker()
	tr.SetMAC(ethernet.FromBytes([]byte{1, 2, 3, 4, 5, 6}))
	tr.clearDirty()

	var zero ethernet.Addr
	tr.SetMAC(zero)
	if !tr.Dirty.Test(MacAddressChanged) {
		t.Fatal("writing all-zero MAC should always be dirty")
	}
	tr.clearDirty()

	tr.SetMAC(zero)
	if !tr.Dirty.Test(MacAddressChanged) {
		t.Error("writing all-zero MAC a second time in a row should still be dirty")
	}
}

func TestFlagOnlyUpdateReplacesRecord(t *testing.T) {
	t.Parallel()

	tr := newTestTracker()
	tr.AddAddress(rec("10.0.0.5", 24, netaddr.Permanent))
	tr.clearDirty()

	tr.AddAddress(rec("10.0.0.5", 24, netaddr.Permanent, netaddr.NoPrefixRoute))
	if !tr.Dirty.Test(NetworkAddressesChanged) {
		t.Fatal("a flag-only update should still be a change")
	}
	if len(tr.Addresses) != 1 {
		t.Fatalf("flag-only update should replace, not duplicate, got %d records", len(tr.Addresses))
	}
	if !tr.Addresses[0].Flags.Test(netaddr.Permanent) || !tr.Addresses[0].Flags.Test(netaddr.NoPrefixRoute) {
		t.Error("replaced record should carry both flags")
	}
}

// Addresses stay sorted by Record.Compare regardless of insertion order.
func TestAddressSetStaysSorted(t *testing.T) {
	t.Parallel()

	tr := newTestTracker()
	tr.AddAddress(rec("10.0.0.5", 24))
	tr.AddAddress(rec("10.0.0.1", 24))
	tr.AddAddress(rec("10.0.0.9", 24))

	want := []netaddr.Record{
		rec("10.0.0.1", 24),
		rec("10.0.0.5", 24),
		rec("10.0.0.9", 24),
	}
	if diff := cmp.Diff(want, tr.Addresses); diff != "" {
		t.Errorf("Addresses mismatch (-want +got):\n%s", diff)
	}
}

func TestNotifyOrderFixed(t *testing.T) {
	t.Parallel()

	want := []DirtyFlag{
		NameChanged,
		OperationalStateChanged,
		NetworkAddressesChanged,
		GatewayAddressChanged,
		MacAddressChanged,
		BroadcastAddressChanged,
		LinkFlagsChanged,
	}
	if len(notifyOrder) != len(want) {
		t.Fatalf("notifyOrder has %d entries, want %d", len(notifyOrder), len(want))
	}
	for i, f := range want {
		if notifyOrder[i] != f {
			t.Errorf("notifyOrder[%d] = %v, want %v", i, notifyOrder[i], f)
		}
	}
}
