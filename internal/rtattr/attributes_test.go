package rtattr

import (
	"testing"

	"github.com/mdlayher/netlink"
)

func encode(t *testing.T, fn func(ae *netlink.AttributeEncoder)) []byte {
	t.Helper()
	ae := netlink.NewAttributeEncoder()
	fn(ae)
	b, err := ae.Encode()
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}
	return b
}

func TestParseTypedAccessors(t *testing.T) {
	t.Parallel()

	const (
		kindName  = 1
		kindIndex = 2
		kindMac   = 3
		kindV4    = 4
	)

	payload := encode(t, func(ae *netlink.AttributeEncoder) {
		ae.String(kindName, "eth0")
		ae.Uint32(kindIndex, 7)
		ae.Bytes(kindMac, []byte{0x00, 0x1b, 0x21, 0xaa, 0xbb, 0xcc})
		ae.Bytes(kindV4, []byte{10, 0, 0, 1})
	})

	table, err := Parse(payload, kindV4, nil)
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}

	if name, ok := table.String(kindName); !ok || name != "eth0" {
		t.Errorf("String(kindName) = (%q, %v), want (\"eth0\", true)", name, ok)
	}
	if idx, ok := table.Uint32(kindIndex); !ok || idx != 7 {
		t.Errorf("Uint32(kindIndex) = (%d, %v), want (7, true)", idx, ok)
	}
	if mac, ok := table.Ethernet(kindMac); !ok || mac.String() != "00:1b:21:aa:bb:cc" {
		t.Errorf("Ethernet(kindMac) = (%v, %v), want (00:1b:21:aa:bb:cc, true)", mac, ok)
	}
	if ip, ok := table.IPv4(kindV4); !ok || ip.String() != "10.0.0.1" {
		t.Errorf("IPv4(kindV4) = (%v, %v), want (10.0.0.1, true)", ip, ok)
	}
	if table.Seen() != 4 {
		t.Errorf("Seen() = %d, want 4", table.Seen())
	}
	if table.Unrecognized() != 0 {
		t.Errorf("Unrecognized() = %d, want 0", table.Unrecognized())
	}
}

func TestParseAbsentAttribute(t *testing.T) {
	t.Parallel()

	payload := encode(t, func(ae *netlink.AttributeEncoder) {
		ae.String(1, "eth0")
	})

	table, err := Parse(payload, 10, nil)
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if _, ok := table.Uint32(5); ok {
		t.Error("Uint32 on a missing kind should report absent")
	}
	if _, ok := table.String(99); ok {
		t.Error("String on an out-of-range kind should report absent")
	}
}

func TestParseSizeMismatchIsAbsent(t *testing.T) {
	t.Parallel()

	const kindMac = 3
	payload := encode(t, func(ae *netlink.AttributeEncoder) {
		ae.Bytes(kindMac, []byte{1, 2, 3}) // wrong length for a MAC
	})

	table, err := Parse(payload, kindMac, nil)
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if _, ok := table.Ethernet(kindMac); ok {
		t.Error("Ethernet accessor should report absent on a size mismatch")
	}
}

func TestParseUnrecognizedKindCounted(t *testing.T) {
	t.Parallel()

	payload := encode(t, func(ae *netlink.AttributeEncoder) {
		ae.Uint8(1, 1)
		ae.Uint8(50, 1) // beyond maxKind
	})

	table, err := Parse(payload, 10, nil)
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if table.Unrecognized() != 1 {
		t.Errorf("Unrecognized() = %d, want 1", table.Unrecognized())
	}
	if table.Seen() != 2 {
		t.Errorf("Seen() = %d, want 2", table.Seen())
	}
}
