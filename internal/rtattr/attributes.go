// Package rtattr parses a route-netlink attribute payload into a table
// indexed by attribute kind, with typed accessors that degrade to
// "absent" rather than erroring.
package rtattr

import (
	"log/slog"

	"github.com/josharian/native"
	"github.com/mdlayher/netlink"

	"github.com/kuuji/ifwatch/ethernet"
	"github.com/kuuji/ifwatch/ipaddr"
)

type entry struct {
	present bool
	data    []byte
}

// Table is a parsed attribute set from a single rtnetlink message
// payload, indexed by attribute kind. Accessors return the zero value
// and false when the kind is missing, out of range, or its declared
// size doesn't match the accessor's expected wire size.
type Table struct {
	entries      []entry
	seen         int
	unrecognized int
	log          *slog.Logger
}

// Parse decodes payload (the message body following its fixed-size
// family header) into a Table. maxKind bounds which attribute kinds
// are recorded; kinds beyond it are counted as unrecognized and
// otherwise ignored, matching spec.md §4.3's "declared maximum
// attribute kind" input.
func Parse(payload []byte, maxKind uint16, logger *slog.Logger) (*Table, error) {
	if logger == nil {
		logger = slog.Default()
	}
	t := &Table{
		entries: make([]entry, maxKind+1),
		log:     logger,
	}

	ad, err := netlink.NewAttributeDecoder(payload)
	if err != nil {
		return nil, err
	}
	ad.ByteOrder = native.Endian

	for ad.Next() {
		t.seen++
		kind := ad.Type()
		if kind > maxKind {
			t.unrecognized++
			continue
		}
		// Copy: the decoder's Bytes() may alias the input slice, and
		// callers may reuse payload's backing buffer for the next
		// message.
		data := append([]byte(nil), ad.Bytes()...)
		t.entries[kind] = entry{present: true, data: data}
	}
	if err := ad.Err(); err != nil {
		return nil, err
	}
	return t, nil
}

// Seen reports the total number of attributes encountered, including
// unrecognized ones.
func (t *Table) Seen() int { return t.seen }

// Unrecognized reports the number of attributes whose kind exceeded
// maxKind.
func (t *Table) Unrecognized() int { return t.unrecognized }

func (t *Table) get(kind uint16) ([]byte, bool) {
	if int(kind) >= len(t.entries) {
		return nil, false
	}
	e := t.entries[kind]
	if !e.present {
		return nil, false
	}
	return e.data, true
}

func (t *Table) warnSize(kind uint16, want, got int) {
	t.log.Warn("rtattr: size mismatch", "kind", kind, "want", want, "got", got)
}

// String returns the attribute's value interpreted as a NUL-terminated
// string, or ("", false) if absent.
func (t *Table) String(kind uint16) (string, bool) {
	data, ok := t.get(kind)
	if !ok {
		return "", false
	}
	s := string(data)
	for i, c := range s {
		if c == 0 {
			s = s[:i]
			break
		}
	}
	return s, true
}

// Uint8 returns the attribute's value as a single byte, or (0, false)
// if absent or not exactly 1 byte.
func (t *Table) Uint8(kind uint16) (uint8, bool) {
	data, ok := t.get(kind)
	if !ok {
		return 0, false
	}
	if len(data) != 1 {
		t.warnSize(kind, 1, len(data))
		return 0, false
	}
	return data[0], true
}

// Uint16 returns the attribute's value as a native-endian uint16, or
// (0, false) if absent or not exactly 2 bytes.
func (t *Table) Uint16(kind uint16) (uint16, bool) {
	data, ok := t.get(kind)
	if !ok {
		return 0, false
	}
	if len(data) != 2 {
		t.warnSize(kind, 2, len(data))
		return 0, false
	}
	return native.Endian.Uint16(data), true
}

// Uint32 returns the attribute's value as a native-endian uint32, or
// (0, false) if absent or not exactly 4 bytes.
func (t *Table) Uint32(kind uint16) (uint32, bool) {
	data, ok := t.get(kind)
	if !ok {
		return 0, false
	}
	if len(data) != 4 {
		t.warnSize(kind, 4, len(data))
		return 0, false
	}
	return native.Endian.Uint32(data), true
}

// Uint64 returns the attribute's value as a native-endian uint64, or
// (0, false) if absent or not exactly 8 bytes.
func (t *Table) Uint64(kind uint16) (uint64, bool) {
	data, ok := t.get(kind)
	if !ok {
		return 0, false
	}
	if len(data) != 8 {
		t.warnSize(kind, 8, len(data))
		return 0, false
	}
	return native.Endian.Uint64(data), true
}

// Ethernet returns the attribute's value as a 6-byte hardware address,
// or (zero, false) if absent or not exactly 6 bytes.
func (t *Table) Ethernet(kind uint16) (ethernet.Addr, bool) {
	data, ok := t.get(kind)
	if !ok {
		return ethernet.Addr{}, false
	}
	if len(data) != 6 {
		t.warnSize(kind, 6, len(data))
		return ethernet.Addr{}, false
	}
	return ethernet.FromBytes(data), true
}

// IPv4 returns the attribute's value as a 4-byte IP address, or (zero,
// false) if absent or not exactly 4 bytes.
func (t *Table) IPv4(kind uint16) (ipaddr.Addr, bool) {
	data, ok := t.get(kind)
	if !ok {
		return ipaddr.Addr{}, false
	}
	if len(data) != 4 {
		t.warnSize(kind, 4, len(data))
		return ipaddr.Addr{}, false
	}
	return ipaddr.FromBytes(data), true
}

// IPv6 returns the attribute's value as a 16-byte IP address, or
// (zero, false) if absent or not exactly 16 bytes.
func (t *Table) IPv6(kind uint16) (ipaddr.Addr, bool) {
	data, ok := t.get(kind)
	if !ok {
		return ipaddr.Addr{}, false
	}
	if len(data) != 16 {
		t.warnSize(kind, 16, len(data))
		return ipaddr.Addr{}, false
	}
	return ipaddr.FromBytes(data), true
}
