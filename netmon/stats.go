package netmon

import (
	"log/slog"

	"github.com/kuuji/ifwatch/iface"
)

// Statistics is a point-in-time snapshot of the monitor engine's
// counters, exposed for diagnostics when RuntimeFlag.StatsForNerds is
// set. The byte/packet and per-family message counts mirror the
// grounding source's Stats struct (bytesSent/bytesReceived/
// packetsSent/packetsReceived); Interfaces adds a per-tracker
// Nerdstats view on top, since this port tracks more than one
// interface at a time.
type Statistics struct {
	BytesSent              uint64
	BytesReceived          uint64
	PacketsSent            uint64
	PacketsReceived        uint64
	AttributesSeen         uint64
	AttributesUnrecognized uint64
	MessagesLink           uint64
	MessagesAddr           uint64
	MessagesRoute          uint64
	MessagesUnknownType    uint64
	DiscardedUnknownIface  uint64
	DiscardedFamilyFilter  uint64
	DiscardedIfaceType     uint64
	FanOutChecks           uint64
	FanOutChanges          uint64
	FanOutClears           uint64
	EnumerationRetries     uint64
	Resyncs                uint64
	Interfaces             []InterfaceStats
}

// InterfaceStats pairs one tracked interface's identity with its
// lifetime Nerdstats counters.
type InterfaceStats struct {
	Identity iface.Identity
	Nerdstats
}

// logFields renders s as a flat field list for a structured log call.
// Interfaces is summarized by count rather than expanded field by
// field, keeping the steady-state log line a fixed shape.
func (s Statistics) logFields() []any {
	return []any{
		"bytes_sent", s.BytesSent,
		"bytes_received", s.BytesReceived,
		"packets_sent", s.PacketsSent,
		"packets_received", s.PacketsReceived,
		"attributes_seen", s.AttributesSeen,
		"attributes_unrecognized", s.AttributesUnrecognized,
		"messages_link", s.MessagesLink,
		"messages_addr", s.MessagesAddr,
		"messages_route", s.MessagesRoute,
		"messages_unknown_type", s.MessagesUnknownType,
		"discarded_unknown_iface", s.DiscardedUnknownIface,
		"discarded_family_filter", s.DiscardedFamilyFilter,
		"discarded_iface_type", s.DiscardedIfaceType,
		"fan_out_checks", s.FanOutChecks,
		"fan_out_changes", s.FanOutChanges,
		"fan_out_clears", s.FanOutClears,
		"enumeration_retries", s.EnumerationRetries,
		"resyncs", s.Resyncs,
		"tracked_interfaces", len(s.Interfaces),
	}
}

// logStatsForNerds emits s at info level under a fixed message, used
// after each steady-state fan-out pass when RuntimeFlag.StatsForNerds
// is set.
func logStatsForNerds(log *slog.Logger, s Statistics) {
	log.Info("netmon: stats for nerds", s.logFields()...)
}
