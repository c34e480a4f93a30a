package netmon

import (
	"log/slog"

	"github.com/kuuji/ifwatch/flagset"
)

// RuntimeFlag configures Monitor behavior at construction time.
type RuntimeFlag uint8

const (
	StatsForNerds RuntimeFlag = iota
	PreferredFamilyV4
	PreferredFamilyV6
	IncludeNonIeee802
	DumpPackets
	NonBlocking
	runtimeFlagCount
)

func runtimeFlagName(f RuntimeFlag) string {
	switch f {
	case StatsForNerds:
		return "StatsForNerds"
	case PreferredFamilyV4:
		return "PreferredFamilyV4"
	case PreferredFamilyV6:
		return "PreferredFamilyV6"
	case IncludeNonIeee802:
		return "IncludeNonIeee802"
	case DumpPackets:
		return "DumpPackets"
	case NonBlocking:
		return "NonBlocking"
	default:
		return "Unknown"
	}
}

// RuntimeFlagSet is a set of RuntimeFlag bits.
type RuntimeFlagSet = flagset.Set[RuntimeFlag]

// RuntimeFlagSetString renders a RuntimeFlagSet using this package's
// flag names and cardinality.
func RuntimeFlagSetString(s RuntimeFlagSet) string {
	return s.String(runtimeFlagCount, runtimeFlagName)
}

// resolveRuntimeFlags applies spec.md §6's reinterpretation of setting
// both preferred-family flags at once: rather than the reference
// implementation's "drop everything address-related", this is treated
// as "no preference", and a warning is logged once.
func resolveRuntimeFlags(flags RuntimeFlagSet, log *slog.Logger) RuntimeFlagSet {
	if flags.Test(PreferredFamilyV4) && flags.Test(PreferredFamilyV6) {
		log.Warn("netmon: PreferredFamilyV4 and PreferredFamilyV6 both set, treating as no preference")
		flags.Reset(PreferredFamilyV4)
		flags.Reset(PreferredFamilyV6)
	}
	return flags
}
