package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kuuji/ifwatch/ethernet"
	"github.com/kuuji/ifwatch/iface"
	"github.com/kuuji/ifwatch/internal/config"
	"github.com/kuuji/ifwatch/ipaddr"
	"github.com/kuuji/ifwatch/netaddr"
	"github.com/kuuji/ifwatch/netmon"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch and print interface changes until interrupted",
	RunE:  runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(resolvedConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	flags := flagsFromConfig(cfg.Monitor)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := netmon.New(flags, globalLogger)

	// Interest is keyed by kernel index, so an initial enumeration must
	// complete before a name-based allow-list can be resolved to
	// identities.
	known := m.EnumerateInterfaces()
	interest := interestFromNames(known, cfg.Interfaces)
	// cobra's Printf writes to stderr unless an output is set.
	cmd.SetOut(cmd.OutOrStdout())
	m.Subscribe(interest, &printer{cmd: cmd})

	go func() {
		<-ctx.Done()
		globalLogger.Info("shutting down")
		m.Stop()
	}()

	globalLogger.Info("watching network interfaces", "config", resolvedConfigPath())
	return m.Run()
}

// interestFromNames resolves a name allow-list from the config file
// against the interfaces known after initial enumeration. An empty
// allow-list means "every known interface".
func interestFromNames(known []iface.Identity, names []string) []iface.Identity {
	if len(names) == 0 {
		return known
	}
	allow := make(map[string]bool, len(names))
	for _, n := range names {
		allow[n] = true
	}
	var out []iface.Identity
	for _, id := range known {
		if allow[id.Name] {
			out = append(out, id)
		}
	}
	return out
}

func flagsFromConfig(mc config.MonitorConfig) netmon.RuntimeFlagSet {
	var flags netmon.RuntimeFlagSet
	if mc.StatsForNerds {
		flags.Set(netmon.StatsForNerds)
	}
	if mc.PreferredFamilyV4 {
		flags.Set(netmon.PreferredFamilyV4)
	}
	if mc.PreferredFamilyV6 {
		flags.Set(netmon.PreferredFamilyV6)
	}
	if mc.IncludeNonIeee802 {
		flags.Set(netmon.IncludeNonIeee802)
	}
	if mc.NonBlocking {
		flags.Set(netmon.NonBlocking)
	}
	if mc.DumpPackets {
		flags.Set(netmon.DumpPackets)
	}
	return flags
}

// printer is a Subscriber that prints every notification to the
// command's output stream.
type printer struct {
	netmon.BaseSubscriber
	cmd *cobra.Command
}

func (p *printer) OnInterfaceAdded(id iface.Identity) {
	p.cmd.Printf("+ %s\n", id)
}

func (p *printer) OnInterfaceRemoved(id iface.Identity) {
	p.cmd.Printf("- %s\n", id)
}

func (p *printer) OnNameChanged(id iface.Identity, newName string) {
	p.cmd.Printf("%s: renamed to %s\n", id, newName)
}

func (p *printer) OnOperationalStateChanged(id iface.Identity, state netmon.OperationalState) {
	p.cmd.Printf("%s: operational state %s\n", id, state)
}

func (p *printer) OnNetworkAddressesChanged(id iface.Identity, addrs []netaddr.Record) {
	p.cmd.Printf("%s: %d address(es)\n", id, len(addrs))
	for _, a := range addrs {
		p.cmd.Printf("  %s\n", a)
	}
}

func (p *printer) OnGatewayAddressChanged(id iface.Identity, gateway ipaddr.Addr, present bool) {
	if !present {
		p.cmd.Printf("%s: gateway cleared\n", id)
		return
	}
	p.cmd.Printf("%s: gateway %s\n", id, gateway)
}

func (p *printer) OnMacAddressChanged(id iface.Identity, mac ethernet.Addr) {
	p.cmd.Printf("%s: MAC %s\n", id, mac)
}

func (p *printer) OnBroadcastAddressChanged(id iface.Identity, broadcast ethernet.Addr) {
	p.cmd.Printf("%s: broadcast %s\n", id, broadcast)
}

func (p *printer) OnLinkFlagsChanged(id iface.Identity, flags netmon.LinkFlagSet) {
	p.cmd.Printf("%s: link flags %s\n", id, netmon.LinkFlagSetString(flags))
}
