//go:build linux

package netmon

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"syscall"

	"github.com/mdlayher/netlink"
	"golang.org/x/sys/unix"
)

const (
	minReceiveBufferBytes = 32 * 1024
	minSendBufferBytes    = 4 * 1024
)

// socketConn is the narrow surface Monitor needs from a route-netlink
// socket. Production code gets one from dialSocket; tests substitute a
// fake that plays back canned messages, the same in-memory-double
// pattern the teacher uses for its signaling client tests.
type socketConn interface {
	Send(m netlink.Message) (netlink.Message, error)
	Receive() ([]netlink.Message, error)
	Close() error
}

// groupsForFlags computes the rtnetlink multicast group bitmask for
// the six groups named in spec.md §6, subject to preferred-family
// filtering.
func groupsForFlags(flags RuntimeFlagSet) uint32 {
	bit := func(group int) uint32 { return 1 << (uint(group) - 1) }

	groups := bit(unix.RTNLGRP_LINK) | bit(unix.RTNLGRP_NOTIFY)

	wantV4 := !flags.Test(PreferredFamilyV6)
	wantV6 := !flags.Test(PreferredFamilyV4)

	if wantV4 {
		groups |= bit(unix.RTNLGRP_IPV4_IFADDR) | bit(unix.RTNLGRP_IPV4_ROUTE)
	}
	if wantV6 {
		groups |= bit(unix.RTNLGRP_IPV6_IFADDR) | bit(unix.RTNLGRP_IPV6_ROUTE)
	}
	return groups
}

// dialSocket opens the NETLINK_ROUTE socket, joins the computed
// multicast groups, sizes the send/receive buffers, and applies
// non-blocking mode if requested. Fatal failure at any step aborts the
// process with a structured diagnostic, per spec.md §4.4 and §7.
func dialSocket(flags RuntimeFlagSet, log *slog.Logger) *netlink.Conn {
	groups := groupsForFlags(flags)

	conn, err := netlink.Dial(unix.NETLINK_ROUTE, &netlink.Config{Groups: groups})
	if err != nil {
		fatalSetup(log, "open route-netlink socket", err)
	}

	rc, err := conn.SyscallConn()
	if err != nil {
		fatalSetup(log, "obtain raw socket handle", err)
	}

	var sockErr error
	ctrlErr := rc.Control(func(fd uintptr) {
		if err := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_RCVBUF, minReceiveBufferBytes); err != nil {
			sockErr = fmt.Errorf("set SO_RCVBUF: %w", err)
			return
		}
		if err := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_SNDBUF, minSendBufferBytes); err != nil {
			sockErr = fmt.Errorf("set SO_SNDBUF: %w", err)
			return
		}
		if flags.Test(NonBlocking) {
			if err := unix.SetNonblock(int(fd), true); err != nil {
				sockErr = fmt.Errorf("set non-blocking: %w", err)
			}
		}
	})
	if ctrlErr != nil {
		fatalSetup(log, "configure socket", ctrlErr)
	}
	if sockErr != nil {
		fatalSetup(log, "configure socket", sockErr)
	}

	return conn
}

func fatalSetup(log *slog.Logger, step string, err error) {
	var errno syscall.Errno
	var sym string
	if errors.As(err, &errno) {
		sym = errno.Error()
	}
	log.Error("netmon: fatal setup failure", "step", step, "error", err, "errno", int(errno), "errno_sym", sym)
	os.Exit(1)
}
