package delivery

import (
	"errors"
	"net"
	"net/netip"
	"os"
)

var ErrNoAddress = errors.New("Host has no usable IPv4 address")

// LocalIPv4 resolves the address peers should use to reach this host:
// whatever the hostname resolves to, preferring a non-loopback IPv4,
// falling back to scanning the interfaces directly.
func LocalIPv4() (netip.Addr, error) {
	if hostname, err := os.Hostname(); err == nil {
		if ips, err := net.LookupIP(hostname); err == nil {
			if addr, ok := pickIPv4(ips); ok {
				return addr, nil
			}
		}
	}

	// Hostname resolution points at loopback (or nowhere) on hosts with
	// a bare /etc/hosts; ask the interfaces instead.
	ifaceAddrs, err := net.InterfaceAddrs()
	if err != nil {
		return netip.Addr{}, err
	}

	for _, ifaceAddr := range ifaceAddrs {
		ipNet, ok := ifaceAddr.(*net.IPNet)
		if !ok {
			continue
		}

		if addr, ok := toIPv4(ipNet.IP); ok && !addr.IsLoopback() {
			return addr, nil
		}
	}

	return netip.Addr{}, ErrNoAddress
}

func pickIPv4(ips []net.IP) (netip.Addr, bool) {
	for _, ip := range ips {
		if addr, ok := toIPv4(ip); ok && !addr.IsLoopback() {
			return addr, true
		}
	}

	return netip.Addr{}, false
}

func toIPv4(ip net.IP) (netip.Addr, bool) {
	addr, ok := netip.AddrFromSlice(ip)
	if !ok {
		return netip.Addr{}, false
	}

	addr = addr.Unmap()

	return addr, addr.Is4()
}
