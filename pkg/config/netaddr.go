package config

import (
	"fmt"
	"net"
	"sort"
)

// ResolveManagementIP picks this host's management IP among all non-loopback
// IPv4 addresses bound to local interfaces. With a single candidate address,
// that address is used directly. With more than one (multi-homed host),
// mgrNetwork (the configured "mgr_network" CIDR-like base address, e.g.
// "192.168.1.0") selects the candidate whose address, masked by its own
// interface netmask, equals mgrNetwork (the first such address in sorted
// order if several match); addresses with a /32 mask
// are assumed to be virtual IPs and are ignored as candidates.
func ResolveManagementIP(mgrNetwork string) (string, error) {
	candidates, err := localIPv4Candidates()
	if err != nil {
		return "", err
	}
	if len(candidates) == 0 {
		return "", fmt.Errorf("no non-loopback IPv4 address found on this host")
	}
	if len(candidates) == 1 {
		for ip := range candidates {
			return ip, nil
		}
	}

	if mgrNetwork == "" {
		ips := sortedKeys(candidates)
		return "", fmt.Errorf("this machine has more than one ip(%v), must set mgr_network in clup-agent.conf", ips)
	}

	networkNum, err := ipv4ToUint32(mgrNetwork)
	if err != nil {
		return "", fmt.Errorf("invalid mgr_network %q: %w", mgrNetwork, err)
	}

	for _, ip := range sortedKeys(candidates) {
		maskLen := candidates[ip]
		mask := net.CIDRMask(maskLen, 32)
		maskNum := ipv4MaskToUint32(mask)
		ipNum, err := ipv4ToUint32(ip)
		if err != nil {
			continue
		}
		if ipNum&maskNum == networkNum {
			return ip, nil
		}
	}
	ips := sortedKeys(candidates)
	return "", fmt.Errorf("mgr_network %q does not match any local address %v", mgrNetwork, ips)
}

// localIPv4Candidates returns non-loopback, non-/32 IPv4 addresses bound to
// this host's interfaces, mapped to their interface prefix length.
func localIPv4Candidates() (map[string]int, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return nil, fmt.Errorf("list interface addresses: %w", err)
	}
	out := make(map[string]int)
	for _, a := range addrs {
		ipNet, ok := a.(*net.IPNet)
		if !ok {
			continue
		}
		ip4 := ipNet.IP.To4()
		if ip4 == nil {
			continue
		}
		if ip4.IsLoopback() {
			continue
		}
		ones, bits := ipNet.Mask.Size()
		if bits != 32 {
			continue
		}
		if ones == 32 {
			// Almost certainly a VIP, not a real interface address.
			continue
		}
		out[ip4.String()] = ones
	}
	return out, nil
}

func ipv4ToUint32(s string) (uint32, error) {
	ip := net.ParseIP(s)
	if ip == nil {
		return 0, fmt.Errorf("not an IPv4 address: %q", s)
	}
	ip4 := ip.To4()
	if ip4 == nil {
		return 0, fmt.Errorf("not an IPv4 address: %q", s)
	}
	return uint32(ip4[0])<<24 | uint32(ip4[1])<<16 | uint32(ip4[2])<<8 | uint32(ip4[3]), nil
}

func ipv4MaskToUint32(mask net.IPMask) uint32 {
	return uint32(mask[0])<<24 | uint32(mask[1])<<16 | uint32(mask[2])<<8 | uint32(mask[3])
}

func sortedKeys(m map[string]int) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
