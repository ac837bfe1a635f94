package osutil

import (
	"fmt"
	"strings"
)

// VipExists, CheckAndAddVIP and CheckAndDelVIP implement the
// vip_exists/check_and_add_vip/check_and_del_vip RPC methods.
//
// The retrieved pack does not include an ip_lib module, so unlike the
// rest of this package these three are not ported from a Python
// original; they're built directly on the `ip addr` conventions the
// missing module's callers imply (a vip is a CIDR such as
// "10.0.0.10/24" added to/removed from whichever interface currently
// owns its subnet).

// VipExists reports whether vip (a CIDR, e.g. "10.0.0.10/24") is
// already assigned to any interface on this host.
func VipExists(vip string) (bool, error) {
	_, _, out := RunCmdResult("ip -o addr show")
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		for _, f := range fields {
			if f == vip {
				return true, nil
			}
		}
	}
	return false, nil
}

// vipInterface returns the interface that owns vip's subnet, by
// asking the kernel which route it would take to reach it.
func vipInterface(vip string) (string, error) {
	addr, _, found := strings.Cut(vip, "/")
	if !found {
		addr = vip
	}
	errCode, errMsg, out := RunCmdResult(fmt.Sprintf("ip route get %s", addr))
	if errCode != 0 {
		return "", fmt.Errorf("ip route get %s: %s", addr, errMsg)
	}
	fields := strings.Fields(out)
	for i, f := range fields {
		if f == "dev" && i+1 < len(fields) {
			return fields[i+1], nil
		}
	}
	return "", fmt.Errorf("could not resolve route interface for %s", vip)
}

// CheckAndAddVIP adds vip to its owning interface unless it's already
// present, then gratuitously re-announces it with arping.
func CheckAndAddVIP(vip string) error {
	exists, err := VipExists(vip)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	iface, err := vipInterface(vip)
	if err != nil {
		return err
	}
	if errCode, errMsg, _ := RunCmdResult(fmt.Sprintf("ip addr add %s dev %s", vip, iface)); errCode != 0 {
		return fmt.Errorf("ip addr add %s dev %s: %s", vip, iface, errMsg)
	}
	addr, _, _ := strings.Cut(vip, "/")
	RunCmd(fmt.Sprintf("arping -U -c 1 -I %s %s", iface, addr))
	return nil
}

// CheckAndDelVIP removes vip from whichever interface currently holds
// it, if any.
func CheckAndDelVIP(vip string) error {
	exists, err := VipExists(vip)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}
	iface, err := vipInterface(vip)
	if err != nil {
		return err
	}
	if errCode, errMsg, _ := RunCmdResult(fmt.Sprintf("ip addr del %s dev %s", vip, iface)); errCode != 0 {
		return fmt.Errorf("ip addr del %s dev %s: %s", vip, iface, errMsg)
	}
	return nil
}
