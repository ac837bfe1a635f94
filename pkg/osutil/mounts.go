package osutil

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// CheckIsMount implements check_is_mount: reports whether mountPath is
// the mount point of some filesystem, by scanning /proc/mounts.
func CheckIsMount(mountPath string) (bool, error) {
	f, err := os.Open("/proc/mounts")
	if err != nil {
		return false, fmt.Errorf("open /proc/mounts: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		if fields[1] == mountPath {
			return true, nil
		}
	}
	return false, scanner.Err()
}

// MountDev implements mount_dev.
func MountDev(devPath, mountPath string) error {
	errCode, errMsg, _ := RunCmdResult(fmt.Sprintf("mount %s %s", devPath, mountPath))
	if errCode != 0 {
		return fmt.Errorf("mount %s on %s: %s", devPath, mountPath, errMsg)
	}
	return nil
}

// UmountDev implements umount_dev: force-kills any process still using
// mountPath before unmounting, matching the source's fuser -km step.
func UmountDev(mountPath string) error {
	mounted, err := CheckIsMount(mountPath)
	if err != nil {
		return err
	}
	if !mounted {
		return nil
	}
	RunCmd(fmt.Sprintf("fuser -km %s", mountPath))
	errCode, errMsg, _ := RunCmdResult(fmt.Sprintf("umount %s", mountPath))
	if errCode != 0 {
		return fmt.Errorf("umount %s: %s", mountPath, errMsg)
	}
	return nil
}

// CheckAndMount mounts devPath at mountPath only if it isn't already
// mounted there.
func CheckAndMount(devPath, mountPath string) error {
	mounted, err := CheckIsMount(mountPath)
	if err != nil {
		return err
	}
	if mounted {
		return nil
	}
	return MountDev(devPath, mountPath)
}
