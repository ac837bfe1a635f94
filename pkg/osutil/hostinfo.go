package osutil

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// GetUnitSize parses a K/M/G/T-suffixed size string (e.g. "512M") into
// a byte count, the way the config file's size-valued settings are
// written.
func GetUnitSize(s string) int64 {
	if len(s) == 0 {
		return 0
	}
	last := s[len(s)-1]
	if last >= '0' && last <= '9' {
		n, _ := strconv.ParseInt(s, 10, 64)
		return n
	}
	var unit int64
	switch last | 0x20 {
	case 't':
		unit = 1024 * 1024 * 1024 * 1024
	case 'g':
		unit = 1024 * 1024 * 1024
	case 'm':
		unit = 1024 * 1024
	case 'k':
		unit = 1024
	default:
		unit = 1
	}
	f, _ := strconv.ParseFloat(s[:len(s)-1], 64)
	return int64(f * float64(unit))
}

// GetCPUInfo parses /proc/cpuinfo into one map per logical processor,
// keyed by processor index, each holding its own "key: value" fields.
func GetCPUInfo() (map[string]map[string]string, error) {
	f, err := os.Open("/proc/cpuinfo")
	if err != nil {
		return nil, fmt.Errorf("open /proc/cpuinfo: %w", err)
	}
	defer f.Close()

	cpus := map[string]map[string]string{}
	var cur map[string]string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		cells := strings.SplitN(line, ":", 2)
		if len(cells) != 2 {
			continue
		}
		key := strings.TrimSpace(cells[0])
		val := strings.TrimSpace(cells[1])
		if key == "processor" {
			cur = map[string]string{}
			cpus[val] = cur
			continue
		}
		if cur != nil {
			cur[key] = val
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read /proc/cpuinfo: %w", err)
	}
	return cpus, nil
}

// GetMemSize returns the host's total memory in bytes, parsed from the
// first line of /proc/meminfo.
func GetMemSize() (int64, error) {
	data, err := os.ReadFile("/proc/meminfo")
	if err != nil {
		return 0, fmt.Errorf("read /proc/meminfo: %w", err)
	}
	lines := strings.SplitN(string(data), "\n", 2)
	cells := strings.Fields(lines[0])
	if len(cells) < 3 {
		return 0, fmt.Errorf("malformed /proc/meminfo")
	}
	n, err := strconv.ParseInt(cells[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed /proc/meminfo size: %w", err)
	}
	unitChar := strings.ToLower(cells[2])[:1]
	var unit int64 = 1
	switch unitChar {
	case "t":
		unit = 1024 * 1024 * 1024 * 1024
	case "g":
		unit = 1024 * 1024 * 1024
	case "m":
		unit = 1024 * 1024
	case "k":
		unit = 1024
	}
	return n * unit, nil
}

// GetOSType returns "<id> <version_id>" parsed from /etc/os-release,
// or "unknow_os" if the file is missing or lacks those two keys.
func GetOSType() string {
	data, err := os.ReadFile("/etc/os-release")
	if err != nil {
		return "unknow_os"
	}
	vals := map[string]string{}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		pos := strings.IndexByte(line, '=')
		if pos < 0 {
			continue
		}
		key := line[:pos]
		val := line[pos+1:]
		if len(val) >= 2 && val[0] == '"' && val[len(val)-1] == '"' {
			val = val[1 : len(val)-1]
		}
		vals[key] = val
	}
	id, ok1 := vals["ID"]
	version, ok2 := vals["VERSION_ID"]
	if !ok1 || !ok2 {
		return "unknow_os"
	}
	return fmt.Sprintf("%s %s", id, version)
}

// CheckPortUsed implements check_port_used by scanning /proc/net/tcp
// and /proc/net/tcp6 for any socket whose local port is port, whatever
// its TCP state (listening, established, TIME_WAIT, ...).
func CheckPortUsed(port int) (bool, error) {
	for _, path := range []string{"/proc/net/tcp", "/proc/net/tcp6"} {
		used, err := scanProcNetTCP(path, port)
		if err != nil {
			return false, err
		}
		if used {
			return true, nil
		}
	}
	return false, nil
}

func scanProcNetTCP(path string, port int) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Scan() // header line
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		localAddr := fields[1]
		cells := strings.Split(localAddr, ":")
		if len(cells) != 2 {
			continue
		}
		p, err := strconv.ParseInt(cells[1], 16, 32)
		if err != nil {
			continue
		}
		if int(p) == port {
			return true, nil
		}
	}
	return false, scanner.Err()
}

// GetDataDiskUse implements get_data_disk_use(dir): total and
// available bytes of the filesystem backing dir.
type DiskUse struct {
	TotalBytes int64
	FreeBytes  int64
}

func GetDataDiskUse(dir string) (DiskUse, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(dir, &st); err != nil {
		return DiskUse{}, fmt.Errorf("statfs %s: %w", dir, err)
	}
	blockSize := int64(st.Bsize)
	return DiskUse{
		TotalBytes: int64(st.Blocks) * blockSize,
		FreeBytes:  int64(st.Bavail) * blockSize,
	}, nil
}

// GetPgBinPathList implements get_pg_bin_path_list(globs): expands a
// list of shell glob patterns (e.g. "/usr/pgsql-*/bin") to the
// directories that exist and contain a "pg_ctl" binary.
func GetPgBinPathList(globs []string) ([]string, error) {
	var out []string
	for _, g := range globs {
		matches, err := filepath.Glob(g)
		if err != nil {
			return nil, fmt.Errorf("bad glob %q: %w", g, err)
		}
		for _, m := range matches {
			if _, err := os.Stat(filepath.Join(m, "pg_ctl")); err == nil {
				out = append(out, m)
			}
		}
	}
	return out, nil
}

// EnvIssue is one missing binary check_os_env reports, naming the
// package that would provide it.
type EnvIssue struct {
	Message    string
	Suggestion string
}

// CheckOSEnv implements check_os_env: verifies the external binaries
// VIP and mount handling shell out to are present, reporting every
// missing one rather than failing on the first.
func CheckOSEnv() []EnvIssue {
	var issues []EnvIssue
	if !anyExists("/usr/sbin/ip", "/sbin/ip") {
		issues = append(issues, EnvIssue{"ip not found", "install the iproute package"})
	}
	if !anyExists("/usr/sbin/arping") {
		issues = append(issues, EnvIssue{"arping not found", "install the iputils package"})
	}
	if !anyExists("/usr/sbin/fuser", "/sbin/fuser") {
		issues = append(issues, EnvIssue{"fuser not found", "install the psmisc package"})
	}
	return issues
}

func anyExists(paths ...string) bool {
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return true
		}
	}
	return false
}
