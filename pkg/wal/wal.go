// Package wal implements the PostgreSQL process and WAL-segment helpers
// the controller uses to decide whether a standby is safe to promote
// and to catch a standby's WAL stream up from a primary directly over
// RPC, bypassing streaming replication.
//
// Grounded on original_source/lib/pg_mgr.py.
package wal

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// walNameLen is the length of the fixed 24-character timeline+log-id+segment
// filename PostgreSQL gives WAL segments.
const walNameLen = 24

// IsRunning reports whether the postmaster for pgdata is alive, by
// reading its pid file and checking /proc/<pid>/comm names "postgres".
func IsRunning(pgdata string) bool {
	pidPath := filepath.Join(pgdata, "postmaster.pid")
	data, err := os.ReadFile(pidPath)
	if err != nil {
		return false
	}
	lines := strings.SplitN(string(data), "\n", 2)
	if len(lines) == 0 {
		return false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(lines[0]))
	if err != nil {
		return false
	}
	commPath := fmt.Sprintf("/proc/%d/comm", pid)
	comm, err := os.ReadFile(commPath)
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(comm)) == "postgres"
}

// WalDir returns pgdata's WAL directory, trying the modern pg_wal name
// first and falling back to the pre-10 pg_xlog name.
func WalDir(pgdata string) (string, error) {
	modern := filepath.Join(pgdata, "pg_wal")
	if st, err := os.Stat(modern); err == nil && st.IsDir() {
		return modern, nil
	}
	legacy := filepath.Join(pgdata, "pg_xlog")
	if st, err := os.Stat(legacy); err == nil && st.IsDir() {
		return legacy, nil
	}
	return "", fmt.Errorf("wal path under %s not exist", pgdata)
}

// IsValidWAL reports whether data (the first bytes of walFile) is a
// well-formed WAL segment header whose recorded LSN is consistent with
// the segment's own filename: walFileSize must be a power of two, and
// the filename's log-id/segment suffix must match what that LSN and
// segment size imply.
func IsValidWAL(walFile string, data []byte) bool {
	if len(walFile) < walNameLen || len(data) < 40 {
		return false
	}
	onlyFileName := walFile[len(walFile)-walNameLen:]

	walFileSize := binary.LittleEndian.Uint32(data[32:36])
	if walFileSize == 0 || (walFileSize-1)&walFileSize != 0 {
		return false
	}

	lsn := binary.LittleEndian.Uint64(data[8:16])
	walLogID := lsn >> 32
	walLogSeg := (lsn & 0xFFFFFFFF) / uint64(walFileSize)
	target := fmt.Sprintf("%08X%08X", walLogID, walLogSeg)
	return onlyFileName[8:24] == target
}

func listSegmentFiles(walDir string) ([]string, error) {
	entries, err := os.ReadDir(walDir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		name := e.Name()
		if len(name) == walNameLen && isHex(name) {
			out = append(out, filepath.Join(walDir, name))
		}
	}
	sort.Strings(out)
	return out, nil
}

func isHex(s string) bool {
	for _, r := range s {
		if !((r >= '0' && r <= '9') || (r >= 'A' && r <= 'F') || (r >= 'a' && r <= 'f')) {
			return false
		}
	}
	return true
}

func readHeader(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	buf := make([]byte, 512)
	n, err := f.Read(buf)
	if err != nil && n == 0 {
		return nil, err
	}
	return buf[:n], nil
}

// GetLastValidWALFile returns the lexicographically last valid WAL
// segment in pgdata's WAL directory.
func GetLastValidWALFile(pgdata string) (string, error) {
	walDir, err := WalDir(pgdata)
	if err != nil {
		return "", err
	}
	files, err := listSegmentFiles(walDir)
	if err != nil {
		return "", fmt.Errorf("list %s: %w", walDir, err)
	}

	var last string
	for _, f := range files {
		data, err := readHeader(f)
		if err != nil {
			continue
		}
		if IsValidWAL(f, data) {
			last = f
		}
	}
	if last == "" {
		return "", fmt.Errorf("can not find last wal in local")
	}
	return last, nil
}

// GetValidWALListAtOrAfter returns every valid WAL segment in pgdata
// whose 16-character log-id/segment suffix is lexicographically at or
// after pt. Despite its external RPC method name
// (pg_get_valid_wal_list_le_pt, kept for wire compatibility), the
// comparison is pt <= filename, i.e. "at or after", not "less than or
// equal".
func GetValidWALListAtOrAfter(pgdata, pt string) ([]string, error) {
	walDir, err := WalDir(pgdata)
	if err != nil {
		return nil, err
	}
	files, err := listSegmentFiles(walDir)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", walDir, err)
	}

	var out []string
	for _, f := range files {
		name := filepath.Base(f)
		suffix := name[len(name)-16:]
		if suffix < pt {
			continue
		}
		data, err := readHeader(f)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", f, err)
		}
		if IsValidWAL(f, data) {
			out = append(out, f)
		}
	}
	return out, nil
}
