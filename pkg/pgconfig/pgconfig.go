// Package pgconfig edits and reads the key=value and key-space-value
// style configuration files PostgreSQL and the surrounding OS use
// (postgresql.conf, recovery.conf, /etc/sysctl.conf, limits.conf and
// the like), plus the tagged-block style used for shell profile
// snippets.
//
// Grounded on original_source/lib/set_cfg_lib.py.
package pgconfig

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"golang.org/x/sys/unix"
)

// DeliType selects how ModifyType1 splits a line into a key and value.
type DeliType int

const (
	// DeliEquals splits on "=", producing "key = value" lines.
	DeliEquals DeliType = 1
	// DeliSpace splits on whitespace, producing "key value" lines.
	DeliSpace DeliType = 2
)

// backup copies path to path.<timestamp>, preserving its owner and mode
// the same way the source's shutil.copy + os.chown/os.chmod pair does.
func backup(path string) error {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	backupPath := fmt.Sprintf("%s.%s", path, time.Now().Format("20060102150405"))
	if err := os.WriteFile(backupPath, data, os.FileMode(st.Mode&0o7777)); err != nil {
		return fmt.Errorf("write backup %s: %w", backupPath, err)
	}
	if err := os.Chown(backupPath, int(st.Uid), int(st.Gid)); err != nil {
		return fmt.Errorf("chown backup %s: %w", backupPath, err)
	}
	if err := os.Chmod(backupPath, os.FileMode(st.Mode&0o7777)); err != nil {
		return fmt.Errorf("chmod backup %s: %w", backupPath, err)
	}
	return nil
}

// ModifyType1 rewrites config_file so each key in items has the given
// value, following the same three rules as the source:
//  1. if only a commented-out "#key = ..." line exists, the new line is
//     inserted directly after it;
//  2. if a live line for the key already exists, it is replaced in
//     place (even when a commented line for the same key also exists);
//  3. keys matching neither are appended at the end, sorted by name.
func ModifyType1(configFile string, items map[string]string, deli DeliType, doBackup bool) error {
	data, err := os.ReadFile(configFile)
	if err != nil {
		return fmt.Errorf("read %s: %w", configFile, err)
	}
	origLines := splitLines(string(data))

	liveLineOf := map[int]string{}
	liveIdxOf := map[string]int{}
	commentLineOf := map[int]string{}
	commentIdxOf := map[string]int{}

	for i, raw := range origLines {
		line := strings.TrimSpace(raw)
		cells := splitCells(line, deli)
		if len(cells) < 2 {
			continue
		}
		name := strings.TrimSpace(cells[0])
		if name == "" {
			continue
		}
		if name[0] == '#' {
			commented := strings.TrimSpace(name[1:])
			if _, ok := items[commented]; ok {
				commentLineOf[i] = commented
				commentIdxOf[commented] = i
			}
			continue
		}
		if _, ok := items[name]; ok {
			liveLineOf[i] = name
			liveIdxOf[name] = i
		}
	}

	// a live line for a key wins over a commented one: drop the
	// comment-line insertion point so the live line gets replaced
	// instead of a duplicate being added after the comment.
	for name, idx := range commentIdxOf {
		if _, ok := liveIdxOf[name]; ok {
			delete(commentLineOf, idx)
		}
	}

	var newLines []string
	for i, raw := range origLines {
		line := strings.TrimSpace(raw)
		switch {
		case liveLineOf[i] != "":
			name := liveLineOf[i]
			newLines = append(newLines, formatItem(name, items[name], deli))
		case commentLineOf[i] != "":
			newLines = append(newLines, line)
			name := commentLineOf[i]
			newLines = append(newLines, formatItem(name, items[name], deli))
		default:
			newLines = append(newLines, line)
		}
	}

	var missing []string
	for name := range items {
		if _, ok := liveIdxOf[name]; ok {
			continue
		}
		if _, ok := commentIdxOf[name]; ok {
			continue
		}
		missing = append(missing, name)
	}
	sort.Strings(missing)
	for _, name := range missing {
		newLines = append(newLines, formatItem(name, items[name], deli))
	}

	if doBackup {
		if err := backup(configFile); err != nil {
			return err
		}
	}
	return writeLines(configFile, newLines)
}

func formatItem(name, value string, deli DeliType) string {
	if deli == DeliEquals {
		return fmt.Sprintf("%s = %s", name, value)
	}
	return fmt.Sprintf("%s %s", name, value)
}

func splitCells(line string, deli DeliType) []string {
	if deli == DeliEquals {
		return strings.Split(line, "=")
	}
	return strings.Fields(line)
}

// splitLines mirrors Python's readlines(): a trailing newline at EOF
// does not produce an extra empty final line.
func splitLines(content string) []string {
	lines := strings.Split(content, "\n")
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}
	return lines
}

func writeLines(path string, lines []string) error {
	content := strings.Join(lines, "\n") + "\n"
	return os.WriteFile(path, []byte(content), 0o644)
}
