package pgconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ReadItems reads an equals-delimited config file (postgresql.conf
// style), returning the values of the keys named in wantItems, or of
// every key when readAll is set. A key that is present in the file but
// only as a commented-out line ("#key = ...") is reported with an
// empty value, the same way the source distinguishes "present but
// disabled" from "absent entirely". "include <file>" directives are
// followed recursively, relative to configFile's directory; a child
// file's values take precedence over anything already collected for
// the same key.
func ReadItems(configFile string, wantItems []string, readAll bool) (map[string]string, error) {
	want := make(map[string]bool, len(wantItems))
	for _, k := range wantItems {
		want[k] = true
	}
	return readItems(configFile, want, readAll)
}

func readItems(configFile string, want map[string]bool, readAll bool) (map[string]string, error) {
	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", configFile, err)
	}

	items := map[string]string{}
	for _, raw := range splitLines(string(data)) {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "include ") {
			includeFile := strings.TrimSpace(line[len("include "):])
			includeFile = strings.Trim(includeFile, "'")
			if !filepath.IsAbs(includeFile) {
				includeFile = filepath.Join(filepath.Dir(configFile), includeFile)
			}
			child, err := readItems(includeFile, want, readAll)
			if err != nil {
				return nil, err
			}
			for k, v := range child {
				items[k] = v
			}
			continue
		}

		cells := strings.SplitN(line, "=", 2)
		if len(cells) < 2 {
			continue
		}
		name := strings.TrimSpace(cells[0])
		if name == "" {
			continue
		}
		if name[0] == '#' {
			commented := strings.TrimSpace(name[1:])
			if _, already := items[commented]; already {
				continue
			}
			if want[commented] {
				items[commented] = ""
			}
			continue
		}
		if want[name] || readAll {
			val := strings.TrimSpace(strings.SplitN(cells[1], "#", 2)[0])
			items[name] = val
		}
	}
	return items, nil
}
