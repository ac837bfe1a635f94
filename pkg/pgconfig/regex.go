package pgconfig

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

// RegexRule pairs a regex pattern with the line that should replace any
// config line matching it. Rules are tried in order, first match wins,
// mirroring a caller-ordered rule list rather than an unordered map.
type RegexRule struct {
	Pattern     string
	Replacement string
}

// ModifyType2 rewrites config_file replacing each line that matches a
// rule's pattern with its replacement, first rule to match wins. A rule
// that never matches is appended verbatim at the end when appendIfNot
// is set.
func ModifyType2(configFile string, rules []RegexRule, doBackup, appendIfNot bool) error {
	data, err := os.ReadFile(configFile)
	if err != nil {
		return fmt.Errorf("read %s: %w", configFile, err)
	}

	compiled := make([]*regexp.Regexp, len(rules))
	for i, r := range rules {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return fmt.Errorf("bad pattern %q: %w", r.Pattern, err)
		}
		compiled[i] = re
	}

	matched := make([]bool, len(rules))
	var newLines []string
	for _, raw := range splitLines(string(data)) {
		line := strings.TrimSpace(raw)
		hit := false
		for i, re := range compiled {
			if re.MatchString(line) {
				newLines = append(newLines, rules[i].Replacement)
				matched[i] = true
				hit = true
				break
			}
		}
		if !hit {
			newLines = append(newLines, line)
		}
	}

	if doBackup {
		if err := backup(configFile); err != nil {
			return err
		}
	}

	if appendIfNot {
		for i, r := range rules {
			if !matched[i] {
				newLines = append(newLines, r.Replacement)
			}
		}
	}

	return writeLines(configFile, newLines)
}
