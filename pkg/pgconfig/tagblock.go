package pgconfig

import (
	"fmt"
	"os"
	"strings"
)

func tagLines(tag string) (begin, end string) {
	return fmt.Sprintf("%s **do not modify** begin", tag), fmt.Sprintf("%s **do not modify** end", tag)
}

// splitByTag separates content's lines into head (everything before the
// begin tag), the tagged block's own lines are discarded by the caller,
// and tail (everything after the end tag). found reports whether both
// tags were present.
func splitByTag(content, tag string) (head, tail []string, found bool) {
	beginTag, endTag := tagLines(tag)
	inBlock, pastBlock := false, false
	for _, line := range strings.Split(content, "\n") {
		switch {
		case line == beginTag:
			inBlock = true
			continue
		case line == endTag:
			pastBlock = true
			continue
		}
		if !inBlock {
			head = append(head, line)
		} else if pastBlock {
			tail = append(tail, line)
		}
	}
	return head, tail, inBlock && pastBlock
}

// SetTagContent replaces the block of fileName delimited by tag's
// begin/end sentinels with setContents, appending a new tagged block at
// the end of the file if the tag isn't present yet.
func SetTagContent(fileName, tag, setContents string) error {
	data, err := os.ReadFile(fileName)
	if err != nil {
		return fmt.Errorf("read %s: %w", fileName, err)
	}
	beginTag, endTag := tagLines(tag)
	head, tail, _ := splitByTag(string(data), tag)

	var b strings.Builder
	b.WriteString(strings.Join(head, "\n"))
	b.WriteString("\n")
	b.WriteString(beginTag)
	b.WriteString("\n")
	b.WriteString(setContents)
	b.WriteString("\n")
	b.WriteString(endTag)
	b.WriteString("\n")
	if len(tail) > 0 {
		b.WriteString(strings.Join(tail, "\n"))
		b.WriteString("\n")
	}
	return os.WriteFile(fileName, []byte(b.String()), 0o644)
}

// SetTagInHead behaves like SetTagContent, except a brand-new tagged
// block (one not already present in the file) is inserted at the very
// start of the file instead of appended at the end.
func SetTagInHead(fileName, tag, setContents string) error {
	data, err := os.ReadFile(fileName)
	if err != nil {
		return fmt.Errorf("read %s: %w", fileName, err)
	}
	beginTag, endTag := tagLines(tag)
	head, tail, found := splitByTag(string(data), tag)

	var b strings.Builder
	if !found {
		b.WriteString(beginTag)
		b.WriteString("\n")
		b.WriteString(setContents)
		b.WriteString("\n")
		b.WriteString(endTag)
		b.WriteString("\n")
		b.WriteString(strings.Join(head, "\n"))
	} else {
		if len(head) > 0 {
			b.WriteString(strings.Join(head, "\n"))
			b.WriteString("\n")
		}
		b.WriteString(beginTag)
		b.WriteString("\n")
		b.WriteString(setContents)
		b.WriteString("\n")
		b.WriteString(endTag)
		b.WriteString("\n")
		if len(tail) > 0 {
			b.WriteString(strings.Join(tail, "\n"))
		}
	}
	return os.WriteFile(fileName, []byte(b.String()), 0o644)
}
