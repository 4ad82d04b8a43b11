package archive

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Descriptor is the flat key/value content of a JDK release file.
type Descriptor map[string]string

// ParseDescriptor reads KEY="VALUE" lines. One pair of surrounding double
// quotes is stripped from each value; blank lines, comments and lines
// without a key are skipped.
func ParseDescriptor(r io.Reader) (Descriptor, error) {
	out := Descriptor{}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "!") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		out[key] = unquote(strings.TrimSpace(value))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read release descriptor: %w", err)
	}
	return out, nil
}

func unquote(value string) string {
	if len(value) >= 2 && strings.HasPrefix(value, `"`) && strings.HasSuffix(value, `"`) {
		return value[1 : len(value)-1]
	}
	return value
}
