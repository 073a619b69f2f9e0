package jarl

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Manifest holds the main attributes of a JAR manifest (META-INF/MANIFEST.MF).
//
// Only the main section is retained; per-entry sections are skipped.
type Manifest map[string]string

// Get returns the value of the named main attribute, or "" if absent.
// Attribute names are case-insensitive per the JAR specification.
func (m Manifest) Get(name string) string {
	if v, ok := m[name]; ok {
		return v
	}
	for k, v := range m {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

// ParseManifest reads the main section of a JAR manifest.
//
// A manifest is line-oriented; logical lines longer than 72 bytes are broken
// into continuation lines starting with a single space, which are folded
// back here. The main section ends at the first blank line.
func ParseManifest(r io.Reader) (Manifest, error) {
	m := Manifest{}

	var key, value string
	flush := func() {
		if key != "" {
			m[key] = value
		}
		key, value = "", ""
	}

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSuffix(sc.Text(), "\r")
		if line == "" {
			break
		}

		if strings.HasPrefix(line, " ") {
			if key == "" {
				return nil, fmt.Errorf("parse manifest: continuation line without a preceding attribute: %q", line)
			}
			value += line[1:]
			continue
		}

		flush()
		i := strings.Index(line, ":")
		if i < 1 {
			return nil, fmt.Errorf("parse manifest: invalid attribute line: %q", line)
		}
		key, value = line[:i], strings.TrimPrefix(line[i+1:], " ")
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}

	flush()
	return m, nil
}
