// Package domain turns raw input lines into the bare host names the
// resolver queries.
package domain

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/lc/ipfreq/internal/filesys"
)

var schemes = [...]string{"http://", "https://"}

// StripScheme removes one leading "http://" or "https://" from line.
// The match is case-sensitive; any other input is returned unchanged.
func StripScheme(line string) string {
	for _, s := range schemes {
		if strings.HasPrefix(line, s) {
			return line[len(s):]
		}
	}
	return line
}

// ReadList reads newline-delimited URLs or domains from r and returns them
// normalized, in input order. Surrounding whitespace is trimmed and blank
// lines are dropped. Duplicates are kept: every line is one lookup.
func ReadList(r io.Reader) ([]string, error) {
	var out []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		out = append(out, StripScheme(line))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading domain list: %w", err)
	}
	return out, nil
}

// Load opens path through fsys and reads the domain list from it.
func Load(fsys filesys.ReadFS, path string) ([]string, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening domain list: %w", err)
	}
	defer f.Close()

	return ReadList(f)
}
