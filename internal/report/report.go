// Package report turns the final frequency table into the text report
// written at the end of a run.
package report

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"github.com/lc/ipfreq/internal/filesys"
	"github.com/lc/ipfreq/internal/tally"
)

const (
	// DefaultMinCount is the threshold an IP's count must exceed to be reported.
	DefaultMinCount = 2

	_fileMode = 0o644
	_dirMode  = 0o755
)

// Entry is a single report line.
type Entry struct {
	IP    string
	Count int
}

// Build sorts counts by descending count and keeps those strictly above
// minCount. Equal counts keep their input order.
func Build(counts []tally.Count, minCount int) []Entry {
	entries := make([]Entry, 0, len(counts))
	for _, c := range counts {
		if c.Count > minCount {
			entries = append(entries, Entry{IP: c.IP, Count: c.Count})
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Count > entries[j].Count
	})
	return entries
}

// Format renders entries as "address:IP | count:N" lines.
func Format(entries []Entry) []byte {
	var buf bytes.Buffer
	for _, e := range entries {
		fmt.Fprintf(&buf, "address:%s | count:%d\n", e.IP, e.Count)
	}
	return buf.Bytes()
}

// Writer persists reports to disk.
type Writer struct {
	fs       filesys.FileOps
	minCount int
}

// NewWriter returns a Writer that reports IPs seen more than minCount times.
func NewWriter(fs filesys.FileOps, minCount int) *Writer {
	return &Writer{fs: fs, minCount: minCount}
}

// Write builds the report from counts and replaces the file at path with it,
// creating missing parent directories first. It returns the entries written.
func (w *Writer) Write(path string, counts []tally.Count) ([]Entry, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := w.fs.MkdirAll(dir, _dirMode); err != nil {
			return nil, fmt.Errorf("creating report directory: %w", err)
		}
	}

	entries := Build(counts, w.minCount)
	if err := filesys.AtomicWrite(w.fs, path, Format(entries), os.FileMode(_fileMode)); err != nil {
		return nil, fmt.Errorf("writing report %s: %w", path, err)
	}
	return entries, nil
}

// RenderTable prints up to limit entries as a table. A limit of zero or
// less prints every entry.
func RenderTable(out io.Writer, entries []Entry, limit int) {
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}

	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"#", "Address", "Count"})
	table.SetHeaderColor(
		tablewriter.Colors{tablewriter.Bold, tablewriter.FgHiCyanColor},
		tablewriter.Colors{tablewriter.Bold, tablewriter.FgHiCyanColor},
		tablewriter.Colors{tablewriter.Bold, tablewriter.FgHiCyanColor},
	)
	table.SetBorder(false)
	table.SetColumnAlignment([]int{tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_LEFT, tablewriter.ALIGN_RIGHT})

	for i, e := range entries {
		table.Append([]string{strconv.Itoa(i + 1), e.IP, strconv.Itoa(e.Count)})
	}
	table.Render()
}
