// Package output renders index statistics, search results and reindex
// progress for the command line.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"github.com/starford/sowilo/internal/models"
	"github.com/starford/sowilo/internal/search"
)

const barWidth = 30

// Writer provides formatted output for the CLI. Write errors are ignored.
type Writer struct {
	out         io.Writer
	interactive bool
}

// New creates a Writer. Progress is only drawn when out is a terminal.
func New(out io.Writer) *Writer {
	return &Writer{out: out, interactive: isTerminal(out)}
}

// NewInteractive creates a Writer that always draws progress.
func NewInteractive(out io.Writer) *Writer {
	return &Writer{out: out, interactive: true}
}

func isTerminal(out io.Writer) bool {
	f, ok := out.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Progress draws an in-place progress bar for file index of total, zero
// based. It matches indexer.ProgressFunc.
func (w *Writer) Progress(index, total int, relPath string) {
	if !w.interactive || total <= 0 {
		return
	}
	current := index + 1
	pct := float64(current) / float64(total) * 100
	_, _ = fmt.Fprintf(w.out, "\r\033[K[%s] %3.0f%% %s", renderBar(current, total, barWidth), pct, relPath)
	if current >= total {
		_, _ = fmt.Fprintln(w.out)
	}
}

func renderBar(current, total, width int) string {
	filled := current * width / total
	if filled > width {
		filled = width
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

// IndexStats prints the outcome of a full reindex.
func (w *Writer) IndexStats(s *models.IndexStats) {
	w.line("Indexed %s of %s files (%s skipped) in %s",
		humanize.Comma(int64(s.NotesIndexed)),
		humanize.Comma(int64(s.FilesFound)),
		humanize.Comma(int64(s.NotesSkipped)),
		duration(s.DurationMS))
	w.line("   %s links, %s broken",
		humanize.Comma(int64(s.LinksIndexed)),
		humanize.Comma(int64(s.BrokenLinks)))
}

// DerivedStats prints the outcome of a derived-table rebuild.
func (w *Writer) DerivedStats(s *models.DerivedStats) {
	w.line("Derived activity from %s daily notes in %s",
		humanize.Comma(int64(s.DailiesProcessed)),
		duration(s.DurationMS))
	w.line("   %s activity records, %s summaries, %s co-occurrence pairs",
		humanize.Comma(int64(s.ActivityRecords)),
		humanize.Comma(int64(s.SummariesComputed)),
		humanize.Comma(int64(s.CooccurrencePairs)))
}

// StoreStats prints index counts, with note types in name order.
func (w *Writer) StoreStats(s *models.StoreStats) {
	w.line("Notes:             %s", humanize.Comma(int64(s.Notes)))
	w.line("Links:             %s", humanize.Comma(int64(s.Links)))
	w.line("Broken links:      %s", humanize.Comma(int64(s.BrokenLinks)))
	w.line("Temporal activity: %s", humanize.Comma(int64(s.TemporalActivity)))

	types := make([]string, 0, len(s.ByType))
	for t := range s.ByType {
		types = append(types, string(t))
	}
	sort.Strings(types)
	for _, t := range types {
		w.line("   %-10s %s", t, humanize.Comma(int64(s.ByType[models.NoteType(t)])))
	}
}

// Results prints one search result per line: score, path, title and how
// the note was reached.
func (w *Writer) Results(results []search.Result) {
	if len(results) == 0 {
		w.line("No matching notes.")
		return
	}
	for _, r := range results {
		title := ""
		if r.Note.Title != "" && r.Note.Title != r.Note.Path {
			title = fmt.Sprintf(" %q", r.Note.Title)
		}
		stale := ""
		if r.Staleness != nil {
			stale = fmt.Sprintf(" staleness=%.2f", *r.Staleness)
		}
		w.line("%.3f  %s%s  [%s]%s", r.Score, r.Note.Path, title, r.Source, stale)
	}
}

// Backlinks prints the incoming links of target.
func (w *Writer) Backlinks(target string, links []models.Backlink) {
	if len(links) == 0 {
		w.line("No backlinks to %s.", target)
		return
	}
	for _, l := range links {
		if l.Line > 0 {
			w.line("%s:%d  %s", l.Source, l.Line, l.Context)
		} else {
			w.line("%s  %s", l.Source, l.Context)
		}
	}
}

// Paths prints one path per line, or empty when there are none.
func (w *Writer) Paths(paths []string, empty string) {
	if len(paths) == 0 {
		w.line("%s", empty)
		return
	}
	for _, p := range paths {
		w.line("%s", p)
	}
}

// JSON writes v as indented JSON.
func (w *Writer) JSON(v any) error {
	enc := json.NewEncoder(w.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (w *Writer) line(format string, args ...any) {
	_, _ = fmt.Fprintf(w.out, format+"\n", args...)
}

func duration(ms int64) string {
	return (time.Duration(ms) * time.Millisecond).String()
}
