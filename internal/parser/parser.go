// Package parser extracts titles, note types, front matter and links from
// Markdown content.
package parser

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/starford/sowilo/internal/models"
)

// ErrBinary is returned for content that is not valid UTF-8 text.
var ErrBinary = errors.New("parser: content is not valid UTF-8")

// ExtractedLink is one reference found in a document. Target is the path as
// written, with any alias, heading or block suffix removed.
type ExtractedLink struct {
	Target     string
	Text       string
	Type       models.LinkType
	LineNumber int
	Context    string
}

// Result holds the structured facts of a single document.
type Result struct {
	Title           string
	Type            models.NoteType
	FrontmatterJSON string
	Created         *time.Time
	Links           []ExtractedLink
}

// Extractor turns raw Markdown into a Result. The zero value is ready to use.
type Extractor struct{}

// New returns a Markdown extractor.
func New() *Extractor { return &Extractor{} }

// Extract parses content found at relPath (vault-relative, slash separated).
func (*Extractor) Extract(content []byte, relPath string) (*Result, error) {
	return Extract(content, relPath)
}

// Extract parses content found at relPath (vault-relative, slash separated).
func Extract(content []byte, relPath string) (*Result, error) {
	if !utf8.Valid(content) {
		return nil, fmt.Errorf("%w: %s", ErrBinary, relPath)
	}
	fm := splitFrontmatter(content)

	fmJSON, err := frontmatterJSON(fm.values)
	if err != nil {
		return nil, fmt.Errorf("parser: encode front matter of %s: %w", relPath, err)
	}

	res := &Result{
		Title:           deriveTitle(fm.values, fm.body, relPath),
		Type:            deriveType(fm.values, relPath),
		FrontmatterJSON: fmJSON,
		Created:         frontmatterTime(fm.values, "created"),
	}
	res.Links = append(res.Links, frontmatterLinks(fm.raw, fm.rawStartLine)...)
	res.Links = append(res.Links, bodyLinks(fm.body, fm.bodyStartLine, relPath)...)
	return res, nil
}

type frontmatter struct {
	values        map[string]any
	raw           []string
	rawStartLine  int
	body          []string
	bodyStartLine int
}

// splitFrontmatter separates YAML frontmatter (between leading --- delimiters)
// from the Markdown body. Line numbers are 1-based positions in the file.
// Without a closing delimiter, or with invalid YAML, the whole file is body.
func splitFrontmatter(data []byte) frontmatter {
	lines := strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n")
	whole := frontmatter{body: lines, bodyStartLine: 1}

	start := 0
	for start < len(lines) && strings.TrimSpace(lines[start]) == "" {
		start++
	}
	if start >= len(lines) || strings.TrimRight(lines[start], " \t") != "---" {
		return whole
	}
	end := -1
	for i := start + 1; i < len(lines); i++ {
		if l := strings.TrimRight(lines[i], " \t"); l == "---" || l == "..." {
			end = i
			break
		}
	}
	if end < 0 {
		return whole
	}

	raw := lines[start+1 : end]
	var values map[string]any
	if err := yaml.Unmarshal([]byte(strings.Join(raw, "\n")), &values); err != nil {
		return whole
	}
	return frontmatter{
		values:        values,
		raw:           raw,
		rawStartLine:  start + 2,
		body:          lines[end+1:],
		bodyStartLine: end + 2,
	}
}

// frontmatterJSON encodes values as a JSON object. Dates become strings and
// non-string map keys are stringified.
func frontmatterJSON(values map[string]any) (string, error) {
	if len(values) == 0 {
		return "{}", nil
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(normalize(values)); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}

func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = normalize(val)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = normalize(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = normalize(val)
		}
		return out
	case time.Time:
		return formatDate(t)
	default:
		return v
	}
}

func formatDate(t time.Time) string {
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.Format(models.DateLayout)
	}
	return t.Format(time.RFC3339)
}

var timeLayouts = []string{
	models.DateLayout,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// ParseDate accepts the date and timestamp shapes commonly written in front
// matter. Values without a zone are taken as UTC.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// frontmatterTime reads key as a date. YAML may decode dates either as
// time.Time or as plain strings.
func frontmatterTime(values map[string]any, key string) *time.Time {
	switch v := values[key].(type) {
	case time.Time:
		return &v
	case string:
		if t, ok := ParseDate(v); ok {
			return &t
		}
	}
	return nil
}

// deriveTitle returns the frontmatter "title" if present, otherwise the first
// H1 heading, otherwise the file name without extension.
func deriveTitle(fm map[string]any, body []string, relPath string) string {
	if s, ok := fm["title"].(string); ok && strings.TrimSpace(s) != "" {
		return strings.TrimSpace(s)
	}
	var fence string
	for _, line := range body {
		trimmed := strings.TrimSpace(line)
		if f, ok := fenceMarker(trimmed, fence); ok {
			fence = f
			continue
		}
		if fence != "" {
			continue
		}
		if strings.HasPrefix(trimmed, "# ") {
			if t := strings.TrimSpace(trimmed[2:]); t != "" {
				return t
			}
		}
	}
	return stem(relPath)
}

func stem(relPath string) string {
	base := path.Base(relPath)
	return strings.TrimSuffix(base, path.Ext(base))
}
