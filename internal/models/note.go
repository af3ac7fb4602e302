// Package models defines the domain types for Sowilo.
package models

import (
	"strings"
	"time"
)

// NoteType classifies a note. Unknown front-matter types are kept verbatim
// (lower-cased), so the set below is not closed.
type NoteType string

const (
	NoteTypeNone    NoteType = "none"
	NoteTypeDaily   NoteType = "daily"
	NoteTypeWeekly  NoteType = "weekly"
	NoteTypeMonthly NoteType = "monthly"
	NoteTypeTask    NoteType = "task"
	NoteTypeProject NoteType = "project"
	NoteTypeZettel  NoteType = "zettel"
)

// ParseNoteType normalises s into a NoteType. Empty input maps to NoteTypeNone.
func ParseNoteType(s string) NoteType {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return NoteTypeNone
	}
	return NoteType(s)
}

// LinkType records how a link was written.
type LinkType string

const (
	LinkTypeWiki        LinkType = "wikilink"
	LinkTypeMarkdown    LinkType = "markdown"
	LinkTypeFrontmatter LinkType = "frontmatter"
)

// Note is one indexed document, identified by its vault-relative path.
type Note struct {
	ID              int64      `json:"id"`
	Path            string     `json:"path"`
	Type            NoteType   `json:"note_type"`
	Title           string     `json:"title"`
	Created         *time.Time `json:"created,omitempty"`
	Modified        time.Time  `json:"modified"`
	FrontmatterJSON string     `json:"frontmatter_json"`
	ContentHash     string     `json:"content_hash"`
}

// Link is a directed reference from a note to another note or to an
// unresolved path. TargetID is nil until resolution fills it.
// Empty LinkText/Context and a zero LineNumber are stored as NULL.
type Link struct {
	ID         int64    `json:"id"`
	SourceID   int64    `json:"source_id"`
	TargetID   *int64   `json:"target_id,omitempty"`
	TargetPath string   `json:"target_path"`
	LinkText   string   `json:"link_text,omitempty"`
	Type       LinkType `json:"link_type"`
	Context    string   `json:"context,omitempty"`
	LineNumber int      `json:"line_number,omitempty"`
}

// Resolved reports whether the link points at a known note.
func (l Link) Resolved() bool {
	return l.TargetID != nil
}

// NoteFilter narrows QueryNotes. Zero values mean "no constraint".
type NoteFilter struct {
	Type           NoteType
	PathPrefix     string
	ModifiedAfter  time.Time
	ModifiedBefore time.Time
	Limit          int
	Offset         int
}

// FileEntry is one document reported by a walker.
type FileEntry struct {
	AbsPath  string    `json:"abs_path"`
	RelPath  string    `json:"rel_path"`
	Modified time.Time `json:"modified"`
}

// Backlink is an incoming link seen from its target: the linking note's
// path plus where in it the link sits.
type Backlink struct {
	Source  string `json:"source"`
	Line    int    `json:"line,omitempty"`
	Text    string `json:"text,omitempty"`
	Context string `json:"context,omitempty"`
}
