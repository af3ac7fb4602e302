package parser

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/sowilo/internal/models"
)

func TestExtract_FrontmatterAndTitle(t *testing.T) {
	input := []byte("---\ntitle: Hello\ntype: Project\ncreated: 2025-02-03\ntags:\n  - go\n---\n# Heading\nBody text.\n")
	r, err := Extract(input, "notes/hello.md")
	require.NoError(t, err)

	assert.Equal(t, "Hello", r.Title)
	assert.Equal(t, models.NoteTypeProject, r.Type)
	require.NotNil(t, r.Created)
	assert.Equal(t, "2025-02-03", r.Created.Format(models.DateLayout))

	var fm map[string]any
	require.NoError(t, json.Unmarshal([]byte(r.FrontmatterJSON), &fm))
	assert.Equal(t, "2025-02-03", fm["created"])
	assert.Equal(t, []any{"go"}, fm["tags"])
}

func TestExtract_NoFrontmatter(t *testing.T) {
	r, err := Extract([]byte("# Just a heading\nSome text.\n"), "a.md")
	require.NoError(t, err)
	assert.Equal(t, "{}", r.FrontmatterJSON)
	assert.Equal(t, "Just a heading", r.Title)
	assert.Nil(t, r.Created)
}

func TestExtract_InvalidYAMLFallback(t *testing.T) {
	r, err := Extract([]byte("---\n: invalid: yaml: {{{\n---\nBody [[x]]\n"), "a.md")
	require.NoError(t, err)
	assert.Equal(t, "{}", r.FrontmatterJSON)
	require.Len(t, r.Links, 1)
	assert.Equal(t, 4, r.Links[0].LineNumber)
}

func TestExtract_UnclosedFrontmatterIsBody(t *testing.T) {
	r, err := Extract([]byte("---\ntitle: nope\n# Real\n"), "a.md")
	require.NoError(t, err)
	assert.Equal(t, "Real", r.Title)
}

func TestExtract_Binary(t *testing.T) {
	_, err := Extract([]byte{0xff, 0xfe, 0x00}, "blob.md")
	assert.ErrorIs(t, err, ErrBinary)
}

func TestDeriveTitle_Fallbacks(t *testing.T) {
	r, err := Extract([]byte("some text\n```\n# not a title\n```\n# My Heading\nmore"), "x.md")
	require.NoError(t, err)
	assert.Equal(t, "My Heading", r.Title)

	r, err = Extract([]byte("no heading here\n"), "dir/Some Note.md")
	require.NoError(t, err)
	assert.Equal(t, "Some Note", r.Title)
}

func TestExtract_Wikilinks(t *testing.T) {
	body := "See [[Note A]] and [[Note B|alias]].\n\nAlso [[Note A#Section]] and [[#local]] and [[ ]]."
	r, err := Extract([]byte(body), "src.md")
	require.NoError(t, err)
	require.Len(t, r.Links, 3)

	assert.Equal(t, ExtractedLink{
		Target: "Note A", Type: models.LinkTypeWiki, LineNumber: 1,
		Context: "See [[Note A]] and [[Note B|alias]].",
	}, r.Links[0])
	assert.Equal(t, "Note B", r.Links[1].Target)
	assert.Equal(t, "alias", r.Links[1].Text)
	assert.Equal(t, "Note A", r.Links[2].Target)
	assert.Equal(t, 3, r.Links[2].LineNumber)
}

func TestExtract_SkipsFencedCode(t *testing.T) {
	body := "[[real]]\n```go\n[[fake]]\n```\n~~~\n[also](fake.md)\n~~~\n[[after]]"
	r, err := Extract([]byte(body), "a.md")
	require.NoError(t, err)
	var targets []string
	for _, l := range r.Links {
		targets = append(targets, l.Target)
	}
	assert.Equal(t, []string{"real", "after"}, targets)
}

func TestExtract_MarkdownLinks(t *testing.T) {
	body := "[Up](../top.md) [Side](side.md#part) [Root](/root/r.md)\n" +
		"[Web](https://example.com/x.md) [Mail](mailto:a@b.c) [Anchor](#h)\n" +
		"![img](pic.png) [Pdf](doc.pdf) [Spaced](<my note.md>) [Enc](my%20note.md)"
	r, err := Extract([]byte(body), "notes/sub/here.md")
	require.NoError(t, err)

	var got []string
	for _, l := range r.Links {
		assert.Equal(t, models.LinkTypeMarkdown, l.Type)
		got = append(got, l.Target)
	}
	assert.Equal(t, []string{
		"notes/top.md",
		"notes/sub/side.md",
		"root/r.md",
		"notes/sub/my note.md",
		"notes/sub/my note.md",
	}, got)
	assert.Equal(t, "Up", r.Links[0].Text)
}

func TestExtract_FrontmatterLinks(t *testing.T) {
	input := "---\nproject: \"[[Big Project]]\"\nrelated:\n  - \"[[A]]\"\n  - \"[[B|bee]]\"\n---\nbody [[C]]\n"
	r, err := Extract([]byte(input), "task.md")
	require.NoError(t, err)
	require.Len(t, r.Links, 4)

	for i, want := range []struct {
		target string
		typ    models.LinkType
		line   int
	}{
		{"Big Project", models.LinkTypeFrontmatter, 2},
		{"A", models.LinkTypeFrontmatter, 4},
		{"B", models.LinkTypeFrontmatter, 5},
		{"C", models.LinkTypeWiki, 7},
	} {
		assert.Equal(t, want.target, r.Links[i].Target)
		assert.Equal(t, want.typ, r.Links[i].Type)
		assert.Equal(t, want.line, r.Links[i].LineNumber)
	}
}

func TestExtract_ContextIsCapped(t *testing.T) {
	long := "[[x]] "
	for len(long) < 500 {
		long += "é"
	}
	r, err := Extract([]byte(long), "a.md")
	require.NoError(t, err)
	require.Len(t, r.Links, 1)
	assert.Equal(t, maxContext, len([]rune(r.Links[0].Context)))
}

func TestExtract_CRLF(t *testing.T) {
	r, err := Extract([]byte("---\r\ntitle: T\r\n---\r\n[[a]]\r\n"), "a.md")
	require.NoError(t, err)
	assert.Equal(t, "T", r.Title)
	require.Len(t, r.Links, 1)
	assert.Equal(t, 4, r.Links[0].LineNumber)
	assert.Equal(t, "[[a]]", r.Links[0].Context)
}

func TestTypeFromPath(t *testing.T) {
	for p, want := range map[string]models.NoteType{
		"daily/2026-01-01.md":         models.NoteTypeDaily,
		"Journal/anything.md":         models.NoteTypeDaily,
		"2026-01-01.md":               models.NoteTypeDaily,
		"2026-W03.md":                 models.NoteTypeWeekly,
		"2026-03.md":                  models.NoteTypeMonthly,
		"tasks/fix.md":                models.NoteTypeTask,
		"projects/tasks/fix.md":       models.NoteTypeTask,
		"projects/sowilo.md":          models.NoteTypeProject,
		"202601011230 idea.md":        models.NoteTypeZettel,
		"notes/plain.md":              models.NoteTypeNone,
		"2026-01-01-meeting-notes.md": models.NoteTypeNone,
	} {
		assert.Equal(t, want, TypeFromPath(p), p)
	}
}

func TestFrontmatterTypeWins(t *testing.T) {
	r, err := Extract([]byte("---\ntype: zettel\n---\n"), "daily/2026-01-01.md")
	require.NoError(t, err)
	assert.Equal(t, models.NoteTypeZettel, r.Type)
}

func TestFrontmatterDateTimes(t *testing.T) {
	r, err := Extract([]byte("---\ncreated: \"2025-02-03 10:30\"\ndate: 2025-02-03T10:30:00Z\n---\n"), "a.md")
	require.NoError(t, err)
	require.NotNil(t, r.Created)
	assert.True(t, r.Created.Equal(time.Date(2025, 2, 3, 10, 30, 0, 0, time.UTC)))

	var fm map[string]any
	require.NoError(t, json.Unmarshal([]byte(r.FrontmatterJSON), &fm))
	assert.Equal(t, "2025-02-03T10:30:00Z", fm["date"])
}

func TestParseDate(t *testing.T) {
	_, ok := ParseDate("not a date")
	assert.False(t, ok)
	d, ok := ParseDate(" 2026-10-16 ")
	require.True(t, ok)
	assert.Equal(t, 16, d.Day())
}
