package parser

import (
	"net/url"
	"path"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/starford/sowilo/internal/models"
)

// maxContext caps the stored context snippet, in runes.
const maxContext = 200

var (
	wikilinkRe = regexp.MustCompile(`\[\[([^\[\]]+?)\]\]`)
	mdLinkRe   = regexp.MustCompile(`\[([^\[\]]*)\]\(\s*(<[^>]*>|[^)\s]+)(?:\s+"[^"]*")?\s*\)`)
	schemeRe   = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9+.-]*:`)
)

// fenceMarker reports whether line opens or closes a fenced code block and
// returns the fence now in effect ("" when outside a block).
func fenceMarker(trimmed, open string) (string, bool) {
	for _, m := range []string{"```", "~~~"} {
		if !strings.HasPrefix(trimmed, m) {
			continue
		}
		if open == "" {
			return m, true
		}
		if open == m {
			return "", true
		}
	}
	return open, false
}

func snippet(line string) string {
	s := strings.TrimSpace(line)
	if utf8.RuneCountInString(s) <= maxContext {
		return s
	}
	r := []rune(s)
	return string(r[:maxContext])
}

// parseWikilink splits the inside of [[...]] into target and display text.
// "[[#heading]]" refers to the current note and yields an empty target.
func parseWikilink(inner string) (target, text string) {
	target = inner
	if i := strings.Index(inner, "|"); i >= 0 {
		target, text = inner[:i], strings.TrimSpace(inner[i+1:])
	}
	if i := strings.IndexAny(target, "#^"); i >= 0 {
		target = target[:i]
	}
	return strings.TrimSpace(target), text
}

func wikilinksIn(line string, lineNo int, typ models.LinkType) []ExtractedLink {
	var out []ExtractedLink
	for _, m := range wikilinkRe.FindAllStringSubmatch(line, -1) {
		target, text := parseWikilink(m[1])
		if target == "" {
			continue
		}
		out = append(out, ExtractedLink{
			Target:     target,
			Text:       text,
			Type:       typ,
			LineNumber: lineNo,
			Context:    snippet(line),
		})
	}
	return out
}

// frontmatterLinks finds [[...]] references inside front-matter values.
func frontmatterLinks(raw []string, startLine int) []ExtractedLink {
	var out []ExtractedLink
	for i, line := range raw {
		out = append(out, wikilinksIn(line, startLine+i, models.LinkTypeFrontmatter)...)
	}
	return out
}

// bodyLinks finds wikilinks and local Markdown links outside fenced code.
func bodyLinks(body []string, startLine int, relPath string) []ExtractedLink {
	var (
		out   []ExtractedLink
		fence string
	)
	for i, line := range body {
		if f, ok := fenceMarker(strings.TrimSpace(line), fence); ok {
			fence = f
			continue
		}
		if fence != "" {
			continue
		}
		lineNo := startLine + i
		out = append(out, wikilinksIn(line, lineNo, models.LinkTypeWiki)...)

		for _, m := range mdLinkRe.FindAllStringSubmatchIndex(line, -1) {
			if m[0] > 0 && line[m[0]-1] == '!' {
				continue
			}
			target, ok := localTarget(line[m[4]:m[5]], relPath)
			if !ok {
				continue
			}
			out = append(out, ExtractedLink{
				Target:     target,
				Text:       strings.TrimSpace(line[m[2]:m[3]]),
				Type:       models.LinkTypeMarkdown,
				LineNumber: lineNo,
				Context:    snippet(line),
			})
		}
	}
	return out
}

// localTarget turns a Markdown link destination into a vault-relative path.
// URLs, pure anchors and links to non-note files are rejected. Relative
// destinations are resolved against the directory of relPath; a leading "/"
// anchors at the vault root.
func localTarget(dest, relPath string) (string, bool) {
	dest = strings.TrimSuffix(strings.TrimPrefix(dest, "<"), ">")
	if dest == "" || strings.HasPrefix(dest, "#") || schemeRe.MatchString(dest) {
		return "", false
	}
	if i := strings.IndexAny(dest, "#?"); i >= 0 {
		dest = dest[:i]
	}
	if u, err := url.PathUnescape(dest); err == nil {
		dest = u
	}
	if ext := strings.ToLower(path.Ext(dest)); ext != "" && ext != ".md" && ext != ".markdown" {
		return "", false
	}

	var p string
	if strings.HasPrefix(dest, "/") {
		p = path.Clean(strings.TrimLeft(dest, "/"))
	} else {
		p = path.Join(path.Dir(relPath), dest)
	}
	if p == "." || p == "" {
		return "", false
	}
	return p, true
}
