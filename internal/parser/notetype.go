package parser

import (
	"path"
	"regexp"
	"strings"

	"github.com/starford/sowilo/internal/models"
)

var (
	dailyStemRe   = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	weeklyStemRe  = regexp.MustCompile(`^\d{4}-[Ww]\d{2}$`)
	monthlyStemRe = regexp.MustCompile(`^\d{4}-\d{2}$`)
	zettelStemRe  = regexp.MustCompile(`^\d{12,14}(\D|$)`)
)

var dirTypes = map[string]models.NoteType{
	"daily":        models.NoteTypeDaily,
	"dailies":      models.NoteTypeDaily,
	"journal":      models.NoteTypeDaily,
	"journals":     models.NoteTypeDaily,
	"weekly":       models.NoteTypeWeekly,
	"weeklies":     models.NoteTypeWeekly,
	"monthly":      models.NoteTypeMonthly,
	"task":         models.NoteTypeTask,
	"tasks":        models.NoteTypeTask,
	"project":      models.NoteTypeProject,
	"projects":     models.NoteTypeProject,
	"zettel":       models.NoteTypeZettel,
	"zettelkasten": models.NoteTypeZettel,
}

// deriveType uses the front-matter "type" when set and falls back to path
// conventions.
func deriveType(fm map[string]any, relPath string) models.NoteType {
	if s, ok := fm["type"].(string); ok && strings.TrimSpace(s) != "" {
		return models.ParseNoteType(s)
	}
	return TypeFromPath(relPath)
}

// TypeFromPath infers a note type from the directory names and file name of
// relPath. The nearest matching directory wins; the file name is consulted
// only when no directory matches.
func TypeFromPath(relPath string) models.NoteType {
	dir := path.Dir(relPath)
	if dir != "." {
		parts := strings.Split(dir, "/")
		for i := len(parts) - 1; i >= 0; i-- {
			if t, ok := dirTypes[strings.ToLower(parts[i])]; ok {
				return t
			}
		}
	}

	s := stem(relPath)
	switch {
	case dailyStemRe.MatchString(s):
		return models.NoteTypeDaily
	case weeklyStemRe.MatchString(s):
		return models.NoteTypeWeekly
	case monthlyStemRe.MatchString(s):
		return models.NoteTypeMonthly
	case zettelStemRe.MatchString(s):
		return models.NoteTypeZettel
	}
	return models.NoteTypeNone
}
