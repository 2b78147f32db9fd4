package judge

import (
	"sort"
	"strings"
)

// LanguageID is the judge's numeric language code.
type LanguageID int

type Language struct {
	Name string     `json:"name"`
	ID   LanguageID `json:"id"`
}

// synonyms are folded onto a canonical name before lookup.
var synonyms = map[string]string{
	"c++": "cpp",
}

// defaultLanguages are Judge0 CE ids.
var defaultLanguages = map[string]LanguageID{
	"c":          50,
	"cpp":        54,
	"go":         60,
	"java":       62,
	"javascript": 63,
	"python":     71,
	"rust":       73,
	"typescript": 74,
}

// Languages is an immutable name→id table. The zero value resolves nothing.
type Languages struct {
	byName map[string]LanguageID
}

// DefaultLanguages returns the built-in table.
func DefaultLanguages() Languages {
	return NewLanguages(nil)
}

// NewLanguages returns the built-in table with overrides applied on top.
// Override names are normalised the same way lookups are.
func NewLanguages(overrides map[string]int) Languages {
	byName := make(map[string]LanguageID, len(defaultLanguages)+len(overrides))
	for name, id := range defaultLanguages {
		byName[name] = id
	}
	for name, id := range overrides {
		byName[normalize(name)] = LanguageID(id)
	}
	return Languages{byName: byName}
}

// Resolve looks name up case-insensitively. The boolean is false for
// unknown languages; callers must reject those rather than submit them.
func (l Languages) Resolve(name string) (LanguageID, bool) {
	id, ok := l.byName[normalize(name)]
	return id, ok
}

// List returns the table sorted by name.
func (l Languages) List() []Language {
	out := make([]Language, 0, len(l.byName))
	for name, id := range l.byName {
		out = append(out, Language{Name: name, ID: id})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func normalize(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if canonical, ok := synonyms[name]; ok {
		return canonical
	}
	return name
}
