// Package prompt renders prompt templates kept as data assets rather than
// inlined Go string literals. The templates are embedded into the binary
// at build time, so an edit to a template file takes effect on the next
// build; they are not reloaded at runtime. Substitution is the same
// {{variable}} shape the teacher
// repo's TemplateProcessor uses for node configuration templating.
package prompt

import (
	"embed"
	"fmt"
	"regexp"
	"strings"
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

var varPattern = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_]+)\s*\}\}`)

// Template is a named prompt asset with its raw text.
type Template struct {
	name string
	raw  string
}

// Load reads an embedded template by file name (e.g. "l2.tmpl").
func Load(name string) (*Template, error) {
	data, err := templatesFS.ReadFile("templates/" + name)
	if err != nil {
		return nil, fmt.Errorf("prompt: load %s: %w", name, err)
	}
	return &Template{name: name, raw: string(data)}, nil
}

// MustLoad is Load but panics on error; used for templates baked into the
// binary that must always be present.
func MustLoad(name string) *Template {
	t, err := Load(name)
	if err != nil {
		panic(err)
	}
	return t
}

// Render substitutes every {{key}} placeholder with vars[key]. Missing
// variables are left as an empty string rather than failing, since prompt
// context (research, prior feedback) is frequently optional.
func (t *Template) Render(vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(t.raw, func(match string) string {
		key := varPattern.FindStringSubmatch(match)[1]
		if v, ok := vars[key]; ok {
			return v
		}
		return ""
	})
}

// RenderLines is a small convenience for vars whose value is a list
// rendered as newline-separated "- item" bullets, used for seed labels and
// prior validation suggestions.
func RenderLines(items []string) string {
	if len(items) == 0 {
		return "(none)"
	}
	lines := make([]string, len(items))
	for i, it := range items {
		lines[i] = "- " + it
	}
	return strings.Join(lines, "\n")
}
