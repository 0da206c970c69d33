package dashboard

import (
	"embed"
	"fmt"
	"html/template"
	"io"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var pageNames = []string{"dashboard", "products", "analytics", "pricing", "integrations", "cache"}

var templateFuncs = template.FuncMap{
	"dash":        Dash,
	"dashInt":     DashInt,
	"badge":       BadgeClass,
	"demandLabel": DemandLabel,
	"demandClass": DemandClass,
	"score": func(v float64) string {
		return fmt.Sprintf("%.0f", v)
	},
	"add": func(a, b int) int { return a + b },
}

// templates holds one parsed set per page, each combining the shared layout
// with the page's content block.
type templates struct {
	pages map[string]*template.Template
}

func parseTemplates() (*templates, error) {
	t := &templates{pages: make(map[string]*template.Template, len(pageNames))}
	for _, name := range pageNames {
		tmpl, err := template.New("layout.tmpl").Funcs(templateFuncs).ParseFS(
			templateFS,
			"templates/layout.tmpl",
			"templates/"+name+".tmpl",
		)
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		t.pages[name] = tmpl
	}
	return t, nil
}

func (t *templates) render(w io.Writer, page string, data any) error {
	tmpl, ok := t.pages[page]
	if !ok {
		return fmt.Errorf("unknown page template %q", page)
	}
	return tmpl.ExecuteTemplate(w, "layout.tmpl", data)
}
