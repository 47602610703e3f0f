package explain

import (
	_ "embed"
	"fmt"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

//go:embed fallbacks.yaml
var defaultCatalog []byte

// Rule maps an error pattern to a canned explanation.
type Rule struct {
	Name     string   `yaml:"name"`
	Language string   `yaml:"language"`
	All      []string `yaml:"all"`
	Any      []string `yaml:"any"`
	Text     string   `yaml:"text"`
}

// Matches reports whether the rule applies to language and the lowercased error text.
func (r *Rule) Matches(language, errorText string) bool {
	if r.Language != "" && r.Language != language {
		return false
	}
	for _, s := range r.All {
		if !strings.Contains(errorText, s) {
			return false
		}
	}
	if len(r.Any) == 0 {
		return true
	}
	for _, s := range r.Any {
		if strings.Contains(errorText, s) {
			return true
		}
	}
	return false
}

// Catalog is an ordered list of rules with a default template.
// The first matching rule wins.
type Catalog struct {
	Rules   []Rule `yaml:"rules"`
	Default string `yaml:"default"`

	defaultTmpl *template.Template
}

// LoadCatalog parses a YAML rule catalog.
func LoadCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse fallback catalog: %w", err)
	}

	for i, r := range c.Rules {
		if r.Text == "" {
			return nil, fmt.Errorf("fallback rule %d (%s) has no text", i, r.Name)
		}
		if len(r.All) == 0 && len(r.Any) == 0 {
			return nil, fmt.Errorf("fallback rule %d (%s) has no patterns", i, r.Name)
		}
	}

	tmpl, err := template.New("default").Parse(c.Default)
	if err != nil {
		return nil, fmt.Errorf("failed to parse default explanation: %w", err)
	}
	c.defaultTmpl = tmpl

	return &c, nil
}

// DefaultCatalog returns the built-in catalog.
func DefaultCatalog() *Catalog {
	c, err := LoadCatalog(defaultCatalog)
	if err != nil {
		panic(err)
	}
	return c
}

// Explain returns the explanation for the first matching rule, or the
// default template rendered for language.
func (c *Catalog) Explain(language, errorText string) string {
	lowered := strings.ToLower(errorText)
	for i := range c.Rules {
		if c.Rules[i].Matches(language, lowered) {
			return c.Rules[i].Text
		}
	}

	var b strings.Builder
	if err := c.defaultTmpl.Execute(&b, struct{ Language string }{language}); err != nil {
		return c.Default
	}
	return b.String()
}
