// Package i18n renders user-facing error messages per locale.
package i18n

import (
	"strings"
	"sync"
	"text/template"

	i18ncatalog "github.com/louisbranch/pledgebank/internal/platform/i18n/catalog"
)

// Code is a machine-readable error code. It mirrors errors.Code without
// importing it.
type Code = string

// Namespace is the catalog file holding error messages.
const Namespace = "errors"

// Catalog renders error templates for one locale. Parsed templates are cached.
type Catalog struct {
	locale    string
	messages  map[Code]string
	mu        sync.Mutex
	templates map[Code]*template.Template
}

var resolved sync.Map // locale -> *Catalog

// GetCatalog returns the catalog for the locale closest to requested.
// Unknown and empty locales resolve to the base locale.
func GetCatalog(requested string) *Catalog {
	requested = strings.TrimSpace(requested)
	if cached, ok := resolved.Load(requested); ok {
		return cached.(*Catalog)
	}
	locale, messages := i18ncatalog.Default().Messages(requested, Namespace)
	cat, _ := resolved.LoadOrStore(locale, NewCatalog(locale, messages))
	resolved.LoadOrStore(requested, cat)
	return cat.(*Catalog)
}

// NewCatalog builds a catalog from code to template text.
func NewCatalog(locale string, messages map[Code]string) *Catalog {
	cloned := make(map[Code]string, len(messages))
	for code, text := range messages {
		cloned[code] = text
	}
	return &Catalog{locale: locale, messages: cloned, templates: map[Code]*template.Template{}}
}

// Locale returns the catalog locale.
func (c *Catalog) Locale() string {
	return c.locale
}

// Format renders the template for code with metadata. An unknown code renders
// as itself; a template that fails to parse or execute renders as raw text.
func (c *Catalog) Format(code Code, metadata map[string]string) string {
	text, ok := c.messages[code]
	if !ok {
		return code
	}
	tmpl, err := c.template(code, text)
	if err != nil {
		return text
	}
	var b strings.Builder
	if err := tmpl.Execute(&b, metadata); err != nil {
		return text
	}
	return b.String()
}

func (c *Catalog) template(code Code, text string) (*template.Template, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if tmpl, ok := c.templates[code]; ok {
		return tmpl, nil
	}
	tmpl, err := template.New(code).Parse(text)
	if err != nil {
		return nil, err
	}
	c.templates[code] = tmpl
	return tmpl, nil
}
