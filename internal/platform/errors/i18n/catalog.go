// Package i18n renders user-facing messages for domain error codes.
package i18n

import (
	"bytes"
	"strings"
	"sync"
	"text/template"

	"golang.org/x/text/language"
)

// Code is a machine-readable error code (duplicated from the errors package to avoid a cycle).
type Code = string

// BaseLocale is the fallback locale.
const BaseLocale = "en-US"

// Catalog maps error codes to message templates for one locale.
type Catalog struct {
	locale   string
	messages map[Code]string
}

var (
	catalogsMu sync.RWMutex
	catalogs   = map[string]*Catalog{
		"en-US": NewCatalog("en-US", enUS),
		"pt-BR": NewCatalog("pt-BR", ptBR),
	}
	matcher = language.NewMatcher([]language.Tag{
		language.AmericanEnglish,
		language.BrazilianPortuguese,
	})
)

// GetCatalog returns the catalog best matching locale, which may be a single
// tag or an Accept-Language list. Unknown locales fall back to en-US.
func GetCatalog(locale string) *Catalog {
	requested := strings.TrimSpace(locale)
	if requested == "" {
		requested = BaseLocale
	}
	if c, ok := lookupCatalog(requested); ok {
		return c
	}

	tags, _, err := language.ParseAcceptLanguage(requested)
	if err == nil && len(tags) > 0 {
		_, idx, confidence := matcher.Match(tags...)
		if confidence != language.No {
			if c, ok := lookupCatalog(supported[idx]); ok {
				return c
			}
		}
	}
	c, _ := lookupCatalog(BaseLocale)
	return c
}

var supported = []string{"en-US", "pt-BR"}

// Locale returns the locale of this catalog.
func (c *Catalog) Locale() string {
	return c.locale
}

// Format renders the message template with the given metadata. Unknown codes
// render as the code itself; broken templates render verbatim.
func (c *Catalog) Format(code Code, metadata map[string]string) string {
	tmpl, ok := c.messages[code]
	if !ok {
		return code
	}
	if metadata == nil {
		metadata = map[string]string{}
	}

	t, err := template.New("msg").Option("missingkey=zero").Parse(tmpl)
	if err != nil {
		return tmpl
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, metadata); err != nil {
		return tmpl
	}
	return buf.String()
}

// RegisterCatalog registers or replaces the catalog for locale.
func RegisterCatalog(locale string, cat *Catalog) {
	catalogsMu.Lock()
	defer catalogsMu.Unlock()
	catalogs[locale] = cat
}

// NewCatalog creates a new catalog with the given locale and messages.
func NewCatalog(locale string, messages map[Code]string) *Catalog {
	cloned := make(map[Code]string, len(messages))
	for key, value := range messages {
		cloned[key] = value
	}
	return &Catalog{locale: locale, messages: cloned}
}

func lookupCatalog(locale string) (*Catalog, bool) {
	catalogsMu.RLock()
	defer catalogsMu.RUnlock()
	cat, ok := catalogs[locale]
	return cat, ok
}
