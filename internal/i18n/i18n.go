// Package i18n resolves localized strings from the embedded locale catalogs.
package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// BaseLocale is the fallback for unknown locales and missing keys.
const BaseLocale = "en"

//go:embed locales/*.yaml
var embeddedFS embed.FS

type localeFile struct {
	Locale   string            `yaml:"locale"`
	Messages map[string]string `yaml:"messages"`
}

// Bundle holds the messages of every loaded locale.
type Bundle struct {
	tags     []language.Tag // base locale first
	messages map[string]map[string]string
	matcher  language.Matcher
}

// LoadEmbedded loads the locale files compiled into the binary.
func LoadEmbedded() (*Bundle, error) {
	return LoadFromFS(embeddedFS)
}

// LoadFromFS loads every locales/*.yaml file in fsys.
func LoadFromFS(fsys fs.FS) (*Bundle, error) {
	paths, err := fs.Glob(fsys, "locales/*.yaml")
	if err != nil {
		return nil, fmt.Errorf("glob locales: %w", err)
	}
	sort.Strings(paths)

	b := &Bundle{messages: map[string]map[string]string{}}
	for _, path := range paths {
		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			return nil, fmt.Errorf("read locale %s: %w", path, err)
		}
		var f localeFile
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("parse locale %s: %w", path, err)
		}
		if f.Locale == "" {
			return nil, fmt.Errorf("locale %s: locale is required", path)
		}
		tag, err := language.Parse(f.Locale)
		if err != nil {
			return nil, fmt.Errorf("locale %s: %w", path, err)
		}
		name := tag.String()
		if _, dup := b.messages[name]; dup {
			return nil, fmt.Errorf("locale %s: %q defined twice", path, name)
		}
		b.messages[name] = f.Messages
		if name == BaseLocale {
			b.tags = append([]language.Tag{tag}, b.tags...)
		} else {
			b.tags = append(b.tags, tag)
		}
	}

	if _, ok := b.messages[BaseLocale]; !ok {
		return nil, fmt.Errorf("base locale %s is not defined", BaseLocale)
	}
	b.matcher = language.NewMatcher(b.tags)
	return b, nil
}

// Locales returns the loaded locale names, base locale first.
func (b *Bundle) Locales() []string {
	out := make([]string, len(b.tags))
	for i, t := range b.tags {
		out[i] = t.String()
	}
	return out
}

// Catalog returns the catalog best matching locale, which may be any BCP 47
// tag ("fr-CA", "en_US") or an Accept-Language value. Unknown or empty
// locales get the base locale.
func (b *Bundle) Catalog(locale string) *Catalog {
	idx := 0
	if locale = strings.TrimSpace(strings.ReplaceAll(locale, "_", "-")); locale != "" {
		if tags, _, err := language.ParseAcceptLanguage(locale); err == nil && len(tags) > 0 {
			_, i, conf := b.matcher.Match(tags...)
			if conf != language.No {
				idx = i
			}
		}
	}
	name := b.tags[idx].String()
	return &Catalog{
		locale:   name,
		messages: b.messages[name],
		fallback: b.messages[BaseLocale],
	}
}

// Catalog translates keys for one locale.
type Catalog struct {
	locale   string
	messages map[string]string
	fallback map[string]string
}

// Locale returns the resolved locale name.
func (c *Catalog) Locale() string {
	return c.locale
}

var placeholder = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.]+)\s*\}\}`)

// Instant returns the translation of key with {{ name }} placeholders
// replaced from subs. Missing keys fall back to the base locale, then to the
// key itself. Placeholders without a substitution are left as is.
func (c *Catalog) Instant(key string, subs map[string]string) string {
	msg, ok := c.messages[key]
	if !ok {
		if msg, ok = c.fallback[key]; !ok {
			return key
		}
	}
	if len(subs) == 0 {
		return msg
	}
	return placeholder.ReplaceAllStringFunc(msg, func(m string) string {
		name := placeholder.FindStringSubmatch(m)[1]
		if v, ok := subs[name]; ok {
			return v
		}
		return m
	})
}
