// Package i18n renders notification strings from embedded per-locale
// catalogs. The locale comes from marketplace settings, not per request.
package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// BaseLocale is the canonical source locale. Every key must exist here.
const BaseLocale = "en"

//go:embed locales/*.yaml
var embeddedFS embed.FS

var defaultCatalog = mustLoad()

// Default returns the process-wide catalog built from the embedded locales.
func Default() *Catalog {
	return defaultCatalog
}

func mustLoad() *Catalog {
	c, err := Load()
	if err != nil {
		panic(fmt.Sprintf("embedded locale catalogs invalid: %v", err))
	}
	return c
}

type catalogFile struct {
	Locale   string            `yaml:"locale"`
	Messages map[string]string `yaml:"messages"`
}

// Catalog holds all loaded locales and resolves requested locales with a
// language matcher, falling back to BaseLocale.
type Catalog struct {
	locales map[string]map[string]string
	matcher language.Matcher
	tags    []language.Tag
	names   []string
}

// Load parses the embedded locale catalogs.
func Load() (*Catalog, error) {
	return LoadFromFS(embeddedFS)
}

// LoadFromFS parses locale catalogs from fsys, mostly for tests.
func LoadFromFS(fsys fs.FS) (*Catalog, error) {
	paths, err := fs.Glob(fsys, "locales/*.yaml")
	if err != nil {
		return nil, fmt.Errorf("glob locale catalogs: %w", err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no locale catalogs found")
	}
	sort.Strings(paths)

	c := &Catalog{locales: map[string]map[string]string{}}
	for _, path := range paths {
		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			return nil, fmt.Errorf("read catalog %s: %w", path, err)
		}
		var file catalogFile
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("parse catalog %s: %w", path, err)
		}
		locale := strings.TrimSpace(file.Locale)
		if locale == "" {
			return nil, fmt.Errorf("catalog %s: locale is required", path)
		}
		if file.Messages == nil {
			return nil, fmt.Errorf("catalog %s: messages map is required", path)
		}
		tag, err := language.Parse(locale)
		if err != nil {
			return nil, fmt.Errorf("catalog %s: bad locale %q: %w", path, locale, err)
		}
		c.locales[locale] = file.Messages
		c.tags = append(c.tags, tag)
		c.names = append(c.names, locale)
	}

	base, ok := c.locales[BaseLocale]
	if !ok {
		return nil, fmt.Errorf("base locale %s is not defined", BaseLocale)
	}
	for locale, messages := range c.locales {
		for key := range messages {
			if _, ok := base[key]; !ok {
				return nil, fmt.Errorf("locale %s defines unknown key %s", locale, key)
			}
		}
	}

	c.matcher = language.NewMatcher(c.tags)
	return c, nil
}

// Locales lists loaded locale names in load order.
func (c *Catalog) Locales() []string {
	return append([]string(nil), c.names...)
}

// Resolve maps a requested locale to the best loaded one.
func (c *Catalog) Resolve(locale string) string {
	tag, err := language.Parse(locale)
	if err != nil {
		return BaseLocale
	}
	_, idx, conf := c.matcher.Match(tag)
	if conf == language.No {
		return BaseLocale
	}
	return c.names[idx]
}

// T renders message key in locale, applying fmt args. Missing keys fall
// back to the base locale, then to the key itself.
func (c *Catalog) T(locale, key string, args ...any) string {
	messages := c.locales[c.Resolve(locale)]
	format, ok := messages[key]
	if !ok {
		format, ok = c.locales[BaseLocale][key]
	}
	if !ok {
		return key
	}
	if len(args) == 0 {
		return format
	}
	return fmt.Sprintf(format, args...)
}
