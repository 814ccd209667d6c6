// Package catalog loads the embedded locale message files and resolves
// request locales against them.
//
// Files live at locales/<locale>/<namespace>.yaml. The base locale defines
// every key; other locales may translate a subset and inherit the rest.
package catalog

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gopkg.in/yaml.v3"
)

// BaseLocale is the locale every other catalog falls back to.
const BaseLocale = "en-US"

type catalogFile struct {
	Locale    string            `yaml:"locale"`
	Namespace string            `yaml:"namespace"`
	Messages  map[string]string `yaml:"messages"`
}

// Bundle holds messages by locale, then namespace, then key.
type Bundle struct {
	messages map[string]map[string]map[string]string
	tags     []language.Tag
	matcher  language.Matcher
}

//go:embed locales/*/*.yaml
var embeddedFS embed.FS

var loadDefault = sync.OnceValue(func() *Bundle {
	bundle, err := Load(embeddedFS)
	if err != nil {
		panic(fmt.Sprintf("load embedded catalogs: %v", err))
	}
	if err := bundle.register(); err != nil {
		panic(fmt.Sprintf("register embedded catalogs: %v", err))
	}
	return bundle
})

// Default returns the embedded bundle, registered with x/text/message.
func Default() *Bundle {
	return loadDefault()
}

// Load reads every catalog file under locales/ in fsys.
func Load(fsys fs.FS) (*Bundle, error) {
	paths, err := fs.Glob(fsys, "locales/*/*.yaml")
	if err != nil {
		return nil, fmt.Errorf("glob catalogs: %w", err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no catalog files found")
	}
	sort.Strings(paths)

	b := &Bundle{messages: map[string]map[string]map[string]string{}}
	for _, p := range paths {
		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return nil, fmt.Errorf("read catalog %s: %w", p, err)
		}
		var file catalogFile
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("parse catalog %s: %w", p, err)
		}
		if err := b.add(p, file); err != nil {
			return nil, err
		}
	}
	if err := b.checkAgainstBase(); err != nil {
		return nil, err
	}
	if err := b.buildMatcher(); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Bundle) add(p string, file catalogFile) error {
	wantLocale := path.Base(path.Dir(p))
	wantNamespace := strings.TrimSuffix(path.Base(p), path.Ext(p))
	locale := strings.TrimSpace(file.Locale)
	namespace := strings.TrimSpace(file.Namespace)
	switch {
	case locale != wantLocale:
		return fmt.Errorf("catalog %s: locale %q does not match directory %q", p, locale, wantLocale)
	case namespace != wantNamespace:
		return fmt.Errorf("catalog %s: namespace %q does not match file name %q", p, namespace, wantNamespace)
	case len(file.Messages) == 0:
		return fmt.Errorf("catalog %s: no messages", p)
	}

	namespaces, ok := b.messages[locale]
	if !ok {
		namespaces = map[string]map[string]string{}
		b.messages[locale] = namespaces
	}
	messages := make(map[string]string, len(file.Messages))
	for key, text := range file.Messages {
		key = strings.TrimSpace(key)
		if key == "" {
			return fmt.Errorf("catalog %s: blank message key", p)
		}
		messages[key] = text
	}
	namespaces[namespace] = messages
	return nil
}

// checkAgainstBase rejects translations of keys the base locale lacks, which
// would otherwise never be reachable through fallback.
func (b *Bundle) checkAgainstBase() error {
	base, ok := b.messages[BaseLocale]
	if !ok {
		return fmt.Errorf("base locale %s has no catalogs", BaseLocale)
	}
	for _, locale := range b.Locales() {
		for namespace, messages := range b.messages[locale] {
			baseMessages, ok := base[namespace]
			if !ok {
				return fmt.Errorf("locale %s: namespace %q missing from %s", locale, namespace, BaseLocale)
			}
			for key := range messages {
				if _, ok := baseMessages[key]; !ok {
					return fmt.Errorf("locale %s: key %q missing from %s", locale, key, BaseLocale)
				}
			}
		}
	}
	return nil
}

// buildMatcher lists the base locale first so it wins ties and unknown requests.
func (b *Bundle) buildMatcher() error {
	b.tags = b.tags[:0]
	for _, locale := range append([]string{BaseLocale}, b.Locales()...) {
		if locale == BaseLocale && len(b.tags) > 0 {
			continue
		}
		tag, err := language.Parse(locale)
		if err != nil {
			return fmt.Errorf("parse locale %q: %w", locale, err)
		}
		b.tags = append(b.tags, tag)
	}
	b.matcher = language.NewMatcher(b.tags)
	return nil
}

// register makes every resolved message available to x/text printers.
func (b *Bundle) register() error {
	for _, locale := range b.Locales() {
		tag, err := language.Parse(locale)
		if err != nil {
			return fmt.Errorf("parse locale %q: %w", locale, err)
		}
		for namespace := range b.messages[BaseLocale] {
			_, messages := b.Messages(locale, namespace)
			for key, text := range messages {
				if err := message.SetString(tag, key, text); err != nil {
					return fmt.Errorf("register %s/%s: %w", locale, key, err)
				}
			}
		}
	}
	return nil
}

// Locales returns the loaded locales in sorted order.
func (b *Bundle) Locales() []string {
	out := make([]string, 0, len(b.messages))
	for locale := range b.messages {
		out = append(out, locale)
	}
	sort.Strings(out)
	return out
}

// Match resolves a locale tag or an Accept-Language list to the closest
// loaded locale, falling back to BaseLocale.
func (b *Bundle) Match(requested string) string {
	requested = strings.TrimSpace(requested)
	if requested == "" || b.matcher == nil {
		return BaseLocale
	}
	if _, ok := b.messages[requested]; ok {
		return requested
	}
	desired, _, err := language.ParseAcceptLanguage(requested)
	if err != nil || len(desired) == 0 {
		return BaseLocale
	}
	_, index, confidence := b.matcher.Match(desired...)
	if confidence == language.No || index < 0 || index >= len(b.tags) {
		return BaseLocale
	}
	return b.tags[index].String()
}

// Messages returns the namespace messages for the locale matching requested,
// with untranslated keys filled from BaseLocale. The returned map is a copy.
func (b *Bundle) Messages(requested, namespace string) (string, map[string]string) {
	locale := b.Match(requested)
	namespace = strings.TrimSpace(namespace)
	out := make(map[string]string, len(b.messages[BaseLocale][namespace]))
	for key, text := range b.messages[BaseLocale][namespace] {
		out[key] = text
	}
	for key, text := range b.messages[locale][namespace] {
		out[key] = text
	}
	return locale, out
}
