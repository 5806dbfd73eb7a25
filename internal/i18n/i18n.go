// Package i18n renders advisory text in the farmer's language. Locale
// catalogs are flat key→template JSON files; missing keys fall back to
// English so a partially translated catalog still works.
package i18n

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

//go:embed locales/*.json
var localeFS embed.FS

const fallbackLocale = "en"

type Translator struct {
	mu       sync.RWMutex
	catalogs map[string]map[string]string
}

// New loads the embedded locale catalogs.
func New() (*Translator, error) {
	t := &Translator{catalogs: make(map[string]map[string]string)}
	entries, err := fs.ReadDir(localeFS, "locales")
	if err != nil {
		return nil, fmt.Errorf("i18n: read embedded locales: %w", err)
	}
	for _, e := range entries {
		data, err := localeFS.ReadFile("locales/" + e.Name())
		if err != nil {
			return nil, fmt.Errorf("i18n: read %s: %w", e.Name(), err)
		}
		if err := t.addCatalog(e.Name(), data); err != nil {
			return nil, err
		}
	}
	if _, ok := t.catalogs[fallbackLocale]; !ok {
		return nil, fmt.Errorf("i18n: embedded catalogs are missing %q", fallbackLocale)
	}
	return t, nil
}

// LoadDir merges locale files from disk over the embedded catalogs.
func (t *Translator) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("i18n: read %s: %w", dir, err)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return fmt.Errorf("i18n: read %s: %w", e.Name(), err)
		}
		if err := t.addCatalog(e.Name(), data); err != nil {
			return err
		}
	}
	return nil
}

func (t *Translator) addCatalog(filename string, data []byte) error {
	locale := normalizeLocale(strings.TrimSuffix(filepath.Base(filename), ".json"))
	var catalog map[string]string
	if err := json.Unmarshal(data, &catalog); err != nil {
		return fmt.Errorf("i18n: decode %s: %w", filename, err)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	existing, ok := t.catalogs[locale]
	if !ok {
		t.catalogs[locale] = catalog
		return nil
	}
	for k, v := range catalog {
		existing[k] = v
	}
	return nil
}

// T renders the template for key in the given locale, falling back to
// English and finally to the key itself.
func (t *Translator) T(locale, key string, args ...any) string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	tmpl, ok := t.lookup(normalizeLocale(locale), key)
	if !ok {
		tmpl, ok = t.lookup(fallbackLocale, key)
	}
	if !ok {
		return key
	}
	if len(args) == 0 {
		return tmpl
	}
	return fmt.Sprintf(tmpl, args...)
}

func (t *Translator) lookup(locale, key string) (string, bool) {
	catalog, ok := t.catalogs[locale]
	if !ok {
		return "", false
	}
	tmpl, ok := catalog[key]
	return tmpl, ok
}

// Has reports whether a catalog exists for the locale.
func (t *Translator) Has(locale string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.catalogs[normalizeLocale(locale)]
	return ok
}

// Locales lists the loaded locale codes.
func (t *Translator) Locales() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, 0, len(t.catalogs))
	for l := range t.catalogs {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

// Resolve maps any locale tag to one we can serve, defaulting to English.
func (t *Translator) Resolve(locale string) string {
	l := normalizeLocale(locale)
	if t.Has(l) {
		return l
	}
	return fallbackLocale
}

// normalizeLocale folds tags like "ta-IN" or "HI" to the bare language.
func normalizeLocale(locale string) string {
	l := strings.ToLower(strings.TrimSpace(locale))
	if i := strings.IndexAny(l, "-_"); i > 0 {
		l = l[:i]
	}
	return l
}
