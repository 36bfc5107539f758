package i18n

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Translator loads YAML locale files and provides keyed lookup with
// fallback. Keys missing from a locale fall back to the default language,
// then to the key itself, so a half-translated locale never breaks output.
type Translator struct {
	locales     map[string]map[string]string
	defaultLang string
}

// NewTranslator loads every *.yaml file from dir. Files are named by
// language code (en.yaml, ru.yaml) and hold flat key/value pairs.
func NewTranslator(dir string, defaultLang string) (*Translator, error) {
	t := &Translator{
		locales:     make(map[string]map[string]string),
		defaultLang: defaultLang,
	}

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".yaml") {
			return nil
		}
		lang := strings.TrimSuffix(d.Name(), ".yaml")
		data, readErr := os.ReadFile(path)
		if readErr != nil {
			return fmt.Errorf("read locale %s: %w", path, readErr)
		}
		kv := make(map[string]string)
		if unmarshalErr := yaml.Unmarshal(data, &kv); unmarshalErr != nil {
			return fmt.Errorf("parse locale %s: %w", path, unmarshalErr)
		}
		t.locales[lang] = kv
		return nil
	})
	if err != nil {
		return nil, err
	}

	if _, ok := t.locales[defaultLang]; !ok {
		t.locales[defaultLang] = make(map[string]string)
	}
	return t, nil
}

// NewFallback creates a translator with no locales loaded. Every lookup
// returns the key, which keeps the bot and web layer functional when the
// locales directory is absent.
func NewFallback(defaultLang string) *Translator {
	return &Translator{
		locales:     map[string]map[string]string{defaultLang: {}},
		defaultLang: defaultLang,
	}
}

// T returns the translation for key in lang, falling back to the default
// language and finally to the key itself.
func (t *Translator) T(lang, key string) string {
	if lang != "" {
		if val, ok := t.locales[lang][key]; ok {
			return val
		}
	}
	if val, ok := t.locales[t.defaultLang][key]; ok {
		return val
	}
	return key
}

// Tf is T with fmt.Sprintf arguments applied to the looked-up template
func (t *Translator) Tf(lang, key string, args ...interface{}) string {
	return fmt.Sprintf(t.T(lang, key), args...)
}

// Available returns the loaded language codes
func (t *Translator) Available() []string {
	keys := make([]string, 0, len(t.locales))
	for k := range t.locales {
		keys = append(keys, k)
	}
	return keys
}
