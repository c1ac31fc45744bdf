// Package lang translates user-facing texts. Dictionaries are YAML files, one
// per language, with dotted keys and $name placeholders.
package lang

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/inbenta-integrations/chatbot-api-connector/internal/dotpath"
)

//go:embed translations/*.yaml
var builtin embed.FS

type Manager struct {
	language string
	data     *dotpath.Store
}

// Load reads the dictionary of language from dir, or from the built-in
// dictionaries when dir is empty or has no file for it.
func Load(language, dir string) (*Manager, error) {
	raw, err := read(language, dir)
	if err != nil {
		return nil, err
	}
	var data map[string]any
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("parse language %q: %w", language, err)
	}
	return &Manager{language: language, data: dotpath.New(data)}, nil
}

func read(language, dir string) ([]byte, error) {
	name := language + ".yaml"
	if dir != "" {
		raw, err := os.ReadFile(filepath.Join(dir, name))
		if err == nil {
			return raw, nil
		}
		if !os.IsNotExist(err) {
			return nil, err
		}
	}
	raw, err := builtin.ReadFile("translations/" + name)
	if err != nil {
		return nil, fmt.Errorf("language %q not found", language)
	}
	return raw, nil
}

func (m *Manager) Language() string { return m.language }

func (m *Manager) Has(key string) bool {
	_, ok := m.data.GetOr(key, nil).(string)
	return ok
}

// Translate returns the text of key with every $param replaced. Unknown keys
// are returned as is.
func (m *Manager) Translate(key string, params map[string]string) string {
	text, ok := m.data.GetOr(key, nil).(string)
	if !ok {
		return key
	}
	if len(params) == 0 {
		return text
	}
	// longest names first so $queue never eats into $queuePosition
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return len(names[i]) > len(names[j]) })
	for _, name := range names {
		text = strings.ReplaceAll(text, "$"+name, params[name])
	}
	return text
}

// AddTranslations adds or overrides texts.
func (m *Manager) AddTranslations(texts map[string]string) {
	for key, text := range texts {
		m.data.Set(key, text)
	}
}
