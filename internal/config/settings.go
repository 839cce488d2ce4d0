package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ProtectedKey names the one setting that can never be changed through the
// settings workflow: the authorized principal.
const ProtectedKey = "telegram.user_id"

// secretKeys hold credentials and are never rendered into chat.
var secretKeys = map[string]bool{
	"telegram.bot_token": true,
	"kraken.api_key":     true,
	"kraken.api_secret":  true,
}

// Setting is one editable configuration entry addressed by dotted path.
type Setting struct {
	Key   string
	Value any
}

// Masked reports whether the setting's value must not be displayed.
func (s Setting) Masked() bool {
	return secretKeys[s.Key]
}

// Settings returns all configuration entries as dotted key/value pairs in
// stable order. The protected key is included for display but rejected by
// WithValue.
func (c Config) Settings() ([]Setting, error) {
	doc, err := c.document()
	if err != nil {
		return nil, err
	}
	flat := make(map[string]any)
	flattenInto(flat, "", doc)
	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	settings := make([]Setting, 0, len(keys))
	for _, k := range keys {
		settings = append(settings, Setting{Key: k, Value: flat[k]})
	}
	return settings, nil
}

// HasKey reports whether key names an existing leaf setting.
func (c Config) HasKey(key string) bool {
	settings, err := c.Settings()
	if err != nil {
		return false
	}
	for _, s := range settings {
		if s.Key == key {
			return true
		}
	}
	return false
}

// WithValue returns a copy of the configuration with the setting at the
// dotted key replaced. The result passes the full strict decode and
// validation pipeline, so an edit can never produce a broken config.
func (c Config) WithValue(key string, value any) (Config, error) {
	if key == ProtectedKey {
		return Config{}, fmt.Errorf("setting %s cannot be changed", ProtectedKey)
	}
	doc, err := c.document()
	if err != nil {
		return Config{}, err
	}
	if err := setPath(doc, strings.Split(key, "."), value); err != nil {
		return Config{}, fmt.Errorf("setting %s: %w", key, err)
	}
	data, err := yaml.Marshal(doc)
	if err != nil {
		return Config{}, err
	}
	return Parse(data)
}

// Save writes the configuration back as a single YAML document.
func (c Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// Coerce interprets user-entered text as bool, then integer, then string.
func Coerce(text string) any {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "true":
		return true
	case "false":
		return false
	}
	if n, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64); err == nil {
		return n
	}
	return text
}

func (c Config) document() (map[string]any, error) {
	raw, err := yaml.Marshal(c)
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func flattenInto(out map[string]any, prefix string, node any) {
	nested, ok := node.(map[string]any)
	if !ok {
		out[prefix] = node
		return
	}
	for k, v := range nested {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		flattenInto(out, key, v)
	}
}

func setPath(doc map[string]any, path []string, value any) error {
	if len(path) == 0 {
		return fmt.Errorf("empty key")
	}
	if len(path) == 1 {
		if _, ok := doc[path[0]]; !ok {
			return fmt.Errorf("unknown setting")
		}
		doc[path[0]] = value
		return nil
	}
	next, ok := doc[path[0]].(map[string]any)
	if !ok {
		return fmt.Errorf("unknown setting")
	}
	return setPath(next, path[1:], value)
}
