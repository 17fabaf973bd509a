package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// decoders maps a file extension to the loader for that format.
var decoders = map[string]func([]byte) (Config, error){
	".yaml": FromYAML,
	".yml":  FromYAML,
	".json": FromJSON,
}

// knownKeys lists every setting the registry and locker read. Unknown
// consults it to surface typos like "lock_retires" before the default
// silently wins.
var knownKeys = map[string]struct{}{
	"request_buffer":      {},
	"metrics":             {},
	"tracing":             {},
	"lock_timeout":        {},
	"lock_max_attempts":   {},
	"lock_backoff":        {},
	"lock_backoff_factor": {},
	"lock_jitter":         {},
}

// FromFile loads configuration from a file, detecting the format by
// extension. Supported extensions: .yaml, .yml, .json
func FromFile(path string) (Config, error) {
	decode, ok := decoders[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return Config{}, fmt.Errorf("unsupported config file extension: %s", filepath.Ext(path))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	return decode(data)
}

// FromYAML parses YAML data into a Config.
func FromYAML(data []byte) (Config, error) {
	return parse("yaml", yaml.Unmarshal, data)
}

// FromJSON parses JSON data into a Config.
func FromJSON(data []byte) (Config, error) {
	return parse("json", json.Unmarshal, data)
}

func parse(format string, unmarshal func([]byte, any) error, data []byte) (Config, error) {
	var m map[string]any
	if err := unmarshal(data, &m); err != nil {
		return Config{}, fmt.Errorf("parse %s config: %w", format, err)
	}
	return New(m), nil
}

// Unknown returns, in sorted order, the configured keys that no
// registry or locker setting reads. Callers typically log these at
// startup.
func (c Config) Unknown() []string {
	var extra []string
	for k := range c.data {
		if _, ok := knownKeys[k]; !ok {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	return extra
}
