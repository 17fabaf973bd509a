/*
Package config provides type-safe configuration extraction from map[string]any.

# Overview

config wraps a map[string]any and provides typed accessor methods that handle
missing keys and type mismatches gracefully by returning default values.
This is useful for extracting registry settings from YAML/JSON structures
without verbose type assertions and nil checks. It also provides Str, the
coercion primitive the registry uses to format caller-supplied keys and
values for logs, events, and journal records.

# Basic Usage

Create a Config from any map and extract values with defaults:

	cfg := config.New(map[string]any{
	    "lock_backoff":      "250ms",
	    "lock_max_attempts": 3,
	    "metrics":           true,
	})

	backoff := cfg.Duration("lock_backoff", 100*time.Millisecond) // 250ms
	attempts := cfg.Int("lock_max_attempts", 5)                   // 3
	metrics := cfg.Bool("metrics", false)                         // true

# Type Coercion

Duration handles multiple input types:
  - string: parsed with time.ParseDuration ("30s", "1h30m")
  - int/float64: interpreted as seconds
  - time.Duration: used directly

Bool, Int, and Float also parse string forms ("true", "42", "1.5"), so
values forwarded from environment variables or flat key=value files
work without pre-conversion.

All accessor methods return the default value if:
  - The key is missing
  - The value cannot be converted to the requested type
  - The conversion would lose precision (e.g., float to int with fraction)

# File Loading

Load configuration from YAML or JSON files:

	cfg, err := config.FromFile("namereg.yaml")
	if err != nil {
	    log.Fatal(err)
	}

	// Or load from bytes
	cfg, err = config.FromYAML(yamlBytes)
	cfg, err = config.FromJSON(jsonBytes)

Unknown reports configured keys that no registry or locker setting
reads, which catches misspelled keys at startup:

	for _, k := range cfg.Unknown() {
	    logger.Warn("unrecognized config key", "key", k)
	}

# Thread Safety

Config is safe for concurrent read access. The underlying map is not
modified after creation. However, if the original map is modified
externally, behavior is undefined.
*/
package config
