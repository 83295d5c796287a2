// Package config is the process-wide settings source: an immutable
// key -> string lookup built once at startup. Components receive a
// Settings value instead of reading the environment at import time.
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

var logger logrus.FieldLogger = logrus.StandardLogger()

// EnvPrefix for all viewlink settings, e.g. VIEWLINK_BATCH_MIN_DELAY.
const EnvPrefix = "VIEWLINK_"

// Settings resolves named overrides. The zero value resolves
// everything to defaults.
type Settings struct {
	lookup func(key string) (string, bool)
}

// FromEnv snapshots the prefixed environment into a Settings.
// Later environment changes are not observed.
func FromEnv() Settings {
	vals := make(map[string]string)
	for _, kv := range os.Environ() {
		if !strings.HasPrefix(kv, EnvPrefix) {
			continue
		}
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		vals[strings.TrimPrefix(k, EnvPrefix)] = v
	}
	return FromMap(vals)
}

// FromMap builds a Settings over a fixed map. Used by tests and by
// callers that already parsed their configuration.
func FromMap(vals map[string]string) Settings {
	return Settings{lookup: func(key string) (string, bool) {
		v, ok := vals[key]
		return v, ok
	}}
}

// Int resolves a named integer bound. Resolution rule:
// unset -> def; non-numeric -> def (logged, never an error);
// below minv -> minv; above maxv -> maxv; in range -> as given.
func (s Settings) Int(name string, def, minv, maxv int) int {
	if s.lookup == nil {
		return def
	}
	raw, ok := s.lookup(name)
	if !ok || raw == "" {
		return def
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		logger.Warnf("config: invalid value %q for %s, using default %d", raw, name, def)
		return def
	}
	if v < minv {
		return minv
	}
	if v > maxv {
		return maxv
	}
	return v
}

// Bool resolves a named toggle: "1", "true", "on" are true,
// "0", "false", "off" are false, anything else is the default.
func (s Settings) Bool(name string, def bool) bool {
	if s.lookup == nil {
		return def
	}
	raw, ok := s.lookup(name)
	if !ok {
		return def
	}
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "on":
		return true
	case "0", "false", "off":
		return false
	default:
		return def
	}
}

// String resolves a free-form setting.
func (s Settings) String(name, def string) string {
	if s.lookup == nil {
		return def
	}
	raw, ok := s.lookup(name)
	if !ok || raw == "" {
		return def
	}
	return raw
}
