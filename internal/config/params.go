package config

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// FilterEnvPrefix scopes per-filter env overrides:
// REFINERY_FILTER__<NAME>__<KEY>=value.
const FilterEnvPrefix = "REFINERY_FILTER__"

// DecodeParams decodes the raw params of filter name into out (a pointer to a
// struct with koanf tags). Env overrides win over params; values are weakly
// typed, so "60" decodes into an int field.
func DecodeParams(name string, params map[string]any, out any) error {
	k := koanf.New(".")
	for key, v := range params {
		if err := k.Set(key, v); err != nil {
			return fmt.Errorf("param %q: %w", key, err)
		}
	}

	prefix := FilterEnvPrefix + EnvName(name) + "__"
	if err := k.Load(env.Provider(prefix, "__", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, prefix))
	}), nil); err != nil {
		return fmt.Errorf("env overrides: %w", err)
	}

	if err := k.UnmarshalWithConf("", out, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return fmt.Errorf("decode params: %w", err)
	}
	return nil
}

// EnvName upper-cases name and replaces anything outside [A-Z0-9] with '_'.
func EnvName(name string) string {
	return strings.Map(func(r rune) rune {
		r = unicode.ToUpper(r)
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		return '_'
	}, name)
}
