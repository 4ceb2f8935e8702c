// Package parse provides string parsing utilities for CLI commands.
package parse

import (
	"fmt"

	"github.com/getmockd/glrunner/pkg/document"
)

// KeyValue parses a "key:value" or "key=value" string.
// If delimiters are provided, uses the first one found; otherwise defaults to '='.
// Returns the key, value, and a boolean indicating success.
func KeyValue(s string, delimiters ...rune) (key, value string, ok bool) {
	if len(delimiters) == 0 {
		delimiters = []rune{'='}
	}

	for i, c := range s {
		for _, d := range delimiters {
			if c == d {
				return s[:i], s[i+1:], true
			}
		}
	}
	return "", "", false
}

// Option parses a "key=value" runner option. Flow collections are read as
// YAML, so tag_list=[docker,linux] is a sequence and info={arch: amd64} a
// mapping. Bare true/false and numbers become booleans and numbers, and a
// quoted value is unquoted. Anything else is kept verbatim as a string.
func Option(s string) (string, document.Value, error) {
	key, raw, ok := KeyValue(s, '=')
	if !ok || key == "" {
		return "", document.Value{}, fmt.Errorf("invalid option %q: expected key=value", s)
	}
	if raw == "" {
		return key, document.String(""), nil
	}

	switch raw[0] {
	case '[', '{':
		v, err := decodeValue(raw)
		if err != nil {
			return "", document.Value{}, fmt.Errorf("invalid option %q: %w", s, err)
		}
		return key, v, nil
	case '"', '\'':
		if v, err := decodeValue(raw); err == nil && v.Kind() == document.KindString {
			return key, v, nil
		}
		return key, document.String(raw), nil
	}

	if v, err := decodeValue(raw); err == nil {
		switch v.Kind() {
		case document.KindBoolean, document.KindInteger, document.KindFloat:
			return key, v, nil
		}
	}
	return key, document.String(raw), nil
}

func decodeValue(raw string) (document.Value, error) {
	m, err := document.FromYAML([]byte("v: " + raw))
	if err != nil {
		return document.Value{}, err
	}
	v, _ := m.Get("v")
	return v, nil
}

// Options parses repeated key=value options in order. A later option
// replaces an earlier one with the same key.
func Options(items []string) (*document.Map, error) {
	out := document.NewMap()
	for _, item := range items {
		key, v, err := Option(item)
		if err != nil {
			return nil, err
		}
		out.Set(key, v)
	}
	return out, nil
}
