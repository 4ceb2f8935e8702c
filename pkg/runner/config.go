package runner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/getmockd/glrunner/pkg/document"
)

// Header is the first line of every rendered config file.
const Header = "# MANAGED BY glrunner"

// Top-level keys of a definition file.
const (
	sectionGlobal   = "global"
	sectionDefaults = "runner_defaults"
	sectionRunners  = "runners"
)

// Per-runner key naming the token file, in either spelling. It is consumed
// while parsing and never reaches the rendered config.
const (
	KeyTokenFile    = "token_file"
	KeyTokenFileAlt = "token-file"
)

// Definition is one runner to assemble.
type Definition struct {
	Name    string
	Options *document.Map
	// TokenFile overrides the default token location when set.
	TokenFile string
}

// Config describes a complete gitlab-runner config file.
type Config struct {
	// Global holds the top-level settings (concurrent, log_level, ...).
	Global *document.Map
	// Defaults is merged under every runner's own options.
	Defaults *document.Map
	Runners  []Definition
}

// DefinitionError reports an invalid definition file.
type DefinitionError struct {
	Path    string
	Message string
	Err     error
}

func (e *DefinitionError) Error() string {
	msg := e.Message
	if e.Err != nil {
		if msg == "" {
			msg = e.Err.Error()
		} else {
			msg = msg + ": " + e.Err.Error()
		}
	}
	if e.Path == "" {
		return msg
	}
	return e.Path + ": " + msg
}

func (e *DefinitionError) Unwrap() error {
	return e.Err
}

// ExpandDefinitionFiles resolves patterns to file paths. Patterns may use **
// for recursive matching; a plain path is returned as is. A pattern matching
// nothing is an error. Duplicates are removed, first occurrence wins.
func ExpandDefinitionFiles(patterns []string) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}

	for _, pattern := range patterns {
		if !hasMeta(pattern) {
			add(pattern)
			continue
		}
		matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("expanding glob pattern %q: %w", pattern, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("no definition files match %q", pattern)
		}
		for _, m := range matches {
			add(m)
		}
	}
	return out, nil
}

func hasMeta(pattern string) bool {
	return strings.ContainsAny(pattern, "*?[{")
}

// LoadConfigFile reads a definition file. Files ending in .toml are parsed as
// TOML, everything else as YAML (which includes JSON).
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &DefinitionError{Path: path, Message: "failed to read definition file", Err: err}
	}

	var m *document.Map
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		m, err = document.FromTOML(data)
	} else {
		m, err = document.FromYAML(data)
	}
	if err != nil {
		return nil, &DefinitionError{Path: path, Message: "failed to parse definition file", Err: err}
	}

	cfg, err := ParseConfig(m)
	if err != nil {
		return nil, &DefinitionError{Path: path, Err: err}
	}
	return cfg, nil
}

// LoadConfigFiles reads and merges several definition files in order. Global
// settings and defaults are merged with later files winning; runners are
// appended and must have unique names.
func LoadConfigFiles(paths []string) (*Config, error) {
	merged := &Config{Global: document.NewMap(), Defaults: document.NewMap()}
	owner := make(map[string]string)
	for _, path := range paths {
		cfg, err := LoadConfigFile(path)
		if err != nil {
			return nil, err
		}
		merged.Global = document.Merge(merged.Global, cfg.Global)
		merged.Defaults = document.Merge(merged.Defaults, cfg.Defaults)
		for _, def := range cfg.Runners {
			if prev, dup := owner[def.Name]; dup {
				return nil, &DefinitionError{Path: path, Message: fmt.Sprintf("runner %q is already defined in %s", def.Name, prev)}
			}
			owner[def.Name] = path
			merged.Runners = append(merged.Runners, def)
		}
	}
	return merged, nil
}

// ParseConfig builds a Config from a decoded definition document:
//
//	global:          { concurrent: 4, log_level: info }
//	runner_defaults: { url: https://gitlab.com, executor: shell }
//	runners:
//	  testrunner:    { registration-token: ..., tag_list: [linux] }
func ParseConfig(m *document.Map) (*Config, error) {
	cfg := &Config{Global: document.NewMap(), Defaults: document.NewMap()}
	var err error
	m.Range(func(key string, v document.Value) bool {
		switch key {
		case sectionGlobal:
			cfg.Global, err = section(key, v)
		case sectionDefaults:
			if cfg.Defaults, err = section(key, v); err == nil && hasTokenFile(cfg.Defaults) {
				err = fmt.Errorf("%s.%s: a token file belongs to a single runner", key, KeyTokenFile)
			}
		case sectionRunners:
			var runners *document.Map
			if runners, err = section(key, v); err != nil {
				return false
			}
			runners.Range(func(name string, rv document.Value) bool {
				var opts *document.Map
				if opts, err = section(sectionRunners+"."+name, rv); err != nil {
					return false
				}
				opts = opts.Clone()
				var tokenFile string
				if tokenFile, err = takeTokenFile(sectionRunners+"."+name, opts); err != nil {
					return false
				}
				cfg.Runners = append(cfg.Runners, Definition{Name: name, Options: opts, TokenFile: tokenFile})
				return true
			})
		default:
			err = fmt.Errorf("unknown key %q (expected %s, %s or %s)", key, sectionGlobal, sectionDefaults, sectionRunners)
		}
		return err == nil
	})
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func section(path string, v document.Value) (*document.Map, error) {
	m, ok := v.AsMap()
	if !ok {
		return nil, fmt.Errorf("%s must be a mapping, got %s", path, v.Kind())
	}
	return m, nil
}

func hasTokenFile(m *document.Map) bool {
	return m.Has(KeyTokenFile) || m.Has(KeyTokenFileAlt)
}

// takeTokenFile removes the token file key from opts and returns its value.
func takeTokenFile(path string, opts *document.Map) (string, error) {
	var file string
	for _, key := range []string{KeyTokenFile, KeyTokenFileAlt} {
		v, ok := opts.Get(key)
		if !ok {
			continue
		}
		opts.Delete(key)
		s, isString := v.AsString()
		if !isString || s == "" {
			return "", fmt.Errorf("%s.%s must be a non-empty string", path, key)
		}
		file = s
	}
	return file, nil
}

// RenderConfig assembles every runner of cfg in order and renders the
// complete config file. Nothing is returned unless every runner succeeds.
func (a *Assembler) RenderConfig(ctx context.Context, cfg *Config) (string, error) {
	runners := make([]document.Value, 0, len(cfg.Runners))
	for _, def := range cfg.Runners {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		opts := document.Merge(cfg.Defaults, def.Options)
		fragment, err := a.Assemble(ctx, def.Name, opts, def.TokenFile)
		if err != nil {
			return "", fmt.Errorf("runner %q: %w", def.Name, err)
		}
		runners = append(runners, document.MapValue(fragment))
	}

	doc := cfg.Global.Clone()
	doc.Delete(sectionRunners)
	if len(runners) > 0 {
		doc.Set(sectionRunners, document.Sequence(runners...))
	}

	body, err := ToDocument(doc)
	if err != nil {
		return "", err
	}
	if body == "" {
		return Header + "\n", nil
	}
	return Header + "\n\n" + body, nil
}
