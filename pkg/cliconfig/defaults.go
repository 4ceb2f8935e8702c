package cliconfig

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/getmockd/glrunner/pkg/tokenstore"
)

// DefaultTimeout is the default GitLab API timeout in seconds.
const DefaultTimeout = 30

// MaxTimeout is the largest accepted timeout in seconds.
const MaxTimeout = 3600

// DefaultLogLevel is the default log level.
const DefaultLogLevel = "warn"

// DefaultLogFormat is the default log format.
const DefaultLogFormat = "text"

// NewDefault creates a new CLIConfig with default values.
func NewDefault() *CLIConfig {
	cfg := &CLIConfig{
		TokenDir:  tokenstore.DefaultDir,
		Timeout:   DefaultTimeout,
		LogLevel:  DefaultLogLevel,
		LogFormat: DefaultLogFormat,
		Sources:   make(map[string]string),
	}

	// Mark all as default source
	cfg.Sources["tokenDir"] = SourceDefault
	cfg.Sources["timeout"] = SourceDefault
	cfg.Sources["logLevel"] = SourceDefault
	cfg.Sources["logFormat"] = SourceDefault
	cfg.Sources["json"] = SourceDefault

	return cfg
}

// Validate checks that every value is usable.
func (c *CLIConfig) Validate() error {
	if c.Timeout < 0 || c.Timeout > MaxTimeout {
		return fmt.Errorf("timeout %d is out of range (0-%d)", c.Timeout, MaxTimeout)
	}
	switch strings.ToLower(c.LogLevel) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logLevel %q must be one of debug, info, warn, error", c.LogLevel)
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "text", "json":
	default:
		return fmt.Errorf("logFormat %q must be text or json", c.LogFormat)
	}
	if c.URL != "" {
		u, err := url.Parse(c.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("url %q must be an absolute http(s) URL", c.URL)
		}
	}
	return nil
}
