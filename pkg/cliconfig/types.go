// Package cliconfig provides configuration types and loading for the glrunner CLI.
//
// Configuration values come from several layers, highest precedence first:
//
//  1. Command-line flags
//  2. Environment variables (GLRUNNER_* prefix)
//  3. Local config file (.glrunner.yaml in the current directory)
//  4. Global config file ($XDG_CONFIG_HOME/glrunner/config.yaml)
//  5. Default values
//
// The source of every value is tracked in CLIConfig.Sources so the config
// command can show where a setting came from.
package cliconfig

// CLIConfig represents the complete configuration for the glrunner CLI.
type CLIConfig struct {
	// GitLab instance used when a command gets no --url
	URL string `yaml:"url,omitempty" json:"url,omitempty"`

	// Directory holding auth-token-<name> files
	TokenDir string `yaml:"tokenDir" json:"tokenDir"`

	// HTTP timeout in seconds for GitLab API calls
	Timeout int `yaml:"timeout" json:"timeout"`

	// Logging settings
	LogLevel  string `yaml:"logLevel" json:"logLevel"`
	LogFormat string `yaml:"logFormat" json:"logFormat"`

	// Node exporter textfile written after each command (empty = disabled)
	MetricsTextfile string `yaml:"metricsTextfile,omitempty" json:"metricsTextfile,omitempty"`

	// Output settings
	JSON bool `yaml:"json" json:"json"`

	// Sources tracks where each value came from (for debugging)
	Sources map[string]string `yaml:"-" json:"-"`

	// SetFields records the keys present in a loaded file, so an explicit
	// false can be told apart from an absent boolean.
	SetFields map[string]bool `yaml:"-" json:"-"`
}

// ConfigSource identifies where a config value originated.
const (
	SourceDefault = "default"
	SourceEnv     = "env"
	SourceGlobal  = "global"
	SourceLocal   = "local"
	SourceFlag    = "flag"
)
