package cli

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/getmockd/glrunner/pkg/cliconfig"
	"github.com/getmockd/glrunner/pkg/gitlab"
	"github.com/getmockd/glrunner/pkg/logging"
	"github.com/getmockd/glrunner/pkg/metrics"
	"github.com/getmockd/glrunner/pkg/runner"
	"github.com/getmockd/glrunner/pkg/tokenstore"
	"github.com/spf13/cobra"
)

var (
	// Persistent flags available to all subcommands
	logLevel        string
	logFormat       string
	timeoutSeconds  int
	metricsTextfile string
	jsonOutput      bool

	// Version is injected during build
	Version = "dev"
	// Commit is injected during build
	Commit = "none"
	// BuildDate is injected during build
	BuildDate = "unknown"
)

// app holds what PersistentPreRunE resolved for the running command.
var app struct {
	cfg     *cliconfig.CLIConfig
	log     *slog.Logger
	metrics *metrics.Recorder
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "glrunner",
	Short: "glrunner registers GitLab runners and renders their config.toml",
	Long: `glrunner manages GitLab runner identities: it registers runners with a
registration token, caches each runner's authentication token on disk so a
runner is registered only once, and renders the gitlab-runner config.toml.

Configuration can be provided via flags, GLRUNNER_* environment variables,
.glrunner.yaml in the current directory or $XDG_CONFIG_HOME/glrunner/config.yaml.`,
	SilenceUsage:      true,
	SilenceErrors:     true, // We handle errors in Execute()
	PersistentPreRunE: setup,
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return flushMetrics()
	},
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	os.Exit(Main())
}

// Main runs the root command and returns the process exit code.
func Main() int {
	if err := rootCmd.Execute(); err != nil {
		_ = flushMetrics()
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (default warn)")
	pf.StringVar(&logFormat, "log-format", "", "Log format: text or json (default text)")
	pf.IntVar(&timeoutSeconds, "timeout", 0, "GitLab API timeout in seconds (default 30)")
	pf.StringVar(&metricsTextfile, "metrics-textfile", "", "Write Prometheus metrics to this node exporter textfile")
	pf.BoolVar(&jsonOutput, "json", false, "Output command results in JSON format")
}

// setup loads the layered configuration, applies flags and builds the logger.
func setup(cmd *cobra.Command, args []string) error {
	cfg, err := cliconfig.LoadAll()
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.LogLevel = logLevel
		cfg.Sources["logLevel"] = cliconfig.SourceFlag
	}
	if flags.Changed("log-format") {
		cfg.LogFormat = logFormat
		cfg.Sources["logFormat"] = cliconfig.SourceFlag
	}
	if flags.Changed("timeout") {
		cfg.Timeout = timeoutSeconds
		cfg.Sources["timeout"] = cliconfig.SourceFlag
	}
	if flags.Changed("metrics-textfile") {
		cfg.MetricsTextfile = metricsTextfile
		cfg.Sources["metricsTextfile"] = cliconfig.SourceFlag
	}
	if flags.Changed("json") {
		cfg.JSON = jsonOutput
		cfg.Sources["json"] = cliconfig.SourceFlag
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	jsonOutput = cfg.JSON

	app.cfg = cfg
	logCfg := logging.DefaultConfig()
	logCfg.Level = logging.ParseLevel(cfg.LogLevel)
	logCfg.Format = logging.ParseFormat(cfg.LogFormat)
	app.log = logging.New(logCfg)
	if cfg.MetricsTextfile != "" {
		app.metrics = metrics.New()
	}
	return nil
}

func flushMetrics() error {
	if app.cfg == nil || app.cfg.MetricsTextfile == "" {
		return nil
	}
	if err := app.metrics.WriteTextfile(app.cfg.MetricsTextfile); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}

// newClient creates a GitLab API client for url.
func newClient(url string) *gitlab.Client {
	return gitlab.New(url, clientOptions()...)
}

func clientOptions() []gitlab.Option {
	return []gitlab.Option{
		gitlab.WithTimeout(time.Duration(app.cfg.Timeout) * time.Second),
		gitlab.WithUserAgent("glrunner/" + Version),
		gitlab.WithLogger(app.log),
	}
}

// newAssembler wires the assembler to GitLab and the on-disk token store.
func newAssembler(tokenDir string) *runner.Assembler {
	if tokenDir == "" {
		tokenDir = app.cfg.TokenDir
	}
	return runner.NewAssembler(
		runner.GitLab(clientOptions()...),
		tokenstore.New(tokenstore.WithLogger(app.log)),
		runner.WithLogger(app.log),
		runner.WithMetrics(app.metrics),
		runner.WithTokenDir(tokenDir),
	)
}

// resolveURL returns the --url flag value, falling back to the configured URL.
func resolveURL(flagURL string) (string, error) {
	if flagURL != "" {
		return flagURL, nil
	}
	if app.cfg.URL != "" {
		return app.cfg.URL, nil
	}
	return "", ErrMissingURL
}
