package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/getmockd/glrunner/pkg/cli/internal/output"
	"github.com/getmockd/glrunner/pkg/cliconfig"
)

// configOutput is the JSON form of the config command.
type configOutput struct {
	Config  *cliconfig.CLIConfig `json:"config"`
	Sources map[string]string    `json:"sources"`
	Files   []string             `json:"files,omitempty"`
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show effective configuration with source annotations",
	Example: `  glrunner config
  glrunner config --json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := app.cfg

		var files []string
		if globalPath, err := cliconfig.FindGlobalConfig(); err == nil && globalPath != "" {
			files = append(files, globalPath)
		}
		if localPath, err := cliconfig.FindLocalConfig(); err == nil && localPath != "" {
			files = append(files, localPath)
		}

		if jsonOutput {
			return output.JSON(configOutput{Config: cfg, Sources: cfg.Sources, Files: files})
		}

		fmt.Println("Effective Configuration:")
		fmt.Println()

		w := output.Table()
		row := func(name string, value any) {
			source := cfg.Sources[name]
			if source == "" {
				source = cliconfig.SourceDefault
			}
			fmt.Fprintf(w, "  %s:\t%v\t(%s)\n", name, value, formatSource(source))
		}
		row("url", valueOrNone(cfg.URL))
		row("tokenDir", cfg.TokenDir)
		row("timeout", cfg.Timeout)
		row("logLevel", cfg.LogLevel)
		row("logFormat", cfg.LogFormat)
		row("metricsTextfile", valueOrNone(cfg.MetricsTextfile))
		row("json", cfg.JSON)
		if err := w.Flush(); err != nil {
			return err
		}

		fmt.Println()
		if len(files) == 0 {
			fmt.Println("No config files found. Searched:")
			for _, f := range cliconfig.GetGlobalConfigSearchPaths() {
				fmt.Printf("  • %s\n", f)
			}
			for _, f := range cliconfig.LocalConfigFileNames {
				fmt.Printf("  • ./%s\n", f)
			}
			return nil
		}
		fmt.Println("Sources loaded:")
		for _, f := range files {
			fmt.Printf("  • %s\n", f)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}

func valueOrNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

func formatSource(source string) string {
	switch source {
	case cliconfig.SourceGlobal:
		return "global config"
	case cliconfig.SourceLocal:
		return "local config"
	default:
		return source
	}
}
