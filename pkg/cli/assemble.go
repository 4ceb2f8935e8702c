package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/getmockd/glrunner/pkg/cli/internal/flags"
	"github.com/getmockd/glrunner/pkg/cli/internal/output"
	"github.com/getmockd/glrunner/pkg/runner"
)

var (
	assembleFiles    flags.StringSlice
	assembleOutput   string
	assembleTokenDir string
)

var assembleCmd = &cobra.Command{
	Use:   "assemble",
	Short: "Render a gitlab-runner config.toml from runner definitions",
	Long: `Render a complete gitlab-runner config.toml from one or more definition files.

A definition file has three optional sections:

  global:           top-level settings such as concurrent or log_level
  runner_defaults:  options merged under every runner
  runners:          one mapping per runner, keyed by runner name

Runners carrying a registration-token are registered once; their
authentication token is cached in <token-dir>/auth-token-<name> and reused on
later runs. Nothing is written unless every runner assembles.`,
	Example: `  glrunner assemble -f runners.yaml -o /etc/gitlab-runner/config.toml
  glrunner assemble -f 'conf.d/**/*.yaml' --token-dir /var/lib/glrunner`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(assembleFiles) == 0 {
			return fmt.Errorf("at least one definition file is required (-f)")
		}
		paths, err := runner.ExpandDefinitionFiles(assembleFiles)
		if err != nil {
			return err
		}
		cfg, err := runner.LoadConfigFiles(paths)
		if err != nil {
			return err
		}

		rendered, err := newAssembler(assembleTokenDir).RenderConfig(cmd.Context(), cfg)
		if err != nil {
			return err
		}

		if assembleOutput == "" || assembleOutput == "-" {
			fmt.Print(rendered)
			return nil
		}
		if err := output.WriteFile(assembleOutput, []byte(rendered), 0o600); err != nil {
			return fmt.Errorf("failed to write %s: %w", assembleOutput, err)
		}
		return printResult(map[string]any{"file": assembleOutput, "runners": len(cfg.Runners)}, func() {
			fmt.Printf("Wrote %s (%d runners)\n", assembleOutput, len(cfg.Runners))
		})
	},
}

func init() {
	assembleCmd.Flags().VarP(&assembleFiles, "file", "f", "Definition file or glob pattern (repeatable)")
	assembleCmd.Flags().StringVarP(&assembleOutput, "output", "o", "", "Write config.toml here instead of stdout")
	assembleCmd.Flags().StringVar(&assembleTokenDir, "token-dir", "", "Directory for token files (default /etc/gitlab-runner)")
	rootCmd.AddCommand(assembleCmd)
}
