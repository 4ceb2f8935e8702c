package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/getmockd/glrunner/pkg/runner"
)

var toTOMLCmd = &cobra.Command{
	Use:   "to-toml [file|-]",
	Short: "Convert a YAML or JSON document to gitlab-runner TOML",
	Long: `Convert a YAML, JSON or TOML document to the TOML dialect gitlab-runner reads.
Reads stdin when the file is omitted or "-".`,
	Example: `  glrunner to-toml runner.yaml
  echo 'concurrent: 2' | glrunner to-toml`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "-"
		if len(args) == 1 {
			path = args[0]
		}
		m, err := readDocument(path)
		if err != nil {
			return err
		}
		out, err := runner.ToDocument(m)
		if err != nil {
			return err
		}
		fmt.Print(out)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(toTOMLCmd)
}
