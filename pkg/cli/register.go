package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/getmockd/glrunner/pkg/cli/internal/flags"
	"github.com/getmockd/glrunner/pkg/cli/internal/output"
	"github.com/getmockd/glrunner/pkg/cli/internal/parse"
	"github.com/getmockd/glrunner/pkg/document"
)

var (
	registerURL         string
	registerToken       string
	registerOptions     flags.StringSlice
	registerOptionsFile string
	registerName        string
	registerFile        string
	registerTokenDir    string
)

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Register a runner and print its id and token",
	Long: `Register a new runner on a GitLab instance using a registration token.

Registration options (description, info, active, locked, run_untagged,
tag_list, access_level, maximum_timeout) can be passed with --option or read
from a YAML, JSON or TOML file. The new runner's id and token are printed;
use --json for machine-readable output.`,
	Example: `  glrunner register --url https://gitlab.com --registration-token $TOKEN \
    --option description=build-box --option 'tag_list=[docker,linux]'`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		url, err := resolveURL(registerURL)
		if err != nil {
			return err
		}
		token, err := resolveRegistrationToken(registerToken)
		if err != nil {
			return err
		}
		opts, err := loadOptions(registerOptionsFile, registerOptions)
		if err != nil {
			return err
		}

		result, err := newAssembler("").Register(cmd.Context(), url, token, opts)
		if err != nil {
			return err
		}
		return printResult(result, func() {
			fmt.Printf("Registered runner %d\n", result.ID)
			fmt.Printf("  token: %s\n", result.Token)
		})
	},
}

var registerToFileCmd = &cobra.Command{
	Use:   "register-to-file",
	Short: "Register a runner once and cache its token in a file",
	Long: `Return the authentication token of a runner, registering it first when no
token is cached yet. The token is saved to --file (default
<token-dir>/auth-token-<name>) with mode 0400; a cached token is returned
without contacting GitLab.`,
	Example: `  glrunner register-to-file --url https://gitlab.com --registration-token $TOKEN --name testrunner`,
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if registerName == "" {
			return fmt.Errorf("--name is required")
		}
		a := newAssembler(registerTokenDir)
		path := registerFile
		if path == "" {
			path = a.TokenPath(registerName)
		}

		// A cached token needs neither URL nor registration token.
		var url, token string
		if _, err := os.Stat(path); err != nil {
			if url, err = resolveURL(registerURL); err != nil {
				return err
			}
			if token, err = resolveRegistrationToken(registerToken); err != nil {
				return err
			}
		}
		opts, err := loadOptions(registerOptionsFile, registerOptions)
		if err != nil {
			return err
		}

		runnerToken, err := a.RegisterToFile(cmd.Context(), url, token, registerName, opts, path)
		if err != nil {
			if runnerToken != "" {
				warnOrphaned(url)
			}
			return err
		}
		return printResult(map[string]string{"token": runnerToken, "file": path}, func() {
			fmt.Println(runnerToken)
		})
	},
}

func init() {
	for _, cmd := range []*cobra.Command{registerCmd, registerToFileCmd} {
		f := cmd.Flags()
		f.StringVar(&registerURL, "url", "", "GitLab instance URL, e.g. https://gitlab.com")
		f.StringVar(&registerToken, "registration-token", "", "Registration token (prompted for when omitted on a terminal)")
		f.Var(&registerOptions, "option", "Registration option as key=value (repeatable)")
		f.StringVar(&registerOptionsFile, "options-file", "", "YAML, JSON or TOML file with registration options")
	}
	registerToFileCmd.Flags().StringVar(&registerName, "name", "", "Runner name, used to name the token file")
	registerToFileCmd.Flags().StringVar(&registerFile, "file", "", "Token file (default <token-dir>/auth-token-<name>)")
	registerToFileCmd.Flags().StringVar(&registerTokenDir, "token-dir", "", "Directory for token files (default /etc/gitlab-runner)")

	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(registerToFileCmd)
}

// loadOptions reads options from path (if set) and overlays the key=value items.
func loadOptions(path string, items []string) (*document.Map, error) {
	base := document.NewMap()
	if path != "" {
		m, err := readDocument(path)
		if err != nil {
			return nil, err
		}
		base = m
	}
	overrides, err := parse.Options(items)
	if err != nil {
		return nil, err
	}
	return document.Merge(base, overrides), nil
}

// readDocument parses a YAML, JSON or TOML file; "-" reads stdin as YAML.
func readDocument(path string) (*document.Map, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var m *document.Map
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		m, err = document.FromTOML(data)
	} else {
		m, err = document.FromYAML(data)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return m, nil
}

func warnOrphaned(url string) {
	output.Warn("the runner was registered at %s but its token could not be saved; unregister it with 'glrunner unregister'", url)
}
