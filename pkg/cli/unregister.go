package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	tokenURL   string
	tokenValue string
)

var unregisterCmd = &cobra.Command{
	Use:   "unregister",
	Short: "Unregister a runner using its authentication token",
	Example: `  glrunner unregister --url https://gitlab.com --token glrt-xxxx`,
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		url, token, err := tokenArgs()
		if err != nil {
			return err
		}
		status, err := newAssembler("").Unregister(cmd.Context(), url, token)
		if err != nil {
			return err
		}
		return printResult(status, func() {
			fmt.Println("Runner unregistered")
		})
	},
}

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check that a runner authentication token is still valid",
	Example: `  glrunner verify --url https://gitlab.com --token glrt-xxxx`,
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		url, token, err := tokenArgs()
		if err != nil {
			return err
		}
		if err := newClient(url).Verify(cmd.Context(), token); err != nil {
			return err
		}
		return printResult(map[string]bool{"valid": true}, func() {
			fmt.Println("Runner token is valid")
		})
	},
}

func init() {
	for _, cmd := range []*cobra.Command{unregisterCmd, verifyCmd} {
		cmd.Flags().StringVar(&tokenURL, "url", "", "GitLab instance URL")
		cmd.Flags().StringVar(&tokenValue, "token", "", "Runner authentication token")
		rootCmd.AddCommand(cmd)
	}
}

func tokenArgs() (string, string, error) {
	url, err := resolveURL(tokenURL)
	if err != nil {
		return "", "", err
	}
	if tokenValue == "" {
		return "", "", ErrMissingRunnerToken
	}
	return url, tokenValue, nil
}
