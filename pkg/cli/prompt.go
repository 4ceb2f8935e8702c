package cli

import (
	"errors"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"

	"github.com/getmockd/glrunner/pkg/cliconfig"
)

// stdinIsTerminal is replaced in tests.
var stdinIsTerminal = func() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// promptSecret asks for a secret on the terminal.
var promptSecret = func(title string) (string, error) {
	var value string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title(title).
				EchoMode(huh.EchoModePassword).
				Value(&value).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return errors.New("a value is required")
					}
					return nil
				}),
		),
	)
	if err := form.Run(); err != nil {
		return "", err
	}
	return strings.TrimSpace(value), nil
}

// resolveRegistrationToken returns the --registration-token flag value, the
// GLRUNNER_REGISTRATION_TOKEN variable, or asks for it when stdin is a terminal.
func resolveRegistrationToken(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if env := cliconfig.GetRegistrationTokenFromEnv(); env != "" {
		return env, nil
	}
	if !stdinIsTerminal() {
		return "", ErrMissingRegistrationToken
	}
	return promptSecret("Registration token")
}
