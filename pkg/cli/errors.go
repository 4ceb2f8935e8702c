package cli

import "errors"

// Common CLI errors
var (
	ErrMissingURL               = errors.New("a GitLab URL is required: pass --url or set GLRUNNER_URL")
	ErrMissingRegistrationToken = errors.New("a registration token is required: pass --registration-token or set GLRUNNER_REGISTRATION_TOKEN")
	ErrMissingRunnerToken       = errors.New("a runner token is required: pass --token")
)
