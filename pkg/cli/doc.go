// Package cli provides the command-line interface for glrunner.
//
// Commands:
//   - register: Register a runner and print its id and token
//   - register-to-file: Register a runner once and cache its token in a file
//   - unregister: Remove a runner using its own token
//   - verify: Check that a runner token is still valid
//   - assemble: Render a complete gitlab-runner config.toml from definition files
//   - to-toml: Convert a YAML, JSON or TOML document to the config format
//   - config: Display effective CLI configuration and where each value came from
//   - version: Show glrunner version
//
// Global flags (--log-level, --log-format, --timeout, --metrics-textfile,
// --json) override the layered configuration from pkg/cliconfig.
package cli
