package cli

import "github.com/getmockd/glrunner/pkg/cli/internal/output"

// printResult outputs a single operation result.
//
// When --json is active only the JSON encoding of data goes to stdout.
// textFn is called only in text mode.
func printResult(data any, textFn func()) error {
	if jsonOutput {
		return output.JSON(data)
	}
	textFn()
	return nil
}
