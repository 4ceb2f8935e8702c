// glrunner registers GitLab runners and renders their config.toml.
package main

import "github.com/getmockd/glrunner/pkg/cli"

func main() {
	cli.Execute()
}
