// Package runner turns runner definitions into gitlab-runner config file
// fragments.
//
// An Assembler resolves each runner's authentication token before rendering
// it. A token cached on disk always wins and no network call is made.
// Otherwise, when the definition carries a registration-token, the runner is
// registered once and the returned token is cached. Registration-only options
// (description, tag_list, ...) are sent with the registration call and never
// written to the config file.
//
// The per-identity sequence of load, register and save is not atomic.
// Callers must not assemble the same runner identity concurrently.
//
// Typical use:
//
//	a := runner.NewAssembler(runner.GitLab(), tokenstore.New())
//	fragment, err := a.Assemble(ctx, "testrunner", options, "")
//	if err != nil {
//		return err
//	}
//	text, err := runner.ToDocument(document.NewMap().Set("runners",
//		document.Sequence(document.MapValue(fragment))))
package runner
