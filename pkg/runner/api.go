package runner

import (
	"context"
	"errors"

	"github.com/getmockd/glrunner/pkg/document"
	"github.com/getmockd/glrunner/pkg/gitlab"
	"github.com/getmockd/glrunner/pkg/registration"
)

// Register registers a runner at url using a registration token. options may
// only hold registration options, in either spelling.
func (a *Assembler) Register(ctx context.Context, url, token string, options *document.Map) (*gitlab.RegistrationResult, error) {
	regOpts, err := apiOptions(options, true)
	if err != nil {
		return nil, err
	}
	result, err := a.registrars(url).Register(ctx, token, regOpts.Plain())
	a.metrics.Registration(err)
	if err != nil {
		return nil, err
	}
	a.log.Info("registered runner", "id", result.ID, "url", url)
	return result, nil
}

// RegisterToFile returns the token of runnerName, registering the runner at
// url first unless a token is already cached at filename
// (TokenPath(runnerName) when empty). A cache hit makes no network call.
//
// Known registration options are type-checked; any other key is forwarded to
// the API as is. When registration succeeds but the token cannot be saved,
// the new token is returned together with the error so the caller can
// unregister the runner.
func (a *Assembler) RegisterToFile(ctx context.Context, url, regToken, runnerName string, options *document.Map, filename string) (string, error) {
	if runnerName == "" {
		return "", ErrMissingName
	}
	if filename == "" {
		filename = a.TokenPath(runnerName)
	}

	lc := newLifecycle(runnerName, a.onTransition)
	cached, ok, err := a.store.Load(filename)
	if err != nil {
		return "", err
	}
	if ok {
		if err := lc.transition(Unregistered, Registered); err != nil {
			return "", err
		}
		a.metrics.CacheHit()
		return cached, nil
	}

	regOpts, err := apiOptions(options, false)
	if err != nil {
		return "", err
	}
	result, err := a.obtain(ctx, lc, url, regToken, regOpts, filename)
	if result != nil {
		return result.Token, err
	}
	return "", err
}

// Unregister removes the runner owning token from the instance at url.
func (a *Assembler) Unregister(ctx context.Context, url, token string) (gitlab.UnregisterStatus, error) {
	return a.Unassemble(ctx, url, token)
}

// ToDocument renders m as a complete config document.
func ToDocument(m *document.Map) (string, error) {
	return document.Encode(m)
}

// apiOptions canonicalizes option keys. In strict mode every key must be a
// valid registration option.
func apiOptions(options *document.Map, strict bool) (*document.Map, error) {
	out := document.NewMap()
	options.Range(func(k string, v document.Value) bool {
		out.Set(string(registration.NormalizeKey(k)), v)
		return true
	})
	if !strict {
		return out, nil
	}
	if errs := registration.ValidateOptions(out); len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return out, nil
}
