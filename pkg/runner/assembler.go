package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/getmockd/glrunner/pkg/document"
	"github.com/getmockd/glrunner/pkg/gitlab"
	"github.com/getmockd/glrunner/pkg/logging"
	"github.com/getmockd/glrunner/pkg/metrics"
	"github.com/getmockd/glrunner/pkg/registration"
	"github.com/getmockd/glrunner/pkg/tokenstore"
)

// Keys with special meaning in runner options.
const (
	KeyRegistrationToken    = "registration-token"
	KeyRegistrationTokenAlt = "registration_token"
	KeyName                 = "name"
	KeyToken                = "token"
	KeyURL                  = "url"
)

// ErrMissingName is returned when a runner has no identity.
var ErrMissingName = errors.New("runner name is required")

// Registrar is the subset of *gitlab.Client the assembler uses.
type Registrar interface {
	Register(ctx context.Context, registrationToken string, opts map[string]any) (*gitlab.RegistrationResult, error)
	Unregister(ctx context.Context, runnerToken string) error
}

// RegistrarFactory returns a Registrar for the GitLab instance at url.
type RegistrarFactory func(url string) Registrar

// GitLab returns a RegistrarFactory creating gitlab clients with opts.
func GitLab(opts ...gitlab.Option) RegistrarFactory {
	return func(url string) Registrar {
		return gitlab.New(url, opts...)
	}
}

// TokenStore is the subset of *tokenstore.FileStore the assembler uses.
type TokenStore interface {
	Load(path string) (string, bool, error)
	Save(path, token string) error
}

// Assembler builds config fragments for runners, registering them on demand.
type Assembler struct {
	registrars   RegistrarFactory
	store        TokenStore
	log          *slog.Logger
	metrics      *metrics.Recorder
	tokenDir     string
	onTransition TransitionFunc
}

// AssemblerOption configures an Assembler.
type AssemblerOption func(*Assembler)

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) AssemblerOption {
	return func(a *Assembler) {
		if log != nil {
			a.log = log
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(rec *metrics.Recorder) AssemblerOption {
	return func(a *Assembler) {
		a.metrics = rec
	}
}

// WithTokenDir sets the directory default token files live in.
func WithTokenDir(dir string) AssemblerOption {
	return func(a *Assembler) {
		a.tokenDir = dir
	}
}

// WithTransitionHook registers fn to observe lifecycle transitions.
func WithTransitionHook(fn TransitionFunc) AssemblerOption {
	return func(a *Assembler) {
		a.onTransition = fn
	}
}

// NewAssembler creates an Assembler.
func NewAssembler(registrars RegistrarFactory, store TokenStore, opts ...AssemblerOption) *Assembler {
	a := &Assembler{
		registrars: registrars,
		store:      store,
		log:        logging.Nop(),
		tokenDir:   tokenstore.DefaultDir,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// TokenPath returns the default token file of runnerName.
func (a *Assembler) TokenPath(runnerName string) string {
	return tokenstore.DefaultPath(a.tokenDir, runnerName)
}

// Assemble resolves the token of runnerName and returns its config fragment:
// name, token, then every config key of options in input order.
//
// The token cached at tokenLocation (TokenPath(runnerName) when empty) is
// used as is. Without a cached token, a registration-token in options
// registers the runner at options' url and caches the new token. Without
// either, a token key in options is used verbatim. Registration-only keys
// require one of the first two.
//
// options is not modified.
func (a *Assembler) Assemble(ctx context.Context, runnerName string, options *document.Map, tokenLocation string) (*document.Map, error) {
	start := time.Now()
	defer func() { a.metrics.ObserveAssemble(time.Since(start)) }()

	if runnerName == "" {
		return nil, ErrMissingName
	}
	if tokenLocation == "" {
		tokenLocation = a.TokenPath(runnerName)
	}

	opts := options.Clone()
	regToken, err := takeRegistrationToken(opts)
	if err != nil {
		return nil, err
	}

	lc := newLifecycle(runnerName, a.onTransition)
	cached, ok, err := a.store.Load(tokenLocation)
	if err != nil {
		return nil, err
	}
	if ok {
		if err := lc.transition(Unregistered, Registered); err != nil {
			return nil, err
		}
		a.metrics.CacheHit()
		a.log.Debug("using cached runner token", "runner", runnerName, "path", tokenLocation)
	}

	res := registration.Classify(opts, regToken != "" || ok)
	if err := res.Err(); err != nil {
		return nil, err
	}

	var token document.Value
	switch {
	case lc.state == Registered:
		token = document.String(cached)
	case regToken != "":
		url, err := registrationURL(runnerName, res.ConfigKeys)
		if err != nil {
			return nil, err
		}
		result, err := a.obtain(ctx, lc, url, regToken, registration.RegistrationOptions(opts), tokenLocation)
		if err != nil {
			return nil, err
		}
		token = document.String(result.Token)
	default:
		token, _ = res.ConfigKeys.Get(KeyToken)
	}

	return buildFragment(runnerName, token, res.ConfigKeys), nil
}

// Unassemble unregisters the runner owning runnerToken from the instance at
// url. The token cache is left untouched.
func (a *Assembler) Unassemble(ctx context.Context, url, runnerToken string) (gitlab.UnregisterStatus, error) {
	err := a.registrars(url).Unregister(ctx, runnerToken)
	a.metrics.Unregistration(err)
	if err != nil {
		return gitlab.UnregisterStatus{}, err
	}
	a.log.Info("unregistered runner", "url", url, logging.Token("token", runnerToken))
	return gitlab.UnregisterStatus{Status: gitlab.StatusSuccess}, nil
}

// obtain registers a runner and caches its token at location. When the token
// cannot be saved the registration result is returned along with the error;
// the runner then exists upstream without a cached token.
func (a *Assembler) obtain(ctx context.Context, lc *lifecycle, url, regToken string, regOpts *document.Map, location string) (*gitlab.RegistrationResult, error) {
	if err := lc.transition(Unregistered, Registering); err != nil {
		return nil, err
	}
	fail := func(err error) error {
		if terr := lc.transition(Registering, Unregistered); terr != nil {
			return errors.Join(err, terr)
		}
		return err
	}

	if errs := registration.ValidateOptions(registration.RegistrationOptions(regOpts)); len(errs) > 0 {
		return nil, fail(errors.Join(errs...))
	}

	result, err := a.registrars(url).Register(ctx, regToken, regOpts.Plain())
	a.metrics.Registration(err)
	if err != nil {
		return nil, fail(err)
	}
	a.log.Info("registered runner", "runner", lc.identity, "id", result.ID, "url", url)

	if err := a.store.Save(location, result.Token); err != nil {
		return result, fail(fmt.Errorf("runner %q registered with id %d but its token was not saved: %w", lc.identity, result.ID, err))
	}
	if err := lc.transition(Registering, Registered); err != nil {
		return result, err
	}
	return result, nil
}

// takeRegistrationToken removes both spellings of the registration token
// from opts and returns its value.
func takeRegistrationToken(opts *document.Map) (string, error) {
	var token string
	for _, key := range []string{KeyRegistrationToken, KeyRegistrationTokenAlt} {
		v, ok := opts.Get(key)
		if !ok {
			continue
		}
		opts.Delete(key)
		s, isString := v.AsString()
		if !isString {
			return "", &registration.ConfigurationError{
				Keys:    []string{key},
				Message: fmt.Sprintf("%s must be a string, got %s", key, v.Kind()),
			}
		}
		if token == "" {
			token = s
		}
	}
	return token, nil
}

func registrationURL(runnerName string, configKeys *document.Map) (string, error) {
	url, ok := configKeys.GetString(KeyURL)
	if !ok || url == "" {
		return "", &registration.ConfigurationError{
			Keys:    []string{KeyURL},
			Message: fmt.Sprintf("runner %q has a 'registration-token' but no 'url' to register with", runnerName),
		}
	}
	return url, nil
}

// buildFragment puts name and token first, then the remaining config keys in
// their original order.
func buildFragment(runnerName string, token document.Value, configKeys *document.Map) *document.Map {
	fragment := document.NewMap()
	if name, ok := configKeys.Get(KeyName); ok {
		fragment.Set(KeyName, name)
	} else {
		fragment.Set(KeyName, document.String(runnerName))
	}
	if token.Kind() != document.KindInvalid {
		fragment.Set(KeyToken, token)
	}
	configKeys.Range(func(k string, v document.Value) bool {
		if k != KeyName && k != KeyToken {
			fragment.Set(k, v)
		}
		return true
	})
	return fragment
}
