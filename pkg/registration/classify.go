// Package registration separates runner options meant for the registration
// API call from options that belong in the runner's config file.
package registration

import (
	"fmt"
	"strings"

	"github.com/getmockd/glrunner/pkg/document"
)

// Key is the canonical (underscore) spelling of a registration-only option.
type Key string

// Options accepted by the runner registration endpoint. None of them may be
// written to the config file.
const (
	KeyDescription    Key = "description"
	KeyInfo           Key = "info"
	KeyActive         Key = "active"
	KeyLocked         Key = "locked"
	KeyRunUntagged    Key = "run_untagged"
	KeyTagList        Key = "tag_list"
	KeyAccessLevel    Key = "access_level"
	KeyMaximumTimeout Key = "maximum_timeout"
)

// RegistrationOnlyKeys lists every registration-only option in canonical form.
var RegistrationOnlyKeys = []Key{
	KeyDescription,
	KeyInfo,
	KeyActive,
	KeyLocked,
	KeyRunUntagged,
	KeyTagList,
	KeyAccessLevel,
	KeyMaximumTimeout,
}

var registrationOnly = func() map[Key]bool {
	set := make(map[Key]bool, len(RegistrationOnlyKeys))
	for _, k := range RegistrationOnlyKeys {
		set[k] = true
	}
	return set
}()

// NormalizeKey folds hyphens to underscores, so tag-list and tag_list name
// the same option.
func NormalizeKey(key string) Key {
	return Key(strings.ReplaceAll(key, "-", "_"))
}

// IsRegistrationOnly reports whether key (in either spelling) is consumed by
// the registration call.
func IsRegistrationOnly(key string) bool {
	return registrationOnly[NormalizeKey(key)]
}

// ConfigurationError reports options that cannot be used together.
type ConfigurationError struct {
	Keys    []string
	Message string
}

func (e *ConfigurationError) Error() string {
	return e.Message
}

func newMissingCredentialError(keys []string) *ConfigurationError {
	msg := fmt.Sprintf(
		"$config contains a configuration key (%s) which is meant for the registration, but not for the config file. Please remove it or add a 'registration-token'!",
		strings.Join(keys, ", "),
	)
	return &ConfigurationError{Keys: keys, Message: msg}
}

// Result is the outcome of Classify.
type Result struct {
	// ConfigKeys holds every option that belongs in the config file, in input order.
	ConfigKeys *document.Map
	// RegistrationOnly holds the registration-only keys found, as spelled in the input.
	RegistrationOnly []string
	// Errors holds every problem found; see Err.
	Errors []error
}

// Err returns the first classification error, or nil.
func (r *Result) Err() error {
	if len(r.Errors) == 0 {
		return nil
	}
	return r.Errors[0]
}

// Classify partitions opts. Every key lands in exactly one of ConfigKeys and
// RegistrationOnly. When registration-only keys are present but
// credentialAvailable is false (no registration token and no cached runner
// token), a *ConfigurationError naming them is recorded.
func Classify(opts *document.Map, credentialAvailable bool) *Result {
	res := &Result{ConfigKeys: document.NewMap()}
	opts.Range(func(k string, v document.Value) bool {
		if IsRegistrationOnly(k) {
			res.RegistrationOnly = append(res.RegistrationOnly, k)
		} else {
			res.ConfigKeys.Set(k, v)
		}
		return true
	})
	if len(res.RegistrationOnly) > 0 && !credentialAvailable {
		res.Errors = append(res.Errors, newMissingCredentialError(res.RegistrationOnly))
	}
	return res
}

// RegistrationOptions returns the registration-only subset of opts with keys
// rewritten to their canonical spelling, ready to be sent to the API. When
// both spellings of one key are present the later one wins.
func RegistrationOptions(opts *document.Map) *document.Map {
	out := document.NewMap()
	opts.Range(func(k string, v document.Value) bool {
		if IsRegistrationOnly(k) {
			out.Set(string(NormalizeKey(k)), v)
		}
		return true
	})
	return out
}
