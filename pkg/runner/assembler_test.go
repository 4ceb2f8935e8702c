package runner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/glrunner/pkg/document"
	"github.com/getmockd/glrunner/pkg/gitlab"
	"github.com/getmockd/glrunner/pkg/metrics"
	"github.com/getmockd/glrunner/pkg/registration"
	"github.com/getmockd/glrunner/pkg/tokenstore"
)

// --- Fakes ---

type registerCall struct {
	url   string
	token string
	opts  map[string]any
}

type fakeRegistrar struct {
	mu          sync.Mutex
	result      *gitlab.RegistrationResult
	err         error
	unregErr    error
	registers   []registerCall
	unregisters []string
}

func (f *fakeRegistrar) factory() RegistrarFactory {
	return func(url string) Registrar {
		return &boundRegistrar{fake: f, url: url}
	}
}

func (f *fakeRegistrar) registerCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.registers)
}

type boundRegistrar struct {
	fake *fakeRegistrar
	url  string
}

func (b *boundRegistrar) Register(_ context.Context, token string, opts map[string]any) (*gitlab.RegistrationResult, error) {
	b.fake.mu.Lock()
	defer b.fake.mu.Unlock()
	b.fake.registers = append(b.fake.registers, registerCall{url: b.url, token: token, opts: opts})
	if b.fake.err != nil {
		return nil, b.fake.err
	}
	return b.fake.result, nil
}

func (b *boundRegistrar) Unregister(_ context.Context, token string) error {
	b.fake.mu.Lock()
	defer b.fake.mu.Unlock()
	b.fake.unregisters = append(b.fake.unregisters, b.url+"|"+token)
	return b.fake.unregErr
}

type memStore struct {
	tokens  map[string]string
	saveErr error
	loads   int
	saves   int
}

func newMemStore() *memStore {
	return &memStore{tokens: make(map[string]string)}
}

func (s *memStore) Load(path string) (string, bool, error) {
	s.loads++
	t, ok := s.tokens[path]
	return t, ok, nil
}

func (s *memStore) Save(path, token string) error {
	s.saves++
	if s.saveErr != nil {
		return s.saveErr
	}
	s.tokens[path] = token
	return nil
}

func newTestAssembler(reg *fakeRegistrar, store TokenStore, opts ...AssemblerOption) *Assembler {
	opts = append([]AssemblerOption{WithTokenDir("/tokens")}, opts...)
	return NewAssembler(reg.factory(), store, opts...)
}

func okRegistrar() *fakeRegistrar {
	return &fakeRegistrar{result: &gitlab.RegistrationResult{ID: 42, Token: "glrt-new"}}
}

func encodeFragment(t *testing.T, m *document.Map) string {
	t.Helper()
	out, err := document.EncodeFragment("runners", m)
	require.NoError(t, err)
	return out
}

// --- Assemble ---

func TestAssemble_NameOnly(t *testing.T) {
	reg := okRegistrar()
	a := newTestAssembler(reg, newMemStore())

	got, err := a.Assemble(context.Background(), "testrunner", document.NewMap(), "")
	require.NoError(t, err)
	assert.Equal(t, "[[runners]]\nname = \"testrunner\"\n", encodeFragment(t, got))
	assert.Zero(t, reg.registerCount())
}

func TestAssemble_ExplicitNameWins(t *testing.T) {
	a := newTestAssembler(okRegistrar(), newMemStore())
	opts := document.NewMap().
		Set("executor", document.String("shell")).
		Set("name", document.String("custom"))

	got, err := a.Assemble(context.Background(), "testrunner", opts, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "executor"}, got.Keys())
	name, _ := got.GetString("name")
	assert.Equal(t, "custom", name)
}

func TestAssemble_RejectsRegistrationKeyWithoutCredential(t *testing.T) {
	reg := okRegistrar()
	store := newMemStore()
	a := newTestAssembler(reg, store)

	_, err := a.Assemble(context.Background(), "testrunner",
		document.NewMap().Set("description", document.String("foo")), "")

	var cerr *registration.ConfigurationError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, []string{"description"}, cerr.Keys)
	assert.Contains(t, err.Error(), "(description)")
	assert.Zero(t, reg.registerCount())
	assert.Zero(t, store.saves)
}

func TestAssemble_RegistersAndCaches(t *testing.T) {
	reg := okRegistrar()
	store := newMemStore()
	var transitions []string
	a := newTestAssembler(reg, store, WithTransitionHook(func(id string, from, to State) {
		transitions = append(transitions, from.String()+"->"+to.String())
	}))

	opts := document.NewMap().
		Set("url", document.String("https://gitlab.example.com")).
		Set("registration-token", document.String("reg-123")).
		Set("tag-list", document.Strings("docker", "linux")).
		Set("executor", document.String("docker")).
		Set("locked", document.Bool(true))

	got, err := a.Assemble(context.Background(), "testrunner", opts, "")
	require.NoError(t, err)

	assert.Equal(t, []string{"name", "token", "url", "executor"}, got.Keys())
	token, _ := got.GetString("token")
	assert.Equal(t, "glrt-new", token)

	require.Equal(t, 1, reg.registerCount())
	call := reg.registers[0]
	assert.Equal(t, "https://gitlab.example.com", call.url)
	assert.Equal(t, "reg-123", call.token)
	assert.Equal(t, map[string]any{"tag_list": []any{"docker", "linux"}, "locked": true}, call.opts)

	assert.Equal(t, "glrt-new", store.tokens["/tokens/auth-token-testrunner"])
	assert.Equal(t, []string{"UNREGISTERED->REGISTERING", "REGISTERING->REGISTERED"}, transitions)

	// options are not modified
	assert.True(t, opts.Has("registration-token"))
}

func TestAssemble_Idempotent(t *testing.T) {
	reg := okRegistrar()
	store := newMemStore()
	rec := metrics.New()
	a := newTestAssembler(reg, store, WithMetrics(rec))

	opts := document.NewMap().
		Set("url", document.String("https://gitlab.com")).
		Set("registration-token", document.String("reg")).
		Set("description", document.String("build box"))

	first, err := a.Assemble(context.Background(), "r1", opts, "")
	require.NoError(t, err)

	reg.result = &gitlab.RegistrationResult{ID: 43, Token: "would-be-different"}
	second, err := a.Assemble(context.Background(), "r1", opts, "")
	require.NoError(t, err)

	assert.Equal(t, 1, reg.registerCount())
	assert.Equal(t, 1, store.saves)
	assert.Equal(t, encodeFragment(t, first), encodeFragment(t, second))
}

func TestAssemble_CachedTokenAllowsRegistrationKeys(t *testing.T) {
	reg := okRegistrar()
	store := newMemStore()
	store.tokens["/tmp/cache"] = "cached-token"
	var transitions []State
	a := newTestAssembler(reg, store, WithTransitionHook(func(_ string, _, to State) {
		transitions = append(transitions, to)
	}))

	opts := document.NewMap().
		Set("url", document.String("https://gitlab.com")).
		Set("token", document.String("stale")).
		Set("tag_list", document.Strings("a"))

	got, err := a.Assemble(context.Background(), "r", opts, "/tmp/cache")
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "token", "url"}, got.Keys())
	token, _ := got.GetString("token")
	assert.Equal(t, "cached-token", token)
	assert.Zero(t, reg.registerCount())
	assert.Equal(t, []State{Registered}, transitions)
}

func TestAssemble_CachedRunnerSkipsOptionValidation(t *testing.T) {
	reg := okRegistrar()
	store := newMemStore()
	store.tokens["/tokens/r"] = "cached-token"
	a := newTestAssembler(reg, store)

	opts := document.NewMap().
		Set("url", document.String("https://gitlab.com")).
		Set("access_level", document.String("everyone"))

	got, err := a.Assemble(context.Background(), "r", opts, "")
	require.NoError(t, err)
	token, _ := got.GetString("token")
	assert.Equal(t, "cached-token", token)
	assert.False(t, got.Has("access_level"))
	assert.Zero(t, reg.registerCount())
}

func TestAssemble_ConfigTokenUsedVerbatim(t *testing.T) {
	a := newTestAssembler(okRegistrar(), newMemStore())
	opts := document.NewMap().
		Set("url", document.String("https://gitlab.com")).
		Set("token", document.String("glrt-manual")).
		Set("executor", document.String("shell"))

	got, err := a.Assemble(context.Background(), "r", opts, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "token", "url", "executor"}, got.Keys())
	token, _ := got.GetString("token")
	assert.Equal(t, "glrt-manual", token)
}

func TestAssemble_RegistrationFailure(t *testing.T) {
	regErr := &gitlab.RegistrationError{Op: gitlab.OpRegister, StatusCode: 403, Body: `{"message":"403 Forbidden"}`}
	reg := &fakeRegistrar{err: regErr}
	store := newMemStore()
	var last State
	a := newTestAssembler(reg, store, WithTransitionHook(func(_ string, _, to State) { last = to }))

	opts := document.NewMap().
		Set("url", document.String("https://gitlab.com")).
		Set("registration_token", document.String("bad"))

	_, err := a.Assemble(context.Background(), "r", opts, "")
	var rerr *gitlab.RegistrationError
	require.ErrorAs(t, err, &rerr)
	assert.Contains(t, err.Error(), "status 403")
	assert.Contains(t, err.Error(), "403 Forbidden")
	assert.Zero(t, store.saves)
	assert.Equal(t, Unregistered, last)
}

func TestAssemble_InvalidRegistrationOption(t *testing.T) {
	reg := okRegistrar()
	a := newTestAssembler(reg, newMemStore())
	opts := document.NewMap().
		Set("url", document.String("https://gitlab.com")).
		Set("registration-token", document.String("reg")).
		Set("access_level", document.String("everyone"))

	_, err := a.Assemble(context.Background(), "r", opts, "")
	var cerr *registration.ConfigurationError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, []string{"access_level"}, cerr.Keys)
	assert.Zero(t, reg.registerCount())
}

func TestAssemble_MissingURL(t *testing.T) {
	reg := okRegistrar()
	a := newTestAssembler(reg, newMemStore())
	opts := document.NewMap().Set("registration-token", document.String("reg"))

	_, err := a.Assemble(context.Background(), "r", opts, "")
	var cerr *registration.ConfigurationError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, []string{"url"}, cerr.Keys)
	assert.Zero(t, reg.registerCount())
}

func TestAssemble_NonStringRegistrationToken(t *testing.T) {
	a := newTestAssembler(okRegistrar(), newMemStore())
	opts := document.NewMap().Set("registration-token", document.Int(5))

	_, err := a.Assemble(context.Background(), "r", opts, "")
	var cerr *registration.ConfigurationError
	require.ErrorAs(t, err, &cerr)
}

func TestAssemble_SaveFailureReported(t *testing.T) {
	reg := okRegistrar()
	store := newMemStore()
	store.saveErr = &tokenstore.StorageError{Op: "mkdir", Path: "/tokens", Err: os.ErrPermission}
	a := newTestAssembler(reg, store)

	opts := document.NewMap().
		Set("url", document.String("https://gitlab.com")).
		Set("registration-token", document.String("reg"))

	_, err := a.Assemble(context.Background(), "r", opts, "")
	var serr *tokenstore.StorageError
	require.ErrorAs(t, err, &serr)
	assert.Contains(t, err.Error(), "id 42")
}

func TestAssemble_MissingName(t *testing.T) {
	a := newTestAssembler(okRegistrar(), newMemStore())
	_, err := a.Assemble(context.Background(), "", nil, "")
	assert.True(t, errors.Is(err, ErrMissingName))
}

// --- Unassemble ---

func TestUnassemble(t *testing.T) {
	reg := okRegistrar()
	store := newMemStore()
	store.tokens["/tokens/auth-token-r"] = "glrt-x"
	a := newTestAssembler(reg, store)

	status, err := a.Unassemble(context.Background(), "https://gitlab.com", "glrt-x")
	require.NoError(t, err)
	assert.Equal(t, gitlab.StatusSuccess, status.Status)
	assert.Equal(t, []string{"https://gitlab.com|glrt-x"}, reg.unregisters)
	assert.Equal(t, "glrt-x", store.tokens["/tokens/auth-token-r"], "cache must be untouched")
}

func TestUnassemble_Error(t *testing.T) {
	reg := &fakeRegistrar{unregErr: &gitlab.RegistrationError{Op: gitlab.OpUnregister, StatusCode: 403}}
	a := newTestAssembler(reg, newMemStore())

	status, err := a.Unregister(context.Background(), "https://gitlab.com", "glrt-x")
	require.Error(t, err)
	assert.Empty(t, status.Status)
}

// --- Caller-facing functions ---

func TestRegister(t *testing.T) {
	reg := okRegistrar()
	a := newTestAssembler(reg, newMemStore())

	res, err := a.Register(context.Background(), "https://gitlab.com", "reg",
		document.NewMap().Set("run-untagged", document.Bool(false)))
	require.NoError(t, err)
	assert.Equal(t, int64(42), res.ID)
	assert.Equal(t, "glrt-new", res.Token)
	assert.Equal(t, map[string]any{"run_untagged": false}, reg.registers[0].opts)
}

func TestRegister_UnknownOption(t *testing.T) {
	reg := okRegistrar()
	a := newTestAssembler(reg, newMemStore())

	_, err := a.Register(context.Background(), "https://gitlab.com", "reg",
		document.NewMap().Set("executor", document.String("shell")))
	var cerr *registration.ConfigurationError
	require.ErrorAs(t, err, &cerr)
	assert.Zero(t, reg.registerCount())
}

func TestRegisterToFile_ForwardsUnknownOptions(t *testing.T) {
	reg := okRegistrar()
	a := newTestAssembler(reg, newMemStore())

	opts := document.NewMap().
		Set("tag-list", document.Strings("docker")).
		Set("maintenance-note", document.String("rack 4"))
	token, err := a.RegisterToFile(context.Background(), "https://gitlab.com", "reg", "r", opts, "/tokens/r")
	require.NoError(t, err)
	assert.Equal(t, "glrt-new", token)
	require.Equal(t, 1, reg.registerCount())
	assert.Equal(t, map[string]any{
		"tag_list":         []any{"docker"},
		"maintenance_note": "rack 4",
	}, reg.registers[0].opts)
}

func TestRegisterToFile_ValidatesKnownOptions(t *testing.T) {
	reg := okRegistrar()
	store := newMemStore()
	a := newTestAssembler(reg, store)

	opts := document.NewMap().Set("access_level", document.String("everyone"))
	_, err := a.RegisterToFile(context.Background(), "https://gitlab.com", "reg", "r", opts, "/tokens/r")
	var cerr *registration.ConfigurationError
	require.ErrorAs(t, err, &cerr)
	assert.Contains(t, err.Error(), "access_level")
	assert.Zero(t, reg.registerCount())
	assert.Empty(t, store.tokens)
}

func TestRegisterToFile_Permissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix permissions")
	}
	reg := okRegistrar()
	dir := filepath.Join(t.TempDir(), "gitlab-runner")
	a := NewAssembler(reg.factory(), tokenstore.New(), WithTokenDir(dir))

	token, err := a.RegisterToFile(context.Background(), "https://gitlab.com", "reg", "testrunner", nil, "")
	require.NoError(t, err)
	assert.Equal(t, "glrt-new", token)

	path := filepath.Join(dir, "auth-token-testrunner")
	fi, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0400), fi.Mode().Perm())

	di, err := os.Stat(dir)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0700), di.Mode().Perm())
}

func TestRegisterToFile_Idempotent(t *testing.T) {
	reg := okRegistrar()
	path := filepath.Join(t.TempDir(), "token")
	a := NewAssembler(reg.factory(), tokenstore.New())

	first, err := a.RegisterToFile(context.Background(), "https://gitlab.com", "reg", "r", nil, path)
	require.NoError(t, err)
	second, err := a.RegisterToFile(context.Background(), "https://gitlab.com", "reg", "r", nil, path)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, reg.registerCount())
}

func TestRegisterToFile_ErrorCreatesNoFile(t *testing.T) {
	reg := &fakeRegistrar{err: &gitlab.RegistrationError{Op: gitlab.OpRegister, StatusCode: 500, Body: "boom"}}
	path := filepath.Join(t.TempDir(), "sub", "token")
	a := NewAssembler(reg.factory(), tokenstore.New())

	token, err := a.RegisterToFile(context.Background(), "https://gitlab.com", "reg", "r", nil, path)
	require.Error(t, err)
	assert.Empty(t, token)
	assert.Contains(t, err.Error(), "boom")

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestRegisterToFile_SaveFailureReturnsToken(t *testing.T) {
	reg := okRegistrar()
	store := newMemStore()
	store.saveErr = &tokenstore.StorageError{Op: "rename", Path: "/x", Err: os.ErrPermission}
	a := newTestAssembler(reg, store)

	token, err := a.RegisterToFile(context.Background(), "https://gitlab.com", "reg", "r", nil, "/x")
	require.Error(t, err)
	assert.Equal(t, "glrt-new", token)
}

func TestToDocument(t *testing.T) {
	m := document.NewMap().
		Set("concurrent", document.Int(2)).
		Set("runners", document.Sequence(document.MapValue(
			document.NewMap().Set("name", document.String("a")))))

	out, err := ToDocument(m)
	require.NoError(t, err)
	assert.Equal(t, "concurrent = 2\n\n[[runners]]\nname = \"a\"\n", out)
}

// --- Lifecycle ---

func TestLifecycleTransitions(t *testing.T) {
	lc := newLifecycle("r", nil)
	require.NoError(t, lc.transition(Unregistered, Registering))
	require.NoError(t, lc.transition(Registering, Unregistered))
	require.NoError(t, lc.transition(Unregistered, Registered))

	assert.Error(t, lc.transition(Registered, Registering), "registered is terminal")
	assert.Error(t, lc.transition(Unregistered, Registering), "wrong prior state")
	assert.Equal(t, Registered, lc.state)
	assert.Equal(t, "State(9)", State(9).String())
}
