package parse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/glrunner/pkg/document"
)

func TestKeyValue(t *testing.T) {
	k, v, ok := KeyValue("description=a=b")
	assert.True(t, ok)
	assert.Equal(t, "description", k)
	assert.Equal(t, "a=b", v)

	_, _, ok = KeyValue("nodelimiter")
	assert.False(t, ok)

	k, v, ok = KeyValue("Host: example.com", ':')
	assert.True(t, ok)
	assert.Equal(t, "Host", k)
	assert.Equal(t, " example.com", v)
}

func TestOption_Types(t *testing.T) {
	tests := []struct {
		in   string
		key  string
		kind document.Kind
	}{
		{"description=build box", "description", document.KindString},
		{"locked=true", "locked", document.KindBoolean},
		{"maximum_timeout=600", "maximum_timeout", document.KindInteger},
		{"tag_list=[docker, linux]", "tag_list", document.KindSequence},
		{"info={arch: amd64}", "info", document.KindMap},
		{"description=", "description", document.KindString},
		{`description="true"`, "description", document.KindString},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			key, v, err := Option(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.key, key)
			assert.Equal(t, tt.kind, v.Kind())
		})
	}
}

func TestOption_KeepsPlainTextVerbatim(t *testing.T) {
	for _, raw := range []string{
		"build box #1",
		"web: primary",
		"#1",
		"*prod",
		"&anchor",
		"~",
		"1.2.3",
		"yes",
	} {
		t.Run(raw, func(t *testing.T) {
			key, v, err := Option("description=" + raw)
			require.NoError(t, err)
			assert.Equal(t, "description", key)
			s, ok := v.AsString()
			require.True(t, ok, "expected a string, got %s", v.Kind())
			assert.Equal(t, raw, s)
		})
	}
}

func TestOption_Values(t *testing.T) {
	_, v, err := Option(`description="quoted #1"`)
	require.NoError(t, err)
	assert.Equal(t, "quoted #1", v.Plain())

	_, v, err = Option("maximum_timeout=600")
	require.NoError(t, err)
	assert.Equal(t, int64(600), v.Plain())

	_, v, err = Option("tag_list=[docker, linux]")
	require.NoError(t, err)
	assert.Equal(t, []any{"docker", "linux"}, v.Plain())

	_, v, err = Option(`description="unterminated`)
	require.NoError(t, err)
	assert.Equal(t, `"unterminated`, v.Plain())
}

func TestOption_Errors(t *testing.T) {
	for _, in := range []string{"novalue", "=x", "tag_list=[unterminated"} {
		_, _, err := Option(in)
		assert.Error(t, err, in)
	}
}

func TestOptions_OrderAndOverride(t *testing.T) {
	m, err := Options([]string{"locked=false", "description=a", "locked=true"})
	require.NoError(t, err)
	assert.Equal(t, []string{"locked", "description"}, m.Keys())
	v, _ := m.Get("locked")
	b, _ := v.AsBool()
	assert.True(t, b)
}
