package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_Registration(t *testing.T) {
	r := New()
	r.Registration(nil)
	r.Registration(nil)
	r.Registration(errors.New("boom"))

	assert.Equal(t, 2.0, testutil.ToFloat64(r.registrations.WithLabelValues(ResultSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.registrations.WithLabelValues(ResultFailure)))
}

func TestRecorder_Unregistration(t *testing.T) {
	r := New()
	r.Unregistration(errors.New("403"))

	assert.Equal(t, 0.0, testutil.ToFloat64(r.unregistrations.WithLabelValues(ResultSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.unregistrations.WithLabelValues(ResultFailure)))
}

func TestRecorder_CacheHitAndDuration(t *testing.T) {
	r := New()
	r.CacheHit()
	r.ObserveAssemble(25 * time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.cacheHits))
	assert.Equal(t, 1, testutil.CollectAndCount(r.assembleDuration))
}

func TestRecorder_Nil(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.Registration(nil)
		r.Unregistration(nil)
		r.CacheHit()
		r.ObserveAssemble(time.Second)
	})
	assert.Nil(t, r.Registry())
	assert.NoError(t, r.WriteTextfile(filepath.Join(t.TempDir(), "x.prom")))
}

func TestRecorder_WriteTextfile(t *testing.T) {
	r := New()
	r.Registration(nil)
	r.CacheHit()

	path := filepath.Join(t.TempDir(), "glrunner.prom")
	require.NoError(t, r.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)

	assert.Contains(t, out, `glrunner_registrations_total{result="success"} 1`)
	assert.Contains(t, out, `glrunner_registrations_total{result="failure"} 0`)
	assert.Contains(t, out, "glrunner_token_cache_hits_total 1")
	assert.True(t, strings.Contains(out, "# HELP glrunner_unregistrations_total"))
}
