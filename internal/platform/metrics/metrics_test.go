package metrics

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_WriteTextfile(t *testing.T) {
	reg := NewRegistry()

	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "probe_test_total", Help: "test"})
	reg.MustRegister(c)
	c.Add(3)

	path := filepath.Join(t.TempDir(), "probe.prom")
	require.NoError(t, reg.WriteTextfile(path))

	b, err := os.ReadFile(path)
	require.NoError(t, err)

	assert.Contains(t, string(b), "probe_test_total 3")
	assert.Contains(t, string(b), "go_goroutines")
}

func TestRegistry_WriteTextfileDisabled(t *testing.T) {
	assert.NoError(t, NewRegistry().WriteTextfile(""))
}

func TestRegistry_WriteTextfileBadDir(t *testing.T) {
	err := NewRegistry().WriteTextfile(filepath.Join(t.TempDir(), "missing", "probe.prom"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "writing metrics textfile")
}
