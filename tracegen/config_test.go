package tracegen

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDefaultConfig pins the defaults.
func TestDefaultConfig(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 1, cfg.Clusters)
	assert.Equal(t, 100, cfg.InstrMin)
	assert.Equal(t, 100, cfg.InstrMax)
	assert.Equal(t, "trace.jets", cfg.Output)
}

// TestFromEnv reads JETS_* variables over the defaults.
func TestFromEnv(t *testing.T) {
	t.Setenv("JETS_CLUSTERS", "3")
	t.Setenv("JETS_INSTR_MAX", "250")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Clusters)
	assert.Equal(t, 250, cfg.InstrMax)
	assert.Equal(t, 1, cfg.Cores) // untouched default
}

// TestFromEnvRejectsGarbage surfaces unparseable values.
func TestFromEnvRejectsGarbage(t *testing.T) {
	t.Setenv("JETS_CORES", "many")
	_, err := FromEnv()
	assert.Error(t, err)
}

// TestFromFile reads a partial YAML file over the defaults.
func TestFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gen.yaml")
	content := "clusters: 2\nthreads: 4\ninstr_min: 10\ninstr_max: 20\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := FromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Clusters)
	assert.Equal(t, 1, cfg.Cores)
	assert.Equal(t, 4, cfg.Threads)
	assert.Equal(t, 10, cfg.InstrMin)
	assert.Equal(t, 20, cfg.InstrMax)
	assert.Equal(t, "trace.jets", cfg.Output)
}

// TestFromFileMissing surfaces the read error.
func TestFromFileMissing(t *testing.T) {
	_, err := FromFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
