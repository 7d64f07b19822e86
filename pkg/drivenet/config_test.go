package drivenet

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	filename := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(filename, []byte(content), 0644))
	return filename
}

func TestDefaultConfig(t *testing.T) {
	c := DefaultConfig()
	require.NoError(t, c.Validate())
	require.Equal(t, DefaultFCWThresholds(), c.FCWThresholds())
	require.True(t, c.WarnNonFinite)
}

func TestLoadConfigJSON(t *testing.T) {
	c, err := LoadConfig(writeFile(t, "decoder.json", `{"fcw3ms2": 0.5, "warnNonFinite": false}`))
	require.NoError(t, err)
	require.Equal(t, float32(0.5), c.FCW3ms2)
	require.Equal(t, float32(0.05), c.FCW5ms2Low)
	require.Equal(t, float32(0.15), c.FCW5ms2High)
	require.False(t, c.WarnNonFinite)
}

func TestLoadConfigYAML(t *testing.T) {
	c, err := LoadConfig(writeFile(t, "decoder.yml", "fcw5ms2Low: 0.1\nfcw5ms2High: 0.2\n"))
	require.NoError(t, err)
	require.Equal(t, float32(0.1), c.FCW5ms2Low)
	require.Equal(t, float32(0.2), c.FCW5ms2High)
	require.Equal(t, float32(0.7), c.FCW3ms2)
	require.True(t, c.WarnNonFinite)

	_, err = LoadConfig(writeFile(t, "decoder.yaml", "fcw3ms2: [1, 2]\n"))
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestLoadConfigInvalid(t *testing.T) {
	_, err := LoadConfig(writeFile(t, "decoder.json", `{"fcw3ms2": 1.5}`))
	require.ErrorIs(t, err, ErrInvalidConfig)

	_, err = LoadConfig(writeFile(t, "decoder.json", `{"fcw5ms2Low": -0.1}`))
	require.ErrorIs(t, err, ErrInvalidConfig)

	_, err = LoadConfig(writeFile(t, "decoder.json", `{not json`))
	require.ErrorIs(t, err, ErrInvalidConfig)

	_, err = LoadConfig(writeFile(t, "decoder.toml", `fcw3ms2 = 0.5`))
	require.ErrorIs(t, err, ErrInvalidConfig)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	require.ErrorIs(t, err, os.ErrNotExist)
}
