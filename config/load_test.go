package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rules.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_SearchPathDefaultsToA0Root(t *testing.T) {
	t.Setenv("A0_ROOT", "/var/lib/a0")
	path := writeConfigFile(t, `{
		"savepath": "/save",
		"rules": []
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/a0", cfg.SearchPath)
}

func TestLoad_ExplicitSearchPathWins(t *testing.T) {
	t.Setenv("A0_ROOT", "/var/lib/a0")
	path := writeConfigFile(t, `{
		"searchpath": "/explicit",
		"savepath": "/save",
		"rules": []
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/explicit", cfg.SearchPath)
}

func TestLoad_RejectsUnknownFields(t *testing.T) {
	path := writeConfigFile(t, `{"savepath": "/save", "rules": [], "bogus": true}`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}
