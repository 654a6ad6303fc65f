package client

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// useTempConfig points the config path at a temp file for the test.
func useTempConfig(t *testing.T) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "kbrelay", "config.json")

	oldGetConfigPath := getConfigPathFunc
	getConfigPathFunc = func() (string, error) {
		return configPath, nil
	}
	t.Cleanup(func() { getConfigPathFunc = oldGetConfigPath })
	return configPath
}

func TestGetConfigDir(t *testing.T) {
	dir, err := GetConfigDir()
	if err != nil {
		t.Skip("no user config dir in this environment")
	}
	assert.True(t, filepath.IsAbs(dir))
	assert.True(t, strings.HasSuffix(dir, "kbrelay"))
}

func TestLoadGlobalConfig_FileNotExists(t *testing.T) {
	useTempConfig(t)

	config, err := LoadGlobalConfig()
	require.NoError(t, err)
	assert.Nil(t, config)
}

func TestLoadGlobalConfig_InvalidJSON(t *testing.T) {
	configPath := useTempConfig(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(configPath), 0755))
	require.NoError(t, os.WriteFile(configPath, []byte("{not json"), 0600))

	_, err := LoadGlobalConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestSaveGlobalConfig_CreatesDirectoryWithPermissions(t *testing.T) {
	configPath := useTempConfig(t)

	require.NoError(t, SaveGlobalConfig(&GlobalConfig{APIURL: "http://kb.internal:8080"}))

	info, err := os.Stat(configPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestSaveGlobalConfig_NilConfig(t *testing.T) {
	useTempConfig(t)
	assert.Error(t, SaveGlobalConfig(nil))
}

func TestRoundTrip_SaveAndLoad(t *testing.T) {
	useTempConfig(t)

	want := &GlobalConfig{APIURL: "http://kb.internal:8080", KBName: "Finance"}
	require.NoError(t, SaveGlobalConfig(want))

	got, err := LoadGlobalConfig()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestDeleteGlobalConfig(t *testing.T) {
	configPath := useTempConfig(t)
	require.NoError(t, SaveGlobalConfig(&GlobalConfig{KBName: "Finance"}))

	require.NoError(t, DeleteGlobalConfig())
	_, err := os.Stat(configPath)
	assert.True(t, os.IsNotExist(err))

	// Deleting twice is fine.
	assert.NoError(t, DeleteGlobalConfig())
}

func TestResolveKBName_Cascade(t *testing.T) {
	useTempConfig(t)
	require.NoError(t, SaveGlobalConfig(&GlobalConfig{KBName: "FromConfig"}))

	t.Setenv(envKBName, "")
	kb, err := ResolveKBName("")
	require.NoError(t, err)
	assert.Equal(t, "FromConfig", kb)

	t.Setenv(envKBName, "FromEnv")
	kb, err = ResolveKBName("")
	require.NoError(t, err)
	assert.Equal(t, "FromEnv", kb)

	kb, err = ResolveKBName("FromFlag")
	require.NoError(t, err)
	assert.Equal(t, "FromFlag", kb)
}

func TestResolveKBName_NothingConfigured(t *testing.T) {
	useTempConfig(t)
	t.Setenv(envKBName, "")

	kb, err := ResolveKBName("")
	require.NoError(t, err)
	assert.Empty(t, kb)
}
