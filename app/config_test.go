package app

import (
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Defaults(t *testing.T) {
	cfg := Config{}
	cfg.RegisterFlagsAndApplyDefaults("", flag.NewFlagSet("test", flag.PanicOnError))

	assert.Equal(t, All, cfg.Target)
	assert.Equal(t, 3030, cfg.Server.HTTPListenPort)
	assert.Equal(t, -1, cfg.Player.Station)
	assert.Equal(t, "ffmpeg", cfg.Player.Decoder)
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()

	cfg := Config{}
	cfg.RegisterFlagsAndApplyDefaults("", flag.NewFlagSet("test", flag.PanicOnError))

	path := filepath.Join(dir, "icyradio.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
player:
  url: http://ice3.somafm.com/groovesalad-64-aac
  output: discard
  reconnect: false
  drain-timeout: 2s
  decoder-args: -c,cat
`), 0o644))

	require.NoError(t, LoadConfigFile(path, &cfg))
	assert.Equal(t, "http://ice3.somafm.com/groovesalad-64-aac", cfg.Player.URL)
	assert.Equal(t, "discard", cfg.Player.Output)
	assert.False(t, cfg.Player.Reconnect)
	assert.Equal(t, 2*time.Second, cfg.Player.DrainTimeout)
	assert.Equal(t, []string{"-c", "cat"}, []string(cfg.Player.DecoderArgs))

	// Values the file leaves out keep their flag defaults.
	assert.Equal(t, 3030, cfg.Server.HTTPListenPort)
	assert.Equal(t, "ffmpeg", cfg.Player.Decoder)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("player:\n  speakers: 2\n"), 0o644))
	assert.Error(t, LoadConfigFile(bad, &cfg))

	assert.Error(t, LoadConfigFile(filepath.Join(dir, "absent.yaml"), &cfg))
}

func TestModuleManager(t *testing.T) {
	cfg := Config{}
	cfg.RegisterFlagsAndApplyDefaults("", flag.NewFlagSet("test", flag.PanicOnError))

	a, err := New(cfg, nil)
	require.NoError(t, err)

	assert.True(t, a.ModuleManager.IsUserVisibleModule(Player))
	assert.False(t, a.ModuleManager.IsUserVisibleModule(Server))
	assert.ElementsMatch(t, []string{Server, Player}, a.ModuleManager.DependenciesForModule(All))
}
