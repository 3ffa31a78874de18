package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/abhishek/klap/internal/credentials"
)

func writeTempFile(t *testing.T, name, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoadRegistry(t *testing.T) {
	path := writeTempFile(t, "devices.yaml", `
devices:
  - name: living-room
    host: 192.168.1.50
    variant: v2
    credentials_ref: default
  - name: garage
    host: 192.168.1.51
    legacy: true
    port: 9999
`)

	reg, err := LoadRegistry(path)
	require.NoError(t, err)
	require.Len(t, reg.Devices, 2)

	d, ok := reg.Find("garage")
	require.True(t, ok)
	require.True(t, d.Legacy)
	require.Equal(t, 9999, d.Port)

	_, ok = reg.Find("missing")
	require.False(t, ok)
}

func TestLoadRegistryMissingFile(t *testing.T) {
	_, err := LoadRegistry(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestResolveCredentialsDefaultsToBlank(t *testing.T) {
	v := viper.New()
	require.Equal(t, credentials.Blank, ResolveCredentials(v))
}

func TestResolveCredentialsFromViper(t *testing.T) {
	v := viper.New()
	v.Set("username", "alice@example.com")
	v.Set("password", "secret")

	got := ResolveCredentials(v)
	require.Equal(t, credentials.Credentials{Username: "alice@example.com", Password: "secret"}, got)
}

func TestLoadEnvMissingFileIsNotAnError(t *testing.T) {
	require.NoError(t, LoadEnv(filepath.Join(t.TempDir(), "missing.env")))
}

func TestBindViperReadsConfigFile(t *testing.T) {
	path := writeTempFile(t, "config.yaml", "username: bob\nport: 443\n")

	v := viper.New()
	require.NoError(t, BindViper(v, path))
	require.Equal(t, "bob", v.GetString("username"))
	require.Equal(t, 443, v.GetInt("port"))
}
