package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "ircd.toml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeTempConfig(t, `
[server]
name = "irc.test"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "irc.test", cfg.Server.Name)
	assert.Equal(t, ":6667", cfg.Server.ListenAddress)
	assert.Equal(t, 9, cfg.Limits.MaxNickLength)
}

func TestLoadRejectsEmptyServerName(t *testing.T) {
	path := writeTempConfig(t, `
[server]
name = ""
`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsMismatchedOperCredentials(t *testing.T) {
	path := writeTempConfig(t, `
[server]
name = "irc.test"

[oper]
name = "admin"
`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadFullConfig(t *testing.T) {
	path := writeTempConfig(t, `
[server]
listen_address = "0.0.0.0:6697"
name = "irc.test"
version = "ircd-9.9"

[network]
name = "TestNet"
motd = ["line one", "line two"]

[limits]
max_connections_per_ip = 3
max_nick_length = 16
max_channel_length = 50
max_topic_length = 200

[oper]
name = "admin"
password = "hunter2"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:6697", cfg.Server.ListenAddress)
	assert.Equal(t, []string{"line one", "line two"}, cfg.Network.MOTD)
	assert.Equal(t, 3, cfg.Limits.MaxConnectionsPerIP)
	assert.Equal(t, "admin", cfg.Oper.Name)
}
