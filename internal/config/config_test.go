package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/danmuck/plenty/internal/testutil/testlog"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func isolateXDG(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	t.Setenv("XDG_DATA_HOME", filepath.Join(root, "data"))
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(root, "config"))
	return root
}

func TestDefaultPaths(t *testing.T) {
	testlog.Start(t)
	root := isolateXDG(t)

	p, err := DefaultClientConfigPath()
	require.NoError(t, err)
	require.Equal(t, filepath.Join(root, "config", "plenty", "plenty.toml"), p)

	p, err = DefaultServerConfigPath()
	require.NoError(t, err)
	require.Equal(t, filepath.Join(root, "config", "plenty", "plentys.toml"), p)

	p, err = DefaultDBPath()
	require.NoError(t, err)
	require.Equal(t, filepath.Join(root, "data", "plenty", "history.db"), p)

	t.Setenv("XDG_DATA_HOME", "")
	t.Setenv("HOME", "/home/u")
	p, err = DataHome()
	require.NoError(t, err)
	require.Equal(t, "/home/u/.local/share/plenty", p)
}

func TestLoadClientMissingFileUsesDefaults(t *testing.T) {
	testlog.Start(t)
	root := isolateXDG(t)

	cfg, err := LoadClient(filepath.Join(root, "absent.toml"))
	require.NoError(t, err)
	require.Equal(t, TransportExec, cfg.Transport)
	require.Equal(t, "ssh", cfg.SSHBinary)
	require.Equal(t, "plentys", cfg.RemoteCommand)
	require.Equal(t, filepath.Join(root, "data", "fish", "fish_history"), cfg.HistoryPath)
	require.Equal(t, filepath.Join(root, "data", "plenty", "history.db"), cfg.LocalDBPath)
	require.Equal(t, 100, cfg.BatchSize)
	require.Equal(t, DefaultConnectTimeout, cfg.SSH.ConnectTimeout)
	require.Empty(t, cfg.Host)
}

func TestLoadClientOverrides(t *testing.T) {
	testlog.Start(t)
	isolateXDG(t)
	path := writeConfig(t, `
host = "archive.example"
remote_command = "~/bin/plentys"
history_path = "/tmp/fish_history"
transport = "ssh"
ssh_args = ["-o", "BatchMode=yes"]
metrics_textfile = "/var/lib/node_exporter/plenty.prom"

[ssh]
user = "me"
port = "2222"
key_path = "/home/me/.ssh/id_ed25519"
known_hosts_path = "/home/me/.ssh/known_hosts"
connect_timeout = "3s"
`)
	cfg, err := LoadClient(path)
	require.NoError(t, err)
	require.Equal(t, "archive.example", cfg.Host)
	require.Equal(t, "~/bin/plentys", cfg.RemoteCommand)
	require.Equal(t, "/tmp/fish_history", cfg.HistoryPath)
	require.Equal(t, TransportSSH, cfg.Transport)
	require.Equal(t, []string{"-o", "BatchMode=yes"}, cfg.SSHArgs)
	require.Equal(t, "/var/lib/node_exporter/plenty.prom", cfg.MetricsTextfile)
	require.Equal(t, SSH{
		User:           "me",
		Port:           "2222",
		KeyPath:        "/home/me/.ssh/id_ed25519",
		KnownHostsPath: "/home/me/.ssh/known_hosts",
		ConnectTimeout: 3 * time.Second,
	}, cfg.SSH)
	require.Equal(t, "ssh", cfg.SSHBinary)
}

func TestLoadClientRejectsInvalidValues(t *testing.T) {
	testlog.Start(t)
	isolateXDG(t)
	for name, body := range map[string]string{
		"transport":  `transport = "telnet"`,
		"batch size": `batch_size = 0`,
		"timeout":    "[ssh]\nconnect_timeout = \"soon\"",
		"syntax":     `host = `,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := LoadClient(writeConfig(t, body))
			require.Error(t, err)
		})
	}
}

func TestLoadServerDefaultsAndOverrides(t *testing.T) {
	testlog.Start(t)
	root := isolateXDG(t)

	cfg, err := LoadServer(filepath.Join(root, "absent.toml"))
	require.NoError(t, err)
	require.Equal(t, filepath.Join(root, "data", "plenty", "history.db"), cfg.DBPath)
	require.Equal(t, 100, cfg.BatchSize)
	require.Equal(t, uint32(8<<20), cfg.MaxPayloadBytes)

	cfg, err = LoadServer(writeConfig(t, `
db_path = "/srv/plenty/history.db"
batch_size = 500
max_payload_bytes = 65536
`))
	require.NoError(t, err)
	require.Equal(t, "/srv/plenty/history.db", cfg.DBPath)
	require.Equal(t, 500, cfg.BatchSize)
	require.Equal(t, uint32(65536), cfg.MaxPayloadBytes)

	sc := cfg.Session()
	require.Equal(t, 500, sc.BatchSize)
	require.Equal(t, uint32(65536), sc.Limits.MaxPayloadBytes)
}

func TestLoadServerRejectsInvalidValues(t *testing.T) {
	testlog.Start(t)
	isolateXDG(t)
	_, err := LoadServer(writeConfig(t, `max_payload_bytes = -1`))
	require.ErrorContains(t, err, "max_payload_bytes")

	_, err = LoadServer(writeConfig(t, `db_path = ""`))
	require.ErrorContains(t, err, "db_path")
}
