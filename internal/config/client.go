package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/plenty/internal/fishhist"
	"github.com/danmuck/plenty/internal/protocol/session"
	"github.com/danmuck/plenty/internal/transport"
)

type TransportKind string

const (
	TransportExec  TransportKind = "exec"
	TransportSSH   TransportKind = "ssh"
	TransportLocal TransportKind = "local"
)

const DefaultConnectTimeout = 10 * time.Second

// Client configures one `plenty` run.
type Client struct {
	Host          string
	RemoteCommand string
	HistoryPath   string
	Transport     TransportKind
	SSHBinary     string
	SSHArgs       []string
	SSH           SSH
	// LocalDBPath is the database synced against by the local transport.
	LocalDBPath     string
	BatchSize       int
	MetricsTextfile string
}

// SSH holds settings for the native ssh transport.
type SSH struct {
	User                        string
	Port                        string
	KeyPath                     string
	KnownHostsPath              string
	InsecureSkipHostKeyChecking bool
	ConnectTimeout              time.Duration
}

type clientFile struct {
	Host            string        `toml:"host"`
	RemoteCommand   string        `toml:"remote_command"`
	HistoryPath     string        `toml:"history_path"`
	Transport       string        `toml:"transport"`
	SSHBinary       string        `toml:"ssh_binary"`
	SSHArgs         []string      `toml:"ssh_args"`
	LocalDBPath     string        `toml:"local_db_path"`
	BatchSize       int           `toml:"batch_size"`
	MetricsTextfile string        `toml:"metrics_textfile"`
	SSH             sshFileConfig `toml:"ssh"`
}

type sshFileConfig struct {
	User                        string `toml:"user"`
	Port                        string `toml:"port"`
	KeyPath                     string `toml:"key_path"`
	KnownHostsPath              string `toml:"known_hosts_path"`
	InsecureSkipHostKeyChecking bool   `toml:"insecure_skip_host_key_checking"`
	ConnectTimeout              string `toml:"connect_timeout"`
}

// DefaultClient resolves default paths from the environment.
func DefaultClient() (Client, error) {
	historyPath, err := fishhist.DefaultPath()
	if err != nil {
		return Client{}, err
	}
	dbPath, err := DefaultDBPath()
	if err != nil {
		return Client{}, err
	}
	return Client{
		RemoteCommand: transport.DefaultRemoteCommand,
		HistoryPath:   historyPath,
		Transport:     TransportExec,
		SSHBinary:     transport.DefaultSSHBinary,
		SSHArgs:       []string{},
		SSH:           SSH{ConnectTimeout: DefaultConnectTimeout},
		LocalDBPath:   dbPath,
		BatchSize:     session.DefaultBatchSize,
	}, nil
}

// LoadClient overlays the file at path onto DefaultClient. A missing file is
// not an error.
func LoadClient(path string) (Client, error) {
	cfg, err := DefaultClient()
	if err != nil {
		return Client{}, err
	}

	var raw clientFile
	meta, err := toml.DecodeFile(path, &raw)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return Client{}, fmt.Errorf("load client config: %w", err)
	}

	if meta.IsDefined("host") {
		cfg.Host = strings.TrimSpace(raw.Host)
	}
	if meta.IsDefined("remote_command") {
		cfg.RemoteCommand = strings.TrimSpace(raw.RemoteCommand)
	}
	if meta.IsDefined("history_path") {
		cfg.HistoryPath = strings.TrimSpace(raw.HistoryPath)
	}
	if meta.IsDefined("transport") {
		cfg.Transport = TransportKind(strings.TrimSpace(raw.Transport))
	}
	if meta.IsDefined("ssh_binary") {
		cfg.SSHBinary = strings.TrimSpace(raw.SSHBinary)
	}
	if meta.IsDefined("ssh_args") {
		cfg.SSHArgs = raw.SSHArgs
	}
	if meta.IsDefined("local_db_path") {
		cfg.LocalDBPath = strings.TrimSpace(raw.LocalDBPath)
	}
	if meta.IsDefined("batch_size") {
		cfg.BatchSize = raw.BatchSize
	}
	if meta.IsDefined("metrics_textfile") {
		cfg.MetricsTextfile = strings.TrimSpace(raw.MetricsTextfile)
	}
	if meta.IsDefined("ssh", "user") {
		cfg.SSH.User = strings.TrimSpace(raw.SSH.User)
	}
	if meta.IsDefined("ssh", "port") {
		cfg.SSH.Port = strings.TrimSpace(raw.SSH.Port)
	}
	if meta.IsDefined("ssh", "key_path") {
		cfg.SSH.KeyPath = strings.TrimSpace(raw.SSH.KeyPath)
	}
	if meta.IsDefined("ssh", "known_hosts_path") {
		cfg.SSH.KnownHostsPath = strings.TrimSpace(raw.SSH.KnownHostsPath)
	}
	if meta.IsDefined("ssh", "insecure_skip_host_key_checking") {
		cfg.SSH.InsecureSkipHostKeyChecking = raw.SSH.InsecureSkipHostKeyChecking
	}
	if meta.IsDefined("ssh", "connect_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.SSH.ConnectTimeout))
		if err != nil {
			return Client{}, fmt.Errorf("parse ssh.connect_timeout: %w", err)
		}
		cfg.SSH.ConnectTimeout = d
	}

	if err := cfg.Validate(); err != nil {
		return Client{}, err
	}
	return cfg, nil
}

// Validate checks settings that do not depend on the chosen host.
func (c Client) Validate() error {
	switch c.Transport {
	case TransportExec, TransportSSH, TransportLocal:
	default:
		return fmt.Errorf("invalid transport %q: want exec, ssh or local", c.Transport)
	}
	if c.HistoryPath == "" {
		return fmt.Errorf("history_path is required")
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("batch_size must be at least 1, got %d", c.BatchSize)
	}
	if c.SSH.ConnectTimeout < 0 {
		return fmt.Errorf("ssh.connect_timeout must not be negative")
	}
	return nil
}
