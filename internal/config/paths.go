package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	AppName          = "plenty"
	ClientConfigFile = "plenty.toml"
	ServerConfigFile = "plentys.toml"
	DBFile           = "history.db"
)

// ConfigHome returns $XDG_CONFIG_HOME/plenty or ~/.config/plenty.
func ConfigHome() (string, error) {
	return xdgDir("XDG_CONFIG_HOME", ".config")
}

// DataHome returns $XDG_DATA_HOME/plenty or ~/.local/share/plenty.
func DataHome() (string, error) {
	return xdgDir("XDG_DATA_HOME", filepath.Join(".local", "share"))
}

func DefaultClientConfigPath() (string, error) {
	dir, err := ConfigHome()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ClientConfigFile), nil
}

func DefaultServerConfigPath() (string, error) {
	dir, err := ConfigHome()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ServerConfigFile), nil
}

func DefaultDBPath() (string, error) {
	dir, err := DataHome()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, DBFile), nil
}

func xdgDir(env, fallback string) (string, error) {
	if base := os.Getenv(env); base != "" {
		return filepath.Join(base, AppName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("%s not set and home dir unavailable: %w", env, err)
	}
	return filepath.Join(home, fallback, AppName), nil
}
