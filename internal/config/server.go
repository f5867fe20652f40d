package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/plenty/internal/protocol/frame"
	"github.com/danmuck/plenty/internal/protocol/session"
)

// Server configures one `plentys` run.
type Server struct {
	DBPath          string
	BatchSize       int
	MaxPayloadBytes uint32
	MetricsTextfile string
}

type serverFile struct {
	DBPath          string `toml:"db_path"`
	BatchSize       int    `toml:"batch_size"`
	MaxPayloadBytes int64  `toml:"max_payload_bytes"`
	MetricsTextfile string `toml:"metrics_textfile"`
}

func DefaultServer() (Server, error) {
	dbPath, err := DefaultDBPath()
	if err != nil {
		return Server{}, err
	}
	return Server{
		DBPath:          dbPath,
		BatchSize:       session.DefaultBatchSize,
		MaxPayloadBytes: frame.DefaultLimits().MaxPayloadBytes,
	}, nil
}

// LoadServer overlays the file at path onto DefaultServer. A missing file is
// not an error.
func LoadServer(path string) (Server, error) {
	cfg, err := DefaultServer()
	if err != nil {
		return Server{}, err
	}

	var raw serverFile
	meta, err := toml.DecodeFile(path, &raw)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return Server{}, fmt.Errorf("load server config: %w", err)
	}

	if meta.IsDefined("db_path") {
		cfg.DBPath = strings.TrimSpace(raw.DBPath)
	}
	if meta.IsDefined("batch_size") {
		cfg.BatchSize = raw.BatchSize
	}
	if meta.IsDefined("max_payload_bytes") {
		if raw.MaxPayloadBytes <= 0 || raw.MaxPayloadBytes > int64(^uint32(0)) {
			return Server{}, fmt.Errorf("max_payload_bytes out of range: %d", raw.MaxPayloadBytes)
		}
		cfg.MaxPayloadBytes = uint32(raw.MaxPayloadBytes)
	}
	if meta.IsDefined("metrics_textfile") {
		cfg.MetricsTextfile = strings.TrimSpace(raw.MetricsTextfile)
	}

	if err := cfg.Validate(); err != nil {
		return Server{}, err
	}
	return cfg, nil
}

func (c Server) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("db_path is required")
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("batch_size must be at least 1, got %d", c.BatchSize)
	}
	return nil
}

// Session returns the protocol settings for one Responder.
func (c Server) Session() session.Config {
	return session.Config{
		BatchSize: c.BatchSize,
		Limits:    frame.Limits{MaxPayloadBytes: c.MaxPayloadBytes},
	}
}
