package client

import (
	"context"
	"fmt"

	"github.com/danmuck/plenty/internal/config"
	"github.com/danmuck/plenty/internal/fishhist"
	"github.com/danmuck/plenty/internal/history"
	"github.com/danmuck/plenty/internal/protocol/frame"
	"github.com/danmuck/plenty/internal/protocol/session"
	"github.com/danmuck/plenty/internal/server"
	"github.com/danmuck/plenty/internal/transport"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Result summarizes a completed run.
type Result struct {
	RunID    string
	Local    int
	Received int
	Written  int
}

type Runner struct {
	cfg       config.Client
	transport transport.Transport
	file      *fishhist.File
}

func New(cfg config.Client, t transport.Transport) *Runner {
	return &Runner{
		cfg:       cfg,
		transport: t,
		file:      fishhist.NewFile(cfg.HistoryPath),
	}
}

// NewTransport builds the transport named by cfg.Transport.
func NewTransport(cfg config.Client) (transport.Transport, error) {
	switch cfg.Transport {
	case config.TransportExec:
		if cfg.Host == "" {
			return nil, fmt.Errorf("host is required for the exec transport")
		}
		return transport.Exec{
			Binary:        cfg.SSHBinary,
			Args:          cfg.SSHArgs,
			Host:          cfg.Host,
			RemoteCommand: cfg.RemoteCommand,
		}, nil
	case config.TransportSSH:
		if cfg.Host == "" {
			return nil, fmt.Errorf("host is required for the ssh transport")
		}
		return transport.SSH{
			Host:                        cfg.Host,
			Port:                        cfg.SSH.Port,
			User:                        cfg.SSH.User,
			KeyPath:                     cfg.SSH.KeyPath,
			KnownHostsPath:              cfg.SSH.KnownHostsPath,
			InsecureSkipHostKeyChecking: cfg.SSH.InsecureSkipHostKeyChecking,
			Timeout:                     cfg.SSH.ConnectTimeout,
			RemoteCommand:               cfg.RemoteCommand,
		}, nil
	case config.TransportLocal:
		srv := server.New(config.Server{
			DBPath:          cfg.LocalDBPath,
			BatchSize:       cfg.BatchSize,
			MaxPayloadBytes: frame.DefaultLimits().MaxPayloadBytes,
		})
		return transport.Loopback{Serve: srv.Serve}, nil
	default:
		return nil, fmt.Errorf("unknown transport %q", cfg.Transport)
	}
}

// Run performs one synchronization. On success the history file holds the
// union of the local and remote records ordered by timestamp.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	res := Result{RunID: uuid.NewString()}
	logger := log.With().Str("run_id", res.RunID).Str("history", r.file.Path()).Logger()

	logger.Debug().Str("lock", r.file.LockPath()).Msg("acquiring history lock")
	unlock, err := r.file.Lock(ctx)
	if err != nil {
		return res, err
	}
	defer func() {
		if err := unlock(); err != nil {
			logger.Warn().Err(err).Msg("release history lock")
		}
	}()

	local, err := r.file.Read()
	if err != nil {
		return res, err
	}
	res.Local = len(local)
	logger.Info().Int("records", res.Local).Msg("found local history entries")

	remote, err := r.exchange(ctx, logger, res.RunID, local)
	if err != nil {
		return res, err
	}
	res.Received = len(remote)

	merged := history.Union(local, remote)
	if err := r.file.Write(merged); err != nil {
		return res, err
	}
	res.Written = len(merged)
	logger.Info().
		Int("received", res.Received).
		Int("written", res.Written).
		Msg("sync complete")
	return res, nil
}

func (r *Runner) exchange(ctx context.Context, logger zerolog.Logger, runID string, local []history.Record) ([]history.Record, error) {
	logger.Info().Str("transport", string(r.cfg.Transport)).Str("host", r.cfg.Host).Msg("connecting")
	conn, err := r.transport.Start(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", session.ErrTransport, err)
	}
	cfg := session.DefaultConfig()
	cfg.RunID = runID
	return session.NewInitiator(conn, cfg).Run(ctx, local)
}
