package server

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/danmuck/plenty/internal/config"
	"github.com/danmuck/plenty/internal/protocol/session"
	"github.com/danmuck/plenty/internal/store"
	"github.com/rs/zerolog/log"
)

// Server opens the database for each stream it serves and closes it when the
// session ends.
type Server struct {
	cfg config.Server
}

func New(cfg config.Server) *Server {
	return &Server{cfg: cfg}
}

// Serve runs one Responder session over r and w. Logs go to the global
// logger only; w carries protocol bytes exclusively.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	if err := s.cfg.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.cfg.DBPath), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	db, err := store.Open(s.cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Warn().Err(err).Str("db", s.cfg.DBPath).Msg("close store")
		}
	}()
	log.Debug().Str("db", s.cfg.DBPath).Int("batch_size", s.cfg.BatchSize).Msg("store opened")

	return session.NewResponder(r, w, db, s.cfg.Session()).Serve(ctx)
}
