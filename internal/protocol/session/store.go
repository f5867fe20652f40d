package session

import (
	"context"

	"github.com/danmuck/plenty/internal/history"
)

// Store is the durable record set behind a Responder.
//
// Commit must be atomic: every record of the batch is persisted or none is.
// A record already present (same Command, When and Extra) is ignored, not
// duplicated and not an error.
//
// Enumerate returns every record ordered by ascending When.
type Store interface {
	Commit(ctx context.Context, batch []history.Record) error
	Enumerate(ctx context.Context) ([]history.Record, error)
}
