package transport

import (
	"context"
	"io"

	"golang.org/x/sync/errgroup"
)

// ServeFunc runs a Responder over r and w.
type ServeFunc func(ctx context.Context, r io.Reader, w io.Writer) error

// Loopback runs the Responder in-process over a pair of pipes. Used to sync
// against a local database without a remote host.
type Loopback struct {
	Serve ServeFunc
}

func (l Loopback) Start(ctx context.Context) (*Conn, error) {
	inR, inW := io.Pipe()
	outR, outW := io.Pipe()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := l.Serve(gctx, inR, outW)
		outW.Close()
		inR.Close()
		return exitError(err)
	})
	kill := func() error {
		inW.CloseWithError(io.ErrClosedPipe)
		return outR.Close()
	}
	return NewConn(outR, inW, g.Wait, kill), nil
}
