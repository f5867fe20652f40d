package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
)

var (
	ErrStart = errors.New("transport: start failed")
	ErrExit  = errors.New("transport: remote exited with failure")
)

// Transport starts one remote Responder per call.
type Transport interface {
	Start(ctx context.Context) (*Conn, error)
}

// Conn is a started remote process. Reads come from its stdout and writes
// go to its stdin.
type Conn struct {
	r         io.Reader
	w         io.WriteCloser
	wait      func() error
	kill      func() error
	once      sync.Once
	err       error
	stdinOnce sync.Once
}

// NewConn assembles a Conn. wait reaps the process and kill tears it down
// without waiting for a clean exit; either may run at most once.
func NewConn(r io.Reader, w io.WriteCloser, wait, kill func() error) *Conn {
	return &Conn{r: r, w: w, wait: wait, kill: kill}
}

func (c *Conn) Read(p []byte) (int, error) {
	return c.r.Read(p)
}

func (c *Conn) Write(p []byte) (int, error) {
	return c.w.Write(p)
}

// CloseWrite closes the remote stdin.
func (c *Conn) CloseWrite() error {
	var err error
	c.stdinOnce.Do(func() { err = c.w.Close() })
	return err
}

// Wait closes stdin if still open and blocks until the remote exits.
func (c *Conn) Wait() error {
	_ = c.CloseWrite()
	c.once.Do(func() { c.err = c.wait() })
	return c.err
}

// Close kills the remote and reaps it. Safe after Wait.
func (c *Conn) Close() error {
	c.once.Do(func() {
		if c.kill != nil {
			_ = c.kill()
		}
		c.err = c.wait()
	})
	_ = c.CloseWrite()
	return nil
}

func exitError(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrExit, err)
}
