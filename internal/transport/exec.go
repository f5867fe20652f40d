package transport

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/rs/zerolog/log"
)

const (
	DefaultSSHBinary     = "ssh"
	DefaultRemoteCommand = "plentys"
)

// Exec runs `<Binary> [Args...] <Host> <RemoteCommand>` as a child process.
// The child's stderr is inherited so ssh prompts and remote diagnostics reach
// the user.
type Exec struct {
	Binary        string
	Args          []string
	Host          string
	RemoteCommand string
	Stderr        io.Writer
}

func (e Exec) argv() ([]string, error) {
	host := strings.TrimSpace(e.Host)
	if host == "" {
		return nil, fmt.Errorf("%w: host is required", ErrStart)
	}
	binary := e.Binary
	if binary == "" {
		binary = DefaultSSHBinary
	}
	remote := e.RemoteCommand
	if remote == "" {
		remote = DefaultRemoteCommand
	}
	argv := append([]string{binary}, e.Args...)
	return append(argv, host, remote), nil
}

// Start spawns the child. Cancelling ctx kills it.
func (e Exec) Start(ctx context.Context) (*Conn, error) {
	argv, err := e.argv()
	if err != nil {
		return nil, err
	}
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stderr = e.Stderr
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: stdin: %w", ErrStart, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: stdout: %w", ErrStart, err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrStart, argv[0], err)
	}
	log.Debug().Strs("argv", argv).Int("pid", cmd.Process.Pid).Msg("started remote command")

	wait := func() error { return exitError(cmd.Wait()) }
	kill := func() error { return cmd.Process.Kill() }
	return NewConn(stdout, stdin, wait, kill), nil
}
