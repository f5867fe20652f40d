package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// SSH runs the remote command over a native ssh client session. Only public
// key auth is supported; host keys are checked against known_hosts unless
// InsecureSkipHostKeyChecking is set.
type SSH struct {
	Host                        string
	Port                        string
	User                        string
	KeyPath                     string
	KnownHostsPath              string
	InsecureSkipHostKeyChecking bool
	Timeout                     time.Duration
	RemoteCommand               string
	Stderr                      io.Writer
}

// Start dials, opens a session and starts the remote command. Cancelling ctx
// closes the connection.
func (t SSH) Start(ctx context.Context) (*Conn, error) {
	client, err := t.dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStart, err)
	}
	sess, err := client.NewSession()
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: new session: %w", ErrStart, err)
	}
	sess.Stderr = t.Stderr
	if sess.Stderr == nil {
		sess.Stderr = os.Stderr
	}
	stdin, err := sess.StdinPipe()
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: stdin: %w", ErrStart, err)
	}
	stdout, err := sess.StdoutPipe()
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: stdout: %w", ErrStart, err)
	}
	command := t.remoteCommand()
	if err := sess.Start(command); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %s: %w", ErrStart, command, err)
	}
	log.Debug().Str("host", t.Host).Str("user", t.User).Str("command", command).Msg("started remote session")

	stop := context.AfterFunc(ctx, func() { client.Close() })
	wait := func() error {
		defer stop()
		defer client.Close()
		return exitError(sess.Wait())
	}
	kill := func() error {
		_ = sess.Signal(ssh.SIGKILL)
		return client.Close()
	}
	return NewConn(stdout, stdin, wait, kill), nil
}

func (t SSH) remoteCommand() string {
	if t.RemoteCommand == "" {
		return DefaultRemoteCommand
	}
	return t.RemoteCommand
}

func (t SSH) dial(ctx context.Context) (*ssh.Client, error) {
	addr, err := hostPort(t.Host, t.Port)
	if err != nil {
		return nil, err
	}
	if t.User == "" {
		return nil, errors.New("ssh user is required")
	}
	auth, err := t.publicKeyAuth()
	if err != nil {
		return nil, err
	}
	hostKeys, err := t.hostKeyCallback()
	if err != nil {
		return nil, err
	}
	config := &ssh.ClientConfig{
		User:            t.User,
		Auth:            []ssh.AuthMethod{auth},
		HostKeyCallback: hostKeys,
		Timeout:         t.Timeout,
	}

	dialer := net.Dialer{Timeout: t.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	clientConn, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return ssh.NewClient(clientConn, chans, reqs), nil
}

// hostPort appends the default ssh port unless host or port already
// carries one.
func hostPort(host, port string) (string, error) {
	host = strings.TrimSpace(host)
	switch {
	case host == "":
		return "", errors.New("ssh host is required")
	case port != "":
		return net.JoinHostPort(host, port), nil
	}
	if _, _, err := net.SplitHostPort(host); err == nil {
		return host, nil
	}
	return net.JoinHostPort(host, "22"), nil
}

// publicKeyAuth loads an unencrypted private key. Encrypted keys are refused
// since a sync run has no terminal to prompt on; those users go through the
// exec transport and their ssh agent.
func (t SSH) publicKeyAuth() (ssh.AuthMethod, error) {
	if t.KeyPath == "" {
		return nil, errors.New("ssh key path is required")
	}
	raw, err := os.ReadFile(t.KeyPath)
	if err != nil {
		return nil, err
	}
	signer, err := ssh.ParsePrivateKey(raw)
	var missing *ssh.PassphraseMissingError
	if errors.As(err, &missing) {
		return nil, fmt.Errorf("%s is passphrase protected; use transport = \"exec\" with an ssh agent: %w", t.KeyPath, err)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", t.KeyPath, err)
	}
	return ssh.PublicKeys(signer), nil
}

func (t SSH) hostKeyCallback() (ssh.HostKeyCallback, error) {
	if t.InsecureSkipHostKeyChecking {
		log.Warn().Str("host", t.Host).Msg("host key checking disabled")
		return ssh.InsecureIgnoreHostKey(), nil
	}
	path := strings.TrimSpace(t.KnownHostsPath)
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("known_hosts path unset: %w", err)
		}
		path = filepath.Join(home, ".ssh", "known_hosts")
	}
	return knownhosts.New(path)
}
