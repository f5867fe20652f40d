// Package server runs the storing side of a sync on an arbitrary stream,
// normally the stdin and stdout of `plentys` under sshd.
package server
