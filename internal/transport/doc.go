// Package transport starts the remote Responder and exposes its stdin and
// stdout as one bidirectional stream.
//
// Exec spawns the system ssh client, SSH dials with golang.org/x/crypto/ssh
// and Loopback serves the session in-process.
package transport
