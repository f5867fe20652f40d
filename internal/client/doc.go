// Package client runs one `plenty` synchronization: it holds the fish history
// lock for the whole exchange, pushes local records to the Responder, merges
// the reply and rewrites the history file. The file is left untouched when
// the exchange fails.
package client
