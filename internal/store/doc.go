// Package store provides the durable record set behind plentys.
//
// The SQLite store keeps one history table with a UNIQUE index over
// (cmd, "when", extra). Inserts use ON CONFLICT DO NOTHING so a record
// delivered twice is stored once, and each batch commits in a single
// transaction so a failed batch leaves no trace.
//
// The table layout matches databases created by earlier plentys releases,
// which declared the columns nullable; reads coalesce NULLs to zero values.
//
// Memory is an in-process store with the same contract, used by tests.
package store
