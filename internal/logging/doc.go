// Package logging configures the process-wide zerolog logger.
//
// Ownership boundary:
// - runtime vs test profiles
// - PLENTY_LOG_* environment overrides
// - stderr-only output
package logging
