// Package observability owns sync metrics: session outcomes, record counts
// and store commit timing, exported on demand as a textfile.
package observability
