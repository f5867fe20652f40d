// Package cli builds the cobra commands behind the plenty and plentys
// binaries. Flags override values from the TOML config file.
package cli
