// Package config loads the client and server TOML files and resolves XDG
// default paths. A missing file yields defaults; keys present in a file
// override them one by one.
package config
