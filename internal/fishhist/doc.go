// Package fishhist reads and writes the fish shell history file.
//
// The file is a YAML-like list of entries:
//
//	- cmd: git status
//	  when: 1700000000
//	  paths:
//	    - /tmp
//
// Commands are kept in fish's escaped form. The optional paths block is
// carried verbatim as the record's Extra.
package fishhist
