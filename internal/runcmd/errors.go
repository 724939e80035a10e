package runcmd

import "errors"

var (
	// ErrDisabled is returned when local command execution is turned
	// off in the configuration.
	ErrDisabled = errors.New("local commands are disabled")

	// ErrNotAllowed is returned for any verb outside the fixed set.
	ErrNotAllowed = errors.New("command not in the allowlist")

	// ErrEmpty is returned for a blank command line.
	ErrEmpty = errors.New("empty command")
)
