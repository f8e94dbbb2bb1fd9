package config

import "errors"

// Configuration validation errors returned by Config.Validate.
// Callers match them with errors.Is.
var (
	// ErrNoTarget is returned when no seed query is given on the command
	// line or on standard input.
	ErrNoTarget = errors.New("no target specified: provide an ip, domain or cidr as argument or on stdin")

	// ErrNoProvider is returned when the provider selection is empty.
	ErrNoProvider = errors.New("no passive DNS provider selected")

	// ErrInvalidDepth is returned when the recursion depth is negative.
	ErrInvalidDepth = errors.New("invalid recursion depth: must be non-negative")

	// ErrInvalidWait is returned when the wait between queries is negative.
	ErrInvalidWait = errors.New("invalid wait: must be non-negative")

	// ErrInvalidLimit is returned when the record limit is negative.
	ErrInvalidLimit = errors.New("invalid limit: must be non-negative")

	// ErrInvalidTimeout is returned when the provider timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidFormat is returned for an unknown output format.
	ErrInvalidFormat = errors.New("invalid output format")

	// ErrConflictingProxy is returned when both --proxy and --tor are given.
	ErrConflictingProxy = errors.New("conflicting transports: --proxy and --tor cannot be used together")

	// ErrConfigNotFound is returned when the configuration file does not exist.
	ErrConfigNotFound = errors.New("configuration file not found")
)
