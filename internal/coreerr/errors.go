// Package coreerr defines the sentinel error kinds the core signals,
// wrapped with fmt.Errorf("...: %w", ...) at the point of failure and
// distinguished by callers with errors.Is.
package coreerr

import "errors"

var (
	// ErrConfigSyntax marks a malformed regex/JSON parser configuration.
	// Never fatal to the process; it only prevents that one parser from
	// registering.
	ErrConfigSyntax = errors.New("parser configuration is malformed")

	// ErrColumnMisreference marks a column naming a capture group outside
	// the compiled regex's group range.
	ErrColumnMisreference = errors.New("column references a nonexistent capture group")

	// ErrCancelled marks a long operation that returned early because
	// its stopRequested flag fired. Distinguishable from ErrIO/failure.
	ErrCancelled = errors.New("operation cancelled")

	// ErrIO marks a stream read/seek failure during indexing or line
	// reading.
	ErrIO = errors.New("i/o failure")
)
