// Copyright 2026 The Driftroom Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import "fmt"

// ExitError signals a non-zero exit code without printing an extra
// error message. When a command handler returns an ExitError, main
// exits with the specified code without printing the error string —
// the command is expected to have already written its own output.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit code %d", e.Code)
}

// ExitCode returns the exit code. main checks for this interface on
// returned errors to distinguish "handled non-zero exit" from
// "unexpected error to display".
func (e *ExitError) ExitCode() int {
	return e.Code
}

// CommandError is a command failure with an optional hint printed
// below the message, pointing the user at the likely fix. Use the
// constructors rather than building one directly: they mark at the
// call site what kind of failure this is.
type CommandError struct {
	// Err is the underlying error with the human-readable message.
	Err error

	// Hint is extra guidance appended after a blank line, or empty.
	Hint string
}

func (e *CommandError) Error() string {
	if e.Hint == "" {
		return e.Err.Error()
	}
	return e.Err.Error() + "\n\n" + e.Hint
}

// Unwrap returns the underlying error, allowing errors.Is and
// errors.As to walk the full chain through the CommandError wrapper.
func (e *CommandError) Unwrap() error { return e.Err }

// WithHint attaches guidance to the error and returns the receiver,
// so it chains off a constructor.
func (e *CommandError) WithHint(format string, args ...any) *CommandError {
	e.Hint = fmt.Sprintf(format, args...)
	return e
}

// Validation creates an invocation error: bad arguments or flags. The
// user should fix the command line and retry.
func Validation(format string, args ...any) *CommandError {
	return &CommandError{Err: fmt.Errorf(format, args...)}
}

// Transient creates a connectivity error: the broker is unreachable or
// went away. Retrying later may succeed.
func Transient(format string, args ...any) *CommandError {
	return &CommandError{Err: fmt.Errorf(format, args...)}
}

// Internal creates an unexpected error: a bug or an environment
// failure the user cannot fix by adjusting the invocation.
func Internal(format string, args ...any) *CommandError {
	return &CommandError{Err: fmt.Errorf(format, args...)}
}
