package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // the operation was refused, e.g. a validation or conflict error
	ExitCommandError = 2 // bad flags, unreachable database or broker
)

// ExitError carries the exit code a command wants the process to end with
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// Response is the JSON envelope printed with --format json
type Response struct {
	Status string `json:"status"`
	Data   any    `json:"data,omitempty"`
	Error  string `json:"error,omitempty"`
}

// output prints results as text or JSON
type output struct {
	format string
	w      io.Writer
}

// Success prints data as JSON, or text when the format is text
func (o output) Success(data any, text string) error {
	if o.format == "json" {
		return json.NewEncoder(o.w).Encode(Response{Status: "ok", Data: data})
	}
	_, err := fmt.Fprintln(o.w, text)
	return err
}
