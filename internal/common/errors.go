// Package common provides shared utilities and types used across the application.
package common

import (
	"errors"
	"fmt"
	"strings"
)

// Process exit codes.
const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitSchema      = 2
	ExitEmptyWindow = 3
)

// ErrInvalidConfig is wrapped by every configuration validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// ExitCoder is implemented by errors that map to a dedicated exit code. Their
// message is reported verbatim.
type ExitCoder interface {
	error
	ExitCode() int
}

// SchemaError reports a required input column that is absent.
type SchemaError struct {
	Column  string
	Message string
}

func (e *SchemaError) Error() string { return e.Message }

// ExitCode implements ExitCoder.
func (e *SchemaError) ExitCode() int { return ExitSchema }

// NewSchemaError builds the error for a missing column. role names the
// column's purpose, e.g. "Timestamp" or "Target".
func NewSchemaError(role, column string) error {
	return &SchemaError{
		Column:  column,
		Message: fmt.Sprintf("%s column '%s' missing in CSV.", role, column),
	}
}

// UserError represents an error that should be shown to the user.
type UserError struct {
	Err         error
	UserMessage string
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.UserMessage, e.Err)
	}
	return e.UserMessage
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// NewUserError creates a new user-friendly error.
func NewUserError(userMessage string, err error) error {
	return &UserError{
		UserMessage: userMessage,
		Err:         err,
	}
}

// ExitCode maps err to the process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var coder ExitCoder
	if errors.As(err, &coder) {
		return coder.ExitCode()
	}
	return ExitFailure
}

// ErrorMessage is the text reported for err by command. Errors with their own
// exit code report their message as is; everything else is prefixed with the
// command and the kind of the first typed error in the chain.
func ErrorMessage(command string, err error) string {
	var coder ExitCoder
	if errors.As(err, &coder) && coder.ExitCode() != ExitFailure {
		return coder.Error()
	}
	return fmt.Sprintf("%s failed: %s: %s", command, ErrorKind(err), err.Error())
}

// ErrorKind names the type of the first error in err's chain that is not a
// plain fmt or errors.Join wrapper, without its package qualifier. Values
// from errors.New are reported as "Error".
func ErrorKind(err error) string {
	name := fmt.Sprintf("%T", unwrapPlain(err))
	name = strings.TrimLeft(name, "*")
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	if name == "errorString" || name == "" {
		return "Error"
	}
	return name
}

// plainWrappers add context without adding a kind of their own.
var plainWrappers = map[string]bool{
	"*fmt.wrapError":    true,
	"*fmt.wrapErrors":   true,
	"*errors.joinError": true,
}

func unwrapPlain(err error) error {
	for err != nil && plainWrappers[fmt.Sprintf("%T", err)] {
		var next error
		switch u := err.(type) {
		case interface{ Unwrap() error }:
			next = u.Unwrap()
		case interface{ Unwrap() []error }:
			if errs := u.Unwrap(); len(errs) > 0 {
				next = errs[0]
			}
		}
		if next == nil {
			return err
		}
		err = next
	}
	return err
}
