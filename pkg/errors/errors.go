package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType classifies orchestration errors. Only ErrorTypeGating is fatal
// to a command; every other type is recovered per unit.
type ErrorType string

const (
	ErrorTypeGating      ErrorType = "gating"
	ErrorTypeLaunch      ErrorType = "launch"
	ErrorTypeResolution  ErrorType = "resolution"
	ErrorTypeTermination ErrorType = "termination"
	ErrorTypeDataInit    ErrorType = "data_init"

	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeNotFound   ErrorType = "not_found"
	ErrorTypeConflict   ErrorType = "conflict"
	ErrorTypeProcess    ErrorType = "process"
	ErrorTypeIO         ErrorType = "io"
	ErrorTypeTimeout    ErrorType = "timeout"
	ErrorTypeCancelled  ErrorType = "cancelled"
	ErrorTypeInternal   ErrorType = "internal"
)

// DomainError represents a structured error with type and context
type DomainError struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]interface{}
}

func (e *DomainError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is matches any DomainError of the same type.
func (e *DomainError) Is(target error) bool {
	if other, ok := target.(*DomainError); ok {
		return e.Type == other.Type
	}
	return false
}

// WithContext adds context information to the error
func (e *DomainError) WithContext(key string, value interface{}) *DomainError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

func NewDomainError(errorType ErrorType, message string, cause error) *DomainError {
	return &DomainError{
		Type:    errorType,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// Orchestration errors

// NewGatingError reports a missing prerequisite (container engine, cluster
// CLI). It aborts the whole command before any unit is touched.
func NewGatingError(message string, cause error) *DomainError {
	return NewDomainError(ErrorTypeGating, message, cause)
}

func NewLaunchError(message string, cause error) *DomainError {
	return NewDomainError(ErrorTypeLaunch, message, cause)
}

func NewResolutionError(message string, cause error) *DomainError {
	return NewDomainError(ErrorTypeResolution, message, cause)
}

func NewTerminationError(message string, cause error) *DomainError {
	return NewDomainError(ErrorTypeTermination, message, cause)
}

func NewDataInitError(message string, cause error) *DomainError {
	return NewDomainError(ErrorTypeDataInit, message, cause)
}

// Generic errors

func NewValidationError(message string, cause error) *DomainError {
	return NewDomainError(ErrorTypeValidation, message, cause)
}

func NewNotFoundError(message string, cause error) *DomainError {
	return NewDomainError(ErrorTypeNotFound, message, cause)
}

func NewConflictError(message string, cause error) *DomainError {
	return NewDomainError(ErrorTypeConflict, message, cause)
}

func NewProcessError(message string, cause error) *DomainError {
	return NewDomainError(ErrorTypeProcess, message, cause)
}

func NewIOError(message string, cause error) *DomainError {
	return NewDomainError(ErrorTypeIO, message, cause)
}

func NewTimeoutError(message string, cause error) *DomainError {
	return NewDomainError(ErrorTypeTimeout, message, cause)
}

func NewCancelledError(message string, cause error) *DomainError {
	return NewDomainError(ErrorTypeCancelled, message, cause)
}

func NewInternalError(message string, cause error) *DomainError {
	return NewDomainError(ErrorTypeInternal, message, cause)
}

// TypeOf returns the type of the outermost DomainError in the chain, or ""
// if there is none.
func TypeOf(err error) ErrorType {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type
	}
	return ""
}

// isType walks every branch of err, including each error of a collection.
func isType(err error, t ErrorType) bool {
	return errors.Is(err, &DomainError{Type: t})
}

func IsGatingError(err error) bool      { return isType(err, ErrorTypeGating) }
func IsLaunchError(err error) bool      { return isType(err, ErrorTypeLaunch) }
func IsResolutionError(err error) bool  { return isType(err, ErrorTypeResolution) }
func IsTerminationError(err error) bool { return isType(err, ErrorTypeTermination) }
func IsDataInitError(err error) bool    { return isType(err, ErrorTypeDataInit) }
func IsValidationError(err error) bool  { return isType(err, ErrorTypeValidation) }
func IsNotFoundError(err error) bool    { return isType(err, ErrorTypeNotFound) }
func IsConflictError(err error) bool    { return isType(err, ErrorTypeConflict) }
func IsProcessError(err error) bool     { return isType(err, ErrorTypeProcess) }
func IsIOError(err error) bool          { return isType(err, ErrorTypeIO) }
func IsTimeoutError(err error) bool     { return isType(err, ErrorTypeTimeout) }
func IsCancelledError(err error) bool   { return isType(err, ErrorTypeCancelled) }
func IsInternalError(err error) bool    { return isType(err, ErrorTypeInternal) }

// ErrorCollection aggregates recovered per-unit errors of a multi-unit
// operation.
type ErrorCollection struct {
	Errors []error
}

func (e *ErrorCollection) Error() string {
	switch len(e.Errors) {
	case 0:
		return "no errors"
	case 1:
		return e.Errors[0].Error()
	}
	msgs := make([]string, 0, len(e.Errors))
	for _, err := range e.Errors {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("%d errors occurred: %s", len(e.Errors), strings.Join(msgs, "; "))
}

// Unwrap lets errors.Is/As look into every collected error.
func (e *ErrorCollection) Unwrap() []error {
	return e.Errors
}

func (e *ErrorCollection) Add(err error) {
	if err != nil {
		e.Errors = append(e.Errors, err)
	}
}

func (e *ErrorCollection) HasErrors() bool {
	return len(e.Errors) > 0
}

// CountByType tallies collected errors by their DomainError type.
func (e *ErrorCollection) CountByType() map[ErrorType]int {
	counts := make(map[ErrorType]int)
	for _, err := range e.Errors {
		counts[TypeOf(err)]++
	}
	return counts
}

func (e *ErrorCollection) ToError() error {
	if !e.HasErrors() {
		return nil
	}
	return e
}

func NewErrorCollection() *ErrorCollection {
	return &ErrorCollection{
		Errors: make([]error, 0),
	}
}
