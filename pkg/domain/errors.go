package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies failures returned by the core and its collaborators.
type ErrorKind string

// Error taxonomy shared by the manager, stores and adapters.
const (
	ErrorKindValidation    ErrorKind = "validation_failure"
	ErrorKindNotFound      ErrorKind = "not_found"
	ErrorKindAlreadyExists ErrorKind = "already_exists"
	ErrorKindAccessDenied  ErrorKind = "access_denied"
	ErrorKindUnavailable   ErrorKind = "system_unavailable"
	ErrorKindRuleViolation ErrorKind = "rule_violation"
	ErrorKindUnknown       ErrorKind = "unknown"
)

// ClassifiedError is implemented by every typed error in this package.
type ClassifiedError interface {
	error
	Kind() ErrorKind
	Recoverable() bool
}

// ValidationFailedError carries the full batch of validation failures for an entity.
type ValidationFailedError struct {
	Entity EntityType
	ID     string
	Errors []ValidationError
}

func (e *ValidationFailedError) Error() string {
	return fmt.Sprintf("%s %s failed validation: %s", e.Entity, e.ID, joinValidation(e.Errors))
}

// Kind implements ClassifiedError.
func (e *ValidationFailedError) Kind() ErrorKind { return ErrorKindValidation }

// Recoverable reports true; callers correct the input and retry.
func (e *ValidationFailedError) Recoverable() bool { return true }

// ConfigurationValidationError is returned when a candidate configuration is rejected.
type ConfigurationValidationError struct {
	ConfigurationType string
	Errors            []ValidationError
}

func (e *ConfigurationValidationError) Error() string {
	return fmt.Sprintf("%s configuration invalid: %s", e.ConfigurationType, joinValidation(e.Errors))
}

// Kind implements ClassifiedError.
func (e *ConfigurationValidationError) Kind() ErrorKind { return ErrorKindValidation }

// Recoverable reports true.
func (e *ConfigurationValidationError) Recoverable() bool { return true }

// NotFoundError is returned when a referenced record does not exist.
type NotFoundError struct {
	Entity EntityType
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// Kind implements ClassifiedError.
func (e *NotFoundError) Kind() ErrorKind { return ErrorKindNotFound }

// Recoverable reports false; retrying the same request cannot succeed.
func (e *NotFoundError) Recoverable() bool { return false }

// AlreadyExistsError is returned when creating a record whose id is taken.
type AlreadyExistsError struct {
	Entity EntityType
	ID     string
}

func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("%s %s already exists", e.Entity, e.ID)
}

// Kind implements ClassifiedError.
func (e *AlreadyExistsError) Kind() ErrorKind { return ErrorKindAlreadyExists }

// Recoverable reports false.
func (e *AlreadyExistsError) Recoverable() bool { return false }

// AccessDeniedError is produced by the identity collaborator.
type AccessDeniedError struct {
	Reason string
}

func (e *AccessDeniedError) Error() string {
	return "access denied: " + e.Reason
}

// Kind implements ClassifiedError.
func (e *AccessDeniedError) Kind() ErrorKind { return ErrorKindAccessDenied }

// Recoverable reports true; an authorization change may allow a retry.
func (e *AccessDeniedError) Recoverable() bool { return true }

// UnavailableError wraps transient failures from persistence or transport collaborators.
type UnavailableError struct {
	Operation string
	Err       error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Operation, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// Kind implements ClassifiedError.
func (e *UnavailableError) Kind() ErrorKind { return ErrorKindUnavailable }

// Recoverable reports true.
func (e *UnavailableError) Recoverable() bool { return true }

// KindOf returns the kind of the first classified error in err's chain.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var classified ClassifiedError
	if errors.As(err, &classified) {
		return classified.Kind()
	}
	var rv RuleViolationError
	if errors.As(err, &rv) {
		return ErrorKindRuleViolation
	}
	return ErrorKindUnknown
}

// IsRecoverable reports whether err is a classified, recoverable failure.
func IsRecoverable(err error) bool {
	var classified ClassifiedError
	if errors.As(err, &classified) {
		return classified.Recoverable()
	}
	return false
}

func joinValidation(errs []ValidationError) string {
	parts := make([]string, len(errs))
	for i, err := range errs {
		parts[i] = err.Description()
	}
	return strings.Join(parts, "; ")
}
