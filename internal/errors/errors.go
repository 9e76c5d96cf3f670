/*
 * Copyright (c) 2026 Firefly Software Solutions Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */


/*
Package errors provides structured error handling for matsearch.

Every failure that can reach an API caller or the operator is an *AppError
carrying:
  - an error code for programmatic handling
  - a category that decides how the failure is surfaced
  - a user-facing message plus optional detail and hint
  - the wrapped root cause

Error Categories:
  - ConfigError: required source or dataset missing, fatal at startup
  - ValidationError: malformed ids, missing fields, unknown dataset keys
  - NotFoundError: a lookup that matched no row
  - DependencyError: a spreadsheet engine that is not available for a file type
  - StorageError: row-store and file I/O failures
*/
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorCode represents a unique error identifier.
type ErrorCode int

const (
	// Configuration errors (1000-1999)
	ErrCodeConfig         ErrorCode = 1000
	ErrCodeSourceNotFound ErrorCode = 1001
	ErrCodeMainMissing    ErrorCode = 1002

	// Validation errors (2000-2999)
	ErrCodeValidation      ErrorCode = 2000
	ErrCodeInvalidValue    ErrorCode = 2001
	ErrCodeMissingRequired ErrorCode = 2002
	ErrCodeUnknownDataset  ErrorCode = 2003
	ErrCodeColumnNotFound  ErrorCode = 2004
	ErrCodeUnsupportedFile ErrorCode = 2005
	ErrCodeNoColumns       ErrorCode = 2006
	ErrCodeDuplicateColumn ErrorCode = 2007

	// Lookup errors (3000-3999)
	ErrCodeNotFound ErrorCode = 3000

	// Dependency errors (4000-4999)
	ErrCodeDependency        ErrorCode = 4000
	ErrCodeMissingDependency ErrorCode = 4001

	// Storage errors (5000-5999)
	ErrCodeStorage ErrorCode = 5000
	ErrCodeIOError ErrorCode = 5001
)

// Category represents the error category.
type Category string

const (
	CategoryConfig     Category = "CONFIG"
	CategoryValidation Category = "VALIDATION"
	CategoryNotFound   Category = "NOT_FOUND"
	CategoryDependency Category = "DEPENDENCY"
	CategoryStorage    Category = "STORAGE"
)

// AppError represents a structured error in matsearch.
type AppError struct {
	Code     ErrorCode
	Category Category
	Message  string
	Detail   string
	Hint     string
	Cause    error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	msg := fmt.Sprintf("ERROR %d (%s): %s", e.Code, e.Category, e.Message)
	if e.Detail != "" {
		msg += " - " + e.Detail
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// UserMessage returns the message shown to API callers.
func (e *AppError) UserMessage() string {
	msg := e.Message
	if e.Detail != "" {
		msg += fmt.Sprintf(" (%s)", e.Detail)
	}
	if e.Hint != "" {
		msg += ". " + e.Hint
	}
	return msg
}

// WithDetail adds detail to the error.
func (e *AppError) WithDetail(detail string) *AppError {
	e.Detail = detail
	return e
}

// WithHint adds a hint to the error.
func (e *AppError) WithHint(hint string) *AppError {
	e.Hint = hint
	return e
}

// WithCause adds a cause to the error.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// ============================================================================
// Configuration Error Constructors
// ============================================================================

// NewConfigError creates a new configuration error.
func NewConfigError(message string) *AppError {
	return &AppError{
		Code:     ErrCodeConfig,
		Category: CategoryConfig,
		Message:  message,
	}
}

// SourceNotFound creates an error for a missing source file.
func SourceNotFound(path string) *AppError {
	return &AppError{
		Code:     ErrCodeSourceNotFound,
		Category: CategoryConfig,
		Message:  "source file not found",
		Detail:   path,
		Hint:     "Check the source_xlsx, source_xls and source_csv settings",
	}
}

// MainDatasetMissing creates an error for a missing main dataset.
func MainDatasetMissing(path string) *AppError {
	return &AppError{
		Code:     ErrCodeMainMissing,
		Category: CategoryConfig,
		Message:  "main db missing",
		Detail:   path,
		Hint:     "Restart the server to rebuild the main dataset from its source file",
	}
}

// ============================================================================
// Validation Error Constructors
// ============================================================================

// NewValidationError creates a new validation error.
func NewValidationError(message string) *AppError {
	return &AppError{
		Code:     ErrCodeValidation,
		Category: CategoryValidation,
		Message:  message,
	}
}

// InvalidValue creates an error for invalid values.
func InvalidValue(field, reason string) *AppError {
	return &AppError{
		Code:     ErrCodeInvalidValue,
		Category: CategoryValidation,
		Message:  fmt.Sprintf("invalid %s", field),
		Detail:   reason,
	}
}

// MissingRequired creates an error for missing required fields.
func MissingRequired(field string) *AppError {
	return &AppError{
		Code:     ErrCodeMissingRequired,
		Category: CategoryValidation,
		Message:  fmt.Sprintf("missing %s", field),
	}
}

// UnknownDataset creates an error for an unknown dataset key.
func UnknownDataset(key string) *AppError {
	return &AppError{
		Code:     ErrCodeUnknownDataset,
		Category: CategoryValidation,
		Message:  "unknown db",
		Detail:   key,
		Hint:     "Use one of: main, user",
	}
}

// ColumnNotFound creates an error for a property that names no column.
func ColumnNotFound(column string) *AppError {
	return &AppError{
		Code:     ErrCodeColumnNotFound,
		Category: CategoryValidation,
		Message:  fmt.Sprintf("unknown property '%s'", column),
		Hint:     "Use GET /properties to see filterable columns",
	}
}

// UnsupportedFile creates an error for a file type that is never accepted.
func UnsupportedFile(name string, accepted string) *AppError {
	return &AppError{
		Code:     ErrCodeUnsupportedFile,
		Category: CategoryValidation,
		Message:  fmt.Sprintf("only %s files are supported", accepted),
		Detail:   name,
	}
}

// NoColumns creates an error for a source whose header row is empty.
func NoColumns(source string) *AppError {
	return &AppError{
		Code:     ErrCodeNoColumns,
		Category: CategoryValidation,
		Message:  "no columns",
		Detail:   source,
		Hint:     "The first row of the source must hold the column names",
	}
}

// DuplicateColumn creates an error for a header that names a column twice.
func DuplicateColumn(column string) *AppError {
	return &AppError{
		Code:     ErrCodeDuplicateColumn,
		Category: CategoryValidation,
		Message:  fmt.Sprintf("duplicate column name '%s'", column),
	}
}

// ============================================================================
// Lookup Error Constructors
// ============================================================================

// NotFound creates an error for a lookup with no result.
func NotFound() *AppError {
	return &AppError{
		Code:     ErrCodeNotFound,
		Category: CategoryNotFound,
		Message:  "not found",
	}
}

// ============================================================================
// Dependency Error Constructors
// ============================================================================

// MissingDependency creates an error for a file type no engine can read.
func MissingDependency(format, hint string) *AppError {
	return &AppError{
		Code:     ErrCodeMissingDependency,
		Category: CategoryDependency,
		Message:  fmt.Sprintf("no spreadsheet engine available for %s files", format),
		Hint:     hint,
	}
}

// ============================================================================
// Storage Error Constructors
// ============================================================================

// NewStorageError creates a new storage error.
func NewStorageError(message string) *AppError {
	return &AppError{
		Code:     ErrCodeStorage,
		Category: CategoryStorage,
		Message:  message,
	}
}

// IOError creates an error for a failed file operation.
func IOError(op string, cause error) *AppError {
	return &AppError{
		Code:     ErrCodeIOError,
		Category: CategoryStorage,
		Message:  op,
		Cause:    cause,
	}
}

// ============================================================================
// Helper Functions
// ============================================================================

// categoryOf returns the category of the first AppError in err's chain.
func categoryOf(err error) (Category, bool) {
	var e *AppError
	if stderrors.As(err, &e) {
		return e.Category, true
	}
	return "", false
}

// IsConfigError checks if an error is a configuration error.
func IsConfigError(err error) bool {
	c, ok := categoryOf(err)
	return ok && c == CategoryConfig
}

// IsValidationError checks if an error is a validation error.
func IsValidationError(err error) bool {
	c, ok := categoryOf(err)
	return ok && c == CategoryValidation
}

// IsNotFound checks if an error is a not-found error.
func IsNotFound(err error) bool {
	c, ok := categoryOf(err)
	return ok && c == CategoryNotFound
}

// IsDependencyError checks if an error is a dependency error.
func IsDependencyError(err error) bool {
	c, ok := categoryOf(err)
	return ok && c == CategoryDependency
}

// GetCode returns the error code if err wraps an AppError, or 0 otherwise.
func GetCode(err error) ErrorCode {
	var e *AppError
	if stderrors.As(err, &e) {
		return e.Code
	}
	return 0
}

// GetHint returns the hint of the first AppError in err's chain.
func GetHint(err error) string {
	var e *AppError
	if stderrors.As(err, &e) {
		return e.Hint
	}
	return ""
}

// HTTPStatus maps an error to the status code an API response should carry.
func HTTPStatus(err error) int {
	c, ok := categoryOf(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch c {
	case CategoryValidation:
		return http.StatusBadRequest
	case CategoryNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// FormatError formats an error for an API caller.
func FormatError(err error) string {
	var e *AppError
	if stderrors.As(err, &e) {
		return e.UserMessage()
	}
	return err.Error()
}
