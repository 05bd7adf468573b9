package models

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/mmdatafocus/lms_backend/utils"
)

// ErrLoanAlreadyReturned is returned when a return targets a closed loan. Nothing is written.
var ErrLoanAlreadyReturned = errors.New("loan already returned")

// ValidationError carries field -> reason for user-correctable input problems.
type ValidationError struct {
	Fields map[string]string
}

func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: reason}}
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

type NotFoundError struct {
	Resource string
	Key      string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Resource, e.Key)
}

type InvalidDepartmentError struct {
	Department string
}

func (e *InvalidDepartmentError) Error() string {
	return fmt.Sprintf("invalid department %q", e.Department)
}

type DuplicateError struct {
	Resource string
	Message  string
}

func (e *DuplicateError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Resource + " already exists"
}

// PersistenceError wraps a store failure. Its message is for logs, not for callers.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *PersistenceError) Unwrap() error { return e.Err }

type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string {
	if e.Reason == "" {
		return "unauthorized"
	}
	return e.Reason
}

// validationFromStruct runs the shared validator over input.
func validationFromStruct(input any) error {
	err := utils.Validator().Struct(input)
	if err == nil {
		return nil
	}
	if fields := utils.ProcessValidationErrors(err); len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return err
}

const mysqlErrDuplicateEntry = 1062

func isDuplicateKey(err error) bool {
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == mysqlErrDuplicateEntry
}

// storeError passes typed domain errors through and wraps everything else.
func storeError(op string, err error) error {
	if err == nil {
		return nil
	}
	if isDomainError(err) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}

func isDomainError(err error) bool {
	var (
		ve  *ValidationError
		nf  *NotFoundError
		ide *InvalidDepartmentError
		de  *DuplicateError
		pe  *PersistenceError
		ae  *AuthError
	)
	return errors.Is(err, ErrLoanAlreadyReturned) ||
		errors.As(err, &ve) || errors.As(err, &nf) || errors.As(err, &ide) ||
		errors.As(err, &de) || errors.As(err, &pe) || errors.As(err, &ae)
}
