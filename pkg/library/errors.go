package library

import (
	"errors"
	"fmt"
)

// Domain-level error values returned by the circulation services.
var (
	ErrDuplicateBook         = errors.New("duplicate book")
	ErrBookNotFound          = errors.New("book not found")
	ErrBookInUse             = errors.New("book has an open loan")
	ErrBookNotAvailable      = errors.New("book not available")
	ErrDuplicateAccount      = errors.New("duplicate account")
	ErrAccountNotFound       = errors.New("account not found")
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrNotEligible           = errors.New("account not eligible for promotion")
	ErrInsufficientFunds     = errors.New("insufficient funds")
	ErrMaxBooksReached       = errors.New("maximum open loans reached")
	ErrAlreadyBorrowed       = errors.New("book already borrowed")
	ErrHasUnpaidFines        = errors.New("borrower has unpaid fines")
	ErrNoOpenLoan            = errors.New("no open loan")
	ErrExtensionLimitReached = errors.New("extension limit reached")
	ErrFineNotFound          = errors.New("fine not found")
	ErrNothingToSettle       = errors.New("nothing to settle")
	ErrInvalidBookID         = errors.New("invalid book id")
	ErrInvalidAccountID      = errors.New("invalid account id")
	ErrInvalidRole           = errors.New("invalid role")
	ErrInvalidFineCause      = errors.New("invalid fine cause")
	ErrInvalidLoanStatus     = errors.New("invalid loan status")
	ErrInvalidAmount         = errors.New("invalid amount")
	ErrInvalidDate           = errors.New("invalid date")
	ErrInvalidBook           = errors.New("invalid book")
	ErrInvalidServiceConfig  = errors.New("invalid service config")
)

// OperationError wraps a failure with a stable operation code.
type OperationError struct {
	operation string
	subject   string
	code      string
	err       error
}

// Error returns the formatted error message.
func (operationError OperationError) Error() string {
	return fmt.Sprintf("%s.%s.%s: %v", operationError.operation, operationError.subject, operationError.code, operationError.err)
}

// Unwrap returns the underlying error.
func (operationError OperationError) Unwrap() error {
	return operationError.err
}

// Operation returns the operation segment.
func (operationError OperationError) Operation() string {
	return operationError.operation
}

// Subject returns the subject segment.
func (operationError OperationError) Subject() string {
	return operationError.subject
}

// Code returns the stable error code segment.
func (operationError OperationError) Code() string {
	return operationError.code
}

// WrapError wraps an error with operation, subject, and code metadata.
func WrapError(operation string, subject string, code string, err error) error {
	if err == nil {
		return nil
	}
	return OperationError{
		operation: operation,
		subject:   subject,
		code:      code,
		err:       err,
	}
}
