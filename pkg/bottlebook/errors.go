package bottlebook

import (
	"errors"
	"fmt"
)

// Domain-level error values returned by the bottle ledger service.
var (
	ErrDuplicatePhone          = errors.New("duplicate phone number")
	ErrUnknownCustomer         = errors.New("unknown customer")
	ErrUnknownTransaction      = errors.New("unknown transaction")
	ErrInsufficientOutstanding = errors.New("insufficient outstanding bottles")
	ErrMigrationRequired       = errors.New("local schema migration required")
	ErrInvalidCustomerID       = errors.New("invalid customer id")
	ErrInvalidTransactionID    = errors.New("invalid transaction id")
	ErrInvalidChangeID         = errors.New("invalid change id")
	ErrInvalidTenantID         = errors.New("invalid tenant id")
	ErrInvalidPhoneNumber      = errors.New("invalid phone number")
	ErrInvalidCustomerName     = errors.New("invalid customer name")
	ErrInvalidTrustStatus      = errors.New("invalid trust status")
	ErrInvalidTransactionType  = errors.New("invalid transaction type")
	ErrInvalidChangeType       = errors.New("invalid change type")
	ErrInvalidBottleCount      = errors.New("invalid bottle count")
	ErrInvalidDepositCents     = errors.New("invalid deposit cents")
	ErrInvalidTimestamp        = errors.New("invalid timestamp")
	ErrInvalidServiceConfig    = errors.New("invalid service config")
	ErrInvalidSnapshot         = errors.New("invalid snapshot")
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
