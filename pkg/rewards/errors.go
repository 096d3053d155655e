package rewards

import (
	"errors"
	"fmt"
)

// Domain-level error values returned by the rewards service.
var (
	ErrBelowMinimumPurchase     = errors.New("below minimum purchase amount")
	ErrDuplicateBillNumber      = errors.New("duplicate bill number")
	ErrCustomerNotFound         = errors.New("customer not found")
	ErrProductUnavailable       = errors.New("product not found or unavailable")
	ErrOutOfStock               = errors.New("product out of stock")
	ErrInsufficientBalance      = errors.New("insufficient point balance")
	ErrBelowRedemptionThreshold = errors.New("available points below redemption threshold")
	ErrBusy                     = errors.New("storage busy, retry the operation")
	ErrInvalidMobile            = errors.New("invalid mobile")
	ErrInvalidBillNumber        = errors.New("invalid bill number")
	ErrInvalidFuelType          = errors.New("invalid fuel type")
	ErrInvalidCustomerID        = errors.New("invalid customer id")
	ErrInvalidProductID         = errors.New("invalid product id")
	ErrInvalidActorID           = errors.New("invalid actor id")
	ErrInvalidAmount            = errors.New("invalid amount")
	ErrInvalidQuantity          = errors.New("invalid quantity")
	ErrInvalidPoints            = errors.New("invalid points")
	ErrInvalidSetting           = errors.New("invalid setting value")
	ErrInvalidServiceConfig     = errors.New("invalid service config")
	ErrInvalidBalance           = errors.New("invalid balance")
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
