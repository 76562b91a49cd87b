package models

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a domain error for the caller
type ErrorKind string

const (
	KindValidation   ErrorKind = "validation"
	KindNotFound     ErrorKind = "not_found"
	KindConflict     ErrorKind = "conflict"
	KindBusinessRule ErrorKind = "business_rule"
)

// Error is a typed domain error. Two errors are the same for errors.Is when their codes match.
type Error struct {
	Kind      ErrorKind
	Code      string
	Message   string
	Field     string
	Retryable bool
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

// Is matches on the error code so that detailed copies still match their sentinel
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

var (
	ErrValidation          = &Error{Kind: KindValidation, Code: "VALIDATION_ERROR", Message: "invalid request"}
	ErrEmptyOrder          = &Error{Kind: KindValidation, Code: "EMPTY_ORDER", Message: "order must contain at least one item"}
	ErrInvalidQuantity     = &Error{Kind: KindValidation, Code: "INVALID_QUANTITY", Message: "quantity must be at least 1"}
	ErrInvalidOrderType    = &Error{Kind: KindValidation, Code: "INVALID_ORDER_TYPE", Message: "order type must be dine-in or takeaway"}
	ErrInvalidStatus       = &Error{Kind: KindValidation, Code: "INVALID_STATUS", Message: "unknown status"}
	ErrTableBranchMismatch = &Error{Kind: KindValidation, Code: "TABLE_BRANCH_MISMATCH", Message: "table does not belong to branch"}

	ErrNotFound         = &Error{Kind: KindNotFound, Code: "NOT_FOUND", Message: "not found"}
	ErrBranchNotFound   = &Error{Kind: KindNotFound, Code: "BRANCH_NOT_FOUND", Message: "branch not found"}
	ErrTableNotFound    = &Error{Kind: KindNotFound, Code: "TABLE_NOT_FOUND", Message: "table not found"}
	ErrMenuItemNotFound = &Error{Kind: KindNotFound, Code: "MENU_ITEM_NOT_FOUND", Message: "menu item not found"}
	ErrOrderNotFound    = &Error{Kind: KindNotFound, Code: "ORDER_NOT_FOUND", Message: "order not found"}
	ErrItemNotFound     = &Error{Kind: KindNotFound, Code: "ORDER_ITEM_NOT_FOUND", Message: "order item not found"}

	ErrTableOccupied          = &Error{Kind: KindConflict, Code: "TABLE_OCCUPIED", Message: "table already has an active order"}
	ErrInvalidTransition      = &Error{Kind: KindConflict, Code: "INVALID_TRANSITION", Message: "status transition not allowed"}
	ErrOrderClosed            = &Error{Kind: KindConflict, Code: "ORDER_CLOSED", Message: "order is completed or cancelled"}
	ErrConcurrentModification = &Error{Kind: KindConflict, Code: "CONCURRENT_MODIFICATION", Message: "order was modified concurrently, reload and retry"}
	ErrOrderNumberCollision   = &Error{Kind: KindConflict, Code: "ORDER_NUMBER_COLLISION", Message: "order number already allocated, retry", Retryable: true}

	ErrBranchClosed        = &Error{Kind: KindBusinessRule, Code: "BRANCH_CLOSED", Message: "branch is not accepting orders"}
	ErrBelowMinimumOrder   = &Error{Kind: KindBusinessRule, Code: "BELOW_MINIMUM_ORDER", Message: "order subtotal is below the branch minimum"}
	ErrUnavailable         = &Error{Kind: KindBusinessRule, Code: "UNAVAILABLE", Message: "menu item is unavailable"}
	ErrInsufficientStock   = &Error{Kind: KindBusinessRule, Code: "INSUFFICIENT_STOCK", Message: "not enough stock"}
	ErrInvalidVariant      = &Error{Kind: KindBusinessRule, Code: "INVALID_VARIANT", Message: "variant does not exist"}
	ErrInvalidAddon        = &Error{Kind: KindBusinessRule, Code: "INVALID_ADDON", Message: "addon does not match the catalog"}
	ErrPaymentNotConfirmed = &Error{Kind: KindBusinessRule, Code: "PAYMENT_NOT_CONFIRMED", Message: "order must be paid before completion"}
	ErrRefundRequired      = &Error{Kind: KindBusinessRule, Code: "REFUND_REQUIRED", Message: "paid orders must be refunded before cancellation"}
)

// Errorf returns a copy of sentinel carrying a detailed message
func Errorf(sentinel *Error, format string, args ...interface{}) *Error {
	e := *sentinel
	e.Message = fmt.Sprintf(format, args...)
	return &e
}

// FieldError returns a copy of sentinel attached to a request field
func FieldError(sentinel *Error, field, message string) *Error {
	e := *sentinel
	e.Field = field
	if message != "" {
		e.Message = message
	}
	return &e
}

// KindOf reports the kind of a domain error, or "" for infrastructure errors
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsRetryable reports whether the caller may retry the request unchanged
func IsRetryable(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Retryable
}
