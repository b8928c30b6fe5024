package order

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidInput              = errors.New("invalid input")
	ErrInvalidItemReference      = errors.New("invalid food item ids")
	ErrItemNotFound              = errors.New("food item not found")
	ErrItemUnavailable           = errors.New("food item is not available")
	ErrPaymentServiceUnavailable = errors.New("payment service is not available")
	ErrPaymentGateway            = errors.New("payment gateway request failed")
	ErrOrderNotFound             = errors.New("order not found")
	ErrForbidden                 = errors.New("not authorized to access this order")
	ErrInvalidStatusTransition   = errors.New("invalid order status transition")
	ErrPaymentAlreadyFinalized   = errors.New("payment has already been finalized")
	ErrConcurrentUpdate          = errors.New("order was modified concurrently")
)

type InvalidInputError struct {
	Field   string
	Message string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *InvalidInputError) Unwrap() error { return ErrInvalidInput }

// InvalidItemReferenceError lists every requested id that is not in the
// catalog's identifier format.
type InvalidItemReferenceError struct {
	IDs []string
}

func (e *InvalidItemReferenceError) Error() string {
	return fmt.Sprintf("%s: %s", ErrInvalidItemReference, strings.Join(e.IDs, ", "))
}

func (e *InvalidItemReferenceError) Unwrap() error { return ErrInvalidItemReference }

type ItemNotFoundError struct {
	ItemID string
}

func (e *ItemNotFoundError) Error() string {
	return fmt.Sprintf("food item %s not found", e.ItemID)
}

func (e *ItemNotFoundError) Unwrap() error { return ErrItemNotFound }

type ItemUnavailableError struct {
	ID   string
	Name string
}

func (e *ItemUnavailableError) Error() string {
	return fmt.Sprintf("%s is not available right now", e.Name)
}

func (e *ItemUnavailableError) Unwrap() error { return ErrItemUnavailable }
