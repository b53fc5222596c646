package store

import (
	"errors"
	"fmt"
)

// Sentinels for errors.Is branching. The typed errors below match their
// sentinel and carry the structured detail callers need to render an
// actionable message.
var (
	ErrNotFound          = errors.New("not found")
	ErrInvalid           = errors.New("invalid request")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrAlreadyRefunded   = errors.New("sale already refunded")
	ErrConflict          = errors.New("conflict")
)

type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s: not found", e.Entity, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid request: %s", e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrInvalid }

type InsufficientStockError struct {
	ProductID string
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("product %s: insufficient stock (available %d, requested %d)", e.ProductID, e.Available, e.Requested)
}

func (e *InsufficientStockError) Is(target error) bool { return target == ErrInsufficientStock }

type AlreadyRefundedError struct {
	SaleID string
}

func (e *AlreadyRefundedError) Error() string {
	return fmt.Sprintf("sale %s: already refunded", e.SaleID)
}

func (e *AlreadyRefundedError) Is(target error) bool { return target == ErrAlreadyRefunded }

type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict: %s", e.Reason)
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }
