package service

import (
	"errors"
	"fmt"

	"kitchen-sync/internal/microservices/board/models"
	"kitchen-sync/internal/microservices/board/rules"
)

var (
	ErrInvalidTransition = rules.ErrInvalidTransition
	ErrMutationInFlight  = errors.New("status change already in flight")
	ErrOrderNotFound     = errors.New("order not found")
	ErrSyncFailure       = errors.New("status change not confirmed")
	ErrFetchFailure      = errors.New("active orders fetch failed")
	ErrWrongConfirmation = errors.New("confirmation is for another order")
)

// SyncFailure is the outcome of a status change the backend did not confirm.
// The order has been rolled back when it is reported.
type SyncFailure struct {
	OrderID int64
	Target  models.Status
	Err     error
}

func (e *SyncFailure) Error() string {
	return fmt.Sprintf("order %d to %q not confirmed: %v", e.OrderID, e.Target, e.Err)
}

func (e *SyncFailure) Is(target error) bool { return target == ErrSyncFailure }
func (e *SyncFailure) Unwrap() error        { return e.Err }

type FetchFailure struct {
	Err error
}

func (e *FetchFailure) Error() string        { return "fetch active orders: " + e.Err.Error() }
func (e *FetchFailure) Is(target error) bool { return target == ErrFetchFailure }
func (e *FetchFailure) Unwrap() error        { return e.Err }
