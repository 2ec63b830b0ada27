package entity

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotPublished is returned by a rate source for a day without a quote
	ErrNotPublished = errors.New("quote not published for date")

	// ErrOperatorCancelled signals that the operator interrupted automatic
	// resolution of the current transaction
	ErrOperatorCancelled = errors.New("automatic resolution cancelled by operator")

	// ErrSourceUnreachable means the rate service could not be reached before
	// any transaction was attempted
	ErrSourceUnreachable = errors.New("rate service unreachable")

	// ErrBatchNotFound is returned when a stored batch does not exist
	ErrBatchNotFound = errors.New("batch not found")
)

// RateUnavailableError means no quote was published within the lookback window
type RateUnavailableError struct {
	Date         time.Time
	Side         Side
	LookbackDays int
}

func (e *RateUnavailableError) Error() string {
	return fmt.Sprintf("no %s published on %s or the %d days before",
		e.Side, e.Date.Format(DateFormat), e.LookbackDays)
}

// RateSourceError wraps a transport or service failure of the rate source
type RateSourceError struct {
	Date      time.Time
	Attempts  int
	Retryable bool
	Err       error
}

func (e *RateSourceError) Error() string {
	if e.Attempts > 1 {
		return fmt.Sprintf("rate source failed for %s after %d attempts: %v",
			e.Date.Format(DateFormat), e.Attempts, e.Err)
	}
	return fmt.Sprintf("rate source failed for %s: %v", e.Date.Format(DateFormat), e.Err)
}

func (e *RateSourceError) Unwrap() error { return e.Err }

// ValidationError reports a malformed input field
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}
