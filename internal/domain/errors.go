package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Sentinel errors for the failure modes the batch jobs dispatch on.
// Everything propagates to the calling job; the core never
// catches-and-continues on a financial-state mutation.
var (
	// ErrConfiguration indicates a required source or credential is missing.
	ErrConfiguration = errors.New("configuration error")

	// ErrInsufficientFunds indicates a withdrawal exceeds the investor's
	// current position value. The request is rejected with no state change.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrStaleNAV indicates an operation needs a NAV record that does not
	// exist for the required date and no fallback is defined.
	ErrStaleNAV = errors.New("no nav record available for required date")

	// ErrNAVUnavailable indicates no NAV record exists at all. Callers must
	// treat this as a distinct, visible state, never as "NAV is the last
	// known value".
	ErrNAVUnavailable = errors.New("nav unavailable")

	// ErrNotFound indicates a requested entity does not exist in the store.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyProcessed indicates the fund flow request has already been
	// consumed; reprocessing it is a no-op, not a failure.
	ErrAlreadyProcessed = errors.New("fund flow request already processed")

	// ErrTransient indicates a network or store timeout eligible for
	// bounded retry with backoff.
	ErrTransient = errors.New("transient io error")
)

// AggregationError reports which brokerage sources failed during
// combined-balance computation. The whole valuation run aborts; a partial
// or averaged balance is never produced.
type AggregationError struct {
	Failed map[string]error
}

func (e *AggregationError) Error() string {
	names := make([]string, 0, len(e.Failed))
	for name := range e.Failed {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s: %v", name, e.Failed[name]))
	}

	return fmt.Sprintf(
		"balance aggregation failed for source(s) [%s]; fix the source or temporarily remove it from configuration: %s",
		strings.Join(names, ", "), strings.Join(parts, "; "))
}

// Sources returns the names of the failed sources, sorted.
func (e *AggregationError) Sources() []string {
	names := make([]string, 0, len(e.Failed))
	for name := range e.Failed {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
