package domain

import "fmt"

// FailureKind classifies a Declined outcome.
type FailureKind string

const (
	FailureValidation  FailureKind = "validation"
	FailureProvider    FailureKind = "provider"
	FailureTransport   FailureKind = "transport"
	FailureUnavailable FailureKind = "unavailable"
)

// Outcome is the single result every payment adapter produces: Confirmed,
// Declined or Cancelled.
type Outcome interface {
	outcome()
	Label() string
}

// Confirmed carries the provider's confirmation reference.
type Confirmed struct {
	Ref string
}

type Declined struct {
	Reason string
	Kind   FailureKind
	Err    error
	// Unsettled means a charging request failed without an answer from the
	// provider. It may have taken money.
	Unsettled bool
}

// Cancelled means the flow stopped before the provider answered.
type Cancelled struct {
	Reason string
}

func (Confirmed) outcome() {}
func (Declined) outcome()  {}
func (Cancelled) outcome() {}

func (Confirmed) Label() string { return "confirmed" }
func (Declined) Label() string  { return "declined" }
func (Cancelled) Label() string { return "cancelled" }

func (d Declined) Error() string {
	if d.Err != nil {
		return fmt.Sprintf("%s: %s: %v", d.Kind, d.Reason, d.Err)
	}
	return fmt.Sprintf("%s: %s", d.Kind, d.Reason)
}

func (d Declined) Unwrap() error {
	return d.Err
}

// Retryable reports whether the shopper may retry with the same attempt.
func (d Declined) Retryable() bool {
	return d.Kind != FailureUnavailable
}
