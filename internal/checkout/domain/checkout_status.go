package domain

// AttemptStatus is the lifecycle of one PaymentAttempt.
type AttemptStatus string

const (
	AttemptInitiated         AttemptStatus = "initiated"
	AttemptProviderConfirmed AttemptStatus = "provider-confirmed"
	AttemptOrderCreated      AttemptStatus = "order-created"
	AttemptFailed            AttemptStatus = "failed"
	AttemptAbandoned         AttemptStatus = "abandoned"
)

var attemptTransitions = map[AttemptStatus][]AttemptStatus{
	AttemptInitiated:         {AttemptProviderConfirmed, AttemptFailed, AttemptAbandoned},
	AttemptProviderConfirmed: {AttemptOrderCreated, AttemptFailed},
}

func (s AttemptStatus) IsTerminal() bool {
	return s == AttemptOrderCreated || s == AttemptFailed || s == AttemptAbandoned
}

func CanTransitionTo(from, to AttemptStatus) bool {
	for _, next := range attemptTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// String representation (for logging)
func (s AttemptStatus) String() string {
	return string(s)
}

// SessionState is where a checkout session stands from the shopper's point of view.
type SessionState string

const (
	StateRedirectCatalog SessionState = "redirect-catalog"
	StateAuthRequired    SessionState = "auth-required"
	StateCollecting      SessionState = "collecting"
	StateReadyToPay      SessionState = "ready-to-pay"
	StateProcessing      SessionState = "processing"
	StateCompleted       SessionState = "completed"
	StateAborted         SessionState = "aborted"
	StateAbandoned       SessionState = "abandoned"
)
