package sandbox

import (
	"math/rand"
	"strings"
)

// Decision is the sandbox's answer to a charge.
type Decision struct {
	Approve bool
	Code    string
	Message string
}

// Decider chooses whether a charge with the given payment-method token succeeds.
type Decider interface {
	Decide(method, token string) Decision
}

var declineReasons = []Decision{
	{Code: "card_declined", Message: "The card was declined."},
	{Code: "insufficient_funds", Message: "Insufficient funds."},
	{Code: "expired_card", Message: "The card has expired."},
	{Code: "incorrect_cvc", Message: "The security code is incorrect."},
	{Code: "processing_error", Message: "An error occurred while processing."},
}

// RandomDecider approves about 95% of charges.
type RandomDecider struct{}

func (RandomDecider) Decide(string, string) Decision {
	return calcDecision(rand.Intn(101))
}

func calcDecision(randomInt int) Decision {
	if randomInt < 95 {
		return Decision{Approve: true}
	}
	reason := randomInt - 95
	if reason == 0 || reason > len(declineReasons) {
		return Decision{Code: "unknown", Message: "unknown reason"}
	}
	return declineReasons[reason-1]
}

// TokenDecider declines tokens carrying a "decline" marker, for example
// "tok_decline_insufficient_funds", and approves everything else.
type TokenDecider struct{}

func (TokenDecider) Decide(_ string, token string) Decision {
	if !strings.Contains(token, "decline") {
		return Decision{Approve: true}
	}
	for _, d := range declineReasons {
		if strings.HasSuffix(token, d.Code) {
			return d
		}
	}
	return declineReasons[0]
}
