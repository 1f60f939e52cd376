package domain

import (
	"errors"
	"fmt"
)

var ErrUnknownMethod = errors.New("unknown payment method")

type Method string

const (
	MethodCard          Method = "card"
	MethodWalletA       Method = "wallet_a"
	MethodWalletB       Method = "wallet_b"
	MethodLocalTransfer Method = "local_transfer"
)

// Methods lists every method in display order.
var Methods = []Method{MethodCard, MethodWalletA, MethodWalletB, MethodLocalTransfer}

func ParseMethod(s string) (Method, error) {
	for _, m := range Methods {
		if string(m) == s {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMethod, s)
}

// SubmitLabel is the label of the single pay control for this method.
func (m Method) SubmitLabel() string {
	switch m {
	case MethodCard:
		return "Pay with card"
	case MethodWalletA:
		return "Pay with Wallet A"
	case MethodWalletB:
		return "Pay with Wallet B"
	case MethodLocalTransfer:
		return "Pay by mobile transfer"
	default:
		return "Pay"
	}
}

func (m Method) String() string {
	return string(m)
}
