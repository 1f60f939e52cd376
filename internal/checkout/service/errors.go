package service

import "errors"

var (
	ErrSessionNotFound   = errors.New("no checkout session for this shopper")
	ErrSessionClosed     = errors.New("checkout session is closed")
	ErrFieldsIncomplete  = errors.New("contact and shipping details are incomplete")
	ErrNoMethodSelected  = errors.New("no payment method selected")
	ErrMethodUnavailable = errors.New("payment method is not available")
	ErrBusy              = errors.New("a payment is already in progress")
	ErrCartEmptied       = errors.New("cart was emptied before payment")
	ErrStalePrompt       = errors.New("wallet prompt does not belong to the active payment")
	ErrNoReceipt         = errors.New("checkout has not completed")
	ErrPaymentUnsettled  = errors.New("an earlier payment has no final answer yet, retry it first")
)
