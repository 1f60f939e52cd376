package domain

import (
	"errors"
	"testing"
	"time"

	cartdomain "github.com/BetterLogicTeam/falcoP-shop-sub000/internal/cart/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToMinorUnits(t *testing.T) {
	tests := []struct {
		amount   string
		currency string
		want     int64
	}{
		{"500", "USD", 50000},
		{"19.99", "usd", 1999},
		{"0.005", "EUR", 1},
		{"1200", "JPY", 1200},
		{"1.2345", "KWD", 1235},
		{"0", "USD", 0},
	}
	for _, tt := range tests {
		t.Run(tt.amount+tt.currency, func(t *testing.T) {
			got, err := ToMinorUnits(decimal.RequireFromString(tt.amount), tt.currency)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ToMinorUnits(decimal.NewFromInt(-1), "USD")
	assert.ErrorIs(t, err, ErrNegativeAmount)
	assert.True(t, decimal.RequireFromString("19.99").Equal(FromMinorUnits(1999, "USD")))
}

func TestFields_Validate(t *testing.T) {
	valid := Fields{
		Contact:  Contact{Email: "a@b.c", FullName: "Ann"},
		Shipping: Shipping{Line1: "1 Main", City: "Town", PostalCode: "123", Country: "US"},
	}
	assert.NoError(t, valid.Validate(), "phone is optional")

	missing := valid
	missing.Contact.Email = "  "
	missing.Shipping.City = ""
	err := missing.Validate()

	var fe *FieldErrors
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, []string{"email", "city"}, fe.Missing)
	assert.Equal(t, "missing required fields: email, city", err.Error())
}

func TestCanTransitionTo(t *testing.T) {
	tests := []struct {
		from, to AttemptStatus
		want     bool
	}{
		{AttemptInitiated, AttemptProviderConfirmed, true},
		{AttemptInitiated, AttemptAbandoned, true},
		{AttemptInitiated, AttemptFailed, true},
		{AttemptInitiated, AttemptOrderCreated, false},
		{AttemptProviderConfirmed, AttemptOrderCreated, true},
		{AttemptProviderConfirmed, AttemptFailed, true},
		{AttemptProviderConfirmed, AttemptAbandoned, false},
		{AttemptOrderCreated, AttemptFailed, false},
		{AttemptAbandoned, AttemptInitiated, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CanTransitionTo(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
	assert.True(t, AttemptFailed.IsTerminal())
	assert.False(t, AttemptProviderConfirmed.IsTerminal())
}

func TestSnapshot_IsolatedFromLiveCart(t *testing.T) {
	p := cartdomain.Product{ID: "X", Name: "X", Price: decimal.NewFromInt(500)}
	live := cartdomain.Reduce(cartdomain.Cart{}, cartdomain.AddIntent{Product: p, Quantity: 1})

	snap := NewCartSnapshot(live, "USD", Fields{}, time.Now())
	live = cartdomain.Reduce(live, cartdomain.AddIntent{Product: p, Quantity: 4})
	live = cartdomain.Reduce(live, cartdomain.ClearIntent{})

	require.Len(t, snap.Items, 1)
	assert.Equal(t, 1, snap.Items[0].Quantity)
	amount, err := snap.AmountMinor()
	require.NoError(t, err)
	assert.Equal(t, int64(50000), amount)

	clone := snap.Clone()
	clone.Items[0].Quantity = 9
	assert.Equal(t, 1, snap.Items[0].Quantity)
}

func TestPaymentAttempt_Lifecycle(t *testing.T) {
	p := cartdomain.Product{ID: "X", Name: "X", Price: decimal.NewFromInt(5)}
	live := cartdomain.Reduce(cartdomain.Cart{}, cartdomain.AddIntent{Product: p, Quantity: 2})
	now := time.Now()

	a, err := NewPaymentAttempt(MethodCard, NewCartSnapshot(live, "USD", Fields{}, now), now)
	require.NoError(t, err)
	assert.Equal(t, AttemptInitiated, a.Status)
	assert.Equal(t, int64(1000), a.AmountMinor)

	token := a.Token
	a.RecordDecline(Declined{Reason: "insufficient funds", Kind: FailureProvider}, now)
	assert.Equal(t, token, a.Token)
	assert.Equal(t, 1, a.Declines)

	require.NoError(t, a.Transition(AttemptProviderConfirmed, now))
	err = a.Transition(AttemptAbandoned, now)
	assert.ErrorIs(t, err, IllegalTransitionError)
	require.NoError(t, a.Transition(AttemptOrderCreated, now))
}

func TestParseMethod(t *testing.T) {
	m, err := ParseMethod("wallet_b")
	require.NoError(t, err)
	assert.Equal(t, MethodWalletB, m)
	assert.Equal(t, "Pay with Wallet B", m.SubmitLabel())

	_, err = ParseMethod("cash")
	assert.ErrorIs(t, err, ErrUnknownMethod)
}

func TestDeclined_Error(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	d := Declined{Reason: "intent creation failed", Kind: FailureTransport, Err: cause}

	assert.ErrorIs(t, d, cause)
	assert.Equal(t, "transport: intent creation failed: dial tcp: refused", d.Error())
	assert.True(t, d.Retryable())
	assert.False(t, Declined{Kind: FailureUnavailable}.Retryable())
}

func TestReceipt_DisplayRef(t *testing.T) {
	assert.Equal(t, "O-1", Receipt{OrderID: "O-1", ConfirmationRef: "T-1"}.DisplayRef())
	assert.Equal(t, "T-1", Receipt{ConfirmationRef: "T-1", Flagged: true}.DisplayRef())
}
