package provider_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BetterLogicTeam/falcoP-shop-sub000/internal/payment/provider"
	"github.com/BetterLogicTeam/falcoP-shop-sub000/internal/payment/sandbox"
	"github.com/BetterLogicTeam/falcoP-shop-sub000/pkg/circuitbreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T, h http.Handler, threshold uint32) *provider.Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	settings := circuitbreaker.DefaultSettings("provider-test")
	settings.FailureThreshold = threshold
	settings.Timeout = time.Hour
	return provider.NewClient(srv.URL, 2*time.Second, settings, nil)
}

func TestClient_IntentConfirm(t *testing.T) {
	c := newClient(t, sandbox.NewServer(sandbox.TokenDecider{}, nil).Routes(), 5)
	ctx := context.Background()

	in, err := c.CreateIntent(ctx, provider.IntentRequest{AmountMinor: 50000, Currency: "USD", IdempotencyKey: "tok-1"})
	require.NoError(t, err)
	assert.Equal(t, int64(50000), in.AmountMinor)

	_, err = c.ConfirmIntent(ctx, in.ID, provider.ConfirmRequest{PaymentMethodToken: "tok_decline_expired_card", IdempotencyKey: "tok-1"})
	var de *provider.DeclineError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "expired_card", de.Code)

	conf, err := c.ConfirmIntent(ctx, in.ID, provider.ConfirmRequest{PaymentMethodToken: "tok_visa", IdempotencyKey: "tok-1"})
	require.NoError(t, err)
	assert.NotEmpty(t, conf.Ref)
}

func TestClient_UnknownIntent(t *testing.T) {
	c := newClient(t, sandbox.NewServer(sandbox.TokenDecider{}, nil).Routes(), 5)

	_, err := c.ConfirmIntent(context.Background(), "pi_missing", provider.ConfirmRequest{PaymentMethodToken: "tok"})
	assert.ErrorIs(t, err, provider.ErrIntentNotFound)
}

func TestClient_AvailabilityAndTransfer(t *testing.T) {
	sb := sandbox.NewServer(sandbox.TokenDecider{}, nil)
	sb.SetAvailable("wallet_a", false)
	c := newClient(t, sb.Routes(), 5)
	ctx := context.Background()

	ok, err := c.Available(ctx, "wallet_a")
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = c.Available(ctx, "card")
	require.NoError(t, err)
	assert.True(t, ok)

	tr, err := c.Transfer(ctx, provider.TransferRequest{AmountMinor: 100, Currency: "USD", Payer: "+1555", IdempotencyKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, "completed", tr.Status)
}

func TestClient_DeclinesDoNotTripBreaker(t *testing.T) {
	c := newClient(t, sandbox.NewServer(sandbox.TokenDecider{}, nil).Routes(), 1)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := c.Transfer(ctx, provider.TransferRequest{AmountMinor: 100, Currency: "USD", Payer: "decline"})
		var de *provider.DeclineError
		require.True(t, errors.As(err, &de), "attempt %d: %v", i, err)
	}
}

func TestClient_ServerErrorsTripBreaker(t *testing.T) {
	calls := 0
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	})
	c := newClient(t, h, 2)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := c.CreateIntent(ctx, provider.IntentRequest{AmountMinor: 1, Currency: "USD"})
		require.ErrorContains(t, err, "status 502")
	}
	_, err := c.CreateIntent(ctx, provider.IntentRequest{AmountMinor: 1, Currency: "USD"})
	assert.ErrorIs(t, err, circuitbreaker.ErrOpen)
	assert.Equal(t, 2, calls)
}

func TestClient_SendsIdempotencyKey(t *testing.T) {
	var got string
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Idempotency-Key")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ref":"trf_1","status":"completed"}`))
	})
	c := newClient(t, h, 5)

	_, err := c.Transfer(context.Background(), provider.TransferRequest{AmountMinor: 1, Currency: "USD", IdempotencyKey: "abc"})
	require.NoError(t, err)
	assert.Equal(t, "abc", got)
}
