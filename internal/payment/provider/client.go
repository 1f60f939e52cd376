package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/BetterLogicTeam/falcoP-shop-sub000/pkg/circuitbreaker"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

// Client talks to the payment provider's HTTP API. Every call goes through a
// circuit breaker; declines are answers, not failures.
type Client struct {
	baseURL string
	http    *http.Client
	breaker *circuitbreaker.Breaker
	log     *zap.Logger
}

func NewClient(baseURL string, timeout time.Duration, breaker circuitbreaker.Settings, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		baseURL: baseURL,
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		breaker: circuitbreaker.New(breaker, log, isAnswer),
		log:     log,
	}
}

func isAnswer(err error) bool {
	if err == nil {
		return true
	}
	var de *DeclineError
	return errors.As(err, &de) || errors.Is(err, ErrIntentNotFound) || errors.Is(err, context.Canceled)
}

func (c *Client) Available(ctx context.Context, method string) (bool, error) {
	var out Availability
	err := c.do(ctx, http.MethodGet, "/v1/availability/"+url.PathEscape(method), "", nil, &out)
	if err != nil {
		return false, err
	}
	return out.Available, nil
}

func (c *Client) CreateIntent(ctx context.Context, req IntentRequest) (Intent, error) {
	var out Intent
	err := c.do(ctx, http.MethodPost, "/v1/intents", req.IdempotencyKey, req, &out)
	return out, err
}

func (c *Client) ConfirmIntent(ctx context.Context, intentID string, req ConfirmRequest) (Confirmation, error) {
	var out Confirmation
	path := "/v1/intents/" + url.PathEscape(intentID) + "/confirm"
	err := c.do(ctx, http.MethodPost, path, req.IdempotencyKey, req, &out)
	return out, err
}

func (c *Client) OpenWalletPrompt(ctx context.Context, method string, req PromptRequest) (Prompt, error) {
	var out Prompt
	path := "/v1/wallets/" + url.PathEscape(method) + "/prompts"
	err := c.do(ctx, http.MethodPost, path, req.IdempotencyKey, req, &out)
	return out, err
}

func (c *Client) Transfer(ctx context.Context, req TransferRequest) (Transfer, error) {
	var out Transfer
	err := c.do(ctx, http.MethodPost, "/v1/transfers", req.IdempotencyKey, req, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path, idempotencyKey string, body, out any) error {
	_, err := circuitbreaker.Execute(c.breaker, func() (struct{}, error) {
		return struct{}{}, c.roundTrip(ctx, method, path, idempotencyKey, body, out)
	})
	if errors.Is(err, circuitbreaker.ErrOpen) {
		c.log.Warn("provider call rejected by breaker", zap.String("path", path))
	}
	return err
}

func (c *Client) roundTrip(ctx context.Context, method, path, idempotencyKey string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("provider %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read provider response: %w", err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if out == nil {
			return nil
		}
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode provider response: %w", err)
		}
		return nil
	case resp.StatusCode == http.StatusPaymentRequired:
		var eb errorBody
		_ = json.Unmarshal(data, &eb)
		return &DeclineError{Code: eb.Code, Message: eb.Message}
	case resp.StatusCode == http.StatusNotFound && strings.HasPrefix(path, "/v1/intents/"):
		return ErrIntentNotFound
	default:
		var eb errorBody
		_ = json.Unmarshal(data, &eb)
		return fmt.Errorf("provider %s %s: status %d: %s", method, path, resp.StatusCode, eb.Error)
	}
}
