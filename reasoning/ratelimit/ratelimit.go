// Package ratelimit decorates a reasoning.Client with a request-rate
// ceiling, grounded on the teacher's features/model/middleware/ratelimit.go.
package ratelimit

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/resonantlabs/negotiator/reasoning"
	"github.com/resonantlabs/negotiator/toolerrors"
)

// Client wraps a reasoning.Client, blocking each Complete call until the
// limiter admits it or ctx is cancelled first.
type Client struct {
	next    reasoning.Client
	limiter *rate.Limiter
}

// New wraps next with a token-bucket limiter allowing rps requests per
// second, with a burst of burst.
func New(next reasoning.Client, rps float64, burst int) *Client {
	if burst <= 0 {
		burst = 1
	}
	return &Client{next: next, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (c *Client) Complete(ctx context.Context, messages []reasoning.Message, tools []reasoning.ToolSpec) (reasoning.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return reasoning.Response{}, toolerrors.NewReasoningError("rate limit wait cancelled", toolerrors.Context{}, err)
	}
	return c.next.Complete(ctx, messages, tools)
}
