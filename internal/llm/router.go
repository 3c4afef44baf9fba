package llm

import (
	"fmt"
	"context"
	"strings"
	"time"

	"github.com/xfeed/xfeed/internal/apperr"
)

// Router walks an ordered provider chain, retrying each provider once on
// a transient failure and skipping immediately to the next on a permanent
// one. It never recovers from panics or uses errors as control flow — the
// chain walk is a plain loop over Result.Kind.
type Router struct {
	providers  []Provider
	retryDelay time.Duration
}

// NewRouter constructs a Router over providers, tried in order.
func NewRouter(providers ...Provider) *Router {
	return &Router{providers: providers, retryDelay: 500 * time.Millisecond}
}

// Complete tries each provider in order. On success it returns
// immediately. If every provider fails, it returns ErrAllProvidersFailed
// wrapping a message naming each provider's final error.
func (r *Router) Complete(ctx context.Context, prompt Prompt) (Response, error) {
	var failures []string

	for _, p := range r.providers {
		result := p.Complete(ctx, prompt)

		switch result.Kind {
		case ResultOK:
			return result.Response, nil
		case ResultTransient:
			select {
			case <-time.After(r.retryDelay):
			case <-ctx.Done():
				return Response{}, ctx.Err()
			}
			retry := p.Complete(ctx, prompt)
			if retry.Kind == ResultOK {
				return retry.Response, nil
			}
			failures = append(failures, fmt.Sprintf("%s: %v", p.Name(), retry.Err))
		case ResultPermanent:
			failures = append(failures, fmt.Sprintf("%s: %v", p.Name(), result.Err))
		}
	}

	return Response{}, fmt.Errorf("providers exhausted [%s]: %w", strings.Join(failures, "; "), apperr.ErrAllProvidersFailed)
}
