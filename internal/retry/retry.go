// Package retry wraps remote calls in an exponential backoff policy that
// distinguishes terminal HTTP failures from transient ones.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Default policy values.
const (
	DefaultMaxRetries = 3
	DefaultBaseDelay  = time.Second
	DefaultFactor     = 2.0
)

// StatusCoder is implemented by errors that carry an HTTP status code.
type StatusCoder interface {
	StatusCode() int
}

// StatusCode extracts the HTTP status attached to err, if any.
func StatusCode(err error) (int, bool) {
	var sc StatusCoder
	if errors.As(err, &sc) {
		return sc.StatusCode(), true
	}
	return 0, false
}

// TerminalStatus reports whether err carries a status that retrying cannot fix
// (400, 401, 403).
func TerminalStatus(err error) bool {
	code, ok := StatusCode(err)
	if !ok {
		return false
	}
	switch code {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden:
		return true
	}
	return false
}

// Policy retries an operation up to MaxRetries times after the first attempt,
// sleeping BaseDelay*Factor^n before retry n. Terminal errors and context
// cancellation stop immediately.
type Policy struct {
	MaxRetries int
	BaseDelay  time.Duration
	Factor     float64

	// IsTerminal classifies errors that must not be retried.
	// Defaults to TerminalStatus.
	IsTerminal func(error) bool

	Logger *slog.Logger

	// Timer drives the sleeps between attempts; nil uses a real timer.
	Timer backoff.Timer
}

// DefaultPolicy returns a policy with 3 retries at 1s, 2s and 4s.
func DefaultPolicy(logger *slog.Logger) *Policy {
	return &Policy{
		MaxRetries: DefaultMaxRetries,
		BaseDelay:  DefaultBaseDelay,
		Factor:     DefaultFactor,
		Logger:     logger,
	}
}

func (p *Policy) logger() *slog.Logger {
	if p.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return p.Logger
}

func (p *Policy) terminal(err error) bool {
	if p.IsTerminal != nil {
		return p.IsTerminal(err)
	}
	return TerminalStatus(err)
}

// newBackOff builds a fresh, jitter-free schedule. BackOff values are
// stateful so one is built per call.
func (p *Policy) newBackOff(ctx context.Context) backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.BaseDelay
	bo.Multiplier = p.Factor
	bo.RandomizationFactor = 0
	bo.MaxElapsedTime = 0
	bo.MaxInterval = time.Duration(math.MaxInt64)
	retries := p.MaxRetries
	if retries < 0 {
		retries = 0
	}
	return backoff.WithContext(backoff.WithMaxRetries(bo, uint64(retries)), ctx)
}

// Do runs op under the policy. name identifies the operation in logs.
func (p *Policy) Do(ctx context.Context, name string, op func(ctx context.Context) error) error {
	log := p.logger()
	attempt := 0

	err := backoff.RetryNotifyWithTimer(func() error {
		attempt++
		err := op(ctx)
		if err == nil {
			return nil
		}
		if cerr := ctx.Err(); cerr != nil {
			return backoff.Permanent(fmt.Errorf("%w (last error: %w)", cerr, err))
		}
		if p.terminal(err) {
			return backoff.Permanent(err)
		}
		return err
	}, p.newBackOff(ctx), func(err error, next time.Duration) {
		log.Warn("retrying after failure",
			slog.String("op", name),
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", p.MaxRetries+1),
			slog.Duration("delay", next),
			slog.String("error", err.Error()))
	}, p.Timer)

	switch {
	case err == nil, ctx.Err() != nil:
	case p.terminal(err):
		log.Error("terminal failure, not retrying",
			slog.String("op", name),
			slog.String("error", err.Error()))
	default:
		log.Error("giving up after retries",
			slog.String("op", name),
			slog.Int("attempts", attempt),
			slog.String("error", err.Error()))
	}
	return err
}

// Value runs op under p and returns its result.
func Value[T any](ctx context.Context, p *Policy, name string, op func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := p.Do(ctx, name, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}
