package retry

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Retrier re-runs an operation according to a Policy
type Retrier struct {
	policy  Policy
	backoff *Backoff
	logger  *zap.Logger
}

// NewRetrier panics on an invalid policy; policies are static configuration.
func NewRetrier(policy Policy, logger *zap.Logger) *Retrier {
	if err := policy.Validate(); err != nil {
		panic(fmt.Sprintf("invalid retry policy: %v", err))
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retrier{
		policy:  policy,
		backoff: NewBackoff(policy),
		logger:  logger,
	}
}

// Do runs operation until it succeeds, returns a non-retryable error, the
// policy is exhausted or ctx ends.
func (r *Retrier) Do(ctx context.Context, operation func() error) error {
	var lastErr error
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return r.cancelled(err, lastErr)
		}

		err := operation()
		if err == nil {
			if attempt > 0 {
				r.logger.Info("Operation succeeded after retries", zap.Int("attempt", attempt))
			}
			return nil
		}
		lastErr = err

		if r.policy.RetryableFunc != nil && !r.policy.RetryableFunc(err) {
			return err
		}
		if r.policy.exhausted(attempt) {
			r.logger.Warn("Max retries exceeded", zap.Error(err), zap.Int("attempts", attempt+1))
			return fmt.Errorf("%w: %v", ErrMaxRetriesExceeded, err)
		}

		wait := r.backoff.Calculate(attempt + 1)
		r.logger.Warn("Retrying operation",
			zap.Error(err),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", wait))

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return r.cancelled(ctx.Err(), lastErr)
		case <-timer.C:
		}
	}
}

func (r *Retrier) cancelled(ctxErr, lastErr error) error {
	if lastErr != nil {
		return fmt.Errorf("%w (last error: %v)", ctxErr, lastErr)
	}
	return ctxErr
}
