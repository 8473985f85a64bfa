package inference

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/kompox/sandboxops/internal/logging"
)

// WaitInput bounds the polling done by Wait.
type WaitInput struct {
	MaxAttempts int           `json:"maxAttempts"`
	Interval    time.Duration `json:"interval"`
	// OnStatus is called after every poll.
	OnStatus func(*StatusOutput) `json:"-"`
}

// WaitOutput is the final status and how many polls it took.
type WaitOutput struct {
	Status   *StatusOutput `json:"status"`
	Attempts int           `json:"attempts"`
}

var errNotReady = errors.New("model not ready")

// Wait polls Status at a constant interval until it reports ok or the
// attempts run out.
func (u *UseCase) Wait(ctx context.Context, in *WaitInput) (*WaitOutput, error) {
	if in == nil || in.MaxAttempts <= 0 || in.Interval <= 0 {
		return nil, fmt.Errorf("wait needs positive attempts and interval")
	}
	logger := logging.FromContext(ctx)
	out := &WaitOutput{}

	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(in.Interval), uint64(in.MaxAttempts-1)), ctx)
	op := func() error {
		out.Attempts++
		u.cache.invalidate()
		st, err := u.Status(ctx)
		if err != nil {
			return backoff.Permanent(err)
		}
		out.Status = st
		if in.OnStatus != nil {
			in.OnStatus(st)
		}
		if st.Status != StatusOK {
			logger.Debug(ctx, "model not ready", "attempt", out.Attempts, "status", st.Status)
			return errNotReady
		}
		return nil
	}
	if err := backoff.Retry(op, b); err != nil {
		if errors.Is(err, errNotReady) {
			last := "unknown"
			if out.Status != nil {
				last = out.Status.Status
			}
			return out, fmt.Errorf("model %s not ready after %d attempts (last status %s)", u.Options.Model, out.Attempts, last)
		}
		return out, err
	}
	return out, nil
}
