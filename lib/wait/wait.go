package wait

import (
	"context"
	"errors"
	"fmt"
	"github.com/lni/dragonboat/v4/logger"
	"time"
)

var Logger = logger.GetLogger("wait")

const (
	// DefaultWaitTime is the deadline budget of DefaultSpec
	DefaultWaitTime = 3 * time.Second
	// DefaultIntervalTime is the sleep between attempts of DefaultSpec
	DefaultIntervalTime = 500 * time.Millisecond
)

// ErrOperationTimedOut is returned by Until when the deadline elapsed and RaiseOnTimeout is set
var ErrOperationTimedOut = errors.New("operation timed out")

// --------------------------------------------------------------------------
// Spec
// --------------------------------------------------------------------------

// Spec describes a single wait: the deadline budget, the sleep between attempts
// and whether a timeout is reported as ErrOperationTimedOut.
type Spec struct {
	WaitTime       time.Duration
	IntervalTime   time.Duration
	RaiseOnTimeout bool
}

// DefaultSpec returns a spec with a 3s wait time, 0.5s interval and no raise on timeout
func DefaultSpec() Spec {
	return Spec{
		WaitTime:     DefaultWaitTime,
		IntervalTime: DefaultIntervalTime,
	}
}

// WithWaitTime returns a copy of the spec with a different wait time
func (s Spec) WithWaitTime(d time.Duration) Spec {
	s.WaitTime = d
	return s
}

// WithRaise returns a copy of the spec that reports a timeout as an error
func (s Spec) WithRaise() Spec {
	s.RaiseOnTimeout = true
	return s
}

func (s Spec) String() string {
	return fmt.Sprintf("wait=%s interval=%s raise=%t", s.WaitTime, s.IntervalTime, s.RaiseOnTimeout)
}

// --------------------------------------------------------------------------
// Predicates
// --------------------------------------------------------------------------

// Predicate reports whether a result means "not yet", i.e. the attempt must be repeated
type Predicate[T any] func(result T) bool

// Equal treats the given sentinel value as pending
func Equal[T comparable](sentinel T) Predicate[T] {
	return func(result T) bool {
		return result == sentinel
	}
}

// OneOf treats every given sentinel value as pending
func OneOf[T comparable](sentinels ...T) Predicate[T] {
	return func(result T) bool {
		for _, s := range sentinels {
			if result == s {
				return true
			}
		}
		return false
	}
}

// Never accepts every result, the attempt is made at most once
func Never[T any]() Predicate[T] {
	return func(T) bool {
		return false
	}
}

// --------------------------------------------------------------------------
// Combinator
// --------------------------------------------------------------------------

// Until calls attempt until it returns a result that is not pending or the wait
// time elapsed. It returns the accepted result and true, or the zero value and
// false on timeout (ErrOperationTimedOut if spec.RaiseOnTimeout is set).
// Errors returned by attempt end the wait immediately and are returned unchanged.
func Until[T any](ctx context.Context, spec Spec, pending Predicate[T], attempt func() (T, error)) (T, bool, error) {
	var zero T

	interval := spec.IntervalTime
	if interval <= 0 {
		interval = DefaultIntervalTime
	}

	start := time.Now()
	deadline := start.Add(spec.WaitTime)
	attempts := 0

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		if err := ctx.Err(); err != nil {
			record(start, attempts, failed)
			return zero, false, err
		}
		if !time.Now().Before(deadline) {
			break
		}

		attempts++
		result, err := attempt()
		if err != nil {
			record(start, attempts, failed)
			return zero, false, err
		}
		if pending == nil || !pending(result) {
			record(start, attempts, succeeded)
			return result, true, nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			continue
		}
		sleep := min(interval, remaining)

		if timer == nil {
			timer = time.NewTimer(sleep)
		} else {
			timer.Reset(sleep)
		}
		select {
		case <-ctx.Done():
			record(start, attempts, failed)
			return zero, false, ctx.Err()
		case <-timer.C:
		}
	}

	record(start, attempts, timedOut)
	Logger.Debugf("wait timed out after %s (%d attempts, %s)", time.Since(start).Round(time.Millisecond), attempts, spec)
	if spec.RaiseOnTimeout {
		return zero, false, fmt.Errorf("%w after %s (%d attempts)", ErrOperationTimedOut, spec.WaitTime, attempts)
	}
	return zero, false, nil
}
