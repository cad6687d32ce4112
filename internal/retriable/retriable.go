package retriable

import (
	"context"
	"errors"
	"math"
	"time"
)

// Result is the outcome of one run of a Retriable.
type Result int

const (
	// Success means the step completed; the pipeline moves on to the next step.
	Success Result = iota
	// Retry means the step failed in a way that may resolve itself; it is run again after a backoff
	// delay, unless its retry budget is exhausted.
	Retry
	// Cancel means the step failed permanently; the rest of the chain is skipped.
	Cancel
	// Invalidate means the work done so far is no longer valid; after the invalidating step's
	// backoff delay the chain restarts from its first step with fresh retry budgets. After
	// MaxRestarts restarts the operation ends with ErrRetriesExhausted.
	Invalidate
)

// MaxRestarts is how many times one operation may be restarted by Invalidate.
const MaxRestarts = 5

func (r Result) String() string {
	switch r {
	case Success:
		return "success"
	case Retry:
		return "retry"
	case Cancel:
		return "cancel"
	case Invalidate:
		return "invalidate"
	default:
		return "unknown"
	}
}

// UnlimitedRetries can be used as Retriable.MaxRetries to retry until the operation is cancelled.
const UnlimitedRetries = -1

var (
	// ErrCancelled is the error of an Operation that was cancelled before it completed.
	ErrCancelled = errors.New("operation was cancelled")
	// ErrRetriesExhausted is the error of an Operation whose step kept asking for a retry beyond its
	// retry budget.
	ErrRetriesExhausted = errors.New("retries exhausted")
	// ErrRejected is the error of an Operation whose step returned Cancel.
	ErrRejected = errors.New("operation was rejected")
)

// DefaultBackoff is used by any Retriable whose Backoff is the zero value.
var DefaultBackoff = Backoff{Initial: 30 * time.Second, Max: 120 * time.Second, Multiplier: 2}

// Backoff describes an exponential, capped delay between retries.
type Backoff struct {
	// Initial is the delay before the first retry.
	Initial time.Duration
	// Max caps the delay. Zero means no cap.
	Max time.Duration
	// Multiplier is applied to the delay after each retry. Values below 1 are treated as 1.
	Multiplier float64
}

// Delay returns the wait before the given retry, counting from zero.
func (b Backoff) Delay(retry int) time.Duration {
	if b.Initial <= 0 {
		return 0
	}
	multiplier := b.Multiplier
	if multiplier < 1 {
		multiplier = 1
	}
	d := float64(b.Initial) * math.Pow(multiplier, float64(retry))
	if b.Max > 0 && d > float64(b.Max) {
		return b.Max
	}
	if d > math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(d)
}

// Retriable is a single unit of retryable work.
type Retriable struct {
	// Name is used in log messages.
	Name string
	// Run performs the work. The context is cancelled if the operation is cancelled; Run should
	// return promptly when that happens, and its result is then ignored.
	Run func(ctx context.Context) Result
	// MaxRetries is the number of times Run may be called again after returning Retry. Zero means no
	// retries; UnlimitedRetries means retry until cancelled.
	MaxRetries int
	// Backoff controls the delay between retries. The zero value selects DefaultBackoff.
	Backoff Backoff
}

func (r Retriable) backoff() Backoff {
	if r.Backoff == (Backoff{}) {
		return DefaultBackoff
	}
	return r.Backoff
}
