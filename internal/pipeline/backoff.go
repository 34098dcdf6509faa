package pipeline

import (
	"time"

	"github.com/couchcryptid/weather-forecast-etl/internal/domain"
)

// Phase is the state of one city's summary generation.
type Phase int

const (
	// Attempting means the next call to the generator is attempt State.Attempt.
	Attempting Phase = iota
	// Succeeded means text was produced.
	Succeeded
	// Exhausted means every attempt was rate limited.
	Exhausted
	// Failed means the generator returned a non-rate-limit error.
	Failed
)

func (p Phase) String() string {
	switch p {
	case Attempting:
		return "attempting"
	case Succeeded:
		return "succeeded"
	case Exhausted:
		return "exhausted"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome classifies a single generator call.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeRateLimited
	OutcomeError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeRateLimited:
		return "rate_limited"
	default:
		return "error"
	}
}

// OutcomeOf maps a generator error to an Outcome.
func OutcomeOf(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeSuccess
	case domain.IsRateLimited(err):
		return OutcomeRateLimited
	default:
		return OutcomeError
	}
}

// State is a position in the retry state machine. Attempt is 1-indexed.
type State struct {
	Phase   Phase
	Attempt int
}

// Start is the initial state.
func Start() State { return State{Phase: Attempting, Attempt: 1} }

// Terminal reports whether no further attempt follows.
func (s State) Terminal() bool { return s.Phase != Attempting }

// Step is a transition: wait for Wait, then continue in Next.
type Step struct {
	Next State
	Wait time.Duration
}

// BackoffPolicy parameterizes the summary retry schedule.
type BackoffPolicy struct {
	BaseDelay   time.Duration
	MaxAttempts int
	// Throttle is the pause after a success before the next city.
	Throttle time.Duration
}

// DefaultBackoff waits 10s, 20s and 40s before the second, third and fourth
// attempts and 1s after a success.
var DefaultBackoff = BackoffPolicy{BaseDelay: 5 * time.Second, MaxAttempts: 4, Throttle: time.Second}

// Delay is the wait before attempt n: BaseDelay * 2^(n-1). The first attempt
// does not wait.
func (p BackoffPolicy) Delay(attempt int) time.Duration {
	if attempt <= 1 {
		return 0
	}
	return p.BaseDelay << (attempt - 1)
}

// Next returns the transition out of s given the outcome of the attempt made
// in s. It has no side effects; the caller performs the wait.
//
//	success                 -> Succeeded, wait Throttle
//	error                   -> Failed, no wait
//	rate limited, n < max   -> Attempting(n+1), wait Delay(n+1)
//	rate limited, n == max  -> Exhausted, no wait
func (p BackoffPolicy) Next(s State, o Outcome) Step {
	if s.Terminal() {
		return Step{Next: s}
	}
	switch o {
	case OutcomeSuccess:
		return Step{Next: State{Phase: Succeeded, Attempt: s.Attempt}, Wait: p.Throttle}
	case OutcomeRateLimited:
		if s.Attempt >= p.MaxAttempts {
			return Step{Next: State{Phase: Exhausted, Attempt: s.Attempt}}
		}
		return Step{Next: State{Phase: Attempting, Attempt: s.Attempt + 1}, Wait: p.Delay(s.Attempt + 1)}
	default:
		return Step{Next: State{Phase: Failed, Attempt: s.Attempt}}
	}
}
