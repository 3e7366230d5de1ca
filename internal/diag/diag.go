// Package diag implements the §7 error-reporting policy: every recovered
// error increments a counter rather than vanishing silently, and fatal
// causes are recorded once and abort the compile. The shape mirrors the
// teacher's plain accumulator structs (tools/forge/analysis.SongAnalysis,
// tools/forge/main.go's ASMStats) rather than an exception hierarchy.
package diag

import "fmt"

// Kind enumerates the recovered error classes from spec.md §7. Fatal
// causes are recorded separately via Summary.SetFatal rather than as a Kind,
// since a fatal cause aborts the compile instead of incrementing a
// counter.
type Kind int

const (
	InvalidTempo Kind = iota
	PitchOutOfRange
	SampleBudgetExhausted
	PatternShardTimeout
	InvalidLoopPoint
	MalformedEvent
	kindCount
)

func (k Kind) String() string {
	switch k {
	case InvalidTempo:
		return "invalid_tempo"
	case PitchOutOfRange:
		return "pitch_out_of_range"
	case SampleBudgetExhausted:
		return "sample_budget_exhausted"
	case PatternShardTimeout:
		return "pattern_shard_timeout"
	case InvalidLoopPoint:
		return "invalid_loop_point"
	case MalformedEvent:
		return "malformed_event"
	default:
		return "unknown"
	}
}

// Summary accumulates recovered-error counts for one compile and records
// the fatal cause, if any. It is written to stderr on exit by the CLI.
type Summary struct {
	counts [kindCount]int
	fatal  error
}

// NewSummary returns an empty Summary.
func NewSummary() *Summary {
	return &Summary{}
}

// Record increments the counter for kind. Call this every time a
// recovered error is swallowed — counting it is the whole point of the
// recovered/fatal split in §7.
func (s *Summary) Record(kind Kind) {
	s.counts[kind]++
}

// Count returns how many times kind was recorded.
func (s *Summary) Count(kind Kind) int {
	return s.counts[kind]
}

// SetFatal records the compile-aborting cause. Only the first call sticks;
// subsequent calls are ignored, matching "fatal = abort compile" (there is
// only ever one abort).
func (s *Summary) SetFatal(err error) {
	if s.fatal == nil {
		s.fatal = err
	}
}

// FatalErr returns the recorded fatal cause, or nil if the compile did not
// abort.
func (s *Summary) FatalErr() error {
	return s.fatal
}

// Report renders the summary in the format the CLI writes to stderr on
// exit: one line per nonzero recovered-error count, plus the fatal cause
// if present.
func (s *Summary) Report() string {
	out := ""
	for k := Kind(0); k < kindCount; k++ {
		if s.counts[k] > 0 {
			out += fmt.Sprintf("%s: %d\n", k, s.counts[k])
		}
	}
	if s.fatal != nil {
		out += fmt.Sprintf("fatal: %v\n", s.fatal)
	}
	return out
}
