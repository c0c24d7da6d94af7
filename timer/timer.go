package timer

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/senseyeio/duration"
)

// Spec is a parsed ISO-8601 recurrence: an interval with an optional
// repeat cycle (PT10M, R/PT10M, R3/PT10M).
type Spec struct {
	// Repeats is the number of occurrences remaining after the next
	// one; -1 means unbounded, 0 means single shot.
	Repeats  int
	Interval duration.Duration
}

func ParseSpec(s string) (*Spec, error) {
	if len(s) == 0 {
		return nil, fmt.Errorf("timer spec can not be empty")
	}
	repeats := 0
	durPart := s
	if strings.HasPrefix(s, "R") {
		parts := strings.SplitN(s, "/", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid timer spec %s", s)
		}
		if parts[0] == "R" {
			repeats = -1
		} else {
			n, err := strconv.Atoi(parts[0][1:])
			if err != nil || n < 0 {
				return nil, fmt.Errorf("invalid repeat count in timer spec %s", s)
			}
			repeats = n
		}
		durPart = parts[1]
	}
	d, err := duration.ParseISO8601(durPart)
	if err != nil {
		return nil, fmt.Errorf("invalid duration in timer spec %s: %w", s, err)
	}
	if d.IsZero() {
		return nil, fmt.Errorf("timer spec %s has zero duration", s)
	}
	return &Spec{Repeats: repeats, Interval: d}, nil
}

// Next computes the fire time following the reference time. It is a pure
// function of the spec and the reference and is always after it.
func (s *Spec) Next(from time.Time) (time.Time, error) {
	next := s.Interval.Shift(from)
	if !next.After(from) {
		return time.Time{}, fmt.Errorf("timer interval does not advance time")
	}
	return next, nil
}

// Rearm returns the spec covering the occurrences left after one firing,
// or false when the recurrence is exhausted.
func (s *Spec) Rearm() (*Spec, bool) {
	switch {
	case s.Repeats < 0:
		return s, true
	case s.Repeats == 0:
		return nil, false
	case s.Repeats == 1:
		return &Spec{Repeats: 0, Interval: s.Interval}, true
	default:
		return &Spec{Repeats: s.Repeats - 1, Interval: s.Interval}, true
	}
}

func (s *Spec) String() string {
	switch {
	case s.Repeats < 0:
		return fmt.Sprintf("R/%s", s.Interval.String())
	case s.Repeats == 0:
		return s.Interval.String()
	default:
		return fmt.Sprintf("R%d/%s", s.Repeats, s.Interval.String())
	}
}
