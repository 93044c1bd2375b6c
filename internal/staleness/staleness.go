// Package staleness decides whether a candidate quote's source-reported
// observation time is current enough to show as authoritative, measured
// against the exchange's trading-session clock.
package staleness

import (
	"fmt"
	"strings"
	"time"

	"fundboard/internal/provider"
)

// Rule selects how lenient the classifier is.
type Rule string

const (
	// RuleAuto accepts any same-day candidate except after the final
	// session close plus the grace period on a trading day.
	RuleAuto Rule = "auto"
	// RuleStrict accepts a same-day candidate only while the session is
	// actually open, with no grace period.
	RuleStrict Rule = "strict"
)

// Verdict is the classifier outcome for one candidate.
type Verdict string

const (
	Fresh Verdict = "fresh"
	Stale Verdict = "stale"
)

// Window is one continuous trading interval, as minutes of the local day.
// Exchanges with a lunch break have two windows.
type Window struct {
	Open  int // minutes after midnight, inclusive
	Close int // minutes after midnight, inclusive
}

// ParseWindow parses "HH:MM-HH:MM" into a Window.
func ParseWindow(s string) (Window, error) {
	open, close, ok := strings.Cut(s, "-")
	if !ok {
		return Window{}, fmt.Errorf("invalid session window %q: want HH:MM-HH:MM", s)
	}
	o, err := parseClock(open)
	if err != nil {
		return Window{}, fmt.Errorf("invalid session window %q: %w", s, err)
	}
	c, err := parseClock(close)
	if err != nil {
		return Window{}, fmt.Errorf("invalid session window %q: %w", s, err)
	}
	if c <= o {
		return Window{}, fmt.Errorf("invalid session window %q: close not after open", s)
	}
	return Window{Open: o, Close: c}, nil
}

func parseClock(s string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(strings.TrimSpace(s), "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("bad time of day %q", s)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("bad time of day %q", s)
	}
	return h*60 + m, nil
}

// Clock carries the session policy the classifier judges against.
// Classification itself is pure: the same candidate, now and rule always
// yield the same verdict.
type Clock struct {
	Location *time.Location
	Windows  []Window
	// Grace extends each window's close under RuleAuto, tolerating
	// last-tick publication delay. Default is 5 minutes; see DefaultGrace.
	Grace time.Duration
}

// DefaultGrace is the post-close grace period applied under RuleAuto when no
// override is configured. The exact length is policy, not protocol; five
// minutes comfortably covers the delay the public sources show between the
// closing tick and its publication.
const DefaultGrace = 5 * time.Minute

// Default returns the session clock for the mainland fund session in the
// given location: 09:30-11:30 and 13:00-15:00 with DefaultGrace.
func Default(loc *time.Location) Clock {
	return Clock{
		Location: loc,
		Windows: []Window{
			{Open: 9*60 + 30, Close: 11*60 + 30},
			{Open: 13 * 60, Close: 15 * 60},
		},
		Grace: DefaultGrace,
	}
}

// Classify judges one candidate against now under the given rule. The reason
// string is empty for Fresh and explains the verdict for Stale.
func (c Clock) Classify(q *provider.CandidateQuote, now time.Time, rule Rule) (Verdict, string) {
	if q.PctChange == nil {
		return Stale, "no value reported"
	}
	if q.ObservedAt.IsZero() {
		return Stale, "missing observation time"
	}

	local := now.In(c.Location)
	obs := q.ObservedAt.In(c.Location)
	if obs.Year() != local.Year() || obs.YearDay() != local.YearDay() {
		return Stale, fmt.Sprintf("reported date %s is not trading date %s",
			obs.Format("2006-01-02"), local.Format("2006-01-02"))
	}

	minute := local.Hour()*60 + local.Minute()
	switch rule {
	case RuleStrict:
		// Strict freshness only exists while the session is open.
		if !c.tradingDay(local) {
			return Stale, "no session today"
		}
		for _, w := range c.Windows {
			if minute >= w.Open && minute <= w.Close {
				return Fresh, ""
			}
		}
		return Stale, "outside trading session"
	default:
		// Auto: a same-day value stays fresh pre-open, over the lunch
		// break and on non-trading days, since nothing fresher can
		// exist. It only goes stale once the final close plus grace has
		// passed on a trading day.
		if !c.tradingDay(local) || len(c.Windows) == 0 {
			return Fresh, ""
		}
		last := c.Windows[len(c.Windows)-1]
		graceMin := int(c.Grace / time.Minute)
		if minute > last.Close+graceMin {
			return Stale, "past session close"
		}
		return Fresh, ""
	}
}

// tradingDay reports whether the local date is a session day. Weekends only;
// exchange holidays are not modeled.
func (c Clock) tradingDay(local time.Time) bool {
	wd := local.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}
