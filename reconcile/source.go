package reconcile

import (
	"fmt"
	"strings"
	"time"
)

// Source is the authoritative origin of a countdown. It is either an
// AbsoluteExpiry or a RelativeDuration.
type Source interface {
	source()
	String() string
}

// AbsoluteExpiry is a server-issued instant after which access ends.
type AbsoluteExpiry struct {
	At time.Time
}

func (AbsoluteExpiry) source() {}

func (s AbsoluteExpiry) String() string {
	return "absolute(" + s.At.UTC().Format(time.RFC3339) + ")"
}

// RelativeDuration is a remaining amount observed at CapturedAt.
type RelativeDuration struct {
	Remaining  time.Duration
	CapturedAt time.Time
}

func (RelativeDuration) source() {}

func (s RelativeDuration) String() string {
	return fmt.Sprintf("relative(%s@%s)", s.Remaining, s.CapturedAt.UTC().Format(time.RFC3339))
}

// Remaining computes the time left on src at now, clamped at zero. A nil
// source has nothing left.
func Remaining(src Source, now time.Time) time.Duration {
	var left time.Duration
	switch typed := src.(type) {
	case AbsoluteExpiry:
		if typed.At.IsZero() {
			return 0
		}
		left = typed.At.Sub(now)
	case RelativeDuration:
		left = typed.Remaining - now.Sub(typed.CapturedAt)
	default:
		return 0
	}
	if left < 0 {
		return 0
	}
	return left
}

// FormatRemaining renders d as "Dd HH:MM:SS", dropping the day part when
// it is zero. Negative durations render as zero.
func FormatRemaining(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	days := total / 86400
	hours := (total % 86400) / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60

	var b strings.Builder
	if days > 0 {
		fmt.Fprintf(&b, "%dd ", days)
	}
	fmt.Fprintf(&b, "%02d:%02d:%02d", hours, minutes, seconds)
	return b.String()
}
