package runner

import "time"

// inputState tracks the health of the cycle input feed.
type inputState struct {
	source   string
	lastSeen time.Time
	cycles   uint64
	dropped  uint64
	stale    bool
}

func (s inputState) idleFor(at time.Time) time.Duration {
	if s.lastSeen.IsZero() {
		return 0
	}
	return at.Sub(s.lastSeen)
}

func sourceOrUnknown(source string) string {
	if source != "" {
		return source
	}
	return "unknown"
}
