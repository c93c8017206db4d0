package engine

import (
	"fmt"
	"time"
)

// Window returns an Active predicate true between the daily clock times from
// and until ("HH:MM", local time). A window whose end precedes its start spans
// midnight. Equal bounds mean always active.
func Window(from, until string) (func(time.Time) bool, error) {
	start, err := clockMinutes(from)
	if err != nil {
		return nil, fmt.Errorf("active_from: %w", err)
	}
	end, err := clockMinutes(until)
	if err != nil {
		return nil, fmt.Errorf("active_until: %w", err)
	}
	return func(now time.Time) bool {
		m := now.Hour()*60 + now.Minute()
		switch {
		case start == end:
			return true
		case start < end:
			return m >= start && m < end
		default:
			return m >= start || m < end
		}
	}, nil
}

func clockMinutes(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}
