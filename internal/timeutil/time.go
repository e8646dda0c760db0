package timeutil

import (
	"encoding/json"
	"strconv"
	"time"
)

// Clock lets callers control time in tests.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the system clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Time is an epoch timestamp with a second resolution. It's encoded as the
// number of seconds since the unix epoch, 0 for the zero value.
type Time time.Time

// Unix returns t for an epoch in seconds, the zero Time for 0.
func Unix(sec int64) Time {
	if sec == 0 {
		return Time{}
	}
	return Time(time.Unix(sec, 0))
}

func (t *Time) UnmarshalJSON(b []byte) error {
	s := string(b)
	if s == "null" || s == "{}" {
		return nil
	}
	if s[0] == '"' {
		tt, err := time.Parse(`"`+time.RFC3339+`"`, s)
		if err != nil {
			return err
		}
		*t = Time(tt)
	} else {
		i, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return err
		}
		*t = Unix(i)
	}
	return nil
}

func (t Time) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Unix())
}

// Unix returns the number of seconds since the unix epoch, 0 for the zero Time.
func (t Time) Unix() int64 {
	if time.Time(t).IsZero() {
		return 0
	}
	return time.Time(t).Unix()
}

// Equal reports whether t and u are the same instant.
func (t Time) Equal(u Time) bool {
	return time.Time(t).Equal(time.Time(u))
}
