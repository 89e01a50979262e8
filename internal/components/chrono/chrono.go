package chrono

import (
	"context"
	"time"
)

var jerusalem *time.Location

func init() {
	var err error
	jerusalem, err = time.LoadLocation("Asia/Jerusalem")
	if err != nil {
		panic(err)
	}
}

// Jerusalem returns a [*time.Location] for Asia/Jerusalem, the timezone the
// portals render their dates in.
func Jerusalem() *time.Location {
	return jerusalem
}

// TimeAPI is the interface that anything depending on the system clock should use.
type TimeAPI interface {
	// Now returns the current time in Asia/Jerusalem.
	Now() time.Time
}

// StandardTime is the standard implementation of TimeAPI using the standard library.
type StandardTime struct{}

// NewStandardTime is the constructor of StandardTime.
func NewStandardTime() StandardTime {
	return StandardTime{}
}

func (StandardTime) Now() time.Time {
	return time.Now().In(jerusalem)
}

// FixedTime is a TimeAPI that always returns the same instant.
type FixedTime time.Time

func (f FixedTime) Now() time.Time {
	return time.Time(f)
}

// Sleep waits for d or until ctx is done, whichever is first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
