package geo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/carepoint/booking-engine/generic"
)

// DefaultLocateTimeout bounds a single location request.
const DefaultLocateTimeout = 10 * time.Second

// Locator produces a single live location reading. Implementations must
// return when ctx is done.
type Locator interface {
	Locate(ctx context.Context) (Coordinate, error)
}

// LocatorFunc adapts a function to Locator.
type LocatorFunc func(ctx context.Context) (Coordinate, error)

func (f LocatorFunc) Locate(ctx context.Context) (Coordinate, error) { return f(ctx) }

// StaticLocator returns a reading the caller already has, e.g. one posted by
// the worker's device. A nil reading means the device had none.
type StaticLocator struct {
	Reading *Coordinate
}

func (s StaticLocator) Locate(ctx context.Context) (Coordinate, error) {
	if err := ctx.Err(); err != nil {
		return Coordinate{}, err
	}
	if s.Reading == nil {
		return Coordinate{}, generic.ErrLocationUnavailable
	}
	return *s.Reading, nil
}

// Locate asks loc for a reading, giving up after timeout (DefaultLocateTimeout
// if zero). Every failure, including cancellation, is reported as
// ErrLocationUnavailable so callers block the check-in.
func Locate(ctx context.Context, loc Locator, timeout time.Duration) (Coordinate, error) {
	if timeout <= 0 {
		timeout = DefaultLocateTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type reading struct {
		c   Coordinate
		err error
	}
	done := make(chan reading, 1)
	go func() {
		c, err := loc.Locate(ctx)
		done <- reading{c: c, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return Coordinate{}, wrapLocationErr(r.err)
		}
		return r.c, nil
	case <-ctx.Done():
		return Coordinate{}, wrapLocationErr(ctx.Err())
	}
}

func wrapLocationErr(err error) error {
	if errors.Is(err, generic.ErrLocationUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", generic.ErrLocationUnavailable, err)
}

// CheckIn obtains a reading from loc and checks it against target. If no
// reading arrives the check-in is blocked with ErrLocationUnavailable.
func (v *Verifier) CheckIn(ctx context.Context, loc Locator, target Coordinate, transport bool) (CheckInResult, error) {
	reading, err := Locate(ctx, loc, v.locateTimeout)
	if err != nil {
		v.logger.Warn().Err(err).Msg("check-in blocked: no location reading")
		return CheckInResult{}, err
	}
	return v.IsWithinCheckInProximity(reading.Lat, reading.Lng, target.Lat, target.Lng, CheckInThreshold(transport)), nil
}
