package mandel

import (
	"errors"
	"fmt"
)

var (
	// ErrOutOfBounds matches any *OutOfBoundsError.
	ErrOutOfBounds = errors.New("mandel: coordinate out of bounds")

	// ErrCancelled matches any *CancelledError.
	ErrCancelled = errors.New("mandel: render generation superseded")

	ErrInvalidViewport = errors.New("mandel: invalid viewport")
	ErrInvalidTiers    = errors.New("mandel: invalid tier table")
)

// OutOfBoundsError reports a pixel coordinate outside the viewport.
// It signals a programming error; production call sites clamp first (see ClampPixel).
type OutOfBoundsError struct {
	X, Y          float64
	Width, Height int
}

func (e *OutOfBoundsError) Error() string {
	return fmt.Sprintf("mandel: pixel (%g, %g) outside %dx%d viewport", e.X, e.Y, e.Width, e.Height)
}

func (e *OutOfBoundsError) Is(target error) bool {
	return target == ErrOutOfBounds
}

// CancelledError reports work discarded because a newer generation was issued.
type CancelledError struct {
	Generation uint64 // generation of the discarded work
	Current    uint64 // generation current when it was discarded
}

func (e *CancelledError) Error() string {
	return fmt.Sprintf("mandel: generation %d superseded by %d", e.Generation, e.Current)
}

func (e *CancelledError) Is(target error) bool {
	return target == ErrCancelled
}
