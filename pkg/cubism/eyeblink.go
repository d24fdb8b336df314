package cubism

import (
	"math/rand/v2"
	"time"

	"github.com/teslashibe/go-cubism/pkg/core"
)

type blinkPhase int

const (
	blinkOpen blinkPhase = iota
	blinkClosing
	blinkClosed
	blinkOpening
)

// EyeBlink closes and reopens the eyes at random intervals.
type EyeBlink struct {
	ids []string
	rng *rand.Rand

	// Interval is the mean time between blinks.
	Interval time.Duration
	Closing  time.Duration
	Closed   time.Duration
	Opening  time.Duration

	phase   blinkPhase
	elapsed time.Duration
	wait    time.Duration
}

// NewEyeBlink drives the given eye-open parameters.
func NewEyeBlink(ids []string, rng *rand.Rand) *EyeBlink {
	e := &EyeBlink{
		ids:      ids,
		rng:      rng,
		Interval: 4 * time.Second,
		Closing:  100 * time.Millisecond,
		Closed:   50 * time.Millisecond,
		Opening:  150 * time.Millisecond,
	}
	e.wait = e.nextWait()
	return e
}

func (e *EyeBlink) nextWait() time.Duration {
	return time.Duration(e.rng.Float64() * float64(2*e.Interval-time.Millisecond))
}

// Value returns the current eye-open value in [0, 1].
func (e *EyeBlink) Value() float64 {
	switch e.phase {
	case blinkClosing:
		return 1 - progress(e.elapsed, e.Closing)
	case blinkClosed:
		return 0
	case blinkOpening:
		return progress(e.elapsed, e.Opening)
	default:
		return 1
	}
}

func progress(elapsed, total time.Duration) float64 {
	if total <= 0 {
		return 1
	}
	return min(1, float64(elapsed)/float64(total))
}

// Update advances the blink by dt and writes the eye-open parameters.
func (e *EyeBlink) Update(model core.Model, dt time.Duration) {
	e.elapsed += dt
	// Bounded so zero-length phases cannot spin.
	for i := 0; i < 8; i++ {
		var limit time.Duration
		switch e.phase {
		case blinkOpen:
			limit = e.wait
		case blinkClosing:
			limit = e.Closing
		case blinkClosed:
			limit = e.Closed
		case blinkOpening:
			limit = e.Opening
		}
		if e.elapsed < limit {
			break
		}
		e.elapsed -= limit
		e.phase = (e.phase + 1) % 4
		if e.phase == blinkOpen {
			e.wait = e.nextWait()
		}
	}

	v := e.Value()
	for _, id := range e.ids {
		if idx := model.ParameterIndex(id); idx >= 0 {
			model.SetParameterValue(idx, v, 1)
		}
	}
}
