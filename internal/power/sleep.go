package power

import (
	"context"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
)

// edgeTolerance separates an early wake from a timer wake that merely
// returned a little before the full duration.
const edgeTolerance = time.Second

// WakeReason reports what ended a sleep.
type WakeReason int

const (
	WakeTimer WakeReason = iota
	WakeEdge
	WakeCancelled
	WakeSkipped
)

func (r WakeReason) String() string {
	switch r {
	case WakeTimer:
		return "timer"
	case WakeEdge:
		return "edge"
	case WakeCancelled:
		return "cancelled"
	case WakeSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Sleeper enters low-power sleep for at most d, or until the external
// edge trigger fires.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) (WakeReason, error)
}

// TimerSleeper stays resident and waits for the timer, an edge on Edge,
// or ctx. A nil Edge disables the edge trigger.
type TimerSleeper struct {
	Clock clockwork.Clock
	Edge  <-chan struct{}
}

// Sleep implements Sleeper. It never fails.
func (t TimerSleeper) Sleep(ctx context.Context, d time.Duration) (WakeReason, error) {
	clock := t.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return waitOrCancel(ctx, clock, d, t.Edge), nil
}

func waitOrCancel(ctx context.Context, clock clockwork.Clock, d time.Duration, edge <-chan struct{}) WakeReason {
	timer := clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.Chan():
		return WakeTimer
	case <-edge:
		return WakeEdge
	case <-ctx.Done():
		return WakeCancelled
	}
}

// NoSleep returns at once. It is used when a single cycle is run by hand.
type NoSleep struct{}

// Sleep implements Sleeper.
func (NoSleep) Sleep(context.Context, time.Duration) (WakeReason, error) {
	return WakeSkipped, nil
}

type runFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRun(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// RTCWake suspends the host with rtcwake(8). The RTC alarm is the timer
// wake source; the edge trigger is any kernel wakeup source, such as a
// gpio-keys line, which cuts the suspend short.
type RTCWake struct {
	binary string
	mode   string
	clock  clockwork.Clock
	run    runFunc
}

// NewRTCWake creates an RTCWake sleeper. mode is passed to rtcwake -m.
func NewRTCWake(binary, mode string, clock clockwork.Clock) *RTCWake {
	return &RTCWake{
		binary: binary,
		mode:   mode,
		clock:  clock,
		run:    execRun,
	}
}

// Sleep implements Sleeper. rtcwake returns after resume; an early resume
// is reported as WakeEdge.
func (r *RTCWake) Sleep(ctx context.Context, d time.Duration) (WakeReason, error) {
	secs := int64(math.Ceil(d.Seconds()))
	if secs < 1 {
		secs = 1
	}

	// Wall clock: the monotonic clock stops while suspended
	start := r.clock.Now().Round(0)
	out, err := r.run(ctx, r.binary, "-m", r.mode, "-s", strconv.FormatInt(secs, 10))
	if ctx.Err() != nil {
		return WakeCancelled, nil
	}
	if err != nil {
		return WakeTimer, fmt.Errorf("%w: rtcwake: %s: %w", ErrSleep, strings.TrimSpace(string(out)), err)
	}

	if r.clock.Now().Round(0).Sub(start) < d-edgeTolerance {
		return WakeEdge, nil
	}
	return WakeTimer, nil
}
