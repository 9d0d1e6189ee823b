package nrf24l01

import "time"

// Clock is the time source of the driver. Millis and Micros are free running
// counters that wrap around, as on a microcontroller.
type Clock interface {
	Millis() uint32
	Micros() uint32
	Sleep(d time.Duration)
}

// SystemClock returns a Clock backed by the monotonic clock of the runtime.
// Its counters start at zero when SystemClock is called.
func SystemClock() Clock {
	return sysClock{start: time.Now()}
}

type sysClock struct {
	start time.Time
}

func (c sysClock) Millis() uint32 { return uint32(time.Since(c.start).Milliseconds()) }

func (c sysClock) Micros() uint32 { return uint32(time.Since(c.start).Microseconds()) }

func (sysClock) Sleep(d time.Duration) { time.Sleep(d) }
