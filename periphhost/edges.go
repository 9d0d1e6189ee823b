package periphhost

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/soypat/nrf24/nrf24l01"
	"periph.io/x/conn/v3/gpio"
)

// edgePoll bounds each wait for an edge so cancellation is noticed.
const edgePoll = 100 * time.Millisecond

// WatchEdges configures pin for rising edge detection and calls fn with the
// clock's microsecond count on every rising edge until ctx is done. It
// returns ctx.Err(), or the error configuring pin, joined with any error
// turning edge detection back off. fn is usually the callback returned by
// ppm.Attach.
func WatchEdges(ctx context.Context, pin gpio.PinIn, clock nrf24l01.Clock, fn func(nowMicros uint32)) (err error) {
	if err := pin.In(gpio.PullNoChange, gpio.RisingEdge); err != nil {
		return fmt.Errorf("periphhost: edge detection on %s: %w", pin.Name(), err)
	}
	defer func() {
		if inErr := pin.In(gpio.PullNoChange, gpio.NoEdge); inErr != nil {
			err = errors.Join(err, fmt.Errorf("periphhost: disabling edge detection on %s: %w", pin.Name(), inErr))
		}
	}()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if pin.WaitForEdge(edgePoll) {
			fn(clock.Micros())
		}
	}
}
