package nrf24l01

import "errors"

var (
	// ErrHardwareUnresponsive is returned by Init when the chip does not hold
	// the values written to it, usually a wiring or power problem.
	ErrHardwareUnresponsive = errors.New("nrf24l01 not responding")
	// ErrTransmitFailed means the retry budget was exhausted without an
	// acknowledgment. The TX FIFO has been flushed.
	ErrTransmitFailed = errors.New("nrf24l01: no acknowledgment after max retries")
	// ErrCorruptReceive is logged when the RX FIFO reports a payload wider
	// than 32 bytes. The RX FIFO is flushed and nothing is reported available.
	ErrCorruptReceive  = errors.New("nrf24l01: corrupt RX payload width")
	ErrTimeout         = errors.New("nrf24l01: timeout")
	ErrNotTransmitting = errors.New("nrf24l01: not in transmit mode")
	ErrPayloadTooLong  = errors.New("nrf24l01: payload exceeds 32 bytes")
	ErrBadArgument     = errors.New("nrf24l01: bad argument")
	ErrModeMismatch    = errors.New("nrf24l01: CONFIG register disagrees with driver mode")
	ErrClosed          = errors.New("nrf24l01: device closed")
	ErrShortBuffer     = errors.New("nrf24l01: buffer too short for payload")
	ErrTxFull          = errors.New("nrf24l01: TX FIFO full")
)

// ErrorKind classifies driver errors so callers can tell a dead link from a
// transient failure from nothing having happened yet.
type ErrorKind uint8

const (
	KindNone ErrorKind = iota
	KindHardwareUnresponsive
	KindTransmitFailed
	KindCorruptReceive
	KindTimeout
	KindOther
)

// Kind returns the classification of err. A nil error is KindNone.
func Kind(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrHardwareUnresponsive):
		return KindHardwareUnresponsive
	case errors.Is(err, ErrTransmitFailed):
		return KindTransmitFailed
	case errors.Is(err, ErrCorruptReceive):
		return KindCorruptReceive
	case errors.Is(err, ErrTimeout):
		return KindTimeout
	}
	return KindOther
}

func (k ErrorKind) String() (s string) {
	switch k {
	case KindNone:
		s = "none"
	case KindHardwareUnresponsive:
		s = "hardware-unresponsive"
	case KindTransmitFailed:
		s = "transmit-failed"
	case KindCorruptReceive:
		s = "corrupt-receive"
	case KindTimeout:
		s = "timeout"
	default:
		s = "other"
	}
	return s
}
