// Package ppm decodes the pulse position modulated signal an RC transmitter
// emits on its trainer port. Each rising edge ends a channel pulse; a gap
// longer than MinFrameGap marks the start of a new frame.
//
//	 ___   ___     ___   ___        ___   ___
//	|   |_|   |___|   |_|   |______|   |_|   |
//	^     ^         ^     ^        ^
//	ch0   ch1       ch2   sync gap new frame
//
// A Decoder is fed edge timestamps in microseconds from a wrapping counter,
// usually from an interrupt or a GPIO edge watcher, see Attach.
package ppm

import "sync"

const (
	// MaxChannels is the number of channels kept per frame. Extra pulses in
	// a frame are ignored.
	MaxChannels = 10
	// MinFrameGap is the shortest interval between edges, in microseconds,
	// taken as the gap between frames.
	MinFrameGap = 3000
)

// Default raw range of a channel in microseconds and the range it is mapped
// to by ChannelDefault. Measured on a Spektrum DX6i.
const (
	DefaultRawLow  = 1096
	DefaultRawHigh = 1916
	DefaultLow     = 0
	DefaultHigh    = 1023
)

// Decoder holds the latest frame of channel pulse widths. It is safe to call
// OnEdge and read channels from different goroutines.
type Decoder struct {
	mu       sync.Mutex
	channels [MaxChannels]uint16
	next     int
	last     uint32
}

// OnEdge records a rising edge seen at nowMicros.
func (d *Decoder) OnEdge(nowMicros uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	width := nowMicros - d.last
	d.last = nowMicros
	if width > MinFrameGap {
		d.next = 0
		return
	}
	if d.next < MaxChannels {
		d.channels[d.next] = uint16(width)
		d.next++
	}
}

// ChannelRaw returns the last pulse width of ch in microseconds, or 0 if ch
// is out of range.
func (d *Decoder) ChannelRaw(ch int) uint16 {
	if ch < 0 || ch >= MaxChannels {
		return 0
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.channels[ch]
}

// Channel maps the raw value of ch linearly from [fromLo, fromHi] onto
// [toLo, toHi] and clamps the result to that range.
func (d *Decoder) Channel(ch, fromLo, fromHi, toLo, toHi int) int {
	raw := int(d.ChannelRaw(ch))
	if fromHi == fromLo {
		return toLo
	}
	v := (raw-fromLo)*(toHi-toLo)/(fromHi-fromLo) + toLo
	lo, hi := toLo, toHi
	if lo > hi {
		lo, hi = hi, lo
	}
	return min(max(v, lo), hi)
}

// ChannelDefault maps ch from the default raw range onto 0..1023.
func (d *Decoder) ChannelDefault(ch int) int {
	return d.Channel(ch, DefaultRawLow, DefaultRawHigh, DefaultLow, DefaultHigh)
}
