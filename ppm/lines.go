package ppm

import (
	"errors"
	"sync"
)

// MaxLines is the number of edge lines handlers can be attached to.
const MaxLines = 6

var ErrBadLine = errors.New("ppm: line out of range")

// EdgeHandler receives the edges of one line. *Decoder implements it.
type EdgeHandler interface {
	OnEdge(nowMicros uint32)
}

var lines struct {
	mu       sync.Mutex
	handlers [MaxLines]EdgeHandler
}

// Attach makes h the handler of line and returns the callback to register
// with the edge source of that line. The callback looks the handler up on
// every edge, so reattaching the line redirects it. Edges on a line with no
// handler are dropped.
func Attach(line int, h EdgeHandler) (func(nowMicros uint32), error) {
	if line < 0 || line >= MaxLines {
		return nil, ErrBadLine
	}
	lines.mu.Lock()
	lines.handlers[line] = h
	lines.mu.Unlock()
	return func(nowMicros uint32) { dispatch(line, nowMicros) }, nil
}

// Detach removes the handler of line.
func Detach(line int) error {
	if line < 0 || line >= MaxLines {
		return ErrBadLine
	}
	lines.mu.Lock()
	lines.handlers[line] = nil
	lines.mu.Unlock()
	return nil
}

func dispatch(line int, nowMicros uint32) {
	lines.mu.Lock()
	h := lines.handlers[line]
	lines.mu.Unlock()
	if h != nil {
		h.OnEdge(nowMicros)
	}
}

// EdgeFunc adapts a plain callback, such as the one returned by Attach, to
// EdgeHandler.
type EdgeFunc func(nowMicros uint32)

func (f EdgeFunc) OnEdge(nowMicros uint32) { f(nowMicros) }
