// Package nrfsim simulates nRF24L01+ chips at the register level. Chips
// created from the same Ether hear each other when their channel, data rate,
// CRC and address settings agree. A Chip implements the SPI bus contract of
// the driver and exposes its CS and CE lines as pin functions.
//
// Air time is not simulated: a packet is delivered, acknowledged or given up
// on within the bus transaction or CE edge that starts it.
package nrfsim

import (
	"bytes"
	"errors"
	"sync"
)

const (
	maxPayload = 32
	fifoDepth  = 3
	numRegs    = 0x20
	addrLen    = 5
)

// Ether is the shared medium of a set of chips. It serializes all access to
// the chips attached to it so each chip may be driven from its own goroutine.
type Ether struct {
	mu    sync.Mutex
	chips []*Chip
}

// NewEther returns an empty ether.
func NewEther() *Ether { return &Ether{} }

// NewChip attaches a new chip in its power-on reset state to the ether.
func (e *Ether) NewChip() *Chip {
	e.mu.Lock()
	defer e.mu.Unlock()
	c := &Chip{ether: e, forcedWidth: -1}
	c.reset()
	e.chips = append(e.chips, c)
	return c
}

type packet struct {
	pipe  uint8
	data  []byte
	noAck bool
}

// Chip is a simulated nRF24L01+.
type Chip struct {
	ether *Ether

	regs [numRegs]byte
	// Full width address registers.
	rxAddrP0, rxAddrP1, txAddr [addrLen]byte

	tx, rx  []packet
	ackPay  [6][]packet
	reuse   bool
	plos    uint8
	arcCnt  uint8
	carrier bool

	csDriven, csHigh bool
	ce               bool

	jammed       bool
	disconnected bool
	forcedWidth  int
	transactions int
}

var errBadTransaction = errors.New("nrfsim: empty transaction")

func (c *Chip) reset() {
	c.regs = [numRegs]byte{}
	c.regs[0x00] = 0x08
	c.regs[0x01] = 0x3f
	c.regs[0x02] = 0x03
	c.regs[0x03] = 0x03
	c.regs[0x04] = 0x03
	c.regs[0x05] = 0x02
	c.regs[0x06] = 0x0e
	c.regs[0x0c] = 0xc3
	c.regs[0x0d] = 0xc4
	c.regs[0x0e] = 0xc5
	c.regs[0x0f] = 0xc6
	c.rxAddrP0 = [addrLen]byte{0xe7, 0xe7, 0xe7, 0xe7, 0xe7}
	c.rxAddrP1 = [addrLen]byte{0xc2, 0xc2, 0xc2, 0xc2, 0xc2}
	c.txAddr = c.rxAddrP0
	c.tx, c.rx = nil, nil
}

// CS drives the active low chip select line. While the line is driven high
// the chip ignores the bus. A chip whose CS is never driven behaves as if
// the bus asserted it for every transaction.
func (c *Chip) CS(level bool) {
	c.ether.mu.Lock()
	defer c.ether.mu.Unlock()
	c.csDriven = true
	c.csHigh = level
}

// CE drives the chip enable line. A rising edge in transmit mode starts
// sending the TX FIFO.
func (c *Chip) CE(level bool) {
	c.ether.mu.Lock()
	defer c.ether.mu.Unlock()
	rising := level && !c.ce
	c.ce = level
	if rising {
		c.service()
	}
}

// Transfer performs a single byte transaction and returns STATUS.
func (c *Chip) Transfer(w byte) (byte, error) {
	var r [1]byte
	err := c.Tx([]byte{w}, r[:])
	return r[0], err
}

// Tx performs one transaction: w[0] is the command and the rest its data.
func (c *Chip) Tx(w, r []byte) error {
	if len(w) == 0 {
		return errBadTransaction
	}
	if r == nil {
		r = make([]byte, len(w))
	}
	c.ether.mu.Lock()
	defer c.ether.mu.Unlock()
	for i := range r {
		r[i] = 0
	}
	if c.disconnected || (c.csDriven && c.csHigh) {
		return nil
	}
	c.transactions++
	r[0] = c.status()
	c.command(w[0], w[1:], r[1:])
	return nil
}

func (c *Chip) command(cmd byte, w, r []byte) {
	switch {
	case cmd&0xe0 == 0x00: // R_REGISTER
		c.readReg(cmd&0x1f, r)
	case cmd&0xe0 == 0x20: // W_REGISTER
		c.writeReg(cmd&0x1f, w)
	case cmd == 0x61: // R_RX_PAYLOAD
		if len(c.rx) == 0 {
			return
		}
		copy(r, c.rx[0].data)
		c.rx = c.rx[1:]
	case cmd == 0xa0, cmd == 0xb0: // W_TX_PAYLOAD, W_TX_PAYLOAD_NOACK
		noAck := cmd == 0xb0
		if noAck && c.regs[0x1d]&0x01 == 0 {
			return
		}
		if len(c.tx) >= fifoDepth || len(w) > maxPayload {
			return
		}
		c.reuse = false
		c.tx = append(c.tx, packet{data: clone(w), noAck: noAck})
		if c.ce {
			c.service()
		}
	case cmd&0xf8 == 0xa8: // W_ACK_PAYLOAD
		p := cmd & 7
		if p > 5 || len(c.ackPay[p]) >= fifoDepth || len(w) > maxPayload {
			return
		}
		c.ackPay[p] = append(c.ackPay[p], packet{pipe: p, data: clone(w)})
	case cmd == 0xe1: // FLUSH_TX
		c.tx = nil
		c.reuse = false
		c.ackPay = [6][]packet{}
	case cmd == 0xe2: // FLUSH_RX
		c.rx = nil
		c.forcedWidth = -1
	case cmd == 0xe3: // REUSE_TX_PL
		c.reuse = true
	case cmd == 0x60: // R_RX_PL_WID
		if len(r) == 0 {
			return
		}
		switch {
		case c.forcedWidth >= 0 && len(c.rx) > 0:
			r[0] = byte(c.forcedWidth)
		case len(c.rx) > 0:
			r[0] = byte(len(c.rx[0].data))
		}
	}
}

func (c *Chip) readReg(addr byte, r []byte) {
	switch addr {
	case 0x07:
		fill(r, c.status())
	case 0x08:
		fill(r, c.plos<<4|c.arcCnt)
	case 0x09:
		fill(r, b2u8(c.carrier))
	case 0x0a:
		copy(r, c.rxAddrP0[:])
	case 0x0b:
		copy(r, c.rxAddrP1[:])
	case 0x10:
		copy(r, c.txAddr[:])
	case 0x17:
		fill(r, c.fifoStatus())
	default:
		fill(r, c.regs[addr])
	}
}

func (c *Chip) writeReg(addr byte, w []byte) {
	if len(w) == 0 {
		return
	}
	switch addr {
	case 0x07:
		c.regs[0x07] &^= w[0] & 0x70
	case 0x05:
		c.regs[0x05] = w[0] & 0x7f
		c.plos = 0
	case 0x0a:
		copy(c.rxAddrP0[:], w)
	case 0x0b:
		copy(c.rxAddrP1[:], w)
	case 0x10:
		copy(c.txAddr[:], w)
	case 0x08, 0x09, 0x17:
		// Read only.
	default:
		c.regs[addr] = w[0]
	}
}

func (c *Chip) status() byte {
	pipe := byte(7)
	if len(c.rx) > 0 {
		pipe = c.rx[0].pipe
	}
	st := c.regs[0x07]&0x70 | pipe<<1
	if len(c.tx) >= fifoDepth {
		st |= 0x01
	}
	return st
}

func (c *Chip) fifoStatus() (fs byte) {
	if c.reuse {
		fs |= 0x40
	}
	switch len(c.tx) {
	case 0:
		fs |= 0x10
	case fifoDepth:
		fs |= 0x20
	}
	switch len(c.rx) {
	case 0:
		fs |= 0x01
	case fifoDepth:
		fs |= 0x02
	}
	return fs
}

func (c *Chip) poweredTx() bool { return c.regs[0x00]&0x03 == 0x02 }
func (c *Chip) poweredRx() bool { return c.regs[0x00]&0x03 == 0x03 }

func (c *Chip) addrWidth() int {
	aw := int(c.regs[0x03] & 0x03)
	if aw == 0 {
		aw = 1
	}
	return aw + 2
}

// pipeAddr returns the address pipe p listens on.
func (c *Chip) pipeAddr(p uint8) []byte {
	aw := c.addrWidth()
	switch p {
	case 0:
		return c.rxAddrP0[:aw]
	case 1:
		return c.rxAddrP1[:aw]
	}
	addr := make([]byte, aw)
	copy(addr, c.rxAddrP1[:aw])
	addr[0] = c.regs[0x0a+p]
	return addr
}

// hears reports whether c receives a packet sent by from and on which pipe.
func (c *Chip) hears(from *Chip, addr []byte) (uint8, bool) {
	const rateMask, crcMask = 0x28, 0x0c
	switch {
	case c == from, c.disconnected, !c.poweredRx(), !c.ce,
		c.regs[0x05] != from.regs[0x05],
		c.regs[0x06]&rateMask != from.regs[0x06]&rateMask,
		c.regs[0x00]&crcMask != from.regs[0x00]&crcMask,
		c.addrWidth() != len(addr):
		return 0, false
	}
	for p := uint8(0); p < 6; p++ {
		if c.regs[0x02]&(1<<p) != 0 && bytes.Equal(c.pipeAddr(p), addr) {
			return p, true
		}
	}
	return 0, false
}

// service sends the TX FIFO until it runs empty or retries are exhausted.
// It must be called with the ether locked.
func (c *Chip) service() {
	for len(c.tx) > 0 && c.ce && c.poweredTx() && !c.jammed && c.regs[0x07]&0x10 == 0 {
		pkt := c.tx[0]
		acked := c.send(pkt)
		autoAck := !pkt.noAck && c.regs[0x01]&0x01 != 0
		if !autoAck || acked {
			c.regs[0x07] |= 0x20 // TX_DS
			c.arcCnt = 0
			if c.reuse {
				return
			}
			c.tx = c.tx[1:]
			continue
		}
		c.arcCnt = c.regs[0x04] & 0x0f
		if c.plos < 15 {
			c.plos++
		}
		c.regs[0x07] |= 0x10 // MAX_RT
	}
}

// send puts pkt on the air and reports whether a receiver acknowledged it.
func (c *Chip) send(pkt packet) (acked bool) {
	aw := c.addrWidth()
	addr := c.txAddr[:aw]
	for _, peer := range c.ether.chips {
		pipe, ok := peer.hears(c, addr)
		if !ok {
			continue
		}
		peer.carrier = true
		if len(peer.rx) >= fifoDepth {
			continue
		}
		peer.rx = append(peer.rx, packet{pipe: pipe, data: clone(pkt.data)})
		peer.regs[0x07] |= 0x40 // RX_DR
		if pkt.noAck || peer.regs[0x01]&(1<<pipe) == 0 {
			continue
		}
		if c.regs[0x02]&0x01 == 0 || !bytes.Equal(c.rxAddrP0[:aw], addr) {
			// Acknowledgment goes out but we are not listening for it.
			continue
		}
		acked = true
		if peer.regs[0x1d]&0x02 != 0 && len(peer.ackPay[pipe]) > 0 && len(c.rx) < fifoDepth {
			ack := peer.ackPay[pipe][0]
			peer.ackPay[pipe] = peer.ackPay[pipe][1:]
			c.rx = append(c.rx, packet{pipe: 0, data: ack.data})
			c.regs[0x07] |= 0x40
		}
	}
	return acked
}

// Jam stops the chip from getting packets on the air. Queued packets stay in
// the TX FIFO without raising any flag until the chip is unjammed.
func (c *Chip) Jam(jam bool) {
	c.ether.mu.Lock()
	defer c.ether.mu.Unlock()
	c.jammed = jam
	if !jam {
		c.service()
	}
}

// Disconnect makes the chip stop answering on the bus, as if unplugged.
// Reads return zeros and writes are lost.
func (c *Chip) Disconnect() {
	c.ether.mu.Lock()
	defer c.ether.mu.Unlock()
	c.disconnected = true
}

// ForceRxWidth makes R_RX_PL_WID report width while the RX FIFO is not
// empty, until the RX FIFO is flushed. A negative width restores normal
// behavior.
func (c *Chip) ForceRxWidth(width int) {
	c.ether.mu.Lock()
	defer c.ether.mu.Unlock()
	c.forcedWidth = width
}

// Inject places payload in the RX FIFO as if received on pipe. It returns
// false if the RX FIFO is full.
func (c *Chip) Inject(pipe uint8, payload []byte) bool {
	c.ether.mu.Lock()
	defer c.ether.mu.Unlock()
	if len(c.rx) >= fifoDepth {
		return false
	}
	c.rx = append(c.rx, packet{pipe: pipe, data: clone(payload)})
	c.regs[0x07] |= 0x40
	return true
}

// Register returns the value a register read of addr returns, without
// going through the bus.
func (c *Chip) Register(addr uint8) byte {
	c.ether.mu.Lock()
	defer c.ether.mu.Unlock()
	var r [1]byte
	c.readReg(addr&0x1f, r[:])
	return r[0]
}

// ChipEnabled returns the level of the CE line.
func (c *Chip) ChipEnabled() bool {
	c.ether.mu.Lock()
	defer c.ether.mu.Unlock()
	return c.ce
}

// Pending returns copies of the payloads in the TX FIFO.
func (c *Chip) Pending() [][]byte {
	c.ether.mu.Lock()
	defer c.ether.mu.Unlock()
	out := make([][]byte, len(c.tx))
	for i := range c.tx {
		out[i] = clone(c.tx[i].data)
	}
	return out
}

// Transactions returns the number of bus transactions the chip answered.
func (c *Chip) Transactions() int {
	c.ether.mu.Lock()
	defer c.ether.mu.Unlock()
	return c.transactions
}

func clone(b []byte) []byte { return append([]byte{}, b...) }

func fill(b []byte, v byte) {
	if len(b) > 0 {
		b[0] = v
	}
}

func b2u8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
