/*
package nrf24l01 implements a driver for the Nordic nRF24L01 and nRF24L01+
2.4GHz packet radios. It is a low-level driver that exposes the chip's
registers and commands and builds on them a small packet API: configure,
send, wait for the acknowledgment, poll for and read received packets.

# Wiring

The chip is driven over a 4-wire SPI bus (mode 0, MSB first, up to 10MHz)
plus the CE line. Chip select is active low. When the bus asserts chip
select on its own (Linux spidev) the cs PinOutput may be nil. Every driver
operation is exactly one bus transaction.

# Modes

The driver tracks the mode it has put the chip in:

	             PowerUpRx              Send / PowerUpTx
	PowerDown ----------------> Receive ------------------> Transmit
	    ^                          ^                            |
	    |                          +---- WaitAvailable* --------+
	    +------------------- PowerDown (from any) --------------+

In Transmit mode the chip sends whatever is in its TX FIFO, waits for the
acknowledgment and retransmits up to the configured count. In Receive mode
CE is held high and valid packets addressed to an enabled pipe land in the
3 entry RX FIFO.

# FIFO and packet handling

	SPI            TX FIFO (3 x 32 bytes)              air
	W_TX_PAYLOAD ---> [ pkt ][ pkt ][ pkt ] ---> preamble|addr|ctrl|payload|crc
	R_RX_PAYLOAD <--- [ pkt ][ pkt ][ pkt ] <--- (pipe 0..5 address match)
	               RX FIFO (3 x 32 bytes)

The transmit address is also written to pipe 0 so acknowledgments coming
back from the destination are accepted.
*/
package nrf24l01

import (
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/soypat/nrf24"
)

// PinOutput is a function that sets the logic-level of a pin to high (true)
// or low (false). It is used to abstract a GPIO pin interface.
type PinOutput func(level bool)

// SPI is the bus the chip is attached to. Tx writes w while reading into r.
// Both buffers have the same length or r is nil.
type SPI interface {
	Transfer(w byte) (byte, error)
	Tx(w, r []byte) error
}

// Device is an nRF24L01(+) handle. It is not safe for concurrent use.
type Device struct {
	bus SPI
	cs  PinOutput
	ce  PinOutput

	clock Clock
	log   logrus.FieldLogger

	// config holds the sticky CONFIG bits (CRC, interrupt masks).
	config Cfg
	mode   nrf24.Mode
	// Retry settings last written to SETUP_RETR.
	retryDelay, retryCount uint8
	noAck                  bool

	initialized bool
	closed      bool

	wbuf [1 + nrf24.MaxPayload]byte
	rbuf [1 + nrf24.MaxPayload]byte
}

// Option configures a Device on creation.
type Option func(*Device)

// WithLogger sets the logger for driver events. The default logs warnings
// and errors to stderr.
func WithLogger(l logrus.FieldLogger) Option {
	return func(d *Device) {
		if l != nil {
			d.log = l.WithField("component", "nrf24l01")
		}
	}
}

// WithClock sets the time source. The default is SystemClock.
func WithClock(c Clock) Option {
	return func(d *Device) {
		if c != nil {
			d.clock = c
		}
	}
}

// New returns a Device attached to bus. cs drives chip select and may be nil
// if the bus asserts it on its own. ce drives the chip enable line. New
// does not communicate with the chip, call Init before use.
func New(bus SPI, cs, ce PinOutput, opts ...Option) *Device {
	if cs == nil {
		cs = func(bool) {}
	}
	d := &Device{
		bus:        bus,
		cs:         cs,
		ce:         ce,
		config:     CfgEnCRC,
		retryCount: 3,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.clock == nil {
		d.clock = SystemClock()
	}
	if d.log == nil {
		l := logrus.New()
		l.SetLevel(logrus.WarnLevel)
		d.log = l.WithField("component", "nrf24l01")
	}
	return d
}

// Init brings the chip to a known state: interrupt flags cleared, FIFOs
// flushed and listening in Receive mode. It waits 100ms for the power-on
// reset to complete. If the chip does not respond Init returns an error
// wrapping ErrHardwareUnresponsive and the device stays unusable until Init
// succeeds.
func (d *Device) Init() error {
	if d.closed {
		return ErrClosed
	}
	d.initialized = false
	d.ce(false)
	d.cs(true)
	d.clock.Sleep(powerOnReset)
	err := d.init()
	if err != nil {
		d.log.WithError(err).Error("init failed")
		if !errors.Is(err, ErrHardwareUnresponsive) {
			err = fmt.Errorf("%w: %w", ErrHardwareUnresponsive, err)
		}
		return err
	}
	d.initialized = true
	d.log.WithField("mode", d.mode).Info("initialized")
	return nil
}

const powerOnReset = 100 * time.Millisecond

func (d *Device) init() error {
	_, err := d.WriteRegister(regSTATUS, uint8(statusIRQMask))
	if err != nil {
		return err
	}
	err = d.PowerDown()
	if err != nil {
		return err
	}
	got, err := d.ReadRegister(regCONFIG)
	if err != nil {
		return err
	}
	aw, err := d.ReadRegister(regSETUP_AW)
	if err != nil {
		return err
	}
	if Cfg(got) != d.config || aw&0x03 == 0 {
		return fmt.Errorf("%w: CONFIG read back 0x%02x, want 0x%02x", ErrHardwareUnresponsive, got, uint8(d.config))
	}
	_, err = d.FlushTx()
	if err != nil {
		return err
	}
	_, err = d.FlushRx()
	if err != nil {
		return err
	}
	return d.PowerUpRx()
}

// Close powers the chip down and invalidates the handle. Later calls return
// ErrClosed.
func (d *Device) Close() error {
	if d.closed {
		return ErrClosed
	}
	err := d.PowerDown()
	d.closed = true
	return err
}

// Mode returns the mode the driver last put the chip in.
func (d *Device) Mode() nrf24.Mode { return d.mode }

// PowerDown puts the chip in its lowest power state. Register contents are
// kept.
func (d *Device) PowerDown() error {
	_, err := d.WriteRegister(regCONFIG, uint8(d.config))
	if err != nil {
		return err
	}
	d.ce(false)
	d.mode = nrf24.ModePowerDown
	return nil
}

// PowerUpRx powers up the chip as primary receiver and starts listening.
func (d *Device) PowerUpRx() error {
	_, err := d.WriteRegister(regCONFIG, uint8(d.config|CfgPwrUp|CfgPrimRx))
	if err != nil {
		return err
	}
	d.ce(true)
	d.mode = nrf24.ModeReceive
	return nil
}

// PowerUpTx powers up the chip as primary transmitter. CE is pulsed low so
// the chip sees a rising edge after CONFIG is written. If the write fails CE
// is left at the level of the current mode.
func (d *Device) PowerUpTx() error {
	d.ce(false)
	_, err := d.WriteRegister(regCONFIG, uint8(d.config|CfgPwrUp))
	if err != nil {
		d.ce(d.mode != nrf24.ModePowerDown)
		return err
	}
	d.ce(true)
	d.mode = nrf24.ModeTransmit
	return nil
}

// CheckMode reads CONFIG back and returns an error wrapping ErrModeMismatch
// if the chip's power bits disagree with Mode.
func (d *Device) CheckMode() error {
	got, err := d.ReadRegister(regCONFIG)
	if err != nil {
		return err
	}
	want := d.config | modeBits(d.mode)
	if Cfg(got) != want {
		d.log.WithFields(logrus.Fields{"mode": d.mode, "config": Cfg(got)}).Warn("mode mismatch")
		return fmt.Errorf("%w: read %s, want %s", ErrModeMismatch, Cfg(got), want)
	}
	return nil
}

func modeBits(m nrf24.Mode) Cfg {
	switch m {
	case nrf24.ModeReceive:
		return CfgPwrUp | CfgPrimRx
	case nrf24.ModeTransmit:
		return CfgPwrUp
	}
	return 0
}

// restoreMode rewrites CONFIG for the current mode so changes to the sticky
// configuration take effect.
func (d *Device) restoreMode() error {
	_, err := d.WriteRegister(regCONFIG, uint8(d.config|modeBits(d.mode)))
	return err
}

func (d *Device) usable() error {
	switch {
	case d.closed:
		return ErrClosed
	case !d.initialized:
		return fmt.Errorf("%w: not initialized", ErrHardwareUnresponsive)
	}
	return nil
}

// ReadRegister reads a single register. Only the 5 least significant bits of
// addr are used.
func (d *Device) ReadRegister(addr uint8) (byte, error) {
	w := d.wbuf[:2]
	r := d.rbuf[:2]
	w[0] = cmdR_REGISTER | addr&regAddrMask
	w[1] = cmdNOP
	err := d.tx(w, r)
	return r[1], err
}

// WriteRegister writes a single register and returns the STATUS register
// shifted out while the command was sent.
func (d *Device) WriteRegister(addr, value uint8) (Status, error) {
	w := d.wbuf[:2]
	r := d.rbuf[:2]
	w[0] = cmdW_REGISTER | addr&regAddrMask
	w[1] = value
	err := d.tx(w, r)
	return Status(r[0]), err
}

// BurstRead sends cmd and reads len(dst) bytes following it into dst.
func (d *Device) BurstRead(cmd uint8, dst []byte) error {
	if len(dst) > nrf24.MaxPayload {
		return fmt.Errorf("%w: burst of %d bytes", ErrBadArgument, len(dst))
	}
	w := d.wbuf[:1+len(dst)]
	r := d.rbuf[:1+len(dst)]
	w[0] = cmd
	for i := 1; i < len(w); i++ {
		w[i] = cmdNOP
	}
	err := d.tx(w, r)
	if err != nil {
		return err
	}
	copy(dst, r[1:])
	return nil
}

// BurstWrite sends cmd followed by src and returns the STATUS register.
func (d *Device) BurstWrite(cmd uint8, src []byte) (Status, error) {
	if len(src) > nrf24.MaxPayload {
		return 0, fmt.Errorf("%w: burst of %d bytes", ErrBadArgument, len(src))
	}
	w := d.wbuf[:1+len(src)]
	r := d.rbuf[:1+len(src)]
	w[0] = cmd
	copy(w[1:], src)
	err := d.tx(w, r)
	return Status(r[0]), err
}

// Command sends a single byte command such as a FIFO flush and returns the
// STATUS register.
func (d *Device) Command(cmd uint8) (Status, error) {
	if d.closed {
		return 0, ErrClosed
	}
	d.csEnable(true)
	st, err := d.bus.Transfer(cmd)
	d.csEnable(false)
	if err != nil {
		return 0, fmt.Errorf("nrf24l01: spi command 0x%02x: %w", cmd, err)
	}
	return Status(st), nil
}

// Status reads the STATUS register with a NOP.
func (d *Device) Status() (Status, error) { return d.Command(cmdNOP) }

// FlushTx empties the TX FIFO.
func (d *Device) FlushTx() (Status, error) { return d.Command(cmdFLUSH_TX) }

// FlushRx empties the RX FIFO.
func (d *Device) FlushRx() (Status, error) { return d.Command(cmdFLUSH_RX) }

// FIFOStatus reads the FIFO_STATUS register.
func (d *Device) FIFOStatus() (FIFOStatus, error) {
	v, err := d.ReadRegister(regFIFO_STATUS)
	return FIFOStatus(v), err
}

func (d *Device) readRegisterN(addr uint8, dst []byte) error {
	return d.BurstRead(cmdR_REGISTER|addr&regAddrMask, dst)
}

func (d *Device) writeRegisterN(addr uint8, src []byte) error {
	_, err := d.BurstWrite(cmdW_REGISTER|addr&regAddrMask, src)
	return err
}

func (d *Device) writeMasked8(addr uint8, mask, value byte) error {
	if value&^mask != 0 {
		panic("misuse of writeMasked8") // Bug in this package if hit.
	}
	existing, err := d.ReadRegister(addr)
	if err != nil {
		return err
	}
	existing &^= mask
	existing |= value
	_, err = d.WriteRegister(addr, existing)
	return err
}

func (d *Device) tx(w, r []byte) error {
	if d.closed {
		return ErrClosed
	}
	d.csEnable(true)
	err := d.bus.Tx(w, r)
	d.csEnable(false)
	if err != nil {
		return fmt.Errorf("nrf24l01: spi command 0x%02x: %w", w[0], err)
	}
	return nil
}

func (d *Device) csEnable(b bool) {
	d.cs(!b)
}

func b2u8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
