// Package periphhost connects nRF24L01 radios to Linux hosts through
// periph.io: a spidev port for the bus and GPIO lines for CE and, optionally,
// a dedicated chip select.
package periphhost

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/soypat/nrf24/nrf24l01"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	host "periph.io/x/host/v3"
)

// DefaultFrequency is the SPI clock used when Options.Frequency is zero.
const DefaultFrequency = 4 * physic.MegaHertz

// Options selects the host resources of a radio.
type Options struct {
	// SPI is the spireg name of the port, such as "/dev/spidev0.0" or "SPI0.0".
	// Empty selects the first port available.
	SPI string
	// Frequency is the SPI clock. The chip supports up to 10MHz.
	Frequency physic.Frequency
	// CE is the gpioreg name of the line wired to the chip's CE pin.
	CE string
	// CS is the gpioreg name of a line wired to the chip's CSN pin. Leave
	// empty when the spidev port drives chip select itself.
	CS string
	// Logger receives adapter errors. Defaults to the standard logrus logger.
	Logger logrus.FieldLogger
}

var errNoCE = errors.New("periphhost: CE line required")

// Host owns the SPI port and GPIO lines of one radio.
type Host struct {
	port spi.PortCloser
	bus  *SPI
	ce   gpio.PinOut
	cs   gpio.PinOut
	log  logrus.FieldLogger
}

// Open initializes the periph host drivers and opens the port and lines
// named in opts.
func Open(opts Options) (*Host, error) {
	if opts.CE == "" {
		return nil, errNoCE
	}
	if opts.Frequency == 0 {
		opts.Frequency = DefaultFrequency
	}
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	log = log.WithField("component", "periphhost")
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periphhost: host init: %w", err)
	}
	ce := gpioreg.ByName(opts.CE)
	if ce == nil {
		return nil, fmt.Errorf("periphhost: no GPIO line %q", opts.CE)
	}
	var cs gpio.PinOut
	if opts.CS != "" {
		p := gpioreg.ByName(opts.CS)
		if p == nil {
			return nil, fmt.Errorf("periphhost: no GPIO line %q", opts.CS)
		}
		cs = p
	}
	port, err := spireg.Open(opts.SPI)
	if err != nil {
		return nil, fmt.Errorf("periphhost: open SPI %q: %w", opts.SPI, err)
	}
	conn, err := port.Connect(opts.Frequency, spi.Mode0, 8)
	if err != nil {
		port.Close()
		return nil, fmt.Errorf("periphhost: connect SPI %q: %w", opts.SPI, err)
	}
	log.WithFields(logrus.Fields{"spi": port.String(), "ce": opts.CE, "cs": opts.CS, "freq": opts.Frequency}).Info("opened")
	return &Host{port: port, bus: NewSPI(conn), ce: ce, cs: cs, log: log}, nil
}

// Device returns a driver for the radio. It still needs Init.
func (h *Host) Device(opts ...nrf24l01.Option) *nrf24l01.Device {
	var cs nrf24l01.PinOutput
	if h.cs != nil {
		cs = Output(h.cs, h.log)
	}
	return nrf24l01.New(h.bus, cs, Output(h.ce, h.log), opts...)
}

// Close drives CE low and releases the SPI port.
func (h *Host) Close() error {
	if err := h.ce.Out(gpio.Low); err != nil {
		h.log.WithError(err).Warn("driving CE low on close")
	}
	return h.port.Close()
}

// SPI adapts a periph spi.Conn to the driver's bus.
type SPI struct {
	conn spi.Conn
}

// NewSPI returns a bus over c. c must be configured for mode 0 with 8 bit
// words.
func NewSPI(c spi.Conn) *SPI { return &SPI{conn: c} }

// Transfer exchanges a single byte.
func (s *SPI) Transfer(b byte) (byte, error) {
	w := [1]byte{b}
	var r [1]byte
	err := s.conn.Tx(w[:], r[:])
	return r[0], err
}

// Tx performs one full duplex transaction.
func (s *SPI) Tx(w, r []byte) error { return s.conn.Tx(w, r) }

// Output adapts a GPIO line to the driver's pin contract. Errors driving the
// line are logged since the driver's pins cannot fail.
func Output(p gpio.PinOut, log logrus.FieldLogger) nrf24l01.PinOutput {
	return func(level bool) {
		if err := p.Out(gpio.Level(level)); err != nil {
			log.WithError(err).WithField("pin", p.Name()).Error("drive line")
		}
	}
}
