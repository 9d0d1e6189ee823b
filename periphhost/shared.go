package periphhost

import (
	"sync"

	"github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/spi"
)

// SharedBus lets several radios, each with its own chip select line, share
// one SPI port from different goroutines. Each transaction holds the bus
// from chip select assertion to release.
type SharedBus struct {
	mu   sync.Mutex
	conn spi.Conn
	log  logrus.FieldLogger
}

// NewSharedBus returns a bus shared over c.
func NewSharedBus(c spi.Conn, log logrus.FieldLogger) *SharedBus {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &SharedBus{conn: c, log: log.WithField("component", "periphhost")}
}

// Select returns the bus of the radio whose CSN pin is wired to cs. cs is
// driven high right away. Pass a nil chip select to the driver, the
// returned bus drives it.
func (b *SharedBus) Select(cs gpio.PinOut) *BusDevice {
	dev := &BusDevice{bus: b, cs: Output(cs, b.log)}
	dev.cs(true)
	return dev
}

// BusDevice is one radio on a SharedBus.
type BusDevice struct {
	bus *SharedBus
	cs  func(bool)
}

// Transfer exchanges a single byte with the radio.
func (d *BusDevice) Transfer(b byte) (byte, error) {
	w := [1]byte{b}
	var r [1]byte
	err := d.Tx(w[:], r[:])
	return r[0], err
}

// Tx performs one transaction with the radio's chip select asserted.
func (d *BusDevice) Tx(w, r []byte) error {
	d.bus.mu.Lock()
	defer d.bus.mu.Unlock()
	d.cs(false)
	err := d.bus.conn.Tx(w, r)
	d.cs(true)
	return err
}
