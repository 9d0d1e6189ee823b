package nrf24l01

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// dumpRegs are the registers read by Dump, in order.
var dumpRegs = [...]regstr{
	_CONFIG, _EN_AA, _EN_RXADDR, _SETUP_AW, _SETUP_RETR, _RF_CH, _RF_SETUP,
	_STATUS, _OBSERVE_TX, _RPD, _RX_ADDR_P0, _RX_ADDR_P1, _RX_ADDR_P2,
	_RX_ADDR_P3, _RX_ADDR_P4, _RX_ADDR_P5, _TX_ADDR, _RX_PW_P0, _RX_PW_P1,
	_RX_PW_P2, _RX_PW_P3, _RX_PW_P4, _RX_PW_P5, _FIFO_STATUS, _DYNPD, _FEATURE,
}

// RegisterValue is a register address with the value read from it. For
// the wide address registers Value is the least significant byte.
type RegisterValue struct {
	Addr  uint8
	Value uint8
}

// Name returns the datasheet name of the register.
func (rv RegisterValue) Name() string { return regstr(rv.Addr).String() }

func (rv RegisterValue) String() string {
	return fmt.Sprintf("0x%02X %s = 0x%02X", rv.Addr, rv.Name(), rv.Value)
}

// Dump reads every documented register of the chip.
func (d *Device) Dump() ([]RegisterValue, error) {
	regs := make([]RegisterValue, 0, len(dumpRegs))
	for _, r := range dumpRegs {
		v, err := d.ReadRegister(uint8(r))
		if err != nil {
			return regs, err
		}
		regs = append(regs, RegisterValue{Addr: uint8(r), Value: v})
	}
	return regs, nil
}

// LogRegisters dumps the registers to the logger at debug level.
func (d *Device) LogRegisters() error {
	regs, err := d.Dump()
	if err != nil {
		return err
	}
	fields := make(logrus.Fields, len(regs)+1)
	fields["mode"] = d.mode
	for _, rv := range regs {
		fields[rv.Name()] = fmt.Sprintf("0x%02X", rv.Value)
	}
	d.log.WithFields(fields).Debug("registers")
	return nil
}
