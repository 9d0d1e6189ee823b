package nrf24l01

import (
	"fmt"

	"github.com/soypat/nrf24"
)

// Configure validates cfg and applies every setting to the chip. The current
// mode is kept.
func (d *Device) Configure(cfg nrf24.Config) (err error) {
	if err = cfg.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrBadArgument, err)
	}
	d.SetCRC(cfg.CRC)
	err = d.SetChannel(cfg.Channel)
	if err != nil {
		return err
	}
	err = d.SetRetry(cfg.RetryDelay, cfg.RetryCount)
	if err != nil {
		return err
	}
	err = d.SetRF(cfg.DataRate, cfg.Power)
	if err != nil {
		return err
	}
	err = d.SetPayloadSize(cfg.PayloadSize)
	if err != nil {
		return err
	}
	err = d.SetDynamicPayloads(cfg.DynamicPayload)
	if err != nil {
		return err
	}
	err = d.EnableNoAck(cfg.NoAck)
	if err != nil {
		return err
	}
	if cfg.ThisAddress != nil || cfg.TransmitAddress != nil {
		err = d.SetAddressWidth(cfg.AddressWidth())
		if err != nil {
			return err
		}
	}
	if cfg.ThisAddress != nil {
		err = d.SetThisAddress(cfg.ThisAddress)
		if err != nil {
			return err
		}
	}
	if cfg.TransmitAddress != nil {
		err = d.SetTransmitAddress(cfg.TransmitAddress)
		if err != nil {
			return err
		}
	}
	return d.restoreMode()
}

// SetChannel sets the RF channel. The carrier frequency is 2400MHz + ch MHz.
// Only the 7 least significant bits of ch are used.
func (d *Device) SetChannel(ch uint8) error {
	_, err := d.WriteRegister(regRF_CH, ch&rfChannelMask)
	return err
}

// Channel reads back the RF channel.
func (d *Device) Channel() (uint8, error) {
	ch, err := d.ReadRegister(regRF_CH)
	return ch & rfChannelMask, err
}

// SetConfiguration sets the CONFIG bits kept across mode changes: CRC
// settings and interrupt masks. The power bits of c are ignored. The new
// value is written on the next mode change.
func (d *Device) SetConfiguration(c Cfg) {
	d.config = c &^ cfgModeMask
}

// Configuration returns the CONFIG bits kept across mode changes.
func (d *Device) Configuration() Cfg { return d.config }

// SetCRC sets the CRC bits of the configuration. Like SetConfiguration it is
// written on the next mode change.
func (d *Device) SetCRC(mode nrf24.CRCMode) {
	c := d.config &^ cfgCRCMask
	switch mode {
	case nrf24.CRC1Byte:
		c |= CfgEnCRC
	case nrf24.CRC2Byte:
		c |= CfgEnCRC | CfgCRCO
	}
	d.config = c
}

// SetPipeAddress sets the receive address of pipe. Pipes 0 and 1 take the
// whole address; pipes 2 to 5 only store addr[0] and share the rest of the
// address with pipe 1. Address bytes are written least significant first.
func (d *Device) SetPipeAddress(pipe Pipe, addr []byte) error {
	if !pipe.valid() {
		return fmt.Errorf("%w: pipe %d", ErrBadArgument, pipe)
	}
	if !nrf24.ValidAddress(addr) {
		return fmt.Errorf("%w: %d byte address", ErrBadArgument, len(addr))
	}
	if !pipe.fullWidth() {
		_, err := d.WriteRegister(pipe.addrReg(), addr[0])
		return err
	}
	return d.writeRegisterN(pipe.addrReg(), addr)
}

// PipeAddress reads the receive address of pipe into dst and returns the
// number of bytes read, which is the configured address width. For pipes 2
// to 5 the upper bytes come from pipe 1.
func (d *Device) PipeAddress(pipe Pipe, dst []byte) (int, error) {
	if !pipe.valid() {
		return 0, fmt.Errorf("%w: pipe %d", ErrBadArgument, pipe)
	}
	aw, err := d.AddressWidth()
	if err != nil {
		return 0, err
	}
	if len(dst) < aw {
		return 0, ErrShortBuffer
	}
	if pipe.fullWidth() {
		return aw, d.readRegisterN(pipe.addrReg(), dst[:aw])
	}
	err = d.readRegisterN(regRX_ADDR_P1, dst[:aw])
	if err != nil {
		return 0, err
	}
	dst[0], err = d.ReadRegister(pipe.addrReg())
	return aw, err
}

// SetThisAddress sets the address this radio receives on (pipe 1).
func (d *Device) SetThisAddress(addr []byte) error {
	return d.SetPipeAddress(1, addr)
}

// SetTransmitAddress sets the destination address. The same address is
// written to pipe 0 so the acknowledgment from the destination is accepted.
func (d *Device) SetTransmitAddress(addr []byte) error {
	if !nrf24.ValidAddress(addr) {
		return fmt.Errorf("%w: %d byte address", ErrBadArgument, len(addr))
	}
	err := d.writeRegisterN(regRX_ADDR_P0, addr)
	if err != nil {
		return err
	}
	return d.writeRegisterN(regTX_ADDR, addr)
}

// TransmitAddress reads the destination address into dst.
func (d *Device) TransmitAddress(dst []byte) (int, error) {
	aw, err := d.AddressWidth()
	if err != nil {
		return 0, err
	}
	if len(dst) < aw {
		return 0, ErrShortBuffer
	}
	return aw, d.readRegisterN(regTX_ADDR, dst[:aw])
}

// SetAddressWidth sets the address width common to all pipes, 3 to 5 bytes.
func (d *Device) SetAddressWidth(width int) error {
	if width < nrf24.MinAddressWidth || width > nrf24.MaxAddressWidth {
		return fmt.Errorf("%w: address width %d", ErrBadArgument, width)
	}
	_, err := d.WriteRegister(regSETUP_AW, uint8(width-2))
	return err
}

// AddressWidth reads back the address width.
func (d *Device) AddressWidth() (int, error) {
	aw, err := d.ReadRegister(regSETUP_AW)
	if err != nil {
		return 0, err
	}
	aw &= aw5Bytes
	if aw < aw3Bytes {
		return 0, fmt.Errorf("nrf24l01: illegal SETUP_AW 0x%02x", aw)
	}
	return int(aw) + 2, nil
}

// SetRetry sets the auto-retransmit delay, in units of 250µs starting at
// 250µs, and the number of retransmissions. Both are masked to 4 bits.
func (d *Device) SetRetry(delay, count uint8) error {
	delay &= 0xf
	count &= 0xf
	_, err := d.WriteRegister(regSETUP_RETR, delay<<4|count)
	if err != nil {
		return err
	}
	d.retryDelay, d.retryCount = delay, count
	return nil
}

// Retry reads back the auto-retransmit delay and count.
func (d *Device) Retry() (delay, count uint8, err error) {
	v, err := d.ReadRegister(regSETUP_RETR)
	return (v & retrARD_MASK) >> 4, v & retrARC_MASK, err
}

// SetPayloadSize sets the static payload width of pipes 0 and 1.
func (d *Device) SetPayloadSize(size uint8) error {
	if size > nrf24.MaxPayload {
		return fmt.Errorf("%w: payload size %d", ErrBadArgument, size)
	}
	_, err := d.WriteRegister(regRX_PW_P0, size)
	if err != nil {
		return err
	}
	_, err = d.WriteRegister(regRX_PW_P1, size)
	return err
}

// PayloadSize reads back the static payload width of pipe.
func (d *Device) PayloadSize(pipe Pipe) (uint8, error) {
	if !pipe.valid() {
		return 0, fmt.Errorf("%w: pipe %d", ErrBadArgument, pipe)
	}
	v, err := d.ReadRegister(pipe.widthReg())
	return v & 0x3f, err
}

// SetRF sets the air data rate and output power. Selecting 250kbps raises
// the auto-retransmit delay to at least 1250µs, the acknowledgment takes
// longer to arrive at that rate. Other rates rewrite the retry settings
// last set with SetRetry.
func (d *Device) SetRF(rate nrf24.DataRate, power nrf24.Power) error {
	if power > nrf24.PowerMax {
		return fmt.Errorf("%w: power %d", ErrBadArgument, power)
	}
	value := uint8(power) << 1 & rfPWR_MASK
	switch rate {
	case nrf24.DataRate1M:
	case nrf24.DataRate2M:
		value |= rfDR_HIGH
	case nrf24.DataRate250k:
		value |= rfDR_LOW
	default:
		return fmt.Errorf("%w: data rate %d", ErrBadArgument, rate)
	}
	_, err := d.WriteRegister(regRF_SETUP, value)
	if err != nil {
		return err
	}
	delay := d.retryDelay
	if rate == nrf24.DataRate250k && delay < nrf24.MinRetryDelay(rate, 0) {
		delay = nrf24.MinRetryDelay(rate, 0)
	}
	return d.SetRetry(delay, d.retryCount)
}

// RF reads back the air data rate and output power.
func (d *Device) RF() (rate nrf24.DataRate, power nrf24.Power, err error) {
	v, err := d.ReadRegister(regRF_SETUP)
	if err != nil {
		return 0, 0, err
	}
	switch v & rfRATE_MASK {
	case 0:
		rate = nrf24.DataRate1M
	case rfDR_HIGH:
		rate = nrf24.DataRate2M
	case rfDR_LOW:
		rate = nrf24.DataRate250k
	default:
		// Both bits set is reserved.
		return 0, 0, fmt.Errorf("nrf24l01: reserved data rate bits in RF_SETUP 0x%02x", v)
	}
	return rate, nrf24.Power(v&rfPWR_MASK) >> 1, nil
}

// SetDynamicPayloads enables or disables dynamic payload widths on pipes 0
// and 1. Receivers and transmitters must agree on the setting.
func (d *Device) SetDynamicPayloads(enable bool) error {
	err := d.writeMasked8(regFEATURE, uint8(FeatureDynamicPayload), b2u8(enable)<<2)
	if err != nil {
		return err
	}
	var pipes uint8
	if enable {
		pipes = Pipe(0).bit() | Pipe(1).bit()
	}
	_, err = d.WriteRegister(regDYNPD, pipes)
	return err
}

// EnableNoAck enables sending packets that request no acknowledgment, see
// Send.
func (d *Device) EnableNoAck(enable bool) error {
	err := d.writeMasked8(regFEATURE, uint8(FeatureDynamicAck), b2u8(enable))
	if err != nil {
		return err
	}
	d.noAck = enable
	return nil
}

// EnableAckPayload enables attaching payloads to acknowledgments, see
// WriteAckPayload. Dynamic payloads must be enabled on both ends.
func (d *Device) EnableAckPayload(enable bool) error {
	return d.writeMasked8(regFEATURE, uint8(FeatureAckPayload), b2u8(enable)<<1)
}

// Features reads the FEATURE register.
func (d *Device) Features() (Feature, error) {
	v, err := d.ReadRegister(regFEATURE)
	return Feature(v), err
}

// EnableAutoAck enables or disables automatic acknowledgment on pipe.
func (d *Device) EnableAutoAck(pipe Pipe, enable bool) error {
	if !pipe.valid() {
		return fmt.Errorf("%w: pipe %d", ErrBadArgument, pipe)
	}
	return d.writeMasked8(regEN_AA, pipe.bit(), b2u8(enable)<<pipe)
}

// EnablePipe enables or disables reception on pipe.
func (d *Device) EnablePipe(pipe Pipe, enable bool) error {
	if !pipe.valid() {
		return fmt.Errorf("%w: pipe %d", ErrBadArgument, pipe)
	}
	return d.writeMasked8(regEN_RXADDR, pipe.bit(), b2u8(enable)<<pipe)
}
