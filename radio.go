package nrf24

import (
	"errors"
	"strconv"
	"time"
)

// Limits imposed by the nRF24L01(+) hardware.
const (
	// MaxPayload is the largest payload a single packet can carry.
	MaxPayload = 32
	// MaxChannel is the highest usable RF channel. The RF_CH register holds
	// 7 bits but channels above 125 fall outside the 2.4GHz ISM band.
	MaxChannel      = 125
	MinAddressWidth = 3
	MaxAddressWidth = 5
	// MaxRetryDelay is the largest auto-retransmit delay code. The wait
	// between retries is (code+1)*RetryDelayUnit.
	MaxRetryDelay = 15
	MaxRetryCount = 15
	// RetryDelayUnit is the step of the auto-retransmit delay.
	RetryDelayUnit = 250 * time.Microsecond
	// SettleTime is the PLL settling time needed every time the radio turns
	// around between standby, transmit and receive.
	SettleTime = 130 * time.Microsecond
)

// Config is the generic configuration of an nRF24 radio. Two radios can only
// talk to each other when Channel, DataRate, CRC and address widths agree.
type Config struct {
	// Channel selects the carrier frequency: 2400MHz + Channel MHz.
	Channel uint8
	// DataRate is the air data rate. Lower rates reach further but need a
	// longer RetryDelay since the acknowledgment takes longer to come back.
	DataRate DataRate
	// Power is the transmit output power.
	Power Power
	// CRC selects the CRC length appended to every packet by the chip.
	// Enhanced acknowledgment forces CRC on, so CRCOff is only honored by
	// radios that never use auto-ack.
	CRC CRCMode
	// RetryDelay is the auto-retransmit delay code between 0 and 15. The
	// radio waits (RetryDelay+1)*250µs for an acknowledgment before retrying.
	RetryDelay uint8
	// RetryCount is the number of retransmissions before giving up, 0 to 15.
	RetryCount uint8
	// PayloadSize is the static payload width of receive pipes 0 and 1.
	PayloadSize uint8
	// DynamicPayload enables variable payload widths on pipes 0 and 1.
	DynamicPayload bool
	// NoAck enables transmission of packets that request no acknowledgment.
	NoAck bool
	// ThisAddress is the address this radio listens on (pipe 1).
	ThisAddress []byte
	// TransmitAddress is the destination address. It is also assigned to
	// pipe 0 so acknowledgments from the destination are accepted.
	TransmitAddress []byte
}

// DefaultConfig returns the power-on defaults most nRF24 libraries agree on
// with a 1 byte CRC and 3 retries.
func DefaultConfig() Config {
	return Config{
		Channel:     2,
		DataRate:    DataRate1M,
		Power:       PowerMax,
		CRC:         CRC1Byte,
		RetryDelay:  0,
		RetryCount:  3,
		PayloadSize: MaxPayload,
	}
}

var (
	errBadChannel     = errors.New("channel out of range")
	errBadDataRate    = errors.New("bad data rate")
	errBadPower       = errors.New("bad power level")
	errBadCRC         = errors.New("bad CRC mode")
	errBadRetryDelay  = errors.New("retry delay must be between 0 and 15")
	errBadRetryCount  = errors.New("retry count must be between 0 and 15")
	errBadPayloadSize = errors.New("payload size exceeds 32 bytes")
	errBadAddress     = errors.New("address must be 3 to 5 bytes long")
	errAddressWidths  = errors.New("this and transmit address widths differ")
	errSlowRetry      = errors.New("250kbps requires a retry delay of at least 1250µs")
)

// Validate checks the configuration for values the radio can not represent.
func (cfg *Config) Validate() (err error) {
	switch {
	case cfg.Channel > MaxChannel:
		err = errBadChannel
	case cfg.DataRate > DataRate250k:
		err = errBadDataRate
	case cfg.Power > PowerMax:
		err = errBadPower
	case cfg.CRC > CRC2Byte:
		err = errBadCRC
	case cfg.RetryDelay > MaxRetryDelay:
		err = errBadRetryDelay
	case cfg.RetryCount > MaxRetryCount:
		err = errBadRetryCount
	case cfg.PayloadSize > MaxPayload:
		err = errBadPayloadSize
	case cfg.DataRate == DataRate250k && cfg.RetryCount > 0 && cfg.RetryDelay < minRetryDelay250k:
		err = errSlowRetry
	}
	if err != nil {
		return err
	}
	for _, addr := range [2][]byte{cfg.ThisAddress, cfg.TransmitAddress} {
		if addr != nil && !ValidAddress(addr) {
			return errBadAddress
		}
	}
	if cfg.ThisAddress != nil && cfg.TransmitAddress != nil &&
		len(cfg.ThisAddress) != len(cfg.TransmitAddress) {
		return errAddressWidths
	}
	return nil
}

// AddressWidth returns the address width in use by the configuration, the
// hardware default of 5 if no address was set.
func (cfg *Config) AddressWidth() int {
	switch {
	case cfg.ThisAddress != nil:
		return len(cfg.ThisAddress)
	case cfg.TransmitAddress != nil:
		return len(cfg.TransmitAddress)
	}
	return MaxAddressWidth
}

// TimeOnAir returns the time it takes to transmit a packet with the given
// payload length. The packet is framed by the chip as
//
//	preamble (1 byte) | address (3-5 bytes) | control (9 bits) | payload | CRC (0-2 bytes)
func (cfg *Config) TimeOnAir(payloadLength int) time.Duration {
	bps := cfg.DataRate.BitsPerSecond()
	if bps == 0 {
		return 0
	}
	bits := packetBits(cfg.AddressWidth(), payloadLength, cfg.CRC.Bytes())
	return time.Duration(bits) * time.Second / time.Duration(bps)
}

// AckRoundTrip returns how long a transmitter waits, from the end of its own
// packet, for an acknowledgment carrying ackPayloadLength bytes to arrive.
func (cfg *Config) AckRoundTrip(ackPayloadLength int) time.Duration {
	return SettleTime + cfg.TimeOnAir(ackPayloadLength)
}

const minRetryDelay250k = 4 // 1250µs

// MinRetryDelay returns the smallest auto-retransmit delay code that waits
// long enough for an acknowledgment with ackPayloadLength bytes at the given
// data rate. The 250kbps rate is never given less than 1250µs.
func MinRetryDelay(rate DataRate, ackPayloadLength int) uint8 {
	cfg := Config{DataRate: rate, CRC: CRC2Byte}
	rt := cfg.AckRoundTrip(ackPayloadLength)
	code := int(rt / RetryDelayUnit)
	if rate == DataRate250k && code < minRetryDelay250k {
		code = minRetryDelay250k
	}
	if code > MaxRetryDelay {
		code = MaxRetryDelay
	}
	return uint8(code)
}

// RetryDelayDuration converts a retry delay code to the time waited between
// retransmissions.
func RetryDelayDuration(code uint8) time.Duration {
	return time.Duration(code&0xf+1) * RetryDelayUnit
}

func packetBits(addrWidth, payloadLength, crcBytes int) int64 {
	const preamble, control = 1, 9
	return 8*int64(preamble+addrWidth+payloadLength+crcBytes) + control
}

// ValidAddress reports whether addr has a width the radio supports.
func ValidAddress(addr []byte) bool {
	return len(addr) >= MinAddressWidth && len(addr) <= MaxAddressWidth
}

// DataRate is the air data rate. The values are not the register encoding:
// the chip selects the rate with two non-adjacent bits.
type DataRate uint8

const (
	DataRate1M DataRate = iota
	DataRate2M
	DataRate250k
)

// BitsPerSecond returns the raw air bit rate or 0 for an unknown rate.
func (dr DataRate) BitsPerSecond() int64 {
	switch dr {
	case DataRate1M:
		return 1_000_000
	case DataRate2M:
		return 2_000_000
	case DataRate250k:
		return 250_000
	}
	return 0
}

func (dr DataRate) String() (s string) {
	switch dr {
	case DataRate1M:
		s = "1Mbps"
	case DataRate2M:
		s = "2Mbps"
	case DataRate250k:
		s = "250kbps"
	default:
		s = "unknown"
	}
	return s
}

// Power is the transmit output power. Each step is 6dB.
type Power uint8

const (
	PowerMin  Power = iota // -18dBm
	PowerLow               // -12dBm
	PowerHigh              // -6dBm
	PowerMax               // 0dBm
)

// DBm returns the output power in dBm.
func (p Power) DBm() int { return 6*int(p&3) - 18 }

func (p Power) String() string {
	if p > PowerMax {
		return "unknown"
	}
	return strconv.Itoa(p.DBm()) + "dBm"
}

// CRCMode is the length of the CRC appended by the chip to every packet.
type CRCMode uint8

const (
	CRCOff CRCMode = iota
	CRC1Byte
	CRC2Byte
)

// Bytes returns the number of CRC bytes on air.
func (c CRCMode) Bytes() int {
	if c > CRC2Byte {
		return 0
	}
	return int(c)
}

func (c CRCMode) String() (s string) {
	switch c {
	case CRCOff:
		s = "off"
	case CRC1Byte:
		s = "8bit"
	case CRC2Byte:
		s = "16bit"
	default:
		s = "unknown"
	}
	return s
}

// Mode is the power state of the radio as driven by the host.
type Mode uint8

const (
	// ModePowerDown is the lowest power state. Registers keep their values.
	ModePowerDown Mode = iota
	// ModeReceive is the powered primary-receiver state with CE held high.
	ModeReceive
	// ModeTransmit is the powered primary-transmitter state. The chip sends
	// whatever is in its TX FIFO and idles in standby when it runs empty.
	ModeTransmit
)

func (m Mode) String() (s string) {
	switch m {
	case ModePowerDown:
		s = "power-down"
	case ModeReceive:
		s = "rx"
	case ModeTransmit:
		s = "tx"
	default:
		s = "unknown"
	}
	return s
}

// Frequency is a radio frequency in Hertz.
type Frequency int64

func (f Frequency) Hertz() int64 { return int64(f) }

const (
	Hertz     Frequency = 1
	KiloHertz Frequency = 1000 * Hertz
	MegaHertz Frequency = 1000 * KiloHertz
)

// BaseFrequency is the carrier frequency of channel 0.
const BaseFrequency = 2400 * MegaHertz

// ChannelFrequency returns the carrier frequency of an RF channel.
func ChannelFrequency(channel uint8) Frequency {
	return BaseFrequency + Frequency(channel&0x7f)*MegaHertz
}
