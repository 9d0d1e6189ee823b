package nrf24l01

import "strconv"

// SPI commands.
const (
	cmdR_REGISTER         = 0x00
	cmdW_REGISTER         = 0x20
	cmdR_RX_PAYLOAD       = 0x61
	cmdW_TX_PAYLOAD       = 0xa0
	cmdW_TX_PAYLOAD_NOACK = 0xb0
	cmdW_ACK_PAYLOAD      = 0xa8 // | pipe
	cmdFLUSH_TX           = 0xe1
	cmdFLUSH_RX           = 0xe2
	cmdREUSE_TX_PL        = 0xe3
	cmdR_RX_PL_WID        = 0x60
	cmdNOP                = 0xff

	regAddrMask = 0x1f
)

const (
	// registers
	regCONFIG      = 0x00
	regEN_AA       = 0x01
	regEN_RXADDR   = 0x02
	regSETUP_AW    = 0x03
	regSETUP_RETR  = 0x04
	regRF_CH       = 0x05
	regRF_SETUP    = 0x06
	regSTATUS      = 0x07
	regOBSERVE_TX  = 0x08
	regRPD         = 0x09
	regRX_ADDR_P0  = 0x0a
	regRX_ADDR_P1  = 0x0b
	regRX_ADDR_P2  = 0x0c
	regRX_ADDR_P3  = 0x0d
	regRX_ADDR_P4  = 0x0e
	regRX_ADDR_P5  = 0x0f
	regTX_ADDR     = 0x10
	regRX_PW_P0    = 0x11
	regRX_PW_P1    = 0x12
	regRX_PW_P2    = 0x13
	regRX_PW_P3    = 0x14
	regRX_PW_P4    = 0x15
	regRX_PW_P5    = 0x16
	regFIFO_STATUS = 0x17
	regDYNPD       = 0x1c
	regFEATURE     = 0x1d

	// RF_SETUP bits.
	rfCONT_WAVE  = 0x80
	rfDR_LOW     = 0x20
	rfPLL_LOCK   = 0x10
	rfDR_HIGH    = 0x08
	rfPWR_MASK   = 0x06
	rfRATE_MASK  = rfDR_LOW | rfDR_HIGH
	retrARD_MASK = 0xf0
	retrARC_MASK = 0x0f

	// OBSERVE_TX fields.
	obsPLOS_MASK    = 0xf0
	obsARC_CNT_MASK = 0x0f

	rfChannelMask = 0x7f
	// Values of SETUP_AW.
	aw3Bytes = 0x01
	aw5Bytes = 0x03
)

// Status is the STATUS register. The chip shifts it out on the first byte of
// every SPI transaction.
type Status uint8

// Status flags. The interrupt flags are cleared by writing a one to them.
const (
	StatusRxDataReady Status = 0x40
	StatusTxDataSent  Status = 0x20
	StatusMaxRetries  Status = 0x10
	StatusRxPipeMask  Status = 0x0e
	StatusTxFull      Status = 0x01

	statusIRQMask = StatusRxDataReady | StatusTxDataSent | StatusMaxRetries
	// pipe number reported when the RX FIFO is empty.
	rxPipeEmpty = 7
)

// RxPipe returns the pipe number of the payload at the head of the RX FIFO
// and false if the RX FIFO is empty.
func (s Status) RxPipe() (Pipe, bool) {
	p := uint8(s&StatusRxPipeMask) >> 1
	if p > 5 {
		return 0, false
	}
	return Pipe(p), true
}

func (s Status) String() string {
	str := "["
	if s&StatusRxDataReady != 0 {
		str += "RX_DR,"
	}
	if s&StatusTxDataSent != 0 {
		str += "TX_DS,"
	}
	if s&StatusMaxRetries != 0 {
		str += "MAX_RT,"
	}
	if s&StatusTxFull != 0 {
		str += "TX_FULL,"
	}
	if p, ok := s.RxPipe(); ok {
		str += "RX_P" + strconv.Itoa(int(p)) + ","
	}
	return str + "]"
}

// Cfg is the CONFIG register. The driver keeps the interrupt masks and CRC
// bits sticky across mode changes and sets the power bits itself.
type Cfg uint8

const (
	CfgMaskRxDR  Cfg = 0x40
	CfgMaskTxDS  Cfg = 0x20
	CfgMaskMaxRT Cfg = 0x10
	CfgEnCRC     Cfg = 0x08
	// CfgCRCO selects the 2 byte CRC when set.
	CfgCRCO   Cfg = 0x04
	CfgPwrUp  Cfg = 0x02
	CfgPrimRx Cfg = 0x01

	cfgModeMask = CfgPwrUp | CfgPrimRx
	cfgCRCMask  = CfgEnCRC | CfgCRCO
)

func (c Cfg) String() string {
	str := "["
	for _, b := range [...]struct {
		bit  Cfg
		name string
	}{
		{CfgMaskRxDR, "MASK_RX_DR"},
		{CfgMaskTxDS, "MASK_TX_DS"},
		{CfgMaskMaxRT, "MASK_MAX_RT"},
		{CfgEnCRC, "EN_CRC"},
		{CfgCRCO, "CRCO"},
		{CfgPwrUp, "PWR_UP"},
		{CfgPrimRx, "PRIM_RX"},
	} {
		if c&b.bit != 0 {
			str += b.name + ","
		}
	}
	return str + "]"
}

// FIFOStatus is the FIFO_STATUS register.
type FIFOStatus uint8

const (
	FIFOTxReuse FIFOStatus = 0x40
	FIFOTxFull  FIFOStatus = 0x20
	FIFOTxEmpty FIFOStatus = 0x10
	FIFORxFull  FIFOStatus = 0x02
	FIFORxEmpty FIFOStatus = 0x01
)

func (f FIFOStatus) String() string {
	str := "["
	if f&FIFOTxReuse != 0 {
		str += "TX_REUSE,"
	}
	if f&FIFOTxFull != 0 {
		str += "TX_FULL,"
	}
	if f&FIFOTxEmpty != 0 {
		str += "TX_EMPTY,"
	}
	if f&FIFORxFull != 0 {
		str += "RX_FULL,"
	}
	if f&FIFORxEmpty != 0 {
		str += "RX_EMPTY,"
	}
	return str + "]"
}

// Feature is the FEATURE register.
type Feature uint8

const (
	FeatureDynamicPayload Feature = 0x04
	FeatureAckPayload     Feature = 0x02
	FeatureDynamicAck     Feature = 0x01
)

func (f Feature) String() string {
	str := "["
	if f&FeatureDynamicPayload != 0 {
		str += "EN_DPL,"
	}
	if f&FeatureAckPayload != 0 {
		str += "EN_ACK_PAY,"
	}
	if f&FeatureDynamicAck != 0 {
		str += "EN_DYN_ACK,"
	}
	return str + "]"
}

// Pipe is one of the six receive data pipes. Pipes 0 and 1 have full width
// addresses; pipes 2 to 5 share the upper address bytes of pipe 1 and only
// store their least significant byte.
type Pipe uint8

const MaxPipe Pipe = 5

func (p Pipe) valid() bool { return p <= MaxPipe }

func (p Pipe) addrReg() uint8    { return regRX_ADDR_P0 + uint8(p) }
func (p Pipe) widthReg() uint8   { return regRX_PW_P0 + uint8(p) }
func (p Pipe) fullWidth() bool   { return p <= 1 }
func (p Pipe) String() string    { return "P" + strconv.Itoa(int(p)) }
func (p Pipe) bit() uint8        { return 1 << p }
func ackPayloadCmd(p Pipe) uint8 { return cmdW_ACK_PAYLOAD | uint8(p&7) }
