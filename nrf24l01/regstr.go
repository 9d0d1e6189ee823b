package nrf24l01

type regstr uint8

const (
	// registers
	_CONFIG      regstr = 0x00
	_EN_AA       regstr = 0x01
	_EN_RXADDR   regstr = 0x02
	_SETUP_AW    regstr = 0x03
	_SETUP_RETR  regstr = 0x04
	_RF_CH       regstr = 0x05
	_RF_SETUP    regstr = 0x06
	_STATUS      regstr = 0x07
	_OBSERVE_TX  regstr = 0x08
	_RPD         regstr = 0x09
	_RX_ADDR_P0  regstr = 0x0a
	_RX_ADDR_P1  regstr = 0x0b
	_RX_ADDR_P2  regstr = 0x0c
	_RX_ADDR_P3  regstr = 0x0d
	_RX_ADDR_P4  regstr = 0x0e
	_RX_ADDR_P5  regstr = 0x0f
	_TX_ADDR     regstr = 0x10
	_RX_PW_P0    regstr = 0x11
	_RX_PW_P1    regstr = 0x12
	_RX_PW_P2    regstr = 0x13
	_RX_PW_P3    regstr = 0x14
	_RX_PW_P4    regstr = 0x15
	_RX_PW_P5    regstr = 0x16
	_FIFO_STATUS regstr = 0x17
	_DYNPD       regstr = 0x1c
	_FEATURE     regstr = 0x1d
)

var regNames = [...]string{
	_CONFIG:      "CONFIG",
	_EN_AA:       "EN_AA",
	_EN_RXADDR:   "EN_RXADDR",
	_SETUP_AW:    "SETUP_AW",
	_SETUP_RETR:  "SETUP_RETR",
	_RF_CH:       "RF_CH",
	_RF_SETUP:    "RF_SETUP",
	_STATUS:      "STATUS",
	_OBSERVE_TX:  "OBSERVE_TX",
	_RPD:         "RPD",
	_RX_ADDR_P0:  "RX_ADDR_P0",
	_RX_ADDR_P1:  "RX_ADDR_P1",
	_RX_ADDR_P2:  "RX_ADDR_P2",
	_RX_ADDR_P3:  "RX_ADDR_P3",
	_RX_ADDR_P4:  "RX_ADDR_P4",
	_RX_ADDR_P5:  "RX_ADDR_P5",
	_TX_ADDR:     "TX_ADDR",
	_RX_PW_P0:    "RX_PW_P0",
	_RX_PW_P1:    "RX_PW_P1",
	_RX_PW_P2:    "RX_PW_P2",
	_RX_PW_P3:    "RX_PW_P3",
	_RX_PW_P4:    "RX_PW_P4",
	_RX_PW_P5:    "RX_PW_P5",
	_FIFO_STATUS: "FIFO_STATUS",
	_DYNPD:       "DYNPD",
	_FEATURE:     "FEATURE",
}

func (r regstr) valid() bool {
	return int(r) < len(regNames) && regNames[r] != ""
}

func (r regstr) String() string {
	if !r.valid() {
		return "UNKNOWN"
	}
	return regNames[r]
}
