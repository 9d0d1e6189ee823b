package nrf24l01_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/soypat/nrf24"
	"github.com/soypat/nrf24/internal/nrfsim"
	"github.com/soypat/nrf24/nrf24l01"
)

// snapshot reads every register including the full width addresses.
func snapshot(t *testing.T, d *nrf24l01.Device) []byte {
	t.Helper()
	regs, err := d.Dump()
	if err != nil {
		t.Fatal(err)
	}
	var snap []byte
	for _, rv := range regs {
		snap = append(snap, rv.Value)
	}
	var addr [5]byte
	for _, pipe := range []nrf24l01.Pipe{0, 1} {
		if _, err := d.PipeAddress(pipe, addr[:]); err != nil {
			t.Fatal(err)
		}
		snap = append(snap, addr[:]...)
	}
	if _, err := d.TransmitAddress(addr[:]); err != nil {
		t.Fatal(err)
	}
	return append(snap, addr[:]...)
}

func TestSettersIdempotent(t *testing.T) {
	for _, tc := range []struct {
		name string
		set  func(d *nrf24l01.Device) error
	}{
		{"SetChannel", func(d *nrf24l01.Device) error { return d.SetChannel(76) }},
		{"SetRF 250k", func(d *nrf24l01.Device) error { return d.SetRF(nrf24.DataRate250k, nrf24.PowerLow) }},
		{"SetRF 2M", func(d *nrf24l01.Device) error { return d.SetRF(nrf24.DataRate2M, nrf24.PowerMax) }},
		{"SetPayloadSize", func(d *nrf24l01.Device) error { return d.SetPayloadSize(12) }},
		{"SetRetry", func(d *nrf24l01.Device) error { return d.SetRetry(5, 10) }},
		{"SetTransmitAddress", func(d *nrf24l01.Device) error { return d.SetTransmitAddress(addrB) }},
		{"SetDynamicPayloads", func(d *nrf24l01.Device) error { return d.SetDynamicPayloads(true) }},
		{"Configure", func(d *nrf24l01.Device) error {
			cfg := nrf24.DefaultConfig()
			cfg.ThisAddress, cfg.TransmitAddress = addrA, addrB
			return d.Configure(cfg)
		}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			chip := nrfsim.NewEther().NewChip()
			d, _ := newDevice(t, chip)
			if err := tc.set(d); err != nil {
				t.Fatal(err)
			}
			once := snapshot(t, d)
			if err := tc.set(d); err != nil {
				t.Fatal(err)
			}
			twice := snapshot(t, d)
			if !bytes.Equal(once, twice) {
				t.Errorf("register state changed on second call:\n%x\n%x", once, twice)
			}
		})
	}
}

func TestTransmitAddressMirrorsPipe0(t *testing.T) {
	chip := nrfsim.NewEther().NewChip()
	d, _ := newDevice(t, chip)
	for _, addr := range [][]byte{addrB, addrA, {0xe7, 0xe7, 0xe7, 0xe7, 0xe7}} {
		if err := d.SetThisAddress(addr); err != nil {
			t.Fatal(err)
		}
		if err := d.SetTransmitAddress(addr); err != nil {
			t.Fatal(err)
		}
		var p0, p1, tx [5]byte
		if _, err := d.PipeAddress(0, p0[:]); err != nil {
			t.Fatal(err)
		}
		if _, err := d.PipeAddress(1, p1[:]); err != nil {
			t.Fatal(err)
		}
		if _, err := d.TransmitAddress(tx[:]); err != nil {
			t.Fatal(err)
		}
		if p0 != tx {
			t.Errorf("RX_ADDR_P0 %x differs from TX_ADDR %x", p0, tx)
		}
		if !bytes.Equal(p1[:], addr) || !bytes.Equal(tx[:], addr) {
			t.Errorf("address %x read back as P1=%x TX=%x", addr, p1, tx)
		}
	}
}

func TestNarrowPipeAddress(t *testing.T) {
	chip := nrfsim.NewEther().NewChip()
	d, _ := newDevice(t, chip)
	if err := d.SetThisAddress(addrB); err != nil {
		t.Fatal(err)
	}
	if err := d.SetPipeAddress(3, []byte{0x33, 0, 0}); err != nil {
		t.Fatal(err)
	}
	var got [5]byte
	n, err := d.PipeAddress(3, got[:])
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{0x33, 0x02, 0x03, 0x04, 0x05}
	if !bytes.Equal(got[:n], want) {
		t.Errorf("pipe 3 address %x, want %x", got[:n], want)
	}
	for _, tc := range []struct {
		pipe nrf24l01.Pipe
		addr []byte
	}{
		{6, addrA},
		{1, []byte{1, 2}},
		{0, make([]byte, 6)},
	} {
		err := d.SetPipeAddress(tc.pipe, tc.addr)
		if !errors.Is(err, nrf24l01.ErrBadArgument) {
			t.Errorf("SetPipeAddress(%d, %x): %v", tc.pipe, tc.addr, err)
		}
	}
	if _, err := d.PipeAddress(2, got[:3]); !errors.Is(err, nrf24l01.ErrShortBuffer) {
		t.Errorf("short PipeAddress buffer: %v", err)
	}
}

func TestAddressWidth(t *testing.T) {
	chip := nrfsim.NewEther().NewChip()
	d, _ := newDevice(t, chip)
	for width := nrf24.MinAddressWidth; width <= nrf24.MaxAddressWidth; width++ {
		if err := d.SetAddressWidth(width); err != nil {
			t.Fatal(err)
		}
		got, err := d.AddressWidth()
		if err != nil || got != width {
			t.Errorf("width %d read back as %d, %v", width, got, err)
		}
		if reg := chip.Register(0x03); int(reg) != width-2 {
			t.Errorf("SETUP_AW=%d for width %d", reg, width)
		}
	}
	if err := d.SetAddressWidth(2); !errors.Is(err, nrf24l01.ErrBadArgument) {
		t.Errorf("width 2: %v", err)
	}
}

func TestSetRF(t *testing.T) {
	for _, tc := range []struct {
		rate  nrf24.DataRate
		power nrf24.Power
		reg   byte
	}{
		{nrf24.DataRate1M, nrf24.PowerMax, 0x06},
		{nrf24.DataRate2M, nrf24.PowerMin, 0x08},
		{nrf24.DataRate250k, nrf24.PowerHigh, 0x24},
		{nrf24.DataRate1M, nrf24.PowerLow, 0x02},
	} {
		chip := nrfsim.NewEther().NewChip()
		d, _ := newDevice(t, chip)
		if err := d.SetRF(tc.rate, tc.power); err != nil {
			t.Fatal(err)
		}
		if got := chip.Register(0x06); got != tc.reg {
			t.Errorf("%s %s: RF_SETUP=%#x, want %#x", tc.rate, tc.power, got, tc.reg)
		}
		rate, power, err := d.RF()
		if err != nil || rate != tc.rate || power != tc.power {
			t.Errorf("RF() = %s %s %v, want %s %s", rate, power, err, tc.rate, tc.power)
		}
	}
	chip := nrfsim.NewEther().NewChip()
	d, _ := newDevice(t, chip)
	if err := d.SetRF(7, nrf24.PowerMax); !errors.Is(err, nrf24l01.ErrBadArgument) {
		t.Errorf("bad rate: %v", err)
	}
	if err := d.SetRF(nrf24.DataRate1M, 4); !errors.Is(err, nrf24l01.ErrBadArgument) {
		t.Errorf("bad power: %v", err)
	}
}

func TestSetRFSlowRateWidensRetry(t *testing.T) {
	chip := nrfsim.NewEther().NewChip()
	d, _ := newDevice(t, chip)
	if err := d.SetRetry(1, 5); err != nil {
		t.Fatal(err)
	}
	if err := d.SetRF(nrf24.DataRate250k, nrf24.PowerMax); err != nil {
		t.Fatal(err)
	}
	delay, count, err := d.Retry()
	if err != nil || delay != 4 || count != 5 {
		t.Errorf("after 250kbps got delay=%d count=%d %v, want 4 5", delay, count, err)
	}
	// A wider delay is kept.
	if err := d.SetRetry(9, 2); err != nil {
		t.Fatal(err)
	}
	if err := d.SetRF(nrf24.DataRate250k, nrf24.PowerMax); err != nil {
		t.Fatal(err)
	}
	if got := chip.Register(0x04); got != 0x92 {
		t.Errorf("SETUP_RETR=%#x, want 0x92", got)
	}
	if err := d.SetRF(nrf24.DataRate2M, nrf24.PowerMax); err != nil {
		t.Fatal(err)
	}
	if got := chip.Register(0x04); got != 0x92 {
		t.Errorf("SETUP_RETR=%#x after 2Mbps, want 0x92", got)
	}
}

func TestSetRetryMasks(t *testing.T) {
	chip := nrfsim.NewEther().NewChip()
	d, _ := newDevice(t, chip)
	if err := d.SetRetry(0x1f, 0x23); err != nil {
		t.Fatal(err)
	}
	if got := chip.Register(0x04); got != 0xf3 {
		t.Errorf("SETUP_RETR=%#x, want 0xf3", got)
	}
}

func TestChannelMasked(t *testing.T) {
	chip := nrfsim.NewEther().NewChip()
	d, _ := newDevice(t, chip)
	if err := d.SetChannel(0x80 | 76); err != nil {
		t.Fatal(err)
	}
	ch, err := d.Channel()
	if err != nil || ch != 76 {
		t.Errorf("channel %d, %v", ch, err)
	}
}

func TestPayloadSize(t *testing.T) {
	chip := nrfsim.NewEther().NewChip()
	d, _ := newDevice(t, chip)
	if err := d.SetPayloadSize(17); err != nil {
		t.Fatal(err)
	}
	for _, pipe := range []nrf24l01.Pipe{0, 1} {
		got, err := d.PayloadSize(pipe)
		if err != nil || got != 17 {
			t.Errorf("pipe %d payload size %d, %v", pipe, got, err)
		}
	}
	if got, _ := d.PayloadSize(2); got != 0 {
		t.Errorf("pipe 2 payload size changed to %d", got)
	}
	if err := d.SetPayloadSize(33); !errors.Is(err, nrf24l01.ErrBadArgument) {
		t.Errorf("oversized payload: %v", err)
	}
}

func TestFeatures(t *testing.T) {
	chip := nrfsim.NewEther().NewChip()
	d, _ := newDevice(t, chip)
	if err := d.SetDynamicPayloads(true); err != nil {
		t.Fatal(err)
	}
	if err := d.EnableNoAck(true); err != nil {
		t.Fatal(err)
	}
	if err := d.EnableAckPayload(true); err != nil {
		t.Fatal(err)
	}
	f, err := d.Features()
	if err != nil {
		t.Fatal(err)
	}
	if want := nrf24l01.FeatureDynamicPayload | nrf24l01.FeatureDynamicAck | nrf24l01.FeatureAckPayload; f != want {
		t.Errorf("FEATURE %s, want %s", f, want)
	}
	if got := chip.Register(0x1c); got != 0x03 {
		t.Errorf("DYNPD=%#x", got)
	}
	if err := d.SetDynamicPayloads(false); err != nil {
		t.Fatal(err)
	}
	f, _ = d.Features()
	if f != nrf24l01.FeatureDynamicAck|nrf24l01.FeatureAckPayload || chip.Register(0x1c) != 0 {
		t.Errorf("after disabling dynamic payloads FEATURE %s DYNPD %#x", f, chip.Register(0x1c))
	}
}

func TestAutoAckAndPipes(t *testing.T) {
	chip := nrfsim.NewEther().NewChip()
	d, _ := newDevice(t, chip)
	if err := d.EnableAutoAck(2, false); err != nil {
		t.Fatal(err)
	}
	if got := chip.Register(0x01); got != 0x3b {
		t.Errorf("EN_AA=%#x", got)
	}
	if err := d.EnablePipe(4, true); err != nil {
		t.Fatal(err)
	}
	if got := chip.Register(0x02); got != 0x13 {
		t.Errorf("EN_RXADDR=%#x", got)
	}
	if err := d.EnablePipe(6, true); !errors.Is(err, nrf24l01.ErrBadArgument) {
		t.Errorf("pipe 6: %v", err)
	}
}

func TestConfigureRejectsInvalid(t *testing.T) {
	chip := nrfsim.NewEther().NewChip()
	d, _ := newDevice(t, chip)
	before := chip.Transactions()
	cfg := nrf24.DefaultConfig()
	cfg.Channel = 200
	err := d.Configure(cfg)
	if !errors.Is(err, nrf24l01.ErrBadArgument) {
		t.Errorf("got %v", err)
	}
	if chip.Transactions() != before {
		t.Error("invalid configuration reached the chip")
	}
}

func TestConfigure(t *testing.T) {
	chip := nrfsim.NewEther().NewChip()
	d, _ := newDevice(t, chip)
	cfg := nrf24.Config{
		Channel:         90,
		DataRate:        nrf24.DataRate250k,
		Power:           nrf24.PowerLow,
		CRC:             nrf24.CRC2Byte,
		RetryDelay:      6,
		RetryCount:      15,
		PayloadSize:     8,
		DynamicPayload:  true,
		NoAck:           true,
		ThisAddress:     []byte{1, 2, 3},
		TransmitAddress: []byte{4, 5, 6},
	}
	if err := d.Configure(cfg); err != nil {
		t.Fatal(err)
	}
	for _, tc := range []struct {
		reg  uint8
		want byte
	}{
		{0x00, 0x0f}, // EN_CRC|CRCO|PWR_UP|PRIM_RX
		{0x03, 0x01},
		{0x04, 0x6f},
		{0x05, 90},
		{0x06, 0x22},
		{0x11, 8},
		{0x12, 8},
		{0x1c, 0x03},
		{0x1d, 0x05},
	} {
		if got := chip.Register(tc.reg); got != tc.want {
			t.Errorf("register %#x = %#x, want %#x", tc.reg, got, tc.want)
		}
	}
	var tx [5]byte
	n, err := d.TransmitAddress(tx[:])
	if err != nil || !bytes.Equal(tx[:n], cfg.TransmitAddress) {
		t.Errorf("TX_ADDR %x, %v", tx[:n], err)
	}
}
