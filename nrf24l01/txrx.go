package nrf24l01

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/soypat/nrf24"
)

// Send switches to Transmit mode and queues payload in the TX FIFO. The chip
// starts transmitting right away; Send does not wait for it to finish, see
// WaitPacketSent. If noAck is true the packet requests no acknowledgment,
// which requires EnableNoAck on the transmitter. ErrTxFull is returned when
// the TX FIFO already held three packets and the payload was dropped.
func (d *Device) Send(payload []byte, noAck bool) error {
	if err := d.usable(); err != nil {
		return err
	}
	if len(payload) > nrf24.MaxPayload {
		return ErrPayloadTooLong
	}
	if noAck && !d.noAck {
		// The chip ignores W_TX_PAYLOAD_NOACK unless EN_DYN_ACK is set.
		return fmt.Errorf("%w: no-ack packets not enabled", ErrBadArgument)
	}
	err := d.PowerUpTx()
	if err != nil {
		return err
	}
	cmd := uint8(cmdW_TX_PAYLOAD)
	if noAck {
		cmd = cmdW_TX_PAYLOAD_NOACK
	}
	st, err := d.BurstWrite(cmd, payload)
	if err != nil {
		return err
	}
	if st&StatusTxFull != 0 {
		return ErrTxFull
	}
	return nil
}

// WriteAckPayload queues payload to be sent back with the next
// acknowledgment on pipe. Dynamic payloads and the EN_ACK_PAY feature must
// be enabled.
func (d *Device) WriteAckPayload(pipe Pipe, payload []byte) error {
	if err := d.usable(); err != nil {
		return err
	}
	if !pipe.valid() {
		return fmt.Errorf("%w: pipe %d", ErrBadArgument, pipe)
	}
	if len(payload) > nrf24.MaxPayload {
		return ErrPayloadTooLong
	}
	_, err := d.BurstWrite(ackPayloadCmd(pipe), payload)
	return err
}

// ReuseTxPayload makes the chip retransmit the last sent payload for as long
// as CE is held high in Transmit mode.
func (d *Device) ReuseTxPayload() error {
	_, err := d.Command(cmdREUSE_TX_PL)
	return err
}

// Completion is the outcome of a transmission.
type Completion struct {
	// Delivered is set when the packet was acknowledged, or sent if it
	// requested no acknowledgment.
	Delivered bool
	// RetriesExhausted is set when all retransmissions went unacknowledged.
	RetriesExhausted bool
}

// PollPacketSent checks once whether the packet being transmitted is done.
// When done the TX_DS and MAX_RT flags are cleared and, if retries were
// exhausted, the TX FIFO is flushed. It returns ErrNotTransmitting if the
// device is not in Transmit mode.
func (d *Device) PollPacketSent() (done bool, c Completion, err error) {
	if d.mode != nrf24.ModeTransmit {
		return false, c, ErrNotTransmitting
	}
	st, err := d.Status()
	if err != nil {
		return false, c, err
	}
	if st&(StatusTxDataSent|StatusMaxRetries) == 0 {
		return false, c, nil
	}
	_, err = d.WriteRegister(regSTATUS, uint8(StatusTxDataSent|StatusMaxRetries))
	if err != nil {
		return false, c, err
	}
	c.Delivered = st&StatusTxDataSent != 0
	if st&StatusMaxRetries != 0 {
		c.RetriesExhausted = true
		d.log.WithFields(logrus.Fields{"mode": d.mode, "status": st}).Warn("max retries reached, flushing TX FIFO")
		_, err = d.FlushTx()
	}
	return true, c, err
}

// WaitPacketSent blocks until the packet being transmitted is acknowledged
// or all retries fail. It returns nil on delivery, ErrTransmitFailed if no
// acknowledgment arrived and ErrNotTransmitting if the device is not in
// Transmit mode. It does not return while the chip stays silent, see
// WaitPacketSentContext.
func (d *Device) WaitPacketSent() error {
	return d.WaitPacketSentContext(context.Background())
}

// WaitPacketSentContext is like WaitPacketSent but gives up when ctx is
// done, returning ctx.Err() and leaving the status flags untouched.
func (d *Device) WaitPacketSentContext(ctx context.Context) error {
	if err := d.usable(); err != nil {
		return err
	}
	for {
		done, c, err := d.PollPacketSent()
		switch {
		case err != nil:
			return err
		case done && c.RetriesExhausted:
			return ErrTransmitFailed
		case done:
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		runtime.Gosched() // Yield to scheduler.
	}
}

// IsSending reports whether the device is out of Receive mode and neither
// TX_DS nor MAX_RT is set yet. It is the non-blocking form of the check
// WaitPacketSent loops on.
func (d *Device) IsSending() (bool, error) {
	if d.mode == nrf24.ModeReceive {
		return false, nil
	}
	st, err := d.Status()
	if err != nil {
		return false, err
	}
	return st&(StatusTxDataSent|StatusMaxRetries) == 0, nil
}

// TxCounters reads OBSERVE_TX: the count of lost packets since the channel
// was last set (saturates at 15) and the retransmissions of the last packet.
func (d *Device) TxCounters() (lost, retries uint8, err error) {
	v, err := d.ReadRegister(regOBSERVE_TX)
	return (v & obsPLOS_MASK) >> 4, v & obsARC_CNT_MASK, err
}

// Available reports whether a received packet is waiting in the RX FIFO. It
// does not change the mode. A payload reporting a width over 32 bytes is
// corrupt: the RX FIFO is flushed and Available returns false.
func (d *Device) Available() (bool, error) {
	if err := d.usable(); err != nil {
		return false, err
	}
	fifo, err := d.FIFOStatus()
	if err != nil || fifo&FIFORxEmpty != 0 {
		return false, err
	}
	width, err := d.rxWidth()
	if err != nil {
		return false, err
	}
	if width > nrf24.MaxPayload {
		d.log.WithFields(logrus.Fields{"mode": d.mode, "width": width}).WithError(ErrCorruptReceive).Warn("flushing RX FIFO")
		_, err = d.FlushRx()
		return false, err
	}
	return true, nil
}

// WaitAvailable switches to Receive mode and blocks until a packet arrives.
func (d *Device) WaitAvailable() error {
	return d.WaitAvailableContext(context.Background())
}

// WaitAvailableTimeout switches to Receive mode and waits up to timeout
// for a packet. It returns false if none arrived in time. The budget is
// measured with the wrapping millisecond counter of the clock and rounded up
// to whole milliseconds. A timeout <= 0 checks Available once.
func (d *Device) WaitAvailableTimeout(timeout time.Duration) (bool, error) {
	if err := d.usable(); err != nil {
		return false, err
	}
	err := d.PowerUpRx()
	if err != nil {
		return false, err
	}
	if timeout <= 0 {
		return d.Available()
	}
	ms := (timeout + time.Millisecond - 1) / time.Millisecond
	budget := uint32(math.MaxUint32)
	if ms < math.MaxUint32 {
		budget = uint32(ms)
	}
	start := d.clock.Millis()
	for d.clock.Millis()-start < budget {
		ok, err := d.Available()
		if ok || err != nil {
			return ok, err
		}
		runtime.Gosched()
	}
	return false, nil
}

// WaitAvailableContext switches to Receive mode and waits for a packet until
// ctx is done. On deadline the returned error wraps both ErrTimeout and
// ctx.Err().
func (d *Device) WaitAvailableContext(ctx context.Context) error {
	if err := d.usable(); err != nil {
		return err
	}
	err := d.PowerUpRx()
	if err != nil {
		return err
	}
	for {
		ok, err := d.Available()
		if ok || err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %w", ErrTimeout, err)
		}
		runtime.Gosched()
	}
}

// Recv reads the packet at the head of the RX FIFO into buf. ok is false if
// no packet was available, in which case buf is untouched. A zero length
// packet is valid. buf must be able to hold the packet or ErrShortBuffer is
// returned and the packet stays in the FIFO.
func (d *Device) Recv(buf []byte) (n int, ok bool, err error) {
	if err := d.usable(); err != nil {
		return 0, false, err
	}
	_, err = d.WriteRegister(regSTATUS, uint8(StatusRxDataReady))
	if err != nil {
		return 0, false, err
	}
	ok, err = d.Available()
	if !ok || err != nil {
		return 0, false, err
	}
	width, err := d.rxWidth()
	if err != nil {
		return 0, false, err
	}
	if len(buf) < width {
		return 0, false, ErrShortBuffer
	}
	err = d.BurstRead(cmdR_RX_PAYLOAD, buf[:width])
	if err != nil {
		return 0, false, err
	}
	return width, true, nil
}

// RecvPipe is like Recv and also returns the pipe the packet arrived on.
func (d *Device) RecvPipe(buf []byte) (n int, pipe Pipe, ok bool, err error) {
	st, err := d.Status()
	if err != nil {
		return 0, 0, false, err
	}
	pipe, _ = st.RxPipe()
	n, ok, err = d.Recv(buf)
	return n, pipe, ok, err
}

// CarrierDetect reads the received power detector. It reports whether a
// signal above -64dBm was present on the channel during the last receive.
func (d *Device) CarrierDetect() (bool, error) {
	v, err := d.ReadRegister(regRPD)
	return v&1 != 0, err
}

func (d *Device) rxWidth() (int, error) {
	var w [1]byte
	err := d.BurstRead(cmdR_RX_PL_WID, w[:])
	return int(w[0]), err
}
