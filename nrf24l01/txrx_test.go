package nrf24l01_test

import (
	"bytes"
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/soypat/nrf24"
	"github.com/soypat/nrf24/internal/nrfsim"
	"github.com/soypat/nrf24/nrf24l01"
)

func TestSendRecvAllLengths(t *testing.T) {
	l := newLink(t)
	buf := make([]byte, nrf24.MaxPayload)
	for n := 0; n <= nrf24.MaxPayload; n++ {
		payload := make([]byte, n)
		for i := range payload {
			payload[i] = byte(n*7 + i)
		}
		if err := l.a.Send(payload, false); err != nil {
			t.Fatalf("len %d: Send: %v", n, err)
		}
		if err := l.a.WaitPacketSent(); err != nil {
			t.Fatalf("len %d: WaitPacketSent: %v", n, err)
		}
		got, ok, err := l.b.Recv(buf)
		if err != nil || !ok {
			t.Fatalf("len %d: Recv ok=%v err=%v", n, ok, err)
		}
		if got != n || !bytes.Equal(buf[:got], payload) {
			t.Errorf("len %d: received %d bytes %x, want %x", n, got, buf[:got], payload)
		}
	}
	if l.a.Mode() != nrf24.ModeTransmit || l.b.Mode() != nrf24.ModeReceive {
		t.Errorf("modes a=%s b=%s", l.a.Mode(), l.b.Mode())
	}
}

func TestScenarioTwoHandles(t *testing.T) {
	// b polls on its own goroutine with a real clock.
	l := newLink(t, nrf24l01.WithClock(nrf24l01.SystemClock()))
	type result struct {
		ok  bool
		err error
	}
	done := make(chan result, 1)
	go func() {
		ok, err := l.b.WaitAvailableTimeout(1000 * time.Millisecond)
		done <- result{ok, err}
	}()
	if err := l.a.Send([]byte{0xaa, 0xbb}, false); err != nil {
		t.Fatal(err)
	}
	if err := l.a.WaitPacketSent(); err != nil {
		t.Fatal(err)
	}
	res := <-done
	if !res.ok || res.err != nil {
		t.Fatalf("WaitAvailableTimeout ok=%v err=%v", res.ok, res.err)
	}
	var buf [32]byte
	n, ok, err := l.b.Recv(buf[:])
	if err != nil || !ok || !bytes.Equal(buf[:n], []byte{0xaa, 0xbb}) {
		t.Errorf("Recv got %x ok=%v err=%v", buf[:n], ok, err)
	}
}

func TestSendNoAck(t *testing.T) {
	l := newLink(t)
	if err := l.a.Send([]byte{1}, true); !errors.Is(err, nrf24l01.ErrBadArgument) {
		t.Errorf("no-ack send without EnableNoAck: %v", err)
	}
	if err := l.a.EnableNoAck(true); err != nil {
		t.Fatal(err)
	}
	// b never acknowledges.
	if err := l.b.EnableAutoAck(1, false); err != nil {
		t.Fatal(err)
	}
	if err := l.a.Send([]byte{1, 2, 3}, true); err != nil {
		t.Fatal(err)
	}
	if err := l.a.WaitPacketSent(); err != nil {
		t.Fatalf("no-ack WaitPacketSent: %v", err)
	}
	var buf [32]byte
	n, ok, err := l.b.Recv(buf[:])
	if !ok || err != nil || n != 3 {
		t.Errorf("Recv n=%d ok=%v err=%v", n, ok, err)
	}
	// Nobody listening at all.
	if err := l.b.PowerDown(); err != nil {
		t.Fatal(err)
	}
	if err := l.a.Send([]byte{4}, true); err != nil {
		t.Fatal(err)
	}
	if err := l.a.WaitPacketSent(); err != nil {
		t.Fatalf("no-ack WaitPacketSent without receiver: %v", err)
	}
}

func TestMaxRetries(t *testing.T) {
	l := newLink(t)
	l.cb.Disconnect()
	if err := l.a.Send([]byte("lost"), false); err != nil {
		t.Fatal(err)
	}
	err := l.a.WaitPacketSent()
	if !errors.Is(err, nrf24l01.ErrTransmitFailed) || nrf24l01.Kind(err) != nrf24l01.KindTransmitFailed {
		t.Fatalf("got %v", err)
	}
	if pending := l.ca.Pending(); len(pending) != 0 {
		t.Errorf("TX FIFO not flushed: %x", pending)
	}
	if st := l.ca.Register(0x07); st&0x30 != 0 {
		t.Errorf("status flags not cleared: %#x", st)
	}
	lost, retries, err := l.a.TxCounters()
	if err != nil || lost != 1 || retries != 3 {
		t.Errorf("TxCounters lost=%d retries=%d err=%v", lost, retries, err)
	}
	entry := l.hookA.LastEntry()
	if entry == nil || entry.Level != logrus.WarnLevel {
		t.Error("max retries not logged")
	}
}

func TestWaitPacketSentNotTransmitting(t *testing.T) {
	chip := nrfsim.NewEther().NewChip()
	d, _ := newDevice(t, chip)
	before := chip.Transactions()
	err := d.WaitPacketSent()
	if !errors.Is(err, nrf24l01.ErrNotTransmitting) {
		t.Fatalf("got %v", err)
	}
	if chip.Transactions() != before {
		t.Errorf("%d bus transactions, want none", chip.Transactions()-before)
	}
	if sending, err := d.IsSending(); sending || err != nil {
		t.Errorf("IsSending in receive mode: %v %v", sending, err)
	}
}

func TestWaitPacketSentContext(t *testing.T) {
	l := newLink(t)
	l.ca.Jam(true)
	if err := l.a.Send([]byte{9}, false); err != nil {
		t.Fatal(err)
	}
	sending, err := l.a.IsSending()
	if err != nil || !sending {
		t.Errorf("IsSending while jammed: %v %v", sending, err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err = l.a.WaitPacketSentContext(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("got %v", err)
	}
	if len(l.ca.Pending()) != 1 {
		t.Error("packet must stay queued after cancellation")
	}
	l.ca.Jam(false)
	if err := l.a.WaitPacketSent(); err != nil {
		t.Fatal(err)
	}
	// Flags were cleared and the device is still in Transmit mode.
	if sending, err := l.a.IsSending(); !sending || err != nil {
		t.Errorf("IsSending after cleared flags: %v %v", sending, err)
	}
}

func TestIsSendingCompletionFlag(t *testing.T) {
	l := newLink(t)
	if err := l.a.Send([]byte{1}, false); err != nil {
		t.Fatal(err)
	}
	if sending, err := l.a.IsSending(); sending || err != nil {
		t.Errorf("IsSending after delivery: %v %v", sending, err)
	}
	// TX_DS stays set while a second packet waits in the TX FIFO.
	l.ca.Jam(true)
	if err := l.a.Send([]byte{2}, false); err != nil {
		t.Fatal(err)
	}
	if st := l.ca.Register(0x07); st&0x20 == 0 || len(l.ca.Pending()) != 1 {
		t.Fatalf("STATUS=%#x pending=%d", st, len(l.ca.Pending()))
	}
	if sending, err := l.a.IsSending(); sending || err != nil {
		t.Errorf("IsSending with TX_DS set: %v %v", sending, err)
	}
	if err := l.a.PowerDown(); err != nil {
		t.Fatal(err)
	}
	if sending, _ := l.a.IsSending(); sending {
		t.Error("IsSending ignored TX_DS in power down")
	}
}

func TestPollPacketSent(t *testing.T) {
	l := newLink(t)
	if err := l.a.Send([]byte{1}, false); err != nil {
		t.Fatal(err)
	}
	done, c, err := l.a.PollPacketSent()
	if err != nil || !done || !c.Delivered || c.RetriesExhausted {
		t.Errorf("done=%v completion=%+v err=%v", done, c, err)
	}
	// Flags were cleared by the first poll.
	done, _, err = l.a.PollPacketSent()
	if err != nil || done {
		t.Errorf("second poll done=%v err=%v", done, err)
	}
}

func TestSendTxFull(t *testing.T) {
	l := newLink(t)
	l.ca.Jam(true)
	for i := 0; i < 3; i++ {
		if err := l.a.Send([]byte{byte(i)}, false); err != nil {
			t.Fatalf("packet %d: %v", i, err)
		}
	}
	err := l.a.Send([]byte{3}, false)
	if !errors.Is(err, nrf24l01.ErrTxFull) {
		t.Errorf("got %v", err)
	}
	if n := len(l.ca.Pending()); n != 3 {
		t.Errorf("%d packets queued", n)
	}
}

func TestSendPayloadTooLong(t *testing.T) {
	l := newLink(t)
	err := l.a.Send(make([]byte, nrf24.MaxPayload+1), false)
	if !errors.Is(err, nrf24l01.ErrPayloadTooLong) {
		t.Errorf("got %v", err)
	}
	if l.a.Mode() != nrf24.ModeReceive {
		t.Error("rejected send changed mode")
	}
}

func TestRecvCorruptWidth(t *testing.T) {
	chip := nrfsim.NewEther().NewChip()
	d, hook := newDevice(t, chip)
	for width := nrf24.MaxPayload + 1; width < 256; width += 37 {
		chip.Inject(1, []byte{1, 2, 3})
		chip.ForceRxWidth(width)
		buf := bytes.Repeat([]byte{0xee}, 64)
		n, ok, err := d.Recv(buf)
		if ok || err != nil || n != 0 {
			t.Fatalf("width %d: n=%d ok=%v err=%v", width, n, ok, err)
		}
		if !bytes.Equal(buf, bytes.Repeat([]byte{0xee}, 64)) {
			t.Errorf("width %d: buffer modified", width)
		}
		if chip.Register(0x17)&0x01 == 0 {
			t.Errorf("width %d: RX FIFO not flushed", width)
		}
		entry := hook.LastEntry()
		if entry == nil || entry.Data[logrus.ErrorKey] != nrf24l01.ErrCorruptReceive {
			t.Errorf("width %d: corrupt entry not logged", width)
		}
	}
}

func TestRecvEmpty(t *testing.T) {
	chip := nrfsim.NewEther().NewChip()
	d, _ := newDevice(t, chip)
	buf := []byte{7, 7, 7}
	n, ok, err := d.Recv(buf)
	if ok || err != nil || n != 0 || !bytes.Equal(buf, []byte{7, 7, 7}) {
		t.Errorf("n=%d ok=%v err=%v buf=%v", n, ok, err, buf)
	}
	if avail, err := d.Available(); avail || err != nil {
		t.Errorf("Available on empty FIFO: %v %v", avail, err)
	}
}

func TestRecvShortBuffer(t *testing.T) {
	chip := nrfsim.NewEther().NewChip()
	d, _ := newDevice(t, chip)
	payload := []byte("0123456789")
	chip.Inject(1, payload)
	_, ok, err := d.Recv(make([]byte, 4))
	if ok || !errors.Is(err, nrf24l01.ErrShortBuffer) {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	buf := make([]byte, 32)
	n, pipe, ok, err := d.RecvPipe(buf)
	if !ok || err != nil || pipe != 1 || !bytes.Equal(buf[:n], payload) {
		t.Errorf("RecvPipe n=%d pipe=%d ok=%v err=%v", n, pipe, ok, err)
	}
}

func TestWaitAvailableTimeoutWraparound(t *testing.T) {
	chip := nrfsim.NewEther().NewChip()
	clk := &fakeClock{}
	d, _ := newDevice(t, chip, nrf24l01.WithClock(clk))
	for _, tc := range []struct {
		timeout time.Duration
		budget  uint32
	}{
		{timeout: -1 * time.Millisecond, budget: 0},
		{timeout: 0, budget: 0},
		{timeout: 500 * time.Microsecond, budget: 1},
		{timeout: 1 * time.Millisecond, budget: 1},
		{timeout: 50 * time.Millisecond, budget: 50},
		{timeout: 1000 * time.Millisecond, budget: 1000},
	} {
		clk.ms = math.MaxUint32 - 10
		before := clk.ms
		ok, err := d.WaitAvailableTimeout(tc.timeout)
		if ok || err != nil {
			t.Fatalf("timeout %s: ok=%v err=%v", tc.timeout, ok, err)
		}
		elapsed := clk.ms - before
		if elapsed < tc.budget || elapsed > tc.budget+3 {
			t.Errorf("timeout %s: elapsed %dms, want about %dms", tc.timeout, elapsed, tc.budget)
		}
	}
	if d.Mode() != nrf24.ModeReceive {
		t.Errorf("mode %s", d.Mode())
	}
	chip.Inject(0, []byte{1})
	ok, err := d.WaitAvailableTimeout(time.Second)
	if !ok || err != nil {
		t.Errorf("with packet waiting: ok=%v err=%v", ok, err)
	}
	ok, err = d.WaitAvailableTimeout(-time.Second)
	if !ok || err != nil {
		t.Errorf("expired timeout with packet waiting: ok=%v err=%v", ok, err)
	}
}

func TestWaitAvailableContext(t *testing.T) {
	chip := nrfsim.NewEther().NewChip()
	d, _ := newDevice(t, chip)
	if err := d.PowerUpTx(); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := d.WaitAvailableContext(ctx)
	if !errors.Is(err, nrf24l01.ErrTimeout) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("got %v", err)
	}
	if nrf24l01.Kind(err) != nrf24l01.KindTimeout {
		t.Errorf("kind %s", nrf24l01.Kind(err))
	}
	if d.Mode() != nrf24.ModeReceive {
		t.Errorf("mode %s, want rx", d.Mode())
	}
	chip.Inject(1, []byte{1})
	if err := d.WaitAvailable(); err != nil {
		t.Error(err)
	}
}

func TestAckPayload(t *testing.T) {
	l := newLink(t)
	for _, d := range []*nrf24l01.Device{l.a, l.b} {
		if err := d.SetDynamicPayloads(true); err != nil {
			t.Fatal(err)
		}
		if err := d.EnableAckPayload(true); err != nil {
			t.Fatal(err)
		}
	}
	if err := l.b.WriteAckPayload(1, []byte("pong")); err != nil {
		t.Fatal(err)
	}
	if err := l.a.Send([]byte("ping"), false); err != nil {
		t.Fatal(err)
	}
	if err := l.a.WaitPacketSent(); err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, 32)
	n, ok, err := l.a.Recv(buf)
	if !ok || err != nil || string(buf[:n]) != "pong" {
		t.Errorf("ack payload %q ok=%v err=%v", buf[:n], ok, err)
	}
	n, ok, err = l.b.Recv(buf)
	if !ok || err != nil || string(buf[:n]) != "ping" {
		t.Errorf("payload %q ok=%v err=%v", buf[:n], ok, err)
	}
	if err := l.b.WriteAckPayload(6, nil); !errors.Is(err, nrf24l01.ErrBadArgument) {
		t.Errorf("pipe 6: %v", err)
	}
}

func TestCarrierDetect(t *testing.T) {
	l := newLink(t)
	if cd, _ := l.b.CarrierDetect(); cd {
		t.Error("carrier before any transmission")
	}
	if err := l.a.Send([]byte{1}, false); err != nil {
		t.Fatal(err)
	}
	if err := l.a.WaitPacketSent(); err != nil {
		t.Fatal(err)
	}
	if cd, err := l.b.CarrierDetect(); !cd || err != nil {
		t.Errorf("carrier after transmission: %v %v", cd, err)
	}
}

func TestMismatchedChannelNotHeard(t *testing.T) {
	l := newLink(t)
	if err := l.b.SetChannel(3); err != nil {
		t.Fatal(err)
	}
	if err := l.a.Send([]byte{1}, false); err != nil {
		t.Fatal(err)
	}
	if err := l.a.WaitPacketSent(); !errors.Is(err, nrf24l01.ErrTransmitFailed) {
		t.Errorf("got %v", err)
	}
	if avail, _ := l.b.Available(); avail {
		t.Error("packet heard on another channel")
	}
}
