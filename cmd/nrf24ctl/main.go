// Command nrf24ctl talks to an nRF24L01 radio wired to a Linux host.
//
//	nrf24ctl [flags] dump
//	nrf24ctl [flags] send <hex payload>
//	nrf24ctl [flags] listen
//	nrf24ctl [flags] ping
//
// With -sim the commands run against a simulated radio with a simulated
// peer that listens on -dest and echoes every packet back.
package main

import (
	"context"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/soypat/nrf24"
	"github.com/soypat/nrf24/nrf24l01"
	"github.com/soypat/nrf24/periphhost"
)

var (
	flagSPI     = flag.String("spi", "", "SPI port name, empty for the first one available")
	flagCE      = flag.String("ce", "GPIO25", "GPIO line wired to CE")
	flagCS      = flag.String("cs", "", "GPIO line wired to CSN if the SPI port does not drive it")
	flagChannel = flag.Uint("channel", 2, "RF channel 0-125")
	flagRate    = flag.String("rate", "1M", "air data rate: 250k, 1M or 2M")
	flagPower   = flag.String("power", "max", "output power: min, low, high or max")
	flagAddr    = flag.String("addr", "a1a2a3a4a5", "address this radio listens on, hex")
	flagDest    = flag.String("dest", "0102030405", "destination address, hex")
	flagTimeout = flag.Duration("timeout", time.Second, "time to wait for a transmission or reply")
	flagSim     = flag.Bool("sim", false, "use a simulated radio and peer")
	flagVerbose = flag.Bool("v", false, "log debug output")
)

var errUsage = errors.New("usage: nrf24ctl [flags] dump|send <hex>|listen|ping")

func main() {
	flag.Parse()
	log := logrus.New()
	if *flagVerbose {
		log.SetLevel(logrus.DebugLevel)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := run(ctx, log, flag.Args())
	stop()
	if err != nil {
		log.Error(err)
		os.Exit(1)
	}
}

func run(ctx context.Context, log *logrus.Logger, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	cfg, err := config()
	if err != nil {
		return err
	}
	var (
		dev     *nrf24l01.Device
		release func()
	)
	if *flagSim {
		dev, release, err = openSim(ctx, cfg, log)
	} else {
		dev, release, err = openHost(cfg, log)
	}
	if err != nil {
		return err
	}
	defer release()
	if *flagVerbose {
		if err := dev.LogRegisters(); err != nil {
			log.WithError(err).Warn("reading registers")
		}
	}

	switch args[0] {
	case "dump":
		regs, err := dev.Dump()
		if err != nil {
			return err
		}
		for _, rv := range regs {
			fmt.Println(rv)
		}
		return nil
	case "send":
		if len(args) != 2 {
			return errUsage
		}
		payload, err := hex.DecodeString(args[1])
		if err != nil {
			return fmt.Errorf("payload: %w", err)
		}
		return send(ctx, log, dev, payload)
	case "listen":
		return listen(ctx, dev)
	case "ping":
		return ping(ctx, dev)
	}
	return errUsage
}

func config() (nrf24.Config, error) {
	cfg := nrf24.DefaultConfig()
	cfg.Channel = uint8(*flagChannel)
	cfg.DynamicPayload = true
	switch strings.ToLower(*flagRate) {
	case "250k":
		cfg.DataRate = nrf24.DataRate250k
		cfg.RetryDelay = nrf24.MinRetryDelay(nrf24.DataRate250k, 0)
	case "1m":
		cfg.DataRate = nrf24.DataRate1M
	case "2m":
		cfg.DataRate = nrf24.DataRate2M
	default:
		return cfg, fmt.Errorf("unknown data rate %q", *flagRate)
	}
	switch strings.ToLower(*flagPower) {
	case "min":
		cfg.Power = nrf24.PowerMin
	case "low":
		cfg.Power = nrf24.PowerLow
	case "high":
		cfg.Power = nrf24.PowerHigh
	case "max":
		cfg.Power = nrf24.PowerMax
	default:
		return cfg, fmt.Errorf("unknown power %q", *flagPower)
	}
	var err error
	cfg.ThisAddress, err = hex.DecodeString(*flagAddr)
	if err != nil {
		return cfg, fmt.Errorf("addr: %w", err)
	}
	cfg.TransmitAddress, err = hex.DecodeString(*flagDest)
	if err != nil {
		return cfg, fmt.Errorf("dest: %w", err)
	}
	return cfg, cfg.Validate()
}

func openHost(cfg nrf24.Config, log *logrus.Logger) (*nrf24l01.Device, func(), error) {
	h, err := periphhost.Open(periphhost.Options{
		SPI:    *flagSPI,
		CE:     *flagCE,
		CS:     *flagCS,
		Logger: log,
	})
	if err != nil {
		return nil, nil, err
	}
	dev := h.Device(nrf24l01.WithLogger(log))
	if err = dev.Init(); err == nil {
		err = dev.Configure(cfg)
	}
	if err != nil {
		h.Close()
		return nil, nil, err
	}
	release := func() {
		dev.Close()
		h.Close()
	}
	return dev, release, nil
}

func send(ctx context.Context, log logrus.FieldLogger, dev *nrf24l01.Device, payload []byte) error {
	start := time.Now()
	err := dev.Send(payload, false)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, *flagTimeout)
	defer cancel()
	err = dev.WaitPacketSentContext(ctx)
	lost, retries, cerr := dev.TxCounters()
	if cerr != nil {
		log.WithError(cerr).Warn("reading OBSERVE_TX")
	}
	if err != nil {
		return fmt.Errorf("send after %d retries: %w", retries, err)
	}
	fmt.Printf("sent %d bytes in %s, %d retries, %d lost on channel\n", len(payload), time.Since(start), retries, lost)
	return nil
}

func listen(ctx context.Context, dev *nrf24l01.Device) error {
	var buf [nrf24.MaxPayload]byte
	for {
		err := dev.WaitAvailableContext(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		n, pipe, ok, err := dev.RecvPipe(buf[:])
		if err != nil {
			return err
		}
		if ok {
			fmt.Printf("%s pipe %d: %x\n", time.Now().Format(time.TimeOnly), pipe, buf[:n])
		}
	}
}

func ping(ctx context.Context, dev *nrf24l01.Device) error {
	var buf [nrf24.MaxPayload]byte
	for seq := 0; ; seq++ {
		if ctx.Err() != nil {
			return nil
		}
		payload := fmt.Appendf(nil, "ping %d", seq)
		start := time.Now()
		if err := dev.Send(payload, false); err != nil {
			return err
		}
		sendCtx, cancel := context.WithTimeout(ctx, *flagTimeout)
		err := dev.WaitPacketSentContext(sendCtx)
		cancel()
		switch nrf24l01.Kind(err) {
		case nrf24l01.KindNone:
		case nrf24l01.KindTransmitFailed:
			fmt.Printf("seq %d: no acknowledgment\n", seq)
			time.Sleep(time.Second)
			continue
		default:
			return err
		}
		ok, err := dev.WaitAvailableTimeout(*flagTimeout)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Printf("seq %d: no reply after %s\n", seq, *flagTimeout)
			continue
		}
		n, _, err := dev.Recv(buf[:])
		if err != nil {
			return err
		}
		fmt.Printf("seq %d: %q in %s\n", seq, buf[:n], time.Since(start))
		time.Sleep(time.Second)
	}
}
