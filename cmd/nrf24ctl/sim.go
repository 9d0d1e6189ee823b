package main

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/soypat/nrf24"
	"github.com/soypat/nrf24/internal/nrfsim"
	"github.com/soypat/nrf24/nrf24l01"
)

// echoTurnaround gives the other end time to switch to receive before the
// echo goes out.
const echoTurnaround = 2 * time.Millisecond

// openSim returns a simulated radio configured with cfg. A second radio
// listens on cfg.TransmitAddress and echoes back every packet until ctx is
// done or the returned release function is called.
func openSim(ctx context.Context, cfg nrf24.Config, log *logrus.Logger) (*nrf24l01.Device, func(), error) {
	ether := nrfsim.NewEther()
	chip, peerChip := ether.NewChip(), ether.NewChip()
	dev := nrf24l01.New(chip, chip.CS, chip.CE, nrf24l01.WithLogger(log))
	peer := nrf24l01.New(peerChip, peerChip.CS, peerChip.CE,
		nrf24l01.WithLogger(log.WithField("peer", true)))

	peerCfg := cfg
	peerCfg.ThisAddress, peerCfg.TransmitAddress = cfg.TransmitAddress, cfg.ThisAddress
	for _, s := range []struct {
		d   *nrf24l01.Device
		cfg nrf24.Config
	}{{dev, cfg}, {peer, peerCfg}} {
		err := s.d.Init()
		if err == nil {
			err = s.d.Configure(s.cfg)
		}
		if err != nil {
			return nil, nil, err
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		echo(ctx, peer, log)
	}()
	release := func() {
		cancel()
		wg.Wait()
		peer.Close()
		dev.Close()
	}
	return dev, release, nil
}

func echo(ctx context.Context, peer *nrf24l01.Device, log logrus.FieldLogger) {
	var buf [nrf24.MaxPayload]byte
	for {
		if err := peer.WaitAvailableContext(ctx); err != nil {
			return
		}
		n, ok, err := peer.Recv(buf[:])
		if err != nil {
			log.WithError(err).Error("peer receive")
			return
		}
		if !ok {
			continue
		}
		time.Sleep(echoTurnaround)
		if err := peer.Send(buf[:n], false); err != nil {
			log.WithError(err).Error("peer send")
			return
		}
		if err := peer.WaitPacketSentContext(ctx); err != nil {
			log.WithError(err).Debug("echo not delivered")
		}
	}
}
