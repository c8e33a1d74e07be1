package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cenkalti/backoff"

	"github.com/quickflex/emgdaq/internal/device"
	"github.com/quickflex/emgdaq/internal/dsp"
	"github.com/quickflex/emgdaq/internal/emg"
	"github.com/quickflex/emgdaq/internal/recorder"
	"github.com/quickflex/emgdaq/internal/server"
	"github.com/quickflex/emgdaq/internal/transport"
)

func main() {
	configPath := flag.String("config", "/etc/emgdaq/config.yaml", "Path to config file")
	demo := flag.Bool("demo", false, "Run against a simulated sensor")
	listenAddr := flag.String("listen", "", "Override listen address (e.g. :8090)")
	port := flag.String("port", "", "Override serial port")
	listPorts := flag.Bool("list-ports", false, "List candidate sensor ports and exit")
	flag.Parse()

	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	log.Println("[main] emgdaq starting")

	if *listPorts {
		candidates, err := transport.EnumerateCandidates()
		if err != nil {
			log.Fatalf("[main] %v", err)
		}
		for _, c := range candidates {
			fmt.Println(c)
		}
		return
	}

	cfg := server.LoadConfig(*configPath)
	if *listenAddr != "" {
		cfg.Server.ListenAddr = *listenAddr
	}
	if *port != "" {
		cfg.Sensor.Port = *port
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("[main] received %v, shutting down", sig)
		cancel()
	}()

	reader, err := buildReader(ctx, cfg, *demo)
	if err != nil {
		log.Fatalf("[main] sensor connection failed: %v", err)
	}
	defer reader.Stop()

	if err := reader.Start(); err != nil {
		log.Fatalf("[main] start acquisition: %v", err)
	}

	var rec *recorder.Recorder
	if cfg.Recording.Enabled {
		rec, err = recorder.New(cfg.Recording.Path, reader.Fs())
		if err != nil {
			log.Printf("[main] warning: recording disabled: %v", err)
		} else {
			defer rec.Close()
		}
	}

	srv := server.New(cfg, reader)
	go func() {
		if err := srv.Run(ctx); err != nil {
			log.Printf("[main] server exited: %v", err)
			cancel()
		}
	}()

	runTickLoop(ctx, reader, srv, rec)
	log.Println("[main] bye")
}

// buildReader constructs the acquisition session. Real hardware connects
// under exponential backoff; a flaky USB enumeration right after plug-in is
// common and worth a few retries. The demo path uses the simulated sensor.
func buildReader(ctx context.Context, cfg *server.Config, demo bool) (*emg.Reader, error) {
	emgCfg := emg.Config{
		LowCut:            cfg.Filter.LowCut,
		HighCut:           cfg.Filter.HighCut,
		Notch:             cfg.Filter.Notch,
		SampleRateVariant: cfg.Sensor.Rate,
		Port:              cfg.Sensor.Port,
	}

	if demo {
		log.Println("[main] demo mode: simulated sensor")
		return emg.NewWithTransport(emgCfg, transport.NewSim(transport.SimConfig{}))
	}

	var reader *emg.Reader
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 2 * time.Minute
	err := backoff.Retry(func() error {
		var err error
		reader, err = emg.New(emgCfg)
		if err != nil {
			log.Printf("[main] connect failed: %v (will retry)", err)
		}
		return err
	}, backoff.WithContext(b, ctx))
	return reader, err
}

// runTickLoop polls the snapshot once per IMU tick, slices out the newest
// EMG samples of that tick and fans them out to the WebSocket hub and the
// recorder. This is the reference host loop; external consumers polling the
// snapshot interface directly follow the same pattern.
func runTickLoop(ctx context.Context, reader *emg.Reader, srv *server.Server, rec *recorder.Recorder) {
	imuRate := reader.IMURate()
	perTick := reader.Fs() / imuRate
	ticker := time.NewTicker(time.Second / time.Duration(imuRate))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if reader.DeviceState() == device.Terminated {
			log.Println("[main] device terminated, stopping tick loop")
			return
		}

		snap := reader.Snapshot()
		if len(snap.Envelope) == 0 {
			continue // window not full yet
		}

		frame := &server.TickFrame{
			Stamp:         time.Now().UnixMilli(),
			Raw:           lastN(snap.Raw, perTick),
			Bandpass:      lastN(snap.Bandpass, perTick),
			Notch:         lastN(snap.Notch, perTick),
			Envelope:      lastN(snap.Envelope, perTick),
			IMU:           snap.IMU,
			Spectrum:      dsp.Spectrum(snap.Notch),
			SpectrumFreqs: dsp.SpectrumFreqs(len(snap.Notch), float64(reader.Fs())),
		}
		srv.Broadcast(frame)

		if rec != nil {
			rec.Append(frame.Raw, frame.Bandpass, frame.Notch, frame.Envelope)
		}
	}
}

func lastN(x []float64, n int) []float64 {
	if len(x) <= n {
		return x
	}
	return x[len(x)-n:]
}
