// Command firm-replay drives a firm.Client purely from a mock log
// capture file, with no real hardware involved, and dumps the decoded
// telemetry it observes.
package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	firm "github.com/NCSU-High-Powered-Rocketry-Club/FIRM-Client"
	"github.com/NCSU-High-Powered-Rocketry-Club/FIRM-Client/internal/config"
	"github.com/NCSU-High-Powered-Rocketry-Club/FIRM-Client/internal/mockdevice"
	"github.com/NCSU-High-Powered-Rocketry-Club/FIRM-Client/internal/mocklog"
	"github.com/NCSU-High-Powered-Rocketry-Club/FIRM-Client/internal/telemetry"
)

func main() {
	configPath := flag.String("config", "./firm_config.txt", "path to configuration file")
	capturePath := flag.String("capture", "", "mock log capture file (required)")
	flag.Parse()

	if *capturePath == "" {
		log.Fatal("firm-replay: -capture is required")
	}

	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("firm-replay: failed to load config: %v", err)
	}
	cfg := config.Get()

	dev := mockdevice.New()
	defer dev.Close()

	c := firm.New(firm.Config{Port: dev.ClientPort, QueueCapacity: cfg.QueueCapacity})
	if err := c.Start(); err != nil {
		log.Fatalf("firm-replay: start: %v", err)
	}
	defer c.Stop()

	enc := json.NewEncoder(os.Stdout)
	unsub := c.Subscribe(func(p telemetry.Packet) {
		if err := enc.Encode(p); err != nil {
			log.Printf("firm-replay: encode packet: %v", err)
		}
	})
	defer unsub()

	handle, err := c.StartMockLogStream(*capturePath, dev, mocklog.ReplayOptions{
		Speed:       cfg.MockLogSpeed,
		Realtime:    cfg.MockLogRealtime,
		BurstFrames: cfg.MockLogBurstFrames,
		BatchFrames: cfg.MockLogBatchFrames,
	})
	if err != nil {
		log.Fatalf("firm-replay: start replay: %v", err)
	}

	done := make(chan struct{})
	go func() {
		handle.Stop(true)
		close(done)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-done:
	case <-sigCh:
		log.Println("firm-replay: interrupted")
	}

	framesSent, replayErr := handle.Result()
	if replayErr != nil {
		log.Printf("firm-replay: replay ended with error: %v", replayErr)
	}
	log.Printf("firm-replay: replayed %d frames", framesSent)

	// Give the reader loop a moment to drain the last frames before exit.
	time.Sleep(50 * time.Millisecond)
}
