// Command firmctl connects to a FIRM device over serial and either
// dumps decoded telemetry to stdout or issues a single command.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	firm "github.com/NCSU-High-Powered-Rocketry-Club/FIRM-Client"
	"github.com/NCSU-High-Powered-Rocketry-Club/FIRM-Client/internal/config"
	"github.com/NCSU-High-Powered-Rocketry-Club/FIRM-Client/internal/serialio"
	"github.com/NCSU-High-Powered-Rocketry-Club/FIRM-Client/internal/telemetry"
)

func main() {
	configPath := flag.String("config", "./firm_config.txt", "path to configuration file")
	action := flag.String("action", "dump", "dump|info|config|calibration|cancel|reboot")
	flag.Parse()

	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("firmctl: failed to load config: %v", err)
	}
	cfg := config.Get()

	conn, err := serialio.Open(serialio.Options{
		PortName:    cfg.SerialPort,
		BaudRate:    uint(cfg.SerialBaudRate),
		ReadTimeout: time.Duration(cfg.SerialReadTimeoutMS) * time.Millisecond,
	})
	if err != nil {
		log.Fatalf("firmctl: open port: %v", err)
	}

	c := firm.New(firm.Config{Port: conn, QueueCapacity: cfg.QueueCapacity})
	if err := c.Start(); err != nil {
		log.Fatalf("firmctl: start: %v", err)
	}
	defer c.Stop()

	timeout := time.Duration(cfg.CommandTimeoutMS) * time.Millisecond

	switch *action {
	case "dump":
		runDump(c)
	case "info":
		printResult(c.GetDeviceInfo(timeout))
	case "config":
		printResult(c.GetDeviceConfig(timeout))
	case "calibration":
		printResult(c.GetCalibration(timeout))
	case "cancel":
		printResult(c.Cancel(timeout))
	case "reboot":
		if err := c.Reboot(); err != nil {
			log.Fatalf("firmctl: reboot: %v", err)
		}
	default:
		log.Fatalf("firmctl: unknown -action %q", *action)
	}
}

// runDump subscribes to the client's telemetry stream and prints every
// packet as a single line of JSON until interrupted.
func runDump(c *firm.Client) {
	enc := json.NewEncoder(os.Stdout)
	unsub := c.Subscribe(func(p telemetry.Packet) {
		if err := enc.Encode(p); err != nil {
			log.Printf("firmctl: encode packet: %v", err)
		}
	})
	defer unsub()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	log.Println("firmctl: shutting down")
}

func printResult(v interface{}, err error) {
	if err != nil {
		log.Fatalf("firmctl: %v", err)
	}
	b, merr := json.MarshalIndent(v, "", "  ")
	if merr != nil {
		log.Fatalf("firmctl: marshal result: %v", merr)
	}
	fmt.Println(string(b))
}
