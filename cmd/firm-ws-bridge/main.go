// Command firm-ws-bridge connects to a FIRM device over serial and
// streams its decoded telemetry to any number of websocket clients.
package main

import (
	"flag"
	"log"
	"net/http"
	"time"

	firm "github.com/NCSU-High-Powered-Rocketry-Club/FIRM-Client"
	"github.com/NCSU-High-Powered-Rocketry-Club/FIRM-Client/internal/config"
	"github.com/NCSU-High-Powered-Rocketry-Club/FIRM-Client/internal/serialio"
	"github.com/NCSU-High-Powered-Rocketry-Club/FIRM-Client/internal/wsbridge"
)

func main() {
	configPath := flag.String("config", "./firm_config.txt", "path to configuration file")
	flag.Parse()

	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("firm-ws-bridge: failed to load config: %v", err)
	}
	cfg := config.Get()

	conn, err := serialio.Open(serialio.Options{
		PortName:    cfg.SerialPort,
		BaudRate:    uint(cfg.SerialBaudRate),
		ReadTimeout: time.Duration(cfg.SerialReadTimeoutMS) * time.Millisecond,
	})
	if err != nil {
		log.Fatalf("firm-ws-bridge: open port: %v", err)
	}

	c := firm.New(firm.Config{Port: conn, QueueCapacity: cfg.QueueCapacity})
	if err := c.Start(); err != nil {
		log.Fatalf("firm-ws-bridge: start: %v", err)
	}
	defer c.Stop()

	hub := wsbridge.New(c)
	defer hub.Close()

	mux := http.NewServeMux()
	mux.Handle(cfg.WSPath, hub.Handler())

	log.Printf("firm-ws-bridge: streaming telemetry on %s%s", cfg.WSBindAddress, cfg.WSPath)
	if err := http.ListenAndServe(cfg.WSBindAddress, mux); err != nil {
		log.Fatalf("firm-ws-bridge: server error: %v", err)
	}
}
