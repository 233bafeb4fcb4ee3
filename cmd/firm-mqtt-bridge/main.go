// Command firm-mqtt-bridge connects to a FIRM device over serial and
// republishes its decoded telemetry to an MQTT broker.
package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	firm "github.com/NCSU-High-Powered-Rocketry-Club/FIRM-Client"
	"github.com/NCSU-High-Powered-Rocketry-Club/FIRM-Client/internal/config"
	"github.com/NCSU-High-Powered-Rocketry-Club/FIRM-Client/internal/mqttbridge"
	"github.com/NCSU-High-Powered-Rocketry-Club/FIRM-Client/internal/serialio"
)

func main() {
	configPath := flag.String("config", "./firm_config.txt", "path to configuration file")
	flag.Parse()

	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("firm-mqtt-bridge: failed to load config: %v", err)
	}
	cfg := config.Get()

	conn, err := serialio.Open(serialio.Options{
		PortName:    cfg.SerialPort,
		BaudRate:    uint(cfg.SerialBaudRate),
		ReadTimeout: time.Duration(cfg.SerialReadTimeoutMS) * time.Millisecond,
	})
	if err != nil {
		log.Fatalf("firm-mqtt-bridge: open port: %v", err)
	}

	c := firm.New(firm.Config{Port: conn, QueueCapacity: cfg.QueueCapacity})
	if err := c.Start(); err != nil {
		log.Fatalf("firm-mqtt-bridge: start: %v", err)
	}
	defer c.Stop()

	bridge, err := mqttbridge.Connect(cfg.MQTTBroker, cfg.MQTTClientID, mqttbridge.Topics{
		Telemetry:   cfg.TopicTelemetry,
		DeviceError: cfg.TopicDeviceError,
	})
	if err != nil {
		log.Fatalf("firm-mqtt-bridge: %v", err)
	}
	defer bridge.Close(250 * time.Millisecond)

	unsub := bridge.Attach(c)
	defer unsub()

	log.Printf("firm-mqtt-bridge: republishing telemetry from %s to %s", cfg.SerialPort, cfg.TopicTelemetry)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	log.Println("firm-mqtt-bridge: shutting down")
}
