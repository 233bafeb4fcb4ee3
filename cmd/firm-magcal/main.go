// Command firm-magcal runs an end-to-end magnetometer calibration
// against a connected FIRM device and prints the fitted hard-iron and
// soft-iron correction.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"time"

	firm "github.com/NCSU-High-Powered-Rocketry-Club/FIRM-Client"
	"github.com/NCSU-High-Powered-Rocketry-Club/FIRM-Client/internal/config"
	"github.com/NCSU-High-Powered-Rocketry-Club/FIRM-Client/internal/serialio"
)

func main() {
	configPath := flag.String("config", "./firm_config.txt", "path to configuration file")
	duration := flag.Duration("duration", 20*time.Second, "how long to collect magnetometer samples")
	flag.Parse()

	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("firm-magcal: failed to load config: %v", err)
	}
	cfg := config.Get()

	conn, err := serialio.Open(serialio.Options{
		PortName:    cfg.SerialPort,
		BaudRate:    uint(cfg.SerialBaudRate),
		ReadTimeout: time.Duration(cfg.SerialReadTimeoutMS) * time.Millisecond,
	})
	if err != nil {
		log.Fatalf("firm-magcal: open port: %v", err)
	}

	c := firm.New(firm.Config{Port: conn, QueueCapacity: cfg.QueueCapacity})
	if err := c.Start(); err != nil {
		log.Fatalf("firm-magcal: start: %v", err)
	}
	defer c.Stop()

	applyTimeout := time.Duration(cfg.CalibrationApplyTimeMS) * time.Millisecond

	log.Printf("firm-magcal: collecting samples for %s; rotate the device through all orientations", *duration)
	result, accepted, err := c.RunMagnetometerCalibration(*duration, applyTimeout)
	if err != nil {
		log.Fatalf("firm-magcal: calibration failed: %v", err)
	}

	b, merr := json.MarshalIndent(result, "", "  ")
	if merr != nil {
		log.Fatalf("firm-magcal: marshal result: %v", merr)
	}
	fmt.Println(string(b))

	if !accepted {
		log.Fatal("firm-magcal: device rejected the fitted calibration")
	}
	log.Println("firm-magcal: device accepted the calibration")
}
