package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.txt")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestLoadParsesKnownKeys(t *testing.T) {
	path := writeConfig(t, `
# comment line
SERIAL_PORT=/dev/ttyACM0
SERIAL_BAUD_RATE=9600
QUEUE_CAPACITY=512
MQTT_BROKER=tcp://broker:1883
MQTT_CLIENT_ID=test-client
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SerialPort != "/dev/ttyACM0" {
		t.Errorf("SerialPort = %q, want /dev/ttyACM0", cfg.SerialPort)
	}
	if cfg.SerialBaudRate != 9600 {
		t.Errorf("SerialBaudRate = %d, want 9600", cfg.SerialBaudRate)
	}
	if cfg.QueueCapacity != 512 {
		t.Errorf("QueueCapacity = %d, want 512", cfg.QueueCapacity)
	}
}

func TestLoadAppliesDefaultsForOmittedKeys(t *testing.T) {
	path := writeConfig(t, "SERIAL_PORT=/dev/ttyUSB0\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SerialBaudRate != 115200 {
		t.Errorf("SerialBaudRate default = %d, want 115200", cfg.SerialBaudRate)
	}
	if cfg.QueueCapacity != 256 {
		t.Errorf("QueueCapacity default = %d, want 256", cfg.QueueCapacity)
	}
	if cfg.WSPath != "/stream" {
		t.Errorf("WSPath default = %q, want /stream", cfg.WSPath)
	}
}

func TestLoadRejectsMissingSerialPort(t *testing.T) {
	path := writeConfig(t, "SERIAL_BAUD_RATE=9600\n")

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for missing SERIAL_PORT")
	}
}

func TestLoadRejectsUnknownKey(t *testing.T) {
	path := writeConfig(t, "SERIAL_PORT=/dev/ttyACM0\nNOT_A_REAL_KEY=1\n")

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unknown config key")
	}
}

func TestLoadRejectsMalformedLine(t *testing.T) {
	path := writeConfig(t, "SERIAL_PORT\n")

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for line with no '='")
	}
}

func TestLoadRejectsInvalidIntValue(t *testing.T) {
	path := writeConfig(t, "SERIAL_PORT=/dev/ttyACM0\nSERIAL_BAUD_RATE=not-a-number\n")

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for non-numeric SERIAL_BAUD_RATE")
	}
}

func TestLoadRejectsMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "does-not-exist.txt")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
