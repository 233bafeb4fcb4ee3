// Package mqttbridge republishes decoded telemetry from a firm.Client,
// and device errors handed to PublishError, onto an MQTT broker as JSON
// payloads.
package mqttbridge

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	firm "github.com/NCSU-High-Powered-Rocketry-Club/FIRM-Client"
	"github.com/NCSU-High-Powered-Rocketry-Club/FIRM-Client/internal/response"
	"github.com/NCSU-High-Powered-Rocketry-Club/FIRM-Client/internal/telemetry"
)

// Topics names the topics a Bridge publishes to. Empty fields disable
// publishing for that category.
type Topics struct {
	Telemetry   string
	DeviceError string
}

// Bridge owns an MQTT client connection. Attach relays a firm.Client's
// telemetry packets; other responses are not relayed automatically.
type Bridge struct {
	client mqtt.Client
	topics Topics
}

// Connect dials broker and returns a Bridge ready to Attach to a client.
func Connect(broker, clientID string, topics Topics) (*Bridge, error) {
	opts := mqtt.NewClientOptions().AddBroker(broker).SetClientID(clientID)
	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqttbridge: connect: %w", token.Error())
	}
	log.Printf("mqttbridge: connected to %s as %s", broker, clientID)
	return &Bridge{client: client, topics: topics}, nil
}

// Attach subscribes to c's telemetry stream and republishes every packet
// under b.topics.Telemetry. The returned unsubscribe func stops relaying
// without disconnecting from the broker.
func (b *Bridge) Attach(c *firm.Client) (unsubscribe func()) {
	if b.topics.Telemetry == "" {
		return func() {}
	}
	return c.Subscribe(func(p telemetry.Packet) {
		b.publish(b.topics.Telemetry, p)
	})
}

// PublishError republishes a device error response under
// b.topics.DeviceError, if configured.
func (b *Bridge) PublishError(e response.DeviceError) {
	if b.topics.DeviceError == "" {
		return
	}
	b.publish(b.topics.DeviceError, e)
}

func (b *Bridge) publish(topic string, v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		log.Printf("mqttbridge: marshal error for topic %s: %v", topic, err)
		return
	}
	token := b.client.Publish(topic, 0, false, payload)
	go func() {
		token.Wait()
		if token.Error() != nil {
			log.Printf("mqttbridge: publish to %s failed: %v", topic, token.Error())
		}
	}()
}

// Close disconnects from the broker, waiting up to the given grace
// period for in-flight publishes to drain.
func (b *Bridge) Close(grace time.Duration) {
	b.client.Disconnect(uint(grace.Milliseconds()))
}
