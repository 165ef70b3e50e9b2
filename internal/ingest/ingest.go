// Package ingest feeds Miniserver state updates from MQTT into the building
// registry. Updates arrive as one numeric payload per state UUID, published
// by whatever bridges the controller onto the broker.
package ingest

import (
	"strconv"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"
)

type Updater interface {
	Update(id string, value float64) bool
}

// Subscribe registers a handler for the state topic (e.g. loxone/state/#).
func Subscribe(client mqtt.Client, topic string, b Updater) error {
	handler := func(_ mqtt.Client, msg mqtt.Message) {
		Apply(b, msg.Topic(), msg.Payload())
	}
	if token := client.Subscribe(topic, 0, handler); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	return nil
}

// Apply parses one state update and feeds it into the registry. Malformed
// payloads and unmonitored UUIDs are logged and dropped; they must not take
// the ingest loop down.
func Apply(b Updater, topic string, payload []byte) {
	id := StateID(topic)
	value, err := strconv.ParseFloat(strings.TrimSpace(string(payload)), 64)
	if err != nil {
		log.Warn().Str("topic", topic).Str("payload", string(payload)).Msg("unparseable state value")
		return
	}
	if !b.Update(id, value) {
		log.Debug().Str("id", id).Float64("value", value).Msg("unmonitored state")
		return
	}
	log.Debug().Str("id", id).Float64("value", value).Msg("state updated")
}

// StateID extracts the state UUID from the topic tail.
func StateID(topic string) string {
	parts := strings.Split(topic, "/")
	return parts[len(parts)-1]
}
