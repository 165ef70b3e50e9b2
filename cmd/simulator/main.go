package main

import (
	"fmt"
	"math/rand"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"

	"github.com/shadowhunt/loxone-monitor/internal/building"
	"github.com/shadowhunt/loxone-monitor/internal/config"
)

// Publishes random state values for every UUID in the structure file, so the
// monitor can be exercised without a Miniserver on the network.
func main() {
	if err := config.Load(); err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}

	b, _, err := building.LoadFile(config.StructureFile())
	if err != nil {
		log.Fatal().Err(err).Msg("structure file load failed")
	}
	ids := b.StateIDs()
	if len(ids) == 0 {
		log.Fatal().Msg("structure file has no monitored states")
	}

	opts := mqtt.NewClientOptions().AddBroker(config.MQTTBroker())
	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		log.Fatal().Err(token.Error()).Msg("mqtt connect")
	}
	defer client.Disconnect(250)

	for i := 0; i < 100; i++ {
		for _, id := range ids {
			value := 15 + rand.Float64()*15
			payload := fmt.Sprintf("%.2f", value)
			token := client.Publish("loxone/state/"+id, 0, false, payload)
			token.Wait()
		}
		log.Info().Int("cycle", i+1).Int("states", len(ids)).Msg("states published")
		time.Sleep(500 * time.Millisecond)
	}
	log.Info().Msg("simulation done")
}
