package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/shadowhunt/loxone-monitor/internal/building"
	"github.com/shadowhunt/loxone-monitor/internal/config"
	"github.com/shadowhunt/loxone-monitor/internal/database"
	"github.com/shadowhunt/loxone-monitor/internal/ingest"
	"github.com/shadowhunt/loxone-monitor/internal/monitor"
	"github.com/shadowhunt/loxone-monitor/internal/store"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	if err := config.Load(); err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	if level, err := zerolog.ParseLevel(config.LogLevel()); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect()
	if err != nil {
		log.Fatal().Err(err).Msg("db connect failed")
	}
	defer db.Close()

	st := store.New(db)
	if err := st.Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("schema migration failed")
	}

	b, raw, err := building.LoadFile(config.StructureFile())
	if err != nil {
		log.Fatal().Err(err).Msg("structure file load failed")
	}
	log.Info().
		Str("building", b.Name).
		Str("serial", b.Serial).
		Str("miniserver", config.MiniserverHost()).
		Str("user", config.MiniserverUser()).
		Int("states", len(b.StateIDs())).
		Msg("structure loaded")

	if dir := config.BackupDir(); dir != "" {
		if err := backupStructure(dir, raw); err != nil {
			log.Error().Err(err).Str("dir", dir).Msg("structure backup failed")
		}
	}

	opts := mqtt.NewClientOptions().AddBroker(config.MQTTBroker()).SetAutoReconnect(true)
	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		log.Fatal().Err(token.Error()).Msg("mqtt connect failed")
	}
	defer client.Disconnect(250)

	if err := ingest.Subscribe(client, config.MQTTTopic(), b); err != nil {
		log.Fatal().Err(err).Msg("subscribe failed")
	}
	log.Info().Str("topic", config.MQTTTopic()).Msg("ingesting state updates")

	m := monitor.New(b, st, config.PersistInterval())
	if err := m.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("monitor exit")
	}
}

func backupStructure(dir string, raw []byte) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	name := fmt.Sprintf("LoxAPP3-%s.json", time.Now().Format("20060102-150405"))
	return os.WriteFile(filepath.Join(dir, name), raw, 0o644)
}
