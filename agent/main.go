// Command agent simulates an enrolled Flyve MDM device: it enrolls with an
// invitation, then answers commands and applies policies over MQTT.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"flyvemdm/agent/internal/command"
	"flyvemdm/agent/internal/config"
	"flyvemdm/agent/internal/db"
	"flyvemdm/agent/internal/device"
	"flyvemdm/agent/internal/enroll"
	"flyvemdm/agent/internal/logger"
	"flyvemdm/agent/internal/state"
	"flyvemdm/backend/app/mqtt"
	bcfg "flyvemdm/backend/config"

	"github.com/google/uuid"
)

func main() {
	cfgPath := flag.String("config", "config/config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		logger.L.Fatal().Err(err).Msg("cannot load config")
	}
	if err := logger.Init(cfg.LogPath, cfg.LogLevel); err != nil {
		logger.L.Fatal().Err(err).Msg("cannot open log file")
	}
	log := logger.L

	store, err := db.Open(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("cannot open local database")
	}
	defer store.Close()

	info := device.Info{
		Serial:    cfg.Serial,
		UUID:      uuid.NewSHA1(uuid.NameSpaceOID, []byte(cfg.Serial)).String(),
		Name:      cfg.Name,
		Model:     cfg.Model,
		OSName:    cfg.OSName,
		OSVersion: cfg.OSVersion,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	creds, err := store.Credentials()
	if err != nil {
		log.Fatal().Err(err).Msg("cannot read credentials")
	}
	if creds == nil {
		log.Info().Str("serial", cfg.Serial).Str("backend", cfg.BackendURL).Msg("enrolling")
		creds, err = enroll.Enroll(ctx, &http.Client{Timeout: 30 * time.Second}, cfg, info)
		if err != nil {
			log.Fatal().Err(err).Msg("enrollment failed")
		}
		if err := store.SaveCredentials(creds); err != nil {
			log.Fatal().Err(err).Msg("cannot save credentials")
		}
	}
	log.Info().Str("topic", creds.Topic).Str("fleet", creds.FleetTopic).Msg("enrolled")

	client := mqtt.NewClient(bcfg.MQTT{
		Broker:   enroll.BrokerURL(cfg, creds),
		ClientID: creds.MqttUser,
		Username: creds.MqttUser,
		Password: creds.MqttPassword,
		QoS:      cfg.QoS,
		Timeout:  10 * time.Second,
	}, log)
	defer client.Close()

	st := &state.State{}
	st.SetTopic(creds.Topic)
	st.SetFleetTopic(creds.FleetTopic)

	unenrolled := make(chan struct{})
	disp := command.NewDispatcher(st, log)
	dev := &command.Device{
		Pub:        client,
		Sub:        client,
		Store:      store,
		State:      st,
		Info:       info,
		Cfg:        cfg,
		Log:        log,
		OnUnenroll: func() { close(unenrolled) },
	}
	dev.Register(disp)

	handle := func(topic string, payload []byte) {
		if err := disp.Dispatch(ctx, topic, payload); err != nil {
			log.Warn().Err(err).Str("topic", topic).Msg("message dropped")
		}
	}
	if err := client.Subscribe(ctx, creds.Topic+"/Command/#", cfg.QoS, handle); err != nil {
		log.Fatal().Err(err).Msg("cannot subscribe to commands")
	}
	if err := dev.Follow(ctx, creds.FleetTopic); err != nil {
		log.Fatal().Err(err).Msg("cannot subscribe to fleet policies")
	}

	online, _ := json.Marshal(map[string]bool{"online": true})
	if err := client.Publish(ctx, creds.Topic+"/Status/Online", cfg.QoS, false, online); err != nil {
		log.Error().Err(err).Msg("cannot report online")
	}
	log.Info().Msg("agent running")

	select {
	case <-ctx.Done():
		offline, _ := json.Marshal(map[string]bool{"online": false})
		pubCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := client.Publish(pubCtx, creds.Topic+"/Status/Online", cfg.QoS, false, offline); err != nil {
			log.Warn().Err(err).Msg("cannot report offline")
		}
		log.Info().Msg("agent stopped")
	case <-unenrolled:
		log.Info().Msg("device unenrolled, exiting")
	}
}
