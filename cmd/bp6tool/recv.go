package main

import (
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/dtn6/bplib-go/bundle"
	"github.com/dtn6/bplib-go/channel"
	"github.com/dtn6/bplib-go/config"
	"github.com/dtn6/bplib-go/storage"
)

// recvBundle opens a channel per a TOML configuration file and dispatches
// the given wire-format bundle file through Receive, printing the
// resulting disposition.
func recvBundle(args []string) {
	if len(args) != 2 {
		printUsage()
	}
	configPath, filename := args[0], args[1]

	cfg, err := config.Load(configPath)
	if err != nil {
		log.WithError(err).Fatal("Loading configuration errored")
	}

	wire, err := os.ReadFile(filename)
	if err != nil {
		log.WithError(err).Fatal("Reading Bundle file errored")
	}

	store := storage.NewRAMStore()
	ch, err := channel.Open(cfg.Route, cfg.Attrs, store, channel.DefaultActiveWindow)
	if err != nil {
		log.WithError(err).Fatal("Opening channel errored")
	}
	defer ch.Close()

	sysnow, reliable := bundle.DtnTimeNow()

	var flags bundle.ErrorFlags
	received, err := ch.Receive(wire, sysnow, reliable, &flags)
	if err != nil {
		log.WithFields(log.Fields{
			"error": err,
			"flags": flags,
		}).Fatal("Receiving Bundle errored")
	}

	log.WithFields(log.Fields{
		"outcome": received.Outcome,
		"flags":   flags,
	}).Info("Bundle dispatched")

	if received.Forward != nil {
		log.WithField("destination", received.Forward.Route.Destination).Info("Bundle should be forwarded")
	}
	if len(received.Payload) > 0 {
		log.WithField("bytes", len(received.Payload)).Info("Bundle payload ready for local delivery")
	}
}
