package main

import (
	"io"
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/dtn6/bplib-go/bundle"
	"github.com/dtn6/bplib-go/channel"
	"github.com/dtn6/bplib-go/config"
	"github.com/dtn6/bplib-go/storage"
)

// sendBundle opens a channel per a TOML configuration file and stores
// dataInput's bytes on it, exercising the config/channel/storage
// packages dtn-tool's CBOR-era surface had no equivalent of: there is no
// teacher subcommand this is adapted from, only the same stdin-or-file
// reading and fatal-on-error conventions createBundle already follows.
func sendBundle(args []string) {
	if len(args) != 2 {
		printUsage()
	}
	configPath, dataInput := args[0], args[1]

	cfg, err := config.Load(configPath)
	if err != nil {
		log.WithError(err).Fatal("Loading configuration errored")
	}

	var data []byte
	if dataInput == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(dataInput)
	}
	if err != nil {
		log.WithError(err).Fatal("Reading input errored")
	}

	store := storage.NewRAMStore()
	ch, err := channel.Open(cfg.Route, cfg.Attrs, store, channel.DefaultActiveWindow)
	if err != nil {
		log.WithError(err).Fatal("Opening channel errored")
	}
	defer ch.Close()

	var flags bundle.ErrorFlags
	ids, err := ch.Send(data, 0, &flags)
	if err != nil {
		log.WithError(err).Fatal("Sending Bundle errored")
	}

	log.WithFields(log.Fields{
		"fragments": len(ids),
		"flags":     flags,
	}).Info("Bundle stored")
}
