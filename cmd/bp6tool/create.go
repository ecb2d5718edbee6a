package main

import (
	"io"
	"os"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/dtn6/bplib-go/bundle"
	"github.com/dtn6/bplib-go/storage"
)

// createBundle builds a single bundle from sender to receiver carrying
// dataInput's bytes and writes its wire-format fragment(s) to outName.
// Grounded on the teacher's createBundle: same four positional
// arguments, same stdin-or-file convention, same fatal-on-error style.
// Unlike the teacher's single CBOR blob, a fragmenting send can produce
// more than one stored fragment; create writes only the first (a
// channel/config-free "one-shot bundle to a file" convenience is
// necessarily unfragmented for any reasonably sized payload).
func createBundle(args []string) {
	if len(args) != 4 {
		printUsage()
	}

	sender, receiver, dataInput, outName := args[0], args[1], args[2], args[3]

	var (
		data []byte
		err  error
	)
	if dataInput == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(dataInput)
	}
	if err != nil {
		log.WithError(err).Fatal("Reading input errored")
	}

	b, err := bundle.Builder().
		Source(sender).
		Destination(receiver).
		Lifetime("24h").
		Build()
	if err != nil {
		log.WithError(err).Fatal("Building Bundle errored")
	}

	store := storage.NewRAMStore()
	var fragments [][]byte
	create := func(isAdminRecord bool, fragment []byte, timeout time.Duration) (uint64, error) {
		fragments = append(fragments, append([]byte(nil), fragment...))
		return store.Create(isAdminRecord, fragment, timeout)
	}

	var flags bundle.ErrorFlags
	if err := bundle.Build(b, nil, &flags); err != nil {
		log.WithError(err).Fatal("Laying out Bundle header errored")
	}
	if _, err := bundle.Send(b, data, 0, create, &flags); err != nil {
		log.WithError(err).Fatal("Sending Bundle errored")
	}
	if flags != 0 {
		log.WithField("flags", flags).Warn("Bundle build/send raised flags")
	}
	if len(fragments) != 1 {
		log.WithField("fragments", len(fragments)).Warn("Payload required fragmentation; only the first fragment was written")
	}

	f, err := os.Create(outName)
	if err != nil {
		log.WithError(err).Fatal("Creating file errored")
	}
	if _, err := f.Write(fragments[0]); err != nil {
		log.WithError(err).Fatal("Writing Bundle errored")
	}
	if err := f.Close(); err != nil {
		log.WithError(err).Fatal("Closing file errored")
	}
}

