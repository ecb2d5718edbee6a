package main

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/dtn6/bplib-go/bundle"
)

// showBundle prints a human-readable view of a wire-format bundle file.
// Grounded on the teacher's "show filename" subcommand, walking the
// primary block and then whatever extension blocks precede the payload
// the same way Receive's block-walk does, since this project has no
// Bundle.String() that already reflects a freshly parsed (rather than
// built) bundle.
func showBundle(args []string) {
	if len(args) != 1 {
		printUsage()
	}

	wire, err := os.ReadFile(args[0])
	if err != nil {
		log.WithError(err).Fatal("Reading Bundle file errored")
	}

	var flags bundle.ErrorFlags
	var pb bundle.PrimaryBlock
	n, err := bundle.ReadPrimaryBlock(wire, &pb, false, &flags)
	if err != nil {
		log.WithError(err).Fatal("Parsing primary block errored")
	}

	fmt.Printf("primary: %v\n", pb)

	index := n
	for index < len(wire) {
		switch wire[index] {
		case bundle.BlockTypeCTEB:
			var c bundle.CTEB
			if n, err = bundle.ReadCTEB(wire, index, &c, false, &flags); err != nil {
				log.WithError(err).Fatal("Parsing CTEB errored")
			}
			fmt.Printf("cteb: custodian %v, custody-id %d\n", c.Custodian, c.CustodyID)
			index += n

		case bundle.BlockTypeBIB:
			var bib bundle.BIB
			if n, err = bundle.ReadBIB(wire, index, &bib, false, &flags); err != nil {
				log.WithError(err).Fatal("Parsing BIB errored")
			}
			fmt.Printf("bib: cipher-suite %v, result %x\n", bib.Suite, bib.Result)
			index += n

		case bundle.BlockTypePayload:
			var p bundle.PayloadBlock
			if n, err = bundle.ReadPayloadBlock(wire, index, &p, &flags); err != nil {
				log.WithError(err).Fatal("Parsing payload block errored")
			}
			fmt.Printf("payload: %d bytes\n", len(p.Data))
			index = len(wire)

		default:
			log.WithField("type", wire[index]).Fatal("Unrecognized block type while walking bundle")
		}
	}

	if flags != 0 {
		fmt.Printf("flags: %v\n", flags)
	}
}
