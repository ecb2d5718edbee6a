// Package config loads a node's identity and a channel's attributes from
// a TOML file, grounded on the teacher's cmd/dtnd/configuration.go
// (tomlConfig/coreConf/logConf shape and parseCore's decode-then-validate
// flow), reshaped from dtn7's CLA/routing-heavy configuration into the
// narrower node-id-plus-channel-attributes surface this engine needs.
package config

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
	log "github.com/sirupsen/logrus"

	"github.com/dtn6/bplib-go/bundle"
)

// tomlConfig mirrors the file's top-level TOML tables.
type tomlConfig struct {
	Node    nodeConf
	Logging logConf
	Channel channelConf
}

// nodeConf carries this node's own identity.
type nodeConf struct {
	ID string `toml:"id"`
}

// logConf configures logrus, exactly as the teacher's logConf does.
type logConf struct {
	Level        string
	ReportCaller bool `toml:"report-caller"`
	Format       string
}

// channelConf is the TOML shape of bundle.Attributes plus the destination
// and report-to endpoints a channel is opened against.
type channelConf struct {
	Destination string
	ReportTo    string `toml:"report-to"`

	LifetimeSeconds    uint64 `toml:"lifetime-seconds"`
	RequestCustody     bool   `toml:"request-custody"`
	IntegrityCheck     string `toml:"integrity-check"`
	AllowFragmentation bool   `toml:"allow-fragmentation"`
	AdminRecord        bool   `toml:"admin-record"`
	IgnoreExpiration   bool   `toml:"ignore-expiration"`
	ClassOfService     string `toml:"class-of-service"`
	MaxLength          uint64 `toml:"max-length"`
}

// Config is the parsed, validated result of loading a TOML file: this
// node's identity and one channel's Route/Attributes pair.
type Config struct {
	NodeID bundle.EndpointID
	Route  bundle.Route
	Attrs  bundle.Attributes
}

// classOfServiceByName resolves the TOML file's human-readable
// class-of-service string.
func classOfServiceByName(name string) (bundle.ClassOfService, error) {
	switch name {
	case "", "normal":
		return bundle.ClassOfServiceNormal, nil
	case "expedited":
		return bundle.ClassOfServiceExpedited, nil
	default:
		return 0, fmt.Errorf("config: unknown class-of-service %q", name)
	}
}

// cipherSuiteByName resolves the TOML file's human-readable cipher suite.
func cipherSuiteByName(name string) (bundle.CipherSuite, error) {
	switch name {
	case "", "crc16", "crc16-x25":
		return bundle.CipherSuiteCRC16X25, nil
	case "crc32", "crc32-castagnoli":
		return bundle.CipherSuiteCRC32Castagnoli, nil
	default:
		return 0, fmt.Errorf("config: unknown integrity-check cipher suite %q", name)
	}
}

// Load decodes filename and validates the result, applying logrus's
// level/format/caller-reporting settings the same way the teacher's
// parseCore does before returning.
func Load(filename string) (*Config, error) {
	var raw tomlConfig
	if _, err := toml.DecodeFile(filename, &raw); err != nil {
		return nil, err
	}

	applyLogging(raw.Logging)

	if raw.Node.ID == "" {
		return nil, fmt.Errorf("config: node.id is empty")
	}
	nodeID, err := bundle.NewEndpointID(raw.Node.ID)
	if err != nil {
		return nil, err
	}

	if raw.Channel.Destination == "" {
		return nil, fmt.Errorf("config: channel.destination is empty")
	}
	destination, err := bundle.NewEndpointID(raw.Channel.Destination)
	if err != nil {
		return nil, err
	}

	reportTo := nodeID
	if raw.Channel.ReportTo != "" {
		if reportTo, err = bundle.NewEndpointID(raw.Channel.ReportTo); err != nil {
			return nil, err
		}
	}

	cos, err := classOfServiceByName(raw.Channel.ClassOfService)
	if err != nil {
		return nil, err
	}

	suite, err := cipherSuiteByName(raw.Channel.IntegrityCheck)
	if err != nil {
		return nil, err
	}

	lifetime := raw.Channel.LifetimeSeconds
	if lifetime == 0 {
		lifetime = uint64(bundle.BestEffortLifetime)
	}

	maxLength := raw.Channel.MaxLength
	if maxLength == 0 {
		maxLength = bundle.HeaderBufferLen + 4096
	}

	cfg := &Config{
		NodeID: nodeID,
		Route: bundle.Route{
			Local:       nodeID,
			Destination: destination,
			ReportTo:    reportTo,
		},
		Attrs: bundle.Attributes{
			Lifetime:           lifetime,
			RequestCustody:     raw.Channel.RequestCustody,
			IntegrityCheck:     raw.Channel.IntegrityCheck != "",
			AllowFragmentation: raw.Channel.AllowFragmentation,
			AdminRecord:        raw.Channel.AdminRecord,
			IgnoreExpiration:   raw.Channel.IgnoreExpiration,
			ClassOfService:     cos,
			CipherSuite:        suite,
			MaxLength:          maxLength,
		},
	}

	return cfg, nil
}

func applyLogging(conf logConf) {
	if conf.Level != "" {
		if lvl, err := log.ParseLevel(conf.Level); err != nil {
			log.WithFields(log.Fields{
				"level":    conf.Level,
				"error":    err,
				"provided": "panic,fatal,error,warn,info,debug,trace",
			}).Warn("Failed to set log level. Please select one of the provided ones")
		} else {
			log.SetLevel(lvl)
		}
	}

	log.SetReportCaller(conf.ReportCaller)

	switch conf.Format {
	case "", "text":
		log.SetFormatter(&log.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "15:04:05.000",
		})
	case "json":
		log.SetFormatter(&log.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
		})
	default:
		log.Warn("Unknown logging format")
	}
}
