package agent

import (
	"time"

	"gopkg.in/yaml.v3"

	"github.com/watthouse/agent/internal/backpressure"
)

// configDoc is the YAML-serializable projection of Config. Config itself
// carries a *slog.Logger and a metrics.Provider, neither of which is
// meaningful to round-trip through a file; configDoc covers the subset
// an operator edits by hand.
type configDoc struct {
	MaxInFlight     int                 `yaml:"max_in_flight"`
	Backpressure    backpressure.Config `yaml:"backpressure"`
	ShutdownTimeout time.Duration       `yaml:"shutdown_timeout"`
	GopsAddr        string              `yaml:"gops_addr,omitempty"`
}

// Dump renders the file-editable subset of cfg as YAML, for an operator
// to inspect or check into version control alongside a deployment.
func (cfg Config) Dump() ([]byte, error) {
	doc := configDoc{
		MaxInFlight:     cfg.MaxInFlight,
		Backpressure:    cfg.Backpressure,
		ShutdownTimeout: cfg.ShutdownTimeout,
		GopsAddr:        cfg.GopsAddr,
	}
	return yaml.Marshal(doc)
}

// LoadConfig reads a YAML document produced by Dump (or hand-written in
// the same shape) and applies it on top of base, leaving base's Logger
// and Metrics untouched since those have no YAML representation.
func LoadConfig(data []byte, base Config) (Config, error) {
	var doc configDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Config{}, err
	}
	base.MaxInFlight = doc.MaxInFlight
	base.Backpressure = doc.Backpressure
	base.ShutdownTimeout = doc.ShutdownTimeout
	base.GopsAddr = doc.GopsAddr
	return base, nil
}
