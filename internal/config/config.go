// Package config implements the JSON configuration loader (spec.md
// §6). Grounded on the teacher's config.go: the same nested per-concern
// struct layout and Load/defaults split, but using encoding/json
// against spec.md's schema instead of the teacher's hand-rolled INI
// parser.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/Caligatio/smokematic/internal/errs"
)

// ProbeConfig describes one temperature probe's ADC channel and
// Steinhart-Hart coefficients.
type ProbeConfig struct {
	Pin string  `json:"pin"`
	ShA float64 `json:"sh_a"`
	ShB float64 `json:"sh_b"`
	ShC float64 `json:"sh_c"`
}

// Config is the top-level configuration schema (spec.md §6).
type Config struct {
	Server struct {
		Port int `json:"port"`
	} `json:"server"`

	Logging struct {
		Level string `json:"level"`
	} `json:"logging"`

	Blower struct {
		Pin string `json:"pin"`
	} `json:"blower"`

	Baster struct {
		Pin string `json:"pin"`
	} `json:"baster"`

	PitProbe ProbeConfig `json:"pit_probe"`

	FoodProbes []ProbeConfig `json:"food_probes"`

	PIDCoefficients struct {
		KP float64 `json:"k_p"`
		KI float64 `json:"k_i"`
		KD float64 `json:"k_d"`
	} `json:"pid_coefficients"`

	InitialSetpoint float64 `json:"initial_setpoint"`

	Metrics struct {
		Enabled bool `json:"enabled"`
	} `json:"metrics"`
}

// validLevels mirrors the levels spec.md §6 allows.
var validLevels = map[string]bool{
	"DEBUG": true, "INFO": true, "WARNING": true, "ERROR": true, "CRITICAL": true,
}

// Load reads and validates a Config from path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &errs.ConfigError{Msg: fmt.Sprintf("reading config %s: %v", path, err)}
	}
	return Parse(data)
}

// Parse validates and unmarshals raw JSON into a Config.
func Parse(data []byte) (*Config, error) {
	var c Config
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, &errs.ConfigError{Msg: fmt.Sprintf("parsing config: %v", err)}
	}

	if c.Server.Port <= 0 {
		return nil, &errs.ConfigError{Msg: "server.port must be > 0"}
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "INFO"
	}
	if !validLevels[c.Logging.Level] {
		return nil, &errs.ConfigError{Msg: fmt.Sprintf("logging.level %q is not one of DEBUG, INFO, WARNING, ERROR, CRITICAL", c.Logging.Level)}
	}
	if c.Blower.Pin == "" {
		return nil, &errs.ConfigError{Msg: "blower.pin is required"}
	}
	if c.Baster.Pin == "" {
		return nil, &errs.ConfigError{Msg: "baster.pin is required"}
	}
	if c.PitProbe.Pin == "" {
		return nil, &errs.ConfigError{Msg: "pit_probe.pin is required"}
	}
	if c.PIDCoefficients.KP == 0 || c.PIDCoefficients.KI == 0 || c.PIDCoefficients.KD == 0 {
		return nil, &errs.ConfigError{Msg: "pid_coefficients must all be non-zero"}
	}
	if c.InitialSetpoint <= 32 {
		return nil, &errs.ConfigError{Msg: "initial_setpoint must be > 32"}
	}

	return &c, nil
}

// LogrusLevel maps the config's logging.level string to a logrus.Level.
// CRITICAL has no distinct logrus level and maps to ErrorLevel rather
// than a fatal level, since the process must never exit on a
// recoverable control-loop error (spec.md §7).
func (c *Config) LogrusLevel() log.Level {
	switch c.Logging.Level {
	case "DEBUG":
		return log.DebugLevel
	case "WARNING":
		return log.WarnLevel
	case "ERROR", "CRITICAL":
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}
