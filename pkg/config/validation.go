package config

import (
	"fmt"
	"strings"
)

// validate validates the configuration
func validate(cfg *Config) error {
	// Validate trellis framing
	t := cfg.Trellis
	if t.InterleaveFactor <= 0 {
		return fmt.Errorf("trellis.interleave_factor must be positive")
	}
	if t.SegmentLength <= 4 {
		return fmt.Errorf("trellis.segment_length must exceed the 4 sync symbols")
	}
	dataSymbols := t.SegmentLength - 4
	if dataSymbols%t.InterleaveFactor != 0 {
		return fmt.Errorf("trellis: %d data symbols per segment do not divide across %d branches",
			dataSymbols, t.InterleaveFactor)
	}
	if t.EncodedLength*4 != dataSymbols {
		return fmt.Errorf("trellis.encoded_length %d does not hold %d dibits per segment",
			t.EncodedLength, dataSymbols)
	}

	// Validate IO
	if cfg.Input.Path == "" {
		return fmt.Errorf("input.path is required")
	}
	if cfg.Output.Path == "" {
		return fmt.Errorf("output.path is required")
	}

	// Validate web config
	if cfg.Web.Enabled {
		if cfg.Web.Port <= 0 || cfg.Web.Port > 65535 {
			return fmt.Errorf("web.port must be between 1 and 65535")
		}
	}

	// Validate MQTT config
	if cfg.MQTT.Enabled {
		if cfg.MQTT.Broker == "" {
			return fmt.Errorf("mqtt.broker is required when mqtt is enabled")
		}
		if cfg.MQTT.QoS > 2 {
			return fmt.Errorf("mqtt.qos must be 0, 1 or 2")
		}
	}

	// Validate metrics config
	if cfg.Metrics.Enabled && cfg.Metrics.Prometheus.Enabled {
		p := cfg.Metrics.Prometheus
		if p.Port < 0 || p.Port > 65535 {
			return fmt.Errorf("metrics.prometheus.port must be between 0 and 65535")
		}
		if !strings.HasPrefix(p.Path, "/") {
			return fmt.Errorf("metrics.prometheus.path must start with /")
		}
	}

	// Validate logging config
	switch strings.ToLower(cfg.Logging.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level %q is not a known level", cfg.Logging.Level)
	}

	// Validate database config
	if cfg.Database.Enabled && cfg.Database.Path == "" {
		return fmt.Errorf("database.path is required when database is enabled")
	}

	return nil
}
