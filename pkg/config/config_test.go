package config

import (
	"testing"

	"github.com/spf13/viper"
)

func TestLoad_UsesDefaults_WhenNoFile(t *testing.T) {
	// Reset viper to avoid cross-test pollution
	viper.Reset()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	// Spot-check a few defaults
	if cfg.Trellis.InterleaveFactor != 12 {
		t.Errorf("expected Trellis.InterleaveFactor default 12, got %d", cfg.Trellis.InterleaveFactor)
	}
	if cfg.Trellis.SegmentLength != 832 {
		t.Errorf("expected Trellis.SegmentLength default 832, got %d", cfg.Trellis.SegmentLength)
	}
	if cfg.Trellis.EncodedLength != 207 {
		t.Errorf("expected Trellis.EncodedLength default 207, got %d", cfg.Trellis.EncodedLength)
	}
	if cfg.Input.Path != "-" {
		t.Errorf("expected Input.Path default \"-\", got %q", cfg.Input.Path)
	}
	if cfg.Web.Port != 8080 {
		t.Errorf("expected Web.Port default 8080, got %d", cfg.Web.Port)
	}
	if cfg.Logging.Level == "" {
		t.Errorf("expected Logging.Level to be set (default info)")
	}
	if cfg.Metrics.Prometheus.Port != 9090 {
		t.Errorf("expected Prometheus.Port default 9090, got %d", cfg.Metrics.Prometheus.Port)
	}
}

func validTrellis() TrellisConfig {
	return TrellisConfig{InterleaveFactor: 12, SegmentLength: 832, EncodedLength: 207}
}

func TestValidate_Errors(t *testing.T) {
	base := func() *Config {
		return &Config{
			Trellis: validTrellis(),
			Input:   InputConfig{Path: "-"},
			Output:  OutputConfig{Path: "-"},
		}
	}

	t.Run("zero interleave factor", func(t *testing.T) {
		cfg := base()
		cfg.Trellis.InterleaveFactor = 0
		if err := validate(cfg); err == nil {
			t.Fatal("expected error for non-positive trellis.interleave_factor")
		}
	})

	t.Run("segment length not divisible across branches", func(t *testing.T) {
		cfg := base()
		cfg.Trellis.SegmentLength = 833
		if err := validate(cfg); err == nil {
			t.Fatal("expected error for indivisible segment length")
		}
	})

	t.Run("encoded length does not match dibit count", func(t *testing.T) {
		cfg := base()
		cfg.Trellis.EncodedLength = 188
		if err := validate(cfg); err == nil {
			t.Fatal("expected error for mismatched encoded_length")
		}
	})

	t.Run("missing input path", func(t *testing.T) {
		cfg := base()
		cfg.Input.Path = ""
		if err := validate(cfg); err == nil {
			t.Fatal("expected error for empty input.path")
		}
	})

	t.Run("invalid web port when enabled", func(t *testing.T) {
		cfg := base()
		cfg.Web = WebConfig{Enabled: true, Port: 70000}
		if err := validate(cfg); err == nil {
			t.Fatal("expected error for invalid web.port out of range")
		}
	})

	t.Run("mqtt enabled without broker", func(t *testing.T) {
		cfg := base()
		cfg.MQTT = MQTTConfig{Enabled: true}
		if err := validate(cfg); err == nil {
			t.Fatal("expected error for mqtt without broker")
		}
	})

	t.Run("database enabled without path", func(t *testing.T) {
		cfg := base()
		cfg.Database = DatabaseConfig{Enabled: true}
		if err := validate(cfg); err == nil {
			t.Fatal("expected error for database without path")
		}
	})

	t.Run("valid config passes", func(t *testing.T) {
		if err := validate(base()); err != nil {
			t.Fatalf("expected valid config, got %v", err)
		}
	})
}
