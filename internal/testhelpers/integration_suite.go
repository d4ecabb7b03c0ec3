// Package testhelpers provides shared fixtures for integration tests:
// encoded symbol stream generation and a small suite harness.
package testhelpers

import (
	"bytes"
	"context"
	"encoding/binary"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/dbehnke/atsc-nexus/pkg/atsc"
	"github.com/dbehnke/atsc-nexus/pkg/config"
	"github.com/dbehnke/atsc-nexus/pkg/logger"
)

// IntegrationSuite provides infrastructure for integration tests
type IntegrationSuite struct {
	T      *testing.T
	Config *config.Config
	Logger *logger.Logger
	Ctx    context.Context
	Cancel context.CancelFunc
}

// NewIntegrationSuite creates a new integration test suite
func NewIntegrationSuite(t *testing.T) *IntegrationSuite {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)

	log := logger.New(logger.Config{
		Level:  "debug",
		Format: "text",
	})

	return &IntegrationSuite{
		T:      t,
		Logger: log,
		Ctx:    ctx,
		Cancel: cancel,
	}
}

// Cleanup cleans up resources
func (s *IntegrationSuite) Cleanup() {
	s.Cancel()
}

// WaitFor waits for a condition to be true
func (s *IntegrationSuite) WaitFor(condition func() bool, timeout time.Duration, message string) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	s.T.Logf("WaitFor timeout: %s", message)
	return false
}

// AssertEventually asserts that a condition becomes true within timeout
func (s *IntegrationSuite) AssertEventually(condition func() bool, timeout time.Duration, message string) {
	if !s.WaitFor(condition, timeout, message) {
		s.T.Errorf("Assertion failed: %s", message)
	}
}

// ZeroPayload returns n segments of all-zero payload bytes
func ZeroPayload(n int) [][]byte {
	payload := make([][]byte, n)
	for i := range payload {
		payload[i] = make([]byte, atsc.EncodedLength)
	}
	return payload
}

// RandomPayload returns n segments of seeded random payload bytes
func RandomPayload(seed int64, n int) [][]byte {
	rng := rand.New(rand.NewSource(seed))
	payload := make([][]byte, n)
	for i := range payload {
		payload[i] = make([]byte, atsc.EncodedLength)
		rng.Read(payload[i])
	}
	return payload
}

// EncodeStream encodes payload segments and returns the soft symbols
// serialized as a little-endian float32 byte stream, the wire format
// the decode pipeline reads.
func EncodeStream(t *testing.T, payload [][]byte) []byte {
	t.Helper()
	enc := atsc.NewEncoder()
	segments, err := enc.Encode(payload)
	if err != nil {
		t.Fatalf("failed to encode payload: %v", err)
	}
	var buf bytes.Buffer
	scratch := make([]byte, 4)
	for _, seg := range segments {
		for _, s := range seg {
			binary.LittleEndian.PutUint32(scratch, math.Float32bits(s))
			buf.Write(scratch)
		}
	}
	return buf.Bytes()
}

// CreateDefaultConfig creates a default test configuration with all
// optional services disabled
func CreateDefaultConfig() *config.Config {
	return &config.Config{
		Receiver: config.ReceiverConfig{
			Name:        "Test Receiver",
			Description: "Integration Test Receiver",
		},
		Trellis: config.TrellisConfig{
			InterleaveFactor: atsc.NCoders,
			SegmentLength:    atsc.SegmentLength,
			EncodedLength:    atsc.EncodedLength,
		},
		Input:  config.InputConfig{Path: "-"},
		Output: config.OutputConfig{Path: "-"},
		Web: config.WebConfig{
			Enabled: false,
		},
		MQTT: config.MQTTConfig{
			Enabled: false,
		},
		Metrics: config.MetricsConfig{
			Enabled: false,
		},
	}
}
