package mqtt

import (
	"context"
	"testing"
	"time"
)

// TestNewPublisher tests creating a new MQTT publisher
func TestNewPublisher(t *testing.T) {
	config := Config{
		Enabled:     true,
		Broker:      "tcp://localhost:1883",
		TopicPrefix: "atsc/test",
		ClientID:    "test-client",
		QoS:         1,
		Retained:    false,
	}

	pub := New(config, nil)
	if pub == nil {
		t.Fatal("Expected non-nil publisher")
	}

	if pub.config.Broker != config.Broker {
		t.Errorf("Expected broker %s, got %s", config.Broker, pub.config.Broker)
	}
}

// TestPublisher_StartWhenDisabled tests starting the publisher (when disabled)
func TestPublisher_StartWhenDisabled(t *testing.T) {
	config := Config{
		Enabled: false,
	}

	pub := New(config, nil)
	ctx := context.Background()

	err := pub.Start(ctx)
	if err != nil {
		t.Errorf("Expected no error when disabled, got %v", err)
	}
}

// TestPublisher_Stop tests stopping the publisher
func TestPublisher_Stop(t *testing.T) {
	config := Config{
		Enabled: false,
	}

	pub := New(config, nil)

	// Should not panic when stopping without starting
	pub.Stop()
}

// TestPublisher_PublishWhenDisabled tests that publishing is a no-op when disabled
func TestPublisher_PublishWhenDisabled(t *testing.T) {
	config := Config{
		Enabled:     false,
		TopicPrefix: "atsc/test",
	}

	pub := New(config, nil)

	if err := pub.PublishWindow(WindowEvent{
		Windows:   1,
		Segments:  12,
		BytesOut:  12 * 207,
		Timestamp: time.Now(),
	}); err != nil {
		t.Errorf("Expected no error when disabled, got %v", err)
	}

	if err := pub.PublishBranchMetrics(BranchMetricsEvent{
		Metrics:   []float64{0, 1, 2},
		Timestamp: time.Now(),
	}); err != nil {
		t.Errorf("Expected no error when disabled, got %v", err)
	}

	if err := pub.PublishReset(ResetEvent{
		Reason:    "input restart",
		Timestamp: time.Now(),
	}); err != nil {
		t.Errorf("Expected no error when disabled, got %v", err)
	}

	if err := pub.PublishRun(RunEvent{
		Source:    "capture.f32",
		State:     "started",
		Timestamp: time.Now(),
	}); err != nil {
		t.Errorf("Expected no error when disabled, got %v", err)
	}
}

// TestTopicFormat tests topic formatting
func TestTopicFormat(t *testing.T) {
	tests := []struct {
		name     string
		prefix   string
		suffix   string
		expected string
	}{
		{
			name:     "simple topic",
			prefix:   "atsc/nexus",
			suffix:   "decoder/window",
			expected: "atsc/nexus/decoder/window",
		},
		{
			name:     "trailing slash in prefix",
			prefix:   "atsc/nexus/",
			suffix:   "decoder/window",
			expected: "atsc/nexus/decoder/window",
		},
		{
			name:     "empty prefix",
			prefix:   "",
			suffix:   "decoder/window",
			expected: "decoder/window",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := Config{
				TopicPrefix: tt.prefix,
			}
			pub := New(config, nil)
			topic := pub.formatTopic(tt.suffix)
			if topic != tt.expected {
				t.Errorf("Expected topic %s, got %s", tt.expected, topic)
			}
		})
	}
}

// TestEventSerialization tests that events can be serialized to JSON
func TestEventSerialization(t *testing.T) {
	tests := []struct {
		name  string
		event interface{}
	}{
		{
			name: "RunEvent",
			event: RunEvent{
				Source:    "capture.f32",
				State:     "finished",
				Segments:  312,
				Windows:   26,
				Timestamp: time.Now(),
			},
		},
		{
			name: "WindowEvent",
			event: WindowEvent{
				Windows:   26,
				Segments:  312,
				BytesOut:  312 * 207,
				Timestamp: time.Now(),
			},
		},
		{
			name: "BranchMetricsEvent",
			event: BranchMetricsEvent{
				Metrics:   []float64{0, 0.5, 1, 1.5},
				Timestamp: time.Now(),
			},
		},
		{
			name: "ResetEvent",
			event: ResetEvent{
				Reason:    "input restart",
				Timestamp: time.Now(),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := Config{
				Enabled: false,
			}
			pub := New(config, nil)

			_, err := pub.serializeEvent(tt.event)
			if err != nil {
				t.Errorf("Failed to serialize %s: %v", tt.name, err)
			}
		})
	}
}
