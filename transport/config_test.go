package transport

import (
	"testing"
	"time"
)

func TestConfig_Validate(t *testing.T) {
	c := DefaultConfig()
	if err := c.Validate(); err != nil {
		t.Errorf("DefaultConfig should be valid, got: %v", err)
	}
}

func TestConfig_DefaultValues(t *testing.T) {
	c := DefaultConfig()
	if c.MinBAMGap != 50*time.Millisecond {
		t.Errorf("Expected default MinBAMGap to be 50ms, got %v", c.MinBAMGap)
	}
	if c.ConnectionTimeout != 1250*time.Millisecond {
		t.Errorf("Expected default ConnectionTimeout to be 1250ms, got %v", c.ConnectionTimeout)
	}
	if c.BroadcastRxTimeout != 750*time.Millisecond {
		t.Errorf("Expected default BroadcastRxTimeout to be 750ms, got %v", c.BroadcastRxTimeout)
	}
	if c.CTSHoldTimeout != 1050*time.Millisecond {
		t.Errorf("Expected default CTSHoldTimeout to be 1050ms, got %v", c.CTSHoldTimeout)
	}
	if c.RxDataGapTimeout != 200*time.Millisecond {
		t.Errorf("Expected default RxDataGapTimeout to be 200ms, got %v", c.RxDataGapTimeout)
	}
}

func TestConfig_RejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero sessions", func(c *Config) { c.MaxSessions = 0 }},
		{"zero frames per tick", func(c *Config) { c.MaxFramesPerTick = 0 }},
		{"zero bam gap", func(c *Config) { c.MinBAMGap = 0 }},
	}
	for _, tc := range cases {
		c := DefaultConfig()
		tc.mutate(&c)
		if err := c.Validate(); err == nil {
			t.Errorf("%s: expected validation error", tc.name)
		}
	}
}

func TestPacketCountForLength(t *testing.T) {
	cases := []struct {
		length int
		want   int
	}{
		{9, 2},
		{14, 2},
		{15, 3},
		{100, 15},
		{1785, 255},
	}
	for _, tc := range cases {
		if got := packetCountForLength(tc.length); got != tc.want {
			t.Errorf("packetCountForLength(%d) = %d, want %d", tc.length, got, tc.want)
		}
	}
}
