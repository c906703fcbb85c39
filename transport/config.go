package transport

import "time"

// Config holds the tunables for a Manager.
type Config struct {
	// MaxSessions caps the number of simultaneously active sessions.
	// Over-limit RTS is aborted; over-limit BAM is silently dropped.
	MaxSessions int

	// MaxFramesPerTick throttles TP.DT frames transmitted per Tick for a
	// connection-mode (non-broadcast) session.
	MaxFramesPerTick int

	// MinBAMGap is the minimum spacing between broadcast data frames.
	MinBAMGap time.Duration

	// BroadcastRxTimeout (T1) bounds the gap between broadcast data
	// frames on the receiving side.
	BroadcastRxTimeout time.Duration
	// ConnectionTimeout (T2/T3) bounds how long a sender waits for a CTS
	// or an EOM-ACK.
	ConnectionTimeout time.Duration
	// CTSHoldTimeout (T4) bounds how long a sender may be held in a
	// zero-packet "wait" CTS before it must see a real grant.
	CTSHoldTimeout time.Duration
	// RxDataGapTimeout (Tr) bounds the gap between data frames of a
	// connection-mode receive session.
	RxDataGapTimeout time.Duration
}

// DefaultConfig returns the standard ISO 11783-3 / SAE J1939-21 timing
// defaults.
func DefaultConfig() Config {
	return Config{
		MaxSessions:        4,
		MaxFramesPerTick:   1,
		MinBAMGap:          50 * time.Millisecond,
		BroadcastRxTimeout: 750 * time.Millisecond,
		ConnectionTimeout:  1250 * time.Millisecond,
		CTSHoldTimeout:     1050 * time.Millisecond,
		RxDataGapTimeout:   200 * time.Millisecond,
	}
}

// Validate checks the configuration for sane values.
func (c *Config) Validate() error {
	if c.MaxSessions <= 0 {
		return newProtocolError("max_sessions must be positive")
	}
	if c.MaxFramesPerTick <= 0 {
		return newProtocolError("max_frames_per_tick must be positive")
	}
	if c.MinBAMGap <= 0 {
		return newProtocolError("min_bam_gap must be positive")
	}
	return nil
}
