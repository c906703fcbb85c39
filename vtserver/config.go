package vtserver

import "time"

// Config holds the tunables and advertised capabilities of a virtual
// terminal server.
type Config struct {
	// Version is the advertised VT protocol version byte (2..6).
	Version uint8

	// DataMaskPixelsX/Y are the reported data mask area dimensions.
	DataMaskPixelsX uint16
	DataMaskPixelsY uint16

	// SoftKeyPixelsX/Y are the reported soft key descriptor dimensions.
	SoftKeyPixelsX uint8
	SoftKeyPixelsY uint8

	// NavigationSoftKeys, VirtualSoftKeys and PhysicalSoftKeys are the
	// counts reported by the GetNumberOfSoftKeys reply.
	NavigationSoftKeys uint8
	VirtualSoftKeys    uint8
	PhysicalSoftKeys   uint8

	// StatusInterval is the VT status heartbeat period.
	StatusInterval time.Duration

	// WorkingSetTimeout is how long a client may go without a working
	// set maintenance message before its working set is torn down.
	WorkingSetTimeout time.Duration
}

// DefaultConfig returns a version 5 server with a 480x480 data mask,
// the standard 1000ms status cadence and the 6000ms maintenance timeout
// from ISO 11783-6.
func DefaultConfig() Config {
	return Config{
		Version:            5,
		DataMaskPixelsX:    480,
		DataMaskPixelsY:    480,
		SoftKeyPixelsX:     60,
		SoftKeyPixelsY:     60,
		NavigationSoftKeys: 0,
		VirtualSoftKeys:    64,
		PhysicalSoftKeys:   6,
		StatusInterval:     1000 * time.Millisecond,
		WorkingSetTimeout:  6000 * time.Millisecond,
	}
}

// Validate checks the configuration for sane values.
func (c *Config) Validate() error {
	if c.Version < 2 || c.Version > 6 {
		return newServerError("vt_version must be 2..6")
	}
	if c.StatusInterval <= 0 {
		return newServerError("status_interval must be positive")
	}
	if c.WorkingSetTimeout <= 0 {
		return newServerError("working_set_timeout must be positive")
	}
	return nil
}
