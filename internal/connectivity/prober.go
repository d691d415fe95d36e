package connectivity

import (
	"context"
	"log"
	"net"
	"os"
	"time"
)

// DefaultProbeAddr is the Sheets API front door.
const DefaultProbeAddr = "sheets.googleapis.com:443"

// ProberConfig configures a Prober.
type ProberConfig struct {
	// Addr is dialed over TCP to decide reachability.
	Addr string

	// Interval between probes in Run.
	Interval time.Duration

	// Timeout for a single dial.
	Timeout time.Duration

	Logger *log.Logger
}

// DefaultProberConfig returns the default probe settings.
func DefaultProberConfig() *ProberConfig {
	return &ProberConfig{
		Addr:     DefaultProbeAddr,
		Interval: 30 * time.Second,
		Timeout:  3 * time.Second,
	}
}

// Prober turns dial results into Monitor events.
type Prober struct {
	monitor *Monitor
	config  *ProberConfig
	logger  *log.Logger
	dialer  func(ctx context.Context, network, addr string) (net.Conn, error)
}

// NewProber returns a Prober feeding monitor. A nil config uses
// DefaultProberConfig.
func NewProber(monitor *Monitor, config *ProberConfig) *Prober {
	if config == nil {
		config = DefaultProberConfig()
	}
	defaults := DefaultProberConfig()
	if config.Addr == "" {
		config.Addr = defaults.Addr
	}
	if config.Interval <= 0 {
		config.Interval = defaults.Interval
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}

	logger := config.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[probe] ", log.LstdFlags)
	}

	var d net.Dialer
	return &Prober{
		monitor: monitor,
		config:  config,
		logger:  logger,
		dialer:  d.DialContext,
	}
}

// Check dials once, updates the monitor and returns the result.
func (p *Prober) Check(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	conn, err := p.dialer(ctx, "tcp", p.config.Addr)
	online := err == nil
	if conn != nil {
		_ = conn.Close()
	}

	if online != p.monitor.IsOnline() {
		if online {
			p.logger.Printf("%s reachable, going online", p.config.Addr)
		} else {
			p.logger.Printf("%s unreachable, going offline: %v", p.config.Addr, err)
		}
	}
	p.monitor.Set(online)
	return online
}

// Run probes immediately and then on every interval until ctx is done.
func (p *Prober) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	p.Check(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.Check(ctx)
		}
	}
}
