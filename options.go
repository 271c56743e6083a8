package cubealarm

import (
	"log/slog"
	"time"

	"github.com/pshapiro/cubealarm/internal/ble"
)

// Option configures a Monitor.
type Option func(*config)

type config struct {
	tickInterval   time.Duration
	scan           ble.ScanParams
	writeMode      ble.WriteMode
	retryBudget    int
	notifyDepth    int
	logger         *slog.Logger
	sounder        Sounder
	alarmOnConnect bool
}

func defaultConfig() *config {
	return &config{
		tickInterval: 5 * time.Millisecond,
		writeMode:    ble.WriteUnacknowledged,
	}
}

// WithTickInterval sets the period of the monitor's service loop. The
// default of 5ms keeps command latency low without busy-waiting.
func WithTickInterval(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.tickInterval = d
		}
	}
}

// WithScanWindow bounds each scan attempt. A zero duration (the default)
// scans until the cube appears.
func WithScanWindow(d time.Duration) Option {
	return func(c *config) {
		c.scan.Duration = d
	}
}

// WithAcknowledgedWrites switches command delivery to acknowledged writes.
// The cube accepts both modes; which is more reliable depends on the host
// Bluetooth stack.
func WithAcknowledgedWrites() Option {
	return func(c *config) {
		c.writeMode = ble.WriteAcknowledged
	}
}

// WithRetryBudget sets how many delivery attempts each command gets before
// it is dropped. Default 3.
func WithRetryBudget(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.retryBudget = n
		}
	}
}

// WithLogger routes the monitor's structured logs. Defaults to slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// WithSounder attaches an alarm sounder. The monitor stops it when the cube
// reports a solved state.
func WithSounder(s Sounder) Option {
	return func(c *config) {
		c.sounder = s
	}
}

// WithAlarmOnConnect starts the sounder as soon as the session becomes
// ready. Twisting the cube wakes it from sleep, so this turns the first
// touch of the cube into the alarm trigger.
func WithAlarmOnConnect() Option {
	return func(c *config) {
		c.alarmOnConnect = true
	}
}
