package config

import (
	"slices"
	"time"

	"github.com/rickgao/irc-ingest/internal/router"
)

// Default values for optional configuration fields.
const (
	DefaultServer            = "localhost"
	DefaultPort              = 6667
	DefaultTLSPort           = 6697
	DefaultTransport         = "tcp"
	DefaultNickname          = "wishbone"
	DefaultChannel           = "wishbone"
	DefaultReconnectCooldown = 1 * time.Second
	DefaultDialTimeout       = 10 * time.Second
	DefaultReadTimeout       = 5 * time.Minute
	DefaultWriteTimeout      = 5 * time.Second
	DefaultSendRate          = 2.0
	DefaultSendBurst         = 5
	DefaultQueueBufferSize   = 1000
	DefaultOutputDestination = "outbox"
	DefaultDBPort            = 5432
	DefaultDBSSLMode         = "prefer"
	DefaultMaxConns          = 4
	DefaultMinConns          = 1
	DefaultBatchSize         = 500
	DefaultFlushInterval     = 1 * time.Second
	DefaultMetricsPort       = 9090
	DefaultMetricsPath       = "/metrics"
	DefaultGinMode           = "release"
	DefaultLogLevel          = "info"
	DefaultLogMaxSizeMB      = 64
	DefaultLogMaxBackups     = 8
	DefaultLogMaxAgeDays     = 30
)

func (c *IngestConfig) applyDefaults() {
	// IRC defaults
	if c.IRC.Server == "" {
		c.IRC.Server = DefaultServer
	}
	if c.IRC.Transport == "" {
		c.IRC.Transport = DefaultTransport
	}
	if c.IRC.Port == 0 {
		if c.IRC.Transport == "tls" {
			c.IRC.Port = DefaultTLSPort
		} else {
			c.IRC.Port = DefaultPort
		}
	}
	if c.IRC.Nickname == "" {
		c.IRC.Nickname = DefaultNickname
	}
	if c.IRC.Username == "" {
		c.IRC.Username = c.IRC.Nickname
	}
	if c.IRC.Realname == "" {
		c.IRC.Realname = c.IRC.Nickname
	}
	if c.IRC.Channels == nil {
		c.IRC.Channels = []string{DefaultChannel}
	}
	if c.IRC.ReconnectCooldown == 0 {
		c.IRC.ReconnectCooldown = DefaultReconnectCooldown
	}
	if c.IRC.DialTimeout == 0 {
		c.IRC.DialTimeout = DefaultDialTimeout
	}
	if c.IRC.ReadTimeout == 0 {
		c.IRC.ReadTimeout = DefaultReadTimeout
	}
	if c.IRC.WriteTimeout == 0 {
		c.IRC.WriteTimeout = DefaultWriteTimeout
	}
	if c.IRC.SendRate == 0 {
		c.IRC.SendRate = DefaultSendRate
	}
	if c.IRC.SendBurst == 0 {
		c.IRC.SendBurst = DefaultSendBurst
	}

	// Queue defaults
	if c.Queues.BufferSize == 0 {
		c.Queues.BufferSize = DefaultQueueBufferSize
	}

	// Output defaults. With no writer enabled, routed events go to stdout.
	if !c.Output.Stream.Enabled && !c.Output.Archive.Enabled {
		c.Output.Stream.Enabled = true
	}
	if c.Output.Archive.Destinations == nil {
		c.Output.Archive.Destinations = []string{DefaultOutputDestination}
	}
	if c.Output.Stream.Destinations == nil {
		if c.Output.Stream.Enabled && c.Output.Archive.Enabled {
			// Each queue has one reader, so the stream takes what the archive leaves
			c.Output.Stream.Destinations = c.remainingDestinations(c.Output.Archive.Destinations)
		} else {
			c.Output.Stream.Destinations = []string{DefaultOutputDestination}
		}
	}
	if c.Output.Archive.BatchSize == 0 {
		c.Output.Archive.BatchSize = DefaultBatchSize
	}
	if c.Output.Archive.FlushInterval == 0 {
		c.Output.Archive.FlushInterval = DefaultFlushInterval
	}
	applyDBDefaults(&c.Output.Archive.Database)

	// Metrics defaults
	if c.Metrics.Port == 0 {
		c.Metrics.Port = DefaultMetricsPort
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
	if c.Metrics.GinMode == "" {
		c.Metrics.GinMode = DefaultGinMode
	}

	// Logging defaults
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.MaxSizeMB == 0 {
		c.Logging.MaxSizeMB = DefaultLogMaxSizeMB
	}
	if c.Logging.MaxBackups == 0 {
		c.Logging.MaxBackups = DefaultLogMaxBackups
	}
	if c.Logging.MaxAgeDays == 0 {
		c.Logging.MaxAgeDays = DefaultLogMaxAgeDays
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}

// remainingDestinations lists every destination the router will create,
// minus the ones named in taken.
func (c *IngestConfig) remainingDestinations(taken []string) []string {
	skip := make(map[string]bool, len(taken))
	for _, name := range taken {
		skip[destinationKey(name)] = true
	}

	all := []string{DefaultOutputDestination}
	for _, ch := range c.IRC.Channels {
		all = append(all, router.NormalizeChannel(ch))
	}
	all = append(all, router.PrivateDestination(c.IRC.Nickname))

	var out []string
	for _, name := range all {
		if name == "" || skip[destinationKey(name)] || slices.Contains(out, name) {
			continue
		}
		out = append(out, name)
	}
	return out
}

// destinationKey folds a configured destination name the way the router
// folds channel names.
func destinationKey(name string) string {
	return router.NormalizeChannel(name)
}
