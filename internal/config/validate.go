package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks that all required fields are set and values are valid.
func (c *IngestConfig) Validate() error {
	if c.IRC.Server == "" && c.IRC.Transport != "websocket" {
		return errors.New("irc.server is required")
	}
	if c.IRC.Port < 1 || c.IRC.Port > 65535 {
		return fmt.Errorf("irc.port must be between 1 and 65535, got %d", c.IRC.Port)
	}
	switch c.IRC.Transport {
	case "tcp", "tls":
	case "websocket":
		if c.IRC.WebSocketURL == "" {
			return errors.New("irc.websocket_url is required for websocket transport")
		}
	default:
		return fmt.Errorf("irc.transport must be one of tcp, tls, websocket, got %q", c.IRC.Transport)
	}
	if c.IRC.Nickname == "" {
		return errors.New("irc.nickname is required")
	}
	if strings.ContainsAny(c.IRC.Nickname, " ,*?!@#:") {
		return fmt.Errorf("irc.nickname %q contains invalid characters", c.IRC.Nickname)
	}
	for i, ch := range c.IRC.Channels {
		if strings.TrimLeft(ch, "#") == "" {
			return fmt.Errorf("irc.channels[%d] is empty", i)
		}
		if strings.ContainsAny(ch, " ,\a") {
			return fmt.Errorf("irc.channels[%d] %q contains invalid characters", i, ch)
		}
	}
	if c.IRC.ReconnectCooldown < 0 {
		return errors.New("irc.reconnect_cooldown must be >= 0")
	}
	if c.IRC.SendRate <= 0 {
		return errors.New("irc.send_rate must be > 0")
	}
	if c.IRC.SendBurst < 1 {
		return errors.New("irc.send_burst must be >= 1")
	}

	if c.Queues.BufferSize < 1 {
		return errors.New("queues.buffer_size must be >= 1")
	}

	if c.Output.Archive.Enabled {
		if err := c.Output.Archive.Database.validate("output.archive.database"); err != nil {
			return err
		}
		if c.Output.Archive.BatchSize < 1 {
			return errors.New("output.archive.batch_size must be >= 1")
		}
	}

	// Each destination queue has exactly one consumer
	if c.Output.Stream.Enabled && c.Output.Archive.Enabled {
		seen := make(map[string]bool, len(c.Output.Stream.Destinations))
		for _, d := range c.Output.Stream.Destinations {
			seen[destinationKey(d)] = true
		}
		for _, d := range c.Output.Archive.Destinations {
			if seen[destinationKey(d)] {
				return fmt.Errorf("output destination %q is assigned to both stream and archive", d)
			}
		}
	}

	if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
		return fmt.Errorf("metrics.port must be between 1 and 65535, got %d", c.Metrics.Port)
	}
	switch c.Metrics.GinMode {
	case "release", "debug", "test":
	default:
		return fmt.Errorf("metrics.gin_mode must be one of release, debug, test, got %q", c.Metrics.GinMode)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error, got %q", c.Logging.Level)
	}

	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
