package config

import "time"

// IngestConfig is the root configuration for an ingest instance.
type IngestConfig struct {
	IRC     IRCConfig     `yaml:"irc"`
	Queues  QueuesConfig  `yaml:"queues"`
	Output  OutputConfig  `yaml:"output"`
	Metrics MetricsConfig `yaml:"metrics"`
	Logging LoggingConfig `yaml:"logging"`
}

// IRCConfig holds the IRC session settings.
type IRCConfig struct {
	Server            string        `yaml:"server"`
	Port              int           `yaml:"port"`
	Transport         string        `yaml:"transport"` // "tcp", "tls" or "websocket"
	WebSocketURL      string        `yaml:"websocket_url"`
	Nickname          string        `yaml:"nickname"`
	Username          string        `yaml:"username"`
	Realname          string        `yaml:"realname"`
	Password          string        `yaml:"password"`
	Channels          []string      `yaml:"channels"`
	ReconnectCooldown time.Duration `yaml:"reconnect_cooldown"`
	DialTimeout       time.Duration `yaml:"dial_timeout"`
	ReadTimeout       time.Duration `yaml:"read_timeout"`
	WriteTimeout      time.Duration `yaml:"write_timeout"`
	SendRate          float64       `yaml:"send_rate"` // lines per second
	SendBurst         int           `yaml:"send_burst"`
}

// QueuesConfig holds destination queue settings.
type QueuesConfig struct {
	BufferSize int `yaml:"buffer_size"` // initial capacity, queues grow on demand
}

// OutputConfig selects the writers that drain destinations.
// Destinations consumed by neither writer are drained and discarded.
type OutputConfig struct {
	Stream  StreamConfig  `yaml:"stream"`
	Archive ArchiveConfig `yaml:"archive"`
}

// StreamConfig holds JSON-lines writer settings.
type StreamConfig struct {
	Enabled      bool     `yaml:"enabled"`
	Path         string   `yaml:"path"` // empty = stdout
	Destinations []string `yaml:"destinations"`
}

// ArchiveConfig holds PostgreSQL archive writer settings.
type ArchiveConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Destinations  []string      `yaml:"destinations"`
	Database      DBConfig      `yaml:"database"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// MetricsConfig holds the admin HTTP server settings.
type MetricsConfig struct {
	Port    int    `yaml:"port"`
	Path    string `yaml:"path"`
	GinMode string `yaml:"gin_mode"` // "release", "debug" or "test"
}

// LoggingConfig holds log level and rotating file settings.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"` // empty = stderr only
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}
