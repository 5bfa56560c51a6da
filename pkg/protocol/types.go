package protocol

import "time"

// Config represents the root configuration of the login manager.
type Config struct {
	TTY             int             `mapstructure:"tty" yaml:"tty"`
	EnvironmentsDir string          `mapstructure:"environments_dir" yaml:"environments_dir"`
	PAMService      string          `mapstructure:"pam_service" yaml:"pam_service"`
	Handshake       HandshakeConfig `mapstructure:"handshake" yaml:"handshake"`
	X               XConfig         `mapstructure:"x" yaml:"x"`
	Log             LogConfig       `mapstructure:"log" yaml:"log"`
	Metrics         MetricsConfig   `mapstructure:"metrics" yaml:"metrics"`
}

// HandshakeConfig holds the rendezvous socket paths for logout requests.
type HandshakeConfig struct {
	InboxPath  string        `mapstructure:"inbox_path" yaml:"inbox_path"`
	OutboxPath string        `mapstructure:"outbox_path" yaml:"outbox_path"`
	Verbose    bool          `mapstructure:"verbose" yaml:"verbose"`
	AckTimeout time.Duration `mapstructure:"ack_timeout" yaml:"ack_timeout"`
}

type XConfig struct {
	ServerPath     string        `mapstructure:"server_path" yaml:"server_path"`
	ServerArgs     []string      `mapstructure:"server_args" yaml:"server_args"`
	XAuthPath      string        `mapstructure:"xauth_path" yaml:"xauth_path"`
	StartupTimeout time.Duration `mapstructure:"startup_timeout" yaml:"startup_timeout"`
	DesktopShell   string        `mapstructure:"desktop_shell" yaml:"desktop_shell"`
	StopGrace      time.Duration `mapstructure:"stop_grace" yaml:"stop_grace"`
}

type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
	Path  string `mapstructure:"path" yaml:"path"`
}

type MetricsConfig struct {
	Listen string `mapstructure:"listen" yaml:"listen"`
}

// Personal.AI order the ending
