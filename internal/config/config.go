// Package config loads the Vigil configuration file on top of built-in
// defaults.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"slices"
	"strings"

	"github.com/spf13/viper"

	"github.com/turtacn/Vigil/pkg/consts"
	verrors "github.com/turtacn/Vigil/pkg/errors"
	"github.com/turtacn/Vigil/pkg/logger"
	"github.com/turtacn/Vigil/pkg/protocol"
)

// EnvPrefix prefixes environment overrides, e.g. VIGIL_TTY or
// VIGIL_HANDSHAKE_INBOX_PATH.
const EnvPrefix = "VIGIL"

// Default returns the configuration used when no file overrides it.
func Default() *protocol.Config {
	return &protocol.Config{
		TTY:             consts.DefaultTTY,
		EnvironmentsDir: consts.DefaultEnvironmentsDir,
		PAMService:      consts.DefaultPAMService,
		Handshake: protocol.HandshakeConfig{
			InboxPath:  consts.DefaultInboxPath,
			OutboxPath: consts.DefaultOutboxPath,
			Verbose:    true,
			AckTimeout: consts.LogoutAckTimeout,
		},
		X: protocol.XConfig{
			ServerPath:     "/usr/bin/X",
			ServerArgs:     []string{"-nolisten", "tcp"},
			XAuthPath:      "/usr/bin/xauth",
			StartupTimeout: consts.DefaultXStartTimeout,
			DesktopShell:   "/bin/sh",
			StopGrace:      consts.DefaultStopGrace,
		},
		Log: protocol.LogConfig{
			Level: "info",
			Path:  consts.DefaultLogPath,
		},
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("tty", d.TTY)
	v.SetDefault("environments_dir", d.EnvironmentsDir)
	v.SetDefault("pam_service", d.PAMService)

	v.SetDefault("handshake.inbox_path", d.Handshake.InboxPath)
	v.SetDefault("handshake.outbox_path", d.Handshake.OutboxPath)
	v.SetDefault("handshake.verbose", d.Handshake.Verbose)
	v.SetDefault("handshake.ack_timeout", d.Handshake.AckTimeout)

	v.SetDefault("x.server_path", d.X.ServerPath)
	v.SetDefault("x.server_args", d.X.ServerArgs)
	v.SetDefault("x.xauth_path", d.X.XAuthPath)
	v.SetDefault("x.startup_timeout", d.X.StartupTimeout)
	v.SetDefault("x.desktop_shell", d.X.DesktopShell)
	v.SetDefault("x.stop_grace", d.X.StopGrace)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.path", d.Log.Path)

	v.SetDefault("metrics.listen", d.Metrics.Listen)
}

// Load reads the YAML file at path over the defaults. A missing file is
// only an error when explicit is set, i.e. the user named it.
func Load(path string, explicit bool) (*protocol.Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		if !errors.Is(err, fs.ErrNotExist) || explicit {
			return nil, verrors.New(verrors.ErrCodeConfigInvalid, "Load", "failed to read config "+path, err)
		}
		logger.Log.Warn("Config file not found, using defaults", "path", path)
	}

	var cfg protocol.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, verrors.New(verrors.ErrCodeConfigInvalid, "Load", "failed to decode config", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ValidationError describes one invalid field.
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidLogLevels returns the accepted values of log.level.
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Validate checks cfg and reports every invalid field at once.
func Validate(cfg *protocol.Config) error {
	var errs []error
	add := func(field string, value any, msg string) {
		errs = append(errs, ValidationError{Field: field, Value: value, Message: msg})
	}

	if cfg.TTY < 1 || cfg.TTY > 63 {
		add("tty", cfg.TTY, "must be between 1 and 63")
	}
	if cfg.PAMService == "" {
		add("pam_service", cfg.PAMService, "must not be empty")
	}
	if cfg.Handshake.InboxPath == "" {
		add("handshake.inbox_path", cfg.Handshake.InboxPath, "must not be empty")
	}
	if cfg.Handshake.OutboxPath == "" {
		add("handshake.outbox_path", cfg.Handshake.OutboxPath, "must not be empty")
	}
	if cfg.Handshake.InboxPath != "" && cfg.Handshake.InboxPath == cfg.Handshake.OutboxPath {
		add("handshake.outbox_path", cfg.Handshake.OutboxPath, "must differ from the inbox path")
	}
	if cfg.Handshake.AckTimeout <= 0 {
		add("handshake.ack_timeout", cfg.Handshake.AckTimeout, "must be positive")
	}
	if cfg.X.ServerPath == "" {
		add("x.server_path", cfg.X.ServerPath, "must not be empty")
	}
	if cfg.X.DesktopShell == "" {
		add("x.desktop_shell", cfg.X.DesktopShell, "must not be empty")
	}
	if cfg.X.StartupTimeout <= 0 {
		add("x.startup_timeout", cfg.X.StartupTimeout, "must be positive")
	}
	if cfg.X.StopGrace < 0 {
		add("x.stop_grace", cfg.X.StopGrace, "must not be negative")
	}
	if !slices.Contains(ValidLogLevels(), strings.ToLower(cfg.Log.Level)) {
		add("log.level", cfg.Log.Level, "must be one of "+strings.Join(ValidLogLevels(), ", "))
	}

	if len(errs) == 0 {
		return nil
	}
	return verrors.New(verrors.ErrCodeConfigInvalid, "Validate", "invalid configuration", errors.Join(errs...))
}

// Personal.AI order the ending
