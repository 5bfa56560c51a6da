package consts

import "time"

// AppMode defines the running mode of Vigil.
type AppMode string

const (
	ModeRun     AppMode = "run"     // Owns a VT and supervises sessions
	ModePreview AppMode = "preview" // Input surface only, no VT switching
)

// SessionState defines the lifecycle state of one supervised session.
type SessionState string

const (
	StateIdle                SessionState = "IDLE"
	StateEnvironmentPrepared SessionState = "ENVIRONMENT_PREPARED"
	StateDisplayServer       SessionState = "DISPLAY_SERVER_RUNNING"
	StateDesktop             SessionState = "DESKTOP_RUNNING"
	StateAwaitingLogout      SessionState = "AWAITING_LOGOUT"
	StateTearingDown         SessionState = "TEARING_DOWN"
	StateDone                SessionState = "DONE"
)

// Default paths and timeouts.
const (
	DefaultConfigPath      = "/etc/vigil/config.yaml"
	DefaultEnvironmentsDir = "/etc/vigil/wms"
	DefaultLogPath         = "/var/log/vigil.log"
	PreviewLogPath         = "vigil.log"
	DefaultInboxPath       = "/tmp/vigil.inbox"
	DefaultOutboxPath      = "/tmp/vigil.outbox"
	DefaultPAMService      = "vigil"
	DefaultTTY             = 2

	LogoutAckTimeout     = 1 * time.Second
	DefaultXStartTimeout = 5 * time.Second
	DefaultStopGrace     = 2 * time.Second
)

// Environment variables read by Vigil itself.
const (
	EnvUser = "USER"
)

// Personal.AI order the ending
