package login

// StatusKind enumerates the progress notifications of a login attempt.
type StatusKind int

const (
	StatusAuthenticating StatusKind = iota
	StatusLoggingIn
	StatusAuthenticationFailed
	StatusGraphicalEnvironmentFailed
	StatusDesktopFailed
	StatusCleared
)

// Status is one progress notification. Reason is set for
// StatusAuthenticationFailed only.
type Status struct {
	Kind   StatusKind
	Reason string
}

// Text returns the message shown to the user; empty for StatusCleared.
func (s Status) Text() string {
	switch s.Kind {
	case StatusAuthenticating:
		return "Verifying credentials"
	case StatusLoggingIn:
		return "Authentication successful. Logging in..."
	case StatusAuthenticationFailed:
		return "Authentication failed: " + s.Reason
	case StatusGraphicalEnvironmentFailed:
		return "Failed booting into the graphical environment"
	case StatusDesktopFailed:
		return "Failed booting into desktop environment"
	default:
		return ""
	}
}

// IsError reports whether s describes a failure.
func (s Status) IsError() bool {
	switch s.Kind {
	case StatusAuthenticationFailed, StatusGraphicalEnvironmentFailed, StatusDesktopFailed:
		return true
	}
	return false
}

// Terminal reports whether s is the last notification of an attempt.
func (s Status) Terminal() bool {
	return s.IsError() || s.Kind == StatusCleared
}

// Personal.AI order the ending
