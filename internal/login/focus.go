package login

// Focus is the input element currently receiving keystrokes.
type Focus int

const (
	FocusNormal Focus = iota
	FocusWMSelect
	FocusUsername
	FocusPassword
)

func (f Focus) String() string {
	switch f {
	case FocusNormal:
		return "normal"
	case FocusWMSelect:
		return "wm-select"
	case FocusUsername:
		return "username"
	case FocusPassword:
		return "password"
	default:
		return "unknown"
	}
}

// Next moves forward; Password absorbs further moves.
func (f Focus) Next() Focus {
	if f >= FocusPassword {
		return FocusPassword
	}
	return f + 1
}

// Prev moves backward; Normal absorbs further moves.
func (f Focus) Prev() Focus {
	if f <= FocusNormal {
		return FocusNormal
	}
	return f - 1
}

// Forward applies a forward key. Holding shift turns it into a backward move.
func (f Focus) Forward(shift bool) Focus {
	if shift {
		return f.Prev()
	}
	return f.Next()
}

// Personal.AI order the ending
