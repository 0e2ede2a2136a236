package domain

import "fmt"

// System identifies one of the two integrated platforms.
type System string

const (
	SystemCanvas    System = "canvas"
	SystemDiscourse System = "discourse"
)

// Complement returns the opposite system. Every sync flows between exactly
// two systems, so the target is always derivable from the source.
func (s System) Complement() System {
	if s == SystemCanvas {
		return SystemDiscourse
	}
	return SystemCanvas
}

// IsValid reports whether s is one of the two known systems.
func (s System) IsValid() bool {
	return s == SystemCanvas || s == SystemDiscourse
}

func (s System) String() string {
	return string(s)
}

// ParseSystem converts a wire string into a System.
func ParseSystem(raw string) (System, error) {
	switch System(raw) {
	case SystemCanvas:
		return SystemCanvas, nil
	case SystemDiscourse:
		return SystemDiscourse, nil
	default:
		return "", &ValidationError{Field: "sourceSystem", Reason: fmt.Sprintf("unknown system %q", raw)}
	}
}
