package client

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidRole is returned by ParseRole for anything but publisher or
// subscriber.
var ErrInvalidRole = errors.New("invalid client role")

// Role selects the behaviour of a client for its whole lifetime.
type Role int

const (
	RolePublisher Role = iota + 1
	RoleSubscriber
)

func (r Role) String() string {
	switch r {
	case RolePublisher:
		return "publisher"
	case RoleSubscriber:
		return "subscriber"
	default:
		return fmt.Sprintf("Role(%d)", int(r))
	}
}

// ParseRole parses a role name, ignoring case.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "publisher":
		return RolePublisher, nil
	case "subscriber":
		return RoleSubscriber, nil
	case "":
		return 0, fmt.Errorf("%w: role is required", ErrInvalidRole)
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidRole, s)
	}
}

// State is the lifecycle position of a client.
type State int32

const (
	StateAttached State = iota
	StateRunning
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateAttached:
		return "attached"
	case StateRunning:
		return "running"
	case StateTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}
