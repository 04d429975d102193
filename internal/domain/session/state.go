package session

import (
	"errors"
	"fmt"
)

// State is the lifecycle of one connection. A new connection always starts at StateConnecting.
type State string

const (
	StateConnecting    State = "CONNECTING"
	StateAuthenticated State = "AUTHENTICATED"
	StateActive        State = "ACTIVE"
	StateDisconnected  State = "DISCONNECTED"
)

var ErrIllegalTransition = errors.New("illegal session state transition")

// CanTransition reports whether moving from s to next is allowed.
// DISCONNECTED is terminal and reachable from every other state.
func (s State) CanTransition(next State) bool {
	switch next {
	case StateDisconnected:
		return s != StateDisconnected
	case StateAuthenticated:
		return s == StateConnecting
	case StateActive:
		return s == StateAuthenticated
	default:
		return false
	}
}

func (s State) String() string { return string(s) }

func transitionError(from, to State) error {
	return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, to)
}
