package inventory

import (
	"errors"
	"fmt"
)

var (
	// ErrNoServers is returned when no server is eligible for the inventory.
	ErrNoServers = errors.New("no eligible servers configured")

	// ErrKeyCollision is returned when two display names sanitize to the same key.
	ErrKeyCollision = errors.New("inventory key collision")

	// ErrUnknownHost is returned when a host selector names a key that is not
	// in the inventory.
	ErrUnknownHost = errors.New("unknown inventory host")
)

// ConfigError reports a problem with the server configuration that prevents
// an inventory from being built or a selector from being resolved. It is a
// call-level error: nothing was executed.
type ConfigError struct {
	Detail string
	Err    error
}

func (e *ConfigError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("config error: %v", e.Err)
	}
	return fmt.Sprintf("config error: %v: %s", e.Err, e.Detail)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}
