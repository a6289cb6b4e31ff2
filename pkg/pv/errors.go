package pv

import "fmt"

// ClientInitError is raised when a live client cannot be constructed: no
// provider configured, or the channel was refused.
type ClientInitError struct {
	Channel string
	Reason  string
}

func (e *ClientInitError) Error() string {
	return fmt.Sprintf("pv: failed to initialize client for channel %q: %s", e.Channel, e.Reason)
}
