package broker

import (
	"errors"
	"fmt"
)

// errQueueFull is the Err wrapped by a ProduceError returned when an
// Instance's internal output queue rejects a message synchronously.
var errQueueFull = errors.New("broker instance output queue is full")

// InstanceFailureError reports a broker instance's error-callback flag
// having tripped.
type InstanceFailureError struct {
	InstanceID string
	Err        error
}

func (e *InstanceFailureError) Error() string {
	return fmt.Sprintf("broker: instance %s failed: %v", e.InstanceID, e.Err)
}

func (e *InstanceFailureError) Unwrap() error { return e.Err }

// ProduceError reports a synchronous or asynchronous produce rejection.
type ProduceError struct {
	Topic string
	Err   error
}

func (e *ProduceError) Error() string {
	return fmt.Sprintf("broker: produce to topic %q failed: %v", e.Topic, e.Err)
}

func (e *ProduceError) Unwrap() error { return e.Err }

// ErrMessageTooLarge is returned by TopicHandle.Produce when the payload
// exceeds the configured maximum message size.
type ErrMessageTooLarge struct {
	Size, Max int
}

func (e *ErrMessageTooLarge) Error() string {
	return fmt.Sprintf("broker: message of %d bytes exceeds max %d bytes", e.Size, e.Max)
}
