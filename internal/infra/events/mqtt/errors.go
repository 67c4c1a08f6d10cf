package mqtt

import "errors"

// Errors returned by the publisher. Use errors.Is to match them.
var (
	ErrNotConnected     = errors.New("mqtt: client not connected")
	ErrConnectionFailed = errors.New("mqtt: connection failed")
	ErrPublishFailed    = errors.New("mqtt: publish failed")
	ErrInvalidQoS       = errors.New("mqtt: invalid QoS level (must be 0, 1, or 2)")
	ErrInvalidTopic     = errors.New("mqtt: topic prefix cannot be empty")
)
