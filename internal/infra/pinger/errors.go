package pinger

import "errors"

var (
	// ErrNilPinger is returned when registering a nil pinger
	ErrNilPinger = errors.New("pinger cannot be nil")

	// ErrPingerNotFound is returned when no pinger is registered under the name
	ErrPingerNotFound = errors.New("pinger not found")

	// ErrPingerAlreadyRegistered is returned when a pinger with the same name is registered
	ErrPingerAlreadyRegistered = errors.New("pinger already registered")
)
