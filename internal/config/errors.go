package config

import "errors"

var (
	ErrInvalidConfig          = errors.New("invalid config")
	ErrInvalidDuration        = errors.New("invalid duration")
	ErrDurationBelowMinimum   = errors.New("duration below minimum")
	ErrInvalidRestartSchedule = errors.New("invalid restart schedule")
)
