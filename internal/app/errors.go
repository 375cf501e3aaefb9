package app

import "errors"

var (
	ErrRegisterApplication = errors.New("register application with shutdown hook")
	ErrStartComponent      = errors.New("start component")
)
