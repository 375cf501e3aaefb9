package restart

import "errors"

var (
	ErrPlanRestart    = errors.New("plan restart")
	ErrTriggerRestart = errors.New("trigger restart")
	ErrNotReady       = errors.New("restart service is not ready")
)
