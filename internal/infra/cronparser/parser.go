package cronparser

import (
	"fmt"
	"strings"
	"time"

	cron "github.com/netresearch/go-cron"
)

var _parser = cron.MustNewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow,
)

// Parser resolves restart schedules written in five-field cron syntax.
type Parser struct{}

// New creates a new cron parser.
func New() *Parser {
	return &Parser{}
}

// Validate reports whether spec parses in the given timezone.
func (p *Parser) Validate(spec, tz string) error {
	_, err := parse(spec, tz)

	return err
}

// NextAfter returns the next occurrence of spec strictly after `after`.
// An inline CRON_TZ=/TZ= prefix wins over tz; with neither, UTC is used.
func (p *Parser) NextAfter(
	spec,
	tz string,
	after time.Time,
) (time.Time, error) {
	schedule, err := parse(spec, tz)
	if err != nil {
		return time.Time{}, err
	}

	next := schedule.Next(after)
	if next.IsZero() {
		return time.Time{}, fmt.Errorf("cron spec %q: %w", spec, ErrNoOccurrence)
	}

	return next, nil
}

func parse(spec, tz string) (cron.Schedule, error) {
	if strings.TrimSpace(spec) == "" {
		return nil, ErrEmptySpec
	}

	if tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return nil, fmt.Errorf("load timezone %q: %w", tz, err)
		}
	}

	schedule, err := _parser.Parse(buildSpec(spec, tz))
	if err != nil {
		return nil, fmt.Errorf("parse cron spec %q: %w", spec, err)
	}

	return schedule, nil
}

func buildSpec(spec, tz string) string {
	hasTZPrefix := strings.HasPrefix(spec, "CRON_TZ=") ||
		strings.HasPrefix(spec, "TZ=")

	switch {
	case hasTZPrefix:
		return spec
	case tz != "":
		return "CRON_TZ=" + tz + " " + spec
	default:
		return "CRON_TZ=UTC " + spec
	}
}
