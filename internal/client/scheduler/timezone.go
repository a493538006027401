package scheduler

import (
	"fmt"
	"time"
)

// TimezoneSource reports the timezone in effect right now. It is asked on
// every evaluation, so a user who travels gets cutoffs in the new zone.
type TimezoneSource interface {
	Location() *time.Location
}

type FixedZone struct {
	loc *time.Location
}

// NewFixedZone loads an IANA zone such as "Europe/Riga".
func NewFixedZone(name string) (*FixedZone, error) {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", name, err)
	}
	return &FixedZone{loc: loc}, nil
}

func ZoneOf(loc *time.Location) *FixedZone {
	return &FixedZone{loc: loc}
}

func (z *FixedZone) Location() *time.Location { return z.loc }

// SystemZone follows the host's local zone.
type SystemZone struct{}

func (SystemZone) Location() *time.Location { return time.Local }

// ZoneFromName returns SystemZone for "" or "Local" and a FixedZone otherwise.
func ZoneFromName(name string) (TimezoneSource, error) {
	if name == "" || name == "Local" {
		return SystemZone{}, nil
	}
	return NewFixedZone(name)
}
