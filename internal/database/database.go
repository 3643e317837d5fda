// Package database defines the durable ledgers behind enrollment and attendance.
package database

import (
	"context"
	"fmt"
	"time"
)

// Identity is an enrolled person.
type Identity struct {
	UID          int64
	Name         string
	RemoteHandle string // blob store key, assigned once at enrollment
	CreatedAt    time.Time
}

// Key is the ledger key of the identity record ("<name>_<uid>").
func (i Identity) Key() string {
	return fmt.Sprintf("%s_%d", i.Name, i.UID)
}

// AttendanceEvent is one verified check-in.
// Date and Time are local wall-clock strings; (Date, UID) is unique in the ledger.
type AttendanceEvent struct {
	UID       int64
	Name      string
	Date      string // YYYY-MM-DD
	Time      string // HH:MM:SS
	Timestamp time.Time
}

// IdentityLedger stores enrollment records.
type IdentityLedger interface {
	// SaveIdentity inserts or overwrites the record keyed by Identity.Key.
	SaveIdentity(ctx context.Context, identity Identity) error
	// ListIdentities returns every enrolled identity ordered by uid.
	ListIdentities(ctx context.Context) ([]Identity, error)
}

// AttendanceLedger stores verification events.
type AttendanceLedger interface {
	// RecordAttendance writes the event, overwriting an existing one for the same (date, uid).
	RecordAttendance(ctx context.Context, event AttendanceEvent) error
	// AttendanceDates returns the distinct dates recorded for uid in ascending order.
	AttendanceDates(ctx context.Context, uid int64) ([]string, error)
}
