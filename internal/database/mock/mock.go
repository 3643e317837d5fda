// Package mock provides in-memory implementations of the database ledgers for testing.
package mock

import (
	"context"
	"sort"
	"sync"

	"github.com/kozaktomas/attendance-kiosk/internal/database"
)

// MockIdentityLedger is an in-memory database.IdentityLedger.
type MockIdentityLedger struct {
	mu         sync.RWMutex
	identities map[string]database.Identity

	// Error injection
	SaveError error
	ListError error
}

// NewMockIdentityLedger creates an empty identity ledger
func NewMockIdentityLedger() *MockIdentityLedger {
	return &MockIdentityLedger{
		identities: make(map[string]database.Identity),
	}
}

// SaveIdentity stores the identity under its key
func (m *MockIdentityLedger) SaveIdentity(ctx context.Context, identity database.Identity) error {
	if m.SaveError != nil {
		return m.SaveError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.identities[identity.Key()] = identity
	return nil
}

// ListIdentities returns all identities ordered by uid
func (m *MockIdentityLedger) ListIdentities(ctx context.Context) ([]database.Identity, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]database.Identity, 0, len(m.identities))
	for _, id := range m.identities {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UID != out[j].UID {
			return out[i].UID < out[j].UID
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// Len returns the number of stored identities
func (m *MockIdentityLedger) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.identities)
}

type attendanceKey struct {
	date string
	uid  int64
}

// MockAttendanceLedger is an in-memory database.AttendanceLedger.
type MockAttendanceLedger struct {
	mu     sync.RWMutex
	events map[attendanceKey]database.AttendanceEvent
	writes int

	// Error injection
	RecordError error
	DatesError  error
}

// NewMockAttendanceLedger creates an empty attendance ledger
func NewMockAttendanceLedger() *MockAttendanceLedger {
	return &MockAttendanceLedger{
		events: make(map[attendanceKey]database.AttendanceEvent),
	}
}

// RecordAttendance upserts the event keyed by (date, uid)
func (m *MockAttendanceLedger) RecordAttendance(ctx context.Context, event database.AttendanceEvent) error {
	if m.RecordError != nil {
		return m.RecordError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[attendanceKey{date: event.Date, uid: event.UID}] = event
	m.writes++
	return nil
}

// AttendanceDates returns sorted distinct dates for uid
func (m *MockAttendanceLedger) AttendanceDates(ctx context.Context, uid int64) ([]string, error) {
	if m.DatesError != nil {
		return nil, m.DatesError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var dates []string
	for k := range m.events {
		if k.uid == uid {
			dates = append(dates, k.date)
		}
	}
	sort.Strings(dates)
	return dates, nil
}

// Events returns all stored events
func (m *MockAttendanceLedger) Events() []database.AttendanceEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]database.AttendanceEvent, 0, len(m.events))
	for _, e := range m.events {
		out = append(out, e)
	}
	return out
}

// Writes returns how many successful RecordAttendance calls were made
func (m *MockAttendanceLedger) Writes() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.writes
}

// AddEvent seeds an event without counting a write
func (m *MockAttendanceLedger) AddEvent(event database.AttendanceEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[attendanceKey{date: event.Date, uid: event.UID}] = event
}

var (
	_ database.IdentityLedger   = (*MockIdentityLedger)(nil)
	_ database.AttendanceLedger = (*MockAttendanceLedger)(nil)
)
