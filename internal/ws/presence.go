package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"pontochat/internal/services/chat"
)

// Presence statuses. "online" and "offline" are derived from connection
// count; the rest are client-chosen and only valid while online.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
	StatusAway    = "away"
	StatusBusy    = "busy"
)

type presenceEntry struct {
	status  string
	since   time.Time
	updated time.Time
}

// PresenceTracker derives per-employee online state from the connection
// count and fans status changes out to the employee's contacts. Entries
// exist only while the employee has at least one live connection.
type PresenceTracker struct {
	store chat.IChatStore
	bcast *Broadcaster

	contactTTL time.Duration

	mu       sync.Mutex
	entries  map[string]*presenceEntry
	contacts map[string]memberEntry
}

func NewPresenceTracker(store chat.IChatStore, bcast *Broadcaster, contactTTL time.Duration) *PresenceTracker {
	return &PresenceTracker{
		store:      store,
		bcast:      bcast,
		contactTTL: contactTTL,
		entries:    make(map[string]*presenceEntry),
		contacts:   make(map[string]memberEntry),
	}
}

// MarkOnline records the offline → online transition and notifies the
// employee's contacts. Idempotent: marking an already-online employee is a
// no-op. Callers invoke it only on the first connection, but a second
// device racing the first must not fan out twice.
func (p *PresenceTracker) MarkOnline(ctx context.Context, employeeID string) {
	now := time.Now()

	p.mu.Lock()
	if _, ok := p.entries[employeeID]; ok {
		p.mu.Unlock()
		return
	}
	p.entries[employeeID] = &presenceEntry{status: StatusOnline, since: now, updated: now}
	p.mu.Unlock()

	p.notifyContacts(ctx, employeeID, StatusOnline, now)
}

// MarkOffline mirrors MarkOnline for the last-connection close.
func (p *PresenceTracker) MarkOffline(ctx context.Context, employeeID string) {
	now := time.Now()

	p.mu.Lock()
	if _, ok := p.entries[employeeID]; !ok {
		p.mu.Unlock()
		return
	}
	delete(p.entries, employeeID)
	p.mu.Unlock()

	p.notifyContacts(ctx, employeeID, StatusOffline, now)
}

// SetStatus applies a client-chosen status (away, busy, back to online) and
// fans it out the same way as the derived transitions.
func (p *PresenceTracker) SetStatus(ctx context.Context, employeeID, status string) error {
	switch status {
	case StatusOnline, StatusAway, StatusBusy:
	default:
		return ErrInvalidStatus
	}

	now := time.Now()

	p.mu.Lock()
	e, ok := p.entries[employeeID]
	if !ok {
		p.mu.Unlock()
		return ErrNotAuthenticated
	}
	if e.status == status {
		p.mu.Unlock()
		return nil
	}
	e.status = status
	e.updated = now
	p.mu.Unlock()

	p.notifyContacts(ctx, employeeID, status, now)
	return nil
}

// StatusOf reports the employee's current status, "offline" when unknown.
func (p *PresenceTracker) StatusOf(employeeID string) string {
	p.mu.Lock()
	defer p.mu.Unlock()

	if e, ok := p.entries[employeeID]; ok {
		return e.status
	}
	return StatusOffline
}

func (p *PresenceTracker) notifyContacts(ctx context.Context, employeeID, status string, at time.Time) {
	contacts, err := p.contactsOf(ctx, employeeID)
	if err != nil {
		zap.L().Warn("presence.contacts", zap.String("employee_id", employeeID), zap.Error(err))
		return
	}
	if len(contacts) == 0 {
		return
	}

	payload, err := json.Marshal(UserStatusFrame{
		Type:       TypeUserStatus,
		EmployeeID: employeeID,
		Status:     status,
		Timestamp:  at.UTC(),
	})
	if err != nil {
		return
	}
	p.bcast.BroadcastToUsers(ctx, contacts, payload)
}

func (p *PresenceTracker) contactsOf(ctx context.Context, employeeID string) ([]string, error) {
	p.mu.Lock()
	if e, ok := p.contacts[employeeID]; ok && time.Since(e.fetchedAt) < p.contactTTL {
		contacts := e.members
		p.mu.Unlock()
		return contacts, nil
	}
	p.mu.Unlock()

	contacts, err := p.store.ContactsOf(ctx, employeeID)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.contacts[employeeID] = memberEntry{members: contacts, fetchedAt: time.Now()}
	p.mu.Unlock()
	return contacts, nil
}
