package appointment

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryLedger is a single-process Ledger and Outbox. Its mutex is the
// storage engine's own atomicity: every check-and-write happens while it is
// held, which gives the same guarantees as the Postgres unique index within
// one process.
type MemoryLedger struct {
	mu           sync.Mutex
	now          func() time.Time
	appointments map[uuid.UUID]*Appointment
	activeSlots  map[string]uuid.UUID
	events       []EventLog
	nextEventID  int64
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		now:          time.Now,
		appointments: make(map[uuid.UUID]*Appointment),
		activeSlots:  make(map[string]uuid.UUID),
	}
}

func (l *MemoryLedger) TryReserve(ctx context.Context, d Draft) (*Appointment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.AppointmentDate = DateOnly(d.AppointmentDate)
	key := d.Slot().Key()

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, taken := l.activeSlots[key]; taken {
		return nil, ErrSlotTaken
	}

	now := l.now()
	a := &Appointment{
		ID:                 uuid.New(),
		DoctorID:           d.DoctorID,
		PatientID:          d.PatientID,
		PatientPhoneNumber: d.PatientPhoneNumber,
		AppointmentDate:    d.AppointmentDate,
		AppointmentTime:    d.AppointmentTime,
		Reason:             d.Reason,
		Mode:               d.Mode,
		Status:             StatusPending,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if err := l.appendEvent(a, now); err != nil {
		return nil, err
	}
	l.appointments[a.ID] = a
	l.activeSlots[key] = a.ID

	return copyAppointment(a), nil
}

func (l *MemoryLedger) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	a, ok := l.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return copyAppointment(a), nil
}

func (l *MemoryLedger) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]Appointment, error) {
	return l.list(ctx, func(a *Appointment) bool {
		return a.PatientID == patientID
	})
}

func (l *MemoryLedger) ListByDoctor(ctx context.Context, doctorID uuid.UUID, status AppointmentStatus) ([]Appointment, error) {
	return l.list(ctx, func(a *Appointment) bool {
		return a.DoctorID == doctorID && (status == "" || a.Status == status)
	})
}

func (l *MemoryLedger) UpdateStatus(ctx context.Context, id uuid.UUID, expected, next AppointmentStatus, change StatusChange) (*Appointment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	stored, ok := l.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	if stored.Status != expected {
		return nil, ErrStatusChanged
	}

	updated := copyAppointment(stored)
	updated.Status = next
	if change.MeetingLink != nil {
		link := *change.MeetingLink
		updated.MeetingLink = &link
	}
	updated.UpdatedAt = l.now()

	if err := l.appendEvent(updated, updated.UpdatedAt); err != nil {
		return nil, err
	}

	key := updated.Slot().Key()
	if !next.IsActive() && l.activeSlots[key] == id {
		delete(l.activeSlots, key)
	}
	l.appointments[id] = updated

	return copyAppointment(updated), nil
}

func (l *MemoryLedger) PendingEvents(ctx context.Context, limit int) ([]EventLog, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	var result []EventLog
	for _, ev := range l.events {
		if ev.PublishedAt != nil {
			continue
		}
		result = append(result, ev)
		if limit > 0 && len(result) == limit {
			break
		}
	}
	return result, nil
}

func (l *MemoryLedger) MarkPublished(ctx context.Context, ids []int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	published := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		published[id] = struct{}{}
	}

	now := l.now()
	for i := range l.events {
		if _, ok := published[l.events[i].ID]; ok && l.events[i].PublishedAt == nil {
			at := now
			l.events[i].PublishedAt = &at
		}
	}
	return nil
}

func (l *MemoryLedger) list(ctx context.Context, match func(a *Appointment) bool) ([]Appointment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	result := []Appointment{}
	for _, a := range l.appointments {
		if match(a) {
			result = append(result, *copyAppointment(a))
		}
	}
	l.mu.Unlock()

	sortNewestFirst(result)
	return result, nil
}

// appendEvent must be called with mu held.
func (l *MemoryLedger) appendEvent(a *Appointment, at time.Time) error {
	ev, err := newEvent(a, at)
	if err != nil {
		return err
	}
	l.nextEventID++
	ev.ID = l.nextEventID
	l.events = append(l.events, ev)
	return nil
}

func sortNewestFirst(list []Appointment) {
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if !a.AppointmentDate.Equal(b.AppointmentDate) {
			return a.AppointmentDate.After(b.AppointmentDate)
		}
		if a.AppointmentTime != b.AppointmentTime {
			return a.AppointmentTime > b.AppointmentTime
		}
		return a.CreatedAt.After(b.CreatedAt)
	})
}

func copyAppointment(a *Appointment) *Appointment {
	c := *a
	if a.MeetingLink != nil {
		link := *a.MeetingLink
		c.MeetingLink = &link
	}
	return &c
}
