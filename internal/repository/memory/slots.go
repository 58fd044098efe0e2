package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/school_scheduler/internal/model"
	"github.com/Freeeeeet/school_scheduler/internal/repository"
	"github.com/google/uuid"
)

type Slots struct {
	s *Store
}

func (r *Slots) CreateBatch(_ context.Context, slots []*model.AppointmentSlot) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	// проверяем всё до записи, чтобы не оставить половину пачки
	seen := make(map[uuid.UUID]bool, len(slots))
	for _, slot := range slots {
		if _, ok := r.s.codes[slot.TeacherCodeID]; !ok {
			return fmt.Errorf("create slot: %w", repository.ErrForeignKeyViolation)
		}
		if _, ok := r.s.slots[slot.ID]; ok || seen[slot.ID] {
			return fmt.Errorf("create slot: %w", repository.ErrUniqueViolation)
		}
		seen[slot.ID] = true
	}

	now := r.s.now()
	for _, slot := range slots {
		slot.CreatedAt = now
		r.s.slots[slot.ID] = slot.Clone()
	}
	return nil
}

func (r *Slots) GetByID(_ context.Context, id uuid.UUID) (*model.AppointmentSlot, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	slot, ok := r.s.slots[id]
	if !ok {
		return nil, nil
	}
	return r.s.slotView(slot), nil
}

func (r *Slots) ListByTeacher(_ context.Context, teacherID uuid.UUID, from time.Time) ([]*model.AppointmentSlot, error) {
	return r.filter(false, 0, func(slot *model.AppointmentSlot) bool {
		return slot.TeacherCodeID == teacherID && !slot.Date.Before(from)
	}), nil
}

func (r *Slots) ListAvailable(_ context.Context, teacherID uuid.UUID, from time.Time, on *time.Time) ([]*model.AppointmentSlot, error) {
	return r.filter(false, 0, func(slot *model.AppointmentSlot) bool {
		return slot.TeacherCodeID == teacherID &&
			slot.IsAvailable() &&
			!slot.Date.Before(from) &&
			(on == nil || slot.Date.Equal(*on))
	}), nil
}

func (r *Slots) ListBookedByParent(_ context.Context, parentID uuid.UUID, from time.Time) ([]*model.AppointmentSlot, error) {
	return r.filter(false, 0, func(slot *model.AppointmentSlot) bool {
		return slot.BookedBy(parentID) && !slot.Date.Before(from)
	}), nil
}

func (r *Slots) ListRecent(_ context.Context, limit int) ([]*model.AppointmentSlot, error) {
	return r.filter(true, limit, func(*model.AppointmentSlot) bool { return true }), nil
}

func (r *Slots) DeleteIfAvailable(_ context.Context, id uuid.UUID) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	slot, ok := r.s.slots[id]
	if !ok || !slot.IsAvailable() {
		return false, nil
	}
	delete(r.s.slots, id)
	return true, nil
}

func (r *Slots) Book(_ context.Context, id uuid.UUID, booking model.Booking, notBefore time.Time) (*model.AppointmentSlot, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	slot, ok := r.s.slots[id]
	if !ok || !slot.IsAvailable() || slot.Date.Before(notBefore) {
		return nil, nil
	}
	if _, ok := r.s.codes[booking.ParentCodeID]; !ok {
		return nil, fmt.Errorf("book slot: %w", repository.ErrForeignKeyViolation)
	}

	parent := booking.ParentCodeID
	bookedAt := booking.BookedAt
	slot.Status = model.SlotStatusBooked
	slot.ParentCodeID = &parent
	slot.ChildName = nil
	if booking.ChildName != nil {
		name := *booking.ChildName
		slot.ChildName = &name
	}
	slot.BookedAt = &bookedAt

	return r.s.slotView(slot), nil
}

func (r *Slots) Release(_ context.Context, id uuid.UUID, holder *uuid.UUID) (*model.AppointmentSlot, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	slot, ok := r.s.slots[id]
	if !ok || !slot.IsBooked() {
		return nil, nil
	}
	if holder != nil && !slot.BookedBy(*holder) {
		return nil, nil
	}

	slot.Status = model.SlotStatusAvailable
	slot.ParentCodeID = nil
	slot.ChildName = nil
	slot.BookedAt = nil

	return r.s.slotView(slot), nil
}

func (r *Slots) Complete(_ context.Context, id uuid.UUID) (*model.AppointmentSlot, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	slot, ok := r.s.slots[id]
	if !ok || !slot.IsBooked() {
		return nil, nil
	}
	slot.Status = model.SlotStatusCompleted

	return r.s.slotView(slot), nil
}

func (r *Slots) CompleteEndedBefore(_ context.Context, date time.Time, clock model.Clock) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var n int64
	for _, slot := range r.s.slots {
		if !slot.IsBooked() {
			continue
		}
		if slot.Date.Before(date) || (slot.Date.Equal(date) && slot.EndTime <= clock) {
			slot.Status = model.SlotStatusCompleted
			n++
		}
	}
	return n, nil
}

func (r *Slots) filter(desc bool, limit int, keep func(*model.AppointmentSlot) bool) []*model.AppointmentSlot {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*model.AppointmentSlot
	for _, slot := range r.s.slots {
		if keep(slot) {
			out = append(out, r.s.slotView(slot))
		}
	}

	sortSlots(out, desc)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
